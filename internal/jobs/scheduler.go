package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// OTPSweeper drops verification codes whose expiry has passed.
type OTPSweeper interface {
	ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}

type Scheduler struct {
	cron     *cron.Cron
	sweeper  OTPSweeper
	schedule string
	timeout  time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewScheduler(sweeper OTPSweeper, schedule string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  30 * time.Second,
		log:      log,
		now:      time.Now,
	}
}

// Start registers the sweep. An empty schedule disables it.
func (s *Scheduler) Start() error {
	if s.sweeper == nil || s.schedule == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.sweepExpiredOTPs); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("otp sweep scheduled")
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) sweepExpiredOTPs() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	cleared, err := s.sweeper.ClearExpiredOTPs(ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("otp sweep failed")
		return
	}
	if cleared > 0 {
		s.log.Info().Int64("cleared", cleared).Msg("expired otps cleared")
	}
}
