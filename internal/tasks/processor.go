package tasks

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bybench/internal/mail"
)

// MailProcessor delivers queued mail jobs. A malformed entry is logged and
// dropped so it is acked instead of being retried forever.
type MailProcessor struct {
	mailer mail.Mailer
	logger zerolog.Logger
}

func NewMailProcessor(mailer mail.Mailer, logger zerolog.Logger) *MailProcessor {
	return &MailProcessor{
		mailer: mailer,
		logger: logger,
	}
}

func (p *MailProcessor) Handle(ctx context.Context, msg redis.XMessage) error {
	jobID, message, err := mail.DecodeStream(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed mail job")
		return nil
	}

	if err := p.mailer.Send(ctx, message); err != nil {
		return fmt.Errorf("deliver mail job %s: %w", jobID, err)
	}

	p.logger.Info().
		Str("job_id", jobID).
		Str("message_id", msg.ID).
		Str("subject", message.Subject).
		Msg("mail delivered")
	return nil
}
