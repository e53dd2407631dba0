package mail

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"bybench/internal/ids"
)

// StreamMailer queues messages on a Redis stream for the worker to deliver.
type StreamMailer struct {
	client *redis.Client
	stream string
}

func NewStreamMailer(client *redis.Client, stream string) *StreamMailer {
	return &StreamMailer{client: client, stream: stream}
}

func (m *StreamMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	err := m.client.XAdd(ctx, &redis.XAddArgs{
		Stream: m.stream,
		Values: EncodeStream(ids.NewSortable(), msg),
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}

func EncodeStream(jobID string, msg Message) map[string]interface{} {
	return map[string]interface{}{
		"job_id":  jobID,
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
}

// DecodeStream reads a stream entry written by EncodeStream.
func DecodeStream(values map[string]interface{}) (string, Message, error) {
	field := func(name string) string {
		if v, ok := values[name].(string); ok {
			return v
		}
		return ""
	}
	msg := Message{To: field("to"), Subject: field("subject"), HTML: field("html")}
	if err := msg.Validate(); err != nil {
		return "", Message{}, err
	}
	return field("job_id"), msg, nil
}
