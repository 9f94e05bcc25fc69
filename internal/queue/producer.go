// Package queue carries terminal job notifications from the completion
// handler to the delivery worker over a Redis stream. Enqueueing happens
// only after the terminal store transition is committed, so a notification
// on the stream always describes a settled job.
package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationFailure NotificationKind = "failure"
)

// Notification is one user-facing delivery request.
type Notification struct {
	JobID       int64
	UserID      int64
	Kind        NotificationKind
	ArtifactRef string
	Reason      string
	Attempt     int
}

type Producer interface {
	Enqueue(ctx context.Context, n Notification) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, n Notification) error {
	attempt := n.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	fields := map[string]any{
		"job_id":  n.JobID,
		"user_id": n.UserID,
		"kind":    string(n.Kind),
		"attempt": attempt,
	}
	if n.ArtifactRef != "" {
		fields["artifact_ref"] = n.ArtifactRef
	}
	if n.Reason != "" {
		fields["reason"] = n.Reason
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued notification", "job_id", n.JobID, "user_id", n.UserID, "kind", n.Kind, "attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
