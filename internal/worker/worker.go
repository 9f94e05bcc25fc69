// Package worker drains the notification stream and delivers terminal job
// outcomes to users. Delivery runs at-least-once: a crash between delivery
// and ack means the user may see the same notification twice, never zero
// times.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"artforge.app/orchestrator/common/logger"
	"artforge.app/orchestrator/internal/notify"
	"artforge.app/orchestrator/internal/queue"
)

type Worker struct {
	consumer *queue.RedisConsumer
	notifier notify.Notifier

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer *queue.RedisConsumer, notifier notify.Notifier) *Worker {
	return &Worker{
		consumer:  consumer,
		notifier:  notifier,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "orchestrator.worker",
	})

	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "notification worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "notification worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.deliverSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "notification delivery failed",
				"error", err,
				"message_id", msg.ID,
				"job_id", msg.Notification.JobID)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) deliverSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in notification delivery",
				"panic", r,
				"message_id", msg.ID,
				"job_id", msg.Notification.JobID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.Deliver(ctx, msg)
}

// Deliver sends one notification and acks it. Exported so it can be reused
// by the reclaimer.
func (w *Worker) Deliver(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpan(ctx, "worker.deliver_notification", trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	n := msg.Notification
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		JobID:  logger.Ptr(n.JobID),
		UserID: logger.Ptr(n.UserID),
	})

	slog.InfoContext(ctx, "delivering notification",
		"message_id", msg.ID,
		"kind", n.Kind,
		"attempt", n.Attempt)

	var err error
	switch n.Kind {
	case queue.NotificationSuccess:
		err = w.notifier.NotifySuccess(ctx, n.UserID, n.ArtifactRef)
	case queue.NotificationFailure:
		err = w.notifier.NotifyFailure(ctx, n.UserID, n.Reason)
	default:
		// Unknown kinds never leave ParseMessage, but guard anyway.
		slog.ErrorContext(ctx, "dropping notification with unknown kind", "kind", n.Kind)
	}
	if err != nil {
		sc.RecordError(err)
		return fmt.Errorf("notifying user: %w", err)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// Log but don't fail; the message will be reclaimed and the user may
		// see a duplicate, which is the acceptable side of at-least-once.
		slog.WarnContext(ctx, "failed to ACK message",
			"error", err,
			"message_id", msg.ID)
	}

	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Notification.Attempt >= w.consumer.MaxAttempts() {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"job_id", msg.Notification.JobID,
			"attempts", msg.Notification.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed notification",
		"message_id", msg.ID,
		"job_id", msg.Notification.JobID,
		"attempt", msg.Notification.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
