// Package notify delivers terminal job outcomes to the user through the bot
// gateway. Delivery is best effort: a failed delivery never affects the
// job's settled state, it is just retried by the worker.
package notify

import (
	"context"
	"log/slog"
)

// Notifier is the user-facing notification collaborator.
type Notifier interface {
	NotifySuccess(ctx context.Context, userID int64, artifactRef string) error
	NotifyFailure(ctx context.Context, userID int64, reason string) error
}

// LogNotifier writes notifications to the log instead of delivering them.
// Used in development and as the fallback when no gateway is configured.
type LogNotifier struct{}

func (LogNotifier) NotifySuccess(ctx context.Context, userID int64, artifactRef string) error {
	slog.InfoContext(ctx, "notification (log only): generation ready",
		"user_id", userID, "artifact_ref", artifactRef)
	return nil
}

func (LogNotifier) NotifyFailure(ctx context.Context, userID int64, reason string) error {
	slog.InfoContext(ctx, "notification (log only): generation failed",
		"user_id", userID, "reason", reason)
	return nil
}
