package service

import (
	"context"

	"github.com/godilite/feedback-server/internal/feedback"
)

// FeedbackStore is the external table pair the services read and append to.
type FeedbackStore interface {
	AppendRow(ctx context.Context, category feedback.Category, record feedback.Record) error
	ReadAll(ctx context.Context, category feedback.Category) ([]feedback.Record, error)
}

// Notifier publishes a short message after a submission is stored.
type Notifier interface {
	Publish(ctx context.Context, message string) error
}
