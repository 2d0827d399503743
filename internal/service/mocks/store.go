package mocks

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/godilite/feedback-server/internal/feedback"
)

// MockFeedbackStore is a mock implementation of the FeedbackStore interface
// for testing the service layer.
type MockFeedbackStore struct {
	AppendRowFunc func(ctx context.Context, category feedback.Category, record feedback.Record) error
	ReadAllFunc   func(ctx context.Context, category feedback.Category) ([]feedback.Record, error)

	readAllCalls atomic.Int32
}

// AppendRow implements the FeedbackStore interface
func (m *MockFeedbackStore) AppendRow(ctx context.Context, category feedback.Category, record feedback.Record) error {
	if m.AppendRowFunc != nil {
		return m.AppendRowFunc(ctx, category, record)
	}
	return errors.New("AppendRowFunc not implemented")
}

// ReadAll implements the FeedbackStore interface
func (m *MockFeedbackStore) ReadAll(ctx context.Context, category feedback.Category) ([]feedback.Record, error) {
	m.readAllCalls.Add(1)
	if m.ReadAllFunc != nil {
		return m.ReadAllFunc(ctx, category)
	}
	return nil, errors.New("ReadAllFunc not implemented")
}

// ReadAllCalls reports how many times ReadAll ran.
func (m *MockFeedbackStore) ReadAllCalls() int {
	return int(m.readAllCalls.Load())
}

// MockNotifier records published messages.
type MockNotifier struct {
	PublishFunc func(ctx context.Context, message string) error
	Messages    []string
}

func (m *MockNotifier) Publish(ctx context.Context, message string) error {
	m.Messages = append(m.Messages, message)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, message)
	}
	return nil
}
