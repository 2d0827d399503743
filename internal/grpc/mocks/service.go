package mocks

import (
	"context"
	"errors"
	"time"

	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/godilite/feedback-server/internal/service"
)

// MockReportService is a mock implementation of the ReportService interface
// for testing the handler layer.
type MockReportService struct {
	BuildReportFunc func(ctx context.Context, category feedback.Category, start, end time.Time) (service.Report, error)
}

func (m *MockReportService) BuildReport(ctx context.Context, category feedback.Category, start, end time.Time) (service.Report, error) {
	if m.BuildReportFunc != nil {
		return m.BuildReportFunc(ctx, category, start, end)
	}
	return service.Report{}, errors.New("BuildReportFunc not implemented")
}

// MockIntakeService is a mock implementation of the IntakeService interface.
type MockIntakeService struct {
	SubmitFunc func(ctx context.Context, sub service.Submission) (feedback.Record, error)
}

func (m *MockIntakeService) Submit(ctx context.Context, sub service.Submission) (feedback.Record, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, sub)
	}
	return feedback.Record{}, errors.New("SubmitFunc not implemented")
}
