package web

import (
	"context"
	"time"

	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/godilite/feedback-server/internal/service"
)

type ReportService interface {
	BuildReport(ctx context.Context, category feedback.Category, start, end time.Time) (service.Report, error)
	Export(ctx context.Context, category feedback.Category, start, end time.Time) (service.ExportFile, error)
	Location() *time.Location
}

type IntakeService interface {
	Submit(ctx context.Context, sub service.Submission) (feedback.Record, error)
}
