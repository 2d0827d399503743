package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/godilite/feedback-server/internal/service"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultGRPCTimeout = 20 * time.Second

type GRPCHandlers struct {
	reports ReportService
	intake  IntakeService
	logger  *zap.Logger
}

var _ FeedbackReportsServer = (*GRPCHandlers)(nil)

// NewGRPCHandlers initializes the gRPC handlers.
func NewGRPCHandlers(reports ReportService, intake IntakeService, logger *zap.Logger) *GRPCHandlers {
	if reports == nil {
		panic("nil ReportService provided to NewGRPCHandlers")
	}
	if intake == nil {
		panic("nil IntakeService provided to NewGRPCHandlers")
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &GRPCHandlers{
		reports: reports,
		intake:  intake,
		logger:  logger.Named("grpc-handler"),
	}
}

type reportRequest struct {
	category   feedback.Category
	start, end time.Time
}

// parseReportRequest reads {type, start, end}. Both dates are required; a
// reversed range is passed through and yields an empty report.
func parseReportRequest(req *structpb.Struct) (reportRequest, error) {
	fields := req.GetFields()

	category, err := feedback.ParseCategory(fields["type"].GetStringValue())
	if err != nil {
		return reportRequest{}, status.Error(codes.InvalidArgument, err.Error())
	}

	startStr := fields["start"].GetStringValue()
	endStr := fields["end"].GetStringValue()
	if startStr == "" || endStr == "" {
		return reportRequest{}, status.Error(codes.InvalidArgument, "start and end dates are required")
	}

	start, err := feedback.ParseDay(startStr)
	if err != nil {
		return reportRequest{}, status.Errorf(codes.InvalidArgument, "invalid start date %q", startStr)
	}
	end, err := feedback.ParseDay(endStr)
	if err != nil {
		return reportRequest{}, status.Errorf(codes.InvalidArgument, "invalid end date %q", endStr)
	}

	return reportRequest{category: category, start: start, end: end}, nil
}

func (s *GRPCHandlers) handleError(ctx context.Context, op string, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		s.logger.Warn("request canceled", zap.String("op", op))
		return status.Error(codes.Canceled, "request canceled")
	case context.DeadlineExceeded:
		s.logger.Warn("request timeout", zap.String("op", op))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	switch {
	case errors.Is(err, feedback.ErrUnknownCategory), errors.Is(err, service.ErrInvalidSubmission):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrStorageFailure):
		s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Unavailable, "feedback store unavailable")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}
}

func (s *GRPCHandlers) GetReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	params, err := parseReportRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	report, err := s.reports.BuildReport(ctx, params.category, params.start, params.end)
	if err != nil {
		return nil, s.handleError(ctx, "GetReport", err)
	}

	out, err := toStruct(report)
	if err != nil {
		return nil, s.handleError(ctx, "GetReport", err)
	}
	if msg := report.Message(); msg != "" {
		out.Fields["message"] = structpb.NewStringValue(msg)
	}
	return out, nil
}

func (s *GRPCHandlers) SubmitFeedback(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var sub service.Submission
	if err := fromStruct(req, &sub); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed submission: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	rec, err := s.intake.Submit(ctx, sub)
	if err != nil {
		return nil, s.handleError(ctx, "SubmitFeedback", err)
	}

	out, err := toStruct(rec)
	if err != nil {
		return nil, s.handleError(ctx, "SubmitFeedback", err)
	}
	return out, nil
}

// toStruct goes through JSON so field names and null means match the HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, dest any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
