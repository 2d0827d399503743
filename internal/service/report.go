package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/godilite/feedback-server/pkg/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	storeTimeout          = 15 * time.Second
	defaultReportCacheTTL = 10 * time.Minute
	reportCacheNamespace  = "report"
)

var (
	ErrStorageFailure    = errors.New("storage failure")
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrNothingToExport   = errors.New("no feedback to export")
	ErrCellTooLong       = errors.New("value exceeds spreadsheet cell limit")
)

// ReportService builds date-ranged reports over one category's records.
type ReportService struct {
	store    FeedbackStore
	logger   *zap.Logger
	loc      *time.Location
	cache    cache.Cacher
	cacheTTL time.Duration
	sfGroup  singleflight.Group
}

type ReportOption func(*ReportService)

// WithLocation sets the zone that stored timestamps and range bounds are read in.
func WithLocation(loc *time.Location) ReportOption {
	return func(s *ReportService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithReportCache enables read-through caching of built reports.
func WithReportCache(c cache.Cacher, ttl time.Duration) ReportOption {
	return func(s *ReportService) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// NewReportService creates a new ReportService instance.
func NewReportService(store FeedbackStore, logger *zap.Logger, opts ...ReportOption) *ReportService {
	if store == nil {
		panic("store must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	s := &ReportService{
		store:    store,
		logger:   logger.Named("reports"),
		loc:      time.Local,
		cacheTTL: defaultReportCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is the zone the service reads timestamps in.
func (s *ReportService) Location() *time.Location {
	return s.loc
}

// BuildReport loads every record of the category and reports on those whose
// day falls in [start, end]. A reversed range yields an empty report.
func (s *ReportService) BuildReport(ctx context.Context, category feedback.Category, start, end time.Time) (Report, error) {
	if !category.Valid() {
		return Report{}, fmt.Errorf("%w: %q", feedback.ErrUnknownCategory, category)
	}
	if s.cache == nil {
		return s.build(ctx, category, start, end)
	}

	key := reportCacheKey(category, start, end)
	return cache.FindAndCache(ctx, s.cache, &s.sfGroup, key, s.cacheTTL, s.logger, func(fetchCtx context.Context) (Report, error) {
		return s.build(fetchCtx, category, start, end)
	})
}

func reportCacheKey(category feedback.Category, start, end time.Time) string {
	return cache.Key(reportCacheNamespace, string(category),
		feedback.Day(start).Format(time.DateOnly), feedback.Day(end).Format(time.DateOnly))
}

// reportCacheFamily covers every cached range of one category.
func reportCacheFamily(category feedback.Category) string {
	return cache.Family(reportCacheNamespace, string(category))
}

func (s *ReportService) build(ctx context.Context, category feedback.Category, start, end time.Time) (Report, error) {
	report := Report{
		Category: category,
		Start:    feedback.Day(start).Format(time.DateOnly),
		End:      feedback.Day(end).Format(time.DateOnly),
		Records:  []feedback.Record{},
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	records, err := s.store.ReadAll(storeCtx, category)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if len(records) == 0 {
		report.Status = StatusNoData
		return report, nil
	}

	matched, undated := FilterByDate(records, start, end, s.loc)
	report.Undated = undated
	if undated > 0 {
		s.logger.Warn("skipped records without a readable timestamp",
			zap.String("category", string(category)),
			zap.Int("count", undated))
	}
	if len(matched) == 0 {
		report.Status = StatusNoFeedbackInRange
		return report, nil
	}

	report.Status = StatusOK
	report.Summary = Summarize(category, matched)
	report.Records = matched

	s.logger.Info("built report",
		zap.String("category", string(category)),
		zap.String("start", report.Start),
		zap.String("end", report.End),
		zap.Int("total", report.Total),
		zap.Int("loaded", len(records)))

	return report, nil
}

// Export renders the filtered records of a report as an xlsx workbook.
func (s *ReportService) Export(ctx context.Context, category feedback.Category, start, end time.Time) (ExportFile, error) {
	report, err := s.BuildReport(ctx, category, start, end)
	if err != nil {
		return ExportFile{}, err
	}
	if report.Status != StatusOK {
		return ExportFile{}, fmt.Errorf("%w: %s", ErrNothingToExport, report.Status)
	}

	data, err := WriteWorkbook(category, report.Records)
	if err != nil {
		return ExportFile{}, fmt.Errorf("write workbook: %w", err)
	}

	return ExportFile{
		Name:        ExportFileName(category),
		ContentType: ExportContentType,
		Data:        data,
	}, nil
}
