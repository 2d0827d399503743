package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/godilite/feedback-server/pkg/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultNotifyTimeout = 5 * time.Second

// IntakeService appends submitted feedback to the category's table.
type IntakeService struct {
	store         FeedbackStore
	notifier      Notifier
	logger        *zap.Logger
	validate      *validator.Validate
	loc           *time.Location
	now           func() time.Time
	reportCache   cache.Cacher
	notifyTimeout time.Duration
}

type IntakeOption func(*IntakeService)

func WithIntakeLocation(loc *time.Location) IntakeOption {
	return func(s *IntakeService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) IntakeOption {
	return func(s *IntakeService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReportInvalidation drops the category's cached reports after every
// stored submission. Pass the cache given to WithReportCache.
func WithReportInvalidation(c cache.Cacher) IntakeOption {
	return func(s *IntakeService) {
		s.reportCache = c
	}
}

// WithNotifyTimeout bounds how long a submission waits on the notifier.
func WithNotifyTimeout(d time.Duration) IntakeOption {
	return func(s *IntakeService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

func NewIntakeService(store FeedbackStore, notifier Notifier, logger *zap.Logger, opts ...IntakeOption) *IntakeService {
	if store == nil {
		panic("store must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, err := feedback.ParseCategory(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("rating", func(fl validator.FieldLevel) bool {
		label := fl.Field().String()
		r, ok := feedback.ParseRating(label)
		return ok && r.Label() == label
	})

	s := &IntakeService{
		store:         store,
		notifier:      notifier,
		logger:        logger.Named("intake"),
		validate:      v,
		loc:           time.Local,
		now:           time.Now,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit stores one record with a server-side timestamp. It needs a category,
// a department and five ratings on the 1 to 5 scale. Free text is capped at
// what one spreadsheet cell holds.
func (s *IntakeService) Submit(ctx context.Context, sub Submission) (feedback.Record, error) {
	sub = normalize(sub)
	if err := s.validate.Struct(sub); err != nil {
		return feedback.Record{}, fmt.Errorf("%w: %s", ErrInvalidSubmission, describeValidation(err))
	}

	category, err := feedback.ParseCategory(sub.Category)
	if err != nil {
		return feedback.Record{}, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	department := sub.Department
	if department == feedback.OtherDepartment && sub.OtherDepartment != "" {
		department = sub.OtherDepartment
	}

	rec := feedback.Record{
		ID:          uuid.New().String(),
		Timestamp:   s.now().In(s.loc).Format(feedback.TimestampLayout),
		PatientName: sub.PatientName,
		Department:  department,
		Review:      sub.Review,
	}
	copy(rec.Ratings[:], sub.Ratings)

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := s.store.AppendRow(storeCtx, category, rec); err != nil {
		s.logger.Error("failed to append feedback",
			zap.String("category", string(category)),
			zap.Error(err))
		return feedback.Record{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	s.logger.Info("feedback recorded",
		zap.String("category", string(category)),
		zap.String("id", rec.ID),
		zap.String("department", rec.Department))

	if s.reportCache != nil {
		_ = cache.Invalidate(ctx, s.reportCache, reportCacheFamily(category), s.logger)
	}

	if s.notifier != nil {
		notifyCtx, cancelNotify := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancelNotify()
		if err := s.notifier.Publish(notifyCtx, notification(category, rec)); err != nil {
			s.logger.Warn("failed to publish feedback notification", zap.Error(err))
		}
	}

	return rec, nil
}

func normalize(sub Submission) Submission {
	sub.Category = strings.ToUpper(strings.TrimSpace(sub.Category))
	sub.PatientName = strings.TrimSpace(sub.PatientName)
	sub.Department = strings.TrimSpace(sub.Department)
	sub.OtherDepartment = strings.TrimSpace(sub.OtherDepartment)
	sub.Review = strings.TrimSpace(sub.Review)
	ratings := make([]string, len(sub.Ratings))
	for i, r := range sub.Ratings {
		ratings[i] = strings.TrimSpace(r)
	}
	sub.Ratings = ratings
	return sub
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func notification(category feedback.Category, rec feedback.Record) string {
	var sum, n int
	for i := range rec.Ratings {
		if r, ok := rec.Rating(i); ok {
			sum += int(r)
			n++
		}
	}
	score := "n/a"
	if n > 0 {
		score = fmt.Sprintf("%.1f/5", float64(sum)/float64(n))
	}
	msg := fmt.Sprintf("New %s feedback for %s (avg %s)", category, rec.Department, score)
	if rec.Review != "" {
		msg += ": " + rec.Review
	}
	return msg
}
