package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godilite/feedback-server/internal/config"
	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/godilite/feedback-server/internal/notify"
	"github.com/godilite/feedback-server/internal/repository"
	"github.com/godilite/feedback-server/internal/service"
	"github.com/godilite/feedback-server/pkg/cache"
	dbbuilder "github.com/godilite/feedback-server/pkg/database"
	"go.uber.org/zap"
)

const schemaTimeout = 30 * time.Second

// feedbackStore is what every backend in internal/repository provides.
type feedbackStore interface {
	service.FeedbackStore
	EnsureSchema(ctx context.Context) error
	Close() error
}

// Services is the store plus the services built on it, shared by the
// servers and the CLI commands.
type Services struct {
	Reports *service.ReportService
	Intake  *service.IntakeService

	store  feedbackStore
	cache  *cache.Cache
	logger *zap.Logger
}

func NewServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	schemaCtx, cancel := context.WithTimeout(ctx, schemaTimeout)
	defer cancel()
	if err := store.EnsureSchema(schemaCtx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%w: ensure schema: %v", service.ErrStorageFailure, err)
	}

	s := &Services{store: store, logger: logger}

	reportOpts := []service.ReportOption{service.WithLocation(loc)}
	intakeOpts := []service.IntakeOption{
		service.WithIntakeLocation(loc),
		service.WithNotifyTimeout(cfg.NotifyTimeout),
	}
	if cfg.RedisAddr != "" {
		c, err := cache.New(ctx,
			cache.WithAddress(cfg.RedisAddr),
			cache.WithPassword(cfg.RedisPassword),
			cache.WithDB(cfg.RedisDB),
			cache.WithKeyPrefix(cfg.RedisKeyPrefix),
		)
		if err != nil {
			// Reports still work uncached.
			logger.Warn("report cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			s.cache = c
			reportOpts = append(reportOpts, service.WithReportCache(c, cfg.ReportCacheTTL))
			intakeOpts = append(intakeOpts, service.WithReportInvalidation(c))
			logger.Info("report cache initialized",
				zap.String("addr", cfg.RedisAddr),
				zap.String("prefix", cfg.RedisKeyPrefix))
		}
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.Reports = service.NewReportService(store, logger, reportOpts...)
	s.Intake = service.NewIntakeService(store, notifier, logger, intakeOpts...)
	return s, nil
}

// Close releases the store and cache connections.
func (s *Services) Close() error {
	var errs []error
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (feedbackStore, error) {
	switch cfg.StoreBackend {
	case config.BackendSheets:
		srv, err := repository.NewSheetsService(ctx, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, err
		}
		logger.Info("using Google Sheets store", zap.String("spreadsheet", cfg.SpreadsheetID))
		return repository.NewSheetsRepository(srv, cfg.SpreadsheetID, map[feedback.Category]string{
			feedback.OPD: cfg.OPDWorksheet,
			feedback.IPD: cfg.IPDWorksheet,
		}), nil

	case config.BackendSQL:
		db, err := dbbuilder.New(ctx,
			dbbuilder.WithDriver(cfg.DBDriver),
			dbbuilder.WithDataSource(cfg.DBPath),
		)
		if err != nil {
			return nil, err
		}
		logger.Info("using SQL store", zap.String("driver", cfg.DBDriver))
		return repository.NewFeedbackSQLRepository(db), nil

	case config.BackendMongo:
		db, err := dbbuilder.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		logger.Info("using MongoDB store", zap.String("database", cfg.MongoDatabase))
		return repository.NewMongoRepository(db), nil

	case config.BackendMemory:
		logger.Warn("using in-memory store, feedback is lost on restart")
		return repository.NewMemoryRepository(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func newNotifier(cfg *config.Config, logger *zap.Logger) (service.Notifier, error) {
	if !cfg.EmailEnabled() {
		return notify.NewLogNotifier(logger), nil
	}
	var opts []notify.EmailOption
	if cfg.NotifySubject != "" {
		opts = append(opts, notify.WithSubject(cfg.NotifySubject))
	}
	n, err := notify.NewEmailNotifier(cfg.ResendAPIKey, cfg.NotifyFrom, cfg.NotifyTo, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("notifier init failed: %w", err)
	}
	logger.Info("email notifications enabled", zap.String("to", cfg.NotifyTo))
	return n, nil
}
