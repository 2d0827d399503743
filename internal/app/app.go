package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godilite/feedback-server/internal/config"
	handler "github.com/godilite/feedback-server/internal/grpc"
	"github.com/godilite/feedback-server/internal/web"
	grpcsrv "github.com/godilite/feedback-server/pkg/grpc/server"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	logger     *zap.Logger
	services   *Services
	httpServer *http.Server
	grpcServer *grpcsrv.Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	services, err := NewServices(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	webOpts := []web.Option{}
	if len(cfg.CORSAllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.CORSAllowedOrigins...))
	}
	if cfg.CSRFKey != "" {
		webOpts = append(webOpts, web.WithCSRF([]byte(cfg.CSRFKey), cfg.SecureCookies))
	}
	webServer := web.NewServer(services.Reports, services.Intake, logger, webOpts...)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           webServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	grpcServer, err := grpcsrv.New(
		grpcsrv.WithPort(cfg.GRPCPort),
		grpcsrv.WithLogger(logger),
		grpcsrv.WithLogging(true),
		grpcsrv.WithReflection(cfg.GRPCReflectionEnabled),
	)
	if err != nil {
		_ = services.Close()
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}

	grpcHandlers := handler.NewGRPCHandlers(services.Reports, services.Intake, logger)
	grpcServer.RegisterServiceWithHealth(handler.ServiceName, func(s *grpc.Server) {
		handler.RegisterFeedbackReportsServer(s, grpcHandlers)
	})

	return &App{
		logger:     logger,
		services:   services,
		httpServer: httpServer,
		grpcServer: grpcServer,
	}, nil
}

// Run starts both servers and blocks until a shutdown signal is received or
// the HTTP server fails.
func (a *App) Run() error {
	a.logger.Info("application starting", zap.String("http_addr", a.httpServer.Addr))

	a.grpcServer.Start()

	httpErr := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		a.logger.Info("application shutting down", zap.String("signal", sig.String()))
	case err := <-httpErr:
		runErr = fmt.Errorf("http server: %w", err)
		a.logger.Error("http server failed, shutting down", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.shutdown(ctx)

	_ = a.logger.Sync()
	return runErr
}

// drain flips the gRPC service to NOT_SERVING so health-checking clients move
// away, then lets in-flight HTTP requests finish.
func (a *App) drain(ctx context.Context) {
	a.grpcServer.SetServiceHealth(handler.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http shutdown error", zap.Error(err))
	}
}

func (a *App) shutdown(ctx context.Context) {
	a.drain(ctx)

	if err := a.grpcServer.Shutdown(ctx); err != nil {
		a.logger.Error("gRPC shutdown error", zap.Error(err))
	}
	if err := a.services.Close(); err != nil {
		a.logger.Error("resource shutdown error", zap.Error(err))
	}

	if ctx.Err() == context.DeadlineExceeded {
		a.logger.Warn("shutdown completed but deadline exceeded")
	} else {
		a.logger.Info("graceful shutdown completed successfully")
	}
}
