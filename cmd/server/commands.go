package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/godilite/feedback-server/internal/app"
	"github.com/godilite/feedback-server/internal/config"
	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const cliTimeout = 2 * time.Minute

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "feedback-server",
		Short:        "Hospital patient feedback intake and reporting",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd(), newReportCmd(), newExportCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

type rangeFlags struct {
	category string
	start    string
	end      string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "type", "OPD", "feedback category (OPD or IPD)")
	cmd.Flags().StringVar(&f.start, "start", "", "first day, YYYY-MM-DD (default: 30 days ago)")
	cmd.Flags().StringVar(&f.end, "end", "", "last day, YYYY-MM-DD (default: today)")
}

func (f *rangeFlags) parse(loc *time.Location) (feedback.Category, time.Time, time.Time, error) {
	category, err := feedback.ParseCategory(f.category)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}

	end := feedback.Day(time.Now().In(loc))
	if f.end != "" {
		if end, err = feedback.ParseDay(f.end); err != nil {
			return "", time.Time{}, time.Time{}, fmt.Errorf("invalid --end %q: %w", f.end, err)
		}
	}
	start := end.AddDate(0, 0, -30)
	if f.start != "" {
		if start, err = feedback.ParseDay(f.start); err != nil {
			return "", time.Time{}, time.Time{}, fmt.Errorf("invalid --start %q: %w", f.start, err)
		}
	}
	return category, start, end, nil
}

func newReportCmd() *cobra.Command {
	var flags rangeFlags

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a feedback report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *app.Services) error {
				category, start, end, err := flags.parse(s.Reports.Location())
				if err != nil {
					return err
				}

				report, err := s.Reports.BuildReport(ctx, category, start, end)
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newExportCmd() *cobra.Command {
	var flags rangeFlags
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered records to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *app.Services) error {
				category, start, end, err := flags.parse(s.Reports.Location())
				if err != nil {
					return err
				}

				file, err := s.Reports.Export(ctx, category, start, end)
				if err != nil {
					return err
				}

				path := out
				if path == "" {
					path = file.Name
				}
				if err := os.WriteFile(path, file.Data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(file.Data))
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&out, "out", "", "output path (default: {type}_Report.xlsx)")
	return cmd
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func withServices(parent context.Context, fn func(ctx context.Context, s *app.Services) error) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(parent, cliTimeout)
	defer cancel()

	services, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := services.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}()

	return fn(ctx, services)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	application, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		return err
	}

	return application.Run()
}
