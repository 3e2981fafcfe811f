package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/USA-RedDragon/crashgate/internal/archive"
	"github.com/USA-RedDragon/crashgate/internal/config"
	"github.com/USA-RedDragon/crashgate/internal/db"
	"github.com/USA-RedDragon/crashgate/internal/metrics"
	"github.com/USA-RedDragon/crashgate/internal/pipeline"
	"github.com/USA-RedDragon/crashgate/internal/platform"
	"github.com/USA-RedDragon/crashgate/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const (
	targetFlag = "target"
	outputFlag = "output"

	pushTimeout = 10 * time.Second
)

func newPostbuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postbuild",
		Short: "Upload debug symbols after a player build",
		Long: "Runs after the engine finished a player build. Symbol upload problems are " +
			"logged and never fail the build.",
		RunE: runPostbuild,
	}
	cmd.Flags().String(targetFlag, "", "Build target (StandaloneWindows64, StandaloneWindows, iOS)")
	cmd.Flags().String(outputFlag, "", "Path the build was written to")
	return cmd
}

func runPostbuild(cmd *cobra.Command, _ []string) error {
	annotations := cmd.Root().Annotations
	slog.Info("crashgate postbuild", "version", annotations["version"], "commit", annotations["commit"])

	cfg, err := loadConfig(cmd)
	if err != nil {
		slog.Error("Skipping symbol upload", "error", err)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Skipping symbol upload, config validation failed", "error", err)
		return nil
	}

	targetName, _ := cmd.Flags().GetString(targetFlag)
	outputPath, _ := cmd.Flags().GetString(outputFlag)
	target := platform.ParseTarget(targetName)

	ctx := cmd.Context()
	registry := prometheus.NewRegistry()
	deps := pipeline.Deps{Metrics: metrics.NewMetrics(registry)}

	if cfg.Persistence.Database.Enabled {
		database, err := db.MakeDB(cfg)
		if err != nil {
			slog.Error("Upload history disabled, failed to open database", "error", err)
		} else {
			defer func() {
				if err := db.Close(database); err != nil {
					slog.Debug("Failed to close database", "error", err)
				}
			}()
			deps.DB = database
		}
	}

	if cfg.Persistence.Archive.Enabled {
		store, err := storage.NewStorage(ctx, cfg)
		if err != nil {
			slog.Error("Symbol archive disabled, failed to open storage", "error", err)
		} else {
			defer func() {
				if err := store.Close(); err != nil {
					slog.Debug("Failed to close storage", "error", err)
				}
			}()
			deps.Archiver = archive.New(store)
		}
	}

	outcome := pipeline.New(cfg, deps).Run(ctx, target, outputPath)
	slog.Info("Postbuild finished", "target", target, "outcome", outcome)

	pushMetrics(ctx, cfg, registry)
	return nil
}

func pushMetrics(ctx context.Context, cfg *config.Config, registry *prometheus.Registry) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()
	if err := metrics.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, registry); err != nil {
		slog.Warn("Failed to push build metrics", "error", err)
	}
}
