package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sitesmith/sitesmith/internal/llm"
	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/pipeline"
	"github.com/sitesmith/sitesmith/internal/projectconfig"
	"github.com/sitesmith/sitesmith/internal/stages"
	"github.com/sitesmith/sitesmith/internal/store"
	"github.com/sitesmith/sitesmith/internal/webapi"
	"github.com/sitesmith/sitesmith/internal/webserver"
)

func newServeCommand() *cobra.Command {
	var port int
	var outputDir string
	var allowOrigins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the build pipeline HTTP server",
		Long: `Start the build pipeline HTTP server.

The server exposes a REST API under /api/v1 for creating builds, approving
checkpoints, streaming progress over SSE, and downloading finished archives.

Configuration is read from .sitesmith.yaml (searched upward from the current
directory); flags override file values. The completion API key is read from
the ` + projectconfig.APIKeyEnvVar + ` environment variable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := projectconfig.Load(".")
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if outputDir != "" {
				cfg.Server.OutputDir = outputDir
			}

			apiKey := projectconfig.APIKey()
			if apiKey == "" {
				return fmt.Errorf("%s environment variable is not set", projectconfig.APIKeyEnvVar)
			}

			if err := os.MkdirAll(cfg.Server.OutputDir, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := llm.NewHTTPClient(apiKey, cfg.Pipeline.BaseURL)
			stageSet := stages.New(client, stages.Config{
				GatekeeperModel: cfg.Models.Gatekeeper,
				ArchitectModel:  cfg.Models.Architect,
				BuilderModel:    cfg.Models.Builder,
				AuditorModel:    cfg.Models.Auditor,

				GatekeeperTemperature: *cfg.Temperatures.Gatekeeper,
				ArchitectTemperature:  *cfg.Temperatures.Architect,
				BuilderTemperature:    *cfg.Temperatures.Builder,
				AuditorTemperature:    *cfg.Temperatures.Auditor,

				BuilderConcurrency: cfg.Pipeline.BuilderConcurrency,
				OutputDir:          cfg.Server.OutputDir,
			})

			st := store.New()
			broadcaster := pipeline.NewBroadcaster()
			st.OnCommit(func(task *models.Task, patch store.Patch, seq int64) {
				broadcaster.Publish(task.ID, pipeline.SnapshotFromCommit(task, patch, seq))
			})

			retry := &pipeline.RetryController{MaxRetries: *cfg.Pipeline.MaxRetries}
			executor := pipeline.NewExecutor(ctx, st, stageSet.Registry(), retry)
			gate := pipeline.NewGate(st, executor.Schedule)
			executor.SetGate(gate)

			handlers := webapi.NewHandlers(st, gate, broadcaster, executor, stageSet)
			server := webserver.New(webserver.Config{
				Port:           cfg.Server.Port,
				AllowedOrigins: allowOrigins,
				Logger:         slog.Default(),
			}, handlers)

			return server.ListenAndServe(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP port to listen on (overrides config file)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for packaged zip artifacts (overrides config file)")
	cmd.Flags().StringSliceVar(&allowOrigins, "allow-origin", nil,
		"Origin allowed to make cross-origin requests (repeatable)")

	return cmd
}
