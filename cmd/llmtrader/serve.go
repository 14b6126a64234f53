package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/api"
	"github.com/shinmindoree/llmtradingtest/internal/app"
	"github.com/shinmindoree/llmtradingtest/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	var reg *metrics.Registry
	var opts []app.Option
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		opts = append(opts, app.WithMetrics(reg))
	}

	runner, err := app.New(cfg, log, opts...)
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}
	defer runner.Close()

	server, err := api.NewServer(cfg.Server, api.Dependencies{
		Runner:      runner,
		Metrics:     reg,
		MetricsPath: cfg.Metrics.Path,
	}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	log.Info("starting llmtrader server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("auth", cfg.Server.APIKey != ""),
		zap.Bool("metrics", reg != nil))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal
	select {
	case <-cmd.Context().Done():
	case err := <-errCh:
		return err
	}

	log.Info("shutting down llmtrader server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
