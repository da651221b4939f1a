package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sanspareilsmyn/factorlens/internal/config"
	"github.com/sanspareilsmyn/factorlens/internal/logging"
	"github.com/sanspareilsmyn/factorlens/internal/pipeline"
)

var configFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "factorlens",
		Short: "Streams rolling factor statistics for every instrument in a tick feed",
		Long: "factorlens consumes per-step market ticks from Kafka, keeps windowed and " +
			"exponentially weighted statistics per instrument up to date incrementally, " +
			"and exports them as Prometheus gauges with threshold alerts.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), func(cfg *config.Config) pipeline.SourceFactory {
				return pipeline.KafkaSource(cfg.Kafka)
			})
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "configs/config.dev.yaml", "Path to the configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "replay <ticks.jsonl>",
		Short: "Runs the pipeline over a recorded JSON-lines tick file and exits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), func(*config.Config) pipeline.SourceFactory {
				return pipeline.ReplaySource(args[0])
			})
		},
	})
	return root
}

// execute loads configuration, starts the metrics endpoint and runs the
// pipeline until its source is exhausted or a shutdown signal arrives.
func execute(parent context.Context, source func(*config.Config) pipeline.SourceFactory) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configFile, err)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Flush buffered logs on exit
	}()

	sugar := logger.Sugar()
	sugar.Infow("Logger initialized",
		"level", cfg.Log.Level,
		"format", cfg.Log.Format,
	)
	sugar.Infow("Configuration loaded successfully", "path", configFile, "factors", len(cfg.Factors))

	// Initialize Pipeline
	pipe, err := pipeline.New(cfg, source(cfg), logger)
	if err != nil {
		sugar.Errorw("Failed to initialize pipeline", zap.Error(err))
		return err
	}

	// Handle Graceful Shutdown
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		select {
		case sig := <-signals:
			sugar.Infow("Received signal, initiating shutdown...", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	stopMetrics := serveMetrics(cfg.Metrics, logger.Named("metrics"))
	defer stopMetrics()

	sugar.Info("Starting factor pipeline...")
	runErr := pipe.Run(ctx)

	// Evaluate Pipeline Result
	finalLogLevel := zapcore.InfoLevel
	shutdownReason := "gracefully"
	var finalErrorField = zap.Skip()

	switch {
	case runErr == nil:
		sugar.Info("Pipeline execution completed without error.")
	case errors.Is(runErr, context.Canceled):
		sugar.Info("Pipeline execution cancelled (expected on shutdown).")
		runErr = nil
	default:
		shutdownReason = "due to error"
		finalLogLevel = zapcore.ErrorLevel
		finalErrorField = zap.Error(runErr)
	}

	logger.Log(finalLogLevel, fmt.Sprintf("Pipeline shutdown %s.", shutdownReason),
		zap.String("reason", shutdownReason),
		finalErrorField,
	)
	sugar.Info("FactorLens finished.")
	return runErr
}
