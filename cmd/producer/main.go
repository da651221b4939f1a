package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/factorlens/internal/message"
)

type options struct {
	broker      string
	topic       string
	output      string
	instruments int
	steps       uint64
	interval    time.Duration
	seed        int64
}

func main() {
	opts := options{}
	cmd := &cobra.Command{
		Use:          "producer",
		Short:        "Produces synthetic market ticks to Kafka or a JSON-lines file",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.broker, "broker", "localhost:9092", "Kafka broker address")
	flags.StringVar(&opts.topic, "topic", "tick-stream", "Kafka topic")
	flags.StringVar(&opts.output, "out", "", "Write ticks to this JSON-lines file instead of Kafka")
	flags.IntVar(&opts.instruments, "instruments", 20, "Number of synthetic instruments")
	flags.Uint64Var(&opts.steps, "steps", 0, "Stop after this many steps (0 runs until interrupted)")
	flags.DurationVar(&opts.interval, "interval", time.Second, "Delay between Kafka ticks")
	flags.Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "Random seed")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run(parent context.Context, opts options) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	market := newMarket(rand.New(rand.NewSource(opts.seed)), opts.instruments)
	if opts.output != "" {
		return writeFile(ctx, opts, market, logger)
	}
	return produce(ctx, opts, market, logger)
}

// writeFile dumps ticks as fast as they are generated, for factorlens replay.
func writeFile(ctx context.Context, opts options, m *market, logger *zap.Logger) error {
	if opts.steps == 0 {
		return errors.New("--steps is required with --out")
	}
	f, err := os.Create(opts.output)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for step := uint64(1); step <= opts.steps; step++ {
		if ctx.Err() != nil {
			break
		}
		raw, err := message.EncodeTick(m.tick(step, time.Now()))
		if err != nil {
			return err
		}
		if _, err := w.Write(append(raw, '\n')); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	logger.Info("Wrote tick file", zap.String("path", opts.output), zap.Uint64("steps", opts.steps))
	return nil
}

func produce(ctx context.Context, opts options, m *market, logger *zap.Logger) error {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(opts.broker),
		Topic:    opts.topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("Error closing kafka writer", zap.Error(err))
		}
	}()
	logger.Info("Starting tick producer", zap.String("topic", opts.topic), zap.String("broker", opts.broker))

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for step := uint64(1); opts.steps == 0 || step <= opts.steps; {
		select {
		case now := <-ticker.C:
			raw, err := message.EncodeTick(m.tick(step, now))
			if err != nil {
				return err
			}
			if err := writer.WriteMessages(ctx, kafka.Message{Value: raw}); err != nil {
				if ctx.Err() != nil {
					logger.Info("Context cancelled, exiting producer loop.")
					return nil
				}
				logger.Warn("Error writing tick", zap.Uint64("step", step), zap.Error(err))
				continue
			}
			logger.Debug("Produced tick", zap.Uint64("step", step), zap.Int("bytes", len(raw)))
			step++

		case <-ctx.Done():
			logger.Info("Producer loop stopped.")
			return nil
		}
	}
	return nil
}
