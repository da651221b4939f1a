package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/factorlens/internal/config"
)

// Source feeds raw encoded ticks into the pipeline. Run returns nil when the
// source is exhausted and context.Canceled when stopped.
type Source interface {
	Run(ctx context.Context) error
}

// SourceFactory creates a source writing to output.
type SourceFactory func(output chan<- []byte, logger *zap.Logger) (Source, error)

// KafkaSource reads ticks from the configured topic.
func KafkaSource(cfg config.KafkaConfig) SourceFactory {
	return func(output chan<- []byte, logger *zap.Logger) (Source, error) {
		c, err := NewConsumer(cfg, output, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

type kafkaZapLogger struct {
	log *zap.Logger
}

func (l kafkaZapLogger) Printf(msg string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(msg, args...))
}

type kafkaZapErrorLogger struct {
	log *zap.Logger
}

func (l kafkaZapErrorLogger) Printf(msg string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(msg, args...))
}

// Consumer reads tick messages from a Kafka topic using kafka-go library.
type Consumer struct {
	reader *kafka.Reader
	output chan<- []byte
	logger *zap.Logger
}

// NewConsumer creates and configures a new Kafka consumer instance.
func NewConsumer(cfg config.KafkaConfig, output chan<- []byte, logger *zap.Logger) (*Consumer, error) {
	readerCfg, err := readerConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	r := kafka.NewReader(readerCfg)

	logger.Info("Kafka consumer created",
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.GroupID),
		zap.Strings("brokers", cfg.Brokers),
		zap.Bool("from_start", cfg.FromStart),
	)

	return &Consumer{
		reader: r,
		output: output,
		logger: logger,
	}, nil
}

// readerConfig validates cfg and maps it onto a group reader. Commits are
// explicit, so CommitInterval stays zero.
func readerConfig(cfg config.KafkaConfig, logger *zap.Logger) (kafka.ReaderConfig, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		logger.Error("Kafka configuration validation failed",
			zap.Strings("brokers", cfg.Brokers),
			zap.String("topic", cfg.Topic),
			zap.String("group_id", cfg.GroupID),
		)
		return kafka.ReaderConfig{}, ErrInvalidKafkaConfig
	}

	startOffset := kafka.LastOffset
	if cfg.FromStart {
		startOffset = kafka.FirstOffset
	}
	return kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: startOffset,
		Logger:      kafkaZapLogger{logger.Named("kafka-reader").WithOptions(zap.AddCallerSkip(1))},
		ErrorLogger: kafkaZapErrorLogger{logger.Named("kafka-reader-error").WithOptions(zap.AddCallerSkip(1))},
	}, nil
}

// Run starts the consumer message reading loop. Offsets are committed only
// after a message has been handed downstream, so a restart replays at most
// the messages still in flight.
func (c *Consumer) Run(ctx context.Context) error {
	sugar := c.logger.Sugar()
	sugar.Info("Starting Kafka consumer loop...")

	defer func() {
		if err := c.reader.Close(); err != nil {
			sugar.Errorw("Failed to close Kafka reader cleanly", zap.Error(err))
		}
		sugar.Info("Kafka consumer loop stopped.")
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Debug("Context cancelled or deadline exceeded, stopping consumer fetch loop.", zap.Error(err))
				return context.Canceled
			}
			c.logger.Error("Error fetching message from Kafka", zap.Error(err))
			return fmt.Errorf("%w: %w", ErrKafkaFetchFailed, err)
		}

		select {
		case c.output <- m.Value:
		case <-ctx.Done():
			c.logger.Debug("Context cancelled while sending message downstream.", zap.Error(ctx.Err()))
			return context.Canceled
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Warn("Failed to commit Kafka offset",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
		}
	}
}
