package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sanspareilsmyn/factorlens/internal/config"
	"github.com/sanspareilsmyn/factorlens/internal/message"
)

// Pipeline orchestrates the different stages: source, parsing, factor
// calculation, alerting. The first stage to fail stops the others.
type Pipeline struct {
	source     Source
	calculator *Calculator
	alerter    *Alerter
	logger     *zap.Logger

	rawMessages    chan []byte
	parsedMessages chan message.Tick
	results        chan FactorResult
}

// New creates and wires up a new factor pipeline reading from newSource.
func New(cfg *config.Config, newSource SourceFactory, logger *zap.Logger) (*Pipeline, error) {
	initLogger := logger.Named("pipeline.init")
	initLogger.Debug("Creating pipeline components...")

	bufferSize := cfg.Pipeline.ChannelBufferSize
	rawMessages := make(chan []byte, bufferSize)
	parsedMessages := make(chan message.Tick, bufferSize)
	results := make(chan FactorResult, bufferSize)
	initLogger.Debug("Channels created", zap.Int("bufferSize", bufferSize))

	source, err := newSource(rawMessages, logger.Named("consumer"))
	if err != nil {
		initLogger.Error("Failed to create source", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrConsumerCreationFailed, err)
	}

	specs, err := cfg.FactorSpecs()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCalculatorCreationFailed, err)
	}
	calculator, err := NewCalculator(cfg.Pipeline, specs, parsedMessages, results, logger.Named("calculator"))
	if err != nil {
		initLogger.Error("Failed to create calculator", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCalculatorCreationFailed, err)
	}

	alerter := NewAlerter(cfg.Factors, results, logger.Named("alerter"))

	p := &Pipeline{
		source:         source,
		calculator:     calculator,
		alerter:        alerter,
		logger:         logger.Named("pipeline"),
		rawMessages:    rawMessages,
		parsedMessages: parsedMessages,
		results:        results,
	}

	initLogger.Info("Pipeline instance created successfully")
	return p, nil
}

// Run starts all pipeline components and waits until the source is exhausted,
// ctx is cancelled or a component fails. Cancellation is not an error.
func (p *Pipeline) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	sugar.Info("Pipeline Run: Starting components...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.runSource(gctx) })
	g.Go(func() error { return p.runParser(gctx) })
	g.Go(func() error { return p.runCalculator(gctx) })
	g.Go(func() error { return p.runAlerter(gctx) })

	err := g.Wait()
	sugar.Info("Pipeline Run: All components finished.")

	if err != nil && !errors.Is(err, context.Canceled) {
		sugar.Errorw("Pipeline Run: component failed", zap.Error(err))
		return err
	}
	return nil
}

func (p *Pipeline) runSource(ctx context.Context) error {
	defer func() {
		close(p.rawMessages)
		p.logger.Debug("Raw messages channel closed")
	}()

	if err := p.source.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Source component exited with error", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrConsumerRunFailed, err)
	} else if err != nil {
		return err
	}
	p.logger.Debug("Source goroutine finished normally")
	return nil
}

// runParser decodes raw ticks; undecodable messages are skipped.
func (p *Pipeline) runParser(ctx context.Context) error {
	defer func() {
		close(p.parsedMessages)
		p.logger.Debug("Parsed messages channel closed")
	}()

	parserLogger := p.logger.Named("parser").Sugar()
	for {
		select {
		case raw, ok := <-p.rawMessages:
			if !ok {
				parserLogger.Debug("Parser finished (raw message channel closed).")
				return nil
			}

			tick, err := message.ParseTick(raw)
			if err != nil {
				parserLogger.Warnw("Failed to parse tick, skipping", zap.Error(err))
				ticksDropped.WithLabelValues("parse").Inc()
				continue
			}

			select {
			case p.parsedMessages <- tick:
			case <-ctx.Done():
				return ctx.Err()
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) runCalculator(ctx context.Context) error {
	defer func() {
		close(p.results)
		p.logger.Debug("Factor results channel closed")
	}()

	if err := p.calculator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Calculator component exited with error", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrCalculatorRunFailed, err)
	} else if err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) runAlerter(ctx context.Context) error {
	if err := p.alerter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Alerter component exited with error", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrAlerterRunFailed, err)
	} else if err != nil {
		return err
	}
	return nil
}
