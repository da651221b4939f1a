package pipeline

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/factorlens/internal/config"
)

// Alerter publishes factor results as gauges and checks them against the
// configured thresholds.
type Alerter struct {
	thresholds map[string]config.Thresholds
	input      <-chan FactorResult
	logger     *zap.Logger
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(factors []config.FactorConfig, input <-chan FactorResult, logger *zap.Logger) *Alerter {
	thresholds := make(map[string]config.Thresholds, len(factors))
	for _, f := range factors {
		thresholds[f.Name] = f.Thresholds
	}

	logger.Debug("Alerter initialized", zap.Int("factor_count", len(thresholds)))

	return &Alerter{
		thresholds: thresholds,
		input:      input,
		logger:     logger,
	}
}

// Run starts the alerter's processing loop, checking results against thresholds.
func (a *Alerter) Run(ctx context.Context) error {
	sugar := a.logger.Sugar()
	sugar.Info("Starting alerter loop...")
	defer sugar.Info("Alerter loop stopped.")

	for {
		select {
		case result, ok := <-a.input:
			if !ok {
				sugar.Info("Alerter input channel closed.")
				return nil
			}
			a.processResult(result)

		case <-ctx.Done():
			sugar.Info("Context cancelled, stopping alerter.")
			return ctx.Err()
		}
	}
}

// processResult updates the factor gauge, checks thresholds and logs the value.
func (a *Alerter) processResult(result FactorResult) {
	sugar := a.logger.Sugar()

	thresholds, exists := a.thresholds[result.Factor]
	if !exists {
		sugar.Warnw("Received result for unconfigured factor, skipping metric update",
			zap.String("instrument", result.Instrument),
			zap.String("factor", result.Factor),
			zap.Uint64("step", result.Step),
		)
		return
	}

	factorValue.WithLabelValues(result.Instrument, result.Factor).Set(result.Value)

	if !math.IsNaN(result.Value) {
		a.checkBound(sugar, result, thresholds.Min, "<")
		a.checkBound(sugar, result, thresholds.Max, ">")
	}

	a.logStats(sugar, result)
}

// checkBound flags result when it lies beyond threshold in the given direction.
func (a *Alerter) checkBound(sugar *zap.SugaredLogger, result FactorResult, threshold *float64, comparison string) {
	if threshold == nil {
		return
	}
	violated := result.Value < *threshold
	if comparison == ">" {
		violated = result.Value > *threshold
	}
	if !violated {
		return
	}
	sugar.Warnw("Factor threshold violation",
		zap.String("instrument", result.Instrument),
		zap.String("factor", result.Factor),
		zap.Uint64("step", result.Step),
		zap.Float64("actual", result.Value),
		zap.Float64("threshold", *threshold),
		zap.String("comparison", comparison),
	)
	factorThresholdViolations.WithLabelValues(result.Factor, comparison).Inc()
}

func (a *Alerter) logStats(sugar *zap.SugaredLogger, result FactorResult) {
	fields := []interface{}{
		zap.String("instrument", result.Instrument),
		zap.String("factor", result.Factor),
		zap.String("kind", string(result.Kind)),
		zap.Uint64("step", result.Step),
	}
	if !result.Timestamp.IsZero() {
		fields = append(fields, zap.Time("timestamp", result.Timestamp))
	}
	if !math.IsNaN(result.Value) {
		fields = append(fields, zap.Float64("value", result.Value))
	}

	sugar.Debugw("Factor value processed", fields...)
}
