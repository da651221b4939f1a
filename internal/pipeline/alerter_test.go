package pipeline

import (
	"context"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sanspareilsmyn/factorlens/internal/config"
	"github.com/sanspareilsmyn/factorlens/internal/factor"
)

func ptr(v float64) *float64 { return &v }

func TestAlerterThresholds(t *testing.T) {
	factors := []config.FactorConfig{
		{Name: "alert_vol", Kind: "volatility", Series: "ret", Thresholds: config.Thresholds{Min: ptr(0.01), Max: ptr(0.05)}},
		{Name: "alert_mean", Kind: "mean", Series: "ret"},
	}
	below := factorThresholdViolations.WithLabelValues("alert_vol", "<")
	above := factorThresholdViolations.WithLabelValues("alert_vol", ">")
	belowBefore, aboveBefore := testutil.ToFloat64(below), testutil.ToFloat64(above)

	input := make(chan FactorResult, 10)
	input <- FactorResult{Instrument: "AAA", Factor: "alert_vol", Kind: factor.KindVolatility, Step: 1, Value: 0.005}
	input <- FactorResult{Instrument: "AAA", Factor: "alert_vol", Kind: factor.KindVolatility, Step: 2, Value: 0.03}
	input <- FactorResult{Instrument: "BBB", Factor: "alert_vol", Kind: factor.KindVolatility, Step: 2, Value: 0.09}
	input <- FactorResult{Instrument: "BBB", Factor: "alert_vol", Kind: factor.KindVolatility, Step: 3, Value: math.NaN()}
	input <- FactorResult{Instrument: "AAA", Factor: "alert_mean", Kind: factor.KindMean, Step: 2, Value: 7}
	input <- FactorResult{Instrument: "AAA", Factor: "unknown", Step: 2, Value: 1}
	close(input)

	a := NewAlerter(factors, input, zaptest.NewLogger(t))
	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(below)-belowBefore)
	assert.Equal(t, 1.0, testutil.ToFloat64(above)-aboveBefore)

	assert.Equal(t, 0.03, testutil.ToFloat64(factorValue.WithLabelValues("AAA", "alert_vol")))
	assert.True(t, math.IsNaN(testutil.ToFloat64(factorValue.WithLabelValues("BBB", "alert_vol"))))
	assert.Equal(t, 7.0, testutil.ToFloat64(factorValue.WithLabelValues("AAA", "alert_mean")))
}

func TestAlerterStopsOnCancel(t *testing.T) {
	a := NewAlerter(nil, make(chan FactorResult), zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, a.Run(ctx), context.Canceled)
}
