package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sanspareilsmyn/factorlens/internal/config"
	"github.com/sanspareilsmyn/factorlens/internal/factor"
	"github.com/sanspareilsmyn/factorlens/internal/message"
)

var testSpecs = []factor.Spec{
	{Name: "ret_mean", Kind: factor.KindMean, Series: factor.SeriesReturn},
	{Name: "beta", Kind: factor.KindBeta, Series: factor.SeriesReturn},
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{WindowSize: 3, BatchSize: 2, Workers: 2, ChannelBufferSize: 100}
}

// makeTick gives every instrument a return proportional to the step so that
// the cap-weighted market return is 1.5 times A's.
func makeTick(step uint64, instruments ...string) message.Tick {
	base := 0.01 * float64(step)
	scale := map[string]float64{"A": 1, "B": 2, "C": 1.5}
	tick := message.Tick{
		Step:        step,
		Timestamp:   time.Date(2024, 1, 1, 0, 0, int(step), 0, time.UTC),
		Instruments: make(map[string]message.Fields),
	}
	for _, name := range instruments {
		tick.Instruments[name] = message.Fields{"ret": scale[name] * base, "cap": 1.0}
	}
	return tick
}

// runCalculator feeds ticks through a calculator and returns every result.
func runCalculator(t *testing.T, cfg config.PipelineConfig, specs []factor.Spec, ticks []message.Tick) []FactorResult {
	t.Helper()
	input := make(chan message.Tick)
	output := make(chan FactorResult, 1000)
	calc, err := NewCalculator(cfg, specs, input, output, zaptest.NewLogger(t))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- calc.Run(context.Background()) }()
	for _, tick := range ticks {
		input <- tick
	}
	close(input)
	require.NoError(t, <-done)

	close(output)
	var results []FactorResult
	for r := range output {
		results = append(results, r)
	}
	return results
}

func lastValues(results []FactorResult) map[string]map[string]FactorResult {
	out := make(map[string]map[string]FactorResult)
	for _, r := range results {
		if out[r.Instrument] == nil {
			out[r.Instrument] = make(map[string]FactorResult)
		}
		out[r.Instrument][r.Factor] = r
	}
	return out
}

func stepsOf(results []FactorResult, instrument string) []uint64 {
	var steps []uint64
	for _, r := range results {
		if r.Instrument == instrument && r.Factor == "ret_mean" {
			steps = append(steps, r.Step)
		}
	}
	return steps
}

func TestCalculatorWarmupAndBatches(t *testing.T) {
	ticks := []message.Tick{
		makeTick(1, "A", "B"),
		makeTick(2, "A", "B"),
		makeTick(3, "A", "B"),
		makeTick(2, "A", "B"), // stale
		makeTick(4, "A", "B", "C"),
		makeTick(5, "A", "B", "C"),
		makeTick(6, "A", "B", "C"),
	}
	results := runCalculator(t, testPipelineConfig(), testSpecs, ticks)

	// Built at step 3, batch of steps 4-5, partial batch of step 6 flushed on close.
	assert.Equal(t, []uint64{3, 5, 6}, stepsOf(results, "A"))
	assert.Equal(t, []uint64{3, 5, 6}, stepsOf(results, "B"))
	// C warms up over steps 4-6 and is built on the last one.
	assert.Equal(t, []uint64{6}, stepsOf(results, "C"))

	last := lastValues(results)
	assert.InDelta(t, 0.05, last["A"]["ret_mean"].Value, 1e-12)
	assert.InDelta(t, 0.10, last["B"]["ret_mean"].Value, 1e-12)
	assert.InDelta(t, 0.075, last["C"]["ret_mean"].Value, 1e-12)

	assert.InDelta(t, 2.0/3.0, last["A"]["beta"].Value, 1e-9)
	assert.InDelta(t, 4.0/3.0, last["B"]["beta"].Value, 1e-9)
	assert.InDelta(t, 1.0, last["C"]["beta"].Value, 1e-9)

	assert.Equal(t, factor.KindBeta, last["A"]["beta"].Kind)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 6, 0, time.UTC), last["A"]["beta"].Timestamp)
}

func TestCalculatorMissingValuesAreExcluded(t *testing.T) {
	ticks := []message.Tick{
		makeTick(1, "A", "D"),
		makeTick(2, "A"),
		makeTick(3, "A"),
		makeTick(4, "A", "D"),
	}
	ticks[3].Instruments["D"] = message.Fields{"ret": nil, "cap": 1.0}

	cfg := testPipelineConfig()
	cfg.BatchSize = 1
	specs := []factor.Spec{{Name: "ret_mean", Kind: factor.KindMean, Series: factor.SeriesReturn}}
	results := runCalculator(t, cfg, specs, ticks)

	d := lastValues(results)["D"]["ret_mean"]
	assert.Equal(t, uint64(4), d.Step)
	assert.True(t, math.IsNaN(d.Value), "only step 1 had a value and it left the window")

	var atBuild FactorResult
	for _, r := range results {
		if r.Instrument == "D" && r.Step == 3 {
			atBuild = r
		}
	}
	assert.InDelta(t, 0.01, atBuild.Value, 1e-12)
}

func TestCalculatorEWMFactors(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.HalfLife = 0
	specs := []factor.Spec{
		{Name: "ret_mean", Kind: factor.KindEWMMean, Series: factor.SeriesReturn},
		{Name: "beta", Kind: factor.KindEWMBeta, Series: factor.SeriesReturn},
	}
	var ticks []message.Tick
	for step := uint64(1); step <= 7; step++ {
		ticks = append(ticks, makeTick(step, "A", "B"))
	}
	last := lastValues(runCalculator(t, cfg, specs, ticks))

	assert.Equal(t, uint64(7), last["A"]["ret_mean"].Step)
	assert.InDelta(t, 0.06, last["A"]["ret_mean"].Value, 1e-12)
	assert.InDelta(t, 2.0/3.0, last["A"]["beta"].Value, 1e-9)
}

func TestNewCalculatorErrors(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bad := []config.PipelineConfig{
		{WindowSize: 1, BatchSize: 1, Workers: 1},
		{WindowSize: 5, BatchSize: 0, Workers: 1},
		{WindowSize: 5, BatchSize: 6, Workers: 1},
		{WindowSize: 5, BatchSize: 1, Workers: 0},
	}
	for _, cfg := range bad {
		_, err := NewCalculator(cfg, testSpecs, nil, nil, logger)
		require.ErrorIs(t, err, ErrInvalidPipelineConfig)
	}

	_, err := NewCalculator(testPipelineConfig(), []factor.Spec{{Name: "x", Kind: "median", Series: factor.SeriesReturn}}, nil, nil, logger)
	require.ErrorIs(t, err, factor.ErrUnknownKind)
}

func TestCalculatorStopsOnCancel(t *testing.T) {
	input := make(chan message.Tick, 3)
	output := make(chan FactorResult) // nobody reads
	calc, err := NewCalculator(testPipelineConfig(), testSpecs, input, output, zaptest.NewLogger(t))
	require.NoError(t, err)

	for step := uint64(1); step <= 3; step++ {
		input <- makeTick(step, "A")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- calc.Run(ctx) }()

	// Building A's graph on step 3 blocks on the unread output.
	time.Sleep(10 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
