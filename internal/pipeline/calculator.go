package pipeline

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sanspareilsmyn/factorlens/internal/config"
	"github.com/sanspareilsmyn/factorlens/internal/factor"
	"github.com/sanspareilsmyn/factorlens/internal/message"
	"github.com/sanspareilsmyn/factorlens/internal/online"
	"github.com/sanspareilsmyn/factorlens/internal/ring"
)

// Calculator owns every instrument's factor graph. Ticks arrive in step order;
// each instrument fills one window before its graph is built, and from then on
// steps are applied in batches of cfg.BatchSize, one goroutine per instrument.
type Calculator struct {
	cfg     config.PipelineConfig
	specs   []factor.Spec
	inputs  []factor.Series // series read from ticks; market is derived
	profile *online.WeightProfile
	input   <-chan message.Tick
	output  chan<- FactorResult
	logger  *zap.Logger

	lastStep uint64
	market   *ring.Buffer[float64]
	warming  map[string]*warmup
	live     map[string]*liveInstrument
	excluded map[string]struct{}
	pending  []stepData
}

// NewCalculator creates a new Calculator instance.
func NewCalculator(cfg config.PipelineConfig, specs []factor.Spec, input <-chan message.Tick, output chan<- FactorResult, logger *zap.Logger) (*Calculator, error) {
	if cfg.WindowSize < 2 || cfg.BatchSize < 1 || cfg.BatchSize > cfg.WindowSize || cfg.Workers < 1 {
		return nil, fmt.Errorf("%w: window %d, batch %d, workers %d",
			ErrInvalidPipelineConfig, cfg.WindowSize, cfg.BatchSize, cfg.Workers)
	}
	if err := factor.ValidateSpecs(specs); err != nil {
		return nil, err
	}
	market, err := ring.New[float64](cfg.WindowSize)
	if err != nil {
		return nil, err
	}

	var profile *online.WeightProfile
	if slices.ContainsFunc(specs, func(s factor.Spec) bool { return s.Kind.Weighted() }) {
		profile, err = online.NewWeightProfile(cfg.WindowSize, cfg.HalfLife)
		if err != nil {
			return nil, err
		}
	}

	var inputs []factor.Series
	for _, s := range factor.RequiredSeries(specs) {
		if s != factor.SeriesMarket {
			inputs = append(inputs, s)
		}
	}

	c := &Calculator{
		cfg:      cfg,
		specs:    specs,
		inputs:   inputs,
		profile:  profile,
		input:    input,
		output:   output,
		logger:   logger,
		market:   market,
		warming:  make(map[string]*warmup),
		live:     make(map[string]*liveInstrument),
		excluded: make(map[string]struct{}),
	}
	logger.Info("Calculator initialized",
		zap.Int("window_size", cfg.WindowSize),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Float64("half_life", cfg.HalfLife),
		zap.Int("workers", cfg.Workers),
		zap.Int("configured_factors", len(specs)),
	)
	return c, nil
}

// Run starts the calculator's processing loop. When the input closes, steps
// still waiting for a full batch are applied before returning.
func (c *Calculator) Run(ctx context.Context) error {
	sugar := c.logger.Sugar()
	sugar.Info("Starting calculator loop...")
	defer sugar.Info("Calculator loop stopped.")

	for {
		select {
		case tick, ok := <-c.input:
			if !ok {
				sugar.Info("Calculator input channel closed. Applying pending steps...")
				return c.flush(ctx)
			}
			if err := c.processTick(ctx, tick); err != nil {
				return err
			}

		case <-ctx.Done():
			sugar.Info("Context cancelled, stopping calculator.")
			return ctx.Err()
		}
	}
}

func (c *Calculator) processTick(ctx context.Context, tick message.Tick) error {
	if tick.Step <= c.lastStep {
		c.logger.Warn("Dropping tick with non-increasing step",
			zap.Uint64("step", tick.Step),
			zap.Uint64("last_step", c.lastStep),
		)
		ticksDropped.WithLabelValues("stale_step").Inc()
		return nil
	}
	c.lastStep = tick.Step

	data := stepData{
		step:      tick.Step,
		timestamp: tick.Timestamp,
		market:    c.marketReturn(tick),
		values:    make(map[string]map[factor.Series]float64, len(tick.Instruments)),
	}
	for instrument, fields := range tick.Instruments {
		data.values[instrument] = c.extractValues(instrument, tick.Step, fields)
	}
	c.market.PushPop(data.market)

	for instrument := range tick.Instruments {
		c.track(instrument)
	}
	if err := c.advanceWarmups(ctx, data); err != nil {
		return err
	}
	instrumentsWarming.Set(float64(len(c.warming)))

	if !c.needsStep(data.step) {
		return nil
	}
	c.pending = append(c.pending, data)
	if len(c.pending) < c.cfg.BatchSize {
		return nil
	}
	return c.flush(ctx)
}

// needsStep reports whether some live graph has not yet seen step.
func (c *Calculator) needsStep(step uint64) bool {
	for _, live := range c.live {
		if live.through < step {
			return true
		}
	}
	return false
}

// track starts a warm-up window for an instrument seen for the first time.
func (c *Calculator) track(instrument string) {
	if _, ok := c.live[instrument]; ok {
		return
	}
	if _, ok := c.warming[instrument]; ok {
		return
	}
	if _, ok := c.excluded[instrument]; ok {
		return
	}
	w := &warmup{windows: make(map[factor.Series]*ring.Buffer[float64], len(c.inputs))}
	for _, s := range c.inputs {
		w.windows[s], _ = ring.New[float64](c.cfg.WindowSize) // capacity checked in NewCalculator
	}
	c.warming[instrument] = w
	c.logger.Debug("Tracking new instrument", zap.String("instrument", instrument))
}

// advanceWarmups pushes the step into every warm-up window and builds the
// graphs whose window is now full. Instruments absent from the step get NaN.
func (c *Calculator) advanceWarmups(ctx context.Context, data stepData) error {
	for _, instrument := range slices.Sorted(maps.Keys(c.warming)) {
		w := c.warming[instrument]
		values := data.values[instrument]
		for s, window := range w.windows {
			v, ok := values[s]
			if !ok {
				v = math.NaN()
			}
			window.PushPop(v)
		}
		w.filled++
		if w.filled < c.cfg.WindowSize {
			continue
		}

		delete(c.warming, instrument)
		graph, err := c.buildGraph(w)
		if err != nil {
			c.exclude(instrument, "init", err)
			continue
		}
		live := &liveInstrument{graph: graph, through: data.step}
		c.live[instrument] = live
		instrumentsActive.Set(float64(len(c.live)))
		c.logger.Info("Factor graph built",
			zap.String("instrument", instrument),
			zap.Uint64("step", data.step),
		)
		if err := c.emit(ctx, instrument, live, data.step, data.timestamp); err != nil {
			return err
		}
	}
	return nil
}

func (c *Calculator) buildGraph(w *warmup) (*factor.Graph, error) {
	history := make(map[factor.Series][]float64, len(w.windows)+1)
	for s, window := range w.windows {
		history[s] = window.Slice()
	}
	history[factor.SeriesMarket] = c.market.Slice()
	return factor.NewGraph(history, c.specs, c.profile)
}

// flush applies every pending step to the live graphs. Each graph only sees
// the steps after the one it was built or last updated on.
func (c *Calculator) flush(ctx context.Context) error {
	if len(c.pending) == 0 {
		return nil
	}
	last := c.pending[len(c.pending)-1]
	tasks := c.buildTasks()
	c.pending = c.pending[:0]
	if len(tasks) == 0 {
		return nil
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, task := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			task.err = task.live.graph.Update(task.batch, last.step)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	batchApplySeconds.Observe(time.Since(start).Seconds())

	for _, task := range tasks {
		if task.err != nil {
			delete(c.live, task.instrument)
			c.exclude(task.instrument, "update", task.err)
			continue
		}
		task.live.through = last.step
		if err := c.emit(ctx, task.instrument, task.live, last.step, last.timestamp); err != nil {
			return err
		}
	}
	instrumentsActive.Set(float64(len(c.live)))
	c.logger.Debug("Batch applied",
		zap.Uint64("step", last.step),
		zap.Int("instruments", len(tasks)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (c *Calculator) buildTasks() []*updateTask {
	tasks := make([]*updateTask, 0, len(c.live))
	for _, instrument := range slices.Sorted(maps.Keys(c.live)) {
		live := c.live[instrument]
		batch := make(map[factor.Series][]float64, len(c.inputs)+1)
		for _, data := range c.pending {
			if data.step <= live.through {
				continue
			}
			values := data.values[instrument]
			for _, s := range c.inputs {
				v, ok := values[s]
				if !ok {
					v = math.NaN()
				}
				batch[s] = append(batch[s], v)
			}
			batch[factor.SeriesMarket] = append(batch[factor.SeriesMarket], data.market)
		}
		if len(batch[factor.SeriesMarket]) == 0 {
			continue
		}
		tasks = append(tasks, &updateTask{instrument: instrument, live: live, batch: batch})
	}
	return tasks
}

func (c *Calculator) exclude(instrument, stage string, err error) {
	c.excluded[instrument] = struct{}{}
	instrumentsExcluded.WithLabelValues(stage).Inc()
	c.logger.Warn("Excluding instrument",
		zap.String("instrument", instrument),
		zap.String("stage", stage),
		zap.Error(err),
	)
}

// emit sends the instrument's current factor values downstream.
func (c *Calculator) emit(ctx context.Context, instrument string, live *liveInstrument, step uint64, ts time.Time) error {
	values := live.graph.Values()
	for _, spec := range live.graph.Specs() {
		result := FactorResult{
			Instrument: instrument,
			Factor:     spec.Name,
			Kind:       spec.Kind,
			Step:       step,
			Timestamp:  ts,
			Value:      values[spec.Name],
		}
		select {
		case c.output <- result:
		case <-ctx.Done():
			return fmt.Errorf("sending result for %s: %w", instrument, ctx.Err())
		}
	}
	return nil
}
