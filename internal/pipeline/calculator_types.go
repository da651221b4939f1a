package pipeline

import (
	"time"

	"github.com/sanspareilsmyn/factorlens/internal/factor"
	"github.com/sanspareilsmyn/factorlens/internal/ring"
)

// FactorResult is one factor value for one instrument after a step.
type FactorResult struct {
	Instrument string
	Factor     string
	Kind       factor.Kind
	Step       uint64
	Timestamp  time.Time
	Value      float64
}

// stepData is what the calculator keeps of a tick until its batch is applied.
type stepData struct {
	step      uint64
	timestamp time.Time
	market    float64
	values    map[string]map[factor.Series]float64 // instrument -> series -> value
}

// warmup collects an instrument's first window before its graph exists.
type warmup struct {
	windows map[factor.Series]*ring.Buffer[float64]
	filled  int
}

// liveInstrument is an instrument with a built graph. through is the last step
// the graph has seen.
type liveInstrument struct {
	graph   *factor.Graph
	through uint64
}

// updateTask is one instrument's share of a batch.
type updateTask struct {
	instrument string
	live       *liveInstrument
	batch      map[factor.Series][]float64
	err        error
}
