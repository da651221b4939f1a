package factor

import (
	"fmt"

	"github.com/sanspareilsmyn/factorlens/internal/online"
)

// Graph holds every factor of one instrument. Factors reading the same series
// share its cache and any intermediate node, so each step touches a cache
// once however many factors depend on it.
//
// A Graph is not safe for concurrent use.
type Graph struct {
	windowSize int
	series     []Series
	caches     map[Series]*online.Cache
	factors    []*factor
	version    uint64
}

// NewGraph builds the factors in specs over history, which must hold one
// window of equal length for every series the factors read. Weighted kinds
// use profile, which may be shared with other graphs.
func NewGraph(history map[Series][]float64, specs []Spec, profile *online.WeightProfile) (*Graph, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no factors", ErrInvalidFactor)
	}
	if err := ValidateSpecs(specs); err != nil {
		return nil, err
	}

	g := &Graph{
		series: RequiredSeries(specs),
		caches: make(map[Series]*online.Cache),
	}
	for _, s := range g.series {
		values, ok := history[s]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingSeries, s)
		}
		c, err := online.NewCache(values)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", s, err)
		}
		if g.windowSize == 0 {
			g.windowSize = c.WindowSize()
		} else if c.WindowSize() != g.windowSize {
			return nil, fmt.Errorf("%w: series %s has %d values, expected %d",
				online.ErrConstruction, s, c.WindowSize(), g.windowSize)
		}
		g.caches[s] = c
	}

	b := newBuilder(g.caches, profile)
	for _, spec := range specs {
		f, err := b.build(spec)
		if err != nil {
			return nil, fmt.Errorf("factor %q: %w", spec.Name, err)
		}
		g.factors = append(g.factors, f)
	}
	return g, nil
}

// Update slides every series by one batch. All series the graph reads must be
// present with the same length; otherwise nothing is applied.
func (g *Graph) Update(batch map[Series][]float64, version uint64) error {
	if version <= g.version {
		return nil
	}
	n := -1
	for _, s := range g.series {
		values, ok := batch[s]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingSeries, s)
		}
		if n < 0 {
			n = len(values)
		} else if len(values) != n {
			return fmt.Errorf("%w: series %s has %d values, expected %d", online.ErrShapeMismatch, s, len(values), n)
		}
	}
	if n > g.windowSize {
		return fmt.Errorf("%w: batch of %d for window of %d", online.ErrCapacity, n, g.windowSize)
	}

	for _, f := range g.factors {
		if err := f.update(batch, version); err != nil {
			return fmt.Errorf("%w: factor %q: %w", ErrUpdateFailed, f.spec.Name, err)
		}
	}
	g.version = version
	return nil
}

// Values maps each factor name to its current value.
func (g *Graph) Values() map[string]float64 {
	out := make(map[string]float64, len(g.factors))
	for _, f := range g.factors {
		out[f.spec.Name] = f.value()
	}
	return out
}

// Specs returns the factors in construction order.
func (g *Graph) Specs() []Spec {
	out := make([]Spec, len(g.factors))
	for i, f := range g.factors {
		out[i] = f.spec
	}
	return out
}

func (g *Graph) Series() []Series { return g.series }
func (g *Graph) WindowSize() int  { return g.windowSize }
func (g *Graph) Version() uint64  { return g.version }
