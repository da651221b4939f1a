// Package online implements incremental windowed statistics.
//
// Nodes are wired bottom-up into a DAG: caches hold the raw windows, sums read
// caches, means and variances read sums, and correlation and skew sit on top.
// Every Update carries a version; a node that has already applied a version
// returns immediately, so a dependency shared by several parents does its work
// once per step.
//
// Nothing in this package is safe for concurrent use. A DAG must be driven by a
// single goroutine, with one strictly increasing version per step. Independent
// DAGs may run in parallel and may share a WeightProfile, which is read-only.
package online

import (
	"fmt"
	"math"
)

// Node is the read side every aggregator exposes.
type Node interface {
	// Value is the current statistic. NaN means undefined for this window.
	Value() float64
	// WindowSize is fixed at construction.
	WindowSize() int
}

// SeriesNode is a node fed by a single series.
type SeriesNode interface {
	Node
	Update(batch []float64, version uint64) error
}

// PairNode is a node fed by two aligned series.
type PairNode interface {
	Node
	Update(x, y []float64, version uint64) error
}

type versioned struct {
	version uint64
}

// applied reports whether version was already processed.
func (v *versioned) applied(version uint64) bool { return version <= v.version }

func (v *versioned) mark(version uint64) { v.version = version }

// Version is the last version this node applied.
func (v *versioned) Version() uint64 { return v.version }

// checkBatch validates aligned batches against a window before any dependency
// is touched, so a rejected update leaves the whole DAG unchanged.
func checkBatch(windowSize int, batches ...[]float64) error {
	n := len(batches[0])
	for _, b := range batches[1:] {
		if len(b) != n {
			return fmt.Errorf("%w: %d vs %d", ErrShapeMismatch, n, len(b))
		}
	}
	if n > windowSize {
		return fmt.Errorf("%w: batch of %d for window of %d", ErrCapacity, n, windowSize)
	}
	return nil
}

func sameWindow(kind string, nodes ...interface{ WindowSize() int }) (int, error) {
	w := nodes[0].WindowSize()
	for _, n := range nodes[1:] {
		if n.WindowSize() != w {
			return 0, fmt.Errorf("%w: %s inputs have window sizes %d and %d", ErrConstruction, kind, w, n.WindowSize())
		}
	}
	return w, nil
}

// product writes the elementwise product of legs into dst. Any missing leg
// makes the product non-finite, which the accumulators then skip.
func product(dst []float64, legs ...[]float64) []float64 {
	dst = dst[:0]
	for i := range legs[0] {
		p := legs[0][i]
		for _, leg := range legs[1:] {
			p *= leg[i]
		}
		dst = append(dst, p)
	}
	return dst
}

// finite reports whether v takes part in a statistic. NaN marks a missing
// sample; ±Inf is skipped too, since once added it could never be evicted.
func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// sumValid returns the sum and count of the finite values.
func sumValid(values []float64) (sum float64, n int) {
	for _, v := range values {
		if !finite(v) {
			continue
		}
		sum += v
		n++
	}
	return sum, n
}

// pairSums holds the moments of the complete pairs of two aligned windows,
// the pairs where both values are finite.
type pairSums struct {
	n                int
	x, y, xx, yy, xy float64
}

// add folds the complete pairs of x and y in with the given sign: +1 for
// incoming samples, -1 for evicted ones.
func (p *pairSums) add(x, y []float64, sign float64) {
	for i := range x {
		if !finite(x[i]) || !finite(y[i]) {
			continue
		}
		p.n += int(sign)
		p.x += sign * x[i]
		p.y += sign * y[i]
		p.xx += sign * x[i] * x[i]
		p.yy += sign * y[i] * y[i]
		p.xy += sign * x[i] * y[i]
	}
}

// variances are the sample variances of each side over the complete pairs.
func (p *pairSums) variances() (varX, varY float64) {
	n := float64(p.n)
	if n < 2 {
		return math.NaN(), math.NaN()
	}
	varX = math.Max(0, (p.xx-p.x*p.x/n)/(n-1))
	varY = math.Max(0, (p.yy-p.y*p.y/n)/(n-1))
	return varX, varY
}

// paired copies values into dst, replacing with NaN every entry whose partner
// in other is missing.
func paired(dst, values, other []float64) []float64 {
	dst = dst[:0]
	for i, v := range values {
		if !finite(other[i]) {
			v = math.NaN()
		}
		dst = append(dst, v)
	}
	return dst
}

func countPairs(x, y []float64) int {
	n := 0
	for i := range x {
		if finite(x[i]) && finite(y[i]) {
			n++
		}
	}
	return n
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

var (
	_ SeriesNode = (*Sum)(nil)
	_ SeriesNode = (*Mean)(nil)
	_ SeriesNode = (*Variance)(nil)
	_ SeriesNode = (*Skew)(nil)
	_ SeriesNode = (*EWMSum)(nil)
	_ SeriesNode = (*EWMMean)(nil)
	_ SeriesNode = (*EWMVar)(nil)
	_ SeriesNode = (*EWMSkew)(nil)
	_ PairNode   = (*SumProduct)(nil)
	_ PairNode   = (*Covariance)(nil)
	_ PairNode   = (*Correlation)(nil)
	_ PairNode   = (*EWMSumProduct)(nil)
	_ PairNode   = (*EWMCov)(nil)
)
