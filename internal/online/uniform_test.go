package online

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(from, to float64) []float64 {
	var out []float64
	if from <= to {
		for v := from; v <= to; v++ {
			out = append(out, v)
		}
		return out
	}
	for v := from; v >= to; v-- {
		out = append(out, v)
	}
	return out
}

func TestSum(t *testing.T) {
	c, err := NewCache(seq(1, 5))
	require.NoError(t, err)
	s, err := NewSum(c)
	require.NoError(t, err)
	assert.Equal(t, 15.0, s.Value())
	assert.Equal(t, 5, s.Count())

	require.NoError(t, s.Update([]float64{6}, 1))
	assert.Equal(t, 20.0, s.Value())
	assert.Equal(t, []float64{2, 3, 4, 5, 6}, c.Values())

	require.NoError(t, s.Update([]float64{7, 8}, 2))
	assert.Equal(t, 30.0, s.Value())
	assert.Equal(t, 5, s.WindowSize())
}

func TestMean(t *testing.T) {
	c, err := NewCache(seq(1, 5))
	require.NoError(t, err)
	s, err := NewSum(c)
	require.NoError(t, err)
	m, err := NewMean(s)
	require.NoError(t, err)
	assert.Equal(t, 3.0, m.Value())

	require.NoError(t, m.Update([]float64{6}, 1))
	assert.Equal(t, 4.0, m.Value())
	assert.Equal(t, 20.0, s.Value())
	assert.Equal(t, uint64(1), s.Version())
}

func TestVariance(t *testing.T) {
	g := newUniformGraph(t, seq(1, 5), seq(5, 1))
	assert.InDelta(t, 2.5, g.varX.Value(), 1e-12)

	g.update(t, []float64{6, 9}, []float64{0, -1}, 1)
	window := []float64{3, 4, 5, 6, 9}
	requireClose(t, refVariance(t, window), g.varX.Value())
}

func TestCorrelationPerfectlyNegative(t *testing.T) {
	g := newUniformGraph(t, seq(1, 5), seq(5, 1))
	assert.InDelta(t, -1.0, g.corr.Value(), 1e-12)
	assert.GreaterOrEqual(t, g.corr.Value(), -1.0)
	assert.InDelta(t, -2.5, g.cov.Value(), 1e-12)

	g.update(t, []float64{6, 7}, []float64{0, -1}, 1)
	assert.InDelta(t, -1.0, g.corr.Value(), 1e-12)
	assert.GreaterOrEqual(t, g.corr.Value(), -1.0)
}

func TestCorrelationConstantSeries(t *testing.T) {
	g := newUniformGraph(t, []float64{2, 2, 2}, []float64{1, 2, 3})
	assert.Equal(t, 0.0, g.varX.Value())
	assert.True(t, math.IsNaN(g.corr.Value()))
	assert.True(t, math.IsNaN(g.skew.Value()))

	g.update(t, []float64{5}, []float64{4}, 1)
	assert.False(t, math.IsNaN(g.corr.Value()))
}

func TestSkew(t *testing.T) {
	x := []float64{1, 2, 3, 4, 10}
	g := newUniformGraph(t, x, seq(1, 5))
	requireClose(t, refSkew(x), g.skew.Value())
	assert.Greater(t, g.skew.Value(), 0.0)

	g.update(t, []float64{-20}, []float64{6}, 1)
	requireClose(t, refSkew(slideWindow(x, []float64{-20})), g.skew.Value())
	assert.Less(t, g.skew.Value(), 0.0)
}

func TestUniformNaNExclusion(t *testing.T) {
	nan := math.NaN()
	g := newUniformGraph(t, []float64{1, nan, 3, 5}, []float64{2, 4, 6, 8})

	assert.Equal(t, 9.0, g.sumX.Value())
	assert.Equal(t, 3, g.sumX.Count())
	assert.Equal(t, 3.0, g.meanX.Value())
	assert.InDelta(t, 4.0, g.varX.Value(), 1e-12)
	assert.Equal(t, 3, g.xy.Count())

	g.update(t, []float64{nan, nan}, []float64{10, 12}, 1)
	assert.Equal(t, 8.0, g.sumX.Value())
	assert.Equal(t, 4.0, g.meanX.Value())
	assert.InDelta(t, 2.0, g.varX.Value(), 1e-12)
	assert.True(t, math.IsNaN(g.skew.Value()), "two valid values cannot have a skew")

	g.update(t, []float64{nan, nan, nan}, []float64{1, 2, 3}, 2)
	assert.Equal(t, 0.0, g.sumX.Value())
	assert.Zero(t, g.sumX.Count())
	assert.True(t, math.IsNaN(g.meanX.Value()))
	assert.True(t, math.IsNaN(g.varX.Value()))
	assert.True(t, math.IsNaN(g.cov.Value()))
	assert.True(t, math.IsNaN(g.corr.Value()))

	g.update(t, []float64{1, 2, 4, 8}, []float64{1, 2, 3, 4}, 3)
	requireClose(t, refVariance(t, []float64{1, 2, 4, 8}), g.varX.Value())
	requireClose(t, refCorrelation(t, []float64{1, 2, 4, 8}, []float64{1, 2, 3, 4}), g.corr.Value())
}

func TestUniformCovarianceUsesCompletePairs(t *testing.T) {
	nan := math.NaN()
	// Wherever both sides are present they agree.
	g := newUniformGraph(t, []float64{1, 2, nan, 4}, []float64{1, 2, 3, 4})
	assert.Equal(t, 3, g.xy.Count())
	assert.InDelta(t, 7.0/3.0, g.cov.Value(), 1e-12)
	assert.InDelta(t, 1.0, g.corr.Value(), 1e-12)
	assert.InDelta(t, 5.0/3.0, g.varY.Value(), 1e-12, "a variance still uses every value of its own series")

	// x = [2 NaN 4 5], y = [2 3 4 NaN]: the pairs are (2,2) and (4,4).
	g.update(t, []float64{5}, []float64{nan}, 1)
	assert.InDelta(t, 2.0, g.cov.Value(), 1e-12)
	assert.InDelta(t, 1.0, g.corr.Value(), 1e-12)

	// x = [4 5 6 7], y = [4 NaN 6 7].
	g.update(t, []float64{6, 7}, []float64{6, 7}, 2)
	x, y := []float64{4, 5, 6, 7}, []float64{4, nan, 6, 7}
	requireClose(t, refCovariance(t, x, y), g.cov.Value())
	assert.InDelta(t, 1.0, g.corr.Value(), 1e-12)
}

func TestUniformNonFiniteValuesAreSkipped(t *testing.T) {
	inf := math.Inf(1)
	g := newUniformGraph(t, []float64{1, inf, 3}, []float64{1, 2, -inf})
	assert.Equal(t, 4.0, g.sumX.Value())
	assert.Equal(t, 2, g.sumX.Count())
	assert.Equal(t, 2.0, g.meanX.Value())
	assert.Equal(t, 1, g.xy.Count())

	for version := uint64(1); version <= 3; version++ {
		g.update(t, []float64{1}, []float64{2}, version)
	}
	assert.Equal(t, 3.0, g.sumX.Value())
	assert.Equal(t, 3, g.sumX.Count())
	assert.Equal(t, 1.0, g.meanX.Value())
	assert.Equal(t, 0.0, g.varX.Value())
	assert.Equal(t, 0.0, g.cov.Value())
	assert.True(t, math.IsNaN(g.corr.Value()), "both windows are constant")
}

func TestUniformVersionGuard(t *testing.T) {
	g := newUniformGraph(t, seq(1, 5), seq(1, 5))
	g.update(t, []float64{6}, []float64{7}, 1)
	want := []float64{g.sumX.Value(), g.varX.Value(), g.cov.Value(), g.corr.Value(), g.skew.Value()}

	g.update(t, []float64{100}, []float64{-100}, 1)
	g.update(t, []float64{100, 200}, []float64{-100, 5}, 0)
	got := []float64{g.sumX.Value(), g.varX.Value(), g.cov.Value(), g.corr.Value(), g.skew.Value()}
	assert.Equal(t, want, got)
	assert.Equal(t, []float64{2, 3, 4, 5, 6}, g.x.Values())

	for _, n := range []interface{ Version() uint64 }{g.x, g.y, g.sumX, g.meanX, g.sqX, g.xy, g.cubeX, g.varX, g.cov, g.corr, g.skew} {
		assert.Equal(t, uint64(1), n.Version())
	}
}

func TestUniformRejectedUpdateLeavesGraphUnchanged(t *testing.T) {
	g := newUniformGraph(t, seq(1, 4), []float64{3, 1, 4, 1})
	before := []float64{g.sumX.Value(), g.varX.Value(), g.cov.Value(), g.corr.Value()}

	err := g.corr.Update([]float64{5, 6}, []float64{7}, 1)
	require.ErrorIs(t, err, ErrShapeMismatch)

	err = g.corr.Update(seq(1, 5), seq(1, 5), 1)
	require.ErrorIs(t, err, ErrCapacity)

	err = g.skew.Update(seq(1, 5), 1)
	require.ErrorIs(t, err, ErrCapacity)

	err = g.xy.Update([]float64{1}, nil, 1)
	require.ErrorIs(t, err, ErrShapeMismatch)

	err = g.sumX.Update(seq(1, 5), 1)
	require.ErrorIs(t, err, ErrCapacity)

	after := []float64{g.sumX.Value(), g.varX.Value(), g.cov.Value(), g.corr.Value()}
	assert.Equal(t, before, after)
	assert.Equal(t, seq(1, 4), g.x.Values())
	assert.Zero(t, g.x.Version())
	assert.Zero(t, g.corr.Version())

	g.update(t, []float64{5}, []float64{9}, 1)
	assert.Equal(t, seq(2, 5), g.x.Values())
}

func TestUniformSharedCache(t *testing.T) {
	c, err := NewCache(seq(1, 4))
	require.NoError(t, err)
	a, err := NewSum(c)
	require.NoError(t, err)
	b, err := NewSum(c)
	require.NoError(t, err)
	sq, err := NewSumProduct(c, c)
	require.NoError(t, err)

	batch := []float64{10, 20}
	require.NoError(t, a.Update(batch, 1))
	require.NoError(t, b.Update(batch, 1))
	require.NoError(t, sq.Update(batch, batch, 1))

	assert.Equal(t, []float64{3, 4, 10, 20}, c.Values())
	assert.Equal(t, 37.0, a.Value())
	assert.Equal(t, 37.0, b.Value())
	assert.Equal(t, 9.0+16+100+400, sq.Value())
}

func TestUniformConstructionErrors(t *testing.T) {
	three, err := NewCache(seq(1, 3))
	require.NoError(t, err)
	four, err := NewCache(seq(1, 4))
	require.NoError(t, err)

	_, err = NewSum(nil)
	require.ErrorIs(t, err, ErrConstruction)
	_, err = NewMean(nil)
	require.ErrorIs(t, err, ErrConstruction)
	_, err = NewSumProduct(three, nil)
	require.ErrorIs(t, err, ErrConstruction)
	_, err = NewSumProduct(three, four)
	require.ErrorIs(t, err, ErrConstruction)
	_, err = NewSumProduct3(three, three, four)
	require.ErrorIs(t, err, ErrConstruction)
	_, err = NewVariance(nil, nil)
	require.ErrorIs(t, err, ErrConstruction)
	_, err = NewCovariance(nil, nil, nil)
	require.ErrorIs(t, err, ErrConstruction)
	_, err = NewCorrelation(nil, nil, nil)
	require.ErrorIs(t, err, ErrConstruction)
	_, err = NewSkew(nil, nil, nil)
	require.ErrorIs(t, err, ErrConstruction)

	sum3, err := NewSum(three)
	require.NoError(t, err)
	mean3, err := NewMean(sum3)
	require.NoError(t, err)
	sq4, err := NewSumProduct(four, four)
	require.NoError(t, err)
	_, err = NewVariance(mean3, sq4)
	require.ErrorIs(t, err, ErrConstruction)
}

func TestUniformWindowSizeIsFixed(t *testing.T) {
	g := newUniformGraph(t, seq(1, 6), seq(6, 1))
	nodes := []Node{g.sumX, g.meanX, g.sqX, g.cubeX, g.varX, g.varY, g.cov, g.corr, g.skew}
	for v := uint64(1); v <= 4; v++ {
		g.update(t, seq(1, float64(v)), seq(float64(v), 1), v)
		for _, n := range nodes {
			assert.Equal(t, 6, n.WindowSize())
		}
	}
}
