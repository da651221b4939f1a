package online

import (
	"math"
	"math/rand"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

// requireClose compares with a relative tolerance, falling back to absolute
// for values near zero. Two NaNs compare equal.
func requireClose(t *testing.T, want, got float64, msgAndArgs ...interface{}) {
	t.Helper()
	if math.IsNaN(want) {
		require.True(t, math.IsNaN(got), append([]interface{}{"want NaN, got %v", got}, msgAndArgs...)...)
		return
	}
	require.InDelta(t, want, got, tolerance*math.Max(1, math.Abs(want)), msgAndArgs...)
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// dropMissing keeps the finite values.
func dropMissing(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

// completePairs keeps the positions where both values are finite.
func completePairs(x, y []float64) (px, py []float64) {
	for i := range x {
		if isFinite(x[i]) && isFinite(y[i]) {
			px = append(px, x[i])
			py = append(py, y[i])
		}
	}
	return px, py
}

func refSum(t *testing.T, values []float64) float64 {
	t.Helper()
	valid := dropMissing(values)
	if len(valid) == 0 {
		return 0
	}
	s, err := stats.Sum(valid)
	require.NoError(t, err)
	return s
}

func refMean(t *testing.T, values []float64) float64 {
	t.Helper()
	valid := dropMissing(values)
	if len(valid) == 0 {
		return math.NaN()
	}
	m, err := stats.Mean(valid)
	require.NoError(t, err)
	return m
}

func refVariance(t *testing.T, values []float64) float64 {
	t.Helper()
	valid := dropMissing(values)
	if len(valid) < 2 {
		return math.NaN()
	}
	v, err := stats.SampleVariance(valid)
	require.NoError(t, err)
	return v
}

func refCovariance(t *testing.T, x, y []float64) float64 {
	t.Helper()
	x, y = completePairs(x, y)
	if len(x) < 2 {
		return math.NaN()
	}
	c, err := stats.Covariance(x, y)
	require.NoError(t, err)
	return c
}

func refCorrelation(t *testing.T, x, y []float64) float64 {
	t.Helper()
	x, y = completePairs(x, y)
	if len(x) < 2 {
		return math.NaN()
	}
	c, err := stats.Correlation(x, y)
	require.NoError(t, err)
	return c
}

// refSkew is the two-pass adjusted Fisher-Pearson skewness.
func refSkew(values []float64) float64 {
	valid := dropMissing(values)
	n := float64(len(valid))
	if n < 3 {
		return math.NaN()
	}
	mean := 0.0
	for _, v := range valid {
		mean += v
	}
	mean /= n
	var m2, m3 float64
	for _, v := range valid {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	return m3 / math.Pow(m2, 1.5) * math.Sqrt(n*(n-1)) / (n - 2)
}

// refEWM recomputes the weighted moments of a window directly from the
// profile's tail weights.
type refEWM struct {
	mean, variance, skew float64
}

func refEWMMoments(p *WeightProfile, values []float64) refEWM {
	tail := p.Tail()
	var mean, sq, cube float64
	for i, v := range values {
		if !isFinite(v) {
			continue
		}
		mean += tail[i] * v
		sq += tail[i] * v * v
		cube += tail[i] * v * v * v
	}
	m2 := sq - mean*mean
	m3 := cube - 3*mean*sq + 2*mean*mean*mean
	skew := math.NaN()
	if math.Abs(m2) > 1e-14 {
		skew = m3 / math.Sqrt(m2*m2*m2) * p.SkewCorrection()
	}
	return refEWM{mean: mean, variance: m2 * p.VarianceCorrection(), skew: skew}
}

// refEWMCov weighs only the complete pairs on both sides.
func refEWMCov(p *WeightProfile, x, y []float64) float64 {
	tail := p.Tail()
	var mx, my, sxy float64
	for i := range x {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			continue
		}
		mx += tail[i] * x[i]
		my += tail[i] * y[i]
		sxy += tail[i] * x[i] * y[i]
	}
	return (sxy - mx*my) * p.VarianceCorrection()
}

func randomSeries(rng *rand.Rand, n int, nanRate float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if rng.Float64() < nanRate {
			out[i] = math.NaN()
			continue
		}
		out[i] = 0.3 + rng.NormFloat64()
	}
	return out
}

// slideWindow mirrors a cache update on a plain slice.
func slideWindow(window, batch []float64) []float64 {
	next := append(append([]float64(nil), window[len(batch):]...), batch...)
	return next
}

type uniformGraph struct {
	x, y         *Cache
	sumX         *Sum
	meanX, meanY *Mean
	sqX, sqY, xy *SumProduct
	cubeX        *SumProduct3
	varX, varY   *Variance
	cov          *Covariance
	corr         *Correlation
	skew         *Skew
}

func newUniformGraph(t *testing.T, x0, y0 []float64) *uniformGraph {
	t.Helper()
	g := &uniformGraph{}
	var err error
	g.x, err = NewCache(x0)
	require.NoError(t, err)
	g.y, err = NewCache(y0)
	require.NoError(t, err)

	g.sumX, err = NewSum(g.x)
	require.NoError(t, err)
	sumY, err := NewSum(g.y)
	require.NoError(t, err)
	g.meanX, err = NewMean(g.sumX)
	require.NoError(t, err)
	g.meanY, err = NewMean(sumY)
	require.NoError(t, err)
	g.sqX, err = NewSumProduct(g.x, g.x)
	require.NoError(t, err)
	g.sqY, err = NewSumProduct(g.y, g.y)
	require.NoError(t, err)
	g.xy, err = NewSumProduct(g.x, g.y)
	require.NoError(t, err)
	g.cubeX, err = NewSumProduct3(g.x, g.x, g.x)
	require.NoError(t, err)
	g.varX, err = NewVariance(g.meanX, g.sqX)
	require.NoError(t, err)
	g.varY, err = NewVariance(g.meanY, g.sqY)
	require.NoError(t, err)
	g.cov, err = NewCovariance(g.meanX, g.meanY, g.xy)
	require.NoError(t, err)
	g.corr, err = NewCorrelation(g.varX, g.varY, g.cov)
	require.NoError(t, err)
	g.skew, err = NewSkew(g.meanX, g.sqX, g.cubeX)
	require.NoError(t, err)
	return g
}

func (g *uniformGraph) update(t *testing.T, bx, by []float64, version uint64) {
	t.Helper()
	require.NoError(t, g.corr.Update(bx, by, version))
	require.NoError(t, g.skew.Update(bx, version))
}

type ewmGraph struct {
	profile      *WeightProfile
	x, y         *Cache
	meanX, meanY *EWMMean
	varX         *EWMVar
	cov          *EWMCov
	skew         *EWMSkew
}

func newEWMGraph(t *testing.T, p *WeightProfile, x0, y0 []float64) *ewmGraph {
	t.Helper()
	g := &ewmGraph{profile: p}
	var err error
	g.x, err = NewCache(x0)
	require.NoError(t, err)
	g.y, err = NewCache(y0)
	require.NoError(t, err)

	sumX, err := NewEWMSum(g.x, p)
	require.NoError(t, err)
	sumY, err := NewEWMSum(g.y, p)
	require.NoError(t, err)
	g.meanX, err = NewEWMMean(sumX)
	require.NoError(t, err)
	g.meanY, err = NewEWMMean(sumY)
	require.NoError(t, err)
	sqX, err := NewEWMSumProduct(g.x, g.x, p)
	require.NoError(t, err)
	xy, err := NewEWMSumProduct(g.x, g.y, p)
	require.NoError(t, err)
	cubeX, err := NewEWMSumProduct3(g.x, g.x, g.x, p)
	require.NoError(t, err)
	g.varX, err = NewEWMVar(g.meanX, sqX)
	require.NoError(t, err)
	g.cov, err = NewEWMCov(g.meanX, g.meanY, xy)
	require.NoError(t, err)
	g.skew, err = NewEWMSkew(g.meanX, sqX, cubeX)
	require.NoError(t, err)
	return g
}

func (g *ewmGraph) update(t *testing.T, bx, by []float64, version uint64) {
	t.Helper()
	require.NoError(t, g.cov.Update(bx, by, version))
	require.NoError(t, g.varX.Update(bx, version))
	require.NoError(t, g.skew.Update(bx, version))
}
