package online

import (
	"fmt"
	"math"
)

// Mean is the mean of the finite values in a window, NaN if there are none.
type Mean struct {
	versioned
	sum        *Sum
	windowSize int
	value      float64
}

func NewMean(sum *Sum) (*Mean, error) {
	if sum == nil {
		return nil, fmt.Errorf("%w: mean requires a sum", ErrConstruction)
	}
	m := &Mean{sum: sum, windowSize: sum.WindowSize()}
	m.recompute()
	return m, nil
}

func (m *Mean) Update(batch []float64, version uint64) error {
	if m.applied(version) {
		return nil
	}
	if err := m.sum.Update(batch, version); err != nil {
		return err
	}
	m.recompute()
	m.mark(version)
	return nil
}

func (m *Mean) recompute() {
	n := m.sum.Count()
	if n == 0 {
		m.value = math.NaN()
		return
	}
	m.value = m.sum.Value() / float64(n)
}

func (m *Mean) Value() float64  { return m.value }
func (m *Mean) WindowSize() int { return m.windowSize }
func (m *Mean) Count() int      { return m.sum.Count() }

// Variance is the sample variance of a window. Cancellation can push the
// closed form slightly below zero; it is floored at 0.
type Variance struct {
	versioned
	mean       *Mean
	squares    *SumProduct
	windowSize int
	value      float64
}

// NewVariance wires a variance over mean and the sum of squares of the same
// series.
func NewVariance(mean *Mean, squares *SumProduct) (*Variance, error) {
	if mean == nil || squares == nil {
		return nil, fmt.Errorf("%w: variance requires a mean and a sum of squares", ErrConstruction)
	}
	w, err := sameWindow("variance", mean, squares)
	if err != nil {
		return nil, err
	}
	v := &Variance{mean: mean, squares: squares, windowSize: w}
	v.recompute()
	return v, nil
}

func (v *Variance) Update(batch []float64, version uint64) error {
	if v.applied(version) {
		return nil
	}
	if err := checkBatch(v.windowSize, batch); err != nil {
		return err
	}
	if err := v.mean.Update(batch, version); err != nil {
		return err
	}
	if err := v.squares.Update(batch, batch, version); err != nil {
		return err
	}
	v.recompute()
	v.mark(version)
	return nil
}

func (v *Variance) recompute() {
	if v.windowSize <= 1 {
		v.value = 0
		return
	}
	n := float64(v.squares.Count())
	if n < 2 {
		v.value = math.NaN()
		return
	}
	mean := v.mean.Value()
	v.value = math.Max(0, (v.squares.Value()-n*mean*mean)/(n-1))
}

func (v *Variance) Value() float64  { return v.value }
func (v *Variance) WindowSize() int { return v.windowSize }
func (v *Variance) Count() int      { return v.squares.Count() }

// Covariance is the sample covariance of two aligned windows over their
// complete pairs. The means are used directly while every present value is
// paired; otherwise each side is averaged over the pairs only.
type Covariance struct {
	versioned
	meanX, meanY *Mean
	products     *SumProduct
	windowSize   int
	value        float64
}

func NewCovariance(meanX, meanY *Mean, products *SumProduct) (*Covariance, error) {
	if meanX == nil || meanY == nil || products == nil {
		return nil, fmt.Errorf("%w: covariance requires two means and a sum product", ErrConstruction)
	}
	w, err := sameWindow("covariance", meanX, meanY, products)
	if err != nil {
		return nil, err
	}
	c := &Covariance{meanX: meanX, meanY: meanY, products: products, windowSize: w}
	c.recompute()
	return c, nil
}

func (c *Covariance) Update(x, y []float64, version uint64) error {
	if c.applied(version) {
		return nil
	}
	if err := checkBatch(c.windowSize, x, y); err != nil {
		return err
	}
	if err := c.meanX.Update(x, version); err != nil {
		return err
	}
	if err := c.meanY.Update(y, version); err != nil {
		return err
	}
	if err := c.products.Update(x, y, version); err != nil {
		return err
	}
	c.recompute()
	c.mark(version)
	return nil
}

func (c *Covariance) recompute() {
	pairs := c.products.Count()
	n := float64(pairs)
	if n < 2 {
		c.value = math.NaN()
		return
	}
	if pairs == c.meanX.Count() && pairs == c.meanY.Count() {
		c.value = (c.products.Value() - n*c.meanX.Value()*c.meanY.Value()) / (n - 1)
		return
	}
	sumX, sumY := c.products.PairedSums()
	c.value = (c.products.Value() - sumX*sumY/n) / (n - 1)
}

func (c *Covariance) Value() float64  { return c.value }
func (c *Covariance) WindowSize() int { return c.windowSize }

// Correlation is the Pearson correlation of two aligned windows over their
// complete pairs, clamped to [-1, 1]. It is NaN when either side is constant.
type Correlation struct {
	versioned
	varX, varY *Variance
	cov        *Covariance
	windowSize int
	value      float64
}

func NewCorrelation(varX, varY *Variance, cov *Covariance) (*Correlation, error) {
	if varX == nil || varY == nil || cov == nil {
		return nil, fmt.Errorf("%w: correlation requires two variances and a covariance", ErrConstruction)
	}
	w, err := sameWindow("correlation", varX, varY, cov)
	if err != nil {
		return nil, err
	}
	c := &Correlation{varX: varX, varY: varY, cov: cov, windowSize: w}
	c.recompute()
	return c, nil
}

func (c *Correlation) Update(x, y []float64, version uint64) error {
	if c.applied(version) {
		return nil
	}
	if err := checkBatch(c.windowSize, x, y); err != nil {
		return err
	}
	if err := c.varX.Update(x, version); err != nil {
		return err
	}
	if err := c.varY.Update(y, version); err != nil {
		return err
	}
	if err := c.cov.Update(x, y, version); err != nil {
		return err
	}
	c.recompute()
	c.mark(version)
	return nil
}

func (c *Correlation) recompute() {
	varX, varY := c.varX.Value(), c.varY.Value()
	products := c.cov.products
	if pairs := products.Count(); pairs != c.varX.Count() || pairs != c.varY.Count() {
		varX, varY = products.PairedVariances()
	}
	c.value = correlation(c.cov.Value(), varX, varY)
}

func (c *Correlation) Value() float64  { return c.value }
func (c *Correlation) WindowSize() int { return c.windowSize }

func correlation(cov, varX, varY float64) float64 {
	if anyNaN(cov, varX, varY) {
		return math.NaN()
	}
	stdX, stdY := math.Sqrt(varX), math.Sqrt(varY)
	if stdX == 0 || stdY == 0 {
		return math.NaN()
	}
	return math.Max(-1, math.Min(1, cov/(stdX*stdY)))
}

// Skew is the adjusted Fisher-Pearson sample skewness of a window. It needs at
// least three present values and a non-degenerate spread.
type Skew struct {
	versioned
	mean       *Mean
	squares    *SumProduct
	cubes      *SumProduct3
	windowSize int
	value      float64
}

func NewSkew(mean *Mean, squares *SumProduct, cubes *SumProduct3) (*Skew, error) {
	if mean == nil || squares == nil || cubes == nil {
		return nil, fmt.Errorf("%w: skew requires a mean, a sum of squares and a sum of cubes", ErrConstruction)
	}
	w, err := sameWindow("skew", mean, squares, cubes)
	if err != nil {
		return nil, err
	}
	s := &Skew{mean: mean, squares: squares, cubes: cubes, windowSize: w}
	s.recompute()
	return s, nil
}

func (s *Skew) Update(batch []float64, version uint64) error {
	if s.applied(version) {
		return nil
	}
	if err := checkBatch(s.windowSize, batch); err != nil {
		return err
	}
	if err := s.mean.Update(batch, version); err != nil {
		return err
	}
	if err := s.squares.Update(batch, batch, version); err != nil {
		return err
	}
	if err := s.cubes.Update(batch, batch, batch, version); err != nil {
		return err
	}
	s.recompute()
	s.mark(version)
	return nil
}

func (s *Skew) recompute() {
	n := float64(s.cubes.Count())
	if n < 3 {
		s.value = math.NaN()
		return
	}
	mean := s.mean.Value()
	m2 := s.squares.Value()/n - mean*mean
	m3 := s.cubes.Value()/n - 3*mean*s.squares.Value()/n + 2*mean*mean*mean
	s.value = skewness(mean, m2, m3, math.Sqrt(n*(n-1))/(n-2))
}

func (s *Skew) Value() float64  { return s.value }
func (s *Skew) WindowSize() int { return s.windowSize }

// skewness is m3/m2^1.5 scaled by correction, NaN when the second moment
// vanishes.
func skewness(mean, m2, m3, correction float64) float64 {
	if anyNaN(mean, m2, m3) || math.Abs(m2) <= 1e-14 {
		return math.NaN()
	}
	return m3 / math.Sqrt(m2*m2*m2) * correction
}
