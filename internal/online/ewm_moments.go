package online

import (
	"fmt"
	"math"
)

// EWMMean is the exponentially weighted mean. The weights already sum to one,
// so it equals the weighted sum.
type EWMMean struct {
	versioned
	sum        *EWMSum
	windowSize int
	value      float64
}

func NewEWMMean(sum *EWMSum) (*EWMMean, error) {
	if sum == nil {
		return nil, fmt.Errorf("%w: ewm mean requires an ewm sum", ErrConstruction)
	}
	return &EWMMean{sum: sum, windowSize: sum.WindowSize(), value: sum.Value()}, nil
}

func (m *EWMMean) Update(batch []float64, version uint64) error {
	if m.applied(version) {
		return nil
	}
	if err := m.sum.Update(batch, version); err != nil {
		return err
	}
	m.value = m.sum.Value()
	m.mark(version)
	return nil
}

func (m *EWMMean) Value() float64  { return m.value }
func (m *EWMMean) WindowSize() int { return m.windowSize }
func (m *EWMMean) Count() int      { return m.sum.Count() }

// EWMVar is the bias-corrected exponentially weighted variance. The correction
// comes from the profile once, at construction.
type EWMVar struct {
	versioned
	mean       *EWMMean
	squares    *EWMSumProduct
	correction float64
	windowSize int
	value      float64
}

func NewEWMVar(mean *EWMMean, squares *EWMSumProduct) (*EWMVar, error) {
	if mean == nil || squares == nil {
		return nil, fmt.Errorf("%w: ewm variance requires an ewm mean and an ewm sum of squares", ErrConstruction)
	}
	w, err := sameWindow("ewm variance", mean, squares)
	if err != nil {
		return nil, err
	}
	v := &EWMVar{
		mean:       mean,
		squares:    squares,
		correction: squares.Profile().VarianceCorrection(),
		windowSize: w,
	}
	v.recompute()
	return v, nil
}

func (v *EWMVar) Update(batch []float64, version uint64) error {
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

func (v *EWMVar) recompute() {
	mean, sq := v.mean.Value(), v.squares.Value()
	if anyNaN(mean, sq) {
		v.value = math.NaN()
		return
	}
	v.value = (sq - mean*mean) * v.correction
}

func (v *EWMVar) Value() float64  { return v.value }
func (v *EWMVar) WindowSize() int { return v.windowSize }

// EWMCov is the bias-corrected exponentially weighted covariance over the
// complete pairs. When a value on one side has no partner, the means are
// replaced by the weighted sums over the pairs.
type EWMCov struct {
	versioned
	meanX, meanY *EWMMean
	products     *EWMSumProduct
	correction   float64
	windowSize   int
	value        float64
}

func NewEWMCov(meanX, meanY *EWMMean, products *EWMSumProduct) (*EWMCov, error) {
	if meanX == nil || meanY == nil || products == nil {
		return nil, fmt.Errorf("%w: ewm covariance requires two ewm means and an ewm sum product", ErrConstruction)
	}
	w, err := sameWindow("ewm covariance", meanX, meanY, products)
	if err != nil {
		return nil, err
	}
	c := &EWMCov{
		meanX:      meanX,
		meanY:      meanY,
		products:   products,
		correction: products.Profile().VarianceCorrection(),
		windowSize: w,
	}
	c.recompute()
	return c, nil
}

func (c *EWMCov) Update(x, y []float64, version uint64) error {
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

func (c *EWMCov) recompute() {
	mx, my, sxy := c.meanX.Value(), c.meanY.Value(), c.products.Value()
	if pairs := c.products.Count(); pairs != c.meanX.Count() || pairs != c.meanY.Count() {
		mx, my = c.products.PairedSums()
	}
	if anyNaN(mx, my, sxy) {
		c.value = math.NaN()
		return
	}
	c.value = (sxy - mx*my) * c.correction
}

func (c *EWMCov) Value() float64  { return c.value }
func (c *EWMCov) WindowSize() int { return c.windowSize }

// EWMSkew is the bias-corrected exponentially weighted skewness.
type EWMSkew struct {
	versioned
	mean       *EWMMean
	squares    *EWMSumProduct
	cubes      *EWMSumProduct3
	correction float64
	windowSize int
	value      float64
}

func NewEWMSkew(mean *EWMMean, squares *EWMSumProduct, cubes *EWMSumProduct3) (*EWMSkew, error) {
	if mean == nil || squares == nil || cubes == nil {
		return nil, fmt.Errorf("%w: ewm skew requires an ewm mean, an ewm sum of squares and an ewm sum of cubes", ErrConstruction)
	}
	w, err := sameWindow("ewm skew", mean, squares, cubes)
	if err != nil {
		return nil, err
	}
	s := &EWMSkew{
		mean:       mean,
		squares:    squares,
		cubes:      cubes,
		correction: cubes.Profile().SkewCorrection(),
		windowSize: w,
	}
	s.recompute()
	return s, nil
}

func (s *EWMSkew) Update(batch []float64, version uint64) error {
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

func (s *EWMSkew) recompute() {
	mean, sq, cube := s.mean.Value(), s.squares.Value(), s.cubes.Value()
	m2 := sq - mean*mean
	m3 := cube - 3*mean*sq + 2*mean*mean*mean
	s.value = skewness(mean, m2, m3, s.correction)
}

func (s *EWMSkew) Value() float64  { return s.value }
func (s *EWMSkew) WindowSize() int { return s.windowSize }
