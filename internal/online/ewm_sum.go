package online

import "fmt"

func checkProfile(kind string, profile *WeightProfile, windowSize int) error {
	if profile == nil {
		return fmt.Errorf("%w: %s requires a weight profile", ErrConstruction, kind)
	}
	if profile.WindowSize() != windowSize {
		return fmt.Errorf("%w: %s weight profile covers %d samples, window has %d", ErrConstruction, kind, profile.WindowSize(), windowSize)
	}
	return nil
}

// EWMSum is the exponentially weighted sum of a window. Weights are the tail
// of the profile's normalised weights, so they add up to one.
type EWMSum struct {
	versioned
	cache      *Cache
	profile    *WeightProfile
	windowSize int
	value      float64
	count      int
}

func NewEWMSum(cache *Cache, profile *WeightProfile) (*EWMSum, error) {
	if cache == nil {
		return nil, fmt.Errorf("%w: ewm sum requires a cache", ErrConstruction)
	}
	if err := checkProfile("ewm sum", profile, cache.WindowSize()); err != nil {
		return nil, err
	}
	_, count := sumValid(cache.Values())
	return &EWMSum{
		cache:      cache,
		profile:    profile,
		windowSize: cache.WindowSize(),
		value:      profile.weigh(cache.Values()),
		count:      count,
	}, nil
}

func (s *EWMSum) Update(batch []float64, version uint64) error {
	if s.applied(version) {
		return nil
	}
	if err := checkBatch(s.windowSize, batch); err != nil {
		return err
	}
	if err := s.cache.Update(batch, version); err != nil {
		return err
	}
	s.value = s.profile.slide(s.value, s.cache.Out(), batch)
	_, nIn := sumValid(batch)
	_, nOut := sumValid(s.cache.Out())
	s.count += nIn - nOut
	s.mark(version)
	return nil
}

// Count is the number of finite values in the window.
func (s *EWMSum) Count() int { return s.count }

func (s *EWMSum) Value() float64          { return s.value }
func (s *EWMSum) WindowSize() int         { return s.windowSize }
func (s *EWMSum) Profile() *WeightProfile { return s.profile }

// EWMSumProduct is the exponentially weighted sum of x[i]·y[i]. Like
// SumProduct it also tracks the weighted sums of x and y over the complete
// pairs.
type EWMSumProduct struct {
	versioned
	x, y         *Cache
	profile      *WeightProfile
	windowSize   int
	value        float64
	pairX, pairY float64
	pairs        int
	in, out      []float64
}

func NewEWMSumProduct(x, y *Cache, profile *WeightProfile) (*EWMSumProduct, error) {
	if x == nil || y == nil {
		return nil, fmt.Errorf("%w: ewm sum product requires two caches", ErrConstruction)
	}
	w, err := sameWindow("ewm sum product", x, y)
	if err != nil {
		return nil, err
	}
	if err := checkProfile("ewm sum product", profile, w); err != nil {
		return nil, err
	}
	xs, ys := x.Values(), y.Values()
	return &EWMSumProduct{
		x:          x,
		y:          y,
		profile:    profile,
		windowSize: w,
		value:      profile.weigh(product(nil, xs, ys)),
		pairX:      profile.weigh(paired(nil, xs, ys)),
		pairY:      profile.weigh(paired(nil, ys, xs)),
		pairs:      countPairs(xs, ys),
		in:         make([]float64, 0, w),
		out:        make([]float64, 0, w),
	}, nil
}

func (s *EWMSumProduct) Update(x, y []float64, version uint64) error {
	if s.applied(version) {
		return nil
	}
	if err := checkBatch(s.windowSize, x, y); err != nil {
		return err
	}
	if err := s.x.Update(x, version); err != nil {
		return err
	}
	if err := s.y.Update(y, version); err != nil {
		return err
	}
	outX, outY := s.x.Out(), s.y.Out()
	s.in = product(s.in, x, y)
	s.out = product(s.out, outX, outY)
	s.value = s.profile.slide(s.value, s.out, s.in)

	s.in = paired(s.in, x, y)
	s.out = paired(s.out, outX, outY)
	s.pairX = s.profile.slide(s.pairX, s.out, s.in)
	s.in = paired(s.in, y, x)
	s.out = paired(s.out, outY, outX)
	s.pairY = s.profile.slide(s.pairY, s.out, s.in)

	s.pairs += countPairs(x, y) - countPairs(outX, outY)
	s.mark(version)
	return nil
}

func (s *EWMSumProduct) Value() float64          { return s.value }
func (s *EWMSumProduct) WindowSize() int         { return s.windowSize }
func (s *EWMSumProduct) Profile() *WeightProfile { return s.profile }

// Count is the number of complete pairs in the window.
func (s *EWMSumProduct) Count() int { return s.pairs }

// PairedSums returns the weighted sums of x and y over the complete pairs.
func (s *EWMSumProduct) PairedSums() (sumX, sumY float64) { return s.pairX, s.pairY }

// EWMSumProduct3 is the exponentially weighted sum of x[i]·y[i]·z[i].
type EWMSumProduct3 struct {
	versioned
	x, y, z    *Cache
	profile    *WeightProfile
	windowSize int
	value      float64
	in, out    []float64
}

func NewEWMSumProduct3(x, y, z *Cache, profile *WeightProfile) (*EWMSumProduct3, error) {
	if x == nil || y == nil || z == nil {
		return nil, fmt.Errorf("%w: ewm sum product3 requires three caches", ErrConstruction)
	}
	w, err := sameWindow("ewm sum product3", x, y, z)
	if err != nil {
		return nil, err
	}
	if err := checkProfile("ewm sum product3", profile, w); err != nil {
		return nil, err
	}
	return &EWMSumProduct3{
		x:          x,
		y:          y,
		z:          z,
		profile:    profile,
		windowSize: w,
		value:      profile.weigh(product(nil, x.Values(), y.Values(), z.Values())),
		in:         make([]float64, 0, w),
		out:        make([]float64, 0, w),
	}, nil
}

func (s *EWMSumProduct3) Update(x, y, z []float64, version uint64) error {
	if s.applied(version) {
		return nil
	}
	if err := checkBatch(s.windowSize, x, y, z); err != nil {
		return err
	}
	if err := s.x.Update(x, version); err != nil {
		return err
	}
	if err := s.y.Update(y, version); err != nil {
		return err
	}
	if err := s.z.Update(z, version); err != nil {
		return err
	}
	s.in = product(s.in, x, y, z)
	s.out = product(s.out, s.x.Out(), s.y.Out(), s.z.Out())
	s.value = s.profile.slide(s.value, s.out, s.in)
	s.mark(version)
	return nil
}

func (s *EWMSumProduct3) Value() float64          { return s.value }
func (s *EWMSumProduct3) WindowSize() int         { return s.windowSize }
func (s *EWMSumProduct3) Profile() *WeightProfile { return s.profile }
