package online

import "fmt"

// Sum is the sum of the finite values in a window.
type Sum struct {
	versioned
	cache      *Cache
	windowSize int
	value      float64
	count      int
}

func NewSum(cache *Cache) (*Sum, error) {
	if cache == nil {
		return nil, fmt.Errorf("%w: sum requires a cache", ErrConstruction)
	}
	s := &Sum{cache: cache, windowSize: cache.WindowSize()}
	s.value, s.count = sumValid(cache.Values())
	return s, nil
}

func (s *Sum) Update(batch []float64, version uint64) error {
	if s.applied(version) {
		return nil
	}
	if err := checkBatch(s.windowSize, batch); err != nil {
		return err
	}
	if err := s.cache.Update(batch, version); err != nil {
		return err
	}
	in, nIn := sumValid(batch)
	out, nOut := sumValid(s.cache.Out())
	s.value += in - out
	s.count += nIn - nOut
	s.mark(version)
	return nil
}

func (s *Sum) Value() float64  { return s.value }
func (s *Sum) WindowSize() int { return s.windowSize }
func (s *Sum) Count() int      { return s.count }
func (s *Sum) Cache() *Cache   { return s.cache }

// SumProduct is Σ x[i]·y[i] over the complete pairs, those where both values
// are present. Passing the same cache twice gives the sum of squares.
//
// It also keeps Σx, Σy, Σx² and Σy² over the same pairs, so covariance and
// correlation stay pairwise when the two series have gaps in different
// places.
type SumProduct struct {
	versioned
	x, y       *Cache
	windowSize int
	pairs      pairSums
}

func NewSumProduct(x, y *Cache) (*SumProduct, error) {
	if x == nil || y == nil {
		return nil, fmt.Errorf("%w: sum product requires two caches", ErrConstruction)
	}
	w, err := sameWindow("sum product", x, y)
	if err != nil {
		return nil, err
	}
	s := &SumProduct{x: x, y: y, windowSize: w}
	s.pairs.add(x.Values(), y.Values(), 1)
	return s, nil
}

func (s *SumProduct) Update(x, y []float64, version uint64) error {
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
	s.pairs.add(x, y, 1)
	s.pairs.add(s.x.Out(), s.y.Out(), -1)
	s.mark(version)
	return nil
}

func (s *SumProduct) Value() float64  { return s.pairs.xy }
func (s *SumProduct) WindowSize() int { return s.windowSize }

// Count is the number of complete pairs in the window.
func (s *SumProduct) Count() int { return s.pairs.n }

// PairedSums returns Σx and Σy over the complete pairs.
func (s *SumProduct) PairedSums() (sumX, sumY float64) { return s.pairs.x, s.pairs.y }

// PairedVariances returns the sample variance of each side over the complete
// pairs, NaN with fewer than two pairs.
func (s *SumProduct) PairedVariances() (varX, varY float64) { return s.pairs.variances() }

// SumProduct3 is Σ x[i]·y[i]·z[i] over the triples where all values are
// present. Passing one cache three times gives the sum of cubes.
type SumProduct3 struct {
	versioned
	x, y, z    *Cache
	windowSize int
	value      float64
	count      int
	scratch    []float64
}

func NewSumProduct3(x, y, z *Cache) (*SumProduct3, error) {
	if x == nil || y == nil || z == nil {
		return nil, fmt.Errorf("%w: sum product3 requires three caches", ErrConstruction)
	}
	w, err := sameWindow("sum product3", x, y, z)
	if err != nil {
		return nil, err
	}
	s := &SumProduct3{x: x, y: y, z: z, windowSize: w, scratch: make([]float64, 0, w)}
	s.value, s.count = sumValid(product(nil, x.Values(), y.Values(), z.Values()))
	return s, nil
}

func (s *SumProduct3) Update(x, y, z []float64, version uint64) error {
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
	s.scratch = product(s.scratch, x, y, z)
	in, nIn := sumValid(s.scratch)
	s.scratch = product(s.scratch, s.x.Out(), s.y.Out(), s.z.Out())
	out, nOut := sumValid(s.scratch)
	s.value += in - out
	s.count += nIn - nOut
	s.mark(version)
	return nil
}

func (s *SumProduct3) Value() float64  { return s.value }
func (s *SumProduct3) WindowSize() int { return s.windowSize }
func (s *SumProduct3) Count() int      { return s.count }
