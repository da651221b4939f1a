package factor

import (
	"math"

	"github.com/sanspareilsmyn/factorlens/internal/online"
)

type nodeKey struct {
	op   string
	a, b Series
}

// builder wires engine nodes for one instrument, reusing any node that more
// than one factor depends on.
type builder struct {
	caches  map[Series]*online.Cache
	profile *online.WeightProfile
	nodes   map[nodeKey]any
}

func newBuilder(caches map[Series]*online.Cache, profile *online.WeightProfile) *builder {
	return &builder{caches: caches, profile: profile, nodes: make(map[nodeKey]any)}
}

func memo[T any](b *builder, key nodeKey, build func() (T, error)) (T, error) {
	if n, ok := b.nodes[key]; ok {
		return n.(T), nil
	}
	n, err := build()
	if err != nil {
		var zero T
		return zero, err
	}
	b.nodes[key] = n
	return n, nil
}

type factor struct {
	spec   Spec
	update func(batch map[Series][]float64, version uint64) error
	value  func() float64
}

func (b *builder) build(spec Spec) (*factor, error) {
	s, m := spec.Series, SeriesMarket
	f := &factor{spec: spec}
	switch spec.Kind {
	case KindMean:
		n, err := b.mean(s)
		if err != nil {
			return nil, err
		}
		f.update, f.value = seriesUpdate(n, s), n.Value
	case KindVolatility:
		n, err := b.variance(s)
		if err != nil {
			return nil, err
		}
		f.update = seriesUpdate(n, s)
		f.value = func() float64 { return volatility(n.Value()) }
	case KindSkew:
		n, err := b.skew(s)
		if err != nil {
			return nil, err
		}
		f.update, f.value = seriesUpdate(n, s), n.Value
	case KindCorrelation:
		n, err := b.correlation(s, m)
		if err != nil {
			return nil, err
		}
		f.update, f.value = pairUpdate(n, s, m), n.Value
	case KindBeta:
		cov, err := b.covariance(s, m)
		if err != nil {
			return nil, err
		}
		v, err := b.variance(m)
		if err != nil {
			return nil, err
		}
		f.update = chain(pairUpdate(cov, s, m), seriesUpdate(v, m))
		f.value = func() float64 { return beta(cov.Value(), v.Value()) }
	case KindEWMMean:
		n, err := b.ewmMean(s)
		if err != nil {
			return nil, err
		}
		f.update, f.value = seriesUpdate(n, s), n.Value
	case KindEWMVolatility:
		n, err := b.ewmVar(s)
		if err != nil {
			return nil, err
		}
		f.update = seriesUpdate(n, s)
		f.value = func() float64 { return volatility(n.Value()) }
	case KindEWMSkew:
		n, err := b.ewmSkew(s)
		if err != nil {
			return nil, err
		}
		f.update, f.value = seriesUpdate(n, s), n.Value
	case KindEWMBeta:
		cov, err := b.ewmCov(s, m)
		if err != nil {
			return nil, err
		}
		v, err := b.ewmVar(m)
		if err != nil {
			return nil, err
		}
		f.update = chain(pairUpdate(cov, s, m), seriesUpdate(v, m))
		f.value = func() float64 { return beta(cov.Value(), v.Value()) }
	default:
		return nil, ErrUnknownKind
	}
	return f, nil
}

func seriesUpdate(n online.SeriesNode, s Series) func(map[Series][]float64, uint64) error {
	return func(batch map[Series][]float64, version uint64) error {
		return n.Update(batch[s], version)
	}
}

func pairUpdate(n online.PairNode, x, y Series) func(map[Series][]float64, uint64) error {
	return func(batch map[Series][]float64, version uint64) error {
		return n.Update(batch[x], batch[y], version)
	}
}

func chain(updates ...func(map[Series][]float64, uint64) error) func(map[Series][]float64, uint64) error {
	return func(batch map[Series][]float64, version uint64) error {
		for _, u := range updates {
			if err := u(batch, version); err != nil {
				return err
			}
		}
		return nil
	}
}

func volatility(variance float64) float64 {
	if math.IsNaN(variance) || variance < 0 {
		return math.NaN()
	}
	return math.Sqrt(variance)
}

func beta(cov, variance float64) float64 {
	if math.IsNaN(cov) || math.IsNaN(variance) || variance <= 0 {
		return math.NaN()
	}
	return cov / variance
}

// Uniform nodes.

func (b *builder) sum(s Series) (*online.Sum, error) {
	return memo(b, nodeKey{op: "sum", a: s}, func() (*online.Sum, error) {
		return online.NewSum(b.caches[s])
	})
}

func (b *builder) mean(s Series) (*online.Mean, error) {
	return memo(b, nodeKey{op: "mean", a: s}, func() (*online.Mean, error) {
		sum, err := b.sum(s)
		if err != nil {
			return nil, err
		}
		return online.NewMean(sum)
	})
}

func (b *builder) products(x, y Series) (*online.SumProduct, error) {
	return memo(b, nodeKey{op: "products", a: x, b: y}, func() (*online.SumProduct, error) {
		return online.NewSumProduct(b.caches[x], b.caches[y])
	})
}

func (b *builder) cubes(s Series) (*online.SumProduct3, error) {
	return memo(b, nodeKey{op: "cubes", a: s}, func() (*online.SumProduct3, error) {
		c := b.caches[s]
		return online.NewSumProduct3(c, c, c)
	})
}

func (b *builder) variance(s Series) (*online.Variance, error) {
	return memo(b, nodeKey{op: "variance", a: s}, func() (*online.Variance, error) {
		mean, err := b.mean(s)
		if err != nil {
			return nil, err
		}
		squares, err := b.products(s, s)
		if err != nil {
			return nil, err
		}
		return online.NewVariance(mean, squares)
	})
}

func (b *builder) covariance(x, y Series) (*online.Covariance, error) {
	return memo(b, nodeKey{op: "covariance", a: x, b: y}, func() (*online.Covariance, error) {
		mx, err := b.mean(x)
		if err != nil {
			return nil, err
		}
		my, err := b.mean(y)
		if err != nil {
			return nil, err
		}
		xy, err := b.products(x, y)
		if err != nil {
			return nil, err
		}
		return online.NewCovariance(mx, my, xy)
	})
}

func (b *builder) correlation(x, y Series) (*online.Correlation, error) {
	return memo(b, nodeKey{op: "correlation", a: x, b: y}, func() (*online.Correlation, error) {
		vx, err := b.variance(x)
		if err != nil {
			return nil, err
		}
		vy, err := b.variance(y)
		if err != nil {
			return nil, err
		}
		cov, err := b.covariance(x, y)
		if err != nil {
			return nil, err
		}
		return online.NewCorrelation(vx, vy, cov)
	})
}

func (b *builder) skew(s Series) (*online.Skew, error) {
	return memo(b, nodeKey{op: "skew", a: s}, func() (*online.Skew, error) {
		mean, err := b.mean(s)
		if err != nil {
			return nil, err
		}
		squares, err := b.products(s, s)
		if err != nil {
			return nil, err
		}
		cubes, err := b.cubes(s)
		if err != nil {
			return nil, err
		}
		return online.NewSkew(mean, squares, cubes)
	})
}

// Weighted nodes.

func (b *builder) ewmMean(s Series) (*online.EWMMean, error) {
	return memo(b, nodeKey{op: "ewm_mean", a: s}, func() (*online.EWMMean, error) {
		sum, err := memo(b, nodeKey{op: "ewm_sum", a: s}, func() (*online.EWMSum, error) {
			return online.NewEWMSum(b.caches[s], b.profile)
		})
		if err != nil {
			return nil, err
		}
		return online.NewEWMMean(sum)
	})
}

func (b *builder) ewmProducts(x, y Series) (*online.EWMSumProduct, error) {
	return memo(b, nodeKey{op: "ewm_products", a: x, b: y}, func() (*online.EWMSumProduct, error) {
		return online.NewEWMSumProduct(b.caches[x], b.caches[y], b.profile)
	})
}

func (b *builder) ewmVar(s Series) (*online.EWMVar, error) {
	return memo(b, nodeKey{op: "ewm_var", a: s}, func() (*online.EWMVar, error) {
		mean, err := b.ewmMean(s)
		if err != nil {
			return nil, err
		}
		squares, err := b.ewmProducts(s, s)
		if err != nil {
			return nil, err
		}
		return online.NewEWMVar(mean, squares)
	})
}

func (b *builder) ewmCov(x, y Series) (*online.EWMCov, error) {
	return memo(b, nodeKey{op: "ewm_cov", a: x, b: y}, func() (*online.EWMCov, error) {
		mx, err := b.ewmMean(x)
		if err != nil {
			return nil, err
		}
		my, err := b.ewmMean(y)
		if err != nil {
			return nil, err
		}
		xy, err := b.ewmProducts(x, y)
		if err != nil {
			return nil, err
		}
		return online.NewEWMCov(mx, my, xy)
	})
}

func (b *builder) ewmSkew(s Series) (*online.EWMSkew, error) {
	return memo(b, nodeKey{op: "ewm_skew", a: s}, func() (*online.EWMSkew, error) {
		mean, err := b.ewmMean(s)
		if err != nil {
			return nil, err
		}
		squares, err := b.ewmProducts(s, s)
		if err != nil {
			return nil, err
		}
		cubes, err := memo(b, nodeKey{op: "ewm_cubes", a: s}, func() (*online.EWMSumProduct3, error) {
			c := b.caches[s]
			return online.NewEWMSumProduct3(c, c, c, b.profile)
		})
		if err != nil {
			return nil, err
		}
		return online.NewEWMSkew(mean, squares, cubes)
	})
}
