// Package factor builds per-instrument risk factors on top of the online
// statistics engine.
package factor

import (
	"fmt"
	"strings"
)

// Series names one input column of an instrument.
type Series string

const (
	SeriesReturn Series = "ret"
	SeriesCap    Series = "cap"
	SeriesVolume Series = "vol"
	SeriesMarket Series = "market"
)

// ParseSeries accepts the short column names used in config and ticks.
func ParseSeries(s string) (Series, error) {
	switch Series(strings.ToLower(strings.TrimSpace(s))) {
	case SeriesReturn:
		return SeriesReturn, nil
	case SeriesCap:
		return SeriesCap, nil
	case SeriesVolume:
		return SeriesVolume, nil
	case SeriesMarket:
		return SeriesMarket, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSeries, s)
}

// Kind selects the statistic a factor reports.
type Kind string

const (
	KindMean          Kind = "mean"
	KindVolatility    Kind = "volatility"
	KindSkew          Kind = "skew"
	KindCorrelation   Kind = "correlation"
	KindBeta          Kind = "beta"
	KindEWMMean       Kind = "ewm_mean"
	KindEWMVolatility Kind = "ewm_volatility"
	KindEWMSkew       Kind = "ewm_skew"
	KindEWMBeta       Kind = "ewm_beta"
)

var kinds = map[Kind]struct{}{
	KindMean:          {},
	KindVolatility:    {},
	KindSkew:          {},
	KindCorrelation:   {},
	KindBeta:          {},
	KindEWMMean:       {},
	KindEWMVolatility: {},
	KindEWMSkew:       {},
	KindEWMBeta:       {},
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Weighted reports whether the kind needs a weight profile.
func (k Kind) Weighted() bool { return strings.HasPrefix(string(k), "ewm_") }

// NeedsMarket reports whether the kind reads the market series as well as its own.
func (k Kind) NeedsMarket() bool {
	return k == KindCorrelation || k == KindBeta || k == KindEWMBeta
}

// Spec describes one factor computed for every instrument.
type Spec struct {
	Name   string
	Kind   Kind
	Series Series
}

func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidFactor)
	}
	if _, ok := kinds[s.Kind]; !ok {
		return fmt.Errorf("%w: factor %q: %w: %q", ErrInvalidFactor, s.Name, ErrUnknownKind, s.Kind)
	}
	switch s.Series {
	case SeriesReturn, SeriesCap, SeriesVolume, SeriesMarket:
		return nil
	}
	return fmt.Errorf("%w: factor %q: %w: %q", ErrInvalidFactor, s.Name, ErrUnknownSeries, s.Series)
}

// ValidateSpecs checks every spec and rejects duplicate names.
func ValidateSpecs(specs []Spec) error {
	seen := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateFactor, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// RequiredSeries lists the series a set of factors reads, in a stable order.
func RequiredSeries(specs []Spec) []Series {
	need := make(map[Series]bool)
	for _, s := range specs {
		need[s.Series] = true
		if s.Kind.NeedsMarket() {
			need[SeriesMarket] = true
		}
	}
	var out []Series
	for _, s := range []Series{SeriesReturn, SeriesCap, SeriesVolume, SeriesMarket} {
		if need[s] {
			out = append(out, s)
		}
	}
	return out
}
