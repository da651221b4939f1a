package factor

import "math"

// MarketReturn is the cap-weighted mean return over the instruments where
// both values are present and the cap is positive. It is NaN when no
// instrument qualifies.
func MarketReturn(returns, caps []float64) float64 {
	var weighted, total float64
	for i := range returns {
		if i >= len(caps) {
			break
		}
		r, c := returns[i], caps[i]
		if math.IsNaN(r) || math.IsNaN(c) || c <= 0 {
			continue
		}
		weighted += r * c
		total += c
	}
	if total == 0 {
		return math.NaN()
	}
	return weighted / total
}
