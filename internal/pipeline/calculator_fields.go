package pipeline

import (
	"math"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/factorlens/internal/factor"
	"github.com/sanspareilsmyn/factorlens/internal/message"
)

// extractValues reads the series the calculator needs from one instrument's
// fields. Missing and null values become NaN; a present but non-numeric value
// is logged and also becomes NaN.
func (c *Calculator) extractValues(instrument string, step uint64, fields message.Fields) map[factor.Series]float64 {
	out := make(map[factor.Series]float64, len(c.inputs))
	for _, s := range c.inputs {
		out[s] = c.fieldValue(instrument, step, fields, s)
	}
	return out
}

func (c *Calculator) fieldValue(instrument string, step uint64, fields message.Fields, s factor.Series) float64 {
	key := string(s)
	if !fields.HasNonNull(key) {
		return math.NaN()
	}
	v, ok := fields.GetFloat64(key)
	if !ok {
		c.logger.Sugar().Warnw("Non-numeric value for series, treating as missing",
			zap.String("instrument", instrument),
			zap.String("series", key),
			zap.Uint64("step", step),
			zap.String("value_snippet", fields.GetFieldSnippet(key, 50)),
		)
		return math.NaN()
	}
	return v
}

// marketReturn is the cap-weighted return of every instrument in the tick.
func (c *Calculator) marketReturn(tick message.Tick) float64 {
	returns := make([]float64, 0, len(tick.Instruments))
	caps := make([]float64, 0, len(tick.Instruments))
	for _, fields := range tick.Instruments {
		r, okR := fields.GetFloat64(string(factor.SeriesReturn))
		w, okW := fields.GetFloat64(string(factor.SeriesCap))
		if !okR || !okW {
			continue
		}
		returns = append(returns, r)
		caps = append(caps, w)
	}
	return factor.MarketReturn(returns, caps)
}
