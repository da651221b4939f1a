package online

import (
	"fmt"
	"math"
)

// WeightProfile holds exponential-decay weights for a window of W samples.
//
// Both sequences have length 2W, oldest first. The back half weights the
// current window; on a slide of s samples the evicted values sit under
// normalized[W-s, W) and the incoming ones under normalized[2W-s, 2W), so the
// same buffer serves every step size without recomputing weights. Raw weights
// end in 1 and raw[2W-s-1] is the decay over s steps.
type WeightProfile struct {
	windowSize         int
	raw                []float64
	normalized         []float64
	varianceCorrection float64
	skewCorrection     float64
}

// NewWeightProfile builds decay weights for the given window and half-life,
// both in steps. A half-life <= 0 disables decay and weights the window evenly.
func NewWeightProfile(windowSize int, halfLife float64) (*WeightProfile, error) {
	if windowSize < 2 {
		return nil, fmt.Errorf("%w: weight profile window must be at least 2, got %d", ErrConstruction, windowSize)
	}
	decay := 1.0
	if halfLife > 0 {
		alpha := 1 - math.Exp(-math.Ln2/halfLife)
		decay = 1 - alpha
	}
	n := 2 * windowSize
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = math.Pow(decay, float64(n-1-i))
	}
	return NewWeightProfileFromRaw(raw)
}

// NewWeightProfileFromRaw normalises an arbitrary raw weight sequence of even
// length 2W >= 4, oldest first. Incremental updates are exact only when raw is
// geometric and ends in 1, as NewWeightProfile produces.
func NewWeightProfileFromRaw(raw []float64) (*WeightProfile, error) {
	if len(raw) < 4 || len(raw)%2 != 0 {
		return nil, fmt.Errorf("%w: raw weights must have even length >= 4, got %d", ErrConstruction, len(raw))
	}
	w := len(raw) / 2

	tailSum := 0.0
	for _, v := range raw[w:] {
		tailSum += v
	}

	normalized := make([]float64, len(raw))
	for i, v := range raw {
		if tailSum > 0 {
			normalized[i] = v / tailSum
		} else {
			normalized[i] = 1 / float64(w)
		}
	}

	p := &WeightProfile{
		windowSize: w,
		raw:        append([]float64(nil), raw...),
		normalized: normalized,
	}
	p.varianceCorrection = varianceCorrection(p.Tail())
	p.skewCorrection = skewCorrection(p.Tail())
	return p, nil
}

func (p *WeightProfile) WindowSize() int { return p.windowSize }

// Raw returns the unnormalised weights. The slice must not be modified.
func (p *WeightProfile) Raw() []float64 { return p.raw }

// Normalized returns the weights scaled so that the back half sums to one. The
// slice must not be modified.
func (p *WeightProfile) Normalized() []float64 { return p.normalized }

// Tail returns the normalised weights of the current window.
func (p *WeightProfile) Tail() []float64 { return p.normalized[p.windowSize:] }

// VarianceCorrection is (Σw)² / ((Σw)² − Σw²) over Tail.
func (p *WeightProfile) VarianceCorrection() float64 { return p.varianceCorrection }

// SkewCorrection is (1−S2)^1.5 / (1 − 3·S2 + 2·S3) over Tail.
func (p *WeightProfile) SkewCorrection() float64 { return p.skewCorrection }

// weigh returns Σ tail[i]·values[i], skipping non-finite values.
func (p *WeightProfile) weigh(values []float64) float64 {
	tail := p.Tail()
	sum := 0.0
	for i, v := range values {
		if !finite(v) {
			continue
		}
		sum += tail[i] * v
	}
	return sum
}

// slide moves a weighted sum forward by len(in) samples: every surviving term
// decays by one step per sample, the evicted terms are dropped and the
// incoming ones added at the newest positions. Non-finite terms are skipped.
func (p *WeightProfile) slide(value float64, out, in []float64) float64 {
	w, step := p.windowSize, len(in)
	if step == 0 {
		return value
	}
	value *= p.raw[2*w-step-1]
	for i, v := range out {
		if !finite(v) {
			continue
		}
		value -= p.normalized[w-step+i] * v
	}
	for i, v := range in {
		if !finite(v) {
			continue
		}
		value += p.normalized[2*w-step+i] * v
	}
	return value
}

func varianceCorrection(weights []float64) float64 {
	if len(weights) < 2 {
		return 1
	}
	var sum, sumSq float64
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			continue
		}
		sum += w
		sumSq += w * w
	}
	total := sum * sum
	denom := total - sumSq
	if denom <= 0 {
		return 1
	}
	return total / denom
}

func skewCorrection(weights []float64) float64 {
	var s2, s3 float64
	for _, w := range weights {
		s2 += w * w
		s3 += w * w * w
	}
	denom := 1 - 3*s2 + 2*s3
	if denom <= 0 {
		return 1
	}
	return math.Pow(1-s2, 1.5) / denom
}
