package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/sanspareilsmyn/factorlens/internal/message"
)

// market simulates a one-factor economy: each instrument's return is its beta
// times a common shock plus idiosyncratic noise, and caps compound returns.
type market struct {
	rng     *rand.Rand
	names   []string
	betas   []float64
	caps    []float64
	missing float64 // chance that an instrument skips a step
}

func newMarket(rng *rand.Rand, n int) *market {
	m := &market{rng: rng, missing: 0.03}
	for i := 0; i < n; i++ {
		m.names = append(m.names, fmt.Sprintf("INST%03d", i))
		m.betas = append(m.betas, 0.5+rng.Float64())
		m.caps = append(m.caps, 1e9*(1+9*rng.Float64()))
	}
	return m
}

func (m *market) tick(step uint64, now time.Time) message.Tick {
	tick := message.Tick{
		Step:        step,
		Timestamp:   now.UTC(),
		Instruments: make(map[string]message.Fields, len(m.names)),
	}
	shock := 0.01 * m.rng.NormFloat64()
	for i, name := range m.names {
		ret := m.betas[i]*shock + 0.015*m.rng.NormFloat64()
		if m.rng.Float64() < 0.01 {
			ret += 0.1 * m.rng.NormFloat64() // jump
		}
		m.caps[i] *= 1 + ret

		if m.rng.Float64() < m.missing {
			tick.Instruments[name] = message.Fields{"ret": nil, "cap": m.caps[i], "vol": nil}
			continue
		}
		tick.Instruments[name] = message.Fields{
			"ret": ret,
			"cap": m.caps[i],
			"vol": float64(1000 + m.rng.Intn(50000)),
		}
	}
	return tick
}
