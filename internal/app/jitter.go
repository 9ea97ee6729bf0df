package app

import "math/rand"

// DefaultJitterSpread is the +/- fraction applied to every projected figure.
const DefaultJitterSpread = 0.01

type Jitterer interface {
	Apply(v float64) float64
}

// RandomJitter masks exact provider-derived figures. Each call draws again.
type RandomJitter struct {
	spread float64
	draw   func() float64 // uniform in [0,1)
}

func NewRandomJitter(spread float64) *RandomJitter {
	return NewRandomJitterWithSource(spread, rand.Float64)
}

func NewRandomJitterWithSource(spread float64, draw func() float64) *RandomJitter {
	if spread <= 0 || spread >= 1 {
		spread = DefaultJitterSpread
	}
	if draw == nil {
		draw = rand.Float64
	}
	return &RandomJitter{spread: spread, draw: draw}
}

// Apply returns v unchanged when v <= 0 (or NaN), otherwise v*(1+f) with f in [-spread, +spread].
func (j *RandomJitter) Apply(v float64) float64 {
	if !(v > 0) {
		return v
	}
	f := (2*j.draw() - 1) * j.spread
	return v * (1 + f)
}
