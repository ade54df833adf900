// Package shuffle emulates the staged physical shuffle used between shoes:
// repeated split/chunk/riffle passes, a Hindu strip and re-riffle on the final
// pass, and a closing cut.
package shuffle

import (
	"math/rand"
	"time"
)

const (
	DefaultIterations   = 4
	DefaultChunks       = 8
	DefaultImperfection = 0.05
)

type Params struct {
	Iterations int    `json:"iterations"`
	Chunks     int    `json:"chunks"`
	Seed       *int64 `json:"seed,omitempty"`
	// Imperfection is the chance that a riffle clump is drawn from {2,3,4}
	// instead of {1,2,3}. Nil means DefaultImperfection; zero disables clumping.
	Imperfection *float64 `json:"imperfection,omitempty"`
}

// Chance returns a pointer for Params.Imperfection.
func Chance(v float64) *float64 { return &v }

func DefaultParams() Params {
	return Params{Iterations: DefaultIterations, Chunks: DefaultChunks, Imperfection: Chance(DefaultImperfection)}
}

// Normalize fills unset or out-of-range fields with defaults.
func (p Params) Normalize() Params {
	if p.Iterations < 1 {
		p.Iterations = DefaultIterations
	}
	if p.Chunks < 1 {
		p.Chunks = DefaultChunks
	}
	if p.Imperfection == nil || *p.Imperfection < 0 || *p.Imperfection > 1 {
		p.Imperfection = Chance(DefaultImperfection)
	}
	return p
}

func (p Params) rand() *rand.Rand {
	if p.Seed != nil {
		return rand.New(rand.NewSource(*p.Seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Run shuffles stack and returns a new slice holding the same elements. The
// input is not modified. With a seed the output is fully determined by
// (stack, iterations, chunks, seed).
func Run[T any](stack []T, p Params) []T {
	if len(stack) == 0 {
		return []T{}
	}
	p = p.Normalize()
	rnd := p.rand()
	imperfection := *p.Imperfection

	state := append([]T(nil), stack...)
	for i := 1; i <= p.Iterations; i++ {
		a, b := SplitHalf(state)
		ca := SplitIntoChunks(a, p.Chunks)
		cb := SplitIntoChunks(b, p.Chunks)
		results := make([][]T, 0, p.Chunks)
		for j := 0; j < p.Chunks; j++ {
			r := Riffle(ca[j], cb[j], rnd, imperfection)
			if i == p.Iterations {
				h := HinduStrip(r, 0)
				h1, h2 := SplitHalf(h)
				r = Riffle(h1, h2, rnd, imperfection)
			}
			results = append(results, r)
		}
		// Last chunk ends on top.
		next := make([]T, 0, len(state))
		for j := len(results) - 1; j >= 0; j-- {
			next = append(next, results[j]...)
		}
		state = next
	}

	top, bottom := SplitHalf(state)
	out := make([]T, 0, len(state))
	out = append(out, bottom...)
	return append(out, top...)
}
