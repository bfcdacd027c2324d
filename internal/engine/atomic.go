// SPDX-License-Identifier: MIT
package engine

import (
	"math"
	"sync/atomic"
)

// atomicFloat64 crosses a scalar parameter between the control goroutines
// and the audio callback. Each parameter is independently consumed on the
// callback's next tick; no transactional semantics are needed.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (f *atomicFloat64) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

func (f *atomicFloat64) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
