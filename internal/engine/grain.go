// SPDX-License-Identifier: MIT
package engine

import (
	"math"
	"sync/atomic"
)

const (
	// MinStretch and MaxStretch bound the time-stretch factor.
	MinStretch = 1.0
	MaxStretch = 8.0

	// MinOverlap and MaxOverlap bound the number of grains sounding at
	// once. Below 3 the stretched texture turns sparse and clicky; above
	// 6 the extra voices cost CPU without audible gain.
	MinOverlap = 3.0
	MaxOverlap = 6.0

	// safetyMarginSeconds is the minimum trailing distance the read cursor
	// keeps behind the write cursor, so a grain never reads samples not yet
	// written in the current wrap.
	safetyMarginSeconds = 0.1

	// maxGrainVoices bounds concurrent voices per band. Overlap tops out at
	// 6, so the pool never saturates in practice; an exhausted pool drops
	// the grain rather than allocating.
	maxGrainVoices = 16

	minGrainSamples = 64
)

// grainVoice is one fire-and-forget windowed playback voice. Once spawned it
// runs to completion autonomously; the scheduler does not track it beyond
// its slot in the pool.
type grainVoice struct {
	active   bool
	start    int64 // absolute read position in the ring
	pos      int   // offset within the grain
	length   int
	amp      float64
	phase    float64 // Hann envelope phase
	phaseInc float64
}

// GrainScheduler converts one band's captured history into a time-stretched
// audible stream. It keeps a floating-point read cursor distinct from the
// ring's write cursor: every spawned grain advances the cursor by
// grainLen/stretch/overlap samples while grains are emitted every
// grainLen/overlap samples of wall-clock time, so grain density stays
// constant and only the rate of travel through the captured audio varies
// with the stretch factor.
//
// All methods suffixed with Block run on the audio callback; parameter
// setters are safe to call from any goroutine.
type GrainScheduler struct {
	ring       *RingBuffer
	sampleRate float64

	stretch  atomicFloat64
	grainSec atomicFloat64
	overlap  atomicFloat64

	readCursor     float64
	spawnCountdown int
	marginSamples  int
	voices         [maxGrainVoices]grainVoice
	resetRequest   atomic.Bool
}

// NewGrainScheduler creates a scheduler reading from ring.
func NewGrainScheduler(ring *RingBuffer, sampleRate, grainSeconds, overlap float64) *GrainScheduler {
	s := &GrainScheduler{
		ring:          ring,
		sampleRate:    sampleRate,
		marginSamples: int(safetyMarginSeconds * sampleRate),
	}
	s.stretch.Store(MinStretch)
	s.grainSec.Store(grainSeconds)
	s.overlap.Store(clamp(overlap, MinOverlap, MaxOverlap))
	return s
}

// SetStretch updates the stretch factor, clamped to [1, 8]. Applied on the
// next spawn with no fade; changing stretch mid-synthesis is click-free
// because it only alters cursor travel, not the emitted envelope.
func (s *GrainScheduler) SetStretch(stretch float64) {
	s.stretch.Store(clamp(stretch, MinStretch, MaxStretch))
}

// Stretch returns the current stretch factor.
func (s *GrainScheduler) Stretch() float64 {
	return s.stretch.Load()
}

// SetGrainSeconds updates the grain duration. In-flight voices keep the
// length they were spawned with.
func (s *GrainScheduler) SetGrainSeconds(seconds float64) {
	s.grainSec.Store(clamp(seconds, 0.02, 0.5))
}

// SetOverlap updates the overlap factor in [3, 6].
func (s *GrainScheduler) SetOverlap(overlap float64) {
	s.overlap.Store(clamp(overlap, MinOverlap, MaxOverlap))
}

// RequestCursorReset schedules a cursor reset to just behind the current
// write position, executed by the callback before the next rendered block.
// Used on the Idle to Synthesizing transition.
func (s *GrainScheduler) RequestCursorReset() {
	s.resetRequest.Store(true)
}

// RenderBlock adds the scheduler's output into out. When emit is true new
// grains are spawned at the scheduling interval; in-flight voices are
// always rendered to completion so a fade-out never truncates them.
// Runs on the audio callback: no allocation, no locks.
func (s *GrainScheduler) RenderBlock(out []float64, emit bool) {
	if s.resetRequest.CompareAndSwap(true, false) {
		s.resetCursor()
	}

	for i := range out {
		if emit {
			if s.spawnCountdown <= 0 {
				s.spawnCountdown = s.spawnGrain()
			}
			s.spawnCountdown--
		}
		out[i] += s.renderVoices()
	}
}

// ActiveVoices returns the number of currently sounding grain voices.
func (s *GrainScheduler) ActiveVoices() int {
	n := 0
	for i := range s.voices {
		if s.voices[i].active {
			n++
		}
	}
	return n
}

// KillVoices silences all voices immediately. Only called once the output
// gain has already been faded to zero, so it cannot click.
func (s *GrainScheduler) KillVoices() {
	for i := range s.voices {
		s.voices[i].active = false
	}
	s.spawnCountdown = 0
}

// ReadCursor returns the absolute read position.
func (s *GrainScheduler) ReadCursor() float64 {
	return s.readCursor
}

// MarginSamples returns the safety margin in samples.
func (s *GrainScheduler) MarginSamples() int {
	return s.marginSamples
}

func (s *GrainScheduler) resetCursor() {
	grainLen := s.grainSamples()
	cursor := s.ring.Written() - int64(s.marginSamples) - int64(grainLen)
	if cursor < 0 {
		cursor = 0
	}
	s.readCursor = float64(cursor)
	s.spawnCountdown = 0
}

func (s *GrainScheduler) grainSamples() int {
	n := int(math.Round(s.grainSec.Load() * s.sampleRate))
	if n < minGrainSamples {
		n = minGrainSamples
	}
	return n
}

// spawnGrain emits one grain if enough history has been captured and
// returns the wall-clock interval, in samples, until the next spawn. The
// interval depends only on grain length and overlap, never on stretch.
func (s *GrainScheduler) spawnGrain() int {
	stretch := s.stretch.Load()
	overlap := s.overlap.Load()
	grainLen := s.grainSamples()

	interval := int(float64(grainLen) / overlap)
	if interval < 1 {
		interval = 1
	}

	written := s.ring.Written()

	// Insufficient history: skip emission rather than reading garbage.
	if written < int64(2*grainLen) {
		return interval
	}

	// Never read into the zone the writer is about to fill.
	maxStart := written - int64(s.marginSamples) - int64(grainLen)
	if maxStart < 0 {
		return interval
	}
	if s.readCursor > float64(maxStart) {
		s.readCursor = float64(maxStart)
	}

	// Never read data that will be overwritten before the grain finishes.
	minStart := written + int64(grainLen) - int64(s.ring.Capacity())
	if minStart > 0 && s.readCursor < float64(minStart) {
		s.readCursor = float64(minStart)
	}

	slot := -1
	for i := range s.voices {
		if !s.voices[i].active {
			slot = i
			break
		}
	}
	if slot >= 0 {
		s.voices[slot] = grainVoice{
			active:   true,
			start:    int64(s.readCursor),
			length:   grainLen,
			amp:      2 / overlap, // overlapping Hann windows sum to overlap/2
			phaseInc: 2 * math.Pi / float64(grainLen-1),
		}
	}

	// A larger stretch advances the cursor more slowly relative to
	// wall-clock time; that slowdown is the stretch.
	s.readCursor += float64(grainLen) / (stretch * overlap)

	return interval
}

func (s *GrainScheduler) renderVoices() float64 {
	var sum float64
	for i := range s.voices {
		v := &s.voices[i]
		if !v.active {
			continue
		}
		env := 0.5 * (1 - math.Cos(v.phase))
		sum += s.ring.ReadAt(v.start+int64(v.pos)) * env * v.amp
		v.phase += v.phaseInc
		v.pos++
		if v.pos >= v.length {
			v.active = false
		}
	}
	return sum
}
