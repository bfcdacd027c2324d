// SPDX-License-Identifier: MIT
package engine

import (
	"sync/atomic"
)

// Band synthesis states. The only valid transitions are Idle to
// Synthesizing (start), Synthesizing to Stopping (stop) and Stopping to
// Idle (fade complete). Starting an already-synthesizing band only updates
// its stretch factor.
const (
	stateIdle int32 = iota
	stateSynthesizing
	stateStopping
)

// fadeSeconds is the linear output-gain ramp applied on start and stop so
// neither transition produces a sample-level discontinuity.
const fadeSeconds = 0.18

// BandProcessor owns everything one band needs: the bandpass filter, the
// capture ring, the grain scheduler and a smoothed output gain. Capture
// runs continuously regardless of synthesis state so history is always
// available the moment a band is started.
type BandProcessor struct {
	band   Band
	filter *BandFilter
	ring   *RingBuffer
	sched  *GrainScheduler

	state      atomic.Int32
	outputGain atomicFloat64 // per-band gain target set by the control surface

	// Callback-owned ramp state.
	gain     float64
	gainStep float64

	scratch  []float64 // filtered capture block
	voiceBuf []float64 // rendered grains before gain
}

// NewBandProcessor allocates the band's ring (bufferSeconds of history) and
// scratch blocks once; nothing is resized or reallocated afterwards.
func NewBandProcessor(band Band, sampleRate float64, blockSize int, bufferSeconds, grainSeconds, overlap float64) *BandProcessor {
	ring := NewRingBuffer(int(bufferSeconds * sampleRate))

	p := &BandProcessor{
		band:     band,
		filter:   NewBandFilter(band, defaultBandQ, sampleRate),
		ring:     ring,
		sched:    NewGrainScheduler(ring, sampleRate, grainSeconds, overlap),
		gainStep: 1 / (fadeSeconds * sampleRate),
		scratch:  make([]float64, blockSize),
		voiceBuf: make([]float64, blockSize),
	}
	p.outputGain.Store(1)
	return p
}

// Band returns the processor's immutable band descriptor.
func (p *BandProcessor) Band() Band {
	return p.band
}

// Scheduler exposes the band's grain scheduler for parameter updates.
func (p *BandProcessor) Scheduler() *GrainScheduler {
	return p.sched
}

// Capture filters a full-bandwidth block down to this band and appends it
// to the ring. Runs on the capture path every block: no allocation, no
// locks, fixed-time work.
func (p *BandProcessor) Capture(in []float64) {
	p.filter.ProcessTo(p.scratch, in)
	p.ring.Write(p.scratch)
}

// Render adds the band's synthesized output into bus, applying the gain
// ramp. When a stop fade completes the band parks itself back in Idle and
// clears its voices.
func (p *BandProcessor) Render(bus []float64) {
	state := p.state.Load()
	if state == stateIdle && p.gain == 0 {
		return
	}

	for i := range p.voiceBuf {
		p.voiceBuf[i] = 0
	}
	// Grains keep firing during the stop fade; the ramp is what silences
	// the band, so no voice is ever truncated audibly.
	p.sched.RenderBlock(p.voiceBuf, state != stateIdle)

	target := 0.0
	if state == stateSynthesizing {
		target = p.outputGain.Load()
	}

	for i := range bus {
		if p.gain < target {
			p.gain += p.gainStep
			if p.gain > target {
				p.gain = target
			}
		} else if p.gain > target {
			p.gain -= p.gainStep
			if p.gain < target {
				p.gain = target
			}
		}
		bus[i] += p.voiceBuf[i] * p.gain
	}

	if state == stateStopping && p.gain == 0 {
		p.sched.KillVoices()
		p.state.CompareAndSwap(stateStopping, stateIdle)
	}
}

// Start begins synthesis at the given stretch factor. Starting an active
// band is idempotent and only updates the stretch. Returns true when the
// call actually transitioned the band out of Idle.
func (p *BandProcessor) Start(stretch float64) bool {
	p.sched.SetStretch(stretch)

	for {
		switch state := p.state.Load(); state {
		case stateSynthesizing:
			return false
		case stateStopping:
			// Restart during the fade-out: resume without resetting the
			// cursor so the texture continues from where it was.
			if p.state.CompareAndSwap(stateStopping, stateSynthesizing) {
				return false
			}
		case stateIdle:
			if p.state.CompareAndSwap(stateIdle, stateSynthesizing) {
				p.sched.RequestCursorReset()
				return true
			}
		}
	}
}

// SetStretch updates the stretch factor immediately, with no fade.
func (p *BandProcessor) SetStretch(stretch float64) {
	p.sched.SetStretch(stretch)
}

// Stop fades the band's output to zero and then halts grain emission.
// Stopping an inactive band is a no-op.
func (p *BandProcessor) Stop() {
	p.state.CompareAndSwap(stateSynthesizing, stateStopping)
}

// SetOutputGain sets the band's output gain target in [0, 1]. The change is
// smoothed by the per-sample ramp, never applied as a jump.
func (p *BandProcessor) SetOutputGain(gain float64) {
	p.outputGain.Store(clamp(gain, 0, 1))
}

// IsActive reports whether the band is synthesizing or fading out.
func (p *BandProcessor) IsActive() bool {
	return p.state.Load() != stateIdle
}

// IsSynthesizing reports whether the band is in the Synthesizing state.
func (p *BandProcessor) IsSynthesizing() bool {
	return p.state.Load() == stateSynthesizing
}

// Reset clears all callback state. Only valid while the stream is stopped.
func (p *BandProcessor) Reset() {
	p.state.Store(stateIdle)
	p.gain = 0
	p.filter.Reset()
	p.ring.Reset()
	p.sched.KillVoices()
}
