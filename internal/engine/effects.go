// SPDX-License-Identifier: MIT
package engine

import (
	"math"
	"math/rand"
	"sync"

	"github.com/cwbudde/algo-dsp/dsp/conv"
	"github.com/cwbudde/algo-dsp/dsp/effects"
	"github.com/cwbudde/algo-dsp/dsp/effects/modulation"
)

const (
	defaultReverbSeconds   = 2.5
	defaultDelaySeconds    = 0.45
	defaultDelayFeedback   = 0.35
	defaultDistortionDrive = 6.0
	defaultRingModHz       = 220.0
)

// EffectsChain holds five parallel sends mixed additively into the bus:
// convolution reverb, delay, waveshaping distortion, ring modulation and
// chorus. The sends share one dry snapshot per block and have no ordering
// dependency on each other.
//
// Send amounts are atomics and safe to set from any goroutine. Effect
// parameter setters rebuild internal state, so they take the chain lock;
// the audio callback uses TryLock and passes the block dry rather than
// wait on a reconfiguration.
type EffectsChain struct {
	mu sync.Mutex

	reverb  *conv.StreamingOverlapAdd
	delay   *effects.Delay
	dist    *effects.Distortion
	ringMod *modulation.RingModulator
	chorus  *modulation.Chorus

	reverbAmount  atomicFloat64
	delayAmount   atomicFloat64
	distAmount    atomicFloat64
	ringModAmount atomicFloat64
	chorusAmount  atomicFloat64

	dry []float64
	wet []float64
}

// NewEffectsChain builds all five sends for a fixed block size. The reverb
// kernel is synthesized once at construction; nothing allocates after this
// returns.
func NewEffectsChain(sampleRate float64, blockSize int) (*EffectsChain, error) {
	reverb, err := conv.NewStreamingOverlapAdd(reverbKernel(sampleRate, defaultReverbSeconds), blockSize)
	if err != nil {
		return nil, err
	}

	dly, err := effects.NewDelay(sampleRate)
	if err != nil {
		return nil, err
	}
	if err := dly.SetTime(defaultDelaySeconds); err != nil {
		return nil, err
	}
	if err := dly.SetFeedback(defaultDelayFeedback); err != nil {
		return nil, err
	}
	if err := dly.SetMix(1); err != nil { // send returns pure wet
		return nil, err
	}

	dist, err := effects.NewDistortion(sampleRate,
		effects.WithDistortionDrive(defaultDistortionDrive),
		effects.WithDistortionMix(1),
	)
	if err != nil {
		return nil, err
	}

	ringMod, err := modulation.NewRingModulator(sampleRate,
		modulation.WithRingModCarrierHz(defaultRingModHz),
		modulation.WithRingModMix(1),
	)
	if err != nil {
		return nil, err
	}

	chorus, err := modulation.NewChorus()
	if err != nil {
		return nil, err
	}
	if err := chorus.SetSampleRate(sampleRate); err != nil {
		return nil, err
	}
	if err := chorus.SetMix(1); err != nil {
		return nil, err
	}

	return &EffectsChain{
		reverb:  reverb,
		delay:   dly,
		dist:    dist,
		ringMod: ringMod,
		chorus:  chorus,
		dry:     make([]float64, blockSize),
		wet:     make([]float64, blockSize),
	}, nil
}

// reverbKernel synthesizes a decaying-noise impulse response, roughly
// -60 dB at the tail, normalized to unit energy. Seeded so the room sounds
// the same every run.
func reverbKernel(sampleRate, seconds float64) []float64 {
	rng := rand.New(rand.NewSource(1))
	n := int(seconds * sampleRate)
	kernel := make([]float64, n)

	var energy float64
	for i := range kernel {
		t := float64(i) / float64(n)
		kernel[i] = (rng.Float64()*2 - 1) * math.Exp(-6.9*t)
		energy += kernel[i] * kernel[i]
	}
	scale := 1 / math.Sqrt(energy)
	for i := range kernel {
		kernel[i] *= scale
	}
	return kernel
}

// Process mixes all enabled sends into bus in place. len(bus) must equal
// the block size given at construction. If a reconfiguration holds the
// chain lock the block passes through dry; one dry block is inaudible,
// blocking the audio callback is not.
func (e *EffectsChain) Process(bus []float64) {
	if !e.mu.TryLock() {
		return
	}

	copy(e.dry, bus)

	if amt := e.reverbAmount.Load(); amt > 0 {
		if err := e.reverb.ProcessBlockTo(e.wet, e.dry); err == nil {
			mixInto(bus, e.wet, amt)
		}
	}
	if amt := e.delayAmount.Load(); amt > 0 {
		copy(e.wet, e.dry)
		e.delay.ProcessInPlace(e.wet)
		mixInto(bus, e.wet, amt)
	}
	if amt := e.distAmount.Load(); amt > 0 {
		copy(e.wet, e.dry)
		e.dist.ProcessInPlace(e.wet)
		mixInto(bus, e.wet, amt)
	}
	if amt := e.ringModAmount.Load(); amt > 0 {
		copy(e.wet, e.dry)
		e.ringMod.ProcessInPlace(e.wet)
		mixInto(bus, e.wet, amt)
	}
	if amt := e.chorusAmount.Load(); amt > 0 {
		copy(e.wet, e.dry)
		e.chorus.ProcessInPlace(e.wet)
		mixInto(bus, e.wet, amt)
	}

	e.mu.Unlock()
}

func mixInto(dst, src []float64, gain float64) {
	for i := range dst {
		dst[i] += src[i] * gain
	}
}

// Send amount setters, all clamped to [0, 1]. Zero disables the send
// entirely, including its processing cost.

func (e *EffectsChain) SetReverbAmount(amount float64)  { e.reverbAmount.Store(clamp(amount, 0, 1)) }
func (e *EffectsChain) SetDelayAmount(amount float64)   { e.delayAmount.Store(clamp(amount, 0, 1)) }
func (e *EffectsChain) SetDistortionAmount(amount float64) {
	e.distAmount.Store(clamp(amount, 0, 1))
}
func (e *EffectsChain) SetRingModAmount(amount float64) { e.ringModAmount.Store(clamp(amount, 0, 1)) }
func (e *EffectsChain) SetChorusAmount(amount float64)  { e.chorusAmount.Store(clamp(amount, 0, 1)) }

// SetDelayTime retunes the delay send. Takes the chain lock; the callback
// skips the sends for at most one block while the buffer is rebuilt.
func (e *EffectsChain) SetDelayTime(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.delay.SetTime(seconds)
}

// SetDelayFeedback sets the delay send's internal regeneration in [0, 1).
func (e *EffectsChain) SetDelayFeedback(feedback float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.delay.SetFeedback(feedback)
}

// SetDistortionDrive sets the waveshaper input drive.
func (e *EffectsChain) SetDistortionDrive(drive float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dist.SetDrive(drive)
}

// SetRingModCarrier sets the ring modulator's carrier frequency in Hz.
func (e *EffectsChain) SetRingModCarrier(hz float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ringMod.SetCarrierHz(hz)
}

// SetChorusRate sets the chorus LFO speed in Hz.
func (e *EffectsChain) SetChorusRate(hz float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chorus.SetSpeedHz(hz)
}

// SetChorusDepth sets the chorus modulation depth.
func (e *EffectsChain) SetChorusDepth(depth float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chorus.SetDepth(depth)
}

// Reset clears all send state. Only valid while the stream is stopped.
func (e *EffectsChain) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reverb.Reset()
	e.delay.Reset()
	e.dist.Reset()
	e.ringMod.Reset()
	e.chorus.Reset()
}
