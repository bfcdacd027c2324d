// SPDX-License-Identifier: MIT
package engine

import (
	"errors"
	"sync/atomic"

	"bandstretch/internal/analysis"
	"bandstretch/internal/config"
)

var (
	// ErrInvalidBand is returned by band-indexed operations for indices
	// outside [0, 24). The engine's state is untouched on rejection.
	ErrInvalidBand = errors.New("band index out of range")

	// ErrTooManyActiveBands is returned by StartBandSynthesis when the
	// configured concurrent-synthesis cap is reached.
	ErrTooManyActiveBands = errors.New("active band limit reached")
)

// Engine is the orchestrating facade. It owns the 24 band processors, the
// spectral analyzer, the feedback loop, the effects sends and the master
// bus, and exposes the control API used by the CLI, transports and TUI.
//
// ProcessBlock is the audio-callback entry point and must never allocate
// or block. All control methods are safe to call from other goroutines
// while the stream runs, except Reset and Close.
type Engine struct {
	sampleRate float64
	blockSize  int
	maxActive  int

	bands    [NumBands]*BandProcessor
	analyzer *analysis.Analyzer
	feedback *FeedbackNetwork
	effects  *EffectsChain
	master   *MasterBus

	gateEnabled   atomic.Bool
	gateThreshold atomicFloat64

	gated []float64 // gate-conditioned input
	bus   []float64 // band sum, feedback return and sends
}

// NewEngine allocates the full processing graph up front: 24 band
// processors with their rings, the analyzer, feedback loop, effect sends
// and master bus. Nothing allocates after construction.
func NewEngine(cfg *config.Config) (*Engine, error) {
	sampleRate := cfg.Audio.SampleRate
	blockSize := cfg.Audio.FramesPerBuffer

	analyzerBands := make([]analysis.Band, NumBands)
	for i, b := range Bands() {
		analyzerBands[i] = analysis.Band{LowHz: b.MinHz, HighHz: b.MaxHz}
	}
	analyzer, err := analysis.New(sampleRate, analyzerBands)
	if err != nil {
		return nil, err
	}

	feedback, err := NewFeedbackNetwork(sampleRate)
	if err != nil {
		return nil, err
	}
	effects, err := NewEffectsChain(sampleRate, blockSize)
	if err != nil {
		return nil, err
	}
	master, err := NewMasterBus(sampleRate)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		maxActive:  cfg.Engine.MaxActiveBands,
		analyzer:   analyzer,
		feedback:   feedback,
		effects:    effects,
		master:     master,
		gated:      make([]float64, blockSize),
		bus:        make([]float64, blockSize),
	}
	for i, b := range Bands() {
		e.bands[i] = NewBandProcessor(b, sampleRate, blockSize,
			cfg.Engine.BufferSeconds, cfg.Engine.GrainSeconds, cfg.Engine.OverlapFactor)
	}

	e.gateEnabled.Store(true)
	e.gateThreshold.Store(cfg.Engine.GateThreshold)
	return e, nil
}

// ProcessBlock runs one block through the whole graph: gate, analysis,
// per-band capture, per-band synthesis, feedback, sends, master. in and
// out must both be blockSize long.
func (e *Engine) ProcessBlock(in, out []float64) {
	// Capture gate: a closed gate feeds silence downstream instead of
	// skipping the block, so write cursors keep their cadence and the
	// safety-margin math holds.
	gain := 1.0
	if e.gateEnabled.Load() {
		var peak float64
		for _, s := range in {
			if s < 0 {
				s = -s
			}
			if s > peak {
				peak = s
			}
		}
		if peak <= e.gateThreshold.Load() {
			gain = 0
		}
	}
	for i := range e.gated {
		e.gated[i] = in[i] * gain
	}

	e.analyzer.Process(e.gated)
	for _, b := range e.bands {
		b.Capture(e.gated)
	}

	for i := range e.bus {
		e.bus[i] = 0
	}
	for _, b := range e.bands {
		b.Render(e.bus)
	}

	e.feedback.Process(e.bus)
	e.effects.Process(e.bus)
	e.master.Process(e.bus)

	copy(out, e.bus)
}

// StartBandSynthesis begins granular playback for one band at the given
// stretch factor. Starting an already-active band just retunes its
// stretch. Fails without mutating state on a bad index or when the
// concurrency cap is reached.
func (e *Engine) StartBandSynthesis(band int, stretch float64) error {
	if band < 0 || band >= NumBands {
		return ErrInvalidBand
	}
	b := e.bands[band]
	if !b.IsActive() && e.ActiveBands() >= e.maxActive {
		return ErrTooManyActiveBands
	}
	b.Start(stretch)
	return nil
}

// UpdateBandStretch retunes an active band's stretch factor immediately,
// with no fade.
func (e *Engine) UpdateBandStretch(band int, stretch float64) error {
	if band < 0 || band >= NumBands {
		return ErrInvalidBand
	}
	e.bands[band].SetStretch(stretch)
	return nil
}

// StopBandSynthesis fades a band out and returns it to idle. Stopping an
// inactive band is a no-op.
func (e *Engine) StopBandSynthesis(band int) error {
	if band < 0 || band >= NumBands {
		return ErrInvalidBand
	}
	e.bands[band].Stop()
	return nil
}

// SetBandGain sets one band's output gain target in [0, 1].
func (e *Engine) SetBandGain(band int, gain float64) error {
	if band < 0 || band >= NumBands {
		return ErrInvalidBand
	}
	e.bands[band].SetOutputGain(gain)
	return nil
}

// ActiveBands returns how many bands are synthesizing or fading out.
func (e *Engine) ActiveBands() int {
	n := 0
	for _, b := range e.bands {
		if b.IsActive() {
			n++
		}
	}
	return n
}

// BandActive reports whether the band is synthesizing or fading out.
// Out-of-range indices report false.
func (e *Engine) BandActive(band int) bool {
	if band < 0 || band >= NumBands {
		return false
	}
	return e.bands[band].IsActive()
}

// BandEnergies returns the smoothed per-band energy snapshot for the
// visualization feed. Always 24 values in [0, 1].
func (e *Engine) BandEnergies() [NumBands]float64 {
	return e.analyzer.Energies()
}

// AudioLevel returns the master bus RMS of the most recent block.
func (e *Engine) AudioLevel() float64 {
	return e.master.Level()
}

// SetMasterVolume sets the output volume target in [0, 1].
func (e *Engine) SetMasterVolume(v float64) {
	e.master.SetVolume(v)
}

// SetGrainSize sets the grain duration in seconds for all bands.
func (e *Engine) SetGrainSize(seconds float64) {
	for _, b := range e.bands {
		b.Scheduler().SetGrainSeconds(seconds)
	}
}

// SetOverlap sets the grain overlap factor for all bands.
func (e *Engine) SetOverlap(overlap float64) {
	for _, b := range e.bands {
		b.Scheduler().SetOverlap(overlap)
	}
}

// Feedback loop controls; amount is hard-clamped below self-oscillation
// inside the network.

func (e *Engine) SetFeedbackAmount(amount float64)    { e.feedback.SetAmount(amount) }
func (e *Engine) SetFeedbackDelay(seconds float64)    { e.feedback.SetDelayTime(seconds) }
func (e *Engine) SetFeedbackFilterRange(hp, lp float64) {
	e.feedback.SetFilterRange(hp, lp)
}

// Effect send controls, delegated to the chain.

func (e *Engine) SetReverbAmount(amount float64)     { e.effects.SetReverbAmount(amount) }
func (e *Engine) SetDelayAmount(amount float64)      { e.effects.SetDelayAmount(amount) }
func (e *Engine) SetDistortionAmount(amount float64) { e.effects.SetDistortionAmount(amount) }
func (e *Engine) SetRingModAmount(amount float64)    { e.effects.SetRingModAmount(amount) }
func (e *Engine) SetChorusAmount(amount float64)     { e.effects.SetChorusAmount(amount) }

func (e *Engine) SetDelayTime(seconds float64) error    { return e.effects.SetDelayTime(seconds) }
func (e *Engine) SetDelayFeedback(fb float64) error     { return e.effects.SetDelayFeedback(fb) }
func (e *Engine) SetDistortionDrive(drive float64) error {
	return e.effects.SetDistortionDrive(drive)
}
func (e *Engine) SetRingModCarrier(hz float64) error { return e.effects.SetRingModCarrier(hz) }
func (e *Engine) SetChorusRate(hz float64) error     { return e.effects.SetChorusRate(hz) }
func (e *Engine) SetChorusDepth(depth float64) error { return e.effects.SetChorusDepth(depth) }

// Capture gate controls.

func (e *Engine) EnableGate()  { e.gateEnabled.Store(true) }
func (e *Engine) DisableGate() { e.gateEnabled.Store(false) }

// SetGateThreshold adjusts the capture gate threshold in [0, 1], where 0
// is always open.
func (e *Engine) SetGateThreshold(threshold float64) {
	e.gateThreshold.Store(clamp(threshold, 0, 1))
}

// GateThreshold returns the current capture gate threshold.
func (e *Engine) GateThreshold() float64 {
	return e.gateThreshold.Load()
}

// Reset returns the whole graph to its initial state. Only valid while
// the stream is stopped; it touches callback-owned state directly.
func (e *Engine) Reset() {
	for _, b := range e.bands {
		b.Reset()
	}
	e.analyzer.Reset()
	e.feedback.Reset()
	e.effects.Reset()
	e.master.Reset()
}

// Close fades nothing and frees nothing: the engine owns no OS resources.
// It stops all bands so a subsequent stream start comes up silent.
func (e *Engine) Close() error {
	for i := range e.bands {
		e.bands[i].Stop()
	}
	return nil
}
