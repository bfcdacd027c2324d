// SPDX-License-Identifier: MIT
package engine

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/effects/dynamics"
)

// Bus compression defaults: moderate threshold, 6:1, fast attack, medium
// release. Many simultaneous bands plus sends are additive, so the
// compressor is the structural defense against clipping here, not a
// creative effect.
const (
	masterThresholdDB = -18.0
	masterRatio       = 6.0
	masterAttackMs    = 5.0
	masterReleaseMs   = 120.0

	// Volume changes glide over ~30 ms to avoid zipper noise.
	volumeSmoothSeconds = 0.03
)

// MasterBus applies dynamics compression and the master volume to the
// summed bus, and tracks a block RMS level for the visualization feed.
type MasterBus struct {
	comp *dynamics.Compressor

	volume atomicFloat64 // target, set from any goroutine
	level  atomicFloat64 // block RMS after volume, read by pollers

	// Callback-owned smoothing state.
	smoothedVolume float64
	volumeCoeff    float64
}

// NewMasterBus configures the bus compressor for the given sample rate.
func NewMasterBus(sampleRate float64) (*MasterBus, error) {
	comp, err := dynamics.NewCompressor(sampleRate)
	if err != nil {
		return nil, err
	}
	if err := comp.SetThreshold(masterThresholdDB); err != nil {
		return nil, err
	}
	if err := comp.SetRatio(masterRatio); err != nil {
		return nil, err
	}
	if err := comp.SetAttack(masterAttackMs); err != nil {
		return nil, err
	}
	if err := comp.SetRelease(masterReleaseMs); err != nil {
		return nil, err
	}
	// Auto makeup would boost quiet passages back up and defeat the
	// headroom this stage exists to provide.
	if err := comp.SetAutoMakeup(false); err != nil {
		return nil, err
	}

	m := &MasterBus{
		comp:           comp,
		volumeCoeff:    1 - math.Exp(-1/(volumeSmoothSeconds*sampleRate)),
		smoothedVolume: 0.8,
	}
	m.volume.Store(0.8)
	return m, nil
}

// Process compresses buf in place, applies the smoothed master volume and
// records the block's RMS. Zero-alloc, called once per audio block.
func (m *MasterBus) Process(buf []float64) {
	m.comp.ProcessInPlace(buf)

	target := m.volume.Load()
	var sumSquares float64
	for i := range buf {
		m.smoothedVolume += (target - m.smoothedVolume) * m.volumeCoeff
		buf[i] *= m.smoothedVolume
		sumSquares += buf[i] * buf[i]
	}
	m.level.Store(math.Sqrt(sumSquares / float64(len(buf))))
}

// SetVolume sets the master volume target in [0, 1].
func (m *MasterBus) SetVolume(v float64) {
	m.volume.Store(clamp(v, 0, 1))
}

// Volume returns the master volume target.
func (m *MasterBus) Volume() float64 {
	return m.volume.Load()
}

// Level returns the most recent block's RMS after the master volume.
func (m *MasterBus) Level() float64 {
	return m.level.Load()
}

// Reset clears compressor and smoothing state. Only valid while the
// stream is stopped.
func (m *MasterBus) Reset() {
	m.comp.Reset()
	m.smoothedVolume = m.volume.Load()
	m.level.Store(0)
}
