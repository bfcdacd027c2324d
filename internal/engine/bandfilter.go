// SPDX-License-Identifier: MIT
package engine

import (
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// Filter resonance bounds. Q defaults to 1.0: high enough to isolate the
// band, low enough to avoid audible ringing. Construction clamps rather
// than rejects, so a misconfigured Q can never produce an unstable stage.
const (
	defaultBandQ = 1.0
	minBandQ     = 0.3
	maxBandQ     = 4.0
)

// BandFilter isolates one band's content from the full-bandwidth input,
// implemented as an RBJ constant-skirt bandpass biquad centered at the
// band's geometric midpoint.
type BandFilter struct {
	section  *biquad.Section
	centerHz float64
	q        float64
}

// NewBandFilter designs the bandpass stage for band at the given sample
// rate. q outside [0.3, 4] is clamped.
func NewBandFilter(band Band, q, sampleRate float64) *BandFilter {
	q = clamp(q, minBandQ, maxBandQ)
	center := band.CenterHz()

	return &BandFilter{
		section:  biquad.NewSection(design.Bandpass(center, q, sampleRate)),
		centerHz: center,
		q:        q,
	}
}

// ProcessTo filters src into dst. Both must have the same length.
// Zero-alloc; called from the capture path once per block.
func (f *BandFilter) ProcessTo(dst, src []float64) {
	f.section.ProcessBlockTo(dst, src)
}

// CenterHz returns the bandpass center frequency.
func (f *BandFilter) CenterHz() float64 {
	return f.centerHz
}

// Reset clears the filter's delay-line state.
func (f *BandFilter) Reset() {
	f.section.Reset()
}
