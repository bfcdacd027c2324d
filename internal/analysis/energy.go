// SPDX-License-Identifier: MIT
/*
Package analysis computes smoothed per-band spectral energy from the
input stream, feeding the visualization and network transports.

The analyzer accumulates fixed-size audio blocks into an FFT frame and
transforms once per filled frame. All buffers are pre-allocated; Process
is safe to call from the audio callback.
*/
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"bandstretch/pkg/bitint"
)

// NumBands is the fixed size of the energy vector.
const NumBands = 24

// frameSeconds is the analysis window target. The actual frame length is
// the next power of two at the stream rate, so 44.1 and 48 kHz both land
// on 4096 points (~10.8 Hz bins, enough to resolve the lowest band).
const frameSeconds = 0.08

// Frame length bounds in samples.
const (
	minFrameSize = 1024
	maxFrameSize = 8192
)

// smoothingAlpha is the exponential smoothing retention per analysis
// frame. Higher values settle slower and read calmer.
const smoothingAlpha = 0.7

// Band is one analysis range in Hz.
type Band struct {
	LowHz  float64
	HighHz float64
}

// workspace holds every buffer the transform needs, allocated once.
type workspace struct {
	frame     []float64    // accumulated input samples
	input     []float64    // windowed copy handed to the FFT
	fftOutput []complex128 // complex spectrum
	window    []float64    // Hann coefficients
}

// bandBins maps one band onto its span of FFT bins. Bins straddling a
// band edge contribute fractionally, split between the neighbors, so a
// band's reading is the mean bin magnitude over exactly its span.
type bandBins struct {
	first     int
	weights   []float64
	invWeight float64 // 1 / sum(weights)
}

// Analyzer computes a smoothed [NumBands]float64 energy vector, each
// entry in [0, 1]. One writer (the audio callback via Process), any
// number of readers (via Energies).
type Analyzer struct {
	sampleRate float64
	fftSize    int
	fftObj     *fourier.FFT
	ws         workspace
	fill       int

	bins [NumBands]bandBins
	norm float64

	mu       sync.RWMutex
	smoothed [NumBands]float64
}

// New builds an analyzer for exactly NumBands contiguous bands.
func New(sampleRate float64, bands []Band) (*Analyzer, error) {
	if len(bands) != NumBands {
		return nil, fmt.Errorf("analysis: got %d bands, want %d", len(bands), NumBands)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("analysis: invalid sample rate %f", sampleRate)
	}

	fftSize := frameSize(sampleRate)

	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}

	a := &Analyzer{
		sampleRate: sampleRate,
		fftSize:    fftSize,
		fftObj:     fourier.NewFFT(fftSize),
		ws: workspace{
			frame:     make([]float64, fftSize),
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, fftSize/2+1),
			window:    window,
		},
		// A full-scale sine peaks near fftSize/4 after a Hann window,
		// so a band one bin wide carrying full-scale content reads ~1.
		// Wider bands average over their span, diluting narrowband
		// content in proportion to bandwidth.
		norm: 4 / float64(fftSize),
	}

	binHz := sampleRate / float64(fftSize)
	maxBin := fftSize / 2
	for b, band := range bands {
		first := int(band.LowHz / binHz)
		last := int(math.Ceil(band.HighHz / binHz))
		if last > maxBin {
			last = maxBin
		}
		if first >= last {
			first = last - 1
		}

		weights := make([]float64, last-first)
		total := 0.0
		for i := range weights {
			binLow := float64(first+i) * binHz
			binHigh := binLow + binHz
			w := (math.Min(band.HighHz, binHigh) - math.Max(band.LowHz, binLow)) / binHz
			if w < 0 {
				w = 0
			}
			weights[i] = w
			total += w
		}
		if total <= 0 {
			weights[0], total = 1, 1
		}
		a.bins[b] = bandBins{first: first, weights: weights, invWeight: 1 / total}
	}
	return a, nil
}

// frameSize snaps the target window to a power of two for the FFT,
// bounded so extreme rates keep a sane latency/resolution trade.
func frameSize(sampleRate float64) int {
	n := bitint.NextPowerOfTwo(int(sampleRate * frameSeconds))
	if n < minFrameSize {
		n = minFrameSize
	}
	if n > maxFrameSize {
		n = maxFrameSize
	}
	return n
}

// Process accumulates one audio block and, once a full FFT frame is
// buffered, recomputes the energy vector. Zero-alloc; the transform runs
// on the caller's goroutine.
func (a *Analyzer) Process(block []float64) {
	for _, s := range block {
		a.ws.frame[a.fill] = s
		a.fill++
		if a.fill == a.fftSize {
			a.analyzeFrame()
			a.fill = 0
		}
	}
}

func (a *Analyzer) analyzeFrame() {
	for i := range a.ws.frame {
		a.ws.input[i] = a.ws.frame[i] * a.ws.window[i]
	}
	a.fftObj.Coefficients(a.ws.fftOutput, a.ws.input)

	var raw [NumBands]float64
	for b := range a.bins {
		bb := &a.bins[b]
		sum := 0.0
		for j, w := range bb.weights {
			sum += w * cmplx.Abs(a.ws.fftOutput[bb.first+j])
		}
		v := sum * bb.invWeight * a.norm
		if v > 1 {
			v = 1
		}
		raw[b] = v
	}

	a.mu.Lock()
	for b := range a.smoothed {
		a.smoothed[b] += (raw[b] - a.smoothed[b]) * (1 - smoothingAlpha)
	}
	a.mu.Unlock()
}

// Energies returns an immutable snapshot of the smoothed energy vector.
// Safe to call from any goroutine at any rate.
func (a *Analyzer) Energies() [NumBands]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.smoothed
}

// Reset clears the accumulated frame and the smoothed vector.
func (a *Analyzer) Reset() {
	a.fill = 0
	a.mu.Lock()
	a.smoothed = [NumBands]float64{}
	a.mu.Unlock()
}
