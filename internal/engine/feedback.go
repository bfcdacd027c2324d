// SPDX-License-Identifier: MIT
package engine

import (
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/delay"
	"github.com/cwbudde/algo-dsp/dsp/effects/dynamics"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// maxFeedbackGain is the hard ceiling on loop gain. SetAmount clamps to it
// unconditionally; there is no way to configure a gain at or above
// self-oscillation. This is a safety invariant, not a default.
const maxFeedbackGain = 0.95

const (
	minFeedbackDelaySeconds     = 0.02
	maxFeedbackDelaySeconds     = 2.0
	defaultFeedbackDelaySeconds = 0.5

	defaultFeedbackHighpassHz = 120.0
	defaultFeedbackLowpassHz  = 6000.0
	loopFilterQ               = 0.7071
)

// loopFilter is the band-limiting pair in the feedback path. Both sections
// are swapped together via an atomic pointer so SetFilterRange never hands
// the callback a half-updated pair.
type loopFilter struct {
	hp *biquad.Section
	lp *biquad.Section
}

func newLoopFilter(highpassHz, lowpassHz, sampleRate float64) *loopFilter {
	return &loopFilter{
		hp: biquad.NewSection(design.Highpass(highpassHz, loopFilterQ, sampleRate)),
		lp: biquad.NewSection(design.Lowpass(lowpassHz, loopFilterQ, sampleRate)),
	}
}

// FeedbackNetwork feeds a delayed, band-limited copy of the band bus back
// into itself for sustained drones. The loop always runs through a
// fast-attack 100:1 limiter before reentry, so even at the gain ceiling it
// saturates instead of running away.
type FeedbackNetwork struct {
	line       *delay.Line
	limiter    *dynamics.Limiter
	sampleRate float64

	gain         atomicFloat64
	delaySeconds atomicFloat64
	filters      atomic.Pointer[loopFilter]
}

// NewFeedbackNetwork allocates the loop's delay line (2 s ceiling) and
// limiter. No further allocation happens on the audio path.
func NewFeedbackNetwork(sampleRate float64) (*FeedbackNetwork, error) {
	line, err := delay.New(int(maxFeedbackDelaySeconds*sampleRate) + 1)
	if err != nil {
		return nil, err
	}

	limiter, err := dynamics.NewLimiter(sampleRate)
	if err != nil {
		return nil, err
	}
	if err := limiter.SetThreshold(-3); err != nil {
		return nil, err
	}
	if err := limiter.SetRelease(60); err != nil {
		return nil, err
	}

	f := &FeedbackNetwork{
		line:       line,
		limiter:    limiter,
		sampleRate: sampleRate,
	}
	f.delaySeconds.Store(defaultFeedbackDelaySeconds)
	f.filters.Store(newLoopFilter(defaultFeedbackHighpassHz, defaultFeedbackLowpassHz, sampleRate))
	return f, nil
}

// Process runs one block through the loop, adding the feedback return into
// buf in place. Zero gain still feeds the delay line, so raising the amount
// later brings in already-captured history instead of silence.
func (f *FeedbackNetwork) Process(buf []float64) {
	gain := f.gain.Load()
	delaySamples := f.delaySeconds.Load() * f.sampleRate
	flt := f.filters.Load()

	for i := range buf {
		wet := f.line.ReadFractional(delaySamples)
		shaped := flt.lp.ProcessSample(flt.hp.ProcessSample(wet))
		re := f.limiter.ProcessSample(shaped) * gain
		f.line.Write(buf[i] + re)
		buf[i] += re
	}
}

// SetAmount sets the loop gain, clamped to [0, 0.95]. Requests above the
// ceiling are clamped, never honored.
func (f *FeedbackNetwork) SetAmount(amount float64) {
	f.gain.Store(clamp(amount, 0, maxFeedbackGain))
}

// Amount returns the effective loop gain after clamping.
func (f *FeedbackNetwork) Amount() float64 {
	return f.gain.Load()
}

// SetDelayTime sets the loop delay, clamped to [0.02 s, 2 s].
func (f *FeedbackNetwork) SetDelayTime(seconds float64) {
	f.delaySeconds.Store(clamp(seconds, minFeedbackDelaySeconds, maxFeedbackDelaySeconds))
}

// DelayTime returns the loop delay in seconds.
func (f *FeedbackNetwork) DelayTime() float64 {
	return f.delaySeconds.Load()
}

// SetFilterRange reshapes the loop's band limiting. Out-of-range or
// inverted edges are clamped into a valid pair; filter state restarts from
// silence, which is inaudible inside the smeared loop.
func (f *FeedbackNetwork) SetFilterRange(highpassHz, lowpassHz float64) {
	highpassHz = clamp(highpassHz, 20, 2000)
	lowpassHz = clamp(lowpassHz, 500, 18000)
	if lowpassHz <= highpassHz {
		lowpassHz = highpassHz * 2
	}
	f.filters.Store(newLoopFilter(highpassHz, lowpassHz, f.sampleRate))
}

// Reset clears the delay line and filter state. Only valid while the
// stream is stopped.
func (f *FeedbackNetwork) Reset() {
	f.line.Reset()
	f.limiter.Reset()
	if flt := f.filters.Load(); flt != nil {
		flt.hp.Reset()
		flt.lp.Reset()
	}
}
