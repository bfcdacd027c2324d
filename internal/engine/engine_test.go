// SPDX-License-Identifier: MIT
package engine

import (
	"errors"
	"testing"

	"bandstretch/internal/config"
	"bandstretch/pkg/utils"
)

func newTestEngine(tb testing.TB) *Engine {
	tb.Helper()
	cfg := config.NewConfig()
	e, err := NewEngine(cfg)
	if err != nil {
		tb.Fatal(err)
	}
	e.DisableGate()
	return e
}

// primeEngine streams two seconds of on-band sine through the graph so
// every band has capture history.
func primeEngine(e *Engine) {
	in := utils.GenerateSineWave(config.DefaultFramesPerBuffer, config.DefaultSampleRate, 250)
	out := make([]float64, config.DefaultFramesPerBuffer)
	for i := 0; i < 2*config.DefaultSampleRate/config.DefaultFramesPerBuffer; i++ {
		e.ProcessBlock(in, out)
	}
}

func TestBandIndexValidation(t *testing.T) {
	e := newTestEngine(t)

	for _, idx := range []int{-1, NumBands, 100} {
		if err := e.StartBandSynthesis(idx, 2); !errors.Is(err, ErrInvalidBand) {
			t.Errorf("StartBandSynthesis(%d): error %v, want ErrInvalidBand", idx, err)
		}
		if err := e.UpdateBandStretch(idx, 2); !errors.Is(err, ErrInvalidBand) {
			t.Errorf("UpdateBandStretch(%d): error %v, want ErrInvalidBand", idx, err)
		}
		if err := e.StopBandSynthesis(idx); !errors.Is(err, ErrInvalidBand) {
			t.Errorf("StopBandSynthesis(%d): error %v, want ErrInvalidBand", idx, err)
		}
		if err := e.SetBandGain(idx, 0.5); !errors.Is(err, ErrInvalidBand) {
			t.Errorf("SetBandGain(%d): error %v, want ErrInvalidBand", idx, err)
		}
	}
	if n := e.ActiveBands(); n != 0 {
		t.Errorf("%d active bands after rejected operations, want 0", n)
	}
}

func TestActiveBandCap(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Engine.MaxActiveBands = 2
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.StartBandSynthesis(0, 2); err != nil {
		t.Fatal(err)
	}
	if err := e.StartBandSynthesis(1, 2); err != nil {
		t.Fatal(err)
	}
	if err := e.StartBandSynthesis(2, 2); !errors.Is(err, ErrTooManyActiveBands) {
		t.Errorf("third start: error %v, want ErrTooManyActiveBands", err)
	}

	// Restarting an already-active band never counts against the cap.
	if err := e.StartBandSynthesis(1, 4); err != nil {
		t.Errorf("restart of active band rejected: %v", err)
	}
}

func TestSynthesisProducesOutput(t *testing.T) {
	e := newTestEngine(t)
	primeEngine(e)

	if err := e.StartBandSynthesis(8, 2); err != nil {
		t.Fatal(err)
	}

	in := utils.GenerateSineWave(config.DefaultFramesPerBuffer, config.DefaultSampleRate, 250)
	out := make([]float64, config.DefaultFramesPerBuffer)
	var rms float64
	for i := 0; i < 60; i++ {
		e.ProcessBlock(in, out)
		if r := utils.RMS(out); r > rms {
			rms = r
		}
	}
	if rms < 0.001 {
		t.Errorf("peak block RMS %g with band 8 synthesizing, expected audible output", rms)
	}

	if err := e.StopBandSynthesis(8); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 40; i++ {
		e.ProcessBlock(in, out)
	}
	if n := e.ActiveBands(); n != 0 {
		t.Errorf("%d active bands after stop and fade, want 0", n)
	}
}

func TestBandEnergiesAlwaysInRange(t *testing.T) {
	e := newTestEngine(t)
	out := make([]float64, config.DefaultFramesPerBuffer)

	// Silence.
	e.ProcessBlock(make([]float64, config.DefaultFramesPerBuffer), out)
	for i, v := range e.BandEnergies() {
		if v != 0 {
			t.Errorf("band %d: energy %f for silence", i, v)
		}
	}

	// Clipping-level input.
	hot := make([]float64, config.DefaultFramesPerBuffer)
	for i := range hot {
		hot[i] = 1
	}
	for i := 0; i < 20; i++ {
		e.ProcessBlock(hot, out)
	}
	for i, v := range e.BandEnergies() {
		if v < 0 || v > 1 {
			t.Errorf("band %d: energy %f outside [0, 1]", i, v)
		}
	}
}

func TestGateSilencesQuietInput(t *testing.T) {
	e := newTestEngine(t)
	e.EnableGate()
	e.SetGateThreshold(0.5)

	quiet := utils.GenerateSineWave(config.DefaultFramesPerBuffer, config.DefaultSampleRate, 250)
	for i := range quiet {
		quiet[i] *= 0.1
	}
	out := make([]float64, config.DefaultFramesPerBuffer)
	for i := 0; i < 20; i++ {
		e.ProcessBlock(quiet, out)
	}
	for i, v := range e.BandEnergies() {
		if v != 0 {
			t.Errorf("band %d: energy %f with the gate closed, want 0", i, v)
		}
	}

	// Hot input opens it.
	e.SetGateThreshold(0.05)
	for i := 0; i < 20; i++ {
		e.ProcessBlock(quiet, out)
	}
	sum := 0.0
	for _, v := range e.BandEnergies() {
		sum += v
	}
	if sum == 0 {
		t.Error("no energy with the gate open")
	}
}

func TestFeedbackAmountCeilingThroughFacade(t *testing.T) {
	e := newTestEngine(t)
	e.SetFeedbackAmount(5.0)
	if got := e.feedback.Amount(); got != maxFeedbackGain {
		t.Errorf("effective feedback gain %f after requesting 5.0, want %f", got, maxFeedbackGain)
	}
}

func TestProcessBlockNoAllocs(t *testing.T) {
	e := newTestEngine(t)
	primeEngine(e)
	if err := e.StartBandSynthesis(8, 2); err != nil {
		t.Fatal(err)
	}
	e.SetFeedbackAmount(0.5)
	e.SetReverbAmount(0.5)

	in := utils.GenerateSineWave(config.DefaultFramesPerBuffer, config.DefaultSampleRate, 250)
	out := make([]float64, config.DefaultFramesPerBuffer)
	allocs := testing.AllocsPerRun(50, func() {
		e.ProcessBlock(in, out)
	})
	if allocs != 0 {
		t.Errorf("ProcessBlock allocated %f times per call, want 0", allocs)
	}
}

func BenchmarkProcessBlock(b *testing.B) {
	e := newTestEngine(b)
	primeEngine(e)
	for i := 0; i < 6; i++ {
		if err := e.StartBandSynthesis(i*4, 4); err != nil {
			b.Fatal(err)
		}
	}
	e.SetFeedbackAmount(0.5)
	e.SetReverbAmount(0.5)

	in := utils.GenerateSineWave(config.DefaultFramesPerBuffer, config.DefaultSampleRate, 250)
	out := make([]float64, config.DefaultFramesPerBuffer)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.ProcessBlock(in, out)
	}
}
