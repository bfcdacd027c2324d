// SPDX-License-Identifier: MIT
package engine

import (
	"testing"

	"bandstretch/pkg/utils"
)

func newTestChain(tb testing.TB) *EffectsChain {
	tb.Helper()
	e, err := NewEffectsChain(testSampleRate, testBlockSize)
	if err != nil {
		tb.Fatal(err)
	}
	return e
}

func TestAllSendsZeroLeavesBusUntouched(t *testing.T) {
	e := newTestChain(t)

	bus := utils.GenerateSineWave(testBlockSize, testSampleRate, 440)
	want := make([]float64, testBlockSize)
	copy(want, bus)

	e.Process(bus)
	for i := range bus {
		if bus[i] != want[i] {
			t.Fatalf("sample %d changed from %f to %f with all sends at zero", i, want[i], bus[i])
		}
	}
}

func TestDelaySendProducesEcho(t *testing.T) {
	e := newTestChain(t)
	e.SetDelayAmount(1)

	bus := utils.GenerateSineWave(testBlockSize, testSampleRate, 440)
	e.Process(bus)

	// The send's delay is 0.35 s; drive silence until past it.
	blocks := int(defaultDelaySeconds*testSampleRate)/testBlockSize + 2
	var tailRMS float64
	for i := 0; i < blocks; i++ {
		for j := range bus {
			bus[j] = 0
		}
		e.Process(bus)
		if r := utils.RMS(bus); r > tailRMS {
			tailRMS = r
		}
	}
	if tailRMS < 1e-4 {
		t.Errorf("tail RMS %g, expected a delayed echo", tailRMS)
	}
}

func TestReverbSendProducesTail(t *testing.T) {
	e := newTestChain(t)
	e.SetReverbAmount(1)

	bus := utils.GenerateSineWave(testBlockSize, testSampleRate, 440)
	e.Process(bus)

	for j := range bus {
		bus[j] = 0
	}
	e.Process(bus)
	if r := utils.RMS(bus); r < 1e-6 {
		t.Errorf("RMS %g one block after the burst, expected a reverb tail", r)
	}
}

func TestDistortionSendAddsHarmonics(t *testing.T) {
	e := newTestChain(t)
	e.SetDistortionAmount(1)

	dry := utils.GenerateSineWave(testBlockSize, testSampleRate, 440)
	bus := make([]float64, testBlockSize)
	copy(bus, dry)
	e.Process(bus)

	changed := false
	for i := range bus {
		if bus[i] != dry[i] {
			changed = true
			break
		}
	}
	if !changed {
		t.Error("distortion send at full amount left the bus unchanged")
	}
}

func TestLockedChainPassesBlockDry(t *testing.T) {
	e := newTestChain(t)
	e.SetDelayAmount(1)
	e.SetDistortionAmount(1)

	bus := utils.GenerateSineWave(testBlockSize, testSampleRate, 440)
	want := make([]float64, testBlockSize)
	copy(want, bus)

	// Simulate a reconfiguration holding the lock during a callback.
	e.mu.Lock()
	e.Process(bus)
	e.mu.Unlock()

	for i := range bus {
		if bus[i] != want[i] {
			t.Fatal("Process modified the bus while the chain lock was held")
		}
	}
}

func TestParameterSettersRejectInvalid(t *testing.T) {
	e := newTestChain(t)

	if err := e.SetDelayTime(-1); err == nil {
		t.Error("negative delay time accepted")
	}
	if err := e.SetDelayFeedback(2); err == nil {
		t.Error("feedback above unity accepted")
	}
	if err := e.SetRingModCarrier(-100); err == nil {
		t.Error("negative carrier frequency accepted")
	}
}

func TestEffectsProcessNoAllocs(t *testing.T) {
	e := newTestChain(t)
	e.SetReverbAmount(0.5)
	e.SetDelayAmount(0.5)
	e.SetDistortionAmount(0.5)
	e.SetRingModAmount(0.5)
	e.SetChorusAmount(0.5)

	bus := make([]float64, testBlockSize)
	allocs := testing.AllocsPerRun(50, func() {
		bus[0] = 0.5
		e.Process(bus)
	})
	if allocs != 0 {
		t.Errorf("Process allocated %f times per call, want 0", allocs)
	}
}

func BenchmarkEffectsProcess(b *testing.B) {
	e := newTestChain(b)
	e.SetReverbAmount(0.5)
	e.SetDelayAmount(0.5)
	e.SetChorusAmount(0.5)
	bus := utils.GenerateSineWave(testBlockSize, testSampleRate, 440)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Process(bus)
	}
}