// SPDX-License-Identifier: MIT
package engine

import (
	"math"
	"testing"

	"bandstretch/pkg/utils"
)

func newTestMaster(tb testing.TB) *MasterBus {
	tb.Helper()
	m, err := NewMasterBus(testSampleRate)
	if err != nil {
		tb.Fatal(err)
	}
	return m
}

func TestMasterCompressesHotSignal(t *testing.T) {
	m := newTestMaster(t)
	m.SetVolume(1)

	// Several bands summing constructively easily exceed unity.
	hot := make([]float64, testBlockSize)
	quiet := make([]float64, testBlockSize)
	sine := utils.GenerateSineWave(testBlockSize, testSampleRate, 440)
	for i := range sine {
		hot[i] = sine[i] * 4
		quiet[i] = sine[i] * 0.05
	}

	// Let the detector settle, then compare gain reduction.
	for i := 0; i < 20; i++ {
		buf := make([]float64, testBlockSize)
		copy(buf, hot)
		m.Process(buf)
	}
	buf := make([]float64, testBlockSize)
	copy(buf, hot)
	m.Process(buf)
	hotGain := utils.RMS(buf) / utils.RMS(hot)

	m.Reset()
	for i := 0; i < 20; i++ {
		b := make([]float64, testBlockSize)
		copy(b, quiet)
		m.Process(b)
	}
	copy(buf, quiet)
	m.Process(buf)
	quietGain := utils.RMS(buf) / utils.RMS(quiet)

	if hotGain >= quietGain {
		t.Errorf("hot-signal gain %f not below quiet-signal gain %f, compressor inactive", hotGain, quietGain)
	}
}

func TestMasterVolumeSmoothing(t *testing.T) {
	m := newTestMaster(t)
	m.SetVolume(1)

	dc := make([]float64, testBlockSize)
	for i := range dc {
		dc[i] = 0.1
	}

	buf := make([]float64, testBlockSize)
	for i := 0; i < 20; i++ {
		copy(buf, dc)
		m.Process(buf)
	}

	// A hard volume cut must glide, not jump.
	m.SetVolume(0)
	copy(buf, dc)
	m.Process(buf)

	if step := utils.MaxStep(buf); step > 0.02 {
		t.Errorf("max per-sample step %f after a volume cut, smoothing not applied", step)
	}
	if buf[0] == 0 {
		t.Error("volume applied instantaneously, expected a glide from the previous value")
	}
}

func TestMasterLevelTracksRMS(t *testing.T) {
	m := newTestMaster(t)
	m.SetVolume(1)

	if got := m.Level(); got != 0 {
		t.Errorf("level %f before any processing, want 0", got)
	}

	buf := make([]float64, testBlockSize)
	for i := range buf {
		buf[i] = 0.05 // below threshold, compressor passes through
	}
	for i := 0; i < 20; i++ {
		b := make([]float64, testBlockSize)
		for j := range b {
			b[j] = 0.05
		}
		m.Process(b)
		copy(buf, b)
	}

	want := utils.RMS(buf)
	if got := m.Level(); math.Abs(got-want) > 1e-9 {
		t.Errorf("level %f, want block RMS %f", got, want)
	}
}

func TestMasterVolumeClamped(t *testing.T) {
	m := newTestMaster(t)

	m.SetVolume(3)
	if got := m.Volume(); got != 1 {
		t.Errorf("volume %f after oversized request, want 1", got)
	}
	m.SetVolume(-1)
	if got := m.Volume(); got != 0 {
		t.Errorf("volume %f after negative request, want 0", got)
	}
}

func TestMasterProcessNoAllocs(t *testing.T) {
	m := newTestMaster(t)
	buf := make([]float64, testBlockSize)

	allocs := testing.AllocsPerRun(100, func() {
		buf[0] = 0.5
		m.Process(buf)
	})
	if allocs != 0 {
		t.Errorf("Process allocated %f times per call, want 0", allocs)
	}
}
