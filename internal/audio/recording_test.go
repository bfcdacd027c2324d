// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"bandstretch/pkg/utils"
)

const (
	testSampleRate = 44100.0
	testFrameSize  = 512
)

func TestRecorderStartStop(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "take.wav")
	r := NewRecorder(testSampleRate, testFrameSize)

	if r.Recording() {
		t.Fatal("fresh recorder reports recording")
	}
	if err := r.Start(filename); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !r.Recording() {
		t.Error("recorder not in recording state after Start")
	}
	if err := r.Start(filename); err == nil {
		t.Error("second Start succeeded, want error")
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if r.Recording() {
		t.Error("recorder still in recording state after Stop")
	}
	if err := r.Stop(); err != nil {
		t.Errorf("Stop on idle recorder: %v", err)
	}

	if _, err := os.Stat(filename); err != nil {
		t.Errorf("recording file missing: %v", err)
	}
}

func TestRecorderWriteWhenIdleIsNoop(t *testing.T) {
	r := NewRecorder(testSampleRate, testFrameSize)
	r.Write(make([]float64, testFrameSize)) // must not panic or create files
}

func TestRecorderRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "roundtrip.wav")
	r := NewRecorder(testSampleRate, testFrameSize)

	if err := r.Start(filename); err != nil {
		t.Fatal(err)
	}
	signal := utils.GenerateSineWave(testFrameSize, testSampleRate, 440)
	blocks := 4
	for i := 0; i < blocks; i++ {
		r.Write(signal)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decoding recording: %v", err)
	}
	if got, want := len(buf.Data), blocks*testFrameSize; got != want {
		t.Fatalf("decoded %d samples, want %d", got, want)
	}

	// Spot-check the first block against the source signal.
	for i := 0; i < 16; i++ {
		got := float64(buf.Data[i]) / (math.MaxInt32 - 1)
		if math.Abs(got-signal[i]) > 1e-6 {
			t.Fatalf("sample %d: decoded %f, want %f", i, got, signal[i])
		}
	}
}

func TestRecorderStopDuringWrites(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "teardown.wav")
	r := NewRecorder(testSampleRate, testFrameSize)

	if err := r.Start(filename); err != nil {
		t.Fatal(err)
	}

	// Hammer Write from another goroutine while Stop tears the encoder
	// down; Stop must wait out in-flight writes and later writes must
	// land on the nil-encoder path, never a dereference.
	block := utils.GenerateSineWave(testFrameSize, testSampleRate, 440)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			r.Write(block)
		}
		close(done)
	}()

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop during writes: %v", err)
	}
	<-done

	r.Write(block) // after Stop: no-op

	file, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	// The header must be consistent with whatever made it to disk.
	if _, err := wav.NewDecoder(file).FullPCMBuffer(); err != nil {
		t.Errorf("recording not decodable after mid-write Stop: %v", err)
	}
}

func TestRecorderClampsOutOfRange(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "clamp.wav")
	r := NewRecorder(testSampleRate, 4)

	if err := r.Start(filename); err != nil {
		t.Fatal(err)
	}
	r.Write([]float64{2, -2, 0.5, 0})
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	buf, err := wav.NewDecoder(file).FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if buf.Data[0] != math.MaxInt32-1 {
		t.Errorf("over-range sample stored as %d, want %d", buf.Data[0], math.MaxInt32-1)
	}
	if buf.Data[1] != -(math.MaxInt32 - 1) {
		t.Errorf("under-range sample stored as %d, want %d", buf.Data[1], -(math.MaxInt32 - 1))
	}
}
