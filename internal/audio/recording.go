// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder captures the master output to a 32-bit mono WAV file. Start and
// Stop are control-path; Write runs on the audio callback and only touches
// pre-allocated state behind atomics. Stop swaps the encoder out and then
// waits for any in-flight Write before finalizing, so the callback never
// sees a half-torn-down encoder.
type Recorder struct {
	isRecording atomic.Bool
	wavEncoder  atomic.Pointer[wav.Encoder]
	inFlight    atomic.Int32

	sampleRate int
	outputFile *os.File
	sampleBuf  *goaudio.IntBuffer
}

// NewRecorder prepares a recorder for the given stream format. No file is
// touched until Start.
func NewRecorder(sampleRate float64, blockSize int) *Recorder {
	return &Recorder{
		sampleRate: int(sampleRate),
		sampleBuf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: 1,
				SampleRate:  int(sampleRate),
			},
			Data: make([]int, blockSize),
		},
	}
}

// Start opens filename and begins capturing subsequent Write calls.
func (r *Recorder) Start(filename string) error {
	if r.isRecording.Load() {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	r.outputFile = file
	r.wavEncoder.Store(wav.NewEncoder(file, r.sampleRate, 32, 1, 1))

	r.isRecording.Store(true)
	return nil
}

// Write appends one block of master output. Safe to call from the audio
// callback whether or not a recording is active; encoder errors are
// swallowed rather than allowed to disturb the stream.
func (r *Recorder) Write(block []float64) {
	r.inFlight.Add(1)
	defer r.inFlight.Add(-1)

	// Snapshot the encoder once; Stop may swap it to nil at any time.
	enc := r.wavEncoder.Load()
	if enc == nil {
		return
	}

	for i, s := range block {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		r.sampleBuf.Data[i] = int(s * (math.MaxInt32 - 1))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(block)]

	_ = enc.Write(r.sampleBuf)
}

// Recording reports whether a recording is in progress.
func (r *Recorder) Recording() bool {
	return r.isRecording.Load()
}

// Stop finalizes the WAV header and closes the file. Stopping an idle
// recorder is a no-op.
func (r *Recorder) Stop() error {
	if !r.isRecording.Load() {
		return nil
	}
	r.isRecording.Store(false)

	enc := r.wavEncoder.Swap(nil)

	// Let a callback that already snapshotted the encoder finish its
	// write before the header is finalized. Writes are a block long, so
	// this spins briefly at most.
	for r.inFlight.Load() != 0 {
		time.Sleep(time.Millisecond)
	}

	if enc != nil {
		if err := enc.Close(); err != nil {
			return err
		}
	}
	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			return err
		}
		r.outputFile = nil
	}
	return nil
}
