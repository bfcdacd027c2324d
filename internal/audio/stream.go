// SPDX-License-Identifier: MIT
/*
Package audio owns the PortAudio boundary: device discovery, the duplex
stream that drives the engine, and master-output recording.

Thread Safety:
- The stream callback runs on a locked OS thread
- All callback buffers are pre-allocated; no GC pressure in the hot path
- Recording state crosses goroutines behind an atomic flag
*/
package audio

import (
	"fmt"
	"runtime"
	"time"

	"github.com/gordonklaus/portaudio"

	"bandstretch/internal/config"
	"bandstretch/internal/engine"
	"bandstretch/internal/log"
)

// Stream couples a mono duplex PortAudio stream to the engine: input
// blocks fan into the band processors, the engine's master output goes
// straight back out the other side.
type Stream struct {
	cfg    *config.Config
	engine *engine.Engine

	inputDevice   *portaudio.DeviceInfo
	outputDevice  *portaudio.DeviceInfo
	inputLatency  time.Duration
	outputLatency time.Duration
	stream        *portaudio.Stream

	// Pre-allocated conversion buffers for the callback.
	in64  []float64
	out64 []float64

	recorder *Recorder
}

// NewStream resolves the configured devices and pre-allocates all callback
// state. PortAudio must already be initialized.
func NewStream(cfg *config.Config, eng *engine.Engine) (*Stream, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	outputDevice, err := OutputDevice(cfg.Audio.OutputDevice)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		cfg:          cfg,
		engine:       eng,
		inputDevice:  inputDevice,
		outputDevice: outputDevice,
		in64:         make([]float64, cfg.Audio.FramesPerBuffer),
		out64:        make([]float64, cfg.Audio.FramesPerBuffer),
		recorder:     NewRecorder(cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer),
	}

	if cfg.Audio.LowLatency {
		s.inputLatency = inputDevice.DefaultLowInputLatency
		s.outputLatency = outputDevice.DefaultLowOutputLatency
	} else {
		s.inputLatency = inputDevice.DefaultHighInputLatency
		s.outputLatency = outputDevice.DefaultHighOutputLatency
	}

	return s, nil
}

// Start opens and starts the duplex stream.
func (s *Stream) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   s.inputDevice,
			Latency:  s.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   s.outputDevice,
			Latency:  s.outputLatency,
		},
		FramesPerBuffer: s.cfg.Audio.FramesPerBuffer,
		SampleRate:      s.cfg.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, s.process)
	if err != nil {
		return fmt.Errorf("failed to open duplex stream: %w", err)
	}
	s.stream = stream

	if err := s.stream.Start(); err != nil {
		s.stream.Close()
		s.stream = nil
		return fmt.Errorf("failed to start stream: %w", err)
	}

	log.Infof("Stream running: %s -> %s (%.0f Hz, %d frames)",
		s.inputDevice.Name, s.outputDevice.Name,
		s.cfg.Audio.SampleRate, s.cfg.Audio.FramesPerBuffer)
	return nil
}

// process is the real-time audio callback.
// Performance Critical:
// - Runs on a locked OS thread
// - Pre-allocated buffers only, no dynamic allocation
func (s *Stream) process(in, out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for i := range s.in64 {
		if i < len(in) {
			s.in64[i] = float64(in[i])
		} else {
			s.in64[i] = 0
		}
	}

	s.engine.ProcessBlock(s.in64, s.out64)

	for i := range out {
		if i < len(s.out64) {
			out[i] = float32(s.out64[i])
		} else {
			out[i] = 0
		}
	}

	s.recorder.Write(s.out64)
}

// StartRecording begins capturing the master output to filename.
func (s *Stream) StartRecording(filename string) error {
	return s.recorder.Start(filename)
}

// StopRecording finalizes and closes the active recording, if any.
func (s *Stream) StopRecording() error {
	return s.recorder.Stop()
}

// Recording reports whether the master output is being captured.
func (s *Stream) Recording() bool {
	return s.recorder.Recording()
}

// Stop stops and closes the stream. Safe to call when never started.
func (s *Stream) Stop() error {
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		return err
	}
	if err := s.stream.Close(); err != nil {
		return err
	}
	s.stream = nil
	return nil
}

// Close tears the stream down, then finalizes any recording. The stream
// stops first so the callback is no longer writing when the WAV header
// is finalized.
func (s *Stream) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.recorder.Stop()
}
