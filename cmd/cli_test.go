// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"bandstretch/internal/config"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := parseArgs(nil)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if cfg.Command != "" {
		t.Errorf("expected run command, got %q", cfg.Command)
	}
	if cfg.Audio.SampleRate != config.DefaultSampleRate {
		t.Errorf("sample rate = %v, want %v", cfg.Audio.SampleRate, config.DefaultSampleRate)
	}
	if cfg.Engine.MaxActiveBands != config.NumBands {
		t.Errorf("max active bands = %d, want %d", cfg.Engine.MaxActiveBands, config.NumBands)
	}
}

func TestParseArgsListCommand(t *testing.T) {
	cfg, err := parseArgs([]string{"list"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if cfg.Command != "list" {
		t.Errorf("command = %q, want list", cfg.Command)
	}
}

func TestParseArgsFlagsOverride(t *testing.T) {
	cfg, err := parseArgs([]string{
		"-d", "3", "-s", "48000", "--grain", "0.2", "--meter", "--udp",
	})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if cfg.Audio.InputDevice != 3 {
		t.Errorf("input device = %d, want 3", cfg.Audio.InputDevice)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("sample rate = %v, want 48000", cfg.Audio.SampleRate)
	}
	if cfg.Engine.GrainSeconds != 0.2 {
		t.Errorf("grain seconds = %v, want 0.2", cfg.Engine.GrainSeconds)
	}
	if !cfg.Meter || !cfg.Transport.UDPEnabled {
		t.Errorf("meter/udp flags not applied")
	}
}

func TestParseArgsRejectsInvalidFlagValue(t *testing.T) {
	if _, err := parseArgs([]string{"--grain", "5.0"}); err == nil {
		t.Error("expected validation error for out-of-range grain duration")
	}
}

func TestParseArgsRecordingDefaultsFilename(t *testing.T) {
	cfg, err := parseArgs([]string{"--record"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if cfg.Recording.OutputFile == "" {
		t.Error("expected a generated recording filename")
	}
}

func TestParseArgsConfigFileLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bandstretch.yaml")
	data := []byte("audio:\n  sample_rate: 48000\n  frames_per_buffer: 256\nengine:\n  overlap_factor: 3\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	// Flags beat the file; file beats defaults.
	cfg, err := parseArgs([]string{"--config", path, "-b", "1024"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("sample rate from file = %v, want 48000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.FramesPerBuffer != 1024 {
		t.Errorf("frames per buffer = %d, flag should beat file", cfg.Audio.FramesPerBuffer)
	}
	if cfg.Engine.OverlapFactor != 3 {
		t.Errorf("overlap factor from file = %v, want 3", cfg.Engine.OverlapFactor)
	}
}
