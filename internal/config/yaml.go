// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at path. If path is empty
// it looks for "bandstretch.yaml" in the working directory; a missing file is
// not an error and the built-in defaults are used. Environment overrides are
// applied after the file, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = "bandstretch.yaml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides allows a few deployment-relevant settings to be changed
// without editing the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BANDSTRETCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BANDSTRETCH_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Audio.SampleRate = rate
		}
	}
	if v := os.Getenv("BANDSTRETCH_INPUT_DEVICE"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Audio.InputDevice = id
		}
	}
	if v := os.Getenv("BANDSTRETCH_OUTPUT_DEVICE"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Audio.OutputDevice = id
		}
	}
	if v := os.Getenv("BANDSTRETCH_WS_PORT"); v != "" {
		cfg.Transport.WebSocketPort = v
	}
}

// Validate rejects configurations the engine cannot start with. It is called
// before any resource is allocated so a bad config never partially starts.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("config: sample rate %.0f outside [%d, %d]",
			c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBlockSize {
		return fmt.Errorf("config: frames per buffer %d outside (0, %d]",
			c.Audio.FramesPerBuffer, MaxBlockSize)
	}
	if c.Engine.GrainSeconds < 0.02 || c.Engine.GrainSeconds > 0.5 {
		return fmt.Errorf("config: grain seconds %.3f outside [0.02, 0.5]", c.Engine.GrainSeconds)
	}
	if c.Engine.OverlapFactor < 3 || c.Engine.OverlapFactor > 6 {
		return fmt.Errorf("config: overlap factor %.1f outside [3, 6]", c.Engine.OverlapFactor)
	}
	if c.Engine.BufferSeconds < 1 {
		return fmt.Errorf("config: buffer seconds %.1f must be >= 1", c.Engine.BufferSeconds)
	}
	if c.Engine.MaxActiveBands < 1 || c.Engine.MaxActiveBands > NumBands {
		return fmt.Errorf("config: max active bands %d outside [1, %d]",
			c.Engine.MaxActiveBands, NumBands)
	}
	if c.Transport.SendIntervalMs <= 0 {
		c.Transport.SendIntervalMs = DefaultSendIntervalMs
	}
	return nil
}
