// SPDX-License-Identifier: MIT
package config

// Boundaries and defaults for the engine configuration.
const (
	// Audio I/O defaults.
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultLowLatency      = false       // Standard latency mode

	// Granular engine defaults.
	DefaultGrainSeconds   = 0.15 // 150 ms grains
	DefaultOverlapFactor  = 4.0  // Grains sounding simultaneously
	DefaultStretchFactor  = 2.0  // Applied when a gesture supplies none
	DefaultBufferSeconds  = 10.0 // Captured history per band
	DefaultMaxActiveBands = NumBands

	// Effects defaults.
	DefaultReverbSeconds   = 2.5
	DefaultDelaySeconds    = 0.45
	DefaultDelayFeedback   = 0.35
	DefaultRingModHz       = 220.0
	DefaultFeedbackSeconds = 0.5
	DefaultFeedbackHPHz    = 120.0
	DefaultFeedbackLPHz    = 6000.0

	// Transport defaults.
	DefaultWebSocketPort  = "8080"
	DefaultUDPTarget      = "127.0.0.1:9090"
	DefaultSendIntervalMs = 16 // ~60 Hz

	// Hardware and processing limits.
	MinDeviceID   = -1     // -1 selects the system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MaxBlockSize  = 8192   // Maximum frames per buffer

	// NumBands is the fixed band count partitioning 20 Hz-20 kHz.
	NumBands = 24
)

// Config holds all runtime configuration options. It is built from defaults,
// an optional YAML file, environment overrides and command line flags, in
// that order.
type Config struct {
	LogLevel string `yaml:"log_level"`
	Command  string `yaml:"-"` // One-off command (e.g. "list"), flags only
	Meter    bool   `yaml:"meter"`

	Audio     AudioConfig     `yaml:"audio"`
	Engine    EngineConfig    `yaml:"engine"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds audio device and stream settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio index, -1 for default
	OutputDevice    int     `yaml:"output_device"`     // PortAudio index, -1 for default
	SampleRate      float64 `yaml:"sample_rate"`       // Hz
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Block size in frames
	LowLatency      bool    `yaml:"low_latency"`       // Request low-latency stream settings
}

// EngineConfig holds granular synthesis and routing settings.
type EngineConfig struct {
	GrainSeconds   float64 `yaml:"grain_seconds"`    // Grain duration, 0.05-0.5
	OverlapFactor  float64 `yaml:"overlap_factor"`   // Concurrent grains, 3-6
	BufferSeconds  float64 `yaml:"buffer_seconds"`   // Per-band capture history
	MaxActiveBands int     `yaml:"max_active_bands"` // CPU cap on concurrent synthesis
	GateThreshold  float64 `yaml:"gate_threshold"`   // Capture noise gate, 0-1
}

// RecordingConfig holds master-output recording settings.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"` // Empty for a timestamped name
}

// TransportConfig holds energy-frame publishing settings for external
// visualization collaborators.
type TransportConfig struct {
	WebSocketEnabled bool   `yaml:"websocket_enabled"`
	WebSocketPort    string `yaml:"websocket_port"`
	UDPEnabled       bool   `yaml:"udp_enabled"`
	UDPTarget        string `yaml:"udp_target"`
	SendIntervalMs   int    `yaml:"send_interval_ms"`
}

// NewConfig returns a Config populated with defaults. This is the base every
// other configuration source layers on top of.
func NewConfig() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
		},
		Engine: EngineConfig{
			GrainSeconds:   DefaultGrainSeconds,
			OverlapFactor:  DefaultOverlapFactor,
			BufferSeconds:  DefaultBufferSeconds,
			MaxActiveBands: DefaultMaxActiveBands,
			GateThreshold:  0.001,
		},
		Transport: TransportConfig{
			WebSocketPort:  DefaultWebSocketPort,
			UDPTarget:      DefaultUDPTarget,
			SendIntervalMs: DefaultSendIntervalMs,
		},
	}
}
