// SPDX-License-Identifier: MIT
package transport

import "bandstretch/internal/config"

// Transport defines a generic interface for publishing energy frames to
// external visualization collaborators. Implementations must be
// thread-safe and non-blocking: a slow consumer drops frames, it never
// stalls the publisher.
type Transport interface {
	Send(data any) error
	Close() error
}

// EnergySource is the read-only view of the engine the publisher polls.
// Both methods must be safe to call from any goroutine at any rate.
type EnergySource interface {
	BandEnergies() [config.NumBands]float64
	AudioLevel() float64
}

// EnergyFrame is one published snapshot: the smoothed per-band energy
// vector plus the master RMS level.
type EnergyFrame struct {
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp"` // Nanoseconds since epoch
	Level     float64   `json:"level"`
	Bands     []float64 `json:"bands"`
}
