// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"bandstretch/internal/transport"
)

/*
Energy Packet Structure (BigEndian)

+------------------------------------------------------------------------+
| Field           | Data Type | Size (Bytes) | Description               |
|-----------------|-----------|--------------|---------------------------|
| Sequence Number | uint32    | 4            | Monotonically increasing  |
| Timestamp       | int64     | 8            | Nanoseconds since epoch   |
| Level           | float32   | 4            | Master bus RMS            |
| Band Count      | uint16    | 2            | Number of floats (N)      |
| Band Energies   | []float32 | N * 4        | Smoothed values in [0, 1] |
+------------------------------------------------------------------------+
*/

// EnergyTransport packs energy frames into the binary format above and
// sends them through a Sender. It implements transport.Transport.
type EnergyTransport struct {
	sender *Sender

	mu           sync.Mutex
	sequenceNum  uint32
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewEnergyTransport wraps an existing Sender.
func NewEnergyTransport(sender *Sender) (*EnergyTransport, error) {
	if sender == nil {
		return nil, fmt.Errorf("energy transport: sender cannot be nil")
	}
	return &EnergyTransport{
		sender:       sender,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Send packs and transmits one frame. data must be a
// transport.EnergyFrame; anything else is rejected.
func (t *EnergyTransport) Send(data any) error {
	frame, ok := data.(transport.EnergyFrame)
	if !ok {
		return fmt.Errorf("energy transport: unsupported payload type %T", data)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if cap(t.f32Buffer) < len(frame.Bands) {
		t.f32Buffer = make([]float32, len(frame.Bands))
	}
	t.f32Buffer = t.f32Buffer[:len(frame.Bands)]
	for i, v := range frame.Bands {
		t.f32Buffer[i] = float32(v)
	}

	t.sequenceNum++
	t.packetBuffer.Reset()

	err := binary.Write(t.packetBuffer, binary.BigEndian, t.sequenceNum)
	if err == nil {
		err = binary.Write(t.packetBuffer, binary.BigEndian, frame.Timestamp)
	}
	if err == nil {
		err = binary.Write(t.packetBuffer, binary.BigEndian, float32(frame.Level))
	}
	if err == nil {
		err = binary.Write(t.packetBuffer, binary.BigEndian, uint16(len(t.f32Buffer)))
	}
	if err == nil {
		err = binary.Write(t.packetBuffer, binary.BigEndian, t.f32Buffer)
	}
	if err != nil {
		return fmt.Errorf("energy transport: packing failed: %w", err)
	}

	return t.sender.Send(t.packetBuffer.Bytes())
}

// Close closes the underlying sender.
func (t *EnergyTransport) Close() error {
	return t.sender.Close()
}

var _ transport.Transport = (*EnergyTransport)(nil)
