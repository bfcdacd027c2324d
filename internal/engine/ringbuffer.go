// SPDX-License-Identifier: MIT
package engine

// RingBuffer is a fixed-capacity circular sample buffer with a monotonic
// write cursor. One exists per band, owned by its BandProcessor, allocated
// once at construction and never resized.
//
// Positions are absolute sample counts since the first write; they wrap into
// the backing array on access. Out-of-range reads are wrapped, never
// rejected: the structure is unbounded in time by design. The grain
// scheduler is the sole reader and keeps a safety margin behind the write
// cursor rather than synchronizing with it, so no locking is needed under
// the single-writer/single-reader discipline.
type RingBuffer struct {
	samples []float64
	written int64
}

// NewRingBuffer returns a ring holding capacity samples.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{samples: make([]float64, capacity)}
}

// Capacity returns the fixed size of the ring in samples.
func (b *RingBuffer) Capacity() int {
	return len(b.samples)
}

// Written returns the total number of samples ever written. This is the
// absolute position one past the newest sample and only increases.
func (b *RingBuffer) Written() int64 {
	return b.written
}

// Write appends a block, wrapping at capacity and overwriting the oldest
// data. It is the only mutation and is called at fixed block granularity
// from the capture path; it performs no allocation.
func (b *RingBuffer) Write(block []float64) {
	size := len(b.samples)
	pos := int(b.written % int64(size))
	for _, s := range block {
		b.samples[pos] = s
		pos++
		if pos >= size {
			pos = 0
		}
	}
	b.written += int64(len(block))
}

// ReadAt returns the sample at an absolute position, wrapping into the ring.
// Negative positions wrap too; no position is ever an error.
func (b *RingBuffer) ReadAt(index int64) float64 {
	size := int64(len(b.samples))
	i := index % size
	if i < 0 {
		i += size
	}
	return b.samples[i]
}

// Reset zeroes the ring and rewinds the write cursor. Only used when the
// engine is fully stopped; never called concurrently with Write.
func (b *RingBuffer) Reset() {
	for i := range b.samples {
		b.samples[i] = 0
	}
	b.written = 0
}
