// SPDX-License-Identifier: MIT
/*
Package engine implements the per-band granular time-stretch core:
- 24 bandpass-isolated capture buffers fed by the audio callback
- Grain scheduling with a stretch-controlled read cursor per band
- Safety-limited feedback loop and parallel effect sends
- Master summing with dynamics compression

Thread Safety:
- ProcessBlock runs on the real-time callback and never allocates or locks
  on the sample path
- Control calls cross parameters to the callback as atomic scalar writes
*/
package engine

import "math"

// NumBands is the fixed number of frequency bands partitioning 20 Hz-20 kHz.
const NumBands = 24

// Band is an immutable descriptor for one frequency band. Index is stable
// and used as the sole key across components and the external control API.
type Band struct {
	MinHz        float64
	MaxHz        float64
	Index        int
	DisplayColor string
}

// bandEdges partitions 20 Hz-20 kHz into NumBands contiguous ranges.
// The spacing is roughly logarithmic with extra resolution in the bass
// (below ~250 Hz) and presence (2-6 kHz) regions, where small frequency
// differences matter most to the ear.
var bandEdges = [NumBands + 1]float64{
	20, 30, 40, 55, 70, 90, 115, 145, 180, 225,
	280, 350, 440, 560, 700, 900, 1200, 1600, 2100, 2700,
	3400, 4300, 5600, 9000, 20000,
}

// bandColors follows a low-red to high-violet gradient for visualization.
var bandColors = [NumBands]string{
	"#8b0000", "#a31400", "#b82800", "#cc3d00", "#dd5400", "#ea6d00",
	"#f48800", "#faa300", "#fdbe00", "#ffd900", "#e8df00", "#c4dd1a",
	"#9cd83a", "#72cf5c", "#4ac47d", "#2bb69b", "#1aa5b4", "#1b90c6",
	"#2b78d0", "#445dd1", "#5f44c8", "#7a2eb6", "#92209c", "#a5187c",
}

// Bands returns the full band table in ascending frequency order.
// Bands are contiguous and non-overlapping: each MinHz equals the previous
// band's MaxHz.
func Bands() [NumBands]Band {
	var bands [NumBands]Band
	for i := range bands {
		bands[i] = Band{
			MinHz:        bandEdges[i],
			MaxHz:        bandEdges[i+1],
			Index:        i,
			DisplayColor: bandColors[i],
		}
	}
	return bands
}

// CenterHz returns the geometric midpoint of the band, which is where the
// bandpass stage is centered.
func (b Band) CenterHz() float64 {
	return geomMean(b.MinHz, b.MaxHz)
}

// WidthHz returns the frequency span of the band.
func (b Band) WidthHz() float64 {
	return b.MaxHz - b.MinHz
}

func geomMean(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return (a + b) / 2
	}
	return math.Sqrt(a * b)
}
