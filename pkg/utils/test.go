// SPDX-License-Identifier: MIT
//
// Package utils provides signal generators and measurement helpers shared by
// tests across the engine packages.
package utils

import "math"

// GenerateSineWave returns size mono samples of a sine at frequency Hz,
// scaled to 90% of full scale in [-1, 1].
func GenerateSineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * 0.9
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental plus two harmonics,
// useful for exercising analysis across several bands at once.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*440*t)*0.5 +
			math.Sin(2*math.Pi*880*t)*0.3 +
			math.Sin(2*math.Pi*1320*t)*0.2
	}
	return buffer
}

// RMS returns the root-mean-square level of the buffer.
func RMS(buf []float64) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(buf)))
}

// PeakAbs returns the largest absolute sample value in the buffer.
func PeakAbs(buf []float64) float64 {
	var peak float64
	for _, s := range buf {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// MaxStep returns the largest absolute sample-to-sample difference in the
// buffer, a cheap proxy for audible discontinuities (clicks).
func MaxStep(buf []float64) float64 {
	var step float64
	for i := 1; i < len(buf); i++ {
		if d := math.Abs(buf[i] - buf[i-1]); d > step {
			step = d
		}
	}
	return step
}

// ArgMax returns the index of the largest value in vals, or 0 when empty.
func ArgMax(vals []float64) int {
	best := 0
	for i := 1; i < len(vals); i++ {
		if vals[i] > vals[best] {
			best = i
		}
	}
	return best
}
