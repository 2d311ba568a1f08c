// SPDX-License-Identifier: MIT
// Package utils holds signal generators shared by the synthetic capture
// source and tests.
package utils

import (
	"cmp"
	"math"
)

// SineInto writes a sine of the given frequency and amplitude (0-1 of full
// scale) into dst as int32 PCM, starting at phase radians. It returns the
// phase of the sample after the last one so consecutive blocks join up.
func SineInto(dst []int32, sampleRate, frequency, amplitude, phase float64) float64 {
	step := 2 * math.Pi * frequency / sampleRate
	amp := math.Max(0, math.Min(1, amplitude)) * math.MaxInt32
	for i := range dst {
		dst[i] = int32(math.Sin(phase) * amp)
		phase += step
	}
	return math.Mod(phase, 2*math.Pi)
}

// GenerateComplexWave returns a 440Hz fundamental with two harmonics at 90%
// of full scale.
func GenerateComplexWave(size int, sampleRate float64) []int32 {
	buffer := make([]int32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = int32(signal * math.MaxInt32 * 0.9)
	}
	return buffer
}

// GenerateSineWave returns size samples of a 90% full-scale sine as int32 PCM.
func GenerateSineWave(size int, sampleRate, frequency float64) []int32 {
	buffer := make([]int32, size)
	SineInto(buffer, sampleRate, frequency, 0.9, 0)
	return buffer
}

// GenerateSineFloat32 returns size samples of a sine in [-amplitude, amplitude].
func GenerateSineFloat32(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * amplitude)
	}
	return buffer
}

// FindPeakBin returns the index of the largest value in [startBin, endBin].
// The range is clipped to the slice; an empty slice yields 0.
func FindPeakBin[T cmp.Ordered](values []T, startBin, endBin int) int {
	if len(values) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(values) {
		endBin = len(values) - 1
	}
	if startBin > endBin {
		return startBin
	}

	peakBin := startBin
	peakValue := values[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if values[bin] > peakValue {
			peakValue = values[bin]
			peakBin = bin
		}
	}
	return peakBin
}
