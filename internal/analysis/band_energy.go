// SPDX-License-Identifier: MIT
package analysis

import "ambience/internal/spectrum"

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64 // Exclusive; 0 means up to Nyquist.
}

// DefaultBands splits the audible range the way the band meters show it.
var DefaultBands = []FrequencyBand{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000},
}

// BandLevel is the normalized level of one band.
type BandLevel struct {
	Name  string  `json:"name" msgpack:"name"`
	Level float64 `json:"level" msgpack:"level"`
}

// BandLevels averages the byte magnitudes of buf inside each of bands.
// Bin k sits at k*sampleRate/fftSize Hz. Bands that contain no bin read 0.
func BandLevels(buf *spectrum.Buffer, bands []FrequencyBand, sampleRate float64, fftSize int) []BandLevel {
	out := make([]BandLevel, len(bands))
	sums := make([]float64, len(bands))
	counts := make([]int, len(bands))

	if sampleRate > 0 && fftSize > 0 {
		nyquist := sampleRate / 2
		binHz := sampleRate / float64(fftSize)
		for k := 0; k < buf.Len(); k++ {
			freq := float64(k) * binHz
			for j, band := range bands {
				high := band.HighHz
				if high <= 0 {
					high = nyquist + binHz
				}
				if freq >= band.LowHz && freq < high {
					sums[j] += buf.Level(k)
					counts[j]++
					break
				}
			}
		}
	}

	for j, band := range bands {
		out[j].Name = band.Name
		if counts[j] > 0 {
			out[j].Level = sums[j] / float64(counts[j])
		}
	}
	return out
}
