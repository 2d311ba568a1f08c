// SPDX-License-Identifier: MIT
package analysis

// Node is the analysis stage of a capture session: it receives mono samples
// from the audio callback and yields byte magnitudes to the poll loop.
type Node interface {
	// Write analyzes the given samples. Implementations should be efficient as
	// this is called from within the real-time audio callback.
	Write(samples []float32)

	// ByteFrequencyData fills dst with the latest magnitudes and returns the
	// number of bins written.
	ByteFrequencyData(dst []uint8) int

	// FrequencyBinCount returns the number of bins the node produces.
	FrequencyBinCount() int

	// Disconnect stops the node from accepting further samples.
	Disconnect()
}
