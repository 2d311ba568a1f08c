// SPDX-License-Identifier: MIT
/*
Package spectrum holds the latest frequency magnitudes shared between the
capture pipeline and every visual component.

A Buffer is immutable once built. The single Writer replaces the whole
buffer pointer on each publish, so readers never see a half-written buffer
and two reads in the same tick can compare pointers.
*/
package spectrum

// DefaultBins is the bin count of an fftSize 256 analyser and the length of
// the zero buffer readers see while nothing is captured.
const DefaultBins = 128

// Buffer is an immutable snapshot of byte frequency magnitudes (0-255).
type Buffer struct {
	bins []uint8
	seq  uint64
}

// NewBuffer copies bins into a new Buffer tagged with seq.
func NewBuffer(bins []uint8, seq uint64) *Buffer {
	b := &Buffer{bins: make([]uint8, len(bins)), seq: seq}
	copy(b.bins, bins)
	return b
}

// Zero returns an all-zero buffer of n bins.
func Zero(n int) *Buffer {
	if n < 0 {
		n = 0
	}
	return &Buffer{bins: make([]uint8, n)}
}

// Len returns the number of bins. A nil buffer has none.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.bins)
}

// Seq returns the publish sequence number, 0 for the zero default.
func (b *Buffer) Seq() uint64 {
	if b == nil {
		return 0
	}
	return b.seq
}

// At returns bin i wrapped modulo Len. Negative indexes wrap from the end.
// An empty buffer reads as silence.
func (b *Buffer) At(i int) uint8 {
	n := b.Len()
	if n == 0 {
		return 0
	}
	i %= n
	if i < 0 {
		i += n
	}
	return b.bins[i]
}

// Level returns At(i) normalized to [0, 1].
func (b *Buffer) Level(i int) float64 {
	return float64(b.At(i)) / 255
}

// Mean returns the average normalized level of bins [lo, hi). The range is
// clipped to the buffer and an empty range is 0.
func (b *Buffer) Mean(lo, hi int) float64 {
	n := b.Len()
	lo = max(lo, 0)
	hi = min(hi, n)
	if hi <= lo {
		return 0
	}
	sum := 0
	for _, v := range b.bins[lo:hi] {
		sum += int(v)
	}
	return float64(sum) / float64(hi-lo) / 255
}

// IsZero reports whether every bin is zero.
func (b *Buffer) IsZero() bool {
	for i := 0; i < b.Len(); i++ {
		if b.bins[i] != 0 {
			return false
		}
	}
	return true
}

// CopyTo copies the bins into dst and returns how many were copied.
func (b *Buffer) CopyTo(dst []uint8) int {
	if b == nil {
		return 0
	}
	return copy(dst, b.bins)
}

// Bytes returns a copy of the bins.
func (b *Buffer) Bytes() []uint8 {
	out := make([]uint8, b.Len())
	b.CopyTo(out)
	return out
}
