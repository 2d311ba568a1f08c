// SPDX-License-Identifier: MIT
package spectrum

import (
	"errors"
	"sync/atomic"
)

// ErrWriterClaimed is returned by Claim while another writer holds the state.
var ErrWriterClaimed = errors.New("spectrum: writer already claimed")

// Shared is the single point of truth for the latest frequency buffer.
// Read never blocks. Only the holder of the claimed Writer can publish.
type Shared struct {
	cur     atomic.Pointer[Buffer]
	claimed atomic.Bool
	seq     atomic.Uint64
	zero    *Buffer
}

// NewShared returns state that reads as DefaultBins zeros until the first
// publish.
func NewShared() *Shared {
	s := &Shared{zero: Zero(DefaultBins)}
	s.cur.Store(s.zero)
	return s
}

// Read returns the current buffer. Every Read between two publishes returns
// the same pointer.
func (s *Shared) Read() *Buffer {
	return s.cur.Load()
}

// Default returns the zero buffer published on Reset.
func (s *Shared) Default() *Buffer {
	return s.zero
}

// Claim hands out the only Writer. It fails with ErrWriterClaimed until the
// current writer is released.
func (s *Shared) Claim() (*Writer, error) {
	if !s.claimed.CompareAndSwap(false, true) {
		return nil, ErrWriterClaimed
	}
	return &Writer{s: s}, nil
}

// Writer publishes buffers into a Shared. It is not safe for concurrent use;
// a capture session drives it from its poll goroutine.
type Writer struct {
	s        *Shared
	released atomic.Bool
}

// Publish copies bins into a fresh Buffer and makes it visible to readers.
// It returns the published buffer, or nil once the writer is released.
func (w *Writer) Publish(bins []uint8) *Buffer {
	if w.released.Load() {
		return nil
	}
	b := NewBuffer(bins, w.s.seq.Add(1))
	w.s.cur.Store(b)
	return b
}

// Reset publishes the all-zero default.
func (w *Writer) Reset() {
	if w.released.Load() {
		return
	}
	w.s.cur.Store(w.s.zero)
}

// Release gives the claim back. It is idempotent and does not change the
// visible buffer.
func (w *Writer) Release() {
	if w.released.CompareAndSwap(false, true) {
		w.s.claimed.Store(false)
	}
}
