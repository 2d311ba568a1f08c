// SPDX-License-Identifier: MIT
package spectrum

import (
	"errors"
	"sync"
	"testing"
)

func TestReadBeforePublish(t *testing.T) {
	s := NewShared()
	b := s.Read()
	if b.Len() != DefaultBins {
		t.Fatalf("default length = %d, want %d", b.Len(), DefaultBins)
	}
	if !b.IsZero() {
		t.Error("default buffer is not all zero")
	}
	if b != s.Default() {
		t.Error("Read before publish should return the shared default")
	}
}

func TestPublishFreshness(t *testing.T) {
	s := NewShared()
	w, err := s.Claim()
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	defer w.Release()

	src := []uint8{1, 2, 3, 4}
	published := w.Publish(src)

	for i := range 5 {
		if got := s.Read(); got != published {
			t.Fatalf("read %d returned %p, want published %p", i, got, published)
		}
	}

	// The buffer is a copy, mutating the source has no effect.
	src[0] = 200
	if s.Read().At(0) != 1 {
		t.Error("published buffer aliases the caller's slice")
	}

	next := w.Publish([]uint8{9})
	if s.Read() != next || next.Seq() <= published.Seq() {
		t.Errorf("second publish not visible or seq not increasing: %d then %d", published.Seq(), next.Seq())
	}
}

func TestSingleWriter(t *testing.T) {
	s := NewShared()
	w, err := s.Claim()
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := s.Claim(); !errors.Is(err, ErrWriterClaimed) {
		t.Fatalf("second Claim err = %v, want ErrWriterClaimed", err)
	}

	w.Release()
	w.Release()
	if w.Publish([]uint8{1}) != nil {
		t.Error("released writer still publishes")
	}

	w2, err := s.Claim()
	if err != nil {
		t.Fatalf("Claim after release: %v", err)
	}
	w2.Release()
}

func TestReset(t *testing.T) {
	s := NewShared()
	w, _ := s.Claim()
	defer w.Release()

	w.Publish([]uint8{255, 255})
	w.Reset()
	if s.Read() != s.Default() {
		t.Error("Reset did not restore the zero default")
	}
}

func TestBufferAccessors(t *testing.T) {
	b := NewBuffer([]uint8{0, 51, 255}, 7)
	tests := []struct {
		i    int
		want uint8
	}{
		{0, 0}, {1, 51}, {2, 255}, {3, 0}, {4, 51}, {-1, 255}, {-4, 255},
	}
	for _, tt := range tests {
		if got := b.At(tt.i); got != tt.want {
			t.Errorf("At(%d) = %d, want %d", tt.i, got, tt.want)
		}
	}
	if got := b.Level(1); got != 0.2 {
		t.Errorf("Level(1) = %v, want 0.2", got)
	}
	if got := b.Mean(1, 3); got != (51.0+255.0)/2/255 {
		t.Errorf("Mean(1,3) = %v", got)
	}
	if got := b.Mean(-5, 99); got != (51.0+255.0)/3/255 {
		t.Errorf("Mean clipped = %v", got)
	}
	if b.Mean(2, 1) != 0 {
		t.Error("empty range should be 0")
	}

	var empty *Buffer
	if empty.At(3) != 0 || empty.Len() != 0 || empty.Level(0) != 0 {
		t.Error("nil buffer should read as silence")
	}
	if Zero(0).At(5) != 0 {
		t.Error("empty buffer should read as silence")
	}
}

func TestConcurrentReaders(t *testing.T) {
	s := NewShared()
	w, _ := s.Claim()
	defer w.Release()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				b := s.Read()
				// Every published buffer is uniform, a torn read would mix values.
				first := b.At(0)
				for i := 1; i < b.Len(); i++ {
					if b.At(i) != first {
						t.Errorf("torn buffer: bin %d = %d, bin 0 = %d", i, b.At(i), first)
						return
					}
				}
			}
		}()
	}

	bins := make([]uint8, DefaultBins)
	for v := range 200 {
		for i := range bins {
			bins[i] = uint8(v)
		}
		w.Publish(bins)
	}
	close(stop)
	wg.Wait()
}
