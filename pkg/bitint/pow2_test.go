// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 1},     // Negative number
		{0, 1},       // Zero
		{1, 1},       // Smallest power
		{8, 8},       // Already power of two
		{10, 16},     // Not power of two
		{300, 512},   // Invalid analyser size
		{1000, 1024}, // Large number
		{3, 4},       // Small non-power
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			result := NextPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.n, result, tt.expected)
			}
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected bool
	}{
		{-8, false},
		{0, false},
		{1, true},
		{2, true},
		{7, false},
		{256, true},
		{300, false},
		{32768, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.n), func(t *testing.T) {
			if got := IsPowerOfTwo(tt.n); got != tt.expected {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, got, tt.expected)
			}
		})
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{256, 255},
		{1, 0},
		{100, 0},
		{-4, 0},
	}

	for _, tt := range tests {
		if got := Mask(tt.n); got != tt.expected {
			t.Errorf("Mask(%d) = %d, expected %d", tt.n, got, tt.expected)
		}
	}

	// Wrapping with the mask matches modulo for powers of two.
	m := Mask(256)
	for _, i := range []int{0, 255, 256, 257, 1023} {
		if i&m != i%256 {
			t.Errorf("%d & mask = %d, want %d", i, i&m, i%256)
		}
	}
}

func BenchmarkNextPowerOfTwo(b *testing.B) {
	for b.Loop() {
		_ = NextPowerOfTwo(1000)
	}
}

func BenchmarkIsPowerOfTwo(b *testing.B) {
	for b.Loop() {
		_ = IsPowerOfTwo(1024)
	}
}
