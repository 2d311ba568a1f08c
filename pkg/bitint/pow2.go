// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-2 helpers used for FFT and ring buffer
sizing.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Suggest a valid analyser size
	size := bitint.NextPowerOfTwo(300) // Returns 512

	// Verify FFT window size is valid
	isValid := bitint.IsPowerOfTwo(fftSize)

	// Wrap a ring index without a division
	next := (pos + 1) & bitint.Mask(fftSize)

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before taking the bit length so that an
exact power of 2 maps to itself:

	size 8: size-1 = 0111, bits.Len = 3, 1<<3 = 8
	size 9: size-1 = 1000, bits.Len = 4, 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// Powers of 2 have exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Mask returns n-1 for a power of 2 n, the AND mask that wraps an index
// into [0, n). It returns 0 for anything else.
func Mask(n int) int {
	if !IsPowerOfTwo(n) {
		return 0
	}
	return n - 1
}
