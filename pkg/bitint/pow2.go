// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two arithmetic used to size FFT
workspaces for frames whose length is not itself a power of two.

All functions are allocation free and safe to call from the audio
processing goroutine.

Usage:

	// Zero-pad a 1000-sample frame for a radix-2 transform
	fftSize := bitint.NextPowerOfTwo(1000) // 1024
	bins := bitint.SpectrumBins(fftSize)   // 513

NextPowerOfTwo relies on (size-1): for an exact power of two the highest
set bit of size-1 sits one position lower, so shifting 1 by bits.Len of
size-1 returns size itself instead of doubling it.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size.
// Non-positive sizes return 1.
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
// Powers of two have exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// SpectrumBins returns the number of non-redundant bins (n/2 + 1) produced
// by a real-input FFT of length n. Returns 0 for n <= 0.
func SpectrumBins(n int) int {
	if n <= 0 {
		return 0
	}
	return n/2 + 1
}

// PaddedSize returns the FFT length needed to hold a frame of size samples
// and the autocorrelation lag range of that frame without circular
// wrap-around (2*size-1 rounded up to a power of two).
func PaddedSize(size int) int {
	if size <= 0 {
		return 1
	}
	return NextPowerOfTwo(2*size - 1)
}
