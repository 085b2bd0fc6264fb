// Package sizing provides overflow-checked arithmetic for offsets and lengths.
package sizing

import "math"

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// AddInt64 adds two non-negative offsets, returning (result, false) on overflow.
func AddInt64(a, b int64) (int64, bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// MulInt64 multiplies two non-negative values, returning (result, false) on overflow.
func MulInt64(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}

// Span returns off + count*stride, the end of count consecutive elements.
func Span(off, count, stride int64, overflowErr error) (int64, error) {
	n, ok := MulInt64(count, stride)
	if !ok {
		return 0, overflowErr
	}
	end, ok := AddInt64(off, n)
	if !ok {
		return 0, overflowErr
	}
	return end, nil
}
