// Copyright (c) 2026 Quanta Exchange Contributors

package qx

import (
	"bytes"
	"time"
)

// Fixed9ToFloat64 converts a fixed-point price/volume field (scale 1e-9)
// to a float64.
func Fixed9ToFloat64(fixed int64) float64 {
	return float64(fixed) / FixedPriceScale
}

// Float64ToFixed9 converts a float64 to the fixed-point scale used for
// persisted price/volume fields.
func Float64ToFixed9(f float64) int64 {
	return int64(f * FixedPriceScale)
}

// TrimNullBytes removes trailing nulls from a byte slice and returns a string.
func TrimNullBytes(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

// PutFixedString writes s into dst, left-justified and zero-padded. It
// truncates s if it does not fit; callers validate lengths up front so
// this should not happen on well-formed input.
func PutFixedString(dst []byte, s string) {
	clear(dst)
	n := copy(dst, s)
	_ = n
}

// TimestampToTime converts a nanosecond UNIX timestamp to time.Time.
func TimestampToTime(tsNanos int64) time.Time {
	return time.Unix(0, tsNanos)
}

// NowNanos returns the current UNIX time in nanoseconds.
func NowNanos() int64 {
	return time.Now().UnixNano()
}
