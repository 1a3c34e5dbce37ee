// Package ktime is the kernel's time value: a seconds + microseconds pair
// used both for durations and for absolute points measured from boot.
package ktime

import "time"

const (
	usPerSec = 1000000
	usPerMs  = 1000
	msPerSec = 1000

	// maxUsDelta and maxMsDelta bound the seconds part a value may carry
	// before ToUs/ToMs would overflow a signed 32-bit count.
	maxUsDelta = 2146
	maxMsDelta = 2147482
)

// Time is a non-negative time value. Usec is always below one second.
//
// The zero value means "no deadline" when passed as a timeout.
type Time struct {
	Sec  uint32
	Usec uint32
}

// Infinite is the timeout that never expires.
var Infinite = Time{}

// Seconds returns a whole-second value.
func Seconds(sec uint32) Time { return Time{Sec: sec} }

// FromMs converts milliseconds.
func FromMs(ms uint32) Time {
	return Time{Sec: ms / msPerSec, Usec: (ms % msPerSec) * usPerMs}
}

// FromUs converts microseconds.
func FromUs(us uint32) Time {
	return Time{Sec: us / usPerSec, Usec: us % usPerSec}
}

// FromDuration converts a Go duration, truncating to microseconds.
// Negative durations become zero.
func FromDuration(d time.Duration) Time {
	if d <= 0 {
		return Time{}
	}
	us := d / time.Microsecond
	return Time{Sec: uint32(us / usPerSec), Usec: uint32(us % usPerSec)}
}

// IsZero reports whether t is the zero value.
func (t Time) IsZero() bool { return t.Sec == 0 && t.Usec == 0 }

// Compare returns -1, 0 or +1 as t is before, equal to or after u.
func (t Time) Compare(u Time) int {
	switch {
	case t.Sec < u.Sec:
		return -1
	case t.Sec > u.Sec:
		return 1
	case t.Usec < u.Usec:
		return -1
	case t.Usec > u.Usec:
		return 1
	}
	return 0
}

// Before reports whether t < u.
func (t Time) Before(u Time) bool { return t.Compare(u) < 0 }

// After reports whether t > u.
func (t Time) After(u Time) bool { return t.Compare(u) > 0 }

// Add returns t + u.
func (t Time) Add(u Time) Time {
	r := Time{Sec: t.Sec + u.Sec, Usec: t.Usec + u.Usec}
	if r.Usec >= usPerSec {
		r.Sec++
		r.Usec -= usPerSec
	}
	return r
}

// Sub returns t - u, or zero when u is not before t.
func (t Time) Sub(u Time) Time {
	if !u.Before(t) {
		return Time{}
	}
	r := Time{Sec: t.Sec - u.Sec}
	if t.Usec >= u.Usec {
		r.Usec = t.Usec - u.Usec
	} else {
		r.Usec = usPerSec - (u.Usec - t.Usec)
		r.Sec--
	}
	return r
}

// ToMs converts to milliseconds, clamping at the largest value a signed
// 32-bit millisecond count can hold.
func (t Time) ToMs() uint32 {
	if t.Sec > maxMsDelta {
		return maxMsDelta * msPerSec
	}
	return t.Sec*msPerSec + t.Usec/usPerMs
}

// ToUs converts to microseconds, clamping at the largest value a signed
// 32-bit microsecond count can hold.
func (t Time) ToUs() uint32 {
	if t.Sec > maxUsDelta {
		return maxUsDelta * usPerSec
	}
	return t.Sec*usPerSec + t.Usec
}

// Duration converts to a Go duration.
func (t Time) Duration() time.Duration {
	return time.Duration(t.Sec)*time.Second + time.Duration(t.Usec)*time.Microsecond
}

// Pack encodes t into a single 64-bit word (seconds high, microseconds low).
func (t Time) Pack() uint64 { return uint64(t.Sec)<<32 | uint64(t.Usec) }

// Unpack is the inverse of Pack.
func Unpack(w uint64) Time { return Time{Sec: uint32(w >> 32), Usec: uint32(w)} }

// Min returns the earlier of a and b.
func Min(a, b Time) Time {
	if b.Before(a) {
		return b
	}
	return a
}
