/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package clock

import "time"

// TicksTime is a single point in time in raw ticks of the active backend. It
// deliberately exposes no arithmetic with another TicksTime other than Sub,
// so "point + point" cannot be written.
type TicksTime struct {
	ticks int64
}

// TicksDuration is a span of ticks. It is the only type that may be added to
// a TicksTime, added to or scaled by itself, so "duration / point" cannot be
// written either.
type TicksDuration struct {
	ticks int64
}

// Now returns the current time from the active backend. It is reentrant and
// allocation-free; in the Counter backend it is also wait-free, since it is
// a single clock_gettime syscall with no locking.
func Now() TicksTime {
	return TicksTime{ticks: readClock(active.clockID)}
}

// ZeroTime is the sentinel "unset" value used by PacketTimes slots.
var ZeroTime = TicksTime{}

// IsZero reports whether t is the zero-tick sentinel.
func (t TicksTime) IsZero() bool {
	return t.ticks == 0
}

// Add returns t advanced by d. Legal: TicksTime + TicksDuration -> TicksTime.
func (t TicksTime) Add(d TicksDuration) TicksTime {
	return TicksTime{ticks: t.ticks + d.ticks}
}

// Sub returns the duration from u to t. Legal: TicksTime - TicksTime -> TicksDuration.
func (t TicksTime) Sub(u TicksTime) TicksDuration {
	return TicksDuration{ticks: t.ticks - u.ticks}
}

// Before reports whether t occurs before u.
func (t TicksTime) Before(u TicksTime) bool {
	return t.ticks < u.ticks
}

// After reports whether t occurs after u.
func (t TicksTime) After(u TicksTime) bool {
	return t.ticks > u.ticks
}

// Raw exposes the underlying tick count, for callers that need to store it
// (e.g. a zero-tick sentinel array) without round-tripping through ToNsec.
func (t TicksTime) Raw() int64 {
	return t.ticks
}

// TicksTimeFromRaw reconstructs a TicksTime from a previously-extracted raw
// tick count, in the same backend it was extracted from.
func TicksTimeFromRaw(raw int64) TicksTime {
	return TicksTime{ticks: raw}
}

// ToNsec converts t to nanoseconds since the backend's epoch.
func (t TicksTime) ToNsec() int64 {
	return scaleToNsec(t.ticks)
}

// Add returns the sum of two durations. Legal: TicksDuration + TicksDuration -> TicksDuration.
func (d TicksDuration) Add(e TicksDuration) TicksDuration {
	return TicksDuration{ticks: d.ticks + e.ticks}
}

// Sub returns the difference of two durations. Legal: TicksDuration - TicksDuration -> TicksDuration.
func (d TicksDuration) Sub(e TicksDuration) TicksDuration {
	return TicksDuration{ticks: d.ticks - e.ticks}
}

// Scale returns d multiplied by an integer. Legal: TicksDuration * integer -> TicksDuration.
func (d TicksDuration) Scale(n int64) TicksDuration {
	return TicksDuration{ticks: d.ticks * n}
}

// DivInt returns d divided by an integer. Legal: TicksDuration / integer -> TicksDuration.
// Division by a TicksTime is not expressible: there is no such method.
func (d TicksDuration) DivInt(n int64) TicksDuration {
	return TicksDuration{ticks: d.ticks / n}
}

// Cmp returns -1, 0, 1 as d is less than, equal to, or greater than e.
func (d TicksDuration) Cmp(e TicksDuration) int {
	switch {
	case d.ticks < e.ticks:
		return -1
	case d.ticks > e.ticks:
		return 1
	default:
		return 0
	}
}

// IsZero reports whether d is a zero-length duration.
func (d TicksDuration) IsZero() bool {
	return d.ticks == 0
}

// ToNsec converts d to nanoseconds. Overflow is not checked on the fast
// path; callers needing durations beyond about a week should pre-scale.
func (d TicksDuration) ToNsec() int64 {
	return scaleToNsec(d.ticks)
}

// ToDuration converts d to a time.Duration, for interop with the standard
// library (timers, contexts).
func (d TicksDuration) ToDuration() time.Duration {
	return time.Duration(d.ToNsec())
}

// scaleToNsec and scaleFromNsec split the value into whole seconds and a
// remainder so the intermediate product stays within int64.
func scaleToNsec(ticks int64) int64 {
	tps := active.ticksPerSecond
	if tps == int64(time.Second) {
		return ticks
	}
	return (ticks/tps)*int64(time.Second) + (ticks%tps)*int64(time.Second)/tps
}

func scaleFromNsec(nsec int64) int64 {
	tps := active.ticksPerSecond
	if tps == int64(time.Second) {
		return nsec
	}
	return (nsec/int64(time.Second))*tps + (nsec%int64(time.Second))*tps/int64(time.Second)
}

// FromNsec builds a TicksDuration out of a nanosecond count.
func FromNsec(nsec int64) TicksDuration {
	return TicksDuration{ticks: scaleFromNsec(nsec)}
}

// FromUsec builds a TicksDuration out of a microsecond count.
func FromUsec(usec int64) TicksDuration {
	return FromNsec(usec * int64(time.Microsecond))
}

// FromSeconds builds a TicksDuration out of a (possibly fractional) second count.
func FromSeconds(sec float64) TicksDuration {
	return FromNsec(int64(sec * float64(time.Second)))
}

// FromDuration builds a TicksDuration out of a standard library Duration.
func FromDuration(d time.Duration) TicksDuration {
	return FromNsec(int64(d))
}
