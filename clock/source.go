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

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Backend selects which tick source Init() wires up.
type Backend int

const (
	// Monotonic reads CLOCK_MONOTONIC directly; one tick is one nanosecond.
	Monotonic Backend = iota
	// Counter models a free-running hardware counter (RDTSC-class) via
	// CLOCK_MONOTONIC_RAW, calibrated once at Init time against the OS
	// monotonic clock to derive ticksPerSecond.
	Counter
)

func (b Backend) String() string {
	switch b {
	case Monotonic:
		return "monotonic"
	case Counter:
		return "counter"
	default:
		return "unknown"
	}
}

// source is the tagged-variant dispatch point for the two back-ends. Chosen
// once at Init and never changed for the lifetime of the process, per the
// "select once, dispatch through a thin switch" design used for every
// interchangeable back-end in this package.
type source struct {
	backend        Backend
	ticksPerSecond int64
	clockID        int32
}

var active = source{backend: Monotonic, ticksPerSecond: int64(time.Second), clockID: unix.CLOCK_MONOTONIC}

// calibrationSleep is how long Init(Counter) samples the counter against the
// monotonic clock; it is a real wall-clock sleep, run once at startup.
const calibrationSleep = 50 * time.Millisecond

// Init selects the active clock backend. It must be called once, before any
// goroutine calls Now(); it is not safe to call concurrently with Now().
func Init(b Backend) error {
	switch b {
	case Monotonic:
		active = source{backend: Monotonic, ticksPerSecond: int64(time.Second), clockID: unix.CLOCK_MONOTONIC}
		return nil
	case Counter:
		s, err := calibrateCounter()
		if err != nil {
			return err
		}
		active = s
		return nil
	default:
		return fmt.Errorf("clock: unknown backend %d", b)
	}
}

// calibrateCounter samples CLOCK_MONOTONIC_RAW around a known sleep interval
// measured by CLOCK_MONOTONIC, the same bring-up calibration a hardware
// counter back-end performs against the OS clock.
func calibrateCounter() (source, error) {
	var before, after unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &before); err != nil {
		return source{}, fmt.Errorf("clock: counter unavailable: %w", err)
	}
	refStart := time.Now()
	time.Sleep(calibrationSleep)
	refElapsed := time.Since(refStart)
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &after); err != nil {
		return source{}, fmt.Errorf("clock: counter unavailable: %w", err)
	}

	rawElapsedNsec := (after.Sec-before.Sec)*int64(time.Second) + int64(after.Nsec-before.Nsec)
	if rawElapsedNsec <= 0 || refElapsed <= 0 {
		return source{}, fmt.Errorf("clock: calibration produced non-positive elapsed time")
	}
	// ticksPerSecond = raw ticks observed / reference seconds elapsed.
	ticksPerSecond := int64(float64(rawElapsedNsec) * float64(time.Second) / float64(refElapsed))
	return source{backend: Counter, ticksPerSecond: ticksPerSecond, clockID: unix.CLOCK_MONOTONIC_RAW}, nil
}

// ActiveBackend reports which backend is currently wired up.
func ActiveBackend() Backend {
	return active.backend
}

func readClock(clockID int32) int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(clockID, &ts); err != nil {
		// Both CLOCK_MONOTONIC and CLOCK_MONOTONIC_RAW are always present on
		// Linux; a failure here means the process is in a state where time
		// cannot be trusted at all.
		panic(fmt.Sprintf("clock: ClockGettime failed: %v", err))
	}
	return ts.Sec*int64(time.Second) + int64(ts.Nsec)
}
