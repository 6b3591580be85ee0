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

// Package pacer implements the client's cycle-duration send pacing, an
// optional dummy-send filler to keep egress pipelines warm, and the
// time-based / number-based termination checks that gate the main loop.
package pacer

import (
	"context"

	"github.com/facebook/netprobe/clock"
)

// Pacer drives a free-running cursor: Next blocks (busy-spinning, per the
// spec's client concurrency model) until the cursor's next_send_time has
// arrived, then advances it by one cycle. A run that falls behind by more
// than one cycle catches up to the present rather than accumulating debt
// forever.
type Pacer struct {
	cycleDuration clock.TicksDuration
	nextSendTime  clock.TicksTime
}

// MaxRate is the sentinel burst size/mps combination meaning "send as fast
// as possible", which collapses cycleDuration to zero: Next never waits.
const MaxRate = 0

// New builds a Pacer for burstSize messages sent per cycle at mps messages
// per second. mps == MaxRate means uncapped: Next returns immediately every
// call.
func New(burstSize int, mps float64) *Pacer {
	var cycleDuration clock.TicksDuration
	if mps > 0 {
		cycleDuration = clock.FromSeconds(float64(burstSize) / mps)
	}
	return &Pacer{cycleDuration: cycleDuration, nextSendTime: clock.Now()}
}

// Next blocks until the next cycle boundary, respecting ctx cancellation,
// and returns false if ctx was cancelled before the boundary arrived.
func (p *Pacer) Next(ctx context.Context) bool {
	for clock.Now().Before(p.nextSendTime) {
		select {
		case <-ctx.Done():
			return false
		default:
		}
	}
	p.nextSendTime = p.nextSendTime.Add(p.cycleDuration)
	if now := clock.Now(); p.nextSendTime.Before(now) {
		// Fell behind by more than one cycle: snap to the present instead
		// of trying to send a burst of back-to-back catch-up cycles.
		p.nextSendTime = now
	}
	return true
}

// CycleDuration reports the configured cycle duration (zero for MaxRate).
func (p *Pacer) CycleDuration() clock.TicksDuration { return p.cycleDuration }
