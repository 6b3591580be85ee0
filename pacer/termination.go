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

package pacer

import (
	"sync/atomic"

	"github.com/facebook/netprobe/clock"
)

// Termination decides, once per cycle, whether the main loop should stop.
// Two modes exist: time-based (stop once a configured duration has elapsed
// since the Termination was built; warm-up and cool-down time is not
// excluded) and number-based (run until a target count of sends has gone
// out). In number-based mode, the last reply_every-1 sends are
// unreplied by construction; callers must not invent extra sends to avoid
// that tail, per the spec's explicit "preserve this" note.
type Termination struct {
	deadline   clock.TicksTime // valid only if timeBased
	timeBased  bool
	targetN    uint64
	sent       *uint64
	exitFlag   *int32
}

// NewTimeBased builds a Termination that stops once duration has elapsed
// from now. The deadline is fixed at construction; any warm-up or cool-down
// window the caller runs falls inside duration, not on top of it.
func NewTimeBased(duration clock.TicksDuration, exitFlag *int32) *Termination {
	return &Termination{
		deadline:  clock.Now().Add(duration),
		timeBased: true,
		exitFlag:  exitFlag,
	}
}

// NewCountBased builds a Termination that stops once sent reaches target.
// sent is a pointer to the caller's send counter so this type never owns
// the count itself; the caller increments it once per message.
func NewCountBased(target uint64, sent *uint64, exitFlag *int32) *Termination {
	return &Termination{
		targetN:  target,
		sent:     sent,
		exitFlag: exitFlag,
	}
}

// ShouldStop is checked once per cycle, per the cancellation contract: every
// loop re-checks the exit condition at the top of each iteration and holds
// no locks across the check.
func (t *Termination) ShouldStop() bool {
	if t.exitFlag != nil && atomic.LoadInt32(t.exitFlag) != 0 {
		return true
	}
	if t.timeBased {
		return !clock.Now().Before(t.deadline)
	}
	return atomic.LoadUint64(t.sent) >= t.targetN
}

// SetExit sets the shared exit flag a SIGINT-equivalent handler uses; it
// never allocates or logs, so it is safe to call from a signal handler.
func SetExit(flag *int32) {
	atomic.StoreInt32(flag, 1)
}
