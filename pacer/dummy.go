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

import "github.com/facebook/netprobe/clock"

// DummyFiller issues zero-payload sends at dummy_mps between real sends to
// keep the egress pipeline warm. It is mutually exclusive with mps=MaxRate:
// there is no gap to fill when sends are already back-to-back.
type DummyFiller struct {
	interval clock.TicksDuration
	next     clock.TicksTime
}

// NewDummyFiller builds a filler sending at dummyMps dummies per second.
func NewDummyFiller(dummyMps float64) *DummyFiller {
	return &DummyFiller{
		interval: clock.FromSeconds(1.0 / dummyMps),
		next:     clock.Now(),
	}
}

// Due reports whether a dummy send is due right now, and if so advances the
// internal cursor by one interval.
func (f *DummyFiller) Due(now clock.TicksTime) bool {
	if now.Before(f.next) {
		return false
	}
	f.next = f.next.Add(f.interval)
	return true
}
