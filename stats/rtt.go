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

package stats

import (
	"sync"

	"github.com/eclesh/welford"
)

// RTTStats keeps a running mean/variance of observed round-trip times per
// server index, one welford accumulator per server, the same online
// mean/stddev technique the teacher uses for offset/delay history
// (fbclock/daemon/math.go, ptp/c4u/clock/math.go) rather than retaining
// every sample.
type RTTStats struct {
	mu       sync.Mutex
	byServer map[int]*welford.Stats
}

// NewRTTStats builds an empty RTTStats.
func NewRTTStats() *RTTStats {
	return &RTTStats{byServer: make(map[int]*welford.Stats)}
}

// Add records one RTT sample, in nanoseconds, observed from serverIx.
func (r *RTTStats) Add(serverIx int, rttNsec float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byServer[serverIx]
	if !ok {
		s = welford.New()
		r.byServer[serverIx] = s
	}
	s.Add(rttNsec)
}

// Snapshot returns the current sample count, mean, and standard deviation of
// RTT (nanoseconds) observed from serverIx. ok is false if no sample has
// been recorded yet.
func (r *RTTStats) Snapshot(serverIx int) (count int64, mean, stddev float64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.byServer[serverIx]
	if !exists {
		return 0, 0, 0, false
	}
	return s.Count(), s.Mean(), s.Stddev(), true
}

// Servers returns every server index with at least one recorded sample.
func (r *RTTStats) Servers() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.byServer))
	for ix := range r.byServer {
		out = append(out, ix)
	}
	return out
}
