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

// Package stats holds the run's shared counters and exposes them two ways:
// a JSON-over-HTTP endpoint (adapted from the responder's passive reporter)
// and Prometheus gauges/counters, matching the two reporting styles already
// used across the teacher's server and client binaries.
package stats

import "sync"

// Counters holds the process-wide counters the spec calls global mutable
// state: receiveCount and skipCount are single-writer in single-threaded
// modes; in multi-threaded server mode each worker keeps its own and they
// are summed at teardown via Merge.
type Counters struct {
	ReceiveCount int64
	SkipCount    int64

	mu         sync.Mutex
	duplicates map[int]uint64
	outOfOrder map[int]uint64
	dropped    map[int]uint64
}

// NewCounters builds an empty Counters set.
func NewCounters() *Counters {
	return &Counters{
		duplicates: make(map[int]uint64),
		outOfOrder: make(map[int]uint64),
		dropped:    make(map[int]uint64),
	}
}

// SetDuplicates records the duplicate count observed from serverIx.
func (c *Counters) SetDuplicates(serverIx int, n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duplicates[serverIx] = n
}

// SetOutOfOrder records the out-of-order count observed from serverIx.
func (c *Counters) SetOutOfOrder(serverIx int, n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outOfOrder[serverIx] = n
}

// SetDropped records the dropped count observed from serverIx.
func (c *Counters) SetDropped(serverIx int, n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped[serverIx] = n
}

// IncOutOfOrder adds n to the out-of-order count for serverIx.
func (c *Counters) IncOutOfOrder(serverIx int, n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outOfOrder[serverIx] += n
}

// IncDropped adds n to the dropped count for serverIx.
func (c *Counters) IncDropped(serverIx int, n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped[serverIx] += n
}

// Snapshot returns a point-in-time copy of the per-server counters, safe to
// hand to a reporter without holding the lock.
func (c *Counters) Snapshot() (duplicates, outOfOrder, dropped map[int]uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	duplicates = cloneMap(c.duplicates)
	outOfOrder = cloneMap(c.outOfOrder)
	dropped = cloneMap(c.dropped)
	return
}

// Merge folds a worker's private counters into this (presumably shared)
// Counters at teardown, per the multi-threaded server mode's
// sum-at-teardown rule.
func (c *Counters) Merge(worker *Counters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReceiveCount += worker.ReceiveCount
	c.SkipCount += worker.SkipCount
	for ix, v := range worker.duplicates {
		c.duplicates[ix] += v
	}
	for ix, v := range worker.outOfOrder {
		c.outOfOrder[ix] += v
	}
	for ix, v := range worker.dropped {
		c.dropped[ix] += v
	}
}

func cloneMap(m map[int]uint64) map[int]uint64 {
	out := make(map[int]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
