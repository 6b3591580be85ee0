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

// Package packettimes holds the client's per-sequence send and per-server
// receive timestamps in two dense, preallocated arrays, along with the
// duplicate / out-of-order / dropped counters derived from filling them.
package packettimes

import (
	"fmt"

	"github.com/facebook/netprobe/clock"
)

// PacketTimes is created once by client setup, owned exclusively by the
// client, and torn down at shutdown. Every operation is O(1); there is no
// locking, matching the single-threaded client pacing model.
type PacketTimes struct {
	times      []clock.TicksTime
	numServers int
	replyEvery uint64
	maxSeq     uint64

	duplicates []uint64
	outOfOrder []uint64
	dropped    []uint64
}

// New allocates a PacketTimes sized for sequences [1, maxSeq], recording one
// tx-time and up to numServers rx-times for every replyEvery-th sequence.
// replyEvery trades storage for resolution: throughput mode passes a very
// large value so only the first and last slots are effectively used.
func New(maxSeq uint64, replyEvery uint64, numServers int) *PacketTimes {
	if replyEvery == 0 {
		replyEvery = 1
	}
	blockSize := 1 + numServers
	numBlocks := int(maxSeq/replyEvery) + 1
	return &PacketTimes{
		times:      make([]clock.TicksTime, numBlocks*blockSize),
		numServers: numServers,
		replyEvery: replyEvery,
		maxSeq:     maxSeq,
		duplicates: make([]uint64, numServers),
		outOfOrder: make([]uint64, numServers),
		dropped:    make([]uint64, numServers),
	}
}

// Index returns the base slot for seq: slot Index(seq) holds the tx-time,
// slots Index(seq)+1..Index(seq)+numServers hold per-server rx-times.
func (p *PacketTimes) Index(seq uint64) int {
	return int(seq/p.replyEvery) * (1 + p.numServers)
}

// NumServers reports the configured server fan-out width.
func (p *PacketTimes) NumServers() int { return p.numServers }

// SetTxTime records now() as the tx-time for seq. Calling it with seq
// greater than the configured maxSeq is an invariant violation: the client
// must never allocate a sequence outside its configured range.
func (p *PacketTimes) SetTxTime(seq uint64) {
	if seq > p.maxSeq {
		panic(fmt.Sprintf("packettimes: set_tx_time(%d) exceeds max_seq_no %d", seq, p.maxSeq))
	}
	p.times[p.Index(seq)] = clock.Now()
}

// ClearTxTime resets the tx slot for seq, used when a send is skipped or
// dropped under EAGAIN so no timestamp is recorded for work that never
// left the host.
func (p *PacketTimes) ClearTxTime(seq uint64) {
	p.times[p.Index(seq)] = clock.TicksTime{}
}

// TxTime returns the recorded tx-time for seq, or the zero sentinel.
func (p *PacketTimes) TxTime(seq uint64) clock.TicksTime {
	return p.times[p.Index(seq)]
}

// SetRxTime records t as the rx-time from serverIx for seq if that slot is
// still the zero sentinel; otherwise it increments that server's duplicate
// counter and leaves the original timestamp in place.
func (p *PacketTimes) SetRxTime(seq uint64, serverIx int, t clock.TicksTime) {
	idx := p.Index(seq) + 1 + serverIx
	if !p.times[idx].IsZero() {
		p.duplicates[serverIx]++
		return
	}
	p.times[idx] = t
}

// RxTime returns the recorded rx-time from serverIx for seq, or the zero
// sentinel if no reply has arrived yet.
func (p *PacketTimes) RxTime(seq uint64, serverIx int) clock.TicksTime {
	return p.times[p.Index(seq)+1+serverIx]
}

// Duplicates reports the duplicate-reply count observed from serverIx.
func (p *PacketTimes) Duplicates(serverIx int) uint64 { return p.duplicates[serverIx] }

// IncOutOfOrder records an out-of-order reply observed from serverIx.
func (p *PacketTimes) IncOutOfOrder(serverIx int) { p.outOfOrder[serverIx]++ }

// OutOfOrder reports the out-of-order count observed from serverIx.
func (p *PacketTimes) OutOfOrder(serverIx int) uint64 { return p.outOfOrder[serverIx] }

// IncDropped records a gap detected from serverIx.
func (p *PacketTimes) IncDropped(serverIx int) { p.dropped[serverIx]++ }

// Dropped reports the drop count observed from serverIx.
func (p *PacketTimes) Dropped(serverIx int) uint64 { return p.dropped[serverIx] }

// Len returns the total number of slots allocated, for bounds checks and tests.
func (p *PacketTimes) Len() int { return len(p.times) }
