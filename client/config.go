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

// Package client implements ClientCore: the send/receive pacing loop that
// originates timestamped probe messages and records reply times under one
// of three pacing models (under-load/throughput, ping-pong, playback), with
// warm-up/cool-down gating and at-most-one-outstanding reply-every-N
// correlation across possibly several echo servers.
package client

import (
	"time"

	"github.com/facebook/netprobe/addr"
	"github.com/facebook/netprobe/clock"
	"github.com/facebook/netprobe/iomux"
	"github.com/facebook/netprobe/socket"
)

// Mode selects one of the three pacing models spec.md §4.8 describes.
type Mode int

const (
	// ModeUnderLoad paces sends at burst_size/mps per cycle, round-robining
	// across destination fds, draining replies non-blockingly between
	// cycles. Throughput runs use this same mode with a very large
	// ReplyEvery; there is no separate Mode value for them.
	ModeUnderLoad Mode = iota
	// ModePingPong is the lock-step special case: ReplyEvery=1, MaxRate,
	// alternating one send with one blocking wait for its reply.
	ModePingPong
	// ModePlayback walks a precomputed schedule of (delay, size) pairs.
	ModePlayback
)

// Config carries everything ClientCore needs to bring up and run.
type Config struct {
	Mode Mode

	// Targets is one or more destinations to send to. Each send takes a new
	// sequence number and goes to the next target fd in round-robin order;
	// a sequence is not repeated across targets.
	Targets []addr.FeedEntry

	Mux        iomux.Kind
	SocketOpts socket.Options

	MaxPayload int
	MsgSize    int

	// BurstSize and Mps pace ModeUnderLoad; pacer.MaxRate (0) means "as fast
	// as possible", collapsing the cycle duration to zero.
	BurstSize int
	Mps       float64

	// ReplyEvery allocates a timing slot and sets PONG_REQUEST on every
	// ReplyEvery-th sequence; 1 means every send gets PacketTimes slots.
	ReplyEvery uint64
	MaxSeq     uint64

	// NumServers upper-bounds the server_ix fan-out PacketTimes is sized
	// for; actual assignment is first-contact-wins, per spec.md §4.8/§9.
	NumServers int

	// RTTFilterLength is the sliding-window length, in samples, the
	// per-server packettimes.PathDelayFilter smooths RTT over; 0 defaults
	// to 59, matching sptp/client's own default path-delay filter length.
	RTTFilterLength int

	// WarmupDuration/CooldownDuration bound the prefix/suffix windows whose
	// sends carry WARMUP and are excluded from statistics.
	WarmupDuration   clock.TicksDuration
	CooldownDuration clock.TicksDuration

	// Exactly one termination mode applies: TestDuration > 0 selects
	// time-based; NumberOfPackets > 0 selects number-based.
	TestDuration    clock.TicksDuration
	NumberOfPackets uint64

	// DummyMps, if non-zero, enables the dummy-send filler between real
	// sends; mutually exclusive with Mps == pacer.MaxRate.
	DummyMps float64

	// NonblockedSend is accepted but not read by Core: a would-block send is
	// always a skip (increment the skip counter, clear the tx slot,
	// continue) and is never retried.
	NonblockedSend bool

	// Schedule is ModePlayback's precomputed (delay-from-previous, size)
	// sequence, produced by LoadSchedule.
	Schedule []ScheduleStep

	// MuxPollTimeout bounds the multiplexer wait used to drain replies
	// between send cycles and, in ping-pong mode, to wait for the matching
	// reply; a liveness floor, not a correctness parameter.
	MuxPollTimeout time.Duration
}

func (c Config) muxTimeoutMsec() int {
	if c.MuxPollTimeout <= 0 {
		return 10
	}
	return int(c.MuxPollTimeout / time.Millisecond)
}
