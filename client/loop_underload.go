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

package client

import (
	"context"
	"sync/atomic"

	"github.com/facebook/netprobe/clock"
	"github.com/facebook/netprobe/pacer"
	"github.com/facebook/netprobe/wire"
)

// runUnderLoad implements the under-load/throughput pacing model: at each
// cycle boundary, send BurstSize messages, each to the next fd of the
// next_fd ring, draining replies non-blockingly between cycles.
// Throughput runs are this same loop with a very large ReplyEvery
// configured, so they are not a distinct code path here.
func (c *Core) runUnderLoad(ctx context.Context) error {
	p := pacer.New(c.cfg.BurstSize, c.cfg.Mps)
	var dummy *pacer.DummyFiller
	if c.cfg.DummyMps > 0 && c.cfg.Mps != pacer.MaxRate {
		dummy = pacer.NewDummyFiller(c.cfg.DummyMps)
	}
	term := c.buildTermination()
	window := c.warmupCooldownWindow()

	for !term.ShouldStop() {
		if !p.Next(ctx) {
			break
		}
		c.sendCycle(window, dummy)
	}

	// Final drain to catch replies still in flight after the last send, a
	// best-effort flush rather than a guaranteed one: outstanding sends in
	// flight at cancellation are lost, per spec.md §5.
	c.drainReplies(c.cfg.muxTimeoutMsec())
	return nil
}

// sendCycle sends one burst (BurstSize messages, one per round-robin fd
// advance) and drains any replies that have already arrived.
func (c *Core) sendCycle(window warmupCooldown, dummy *pacer.DummyFiller) {
	burst := c.cfg.BurstSize
	if burst < 1 {
		burst = 1
	}
	for i := 0; i < burst; i++ {
		fd := c.nextClientFd()
		seq := c.allocSeq()
		now := clock.Now()
		warmup := window.isWarmup(now)
		replyEvery := c.cfg.ReplyEvery
		if replyEvery == 0 {
			replyEvery = 1
		}
		pongRequest := seq%replyEvery == 0
		c.sendOne(fd, seq, c.cfg.MsgSize, pongRequest, warmup)
		atomic.AddUint64(&c.sent, 1)
		if dummy != nil && dummy.Due(now) {
			c.sendDummy(fd)
		}
	}
	c.drainReplies(0)
}

// sendDummy issues a send with no CLIENT bit set, keeping the egress
// pipeline warm between real sends; the server's "drop messages without
// CLIENT" rule means neither side ever accounts for it as a real probe.
// It is sized like a real message so stream framing on the far end is not
// disrupted by an undersized chunk.
func (c *Core) sendDummy(fd int) {
	meta, ok := c.meta[fd]
	if !ok {
		return
	}
	buf := make([]byte, c.cfg.MsgSize)
	if _, err := wire.SetBuf(buf); err != nil {
		return
	}
	if meta.conn != nil {
		_, _ = meta.conn.Write(buf)
	} else {
		_, _ = meta.pconn.WriteTo(buf, meta.dialedTo)
	}
}

// warmupCooldown bounds the prefix/suffix windows whose sends carry WARMUP
// and are excluded from statistics. It is computed once per run from the
// configured durations; cooldown only applies when a total run duration is
// known (time-based termination), per the spec's open question about
// cool-down semantics varying across modes.
type warmupCooldown struct {
	start         clock.TicksTime
	warmupEnd     clock.TicksTime
	cooldownStart clock.TicksTime
	hasCooldown   bool
}

func (c *Core) warmupCooldownWindow() warmupCooldown {
	start := clock.Now()
	w := warmupCooldown{
		start:     start,
		warmupEnd: start.Add(c.cfg.WarmupDuration),
	}
	if c.cfg.TestDuration.ToNsec() > 0 && c.cfg.CooldownDuration.ToNsec() > 0 {
		deadline := start.Add(c.cfg.TestDuration)
		w.cooldownStart = deadline.Add(c.cfg.CooldownDuration.Scale(-1))
		w.hasCooldown = true
	}
	return w
}

func (w warmupCooldown) isWarmup(now clock.TicksTime) bool {
	if now.Before(w.warmupEnd) {
		return true
	}
	if w.hasCooldown && !now.Before(w.cooldownStart) {
		return true
	}
	return false
}

func (c *Core) buildTermination() *pacer.Termination {
	if c.cfg.NumberOfPackets > 0 {
		return pacer.NewCountBased(c.cfg.NumberOfPackets, &c.sent, &c.exitFlag)
	}
	return pacer.NewTimeBased(c.cfg.TestDuration, &c.exitFlag)
}
