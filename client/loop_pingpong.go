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
)

// runPingPong implements the lock-step pacing model: send one message
// marked PONG_REQUEST, then block on the multiplexer for the matching
// reply before sending the next. ReplyEvery is always treated as 1 here,
// per spec.md §4.8: ping-pong has no concurrent outstanding sends.
func (c *Core) runPingPong(ctx context.Context) error {
	term := c.buildTermination()
	timeoutMsec := c.cfg.muxTimeoutMsec()

	for !term.ShouldStop() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fd := c.nextClientFd()
		seq := c.allocSeq()
		c.sendOne(fd, seq, c.cfg.MsgSize, true, false)
		atomic.AddUint64(&c.sent, 1)

		for !c.replyReceived(seq) {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			// A count-based target is already met once the last send is out,
			// so only the exit flag or a time-based deadline ends this wait.
			if atomic.LoadInt32(&c.exitFlag) != 0 || (c.cfg.NumberOfPackets == 0 && term.ShouldStop()) {
				return nil
			}
			c.drainReplies(timeoutMsec)
		}
	}
	return nil
}

// replyReceived reports whether any server has answered seq yet, across
// the whole configured server fan-out.
func (c *Core) replyReceived(seq uint64) bool {
	for ix := 0; ix < c.times.NumServers(); ix++ {
		if !c.times.RxTime(seq, ix).IsZero() {
			return true
		}
	}
	return false
}
