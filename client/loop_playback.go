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
)

// runPlayback walks the precomputed (delay-from-previous, size) schedule,
// sleeping until each step's absolute send time before sending. ReplyEvery
// gates PONG_REQUEST exactly as in the other pacing models.
func (c *Core) runPlayback(ctx context.Context) error {
	nextAt := clock.Now()
	replyEvery := c.cfg.ReplyEvery
	if replyEvery == 0 {
		replyEvery = 1
	}

	for _, step := range c.cfg.Schedule {
		nextAt = nextAt.Add(step.DelaySincePrev)
		for clock.Now().Before(nextAt) {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if atomic.LoadInt32(&c.exitFlag) != 0 {
				return nil
			}
		}

		fd := c.nextClientFd()
		seq := c.allocSeq()
		pongRequest := seq%replyEvery == 0
		c.sendOne(fd, seq, step.Size, pongRequest, false)
		atomic.AddUint64(&c.sent, 1)
		c.drainReplies(0)
	}

	c.drainReplies(c.cfg.muxTimeoutMsec())
	return nil
}
