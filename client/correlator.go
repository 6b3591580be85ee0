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

// correlator assigns a dense server_ix to each distinct replying peer
// address, first-contact-wins: once a peer has been seen, its index never
// changes, even if later traffic suggests a different ordering. This is the
// multi-server half of ClientCore's reply correlation, letting replies
// arrive out of order and from more than one echo server per outgoing
// sequence.
type correlator struct {
	index map[string]int
	next  int
	max   int
}

func newCorrelator(maxServers int) *correlator {
	return &correlator{index: make(map[string]int), max: maxServers}
}

// indexFor returns peerKey's server_ix, assigning the next free dense index
// on first contact. Once max distinct peers have been assigned, any further
// unknown peer collapses onto the last slot rather than panicking: a
// measurement run should not crash because more servers replied than were
// configured, it should just lose fan-out resolution for the overflow.
// Overflow peers are not recorded in the index.
func (c *correlator) indexFor(peerKey string) int {
	if ix, ok := c.index[peerKey]; ok {
		return ix
	}
	if c.next >= c.max {
		return c.max - 1
	}
	ix := c.next
	c.next++
	c.index[peerKey] = ix
	return ix
}

// Len reports how many distinct peers hold their own server_ix; overflow
// peers sharing the last slot are not counted.
func (c *correlator) Len() int { return len(c.index) }
