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

// Package framing slices a byte stream into whole wire messages, regardless
// of how the stream is chopped into recv chunks. Two accumulation
// strategies are provided: InPlaceAccumulator, which reads directly into its
// own 2x-oversized buffer, and BufferedAccumulator, which accepts
// producer-owned chunks (e.g. from a scatter-gather read) and copies only
// the partial trailing prefix between calls.
//
// Both transports agree on a fixed msgSize for the whole session; there is
// no in-band length field, so "message.length" below is always msgSize.
package framing

import "github.com/facebook/netprobe/wire"

// OnMessage is called once per whole message, as a view into accumulator
// storage; it is only valid for the duration of the call.
type OnMessage func(msg []byte)

// OnBadHeader is called when a chunk's header fails validation; the rest of
// that chunk is discarded and framing resumes fresh on the next chunk.
type OnBadHeader func()

// InPlaceAccumulator implements the in-place strategy: bytes are read
// directly into cur_addr, and a trailing partial message is left positioned
// so the next read call can append to it contiguously.
type InPlaceAccumulator struct {
	buf        []byte
	base       int
	curOffset  int
	curSize    int
	msgSize    int
	maxPayload int

	onMessage   OnMessage
	onBadHeader OnBadHeader
}

// NewInPlaceAccumulator builds an accumulator sized to hold one pending
// partial message plus one new full chunk (2x maxPayload), for a session
// whose agreed message size is msgSize.
func NewInPlaceAccumulator(maxPayload, msgSize int, onMessage OnMessage, onBadHeader OnBadHeader) *InPlaceAccumulator {
	return &InPlaceAccumulator{
		buf:         make([]byte, 2*maxPayload),
		curSize:     maxPayload,
		msgSize:     msgSize,
		maxPayload:  maxPayload,
		onMessage:   onMessage,
		onBadHeader: onBadHeader,
	}
}

// RecvSlot returns where the next raw read should land. The caller must
// write at most len(slot) bytes there and report the count to Feed.
func (a *InPlaceAccumulator) RecvSlot() []byte {
	start := a.base + a.curOffset
	end := start + a.curSize
	if end > len(a.buf) {
		end = len(a.buf)
	}
	if start >= len(a.buf) {
		// Out of room ahead of base; compact back to the front. This only
		// happens once base + msgSize runs past the 2x buffer, which a
		// correctly sized accumulator never reaches mid-message.
		a.compact()
		start = a.base + a.curOffset
		end = start + a.curSize
		if end > len(a.buf) {
			end = len(a.buf)
		}
	}
	return a.buf[start:end]
}

func (a *InPlaceAccumulator) compact() {
	copy(a.buf, a.buf[a.base:a.base+a.curOffset])
	a.base = 0
}

// Feed processes n freshly-received bytes written into the slice most
// recently returned by RecvSlot, running the accumulator's state machine
// until the chunk is fully consumed.
func (a *InPlaceAccumulator) Feed(n int) {
	for n > 0 {
		if a.curOffset+n < wire.HeaderSize {
			seqEnd := a.curOffset + n
			if seqEnd > 8 {
				seqEnd = 8
			}
			if wire.SequencePrefixExceedsMax(a.buf[a.base : a.base+seqEnd]) {
				a.reset()
				if a.onBadHeader != nil {
					a.onBadHeader()
				}
				return
			}
			a.curOffset += n
			a.curSize = max(a.curSize-n, wire.HeaderSize-a.curOffset)
			return
		}

		h, err := wire.SetBuf(a.buf[a.base : a.base+wire.HeaderSize])
		if err != nil {
			// Unreachable: base+HeaderSize is always within the buffer by
			// construction, but fail closed rather than index out of range.
			a.reset()
			if a.onBadHeader != nil {
				a.onBadHeader()
			}
			return
		}
		h.ToHost()
		if !h.IsValidHeader(a.msgSize) {
			a.reset()
			if a.onBadHeader != nil {
				a.onBadHeader()
			}
			return
		}

		if a.curOffset+n < a.msgSize {
			a.curOffset += n
			a.curSize = a.msgSize - a.curOffset
			return
		}

		msg := a.buf[a.base : a.base+a.msgSize]
		if a.onMessage != nil {
			a.onMessage(msg)
		}
		n -= a.msgSize - a.curOffset
		if n == 0 {
			a.reset()
			return
		}
		a.base += a.msgSize
		a.curOffset = 0
	}
}

func (a *InPlaceAccumulator) reset() {
	a.base = 0
	a.curOffset = 0
	a.curSize = a.maxPayload
}

// CurOffset exposes the accumulator's offset into the in-flight message, for
// the accumulator-bounds property test.
func (a *InPlaceAccumulator) CurOffset() int { return a.curOffset }

// BufferedAccumulator implements the buffered strategy: the caller owns the
// chunk's storage (e.g. a zero-copy scatter entry) and only the partial
// trailing prefix of an in-flight message is copied into accumulator state
// between calls.
type BufferedAccumulator struct {
	msgSize int
	partial []byte

	onMessage   OnMessage
	onBadHeader OnBadHeader
}

// NewBufferedAccumulator builds a buffered accumulator for a session whose
// agreed message size is msgSize.
func NewBufferedAccumulator(msgSize int, onMessage OnMessage, onBadHeader OnBadHeader) *BufferedAccumulator {
	return &BufferedAccumulator{
		msgSize:     msgSize,
		partial:     make([]byte, 0, msgSize),
		onMessage:   onMessage,
		onBadHeader: onBadHeader,
	}
}

// Feed processes a producer-owned chunk, emitting whole messages and
// copying any trailing partial prefix into internal storage.
func (a *BufferedAccumulator) Feed(data []byte) {
	for len(data) > 0 {
		need := a.msgSize - len(a.partial)
		if len(data) < need {
			a.partial = append(a.partial, data...)
			switch {
			case len(a.partial) >= wire.HeaderSize:
				if !a.headerValid(a.partial) {
					a.partial = a.partial[:0]
					if a.onBadHeader != nil {
						a.onBadHeader()
					}
				}
			case wire.SequencePrefixExceedsMax(a.partial):
				a.partial = a.partial[:0]
				if a.onBadHeader != nil {
					a.onBadHeader()
				}
			}
			return
		}

		msg := append(a.partial, data[:need]...)
		if !a.headerValid(msg) {
			a.partial = a.partial[:0]
			if a.onBadHeader != nil {
				a.onBadHeader()
			}
			return
		}
		if a.onMessage != nil {
			a.onMessage(msg)
		}
		data = data[need:]
		a.partial = a.partial[:0]
	}
}

func (a *BufferedAccumulator) headerValid(msg []byte) bool {
	h, err := wire.SetBuf(msg[:wire.HeaderSize])
	if err != nil {
		return false
	}
	h.ToHost()
	return h.IsValidHeader(a.msgSize)
}
