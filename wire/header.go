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

// Package wire implements the fixed 12-byte message header shared by every
// transport: sequence number and flags, packed explicitly as big-endian
// integers rather than overlaid on a host-native struct, so serialization
// never depends on the host's layout or endianness.
package wire

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"
)

// HeaderSize is the fixed on-wire header length, common to every transport.
const HeaderSize = 12

// Flag bits, per the external interface contract: bit 0 CLIENT, bit 1
// PONG_REQUEST, bit 2 WARMUP; all other bits reserved zero.
const (
	FlagClient      uint32 = 1 << 0
	FlagPongRequest uint32 = 1 << 1
	FlagWarmup      uint32 = 1 << 2

	knownFlags = FlagClient | FlagPongRequest | FlagWarmup
)

var (
	maxMessageSize = 65507 // largest IPv4 UDP payload; overridden by Init
	maxSequenceNo  = ^uint64(0)
)

// Init performs the once-per-process static sizing the spec calls for:
// maximum message size and maximum sequence number, used downstream to size
// accumulators and PacketTimes. It is not safe to call after startup.
func Init(maxSize int, maxSeq uint64) {
	maxMessageSize = maxSize
	maxSequenceNo = maxSeq
}

// MaxMessageSize returns the configured maximum total message length.
func MaxMessageSize() int { return maxMessageSize }

// MaxSequenceNo returns the configured maximum legal sequence number.
func MaxSequenceNo() uint64 { return maxSequenceNo }

// payloadRand fills payload bytes so they aren't trivially compressible
// zero runs; seeded from SEED when set so a run can be reproduced, matching
// the environment contract in the external interface. Package-level since
// every sender shares one process-wide seed, not one per message.
var payloadRand = rand.New(rand.NewSource(seedFromEnv()))

func seedFromEnv() int64 {
	if v := os.Getenv("SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return time.Now().UnixNano()
}

// FillPayload writes pseudo-random bytes into buf[HeaderSize:], leaving the
// header untouched. Contents are opaque per the wire format; the server
// echoes them back verbatim rather than regenerating them.
func FillPayload(buf []byte) {
	if len(buf) <= HeaderSize {
		return
	}
	payloadRand.Read(buf[HeaderSize:])
}

// Header is a view of the fixed header bound to a caller-owned buffer; it
// never copies. Every accessor reads or writes big-endian fields directly,
// so there is no separate host-native representation to swap: ToNetwork and
// ToHost exist for API parity with the byte-order contract and are no-ops.
type Header struct {
	buf []byte
}

// SetBuf binds a Header view to buf, which must be at least HeaderSize
// bytes; the payload, if any, follows immediately after.
func SetBuf(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("wire: buffer too small for header: %d < %d", len(buf), HeaderSize)
	}
	return Header{buf: buf}, nil
}

// ToNetwork is the identity operation for this representation: the buffer
// is always big-endian. It exists so call sites can mirror the spec's
// set_header_to_network() contract at send time.
func (h Header) ToNetwork() {}

// ToHost is the identity operation for this representation, mirroring
// set_header_to_host() at receive time.
func (h Header) ToHost() {}

// Sequence returns the header's sequence number.
func (h Header) Sequence() uint64 {
	return binary.BigEndian.Uint64(h.buf[0:8])
}

// SetSequence sets the header's sequence number.
func (h Header) SetSequence(seq uint64) {
	binary.BigEndian.PutUint64(h.buf[0:8], seq)
}

// Flags returns the raw flags word.
func (h Header) Flags() uint32 {
	return binary.BigEndian.Uint32(h.buf[8:12])
}

func (h Header) setFlags(f uint32) {
	binary.BigEndian.PutUint32(h.buf[8:12], f)
}

// IsClient reports whether the CLIENT bit is set.
func (h Header) IsClient() bool { return h.Flags()&FlagClient != 0 }

// SetClient sets the CLIENT bit; only the client does this.
func (h Header) SetClient() { h.setFlags(h.Flags() | FlagClient) }

// SetServer clears the CLIENT bit, the one mutation the server is allowed to
// make to a request header before turning it into a reply. Bridge mode must
// not call this; it forwards the header untouched.
func (h Header) SetServer() { h.setFlags(h.Flags() &^ FlagClient) }

// IsPongRequest reports whether the sender wants a reply for this sequence.
func (h Header) IsPongRequest() bool { return h.Flags()&FlagPongRequest != 0 }

// SetPong sets the PONG_REQUEST bit.
func (h Header) SetPong() { h.setFlags(h.Flags() | FlagPongRequest) }

// ClearPong clears the PONG_REQUEST bit.
func (h Header) ClearPong() { h.setFlags(h.Flags() &^ FlagPongRequest) }

// IsWarmup reports whether the WARMUP bit is set.
func (h Header) IsWarmup() bool { return h.Flags()&FlagWarmup != 0 }

// SetWarmup sets the WARMUP bit; only the client does this.
func (h Header) SetWarmup() { h.setFlags(h.Flags() | FlagWarmup) }

// ClearWarmup clears the WARMUP bit.
func (h Header) ClearWarmup() { h.setFlags(h.Flags() &^ FlagWarmup) }

// IsValidHeader reports whether the header has only known flag bits set, the
// sequence number is within the configured range, and the message's total
// length (header + payload) does not exceed the configured maximum.
func (h Header) IsValidHeader(totalLen int) bool {
	if h.Flags()&^knownFlags != 0 {
		return false
	}
	if h.Sequence() > maxSequenceNo {
		return false
	}
	return totalLen <= maxMessageSize
}

// SequencePrefixExceedsMax reports whether prefix, a leading run of an
// in-progress 8-byte big-endian sequence field, already proves the field
// can't hold a legal sequence number even though it isn't complete yet: any
// set bit outside the span MaxSequenceNo can occupy is a bit no real
// sequence number could have set. Used to catch corrupt bytes before a full
// header has even accumulated, rather than waiting for one to assemble.
func SequencePrefixExceedsMax(prefix []byte) bool {
	zeroPrefixLen := 8 - significantBytes(maxSequenceNo)
	for i := 0; i < len(prefix) && i < zeroPrefixLen; i++ {
		if prefix[i] != 0 {
			return true
		}
	}
	return false
}

func significantBytes(v uint64) int {
	n := 1
	for v > 0xFF {
		v >>= 8
		n++
	}
	return n
}

// Bytes exposes the bound header bytes, for callers that need to forward
// the raw wire representation (e.g. bridge mode, reply send).
func (h Header) Bytes() []byte {
	return h.buf[:HeaderSize]
}
