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

package framing

import (
	"testing"

	"github.com/facebook/netprobe/wire"
	"github.com/stretchr/testify/require"
)

const testMsgSize = 14

func buildMessage(seq uint64) []byte {
	buf := make([]byte, testMsgSize)
	h, err := wire.SetBuf(buf)
	if err != nil {
		panic(err)
	}
	h.SetSequence(seq)
	h.SetClient()
	h.SetPong()
	return buf
}

func feedInPlace(t *testing.T, a *InPlaceAccumulator, stream []byte, chunkSizes []int) {
	t.Helper()
	off := 0
	for _, n := range chunkSizes {
		slot := a.RecvSlot()
		require.GreaterOrEqual(t, len(slot), n)
		copy(slot, stream[off:off+n])
		a.Feed(n)
		off += n
	}
	require.Equal(t, len(stream), off)
}

func TestFramingCompletenessAcrossChunking(t *testing.T) {
	wire.Init(testMsgSize, 1<<20)
	var got []uint64
	a := NewInPlaceAccumulator(testMsgSize, testMsgSize, func(msg []byte) {
		h, err := wire.SetBuf(msg)
		require.NoError(t, err)
		got = append(got, h.Sequence())
	}, func() { t.Fatal("unexpected bad header") })

	stream := append(buildMessage(1), buildMessage(2)...)
	// S2: two back-to-back 14-byte messages delivered as chunks [3,3,3,5,3,3,3,5].
	feedInPlace(t, a, stream, []int{3, 3, 3, 5, 3, 3, 3, 5})

	require.Equal(t, []uint64{1, 2}, got)
}

func TestFramingCompletenessArbitrarySlicing(t *testing.T) {
	wire.Init(testMsgSize, 1<<20)
	const n = 25
	stream := make([]byte, 0, n*testMsgSize)
	for i := uint64(1); i <= n; i++ {
		stream = append(stream, buildMessage(i)...)
	}

	for _, chunkSize := range []int{1, 2, 3, 5, 7, 14, 28} {
		var got int
		a := NewInPlaceAccumulator(testMsgSize, testMsgSize, func(msg []byte) { got++ }, func() { t.Fatal("unexpected bad header") })
		off := 0
		for off < len(stream) {
			n := chunkSize
			if off+n > len(stream) {
				n = len(stream) - off
			}
			slot := a.RecvSlot()
			if len(slot) < n {
				n = len(slot)
			}
			copy(slot, stream[off:off+n])
			a.Feed(n)
			off += n
		}
		require.Equal(t, n, got, "chunk size %d", chunkSize)
	}
}

func TestAccumulatorBounds(t *testing.T) {
	wire.Init(testMsgSize, 1<<20)
	a := NewInPlaceAccumulator(testMsgSize, testMsgSize, func([]byte) {}, func() {})
	stream := append(buildMessage(1), buildMessage(2)...)
	off := 0
	for _, n := range []int{3, 3, 3, 5, 3, 3, 3, 5} {
		slot := a.RecvSlot()
		copy(slot, stream[off:off+n])
		a.Feed(n)
		off += n
		require.GreaterOrEqual(t, a.CurOffset(), 0)
		require.LessOrEqual(t, a.CurOffset(), testMsgSize)
	}
}

func TestBadHeaderResync(t *testing.T) {
	wire.Init(testMsgSize, 1<<20)
	var got []uint64
	var badHeaders int
	a := NewInPlaceAccumulator(testMsgSize, testMsgSize, func(msg []byte) {
		h, err := wire.SetBuf(msg)
		require.NoError(t, err)
		got = append(got, h.Sequence())
	}, func() { badHeaders++ })

	// S5: a well-formed message, then 6 bytes of 0xFF (a bad header), then
	// another well-formed message, each delivered as its own read — but a
	// read can never hand the accumulator more bytes than the slot it most
	// recently offered, so split any of the three that overruns it.
	garbage := make([]byte, 6)
	for i := range garbage {
		garbage[i] = 0xFF
	}

	for _, seg := range [][]byte{buildMessage(1), garbage, buildMessage(2)} {
		off := 0
		for off < len(seg) {
			slot := a.RecvSlot()
			n := len(seg) - off
			if n > len(slot) {
				n = len(slot)
			}
			copy(slot, seg[off:off+n])
			a.Feed(n)
			off += n
		}
	}

	require.Equal(t, []uint64{1, 2}, got)
	require.Equal(t, 1, badHeaders)
	require.Equal(t, 0, a.CurOffset())
}

func TestBufferedAccumulatorCompleteness(t *testing.T) {
	wire.Init(testMsgSize, 1<<20)
	var got []uint64
	a := NewBufferedAccumulator(testMsgSize, func(msg []byte) {
		h, err := wire.SetBuf(msg)
		require.NoError(t, err)
		got = append(got, h.Sequence())
	}, func() { t.Fatal("unexpected bad header") })

	stream := append(buildMessage(10), buildMessage(11)...)
	for _, n := range []int{3, 3, 3, 5, 3, 3, 3, 5} {
		a.Feed(stream[:n])
		stream = stream[n:]
	}

	require.Equal(t, []uint64{10, 11}, got)
}
