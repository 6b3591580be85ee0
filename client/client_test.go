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
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/facebook/netprobe/addr"
	"github.com/facebook/netprobe/iomux"
	"github.com/facebook/netprobe/server"
	"github.com/facebook/netprobe/wire"
	"github.com/stretchr/testify/require"
)

func init() {
	wire.Init(1500, 1<<40)
}

func startEchoServer(t *testing.T) (dst addr.Address, stop func()) {
	t.Helper()
	cfg := server.Config{
		Listen: []server.ListenSpec{{
			Addr: addr.Address{Family: addr.FamilyIPv4, IP: netip.MustParseAddr("127.0.0.1"), Port: 0},
			Type: addr.SockDatagram,
		}},
		Workers:    1,
		MaxPayload: 1500,
		MsgSize:    14,
		Mux:        iomux.KindSelect,
	}
	core := server.NewCore(cfg)
	require.NoError(t, core.Prepare())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		core.Serve(ctx)
		close(done)
	}()

	udpAddr := core.ListenAddrs()[0].(*net.UDPAddr)
	ip, _ := netip.AddrFromSlice(udpAddr.IP)
	target := addr.Address{Family: addr.FamilyIPv4, IP: ip.Unmap(), Port: udpAddr.Port}

	return target, func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("echo server did not shut down")
		}
	}
}

// S1 (client half) — a handful of under-load sends, each requesting a reply,
// against a real echo server must all record a tx and rx time with zero
// duplicates.
func TestUnderLoadAgainstEchoServer(t *testing.T) {
	target, stop := startEchoServer(t)
	defer stop()

	cfg := Config{
		Mode:            ModeUnderLoad,
		Targets:         []addr.FeedEntry{{Type: addr.SockDatagram, Target: target}},
		Mux:             iomux.KindSelect,
		MaxPayload:      1500,
		MsgSize:         14,
		BurstSize:       1,
		Mps:             50,
		ReplyEvery:      1,
		MaxSeq:          1000,
		NumServers:      1,
		NumberOfPackets: 5,
		MuxPollTimeout:  50 * time.Millisecond,
	}
	c := NewCore(cfg)
	require.NoError(t, c.Prepare())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, c.Run(ctx))

	for seq := uint64(1); seq <= 5; seq++ {
		require.False(t, c.Times().TxTime(seq).IsZero(), "seq %d must have a tx time", seq)
		require.False(t, c.Times().RxTime(seq, 0).IsZero(), "seq %d must have a rx time", seq)
	}
	require.EqualValues(t, 0, c.Times().Duplicates(0))

	filter := c.RTTFilter(0)
	require.Greater(t, filter.Mean(), 0.0)
	require.Greater(t, filter.Median(), 0.0)
}

// S1 (ping-pong mode) — lock-step send/wait against a real echo server.
func TestPingPongAgainstEchoServer(t *testing.T) {
	target, stop := startEchoServer(t)
	defer stop()

	cfg := Config{
		Mode:            ModePingPong,
		Targets:         []addr.FeedEntry{{Type: addr.SockDatagram, Target: target}},
		Mux:             iomux.KindSelect,
		MaxPayload:      1500,
		MsgSize:         14,
		MaxSeq:          1000,
		NumServers:      1,
		NumberOfPackets: 3,
		MuxPollTimeout:  50 * time.Millisecond,
	}
	c := NewCore(cfg)
	require.NoError(t, c.Prepare())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, c.Run(ctx))

	for seq := uint64(1); seq <= 3; seq++ {
		require.False(t, c.Times().RxTime(seq, 0).IsZero(), "seq %d must have a rx time", seq)
	}
}

// S4 — a server that answers every request twice must be observed by the
// client as one duplicate per sequence, not a second distinct reply.
func TestClientDetectsDuplicateReply(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 64)
		for i := 0; i < 3; i++ {
			ln.SetReadDeadline(time.Now().Add(2 * time.Second))
			n, peer, err := ln.ReadFrom(buf)
			if err != nil {
				return
			}
			msg := buf[:n]
			ln.WriteTo(msg, peer)
			ln.WriteTo(msg, peer) // deliberate duplicate reply
		}
	}()

	udpAddr := ln.LocalAddr().(*net.UDPAddr)
	ip, _ := netip.AddrFromSlice(udpAddr.IP)
	target := addr.Address{Family: addr.FamilyIPv4, IP: ip.Unmap(), Port: udpAddr.Port}

	cfg := Config{
		Mode:            ModeUnderLoad,
		Targets:         []addr.FeedEntry{{Type: addr.SockDatagram, Target: target}},
		Mux:             iomux.KindSelect,
		MaxPayload:      1500,
		MsgSize:         14,
		BurstSize:       1,
		Mps:             20,
		ReplyEvery:      1,
		MaxSeq:          1000,
		NumServers:      1,
		NumberOfPackets: 3,
		MuxPollTimeout:  100 * time.Millisecond,
	}
	c := NewCore(cfg)
	require.NoError(t, c.Prepare())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, c.Run(ctx))
	<-done

	// A second drain picks up any duplicate reply still in flight after the
	// pacing loop's own termination.
	c.drainReplies(200)

	for seq := uint64(1); seq <= 3; seq++ {
		require.False(t, c.Times().RxTime(seq, 0).IsZero(), "seq %d must have a rx time", seq)
	}
	require.GreaterOrEqual(t, c.Times().Duplicates(0), uint64(1), "the server's intentional double-reply must be observed as a duplicate")
}
