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

package server

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/facebook/netprobe/addr"
	"github.com/facebook/netprobe/iomux"
	"github.com/facebook/netprobe/wire"
	"github.com/stretchr/testify/require"
)

func init() {
	wire.Init(1500, 1<<40)
}

func buildMessage(seq uint64, flags uint32, size int) []byte {
	buf := make([]byte, size)
	h, _ := wire.SetBuf(buf)
	h.SetSequence(seq)
	// Header bits are set through named setters so the test exercises the
	// same contract the client uses, instead of poking Flags() directly.
	if flags&wire.FlagClient != 0 {
		h.SetClient()
	}
	if flags&wire.FlagPongRequest != 0 {
		h.SetPong()
	}
	if flags&wire.FlagWarmup != 0 {
		h.SetWarmup()
	}
	return buf
}

func loopbackConfig(msgSize int, extra func(*Config)) *Core {
	cfg := Config{
		Listen: []ListenSpec{{
			Addr: addr.Address{Family: addr.FamilyIPv4, IP: netip.MustParseAddr("127.0.0.1"), Port: 0},
			Type: addr.SockDatagram,
		}},
		Workers:    1,
		MaxPayload: 1500,
		MsgSize:    msgSize,
		Mux:        iomux.KindSelect,
	}
	if extra != nil {
		extra(&cfg)
	}
	return NewCore(cfg)
}

// S1 — UDP ping-pong echo, one message: client sends CLIENT|PONG_REQUEST,
// server replies with PONG_REQUEST and CLIENT cleared, same sequence.
func TestS1_UDPPingPongEcho(t *testing.T) {
	core := loopbackConfig(14, nil)
	require.NoError(t, core.Prepare())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- core.Serve(ctx) }()

	dst := core.ListenAddrs()[0].(*net.UDPAddr)
	client, err := net.DialUDP("udp", nil, dst)
	require.NoError(t, err)
	defer client.Close()
	client.SetReadDeadline(time.Now().Add(2 * time.Second))

	req := buildMessage(1, wire.FlagClient|wire.FlagPongRequest, 14)
	_, err = client.Write(req)
	require.NoError(t, err)

	reply := make([]byte, 64)
	n, err := client.Read(reply)
	require.NoError(t, err)
	require.Equal(t, 14, n)

	h, err := wire.SetBuf(reply[:wire.HeaderSize])
	require.NoError(t, err)
	require.EqualValues(t, 1, h.Sequence())
	require.True(t, h.IsPongRequest())
	require.False(t, h.IsClient())

	cancel()
	select {
	case <-errc:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestDontReplyModeNeverSendsAReply(t *testing.T) {
	core := loopbackConfig(14, func(c *Config) { c.DontReply = true })
	require.NoError(t, core.Prepare())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go core.Serve(ctx)

	dst := core.ListenAddrs()[0].(*net.UDPAddr)
	client, err := net.DialUDP("udp", nil, dst)
	require.NoError(t, err)
	defer client.Close()
	client.SetReadDeadline(time.Now().Add(300 * time.Millisecond))

	req := buildMessage(1, wire.FlagClient|wire.FlagPongRequest, 14)
	_, err = client.Write(req)
	require.NoError(t, err)

	buf := make([]byte, 64)
	_, err = client.Read(buf)
	require.Error(t, err, "dont-reply mode must never send a reply")
}

// S6 (server half) — messages without CLIENT set are dropped unless the
// server explicitly opts into accepting them for multicast-loopback
// diagnostics.
func TestNonClientMessageIsDroppedByDefault(t *testing.T) {
	core := loopbackConfig(14, nil)
	require.NoError(t, core.Prepare())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go core.Serve(ctx)

	dst := core.ListenAddrs()[0].(*net.UDPAddr)
	client, err := net.DialUDP("udp", nil, dst)
	require.NoError(t, err)
	defer client.Close()
	client.SetReadDeadline(time.Now().Add(300 * time.Millisecond))

	req := buildMessage(1, wire.FlagPongRequest, 14) // CLIENT not set
	_, err = client.Write(req)
	require.NoError(t, err)

	buf := make([]byte, 64)
	_, err = client.Read(buf)
	require.Error(t, err, "a message without CLIENT must not be answered")
}

// Bridge mode forwards messages without clearing CLIENT, unlike ordinary
// server mode.
func TestBridgeModeLeavesClientFlagIntact(t *testing.T) {
	core := loopbackConfig(14, func(c *Config) { c.BridgeMode = true })
	require.NoError(t, core.Prepare())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go core.Serve(ctx)

	dst := core.ListenAddrs()[0].(*net.UDPAddr)
	client, err := net.DialUDP("udp", nil, dst)
	require.NoError(t, err)
	defer client.Close()
	client.SetReadDeadline(time.Now().Add(2 * time.Second))

	req := buildMessage(7, wire.FlagClient|wire.FlagPongRequest, 14)
	_, err = client.Write(req)
	require.NoError(t, err)

	reply := make([]byte, 64)
	n, err := client.Read(reply)
	require.NoError(t, err)
	h, err := wire.SetBuf(reply[:n])
	require.NoError(t, err)
	require.True(t, h.IsClient(), "bridge mode must not clear CLIENT")
}
