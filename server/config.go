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

// Package server implements ServerCore: a multiplexed echo path that binds
// one or more listening sockets, frames incoming messages, and replies
// (optionally selectively, after gap detection, or not at all), partitioning
// the listening set across worker goroutines that each own a disjoint fd
// subset and their own multiplexer, matching ptp4u/server's per-worker
// goroutine model and responder/server's worker/task split.
package server

import (
	"net/netip"

	"github.com/facebook/netprobe/addr"
	"github.com/facebook/netprobe/iomux"
	"github.com/facebook/netprobe/socket"
)

// ListenSpec describes one socket the server should bind.
type ListenSpec struct {
	Addr addr.Address
	Type addr.SockType

	// Multicast, if Group is valid, causes the server to join a multicast
	// group on this socket (IPv4/IPv6 datagram only).
	Multicast MulticastSpec
}

// MulticastSpec is the optional multicast join configuration for a
// ListenSpec.
type MulticastSpec struct {
	Group      netip.Addr
	Source     netip.Addr // zero means any-source
	RXIface    string
	TTL        int
	TXIface    string
	ReplyGroup bool // reply to the group instead of unicasting to the sender
}

// Config carries everything ServerCore needs to bring up and run.
type Config struct {
	Listen []ListenSpec

	Workers    int
	MaxPayload int
	MsgSize    int
	Mux        iomux.Kind
	SocketOpts socket.Options

	// DontReply puts the server in silent mode: messages are received,
	// counted, and gap-checked, but never answered.
	DontReply bool
	// BridgeMode forwards messages without touching the CLIENT flag, unlike
	// normal server mode which clears it before replying.
	BridgeMode bool
	// GapDetection enables the per-peer expected-sequence check.
	GapDetection bool
	// ForceUnicastReply always replies to the packet's source address, even
	// when the receiving socket is joined to a multicast group.
	ForceUnicastReply bool
	// AcceptNonClient allows messages without the CLIENT flag to be
	// processed, for multicast-loopback diagnostics; normally such messages
	// are dropped per spec.
	AcceptNonClient bool
}

func (c Config) workerCount() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}
