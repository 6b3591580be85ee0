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
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/facebook/netprobe/addr"
	"github.com/facebook/netprobe/iomux"
	"github.com/facebook/netprobe/neterr"
	"github.com/facebook/netprobe/socket"
	"github.com/facebook/netprobe/stats"
	log "github.com/sirupsen/logrus"
)

// defaultMuxTimeoutMsec bounds every worker's multiplexer wait: a liveness
// floor for reacting to context cancellation, not a correctness parameter,
// per the spec's framing of the multiplexer timeout.
const defaultMuxTimeoutMsec = 100

// Core runs the multi-worker echo server described by a Config.
type Core struct {
	cfg      Config
	Counters *stats.Counters

	workers []*workerState
}

// NewCore builds a Core ready to Run. Counters is allocated here so callers
// can wire a stats reporter (JSON or Prometheus) before Run starts.
func NewCore(cfg Config) *Core {
	return &Core{cfg: cfg, Counters: stats.NewCounters()}
}

// Prepare binds every configured listener, partitioning them round-robin
// across Config.Workers worker states (each with its own registry and
// multiplexer, per the no-fd-crosses-threads concurrency rule). It returns
// once every listener is bound, so callers (and tests) can read back bound
// addresses before Serve starts accepting traffic.
func (c *Core) Prepare() error {
	n := c.cfg.workerCount()
	c.workers = make([]*workerState, n)
	for i := range c.workers {
		mux, err := iomux.New(c.cfg.Mux)
		if err != nil {
			return neterr.New("server", neterr.Fatal, err)
		}
		c.workers[i] = newWorkerState(i, &c.cfg, mux)
	}

	for i, spec := range c.cfg.Listen {
		w := c.workers[i%n]
		if err := w.bind(spec); err != nil {
			return err
		}
	}
	return nil
}

// Serve blocks, driving every worker's readiness loop, until ctx is
// cancelled. Prepare must have been called first.
func (c *Core) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, w := range c.workers {
		wg.Add(1)
		go func(w *workerState) {
			defer wg.Done()
			w.run(ctx)
		}(w)
	}
	wg.Wait()

	for _, w := range c.workers {
		c.Counters.Merge(w.counters)
	}
	return nil
}

// Run is Prepare followed by Serve, for callers that don't need to observe
// bound addresses before traffic starts flowing.
func (c *Core) Run(ctx context.Context) error {
	if err := c.Prepare(); err != nil {
		return err
	}
	return c.Serve(ctx)
}

// ListenAddrs returns the local address of every bound listener, in the
// order workers were created then bound within each worker, for callers
// (tests, logging) that need to know an ephemerally-assigned port.
func (c *Core) ListenAddrs() []net.Addr {
	var out []net.Addr
	for _, w := range c.workers {
		for _, fd := range w.registry.Fds() {
			rec, ok := w.registry.Get(fd)
			if !ok {
				continue
			}
			switch conn := rec.Conn.(type) {
			case net.PacketConn:
				out = append(out, conn.LocalAddr())
			case net.Listener:
				out = append(out, conn.Addr())
			}
		}
	}
	return out
}

// bind opens spec's socket, joins multicast if configured, and registers it
// with this worker's registry and multiplexer.
func (w *workerState) bind(spec ListenSpec) error {
	switch spec.Type {
	case addr.SockDatagram:
		return w.bindDatagram(spec)
	case addr.SockStream:
		return w.bindStream(spec)
	default:
		return neterr.Wrapf("server", neterr.BadArgument, "unknown sock type %v", spec.Type)
	}
}

func (w *workerState) bindDatagram(spec ListenSpec) error {
	var conn net.PacketConn
	var err error
	switch spec.Addr.Family {
	case addr.FamilyUnix:
		conn, err = net.ListenUnixgram("unixgram", spec.Addr.UnixAddr("unixgram"))
	default:
		conn, err = net.ListenUDP("udp", spec.Addr.UDPAddr())
	}
	if err != nil {
		return neterr.New("server", neterr.Socket, fmt.Errorf("listen %s: %w", spec.Addr, err))
	}

	var replyAddr net.Addr
	if spec.Multicast.Group.IsValid() {
		if _, err := addr.JoinMulticast(conn, spec.Multicast.Group, spec.Multicast.Source, spec.Multicast.RXIface); err != nil {
			conn.Close()
			return neterr.New("server", neterr.Socket, err)
		}
		if spec.Multicast.ReplyGroup {
			replyAddr = &net.UDPAddr{IP: net.IP(spec.Multicast.Group.AsSlice()), Port: spec.Addr.Port}
		}
	}

	rec, err := w.registry.Register(conn, spec.Addr, spec.Type, true, w.cfg.MaxPayload, w.cfg.MsgSize, w.cfg.SocketOpts, nil, nil)
	if err != nil {
		conn.Close()
		return err
	}
	w.datagram[rec.Fd] = &datagramMeta{
		buf:       make([]byte, w.cfg.MaxPayload),
		replyAddr: replyAddr,
	}
	if err := w.mux.Add(rec.Fd); err != nil {
		return neterr.New("server", neterr.Socket, err)
	}
	log.Infof("server[%d]: listening on %s (datagram)", w.id, spec.Addr)
	return nil
}

func (w *workerState) bindStream(spec ListenSpec) error {
	var ln net.Listener
	var err error
	switch spec.Addr.Family {
	case addr.FamilyUnix:
		ln, err = net.ListenUnix("unix", spec.Addr.UnixAddr("unix"))
	default:
		ln, err = net.ListenTCP("tcp", spec.Addr.TCPAddr())
	}
	if err != nil {
		return neterr.New("server", neterr.Socket, fmt.Errorf("listen %s: %w", spec.Addr, err))
	}

	rec, err := w.registry.Register(ln.(syscall.Conn), spec.Addr, spec.Type, true, w.cfg.MaxPayload, w.cfg.MsgSize, w.cfg.SocketOpts, nil, nil)
	if err != nil {
		ln.Close()
		return err
	}
	w.registry.MarkListening(rec.Fd)
	w.listeners[rec.Fd] = ln
	if err := w.mux.Add(rec.Fd); err != nil {
		return neterr.New("server", neterr.Socket, err)
	}
	log.Infof("server[%d]: listening on %s (stream)", w.id, spec.Addr)
	return nil
}
