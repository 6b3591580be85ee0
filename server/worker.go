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
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/facebook/netprobe/iomux"
	"github.com/facebook/netprobe/socket"
	"github.com/facebook/netprobe/stats"
	"github.com/facebook/netprobe/wire"
	log "github.com/sirupsen/logrus"
)

// datagramMeta holds the per-fd state a datagram socket needs that doesn't
// belong in socket.Record: its reusable read buffer and, if replies go back
// to the multicast group rather than the unicast sender, that group address.
type datagramMeta struct {
	buf       []byte
	replyAddr net.Addr // non-nil means "reply here instead of the sender"
}

// workerState is one worker's private slice of the server: its own
// registry, multiplexer, and counters. No fd crosses between workers.
type workerState struct {
	id       int
	registry *socket.Registry
	mux      iomux.Multiplexer
	cfg      *Config
	counters *stats.Counters

	listeners map[int]net.Listener
	conns     map[int]net.Conn
	datagram  map[int]*datagramMeta

	gapCursors map[int]map[string]uint64 // fd -> peer key -> expected next sequence
}

func newWorkerState(id int, cfg *Config, mux iomux.Multiplexer) *workerState {
	return &workerState{
		id:         id,
		registry:   socket.NewRegistry(),
		mux:        mux,
		cfg:        cfg,
		counters:   stats.NewCounters(),
		listeners:  make(map[int]net.Listener),
		conns:      make(map[int]net.Conn),
		datagram:   make(map[int]*datagramMeta),
		gapCursors: make(map[int]map[string]uint64),
	}
}

func (w *workerState) run(ctx context.Context) {
	defer w.mux.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ready, err := w.mux.Wait(defaultMuxTimeoutMsec)
		if err != nil {
			log.Errorf("server[%d]: multiplexer wait: %v", w.id, err)
			continue
		}
		for _, fd := range ready {
			rec, ok := w.registry.Get(fd)
			if !ok {
				continue
			}
			if rec.Listening {
				w.acceptOne(fd)
				continue
			}
			w.readOne(rec)
		}
	}
}

func (w *workerState) acceptOne(fd int) {
	ln, ok := w.listeners[fd]
	if !ok {
		return
	}
	conn, err := ln.Accept()
	if err != nil {
		log.Infof("server[%d]: accept: %v", w.id, err)
		return
	}

	peer, err := peerAddressOf(conn.RemoteAddr())
	if err != nil {
		conn.Close()
		log.Errorf("server[%d]: accept: %v", w.id, err)
		return
	}

	listenerRec, _ := w.registry.Get(fd)
	rec, err := w.registry.Register(conn.(syscall.Conn), peer, listenerRec.Type, true, w.cfg.MaxPayload, w.cfg.MsgSize, w.cfg.SocketOpts,
		func(msg []byte) { w.handleStreamMessage(conn, msg) },
		func() { log.Debugf("server[%d]: bad header on accepted conn, resyncing", w.id) },
	)
	if err != nil {
		conn.Close()
		log.Errorf("server[%d]: register accepted conn: %v", w.id, err)
		return
	}
	w.conns[rec.Fd] = conn
	if err := w.mux.Add(rec.Fd); err != nil {
		log.Errorf("server[%d]: add accepted fd to multiplexer: %v", w.id, err)
	}
}

func (w *workerState) readOne(rec *socket.Record) {
	if meta, ok := w.datagram[rec.Fd]; ok {
		w.readDatagram(rec, meta)
		return
	}
	if conn, ok := w.conns[rec.Fd]; ok {
		w.readStream(rec, conn)
	}
}

func (w *workerState) readDatagram(rec *socket.Record, meta *datagramMeta) {
	pconn := rec.Conn.(net.PacketConn)
	n, peerAddr, err := pconn.ReadFrom(meta.buf)
	if err != nil {
		if isWouldBlock(err) {
			return
		}
		log.Infof("server[%d]: datagram read on fd %d: %v", w.id, rec.Fd, err)
		return
	}
	if n < wire.HeaderSize {
		return
	}
	msg := meta.buf[:n]
	h, err := wire.SetBuf(msg[:wire.HeaderSize])
	if err != nil || !h.IsValidHeader(n) {
		return
	}

	replyTo := peerAddr
	if meta.replyAddr != nil && !w.cfg.ForceUnicastReply {
		replyTo = meta.replyAddr
	}
	out := make([]byte, n)
	copy(out, msg)
	w.handleMessage(out, rec.Fd, peerAddr.String(), func(reply []byte) error {
		_, err := pconn.WriteTo(reply, replyTo)
		return err
	})
}

func (w *workerState) readStream(rec *socket.Record, conn net.Conn) {
	slot := rec.Accumulator.RecvSlot()
	n, err := conn.Read(slot)
	if err != nil {
		if isWouldBlock(err) {
			return
		}
		if err == io.EOF || errors.Is(err, syscall.ECONNRESET) {
			w.closeStream(rec.Fd)
			return
		}
		log.Infof("server[%d]: stream read on fd %d: %v", w.id, rec.Fd, err)
		return
	}
	if n == 0 {
		w.closeStream(rec.Fd)
		return
	}
	rec.Accumulator.Feed(n)
}

func (w *workerState) handleStreamMessage(conn net.Conn, msg []byte) {
	w.handleMessage(msg, fdOfConn(conn), conn.RemoteAddr().String(), func(out []byte) error {
		return sendAll(conn, out)
	})
}

// handleMessage implements the per-message half of ServerCore: CLIENT-flag
// filtering, gap detection, and reply routing, shared by the datagram and
// stream read paths.
func (w *workerState) handleMessage(msg []byte, fd int, peerKey string, reply func([]byte) error) {
	w.counters.ReceiveCount++

	h, err := wire.SetBuf(msg[:wire.HeaderSize])
	if err != nil {
		return
	}
	h.ToHost()

	if !h.IsClient() && !w.cfg.AcceptNonClient {
		return
	}

	if w.cfg.GapDetection {
		w.checkGap(fd, peerKey, h.Sequence())
	}

	if !h.IsPongRequest() || w.cfg.DontReply {
		return
	}

	if !w.cfg.BridgeMode {
		h.SetServer()
	}
	h.ToNetwork()
	if err := reply(msg); err != nil {
		log.Infof("server[%d]: reply send: %v", w.id, err)
	}
}

// checkGap implements the server's per-peer gap detection: a sequence equal
// to the expected cursor advances it by one; a sequence ahead of it counts
// the skipped run as dropped and resyncs; a sequence behind it is
// out-of-order. First contact from a peer seeds the cursor without judging
// a gap, since there is no prior expectation to compare against.
func (w *workerState) checkGap(fd int, peerKey string, seq uint64) {
	cursors, ok := w.gapCursors[fd]
	if !ok {
		cursors = make(map[string]uint64)
		w.gapCursors[fd] = cursors
	}
	expected, seen := cursors[peerKey]
	switch {
	case !seen:
		cursors[peerKey] = seq + 1
	case seq == expected:
		cursors[peerKey] = expected + 1
	case seq > expected:
		w.counters.IncDropped(0, seq-expected)
		cursors[peerKey] = seq + 1
	default:
		w.counters.IncOutOfOrder(0, 1)
	}
}

func (w *workerState) closeStream(fd int) {
	if err := w.registry.Deregister(fd); err != nil {
		log.Infof("server[%d]: deregister fd %d: %v", w.id, fd, err)
	}
	_ = w.mux.Remove(fd)
	delete(w.conns, fd)
}

func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

func sendAll(conn net.Conn, buf []byte) error {
	for len(buf) > 0 {
		n, err := conn.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func fdOfConn(conn net.Conn) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}
	var fd int
	_ = raw.Control(func(f uintptr) { fd = int(f) })
	return fd
}
