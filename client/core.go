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
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/facebook/netprobe/addr"
	"github.com/facebook/netprobe/clock"
	"github.com/facebook/netprobe/iomux"
	"github.com/facebook/netprobe/neterr"
	"github.com/facebook/netprobe/pacer"
	"github.com/facebook/netprobe/packettimes"
	"github.com/facebook/netprobe/socket"
	"github.com/facebook/netprobe/stats"
	"github.com/facebook/netprobe/wire"
	log "github.com/sirupsen/logrus"
)

// fdMeta holds the per-fd state a client socket needs beyond socket.Record:
// whether it is connected (unicast target) or unconnected (multicast,
// reads via ReadFrom to observe the actual replying peer), and the
// resolved destination to send to.
type fdMeta struct {
	conn      net.Conn       // non-nil: connected, Write/Read implicitly use the dialed peer
	pconn     net.PacketConn // non-nil: unconnected, used for multicast sends/receives
	dialedTo  net.Addr
	multicast bool
	stream    bool
}

// Core runs ClientCore: the send/receive pacing loop described by
// spec.md §4.8, dispatching to one of three pacing models selected by
// Config.Mode.
type Core struct {
	cfg      Config
	registry *socket.Registry
	mux      iomux.Multiplexer
	times    *packettimes.PacketTimes
	Counters *stats.Counters
	RTT      *stats.RTTStats
	corr     *correlator

	filterLen int
	filters   map[int]*packettimes.PathDelayFilter

	meta map[int]*fdMeta

	nextSeq  uint64
	sent     uint64
	exitFlag int32

	cursorFd int // last fd handed out by nextClientFd; -1 before the first call
}

// NewCore builds a Core ready to Prepare/Run. wire.Init must already have
// been called (by the owning cmd/ main) with the session's agreed
// MaxPayload and MaxSeq, since PacketTimes and the accumulators it sizes
// are derived from that global sizing.
func NewCore(cfg Config) *Core {
	numServers := cfg.NumServers
	if numServers < 1 {
		numServers = 1
	}
	replyEvery := cfg.ReplyEvery
	if replyEvery == 0 {
		replyEvery = 1
	}
	maxSeq := cfg.MaxSeq
	if maxSeq == 0 {
		maxSeq = wire.MaxSequenceNo()
	}
	filterLen := cfg.RTTFilterLength
	if filterLen <= 0 {
		filterLen = defaultRTTFilterLength
	}
	return &Core{
		cfg:       cfg,
		registry:  socket.NewRegistry(),
		times:     packettimes.New(maxSeq, replyEvery, numServers),
		Counters:  stats.NewCounters(),
		RTT:       stats.NewRTTStats(),
		corr:      newCorrelator(numServers),
		filterLen: filterLen,
		filters:   make(map[int]*packettimes.PathDelayFilter),
		meta:      make(map[int]*fdMeta),
		cursorFd:  -1,
	}
}

// defaultRTTFilterLength mirrors sptp/client's own default path-delay
// filter window when Config.RTTFilterLength is left at zero.
const defaultRTTFilterLength = 59

// RTTFilter returns the sliding-window RTT filter for serverIx, creating it
// on first contact. Exposed so the stats-reporting collaborator can read a
// smoothed mean/median alongside the running welford stats in RTT.
func (c *Core) RTTFilter(serverIx int) *packettimes.PathDelayFilter {
	f, ok := c.filters[serverIx]
	if !ok {
		f = packettimes.NewPathDelayFilter(c.filterLen)
		c.filters[serverIx] = f
	}
	return f
}

// Times exposes the PacketTimes a completed run populated, for the
// statistics-printing external collaborator to read.
func (c *Core) Times() *packettimes.PacketTimes { return c.times }

// Prepare resolves and dials every configured target, registering each fd
// with the registry and multiplexer. It returns once every target is ready;
// Run (or Serve) starts the pacing loop afterward.
func (c *Core) Prepare() error {
	mux, err := iomux.New(c.cfg.Mux)
	if err != nil {
		return neterr.New("client", neterr.Fatal, err)
	}
	c.mux = mux

	for _, target := range c.cfg.Targets {
		if err := c.dial(target); err != nil {
			return err
		}
	}
	if c.registry.Len() == 0 {
		return neterr.Wrapf("client", neterr.BadArgument, "no targets configured")
	}
	return nil
}

func (c *Core) dial(entry addr.FeedEntry) error {
	if entry.Target.IsMulticast() && entry.Type == addr.SockDatagram {
		return c.dialMulticast(entry)
	}
	return c.dialUnicast(entry)
}

func (c *Core) dialUnicast(entry addr.FeedEntry) error {
	network, address := dialNetwork(entry)
	conn, err := net.Dial(network, address)
	if err != nil {
		return neterr.New("client", neterr.Socket, fmt.Errorf("dial %s %s: %w", network, address, err))
	}

	stream := entry.Type == addr.SockStream
	var onMessage func([]byte)
	var onBadHeader func()
	if stream {
		onMessage = func(msg []byte) { c.onReply(entry.Target.String(), msg) }
		onBadHeader = func() { log.Debugf("client: bad header from %s, resyncing", entry.Target) }
	}

	rec, err := c.registry.Register(conn.(syscall.Conn), entry.Target, entry.Type, false, c.cfg.MaxPayload, c.cfg.MsgSize, c.cfg.SocketOpts, onMessage, onBadHeader)
	if err != nil {
		conn.Close()
		return err
	}
	c.meta[rec.Fd] = &fdMeta{conn: conn, dialedTo: conn.RemoteAddr(), stream: stream}
	if err := c.mux.Add(rec.Fd); err != nil {
		return neterr.New("client", neterr.Socket, err)
	}
	return nil
}

// dialMulticast opens an unconnected datagram socket: sends go to the
// group via WriteTo, and reads use ReadFrom so the client can observe which
// distinct source address each reply actually came from, feeding the
// first-contact-wins server_ix correlator.
func (c *Core) dialMulticast(entry addr.FeedEntry) error {
	pconn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return neterr.New("client", neterr.Socket, fmt.Errorf("listen for multicast reply: %w", err))
	}

	rec, err := c.registry.Register(pconn, entry.Target, entry.Type, false, c.cfg.MaxPayload, c.cfg.MsgSize, c.cfg.SocketOpts, nil, nil)
	if err != nil {
		pconn.Close()
		return err
	}
	dst := entry.Target.UDPAddr()
	c.meta[rec.Fd] = &fdMeta{pconn: pconn, dialedTo: dst, multicast: true}
	if err := c.mux.Add(rec.Fd); err != nil {
		return neterr.New("client", neterr.Socket, err)
	}
	return nil
}

func dialNetwork(entry addr.FeedEntry) (network, address string) {
	switch entry.Target.Family {
	case addr.FamilyUnix:
		if entry.Type == addr.SockStream {
			return "unix", entry.Target.Path
		}
		return "unixgram", entry.Target.Path
	default:
		if entry.Type == addr.SockStream {
			return "tcp", entry.Target.String()
		}
		return "udp", entry.Target.String()
	}
}

// Run calls Prepare unless it has already been called, then runs the
// pacing loop selected by Config.Mode.
func (c *Core) Run(ctx context.Context) error {
	if c.mux == nil {
		if err := c.Prepare(); err != nil {
			return err
		}
	}
	return c.Serve(ctx)
}

// Serve drives the pacing loop selected by Config.Mode until termination.
// Prepare must have been called first.
func (c *Core) Serve(ctx context.Context) error {
	defer c.mux.Close()
	switch c.cfg.Mode {
	case ModePingPong:
		return c.runPingPong(ctx)
	case ModePlayback:
		return c.runPlayback(ctx)
	default:
		return c.runUnderLoad(ctx)
	}
}

// Stop sets the shared exit flag a SIGINT-equivalent handler uses; every
// loop re-checks it once per cycle.
func (c *Core) Stop() { pacer.SetExit(&c.exitFlag) }

// allocSeq returns the next monotonically increasing sequence number. A
// sequence number is used exactly once per client run, per spec.md §3.
func (c *Core) allocSeq() uint64 {
	c.nextSeq++
	return c.nextSeq
}

// nextClientFd advances the round-robin cursor through the registry's
// next_fd ring, for O(1) fan-out across destination fds.
func (c *Core) nextClientFd() int {
	if c.cursorFd < 0 {
		fds := c.registry.Fds()
		c.cursorFd = fds[0]
		return c.cursorFd
	}
	if next, ok := c.registry.Next(c.cursorFd); ok {
		c.cursorFd = next.Fd
	}
	return c.cursorFd
}

// sendOne builds and sends one probe message of size msgSize on fd, at
// sequence seq. pongRequest and warmup control the two header bits the
// client is responsible for setting; a send that would record a timing
// slot (pongRequest && !warmup) does so before the send, per the
// happens-before ordering spec.md §5 requires.
func (c *Core) sendOne(fd int, seq uint64, msgSize int, pongRequest, warmup bool) {
	buf := make([]byte, msgSize)
	wire.FillPayload(buf)
	h, err := wire.SetBuf(buf)
	if err != nil {
		return
	}
	h.SetSequence(seq)
	h.SetClient()
	if pongRequest {
		h.SetPong()
	}
	if warmup {
		h.SetWarmup()
	}
	if pongRequest && !warmup {
		c.times.SetTxTime(seq)
	}
	h.ToNetwork()

	meta, ok := c.meta[fd]
	if !ok {
		return
	}
	var n int
	if meta.conn != nil {
		n, err = meta.conn.Write(buf)
	} else {
		n, err = meta.pconn.WriteTo(buf, meta.dialedTo)
	}
	if err != nil {
		c.handleSendError(fd, seq, pongRequest, warmup, err)
		return
	}
	if n != msgSize {
		log.Debugf("client: short send on fd %d: %d of %d bytes", fd, n, msgSize)
	}
}

// handleSendError implements the steady-state send error policy from
// spec.md §7: EAGAIN/WOULDBLOCK skips this send; EPIPE/ECONNRESET shuts the
// fd down; anything else is logged and the run continues on the surviving
// fds.
func (c *Core) handleSendError(fd int, seq uint64, pongRequest, warmup bool, err error) {
	if isWouldBlock(err) {
		c.Counters.SkipCount++
		if pongRequest && !warmup {
			c.times.ClearTxTime(seq)
		}
		return
	}
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		c.closeFd(fd)
		return
	}
	log.Infof("client: send on fd %d: %v", fd, err)
}

// drainReplies polls the multiplexer once (timeoutMsec bounds the wait) and
// processes every ready fd's incoming bytes, never blocking the caller's
// pacing loop longer than that bound.
func (c *Core) drainReplies(timeoutMsec int) {
	ready, err := c.mux.Wait(timeoutMsec)
	if err != nil {
		log.Errorf("client: multiplexer wait: %v", err)
		return
	}
	for _, fd := range ready {
		c.readOne(fd)
	}
}

func (c *Core) readOne(fd int) {
	rec, ok := c.registry.Get(fd)
	if !ok {
		return
	}
	meta, ok := c.meta[fd]
	if !ok {
		return
	}
	if meta.stream {
		c.readStream(rec, meta)
		return
	}
	if meta.multicast {
		c.readMulticast(rec, meta)
		return
	}
	c.readConnectedDatagram(rec, meta)
}

func (c *Core) readStream(rec *socket.Record, meta *fdMeta) {
	slot := rec.Accumulator.RecvSlot()
	n, err := meta.conn.Read(slot)
	if err != nil {
		if isWouldBlock(err) {
			return
		}
		if err == io.EOF || errors.Is(err, syscall.ECONNRESET) {
			c.closeFd(rec.Fd)
			return
		}
		log.Infof("client: stream read on fd %d: %v", rec.Fd, err)
		return
	}
	if n == 0 {
		c.closeFd(rec.Fd)
		return
	}
	rec.Accumulator.Feed(n)
}

func (c *Core) readConnectedDatagram(rec *socket.Record, meta *fdMeta) {
	buf := make([]byte, c.cfg.MaxPayload)
	n, err := meta.conn.Read(buf)
	if err != nil {
		if isWouldBlock(err) {
			return
		}
		log.Infof("client: datagram read on fd %d: %v", rec.Fd, err)
		return
	}
	c.onReply(meta.dialedTo.String(), buf[:n])
}

func (c *Core) readMulticast(rec *socket.Record, meta *fdMeta) {
	buf := make([]byte, c.cfg.MaxPayload)
	n, peer, err := meta.pconn.ReadFrom(buf)
	if err != nil {
		if isWouldBlock(err) {
			return
		}
		log.Infof("client: multicast read on fd %d: %v", rec.Fd, err)
		return
	}
	c.onReply(peer.String(), buf[:n])
}

// onReply implements ClientCore.on_reply: parse the header, assign/resolve
// the replying peer's server_ix, and record the rx-time. Malformed or
// too-short replies are silently discarded, mirroring the server's
// bad-header handling.
func (c *Core) onReply(peerKey string, msg []byte) {
	if len(msg) < wire.HeaderSize {
		return
	}
	h, err := wire.SetBuf(msg[:wire.HeaderSize])
	if err != nil {
		return
	}
	h.ToHost()
	if !h.IsValidHeader(len(msg)) {
		return
	}
	seq := h.Sequence()
	serverIx := c.corr.indexFor(peerKey)
	now := clock.Now()
	if tx := c.times.TxTime(seq); !tx.IsZero() {
		rttNsec := float64(now.Sub(tx).ToNsec())
		c.RTT.Add(serverIx, rttNsec)
		c.RTTFilter(serverIx).Add(rttNsec)
	}
	c.times.SetRxTime(seq, serverIx, now)
}

func (c *Core) closeFd(fd int) {
	_ = c.mux.Remove(fd)
	if meta, ok := c.meta[fd]; ok {
		if meta.conn != nil {
			meta.conn.Close()
		}
		if meta.pconn != nil {
			meta.pconn.Close()
		}
		delete(c.meta, fd)
	}
	_ = c.registry.Deregister(fd)
}

func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}
