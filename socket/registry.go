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

// Package socket maintains the fd-indexed registry of live sockets: peer
// address, type, multicast memberships, and the receive accumulator each fd
// owns, linked into a circular next_fd list for O(1) round-robin.
package socket

import (
	"os"
	"strconv"
	"syscall"

	"github.com/facebook/netprobe/addr"
	"github.com/facebook/netprobe/framing"
	"github.com/facebook/netprobe/neterr"
)

// Record is one registered socket's state. The registry exclusively owns
// Record lifetime; nothing outside this package mutates nextFd.
type Record struct {
	Fd       int
	Conn     syscall.Conn
	Peer     addr.Address
	Type     addr.SockType
	IsServer bool // true for a listening/bound server-side socket

	// Listening marks a stream socket that is a TCP/UNIX-stream listener:
	// readiness on it means "acceptable", not "has a message to frame".
	Listening bool

	Memberships []*addr.MulticastMembership

	Accumulator *framing.InPlaceAccumulator

	// ExpectedSeq is an optional per-fd gap-detection cursor. Nothing in
	// this module sets it; the server core keeps its gap cursors per worker.
	ExpectedSeq *uint64

	// unixPath is set for UNIX-domain sockets this registry is responsible
	// for unlinking at deregistration time.
	unixPath string

	nextFd int // next live fd in the ring; the fd itself if it is the only one
}

// Registry is the fd -> Record map plus the circular next_fd list over all
// live descriptors. It is mutated only at setup and teardown; steady-state
// reads are unsynchronized, matching the single-threaded-per-worker
// concurrency model.
type Registry struct {
	records map[int]*Record
	ring    []int // insertion-order fds, kept in step with the next_fd links
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[int]*Record)}
}

// Register adds fd to the registry, applying knobs best-effort and
// allocating its receive accumulator and, for the in-place strategy,
// linking it into the next_fd ring. maxPayload and msgSize size the
// accumulator per the session's agreed parameters.
func (r *Registry) Register(conn syscall.Conn, peer addr.Address, sockType addr.SockType, isServer bool, maxPayload, msgSize int, opts Options, onMessage framing.OnMessage, onBadHeader framing.OnBadHeader) (*Record, error) {
	fd, err := fdOf(conn)
	if err != nil {
		return nil, neterr.New("socket", neterr.Socket, err)
	}
	if _, exists := r.records[fd]; exists {
		return nil, neterr.Wrapf("socket", neterr.Fatal, "fd %d already registered", fd)
	}

	if err := applyOptions(fd, peer.Family, opts); err != nil {
		return nil, neterr.New("socket", neterr.Socket, err)
	}

	rec := &Record{
		Fd:          fd,
		Conn:        conn,
		Peer:        peer,
		Type:        sockType,
		IsServer:    isServer,
		Accumulator: framing.NewInPlaceAccumulator(maxPayload, msgSize, onMessage, onBadHeader),
		nextFd:      -1,
	}
	if peer.Family == addr.FamilyUnix && isServer {
		rec.unixPath = peer.Path
	}

	r.records[fd] = rec
	r.ring = append(r.ring, fd)
	r.relink()
	return rec, nil
}

// relink rebuilds the circular next_fd chain from the current ring slice.
// It runs only at registration/deregistration time, never in the steady
// state loop.
func (r *Registry) relink() {
	n := len(r.ring)
	for i, fd := range r.ring {
		next := r.ring[(i+1)%n]
		r.records[fd].nextFd = next
	}
}

// Get returns the Record for fd, if registered.
func (r *Registry) Get(fd int) (*Record, bool) {
	rec, ok := r.records[fd]
	return rec, ok
}

// Next follows the next_fd ring from fd, for O(1) client round-robin.
func (r *Registry) Next(fd int) (*Record, bool) {
	rec, ok := r.records[fd]
	if !ok || rec.nextFd < 0 {
		return nil, false
	}
	return r.records[rec.nextFd], true
}

// MarkListening flags fd as a listener, so the server core treats readiness
// on it as an accept event rather than a framing read.
func (r *Registry) MarkListening(fd int) {
	if rec, ok := r.records[fd]; ok {
		rec.Listening = true
	}
}

// Len reports how many fds are currently registered.
func (r *Registry) Len() int { return len(r.records) }

// Fds returns a snapshot of all registered fds, in registration order.
func (r *Registry) Fds() []int {
	out := make([]int, len(r.ring))
	copy(out, r.ring)
	return out
}

// Deregister unlinks fd from the ring, closes it, releases its memberships
// and, for UNIX-domain sockets this registry owns, unlinks the filesystem
// path.
func (r *Registry) Deregister(fd int) error {
	rec, ok := r.records[fd]
	if !ok {
		return nil
	}

	for i, candidate := range r.ring {
		if candidate == fd {
			r.ring = append(r.ring[:i], r.ring[i+1:]...)
			break
		}
	}
	r.relink()
	delete(r.records, fd)

	var closeErr error
	if closer, ok := rec.Conn.(interface{ Close() error }); ok {
		closeErr = closer.Close()
	}

	if rec.unixPath != "" {
		if err := os.Remove(rec.unixPath); err != nil && !os.IsNotExist(err) {
			return neterr.New("socket", neterr.Socket, err)
		}
	}
	if closeErr != nil {
		return neterr.New("socket", neterr.Socket, closeErr)
	}
	return nil
}

// UnixClientPath builds the per-(pid, fd) path a UNIX-domain datagram client
// binds to, so it can be unlinked on clean shutdown.
func UnixClientPath(dir string, fd int) string {
	return dir + "/netprobe-" + strconv.Itoa(os.Getpid()) + "-" + strconv.Itoa(fd) + ".sock"
}
