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

// Package iomux provides one contract, "wait for readability on a set of
// file descriptors", over several back-ends: blocking direct-recv, select,
// poll, an epoll-equivalent, and a kernel "extreme dispatch" variant. The
// multiplexer never reads from a socket itself; it only reports readiness.
// The back-end is chosen once at startup (New) and dispatched through a
// single interface call per loop iteration, never re-selected mid-run.
package iomux

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind names a multiplexer back-end.
type Kind int

const (
	// KindBlocking treats every registered fd as always worth trying: Wait
	// returns the whole registered set immediately, and the caller is
	// expected to attempt a blocking or non-blocking recv and treat EAGAIN
	// as "this one wasn't actually ready". It exists for parity with a
	// direct blocking-recvfrom back-end that performs no readiness check at
	// all.
	KindBlocking Kind = iota
	// KindSelect uses select(2) via golang.org/x/sys/unix.
	KindSelect
	// KindPoll uses poll(2).
	KindPoll
	// KindEpoll uses the epoll(7) family of syscalls.
	KindEpoll
	// KindExtreme models a kernel zero-copy "extreme dispatch" back-end
	// that receives readiness plus the first packet in one syscall; its
	// *readiness* contract is identical to a reader-only multiplexer, so it
	// is implemented as the epoll back-end with a distinct Kind tag.
	KindExtreme
)

func (k Kind) String() string {
	switch k {
	case KindBlocking:
		return "blocking"
	case KindSelect:
		return "select"
	case KindPoll:
		return "poll"
	case KindEpoll:
		return "epoll"
	case KindExtreme:
		return "extreme"
	default:
		return "unknown"
	}
}

// Timeout semantics, shared by every back-end: zero returns immediately
// after one poll; negative blocks indefinitely; positive is a cooperative
// upper bound in milliseconds.
const (
	NoWait     = 0
	Indefinite = -1
)

// Multiplexer waits for readability across a registered set of descriptors.
type Multiplexer interface {
	// Add registers fd for readiness reporting.
	Add(fd int) error
	// Remove deregisters fd.
	Remove(fd int) error
	// Wait blocks up to timeoutMsec (Indefinite to block forever, NoWait to
	// poll once) and returns the subset of registered fds that are
	// readable. EINTR is reported as "no readiness": an empty slice, nil
	// error; the caller re-enters its loop.
	Wait(timeoutMsec int) ([]int, error)
	// Close releases any backing OS resources (e.g. an epoll fd).
	Close() error
}

// New constructs a Multiplexer for the given back-end.
func New(kind Kind) (Multiplexer, error) {
	switch kind {
	case KindBlocking:
		return newBlockingMux(), nil
	case KindSelect:
		return newSelectMux(), nil
	case KindPoll:
		return newPollMux(), nil
	case KindEpoll, KindExtreme:
		return newEpollMux()
	default:
		return nil, fmt.Errorf("iomux: unknown backend %v", kind)
	}
}

// isEINTR reports whether err is EINTR, the one error every back-end treats
// as "no readiness" rather than a fatal multiplexer error.
func isEINTR(err error) bool {
	return errors.Is(err, unix.EINTR)
}
