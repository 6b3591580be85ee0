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

package iomux

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// epollMux backs both KindEpoll and KindExtreme: the spec treats "extreme
// dispatch" as contract-identical to a reader-only multiplexer, so it reuses
// this implementation rather than duplicating it.
type epollMux struct {
	epfd int
}

func newEpollMux() (*epollMux, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("iomux: epoll_create1: %w", err)
	}
	return &epollMux{epfd: fd}, nil
}

func (m *epollMux) Add(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("iomux: epoll_ctl add %d: %w", fd, err)
	}
	return nil
}

func (m *epollMux) Remove(fd int) error {
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("iomux: epoll_ctl del %d: %w", fd, err)
	}
	return nil
}

func (m *epollMux) Wait(timeoutMsec int) ([]int, error) {
	events := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(m.epfd, events, timeoutMsec)
	if err != nil {
		if isEINTR(err) {
			return nil, nil
		}
		return nil, err
	}
	ready := make([]int, n)
	for i := 0; i < n; i++ {
		ready[i] = int(events[i].Fd)
	}
	return ready, nil
}

func (m *epollMux) Close() error {
	return unix.Close(m.epfd)
}
