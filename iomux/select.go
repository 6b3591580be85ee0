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
	"time"

	"golang.org/x/sys/unix"
)

type selectMux struct {
	fds []int
}

func newSelectMux() *selectMux {
	return &selectMux{}
}

func (m *selectMux) Add(fd int) error {
	for _, existing := range m.fds {
		if existing == fd {
			return nil
		}
	}
	m.fds = append(m.fds, fd)
	return nil
}

func (m *selectMux) Remove(fd int) error {
	for i, existing := range m.fds {
		if existing == fd {
			m.fds = append(m.fds[:i], m.fds[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *selectMux) Wait(timeoutMsec int) ([]int, error) {
	if len(m.fds) == 0 {
		if timeoutMsec > 0 {
			time.Sleep(time.Duration(timeoutMsec) * time.Millisecond)
		}
		return nil, nil
	}

	var set unix.FdSet
	maxFd := 0
	for _, fd := range m.fds {
		fdSetBit(&set, fd)
		if fd > maxFd {
			maxFd = fd
		}
	}

	var tv *unix.Timeval
	if timeoutMsec >= 0 {
		t := unix.NsecToTimeval(int64(timeoutMsec) * int64(time.Millisecond))
		tv = &t
	}

	n, err := unix.Select(maxFd+1, &set, nil, nil, tv)
	if err != nil {
		if isEINTR(err) {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	ready := make([]int, 0, n)
	for _, fd := range m.fds {
		if fdIsSet(&set, fd) {
			ready = append(ready, fd)
		}
	}
	return ready, nil
}

func (m *selectMux) Close() error { return nil }

func fdSetBit(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}
