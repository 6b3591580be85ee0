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

import "golang.org/x/sys/unix"

type pollMux struct {
	fds []int
}

func newPollMux() *pollMux {
	return &pollMux{}
}

func (m *pollMux) Add(fd int) error {
	for _, existing := range m.fds {
		if existing == fd {
			return nil
		}
	}
	m.fds = append(m.fds, fd)
	return nil
}

func (m *pollMux) Remove(fd int) error {
	for i, existing := range m.fds {
		if existing == fd {
			m.fds = append(m.fds[:i], m.fds[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *pollMux) Wait(timeoutMsec int) ([]int, error) {
	if len(m.fds) == 0 {
		return nil, nil
	}
	pollFds := make([]unix.PollFd, len(m.fds))
	for i, fd := range m.fds {
		pollFds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	}

	n, err := unix.Poll(pollFds, timeoutMsec)
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
	for _, pfd := range pollFds {
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			ready = append(ready, int(pfd.Fd))
		}
	}
	return ready, nil
}

func (m *pollMux) Close() error { return nil }
