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

package socket

import (
	"fmt"

	"github.com/facebook/netprobe/addr"
	"golang.org/x/sys/unix"
)

// applyOptions applies every requested knob to fd best-effort in the sense
// that each is attempted independently, but any single failure aborts
// registration: a socket whose requested TOS or buffer size could not be
// honored must not silently run with different characteristics than asked.
func applyOptions(fd int, family addr.Family, opts Options) error {
	if opts.NonBlocking {
		if err := unix.SetNonblock(fd, true); err != nil {
			return fmt.Errorf("socket: set non-blocking: %w", err)
		}
	}
	if opts.ReuseAddr {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return fmt.Errorf("socket: set SO_REUSEADDR: %w", err)
		}
	}
	if opts.SendBufferBytes > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBufferBytes); err != nil {
			return fmt.Errorf("socket: set SO_SNDBUF: %w", err)
		}
	}
	if opts.RecvBufferBytes > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, opts.RecvBufferBytes); err != nil {
			return fmt.Errorf("socket: set SO_RCVBUF: %w", err)
		}
	}
	if opts.TCPNoDelay {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			return fmt.Errorf("socket: set TCP_NODELAY: %w", err)
		}
	}
	if opts.TOS != 0 {
		if err := setTOS(fd, family, opts.TOS); err != nil {
			return err
		}
	}
	if opts.LLSPollUsec > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BUSY_POLL, opts.LLSPollUsec); err != nil {
			return fmt.Errorf("socket: set SO_BUSY_POLL: %w", err)
		}
	}
	return nil
}

// setTOS sets the IP_TOS (v4) or IPV6_TCLASS (v6) socket option, the
// generalization of sptp/client's enableDSCP to an arbitrary TOS byte
// rather than a DSCP codepoint specifically.
func setTOS(fd int, family addr.Family, tos int) error {
	switch family {
	case addr.FamilyIPv4:
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TOS, tos); err != nil {
			return fmt.Errorf("socket: set IP_TOS: %w", err)
		}
	case addr.FamilyIPv6:
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_TCLASS, tos); err != nil {
			return fmt.Errorf("socket: set IPV6_TCLASS: %w", err)
		}
	default:
		return fmt.Errorf("socket: TOS not applicable to %s", family)
	}
	return nil
}
