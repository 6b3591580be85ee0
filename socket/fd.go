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
	"syscall"
)

// fdOf extracts the raw file descriptor backing any net.Conn/net.PacketConn
// that exposes SyscallConn, generalizing timestamp.ConnFd beyond *net.UDPConn
// so the registry can apply socket knobs uniformly across UDP, TCP, and
// UNIX-domain sockets.
func fdOf(conn syscall.Conn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("socket: SyscallConn: %w", err)
	}
	var fd int
	var ctrlErr error
	err = raw.Control(func(f uintptr) {
		fd = int(f)
	})
	if err != nil {
		return -1, fmt.Errorf("socket: Control: %w", err)
	}
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	return fd, nil
}
