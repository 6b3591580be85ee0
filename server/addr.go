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
	"fmt"
	"net"
	"net/netip"

	"github.com/facebook/netprobe/addr"
)

// peerAddressOf converts the remote net.Addr of an accepted TCP or
// UNIX-stream connection into this module's family-tagged addr.Address,
// recorded as the registered socket's peer. Other address types, including
// the *net.UDPAddr that ReadFrom returns, are rejected.
func peerAddressOf(a net.Addr) (addr.Address, error) {
	switch v := a.(type) {
	case *net.TCPAddr:
		ip, ok := netip.AddrFromSlice(v.IP.To16())
		if !ok {
			return addr.Address{}, fmt.Errorf("server: could not convert peer IP %v", v.IP)
		}
		family := addr.FamilyIPv6
		if v.IP.To4() != nil {
			family = addr.FamilyIPv4
			ip = ip.Unmap()
		}
		return addr.Address{Family: family, IP: ip, Port: v.Port}, nil
	case *net.UnixAddr:
		return addr.Address{Family: addr.FamilyUnix, Path: v.Name}, nil
	default:
		return addr.Address{}, fmt.Errorf("server: unsupported peer address type %T", a)
	}
}
