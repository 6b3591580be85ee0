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

// Package addr implements the family-agnostic address model: IPv4, IPv6,
// and UNIX-domain values behind one type, hostname/feedfile resolution,
// multicast classification and group membership, and the socket knobs
// (reuseaddr, TOS, TTL) that depend on address family.
package addr

import (
	"fmt"
	"net"
	"net/netip"
	"runtime"
	"strconv"
	"strings"
)

// Family tags which of the three address kinds a value holds.
type Family int

const (
	// FamilyIPv4 is a dotted-quad or resolved-to-v4 hostname address.
	FamilyIPv4 Family = iota
	// FamilyIPv6 is a bracketed-literal or resolved-to-v6 hostname address.
	FamilyIPv6
	// FamilyUnix is a filesystem path (POSIX) or drive-letter path (Windows).
	FamilyUnix
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	case FamilyUnix:
		return "unix"
	default:
		return "unknown"
	}
}

// SockType distinguishes datagram and stream transports, independent of
// family: UDP/unixgram are SockDatagram, TCP/unix stream are SockStream.
type SockType int

const (
	SockDatagram SockType = iota
	SockStream
)

// Address is the family-tagged value used everywhere a peer or listen
// address is needed. Equality ignores representation padding: two Address
// values for the same IP and port compare equal regardless of how the IP
// was parsed (Go's netip.Addr already guarantees this).
type Address struct {
	Family Family
	IP     netip.Addr // zero value for FamilyUnix
	Path   string     // empty for FamilyIPv4/FamilyIPv6
	Port   int        // host-order; callers needing wire bytes use binary.BigEndian on Port
}

// IsMulticast reports whether the address is a multicast group. UNIX-domain
// addresses are never multicast.
func (a Address) IsMulticast() bool {
	switch a.Family {
	case FamilyIPv4, FamilyIPv6:
		return a.IP.IsMulticast()
	default:
		return false
	}
}

// Equal reports value equality, ignoring representation padding.
func (a Address) Equal(b Address) bool {
	if a.Family != b.Family {
		return false
	}
	if a.Family == FamilyUnix {
		return a.Path == b.Path
	}
	return a.IP == b.IP && a.Port == b.Port
}

func (a Address) String() string {
	switch a.Family {
	case FamilyUnix:
		return a.Path
	default:
		return net.JoinHostPort(a.IP.String(), strconv.Itoa(a.Port))
	}
}

// UDPAddr converts to the standard library's representation, for handing to
// net.ListenUDP/net.DialUDP.
func (a Address) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IP(a.IP.AsSlice()), Port: a.Port}
}

// TCPAddr converts to the standard library's representation.
func (a Address) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: net.IP(a.IP.AsSlice()), Port: a.Port}
}

// UnixAddr converts to the standard library's representation.
func (a Address) UnixAddr(network string) *net.UnixAddr {
	return &net.UnixAddr{Name: a.Path, Net: network}
}

// isUnixPath recognizes a UNIX-domain path per the platform-specific rule:
// an absolute path on POSIX, or a drive-letter path on Windows. It takes
// precedence over hostname/IP resolution.
func isUnixPath(s string) bool {
	if runtime.GOOS == "windows" {
		return len(s) >= 3 && s[1] == ':' && (s[2] == '\\' || s[2] == '/')
	}
	return strings.HasPrefix(s, "/")
}

// Resolve turns a feedfile-style "host_or_path" plus a numeric port into an
// Address. UNIX-domain paths are recognized first; otherwise the string is
// treated as a bracketed IPv6 literal, a dotted-quad IPv4 literal, or a
// hostname to resolve via the OS resolver, preferring IPv6 when both
// families are available (the getaddrinfo AI_ADDRCONFIG + "prefer v6"
// convention).
func Resolve(hostOrPath string, port int) (Address, error) {
	if isUnixPath(hostOrPath) {
		return Address{Family: FamilyUnix, Path: hostOrPath}, nil
	}

	host := strings.TrimPrefix(strings.TrimSuffix(hostOrPath, "]"), "[")
	if ip, err := netip.ParseAddr(host); err == nil {
		return addressFromIP(ip, port), nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return Address{}, fmt.Errorf("addr: resolving %q: %w", hostOrPath, err)
	}
	if len(ips) == 0 {
		return Address{}, fmt.Errorf("addr: %q resolved to no addresses", hostOrPath)
	}

	best := ips[0]
	for _, candidate := range ips {
		if candidate.To4() == nil { // an IPv6 result; prefer it
			best = candidate
			break
		}
	}
	ip, ok := netip.AddrFromSlice(best)
	if !ok {
		return Address{}, fmt.Errorf("addr: could not convert resolved IP %v", best)
	}
	return addressFromIP(ip.Unmap(), port), nil
}

func addressFromIP(ip netip.Addr, port int) Address {
	if ip.Is4() || ip.Is4In6() {
		return Address{Family: FamilyIPv4, IP: ip.Unmap(), Port: port}
	}
	return Address{Family: FamilyIPv6, IP: ip, Port: port}
}
