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

package addr

import (
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// MulticastMembership describes one joined group, with an optional
// source-specific filter (SSM) and the interface it was joined on.
type MulticastMembership struct {
	Group  netip.Addr
	Source netip.Addr // zero value means any-source
	Iface  *net.Interface
}

// JoinMulticast joins group on conn via the interface named ifaceName (or
// the system default if empty). If source is non-zero, it joins the
// source-specific group instead of the any-source group: IPv4 uses
// IP_ADD_SOURCE_MEMBERSHIP, IPv6 has no SSM join exposed by the ipv6
// package, so a source-specific request on an IPv6 group is rejected.
// Multicast loopback is disabled by default, matching the external
// interface contract.
func JoinMulticast(conn net.PacketConn, group netip.Addr, source netip.Addr, ifaceName string) (*MulticastMembership, error) {
	if !group.IsMulticast() {
		return nil, fmt.Errorf("addr: %s is not a multicast address", group)
	}

	var ifi *net.Interface
	if ifaceName != "" {
		var err error
		ifi, err = net.InterfaceByName(ifaceName)
		if err != nil {
			return nil, fmt.Errorf("addr: interface %s: %w", ifaceName, err)
		}
	}

	if group.Is4() {
		p := ipv4.NewPacketConn(conn)
		groupAddr := &net.UDPAddr{IP: net.IP(group.AsSlice())}
		if source.IsValid() && !source.IsUnspecified() {
			if err := p.JoinSourceSpecificGroup(ifi, groupAddr, &net.UDPAddr{IP: net.IP(source.AsSlice())}); err != nil {
				return nil, fmt.Errorf("addr: join source-specific group %s from %s: %w", group, source, err)
			}
		} else {
			if err := p.JoinGroup(ifi, groupAddr); err != nil {
				return nil, fmt.Errorf("addr: join group %s: %w", group, err)
			}
		}
		if err := p.SetMulticastLoopback(false); err != nil {
			return nil, fmt.Errorf("addr: disable multicast loopback: %w", err)
		}
		return &MulticastMembership{Group: group, Source: source, Iface: ifi}, nil
	}

	if source.IsValid() && !source.IsUnspecified() {
		return nil, fmt.Errorf("addr: source-specific IPv6 multicast join is not supported")
	}
	p := ipv6.NewPacketConn(conn)
	if err := p.JoinGroup(ifi, &net.UDPAddr{IP: net.IP(group.AsSlice())}); err != nil {
		return nil, fmt.Errorf("addr: join group %s: %w", group, err)
	}
	if err := p.SetMulticastLoopback(false); err != nil {
		return nil, fmt.Errorf("addr: disable multicast loopback: %w", err)
	}
	return &MulticastMembership{Group: group, Iface: ifi}, nil
}

// LeaveMulticast reverses a prior JoinMulticast.
func LeaveMulticast(conn net.PacketConn, m *MulticastMembership) error {
	groupAddr := &net.UDPAddr{IP: net.IP(m.Group.AsSlice())}
	if m.Group.Is4() {
		p := ipv4.NewPacketConn(conn)
		if m.Source.IsValid() && !m.Source.IsUnspecified() {
			return p.LeaveSourceSpecificGroup(m.Iface, groupAddr, &net.UDPAddr{IP: net.IP(m.Source.AsSlice())})
		}
		return p.LeaveGroup(m.Iface, groupAddr)
	}
	p := ipv6.NewPacketConn(conn)
	return p.LeaveGroup(m.Iface, groupAddr)
}

// SetMulticastTTL sets the outgoing TTL (IPv4) or hop limit (IPv6) for
// packets sent to a multicast destination.
func SetMulticastTTL(conn net.PacketConn, family Family, ttl int) error {
	switch family {
	case FamilyIPv4:
		return ipv4.NewPacketConn(conn).SetMulticastTTL(ttl)
	case FamilyIPv6:
		return ipv6.NewPacketConn(conn).SetMulticastHopLimit(ttl)
	default:
		return fmt.Errorf("addr: multicast TTL not applicable to %s", family)
	}
}

// SetMulticastInterface selects the interface used for transmitted
// multicast traffic (IP_MULTICAST_IF / IPV6_MULTICAST_IF).
func SetMulticastInterface(conn net.PacketConn, family Family, ifaceName string) error {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return fmt.Errorf("addr: interface %s: %w", ifaceName, err)
	}
	switch family {
	case FamilyIPv4:
		return ipv4.NewPacketConn(conn).SetMulticastInterface(ifi)
	case FamilyIPv6:
		return ipv6.NewPacketConn(conn).SetMulticastInterface(ifi)
	default:
		return fmt.Errorf("addr: multicast interface selection not applicable to %s", family)
	}
}
