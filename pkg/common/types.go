// Package common provides the shared value types and checksum primitives
// used by every layer of the network core.
package common

import (
	"encoding/binary"
	"fmt"
	"net"
)

// MACAddress represents a 48-bit link-layer address.
type MACAddress [6]byte

// String returns the MAC address in standard format (e.g., "aa:bb:cc:dd:ee:ff").
func (m MACAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsBroadcast returns true if this is the broadcast address (FF:FF:FF:FF:FF:FF).
func (m MACAddress) IsBroadcast() bool {
	return m == BroadcastMAC
}

// IsZero returns true if every byte of the address is zero.
func (m MACAddress) IsZero() bool {
	return m == MACAddress{}
}

// ParseMAC parses a string MAC address (e.g., "aa:bb:cc:dd:ee:ff").
func ParseMAC(s string) (MACAddress, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MACAddress{}, err
	}
	if len(hw) != 6 {
		return MACAddress{}, fmt.Errorf("invalid MAC address length: %d", len(hw))
	}
	var mac MACAddress
	copy(mac[:], hw)
	return mac, nil
}

// BroadcastMAC is the all-ones broadcast MAC address.
var BroadcastMAC = MACAddress{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// IPv4Address represents a 32-bit IPv4 address in network byte order.
type IPv4Address [4]byte

// String returns the address in dotted decimal format (e.g., "10.0.0.5").
func (ip IPv4Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}

// ToUint32 returns the address as a host-order uint32.
func (ip IPv4Address) ToUint32() uint32 {
	return binary.BigEndian.Uint32(ip[:])
}

// IPv4FromUint32 converts a host-order uint32 to an IPv4 address.
func IPv4FromUint32(v uint32) IPv4Address {
	var ip IPv4Address
	binary.BigEndian.PutUint32(ip[:], v)
	return ip
}

// ParseIPv4 parses a dotted decimal IPv4 address.
func ParseIPv4(s string) (IPv4Address, error) {
	parsed := net.ParseIP(s)
	if parsed == nil {
		return IPv4Address{}, fmt.Errorf("invalid IP address: %s", s)
	}
	parsed = parsed.To4()
	if parsed == nil {
		return IPv4Address{}, fmt.Errorf("not an IPv4 address: %s", s)
	}
	var ip IPv4Address
	copy(ip[:], parsed)
	return ip, nil
}

// LoopbackIPv4 is the loopback address registered at stack initialization.
var LoopbackIPv4 = IPv4Address{127, 0, 0, 1}

// EtherType identifies the payload protocol of an Ethernet frame.
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
	EtherTypeIPv6 EtherType = 0x86DD
)

// String returns a human-readable name for the EtherType.
func (et EtherType) String() string {
	switch et {
	case EtherTypeIPv4:
		return "IPv4"
	case EtherTypeARP:
		return "ARP"
	case EtherTypeIPv6:
		return "IPv6"
	default:
		return fmt.Sprintf("Unknown(0x%04x)", uint16(et))
	}
}

// Protocol identifies the payload protocol of an IPv4 packet.
type Protocol uint8

const (
	ProtocolICMP Protocol = 1
	ProtocolTCP  Protocol = 6
	ProtocolUDP  Protocol = 17
)

// String returns a human-readable name for the protocol.
func (p Protocol) String() string {
	switch p {
	case ProtocolICMP:
		return "ICMP"
	case ProtocolTCP:
		return "TCP"
	case ProtocolUDP:
		return "UDP"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}
