// Package arp implements the Address Resolution Protocol for IPv4 over
// Ethernet: the 28-byte wire packet and the fixed-capacity resolution cache.
package arp

import (
	"encoding/binary"
	"fmt"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

// ARP packet format (RFC 826), Ethernet/IPv4 only:
//
// +----------------+----------------+
// | Hardware Type  | Protocol Type  |
// +-------+--------+----------------+
// | HWLen | PrLen  |   Operation    |
// +-------+--------+----------------+
// |  Sender MAC (6)                 |
// |  Sender IP  (4)                 |
// |  Target MAC (6)                 |
// |  Target IP  (4)                 |
// +---------------------------------+

const (
	// PacketSize is the size of an Ethernet/IPv4 ARP packet (28 bytes).
	PacketSize = 28

	// HardwareTypeEthernet is the hardware type for Ethernet.
	HardwareTypeEthernet = 1

	// ProtocolTypeIPv4 is the protocol type for IPv4 (same value as the EtherType).
	ProtocolTypeIPv4 = 0x0800
)

// Operation is the ARP operation code.
type Operation uint16

const (
	// OperationRequest asks who holds the target IP.
	OperationRequest Operation = 1

	// OperationReply answers a request with the sender's MAC.
	OperationReply Operation = 2
)

// String returns a human-readable name for the operation.
func (op Operation) String() string {
	switch op {
	case OperationRequest:
		return "Request"
	case OperationReply:
		return "Reply"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(op))
	}
}

// Packet represents an ARP packet.
type Packet struct {
	HardwareType   uint16
	ProtocolType   uint16
	HardwareLength uint8
	ProtocolLength uint8
	Operation      Operation
	SenderMAC      common.MACAddress
	SenderIP       common.IPv4Address
	TargetMAC      common.MACAddress
	TargetIP       common.IPv4Address
}

// Parse parses an ARP packet from raw bytes.
func Parse(data []byte) (*Packet, error) {
	if len(data) < PacketSize {
		return nil, fmt.Errorf("ARP packet too short: %d bytes (expected %d)", len(data), PacketSize)
	}

	p := &Packet{
		HardwareType:   binary.BigEndian.Uint16(data[0:2]),
		ProtocolType:   binary.BigEndian.Uint16(data[2:4]),
		HardwareLength: data[4],
		ProtocolLength: data[5],
		Operation:      Operation(binary.BigEndian.Uint16(data[6:8])),
	}

	if p.HardwareType != HardwareTypeEthernet {
		return nil, fmt.Errorf("unsupported hardware type: %d", p.HardwareType)
	}
	if p.ProtocolType != ProtocolTypeIPv4 {
		return nil, fmt.Errorf("unsupported protocol type: 0x%04x", p.ProtocolType)
	}
	if p.HardwareLength != 6 || p.ProtocolLength != 4 {
		return nil, fmt.Errorf("invalid address lengths: hw=%d proto=%d", p.HardwareLength, p.ProtocolLength)
	}

	copy(p.SenderMAC[:], data[8:14])
	copy(p.SenderIP[:], data[14:18])
	copy(p.TargetMAC[:], data[18:24])
	copy(p.TargetIP[:], data[24:28])

	return p, nil
}

// Serialize converts the ARP packet to bytes for transmission.
func (p *Packet) Serialize() []byte {
	data := make([]byte, PacketSize)

	binary.BigEndian.PutUint16(data[0:2], p.HardwareType)
	binary.BigEndian.PutUint16(data[2:4], p.ProtocolType)
	data[4] = p.HardwareLength
	data[5] = p.ProtocolLength
	binary.BigEndian.PutUint16(data[6:8], uint16(p.Operation))

	copy(data[8:14], p.SenderMAC[:])
	copy(data[14:18], p.SenderIP[:])
	copy(data[18:24], p.TargetMAC[:])
	copy(data[24:28], p.TargetIP[:])

	return data
}

// String returns a human-readable representation of the packet.
func (p *Packet) String() string {
	return fmt.Sprintf("ARP{Op=%s, Sender=%s(%s), Target=%s(%s)}",
		p.Operation, p.SenderIP, p.SenderMAC, p.TargetIP, p.TargetMAC)
}

// NewRequest creates a broadcast ARP request asking who holds targetIP.
func NewRequest(senderMAC common.MACAddress, senderIP, targetIP common.IPv4Address) *Packet {
	return &Packet{
		HardwareType:   HardwareTypeEthernet,
		ProtocolType:   ProtocolTypeIPv4,
		HardwareLength: 6,
		ProtocolLength: 4,
		Operation:      OperationRequest,
		SenderMAC:      senderMAC,
		SenderIP:       senderIP,
		TargetIP:       targetIP,
	}
}

// NewReply creates a unicast ARP reply stating that senderIP is at senderMAC.
func NewReply(senderMAC common.MACAddress, senderIP common.IPv4Address, targetMAC common.MACAddress, targetIP common.IPv4Address) *Packet {
	return &Packet{
		HardwareType:   HardwareTypeEthernet,
		ProtocolType:   ProtocolTypeIPv4,
		HardwareLength: 6,
		ProtocolLength: 4,
		Operation:      OperationReply,
		SenderMAC:      senderMAC,
		SenderIP:       senderIP,
		TargetMAC:      targetMAC,
		TargetIP:       targetIP,
	}
}

// IsRequest returns true if this is an ARP request.
func (p *Packet) IsRequest() bool { return p.Operation == OperationRequest }

// IsReply returns true if this is an ARP reply.
func (p *Packet) IsReply() bool { return p.Operation == OperationReply }
