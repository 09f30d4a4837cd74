// Package ipv4 implements the IPv4 packet format (RFC 791) used by the
// internetwork dispatcher.
package ipv4

import (
	"encoding/binary"
	"fmt"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

// IPv4 header layout (20 bytes, the core never emits options):
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-------+-------+---------------+-------------------------------+
// |Version|  IHL  |      TOS      |          Total Length         |
// +-------+-------+---------------+-----+-------------------------+
// |         Identification        |Flags|     Fragment Offset     |
// +---------------+---------------+-----+-------------------------+
// |      TTL      |    Protocol   |        Header Checksum        |
// +---------------+---------------+-------------------------------+
// |                       Source Address                          |
// +---------------------------------------------------------------+
// |                    Destination Address                        |
// +---------------------------------------------------------------+

const (
	// Version is the IP version number carried in the version nibble.
	Version = 4

	// HeaderSize is the header length without options (20 bytes).
	HeaderSize = 20

	// DefaultTTL is the time-to-live on locally originated packets.
	DefaultTTL = 64

	// FlagDontFragment is the DF bit in the flags field.
	FlagDontFragment = 0x4000

	// FlagMoreFragments is the MF bit in the flags field.
	FlagMoreFragments = 0x2000
)

// Packet represents an IPv4 packet.
type Packet struct {
	Version        uint8
	IHL            uint8 // header length in 32-bit words
	TOS            uint8
	TotalLength    uint16
	Identification uint16
	FlagsFragment  uint16 // flags (3 bits) + fragment offset (13 bits)
	TTL            uint8
	Protocol       common.Protocol
	Checksum       uint16
	Source         common.IPv4Address
	Destination    common.IPv4Address

	Payload []byte
}

// Parse parses an IPv4 packet from raw bytes. It rejects packets whose
// version nibble is not 4 and packets whose declared total length exceeds
// the number of bytes actually received, so no read ever crosses the end
// of the receive buffer. Fragments are not reassembled; a fragment's
// payload is whatever its own total length covers.
func Parse(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("IPv4 packet too short: %d bytes (minimum %d)", len(data), HeaderSize)
	}

	p := &Packet{
		Version: data[0] >> 4,
		IHL:     data[0] & 0x0F,
	}
	if p.Version != Version {
		return nil, fmt.Errorf("not IPv4: version=%d", p.Version)
	}
	if p.IHL < 5 {
		return nil, fmt.Errorf("invalid IHL: %d (minimum 5)", p.IHL)
	}

	headerLen := int(p.IHL) * 4
	p.TOS = data[1]
	p.TotalLength = binary.BigEndian.Uint16(data[2:4])

	if int(p.TotalLength) > len(data) {
		return nil, fmt.Errorf("declared length %d exceeds received %d bytes", p.TotalLength, len(data))
	}
	if int(p.TotalLength) < headerLen {
		return nil, fmt.Errorf("declared length %d shorter than header %d", p.TotalLength, headerLen)
	}

	p.Identification = binary.BigEndian.Uint16(data[4:6])
	p.FlagsFragment = binary.BigEndian.Uint16(data[6:8])
	p.TTL = data[8]
	p.Protocol = common.Protocol(data[9])
	p.Checksum = binary.BigEndian.Uint16(data[10:12])
	copy(p.Source[:], data[12:16])
	copy(p.Destination[:], data[16:20])

	p.Payload = data[headerLen:p.TotalLength]

	return p, nil
}

// Serialize converts the packet to bytes. The header is always 20 bytes
// (no options) and the header checksum is computed over the header only.
func (p *Packet) Serialize() []byte {
	p.IHL = HeaderSize / 4
	p.TotalLength = uint16(HeaderSize + len(p.Payload))

	buf := make([]byte, int(p.TotalLength))
	buf[0] = (p.Version << 4) | p.IHL
	buf[1] = p.TOS
	binary.BigEndian.PutUint16(buf[2:4], p.TotalLength)
	binary.BigEndian.PutUint16(buf[4:6], p.Identification)
	binary.BigEndian.PutUint16(buf[6:8], p.FlagsFragment)
	buf[8] = p.TTL
	buf[9] = uint8(p.Protocol)
	copy(buf[12:16], p.Source[:])
	copy(buf[16:20], p.Destination[:])

	p.Checksum = common.CalculateChecksum(buf[:HeaderSize])
	binary.BigEndian.PutUint16(buf[10:12], p.Checksum)

	copy(buf[HeaderSize:], p.Payload)

	return buf
}

// VerifyChecksum reports whether the received header checksum is valid.
func (p *Packet) VerifyChecksum() bool {
	buf := make([]byte, HeaderSize)
	buf[0] = (p.Version << 4) | p.IHL
	buf[1] = p.TOS
	binary.BigEndian.PutUint16(buf[2:4], p.TotalLength)
	binary.BigEndian.PutUint16(buf[4:6], p.Identification)
	binary.BigEndian.PutUint16(buf[6:8], p.FlagsFragment)
	buf[8] = p.TTL
	buf[9] = uint8(p.Protocol)
	binary.BigEndian.PutUint16(buf[10:12], p.Checksum)
	copy(buf[12:16], p.Source[:])
	copy(buf[16:20], p.Destination[:])
	return common.VerifyChecksum(buf)
}

// IsFragment returns true if the packet is part of a fragmented datagram.
func (p *Packet) IsFragment() bool {
	return p.FlagsFragment&0x1FFF != 0 || p.FlagsFragment&FlagMoreFragments != 0
}

// String returns a human-readable representation of the packet.
func (p *Packet) String() string {
	return fmt.Sprintf("IPv4{%s -> %s, Proto=%s, TTL=%d, ID=%d, Len=%d}",
		p.Source, p.Destination, p.Protocol, p.TTL, p.Identification, p.TotalLength)
}

// NewPacket creates an IPv4 packet with the defaults used by the send
// paths. TotalLength and Checksum are filled in by Serialize.
func NewPacket(src, dst common.IPv4Address, protocol common.Protocol, payload []byte) *Packet {
	return &Packet{
		Version:     Version,
		IHL:         HeaderSize / 4,
		TTL:         DefaultTTL,
		Protocol:    protocol,
		Source:      src,
		Destination: dst,
		Payload:     payload,
	}
}
