// Package udp implements the UDP datagram format (RFC 768) for the
// one-shot send path. The core transmits datagrams with a zero checksum,
// which RFC 768 permits over IPv4.
package udp

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the UDP header length (8 bytes).
	HeaderSize = 8

	// MaxPayloadSize bounds the datagram payload to what fits in an
	// IPv4 packet with a 20-byte header.
	MaxPayloadSize = 65535 - 20 - HeaderSize
)

// Packet represents a UDP datagram.
type Packet struct {
	SourcePort      uint16
	DestinationPort uint16
	Length          uint16 // header + data
	Checksum        uint16 // transmitted as zero
	Data            []byte
}

// Parse parses a UDP packet from raw bytes.
func Parse(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("UDP packet too short: %d bytes (minimum %d)", len(data), HeaderSize)
	}

	p := &Packet{
		SourcePort:      binary.BigEndian.Uint16(data[0:2]),
		DestinationPort: binary.BigEndian.Uint16(data[2:4]),
		Length:          binary.BigEndian.Uint16(data[4:6]),
		Checksum:        binary.BigEndian.Uint16(data[6:8]),
	}

	if int(p.Length) < HeaderSize {
		return nil, fmt.Errorf("invalid UDP length: %d (minimum %d)", p.Length, HeaderSize)
	}
	if int(p.Length) > len(data) {
		return nil, fmt.Errorf("UDP length %d exceeds received %d bytes", p.Length, len(data))
	}

	if int(p.Length) > HeaderSize {
		p.Data = make([]byte, int(p.Length)-HeaderSize)
		copy(p.Data, data[HeaderSize:p.Length])
	}

	return p, nil
}

// Serialize converts the packet to bytes. The checksum field is written
// as-is; the send path leaves it zero.
func (p *Packet) Serialize() []byte {
	p.Length = uint16(HeaderSize + len(p.Data))

	buf := make([]byte, int(p.Length))
	binary.BigEndian.PutUint16(buf[0:2], p.SourcePort)
	binary.BigEndian.PutUint16(buf[2:4], p.DestinationPort)
	binary.BigEndian.PutUint16(buf[4:6], p.Length)
	binary.BigEndian.PutUint16(buf[6:8], p.Checksum)
	copy(buf[HeaderSize:], p.Data)

	return buf
}

// String returns a human-readable representation of the packet.
func (p *Packet) String() string {
	return fmt.Sprintf("UDP{SrcPort=%d, DstPort=%d, Len=%d}", p.SourcePort, p.DestinationPort, p.Length)
}

// NewPacket creates a UDP packet with a zero checksum.
func NewPacket(srcPort, dstPort uint16, data []byte) *Packet {
	return &Packet{
		SourcePort:      srcPort,
		DestinationPort: dstPort,
		Length:          uint16(HeaderSize + len(data)),
		Data:            data,
	}
}
