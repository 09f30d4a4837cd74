// Package tcp implements the TCP segment format (RFC 793) and the
// fixed-capacity connection table with its segment-driven state machine.
//
// The implementation is deliberately minimal: a fixed send window, no
// retransmission timers, no options (MSS, window scaling), no congestion
// control, and no passive open. Inbound segments either advance an
// existing connection or are dropped.
package tcp

import (
	"encoding/binary"
	"fmt"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

const (
	// HeaderSize is the TCP header length without options (20 bytes).
	HeaderSize = 20

	// MaxHeaderSize is the largest header a data offset can declare.
	MaxHeaderSize = 60
)

// TCP control flags.
const (
	FlagFIN uint8 = 1 << 0
	FlagSYN uint8 = 1 << 1
	FlagRST uint8 = 1 << 2
	FlagPSH uint8 = 1 << 3
	FlagACK uint8 = 1 << 4
	FlagURG uint8 = 1 << 5
)

// Segment represents a TCP segment. The core never emits options; on the
// receive side the data offset is honored so that any options a peer
// sends are skipped, not interpreted.
type Segment struct {
	SourcePort      uint16
	DestinationPort uint16
	SequenceNumber  uint32
	AckNumber       uint32
	DataOffset      uint8 // header length in 32-bit words
	Flags           uint8
	WindowSize      uint16
	Checksum        uint16
	UrgentPointer   uint16
	Data            []byte
}

// Parse parses a TCP segment from raw bytes.
func Parse(data []byte) (*Segment, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("TCP segment too short: %d bytes (minimum %d)", len(data), HeaderSize)
	}

	s := &Segment{
		SourcePort:      binary.BigEndian.Uint16(data[0:2]),
		DestinationPort: binary.BigEndian.Uint16(data[2:4]),
		SequenceNumber:  binary.BigEndian.Uint32(data[4:8]),
		AckNumber:       binary.BigEndian.Uint32(data[8:12]),
		DataOffset:      data[12] >> 4,
		Flags:           data[13],
		WindowSize:      binary.BigEndian.Uint16(data[14:16]),
		Checksum:        binary.BigEndian.Uint16(data[16:18]),
		UrgentPointer:   binary.BigEndian.Uint16(data[18:20]),
	}

	if s.DataOffset < 5 {
		return nil, fmt.Errorf("invalid data offset: %d (minimum 5)", s.DataOffset)
	}
	headerLen := int(s.DataOffset) * 4
	if headerLen > MaxHeaderSize {
		return nil, fmt.Errorf("invalid header length: %d (maximum %d)", headerLen, MaxHeaderSize)
	}
	if len(data) < headerLen {
		return nil, fmt.Errorf("segment too short for declared header: %d bytes (expected %d)", len(data), headerLen)
	}

	if len(data) > headerLen {
		s.Data = make([]byte, len(data)-headerLen)
		copy(s.Data, data[headerLen:])
	}

	return s, nil
}

// Serialize converts the segment to bytes. The header is always 20 bytes;
// the checksum field is written as-is (see CalculateChecksum).
func (s *Segment) Serialize() []byte {
	s.DataOffset = HeaderSize / 4

	buf := make([]byte, HeaderSize+len(s.Data))
	binary.BigEndian.PutUint16(buf[0:2], s.SourcePort)
	binary.BigEndian.PutUint16(buf[2:4], s.DestinationPort)
	binary.BigEndian.PutUint32(buf[4:8], s.SequenceNumber)
	binary.BigEndian.PutUint32(buf[8:12], s.AckNumber)
	buf[12] = s.DataOffset << 4
	buf[13] = s.Flags
	binary.BigEndian.PutUint16(buf[14:16], s.WindowSize)
	binary.BigEndian.PutUint16(buf[16:18], s.Checksum)
	binary.BigEndian.PutUint16(buf[18:20], s.UrgentPointer)
	copy(buf[HeaderSize:], s.Data)

	return buf
}

// CalculateChecksum computes the segment checksum, summing the 12-byte
// pseudo-header (source, destination, protocol, TCP length) ahead of the
// serialized segment. The stored Checksum field is zeroed for the
// computation and updated with the result.
func (s *Segment) CalculateChecksum(src, dst common.IPv4Address) uint16 {
	s.Checksum = 0
	data := s.Serialize()
	ph := common.PseudoHeader{
		Source:      src,
		Destination: dst,
		Protocol:    common.ProtocolTCP,
		Length:      uint16(len(data)),
	}
	s.Checksum = common.ChecksumWithPseudoHeader(ph, data)
	return s.Checksum
}

// VerifyChecksum reports whether the checksum is valid for the given
// addresses. It re-serializes the segment, so it is only meaningful for
// option-free segments such as the ones this package emits.
func (s *Segment) VerifyChecksum(src, dst common.IPv4Address) bool {
	data := s.Serialize()
	ph := common.PseudoHeader{
		Source:      src,
		Destination: dst,
		Protocol:    common.ProtocolTCP,
		Length:      uint16(len(data)),
	}
	sum := common.ChecksumWithPseudoHeader(ph, data)
	return sum == 0 || sum == 0xFFFF
}

// HasFlag reports whether flag is set.
func (s *Segment) HasFlag(flag uint8) bool { return s.Flags&flag != 0 }

// flagString builds the conventional compact flag notation.
func (s *Segment) flagString() string {
	names := []struct {
		flag uint8
		c    byte
	}{
		{FlagFIN, 'F'}, {FlagSYN, 'S'}, {FlagRST, 'R'}, {FlagPSH, 'P'}, {FlagACK, 'A'}, {FlagURG, 'U'},
	}
	out := make([]byte, 0, 6)
	for _, n := range names {
		if s.HasFlag(n.flag) {
			out = append(out, n.c)
		}
	}
	if len(out) == 0 {
		return "."
	}
	return string(out)
}

// String returns a human-readable representation of the segment.
func (s *Segment) String() string {
	return fmt.Sprintf("TCP{SrcPort=%d, DstPort=%d, Seq=%d, Ack=%d, Flags=%s, Win=%d, DataLen=%d}",
		s.SourcePort, s.DestinationPort, s.SequenceNumber, s.AckNumber, s.flagString(), s.WindowSize, len(s.Data))
}

// NewSegment creates a TCP segment with a 20-byte header.
func NewSegment(srcPort, dstPort uint16, seq, ack uint32, flags uint8, window uint16, data []byte) *Segment {
	return &Segment{
		SourcePort:      srcPort,
		DestinationPort: dstPort,
		SequenceNumber:  seq,
		AckNumber:       ack,
		DataOffset:      HeaderSize / 4,
		Flags:           flags,
		WindowSize:      window,
		Data:            data,
	}
}
