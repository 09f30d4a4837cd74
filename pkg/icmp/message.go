// Package icmp implements the ICMP echo message format (RFC 792).
// The core originates echo requests and logs inbound echo traffic; it
// never generates echo replies.
package icmp

import (
	"encoding/binary"
	"fmt"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

// Type is an ICMP message type.
type Type uint8

const (
	// TypeEchoReply is an echo reply (type 0).
	TypeEchoReply Type = 0

	// TypeEchoRequest is an echo request (type 8).
	TypeEchoRequest Type = 8
)

// String returns a human-readable name for the type.
func (t Type) String() string {
	switch t {
	case TypeEchoReply:
		return "EchoReply"
	case TypeEchoRequest:
		return "EchoRequest"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// HeaderSize is the ICMP echo header length (8 bytes).
const HeaderSize = 8

// Message represents an ICMP echo message: type, code, checksum,
// identifier and sequence, optionally followed by data. The core's echo
// requests carry no data beyond the header.
type Message struct {
	Type     Type
	Code     uint8
	Checksum uint16
	ID       uint16
	Sequence uint16
	Data     []byte
}

// Parse parses an ICMP message from raw bytes.
func Parse(data []byte) (*Message, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("ICMP message too short: %d bytes (minimum %d)", len(data), HeaderSize)
	}

	m := &Message{
		Type:     Type(data[0]),
		Code:     data[1],
		Checksum: binary.BigEndian.Uint16(data[2:4]),
		ID:       binary.BigEndian.Uint16(data[4:6]),
		Sequence: binary.BigEndian.Uint16(data[6:8]),
	}
	if len(data) > HeaderSize {
		m.Data = make([]byte, len(data)-HeaderSize)
		copy(m.Data, data[HeaderSize:])
	}
	return m, nil
}

// Serialize converts the message to bytes, filling in the checksum over
// the full message.
func (m *Message) Serialize() []byte {
	buf := make([]byte, HeaderSize+len(m.Data))
	buf[0] = uint8(m.Type)
	buf[1] = m.Code
	binary.BigEndian.PutUint16(buf[4:6], m.ID)
	binary.BigEndian.PutUint16(buf[6:8], m.Sequence)
	copy(buf[HeaderSize:], m.Data)

	m.Checksum = common.CalculateChecksum(buf)
	binary.BigEndian.PutUint16(buf[2:4], m.Checksum)

	return buf
}

// VerifyChecksum reports whether the received checksum is valid.
func (m *Message) VerifyChecksum() bool {
	buf := make([]byte, HeaderSize+len(m.Data))
	buf[0] = uint8(m.Type)
	buf[1] = m.Code
	binary.BigEndian.PutUint16(buf[2:4], m.Checksum)
	binary.BigEndian.PutUint16(buf[4:6], m.ID)
	binary.BigEndian.PutUint16(buf[6:8], m.Sequence)
	copy(buf[HeaderSize:], m.Data)
	return common.VerifyChecksum(buf)
}

// String returns a human-readable representation of the message.
func (m *Message) String() string {
	return fmt.Sprintf("ICMP{Type=%s, Code=%d, ID=%d, Seq=%d, DataLen=%d}",
		m.Type, m.Code, m.ID, m.Sequence, len(m.Data))
}

// NewEchoRequest creates an echo request with the given identifier and
// sequence number and no payload.
func NewEchoRequest(id, seq uint16) *Message {
	return &Message{Type: TypeEchoRequest, ID: id, Sequence: seq}
}

// IsEchoRequest returns true for echo requests.
func (m *Message) IsEchoRequest() bool { return m.Type == TypeEchoRequest }

// IsEchoReply returns true for echo replies.
func (m *Message) IsEchoReply() bool { return m.Type == TypeEchoReply }
