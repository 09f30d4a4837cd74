// Package ethernet implements Ethernet II framing for the link layer.
package ethernet

import (
	"encoding/binary"
	"fmt"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

// Ethernet II frame layout:
// +-------------------+-------------------+-----------+---------+
// | Destination (6B)  | Source (6B)       | Type (2B) | Payload |
// +-------------------+-------------------+-----------+---------+
//
// The core emits frames of exactly header + payload length. Minimum-size
// padding and the FCS belong to the device driver and hardware.

const (
	// HeaderSize is the size of an Ethernet header (14 bytes).
	HeaderSize = 14

	// MaxFrameSize is the largest frame the receive path will buffer.
	MaxFrameSize = 1518
)

// Frame represents an Ethernet II frame.
type Frame struct {
	Destination common.MACAddress
	Source      common.MACAddress
	EtherType   common.EtherType
	Payload     []byte
}

// Parse parses an Ethernet frame from raw bytes. The payload slice aliases
// the input; callers that retain it past the receive call must copy.
func Parse(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("ethernet frame too short: %d bytes (minimum %d)", len(data), HeaderSize)
	}

	frame := &Frame{}
	copy(frame.Destination[:], data[0:6])
	copy(frame.Source[:], data[6:12])
	frame.EtherType = common.EtherType(binary.BigEndian.Uint16(data[12:14]))
	frame.Payload = data[HeaderSize:]

	return frame, nil
}

// Serialize converts the frame to bytes for transmission. The result is
// exactly HeaderSize + len(Payload) bytes; no padding is added.
func (f *Frame) Serialize() []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))
	copy(buf[0:6], f.Destination[:])
	copy(buf[6:12], f.Source[:])
	binary.BigEndian.PutUint16(buf[12:14], uint16(f.EtherType))
	copy(buf[HeaderSize:], f.Payload)
	return buf
}

// String returns a human-readable representation of the frame.
func (f *Frame) String() string {
	return fmt.Sprintf("Ethernet{Dst=%s, Src=%s, Type=%s, PayloadLen=%d}",
		f.Destination, f.Source, f.EtherType, len(f.Payload))
}

// NewFrame creates a new Ethernet frame.
func NewFrame(dst, src common.MACAddress, etherType common.EtherType, payload []byte) *Frame {
	return &Frame{
		Destination: dst,
		Source:      src,
		EtherType:   etherType,
		Payload:     payload,
	}
}
