package ipv4

import (
	"bytes"
	"testing"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

func TestSerializeParseRoundTrip(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	pkt := NewPacket(
		common.IPv4Address{10, 0, 0, 5},
		common.IPv4Address{10, 0, 0, 1},
		common.ProtocolTCP,
		payload,
	)
	pkt.Identification = 42
	pkt.FlagsFragment = FlagDontFragment

	data := pkt.Serialize()
	if len(data) != HeaderSize+len(payload) {
		t.Fatalf("Serialize() length = %d, want %d", len(data), HeaderSize+len(payload))
	}

	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Source != pkt.Source || parsed.Destination != pkt.Destination {
		t.Errorf("addresses = %v -> %v, want %v -> %v", parsed.Source, parsed.Destination, pkt.Source, pkt.Destination)
	}
	if parsed.Protocol != common.ProtocolTCP {
		t.Errorf("Protocol = %v, want TCP", parsed.Protocol)
	}
	if parsed.Identification != 42 {
		t.Errorf("Identification = %d, want 42", parsed.Identification)
	}
	if parsed.FlagsFragment != FlagDontFragment {
		t.Errorf("FlagsFragment = 0x%04x, want 0x%04x", parsed.FlagsFragment, uint16(FlagDontFragment))
	}
	if !bytes.Equal(parsed.Payload, payload) {
		t.Errorf("Payload = % x, want % x", parsed.Payload, payload)
	}
	if !parsed.VerifyChecksum() {
		t.Error("VerifyChecksum() = false for freshly serialized packet")
	}
}

func TestHeaderChecksumCoversHeaderOnly(t *testing.T) {
	pkt := NewPacket(common.IPv4Address{10, 0, 0, 5}, common.IPv4Address{10, 0, 0, 1}, common.ProtocolICMP, []byte{1, 2, 3, 4})
	data := pkt.Serialize()

	// Corrupting the payload must not invalidate the header checksum.
	data[HeaderSize] ^= 0xFF
	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parsed.VerifyChecksum() {
		t.Error("VerifyChecksum() = false after payload corruption; checksum must cover the header only")
	}

	// Corrupting the header must invalidate it.
	data[8] ^= 0xFF // TTL
	parsed, err = Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.VerifyChecksum() {
		t.Error("VerifyChecksum() = true after header corruption")
	}
}

func TestParseRejectsBadVersion(t *testing.T) {
	data := NewPacket(common.IPv4Address{10, 0, 0, 5}, common.IPv4Address{10, 0, 0, 1}, common.ProtocolUDP, nil).Serialize()
	data[0] = (6 << 4) | 5
	if _, err := Parse(data); err == nil {
		t.Error("Parse() error = nil for version 6 packet")
	}
}

// TestParseRejectsOverdeclaredLength covers the truncation guard: a
// declared total length beyond the received byte count must be rejected
// before any payload slicing happens.
func TestParseRejectsOverdeclaredLength(t *testing.T) {
	data := NewPacket(common.IPv4Address{10, 0, 0, 5}, common.IPv4Address{10, 0, 0, 1}, common.ProtocolUDP, []byte{1, 2, 3}).Serialize()

	// Inflate the declared length past the buffer.
	data[2], data[3] = 0xFF, 0xFF
	if _, err := Parse(data); err == nil {
		t.Error("Parse() error = nil for declared length beyond received bytes")
	}

	// Truncated delivery of an otherwise valid packet.
	valid := NewPacket(common.IPv4Address{10, 0, 0, 5}, common.IPv4Address{10, 0, 0, 1}, common.ProtocolUDP, []byte{1, 2, 3}).Serialize()
	if _, err := Parse(valid[:len(valid)-2]); err == nil {
		t.Error("Parse() error = nil for truncated packet")
	}
}

func TestParseRejectsShortHeader(t *testing.T) {
	if _, err := Parse(make([]byte, HeaderSize-1)); err == nil {
		t.Error("Parse() error = nil for short buffer")
	}

	data := NewPacket(common.IPv4Address{1, 1, 1, 1}, common.IPv4Address{2, 2, 2, 2}, common.ProtocolTCP, nil).Serialize()
	data[0] = (4 << 4) | 4 // IHL below minimum
	if _, err := Parse(data); err == nil {
		t.Error("Parse() error = nil for IHL < 5")
	}
}

func TestIsFragment(t *testing.T) {
	pkt := NewPacket(common.IPv4Address{1, 1, 1, 1}, common.IPv4Address{2, 2, 2, 2}, common.ProtocolUDP, nil)
	if pkt.IsFragment() {
		t.Error("IsFragment() = true for unfragmented packet")
	}
	pkt.FlagsFragment = FlagMoreFragments
	if !pkt.IsFragment() {
		t.Error("IsFragment() = false with MF set")
	}
	pkt.FlagsFragment = 0x0003 // nonzero offset
	if !pkt.IsFragment() {
		t.Error("IsFragment() = false with nonzero offset")
	}
	pkt.FlagsFragment = FlagDontFragment
	if pkt.IsFragment() {
		t.Error("IsFragment() = true with only DF set")
	}
}
