package icmp

import (
	"bytes"
	"testing"
)

func TestEchoRequestWireLayout(t *testing.T) {
	data := NewEchoRequest(0x1234, 7).Serialize()

	if len(data) != HeaderSize {
		t.Fatalf("Serialize() length = %d, want %d (header only)", len(data), HeaderSize)
	}
	if data[0] != 8 || data[1] != 0 {
		t.Errorf("type/code = %d/%d, want 8/0", data[0], data[1])
	}
	if !bytes.Equal(data[4:6], []byte{0x12, 0x34}) {
		t.Errorf("id bytes = % x, want 12 34", data[4:6])
	}
	if !bytes.Equal(data[6:8], []byte{0x00, 0x07}) {
		t.Errorf("seq bytes = % x, want 00 07", data[6:8])
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	msg := NewEchoRequest(99, 3)
	parsed, err := Parse(msg.Serialize())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parsed.IsEchoRequest() {
		t.Error("IsEchoRequest() = false")
	}
	if parsed.ID != 99 || parsed.Sequence != 3 {
		t.Errorf("ID/Seq = %d/%d, want 99/3", parsed.ID, parsed.Sequence)
	}
	if !parsed.VerifyChecksum() {
		t.Error("VerifyChecksum() = false for freshly serialized message")
	}
}

func TestChecksumDetectsCorruption(t *testing.T) {
	data := NewEchoRequest(1, 1).Serialize()
	data[6] ^= 0xFF

	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.VerifyChecksum() {
		t.Error("VerifyChecksum() = true for corrupted message")
	}
}

func TestParseShortMessage(t *testing.T) {
	if _, err := Parse(make([]byte, HeaderSize-1)); err == nil {
		t.Error("Parse() error = nil for truncated message")
	}
}

func TestEchoReply(t *testing.T) {
	msg := &Message{Type: TypeEchoReply, ID: 5, Sequence: 9}
	parsed, err := Parse(msg.Serialize())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parsed.IsEchoReply() {
		t.Error("IsEchoReply() = false")
	}
	if got := parsed.Type.String(); got != "EchoReply" {
		t.Errorf("Type.String() = %q", got)
	}
}
