package arp

import (
	"bytes"
	"testing"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

func TestRequestWireLayout(t *testing.T) {
	senderMAC := common.MACAddress{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	senderIP := common.IPv4Address{10, 0, 0, 5}
	targetIP := common.IPv4Address{10, 0, 0, 1}

	data := NewRequest(senderMAC, senderIP, targetIP).Serialize()

	want := []byte{
		0x00, 0x01, // hardware type: Ethernet
		0x08, 0x00, // protocol type: IPv4
		0x06, 0x04, // address lengths
		0x00, 0x01, // opcode: request
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, // sender MAC
		10, 0, 0, 5, // sender IP
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // target MAC: unknown
		10, 0, 0, 1, // target IP
	}
	if !bytes.Equal(data, want) {
		t.Errorf("Serialize() = % x\nwant          % x", data, want)
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	reply := NewReply(
		common.MACAddress{0x02, 0, 0, 0, 0, 1},
		common.IPv4Address{10, 0, 0, 1},
		common.MACAddress{0x02, 0, 0, 0, 0, 2},
		common.IPv4Address{10, 0, 0, 5},
	)

	parsed, err := Parse(reply.Serialize())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parsed.IsReply() {
		t.Error("IsReply() = false")
	}
	if parsed.SenderIP != reply.SenderIP || parsed.SenderMAC != reply.SenderMAC {
		t.Errorf("sender = %v/%v, want %v/%v", parsed.SenderIP, parsed.SenderMAC, reply.SenderIP, reply.SenderMAC)
	}
	if parsed.TargetIP != reply.TargetIP || parsed.TargetMAC != reply.TargetMAC {
		t.Errorf("target = %v/%v, want %v/%v", parsed.TargetIP, parsed.TargetMAC, reply.TargetIP, reply.TargetMAC)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	valid := NewRequest(common.MACAddress{1}, common.IPv4Address{10, 0, 0, 5}, common.IPv4Address{10, 0, 0, 1}).Serialize()

	t.Run("truncated", func(t *testing.T) {
		if _, err := Parse(valid[:PacketSize-1]); err == nil {
			t.Error("Parse() error = nil for truncated packet")
		}
	})

	t.Run("bad hardware type", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		data[1] = 0x02
		if _, err := Parse(data); err == nil {
			t.Error("Parse() error = nil for non-Ethernet hardware type")
		}
	})

	t.Run("bad protocol type", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		data[2], data[3] = 0x86, 0xDD
		if _, err := Parse(data); err == nil {
			t.Error("Parse() error = nil for non-IPv4 protocol type")
		}
	})

	t.Run("bad address lengths", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		data[4] = 8
		if _, err := Parse(data); err == nil {
			t.Error("Parse() error = nil for bad hardware length")
		}
	})
}
