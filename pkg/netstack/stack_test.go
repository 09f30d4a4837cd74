package netstack

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Acteus/vib-OS-sub000/pkg/arp"
	"github.com/Acteus/vib-OS-sub000/pkg/common"
	"github.com/Acteus/vib-OS-sub000/pkg/ethernet"
	"github.com/Acteus/vib-OS-sub000/pkg/icmp"
	"github.com/Acteus/vib-OS-sub000/pkg/ipv4"
	"github.com/Acteus/vib-OS-sub000/pkg/tcp"
	"github.com/Acteus/vib-OS-sub000/pkg/udp"
)

var (
	hostMAC = common.MACAddress{0x02, 0x00, 0x00, 0xAA, 0xBB, 0xCC}
	hostIP  = common.IPv4Address{192, 168, 1, 2}
	peerMAC = common.MACAddress{0x02, 0x00, 0x00, 0x11, 0x22, 0x33}
	peerIP  = common.IPv4Address{192, 168, 1, 1}
)

// newTestStack returns a stack with one up interface that records every
// transmitted frame.
func newTestStack(t *testing.T) (*Stack, *Interface, *[][]byte) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	s := New(log)

	var frames [][]byte
	ifc := &Interface{
		Name:    "eth0",
		MAC:     hostMAC,
		IP:      hostIP,
		Netmask: common.IPv4Address{255, 255, 255, 0},
		Gateway: peerIP,
		Up:      true,
		Transmit: func(frame []byte) error {
			frames = append(frames, frame)
			return nil
		},
	}
	require.NoError(t, s.RegisterInterface(ifc))
	return s, ifc, &frames
}

func TestRegisterInterfaceLimit(t *testing.T) {
	s := New(nil)
	for i := 0; i < MaxInterfaces; i++ {
		err := s.RegisterInterface(&Interface{Name: "eth", Up: true})
		require.NoError(t, err)
	}
	err := s.RegisterInterface(&Interface{Name: "overflow"})
	assert.ErrorIs(t, err, ErrTooManyInterfaces)
}

func TestSendARPRequest(t *testing.T) {
	s, _, frames := newTestStack(t)

	require.NoError(t, s.SendARPRequest(peerIP))
	require.Len(t, *frames, 1)

	frame, err := ethernet.Parse((*frames)[0])
	require.NoError(t, err)
	assert.Equal(t, common.BroadcastMAC, frame.Destination)
	assert.Equal(t, hostMAC, frame.Source)
	assert.Equal(t, common.EtherTypeARP, frame.EtherType)

	pkt, err := arp.Parse(frame.Payload)
	require.NoError(t, err)
	assert.True(t, pkt.IsRequest())
	assert.Equal(t, hostIP, pkt.SenderIP)
	assert.Equal(t, peerIP, pkt.TargetIP)
}

func TestARPRequestForUsGetsReply(t *testing.T) {
	s, ifc, frames := newTestStack(t)

	req := arp.NewRequest(peerMAC, peerIP, hostIP)
	frame := ethernet.NewFrame(common.BroadcastMAC, peerMAC, common.EtherTypeARP, req.Serialize())
	s.HandleFrame(ifc, frame.Serialize())

	require.Len(t, *frames, 1)
	out, err := ethernet.Parse((*frames)[0])
	require.NoError(t, err)
	assert.Equal(t, peerMAC, out.Destination)

	reply, err := arp.Parse(out.Payload)
	require.NoError(t, err)
	assert.True(t, reply.IsReply())
	assert.Equal(t, hostMAC, reply.SenderMAC)
	assert.Equal(t, hostIP, reply.SenderIP)
	assert.Equal(t, peerMAC, reply.TargetMAC)
}

func TestARPRequestForOtherHostIgnored(t *testing.T) {
	s, ifc, frames := newTestStack(t)

	req := arp.NewRequest(peerMAC, peerIP, common.IPv4Address{192, 168, 1, 99})
	frame := ethernet.NewFrame(common.BroadcastMAC, peerMAC, common.EtherTypeARP, req.Serialize())
	s.HandleFrame(ifc, frame.Serialize())

	assert.Empty(t, *frames)
}

func TestARPReplyPopulatesCache(t *testing.T) {
	s, ifc, _ := newTestStack(t)

	reply := arp.NewReply(peerMAC, peerIP, hostMAC, hostIP)
	frame := ethernet.NewFrame(hostMAC, peerMAC, common.EtherTypeARP, reply.Serialize())
	s.HandleFrame(ifc, frame.Serialize())

	mac, ok := s.ARP.Lookup(peerIP)
	require.True(t, ok)
	assert.Equal(t, peerMAC, mac)
}

func TestSendEchoRequest(t *testing.T) {
	s, _, frames := newTestStack(t)

	require.NoError(t, s.SendEchoRequest(peerIP, 42, 7))
	require.Len(t, *frames, 1)

	frame, err := ethernet.Parse((*frames)[0])
	require.NoError(t, err)
	assert.Equal(t, common.EtherTypeIPv4, frame.EtherType)

	pkt, err := ipv4.Parse(frame.Payload)
	require.NoError(t, err)
	assert.Equal(t, common.ProtocolICMP, pkt.Protocol)
	assert.Equal(t, uint16(1), pkt.Identification)
	assert.Equal(t, hostIP, pkt.Source)
	assert.Equal(t, peerIP, pkt.Destination)
	assert.True(t, pkt.VerifyChecksum())

	msg, err := icmp.Parse(pkt.Payload)
	require.NoError(t, err)
	assert.True(t, msg.IsEchoRequest())
	assert.Equal(t, uint16(42), msg.ID)
	assert.Equal(t, uint16(7), msg.Sequence)
	assert.Empty(t, msg.Data)
	assert.True(t, msg.VerifyChecksum())
}

func TestSendUDP(t *testing.T) {
	s, _, frames := newTestStack(t)

	payload := []byte("syslog-ish")
	n, err := s.SendUDP(peerIP, 5000, 514, payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.Len(t, *frames, 1)

	frame, err := ethernet.Parse((*frames)[0])
	require.NoError(t, err)
	pkt, err := ipv4.Parse(frame.Payload)
	require.NoError(t, err)
	assert.Equal(t, common.ProtocolUDP, pkt.Protocol)

	dgram, err := udp.Parse(pkt.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint16(5000), dgram.SourcePort)
	assert.Equal(t, uint16(514), dgram.DestinationPort)
	assert.Equal(t, payload, dgram.Data)
	assert.Zero(t, dgram.Checksum)
}

func TestTCPConnectOverStack(t *testing.T) {
	s, ifc, frames := newTestStack(t)

	id, err := s.Connect(peerIP, 80)
	require.NoError(t, err)
	require.Len(t, *frames, 1)

	frame, err := ethernet.Parse((*frames)[0])
	require.NoError(t, err)
	assert.Equal(t, common.BroadcastMAC, frame.Destination)

	pkt, err := ipv4.Parse(frame.Payload)
	require.NoError(t, err)
	assert.Equal(t, common.ProtocolTCP, pkt.Protocol)
	assert.Equal(t, uint16(ipv4.FlagDontFragment), pkt.FlagsFragment)

	syn, err := tcp.Parse(pkt.Payload)
	require.NoError(t, err)
	assert.Equal(t, tcp.FlagSYN, syn.Flags)
	assert.True(t, syn.VerifyChecksum(pkt.Source, pkt.Destination))
	assert.Equal(t, uint16(syn.SequenceNumber&0xFFFF), pkt.Identification)

	// Feed the peer's SYN+ACK back through the receive path and the
	// connection must come up.
	synAck := tcp.NewSegment(80, syn.SourcePort, 5000, syn.SequenceNumber+1,
		tcp.FlagSYN|tcp.FlagACK, 65535, nil)
	synAck.CalculateChecksum(peerIP, hostIP)
	reply := ipv4.NewPacket(peerIP, hostIP, common.ProtocolTCP, synAck.Serialize())
	inFrame := ethernet.NewFrame(hostMAC, peerMAC, common.EtherTypeIPv4, reply.Serialize())
	s.HandleFrame(ifc, inFrame.Serialize())

	conn, ok := s.TCP.Get(id)
	require.True(t, ok)
	assert.Equal(t, tcp.StateEstablished, conn.State)

	// The handshake ACK went out as the second frame.
	require.Len(t, *frames, 2)
}

func TestFragmentProcessedWithoutReassembly(t *testing.T) {
	s, ifc, frames := newTestStack(t)

	id, err := s.Connect(peerIP, 80)
	require.NoError(t, err)
	require.Len(t, *frames, 1)
	outFrame, err := ethernet.Parse((*frames)[0])
	require.NoError(t, err)
	outPkt, err := ipv4.Parse(outFrame.Payload)
	require.NoError(t, err)
	syn, err := tcp.Parse(outPkt.Payload)
	require.NoError(t, err)

	// A SYN+ACK arriving as the first fragment of a larger datagram is
	// handed to TCP with just the payload that is present; nothing waits
	// for the rest.
	synAck := tcp.NewSegment(80, syn.SourcePort, 5000, syn.SequenceNumber+1,
		tcp.FlagSYN|tcp.FlagACK, 65535, nil)
	synAck.CalculateChecksum(peerIP, hostIP)
	reply := ipv4.NewPacket(peerIP, hostIP, common.ProtocolTCP, synAck.Serialize())
	reply.FlagsFragment = ipv4.FlagMoreFragments
	inFrame := ethernet.NewFrame(hostMAC, peerMAC, common.EtherTypeIPv4, reply.Serialize())
	s.HandleFrame(ifc, inFrame.Serialize())

	conn, ok := s.TCP.Get(id)
	require.True(t, ok)
	assert.Equal(t, tcp.StateEstablished, conn.State)
	assert.Zero(t, s.Stats().RxDropped.Load())
}

func TestBadIPChecksumDropped(t *testing.T) {
	s, ifc, frames := newTestStack(t)

	pkt := ipv4.NewPacket(peerIP, hostIP, common.ProtocolICMP, icmp.NewEchoRequest(1, 1).Serialize())
	raw := pkt.Serialize()
	raw[10] ^= 0xFF // corrupt the header checksum
	frame := ethernet.NewFrame(hostMAC, peerMAC, common.EtherTypeIPv4, raw)
	s.HandleFrame(ifc, frame.Serialize())

	assert.Empty(t, *frames)
	assert.Equal(t, uint64(1), s.Stats().ChecksumErr.Load())
	assert.Equal(t, uint64(1), s.Stats().RxDropped.Load())
}

func TestShortFrameDropped(t *testing.T) {
	s, ifc, _ := newTestStack(t)

	s.HandleFrame(ifc, []byte{0x01, 0x02, 0x03})
	assert.Equal(t, uint64(1), s.Stats().RxDropped.Load())
}

func TestTransmitOnDownInterfaceFails(t *testing.T) {
	s, ifc, _ := newTestStack(t)
	ifc.Up = false

	err := s.SendARPRequest(peerIP)
	assert.Error(t, err)
}

func TestInterfaceCounters(t *testing.T) {
	s, ifc, _ := newTestStack(t)

	require.NoError(t, s.SendARPRequest(peerIP))
	assert.Equal(t, uint64(1), ifc.TxPackets)
	assert.NotZero(t, ifc.TxBytes)

	s.HandleFrame(ifc, make([]byte, 64))
	assert.Equal(t, uint64(1), ifc.RxPackets)
	assert.Equal(t, uint64(64), ifc.RxBytes)
}

func TestResetClearsState(t *testing.T) {
	s, _, _ := newTestStack(t)
	s.ARP.Add(peerIP, peerMAC)
	_, err := s.Connect(peerIP, 80)
	require.NoError(t, err)

	s.Reset()

	assert.Zero(t, s.ARP.Len())
	assert.Zero(t, s.TCP.Active())
	assert.Empty(t, s.Interfaces())
}
