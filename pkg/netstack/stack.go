// Package netstack ties the protocol layers together: it owns the
// interface registry, the ARP cache, and the TCP connection table, and
// it runs the receive dispatch and the outbound send paths.
//
// All outbound traffic leaves through the first registered interface.
// There is no routing table; link-layer destination resolution is the
// broadcast address, with the ARP cache populated opportunistically
// from replies.
package netstack

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Acteus/vib-OS-sub000/pkg/arp"
	"github.com/Acteus/vib-OS-sub000/pkg/common"
	"github.com/Acteus/vib-OS-sub000/pkg/ethernet"
	"github.com/Acteus/vib-OS-sub000/pkg/icmp"
	"github.com/Acteus/vib-OS-sub000/pkg/ipv4"
	"github.com/Acteus/vib-OS-sub000/pkg/tcp"
	"github.com/Acteus/vib-OS-sub000/pkg/udp"
)

// Stats counts frames and drops across the whole stack. Per-interface
// byte and packet counters live on the Interface.
type Stats struct {
	RxFrames    atomic.Uint64
	RxARP       atomic.Uint64
	RxIPv4      atomic.Uint64
	RxICMP      atomic.Uint64
	RxTCP       atomic.Uint64
	RxUDP       atomic.Uint64
	RxDropped   atomic.Uint64
	TxFrames    atomic.Uint64
	ChecksumErr atomic.Uint64
}

// Stack is the top-level network stack instance.
type Stack struct {
	ARP *arp.Cache
	TCP *tcp.Table

	ifaces registry
	stats  Stats
	log    logrus.FieldLogger
}

// New creates an initialized stack with empty tables and no interfaces.
func New(log logrus.FieldLogger) *Stack {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Stack{
		ARP: arp.NewCache(),
		log: log,
	}
	s.TCP = tcp.NewTable(s.sendTCPSegment, log)
	return s
}

// Reset clears the ARP cache, the TCP connection table, and the
// interface registry, returning the stack to its freshly initialized
// state.
func (s *Stack) Reset() {
	s.ARP.Clear()
	s.TCP.Reset()
	s.ifaces.clear()
}

// RegisterInterface adds an interface to the registry. The first
// interface registered carries all outbound traffic.
func (s *Stack) RegisterInterface(ifc *Interface) error {
	if err := s.ifaces.add(ifc); err != nil {
		return err
	}
	s.log.WithField("iface", ifc.Name).Info("interface registered")
	return nil
}

// RegisterLoopback registers a software loopback interface on
// 127.0.0.1 whose transmitted frames are fed straight back into the
// receive path.
func (s *Stack) RegisterLoopback() (*Interface, error) {
	lo := &Interface{
		Name:    "lo",
		IP:      common.LoopbackIPv4,
		Netmask: common.IPv4Address{255, 0, 0, 0},
		Up:      true,
	}
	lo.Transmit = func(frame []byte) error {
		s.HandleFrame(lo, frame)
		return nil
	}
	if err := s.RegisterInterface(lo); err != nil {
		return nil, err
	}
	return lo, nil
}

// Interface returns the registered interface with the given name.
func (s *Stack) Interface(name string) (*Interface, error) {
	return s.ifaces.byName(name)
}

// Interfaces returns all registered interfaces in registration order.
func (s *Stack) Interfaces() []*Interface {
	return s.ifaces.all()
}

// Stats exposes the stack-wide counters.
func (s *Stack) Stats() *Stats {
	return &s.stats
}

// HandleFrame is the receive entry point: one raw Ethernet frame from
// ifc. Undersized frames, unknown ethertypes, and packets that fail
// validation are dropped and counted; nothing here returns an error to
// the caller because a receive path has nobody to report to.
func (s *Stack) HandleFrame(ifc *Interface, data []byte) {
	s.stats.RxFrames.Add(1)
	atomic.AddUint64(&ifc.RxPackets, 1)
	atomic.AddUint64(&ifc.RxBytes, uint64(len(data)))

	frame, err := ethernet.Parse(data)
	if err != nil {
		s.stats.RxDropped.Add(1)
		return
	}

	switch frame.EtherType {
	case common.EtherTypeARP:
		s.stats.RxARP.Add(1)
		s.handleARP(ifc, frame.Payload)
	case common.EtherTypeIPv4:
		s.stats.RxIPv4.Add(1)
		s.handleIPv4(ifc, frame.Payload)
	default:
		s.stats.RxDropped.Add(1)
	}
}

func (s *Stack) handleARP(ifc *Interface, payload []byte) {
	pkt, err := arp.Parse(payload)
	if err != nil {
		s.stats.RxDropped.Add(1)
		s.log.WithError(err).Debug("bad ARP packet")
		return
	}

	switch {
	case pkt.IsRequest():
		if pkt.TargetIP != ifc.IP {
			return
		}
		reply := arp.NewReply(ifc.MAC, ifc.IP, pkt.SenderMAC, pkt.SenderIP)
		frame := ethernet.NewFrame(pkt.SenderMAC, ifc.MAC, common.EtherTypeARP, reply.Serialize())
		if err := s.transmit(ifc, frame); err != nil {
			s.log.WithError(err).Warn("ARP reply transmit failed")
		}
	case pkt.IsReply():
		s.ARP.Add(pkt.SenderIP, pkt.SenderMAC)
		s.log.WithFields(logrus.Fields{
			"ip":  pkt.SenderIP,
			"mac": pkt.SenderMAC,
		}).Debug("ARP cache updated")
	}
}

func (s *Stack) handleIPv4(ifc *Interface, payload []byte) {
	pkt, err := ipv4.Parse(payload)
	if err != nil {
		s.stats.RxDropped.Add(1)
		s.log.WithError(err).Debug("bad IPv4 packet")
		return
	}
	if !pkt.VerifyChecksum() {
		s.stats.RxDropped.Add(1)
		s.stats.ChecksumErr.Add(1)
		return
	}
	// There is no reassembly: a fragmented packet is handed to the
	// protocol handlers as-is, so only its first fragment's payload is
	// ever seen.
	if pkt.IsFragment() {
		s.log.WithField("src", pkt.Source).Debug("fragmented packet, processing without reassembly")
	}

	switch pkt.Protocol {
	case common.ProtocolICMP:
		s.stats.RxICMP.Add(1)
		s.handleICMP(pkt)
	case common.ProtocolTCP:
		s.stats.RxTCP.Add(1)
		s.handleTCP(pkt)
	case common.ProtocolUDP:
		s.stats.RxUDP.Add(1)
		s.handleUDP(pkt)
	default:
		s.stats.RxDropped.Add(1)
	}
}

func (s *Stack) handleICMP(pkt *ipv4.Packet) {
	msg, err := icmp.Parse(pkt.Payload)
	if err != nil || !msg.VerifyChecksum() {
		s.stats.RxDropped.Add(1)
		return
	}
	// There is no ping socket layer; replies are surfaced in the log.
	if msg.IsEchoReply() {
		s.log.WithFields(logrus.Fields{
			"from": pkt.Source,
			"id":   msg.ID,
			"seq":  msg.Sequence,
		}).Info("echo reply")
		return
	}
	s.log.WithFields(logrus.Fields{"from": pkt.Source, "type": msg.Type}).Debug("ICMP message")
}

func (s *Stack) handleTCP(pkt *ipv4.Packet) {
	seg, err := tcp.Parse(pkt.Payload)
	if err != nil {
		s.stats.RxDropped.Add(1)
		s.log.WithError(err).Debug("bad TCP segment")
		return
	}
	// Inbound TCP checksums are not verified: Serialize emits a bare
	// 20-byte header, so re-serializing a segment that arrived with
	// options would not reproduce the peer's wire bytes.
	s.TCP.HandleSegment(pkt.Source, pkt.Destination, seg)
}

func (s *Stack) handleUDP(pkt *ipv4.Packet) {
	dgram, err := udp.Parse(pkt.Payload)
	if err != nil {
		s.stats.RxDropped.Add(1)
		return
	}
	// No socket layer to deliver to.
	s.log.WithFields(logrus.Fields{
		"from":  pkt.Source,
		"sport": dgram.SourcePort,
		"dport": dgram.DestinationPort,
		"len":   len(dgram.Data),
	}).Debug("UDP datagram")
}

// SendARPRequest broadcasts a who-has request for targetIP out of the
// default interface.
func (s *Stack) SendARPRequest(targetIP common.IPv4Address) error {
	ifc, err := s.ifaces.primary()
	if err != nil {
		return err
	}
	req := arp.NewRequest(ifc.MAC, ifc.IP, targetIP)
	frame := ethernet.NewFrame(common.BroadcastMAC, ifc.MAC, common.EtherTypeARP, req.Serialize())
	return s.transmit(ifc, frame)
}

// SendEchoRequest sends an ICMP echo request with the given identifier
// and sequence number to dst.
func (s *Stack) SendEchoRequest(dst common.IPv4Address, id, seq uint16) error {
	msg := icmp.NewEchoRequest(id, seq)
	pkt := ipv4.NewPacket(common.IPv4Address{}, dst, common.ProtocolICMP, msg.Serialize())
	pkt.Identification = 1
	return s.transmitIPv4(pkt)
}

// SendUDP sends a one-shot UDP datagram and returns the number of
// payload bytes sent. The checksum is left at zero, which UDP over IPv4
// permits.
func (s *Stack) SendUDP(dst common.IPv4Address, srcPort, dstPort uint16, data []byte) (int, error) {
	if len(data) > udp.MaxPayloadSize {
		return 0, fmt.Errorf("netstack: UDP payload too large: %d bytes", len(data))
	}
	dgram := udp.NewPacket(srcPort, dstPort, data)
	pkt := ipv4.NewPacket(common.IPv4Address{}, dst, common.ProtocolUDP, dgram.Serialize())
	pkt.Identification = 1
	if err := s.transmitIPv4(pkt); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Connect opens a TCP connection to dst:port. The local address is the
// default interface's address.
func (s *Stack) Connect(dst common.IPv4Address, port uint16) (int, error) {
	ifc, err := s.ifaces.primary()
	if err != nil {
		return -1, err
	}
	return s.TCP.Connect(ifc.IP, dst, port)
}

// sendTCPSegment is the transmit hook wired into the TCP table. It
// fills in the pseudo-header checksum and stamps the IP header the way
// the rest of the stack expects for TCP: the identification field
// carries the low 16 bits of the sequence number and DF is set.
func (s *Stack) sendTCPSegment(local, remote common.IPv4Address, seg *tcp.Segment) error {
	seg.CalculateChecksum(local, remote)
	pkt := ipv4.NewPacket(local, remote, common.ProtocolTCP, seg.Serialize())
	pkt.Identification = uint16(seg.SequenceNumber & 0xFFFF)
	pkt.FlagsFragment = ipv4.FlagDontFragment
	return s.transmitIPv4(pkt)
}

// transmitIPv4 sends pkt out of the default interface. The source
// address is filled in from the interface when the caller left it zero.
// The link-layer destination is always the broadcast address.
func (s *Stack) transmitIPv4(pkt *ipv4.Packet) error {
	ifc, err := s.ifaces.primary()
	if err != nil {
		return err
	}
	if (pkt.Source == common.IPv4Address{}) {
		pkt.Source = ifc.IP
	}
	frame := ethernet.NewFrame(common.BroadcastMAC, ifc.MAC, common.EtherTypeIPv4, pkt.Serialize())
	return s.transmit(ifc, frame)
}

func (s *Stack) transmit(ifc *Interface, frame *ethernet.Frame) error {
	if !ifc.Up {
		return fmt.Errorf("netstack: interface %s is down", ifc.Name)
	}
	if ifc.Transmit == nil {
		return fmt.Errorf("netstack: interface %s has no transmit function", ifc.Name)
	}
	data := frame.Serialize()
	if err := ifc.Transmit(data); err != nil {
		return fmt.Errorf("netstack: transmit on %s: %w", ifc.Name, err)
	}
	s.stats.TxFrames.Add(1)
	atomic.AddUint64(&ifc.TxPackets, 1)
	atomic.AddUint64(&ifc.TxBytes, uint64(len(data)))
	return nil
}
