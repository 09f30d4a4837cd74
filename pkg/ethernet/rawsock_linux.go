//go:build linux

package ethernet

import (
	"fmt"
	"net"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

// Device is an AF_PACKET raw socket bound to a physical interface. It
// supplies the transmit capability the stack injects into its interface
// registry, and a blocking receive loop for feeding frames back in.
// Opening a device requires CAP_NET_RAW.
type Device struct {
	name  string
	fd    int
	mac   common.MACAddress
	index int
}

// OpenDevice opens ifname for raw frame transmission and reception.
// A classic BPF filter is attached so the socket only delivers ARP and
// IPv4 frames, the two ethertypes the core dispatches.
func OpenDevice(ifname string) (*Device, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", ifname, err)
	}
	if len(iface.HardwareAddr) != 6 {
		return nil, fmt.Errorf("interface %s: unexpected hardware address length %d", ifname, len(iface.HardwareAddr))
	}
	var mac common.MACAddress
	copy(mac[:], iface.HardwareAddr)

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("raw socket: %w (CAP_NET_RAW required)", err)
	}

	sll := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, sll); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", ifname, err)
	}

	if err := attachEtherTypeFilter(fd); err != nil {
		unix.Close(fd)
		return nil, err
	}

	return &Device{name: ifname, fd: fd, mac: mac, index: iface.Index}, nil
}

// attachEtherTypeFilter installs a classic BPF program that accepts only
// ARP (0x0806) and IPv4 (0x0800) frames.
func attachEtherTypeFilter(fd int) error {
	prog, err := bpf.Assemble([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(common.EtherTypeARP), SkipTrue: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(common.EtherTypeIPv4), SkipFalse: 1},
		bpf.RetConstant{Val: MaxFrameSize},
		bpf.RetConstant{Val: 0},
	})
	if err != nil {
		return fmt.Errorf("assemble filter: %w", err)
	}

	filter := make([]unix.SockFilter, len(prog))
	for i, ins := range prog {
		filter[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	fprog := unix.SockFprog{Len: uint16(len(filter)), Filter: &filter[0]}
	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &fprog); err != nil {
		return fmt.Errorf("attach filter: %w", err)
	}
	return nil
}

// Name returns the interface name.
func (d *Device) Name() string { return d.name }

// MACAddress returns the hardware address of the underlying interface.
func (d *Device) MACAddress() common.MACAddress { return d.mac }

// Transmit sends a serialized frame. It blocks until the kernel accepts
// the frame, matching the synchronous transmit contract of the core.
func (d *Device) Transmit(frame []byte) error {
	if len(frame) < HeaderSize {
		return fmt.Errorf("frame too short: %d bytes", len(frame))
	}
	sll := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  d.index,
		Halen:    6,
	}
	copy(sll.Addr[:], frame[0:6])
	if err := unix.Sendto(d.fd, frame, 0, sll); err != nil {
		return fmt.Errorf("sendto %s: %w", d.name, err)
	}
	return nil
}

// ReadFrame blocks until a frame arrives and returns its bytes.
func (d *Device) ReadFrame() ([]byte, error) {
	buf := make([]byte, MaxFrameSize)
	n, _, err := unix.Recvfrom(d.fd, buf, 0)
	if err != nil {
		return nil, fmt.Errorf("recvfrom %s: %w", d.name, err)
	}
	return buf[:n], nil
}

// Close releases the raw socket.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// htons converts a 16-bit value to network byte order for the AF_PACKET
// sockaddr and socket protocol fields.
func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}
