package netstack

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

// MaxInterfaces is the fixed size of the interface registry.
const MaxInterfaces = 4

// ErrNoInterface is returned when an operation needs an interface and
// none is registered, or the named interface does not exist.
var ErrNoInterface = errors.New("netstack: no such interface")

// ErrTooManyInterfaces is returned when the registry is full.
var ErrTooManyInterfaces = errors.New("netstack: interface registry full")

// TransmitFunc puts a serialized Ethernet frame on the wire.
type TransmitFunc func(frame []byte) error

// Interface is one registered network interface. Counters are updated
// by the stack on every frame that passes through it.
type Interface struct {
	Name    string
	MAC     common.MACAddress
	IP      common.IPv4Address
	Netmask common.IPv4Address
	Gateway common.IPv4Address
	Up      bool

	Transmit TransmitFunc

	RxPackets uint64
	RxBytes   uint64
	TxPackets uint64
	TxBytes   uint64
}

func (ifc *Interface) String() string {
	state := "down"
	if ifc.Up {
		state = "up"
	}
	return fmt.Sprintf("%s: %s %s/%s gw %s (%s)",
		ifc.Name, ifc.MAC, ifc.IP, ifc.Netmask, ifc.Gateway, state)
}

// registry holds up to MaxInterfaces interfaces in registration order.
// Registration is append-only; interfaces are never removed, only
// marked down. Slot 0 is the default route for every outbound packet.
type registry struct {
	mu     sync.Mutex
	ifaces []*Interface
}

func (r *registry) add(ifc *Interface) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ifaces) >= MaxInterfaces {
		return ErrTooManyInterfaces
	}
	r.ifaces = append(r.ifaces, ifc)
	return nil
}

// primary returns the default outbound interface, slot 0.
func (r *registry) primary() (*Interface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ifaces) == 0 {
		return nil, ErrNoInterface
	}
	return r.ifaces[0], nil
}

func (r *registry) byName(name string) (*Interface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ifc := range r.ifaces {
		if ifc.Name == name {
			return ifc, nil
		}
	}
	return nil, ErrNoInterface
}

func (r *registry) all() []*Interface {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Interface, len(r.ifaces))
	copy(out, r.ifaces)
	return out
}

func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ifaces = nil
}
