//go:build !linux

package ethernet

import (
	"errors"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

// Device requires AF_PACKET sockets and exists only on Linux.
type Device struct{}

var errUnsupported = errors.New("raw packet sockets are only supported on linux")

// OpenDevice is unavailable on this platform.
func OpenDevice(ifname string) (*Device, error) {
	return nil, errUnsupported
}

func (d *Device) Name() string                  { return "" }
func (d *Device) MACAddress() common.MACAddress { return common.MACAddress{} }
func (d *Device) Transmit(frame []byte) error   { return errUnsupported }
func (d *Device) ReadFrame() ([]byte, error)    { return nil, errUnsupported }
func (d *Device) Close() error                  { return nil }
