//go:build !linux

package usbmon

import (
	"context"
	"errors"
)

var errUnsupported = errors.New("usbmon: usb monitoring requires linux")

// Monitor is unavailable off linux; NewMonitor always fails.
type Monitor struct{}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WholeDevicesOnly drops per-interface events.
func WholeDevicesOnly() MonitorOption {
	return func(*Monitor) {}
}

// NewMonitor fails: uevents come from the linux kernel.
func NewMonitor(opts ...MonitorOption) (*Monitor, error) {
	return nil, errUnsupported
}

// Close is a no-op.
func (m *Monitor) Close() error { return nil }

// Run fails immediately.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	close(events)
	return errUnsupported
}

// Device is one USB device found in sysfs.
type Device struct {
	VendorID  uint16
	ProductID uint16
	Product   string
	Serial    string
	SysPath   string
}

// ListDevices fails: device listing reads linux sysfs.
func ListDevices() ([]Device, error) {
	return nil, errUnsupported
}
