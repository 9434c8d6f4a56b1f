//go:build linux

package usbmon

import (
	"context"
	"errors"
	"syscall"
)

// netlinkKobjectUEvent is the netlink protocol for kernel object events.
const netlinkKobjectUEvent = 15

// Monitor listens for USB uevents on a netlink socket.
type Monitor struct {
	fd int

	// wholeDeviceOnly drops usb_interface events, which arrive in
	// bursts alongside every usb_device event.
	wholeDeviceOnly bool
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WholeDevicesOnly drops per-interface events.
func WholeDevicesOnly() MonitorOption {
	return func(m *Monitor) { m.wholeDeviceOnly = true }
}

// NewMonitor opens the netlink socket and binds to the kernel
// broadcast group.
func NewMonitor(opts ...MonitorOption) (*Monitor, error) {
	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_DGRAM|syscall.SOCK_CLOEXEC, netlinkKobjectUEvent)
	if err != nil {
		return nil, err
	}

	addr := &syscall.SockaddrNetlink{
		Family: syscall.AF_NETLINK,
		Groups: 1, // kernel broadcast group
	}
	if err := syscall.Bind(fd, addr); err != nil {
		syscall.Close(fd)
		return nil, err
	}

	m := &Monitor{fd: fd}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Close releases the netlink socket.
func (m *Monitor) Close() error {
	return syscall.Close(m.fd)
}

// Run reads uevents and sends USB ones to the channel until the
// context is cancelled or a socket error occurs. The channel is closed
// when Run returns.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	buf := make([]byte, 8192)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Read timeout so the context is checked periodically.
		tv := syscall.Timeval{Sec: 1}
		if err := syscall.SetsockoptTimeval(m.fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
			return err
		}

		n, _, err := syscall.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		event := ParseUEvent(buf[:n])
		if event == nil || event.Subsystem != "usb" {
			continue
		}
		if m.wholeDeviceOnly && event.DevType != DevTypeUSBDevice {
			continue
		}

		select {
		case events <- *event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
