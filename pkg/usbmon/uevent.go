// Package usbmon watches USB device arrival and removal through kernel
// uevents, without cgo or libudev.
package usbmon

import (
	"bytes"
	"strconv"
	"strings"
)

// Actions reported for USB devices.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// DevTypeUSBDevice selects whole-device events over per-interface ones.
const DevTypeUSBDevice = "usb_device"

// Event is one kernel uevent, with the USB identity decoded from the
// PRODUCT variable when present.
type Event struct {
	Action    string            // "add", "remove", ...
	KObj      string            // kernel object path under /sys
	Subsystem string            // "usb" for everything this package emits
	DevType   string            // "usb_device" or "usb_interface"
	DevName   string            // device node, e.g. "bus/usb/001/004"
	VendorID  uint16            // from PRODUCT=vid/pid/bcd
	ProductID uint16            // from PRODUCT=vid/pid/bcd
	Env       map[string]string // raw uevent variables
}

// ParseUEvent decodes a kernel uevent message of the form
// "ACTION@KOBJ\0KEY=VALUE\0KEY=VALUE\0...". Returns nil for messages
// that do not parse.
func ParseUEvent(data []byte) *Event {
	if len(data) == 0 {
		return nil
	}

	// udevd rebroadcasts events with a binary "libudev" header in
	// front of the payload; skip to the ACTION@KOBJ part.
	if bytes.HasPrefix(data, []byte("libudev")) {
		for i := 0; i < len(data)-1; i++ {
			if data[i] == 0 {
				rest := data[i+1:]
				if idx := bytes.IndexByte(rest, '@'); idx > 0 && idx < 20 {
					data = rest
					break
				}
			}
		}
	}

	parts := bytes.Split(data, []byte{0})
	if len(parts) < 1 || len(parts[0]) == 0 {
		return nil
	}

	header := string(parts[0])
	atIdx := strings.Index(header, "@")
	if atIdx < 1 {
		return nil
	}

	event := &Event{
		Action: header[:atIdx],
		KObj:   header[atIdx+1:],
		Env:    make(map[string]string),
	}

	for _, part := range parts[1:] {
		if len(part) == 0 {
			continue
		}
		kv := string(part)
		eqIdx := strings.Index(kv, "=")
		if eqIdx < 1 {
			continue
		}
		key, value := kv[:eqIdx], kv[eqIdx+1:]
		event.Env[key] = value

		switch key {
		case "SUBSYSTEM":
			event.Subsystem = value
		case "DEVTYPE":
			event.DevType = value
		case "DEVNAME":
			event.DevName = value
		case "PRODUCT":
			event.VendorID, event.ProductID = parseProduct(value)
		}
	}

	return event
}

// parseProduct decodes "vid/pid/bcdDevice" with unpadded hex fields.
func parseProduct(s string) (vendor, product uint16) {
	fields := strings.Split(s, "/")
	if len(fields) < 2 {
		return 0, 0
	}
	v, err := strconv.ParseUint(fields[0], 16, 16)
	if err != nil {
		return 0, 0
	}
	p, err := strconv.ParseUint(fields[1], 16, 16)
	if err != nil {
		return 0, 0
	}
	return uint16(v), uint16(p)
}
