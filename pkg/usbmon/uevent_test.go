package usbmon

import (
	"reflect"
	"testing"
)

func TestParseUEvent(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected *Event
	}{
		{
			name:     "empty input",
			input:    []byte{},
			expected: nil,
		},
		{
			name:     "nil input",
			input:    nil,
			expected: nil,
		},
		{
			name:     "no @ separator",
			input:    []byte("invalid"),
			expected: nil,
		},
		{
			name:     "missing action",
			input:    []byte("@/devices/foo"),
			expected: nil,
		},
		{
			name:  "usb device add",
			input: []byte("add@/devices/usb1/1-4\x00SUBSYSTEM=usb\x00DEVTYPE=usb_device\x00DEVNAME=bus/usb/001/004\x00PRODUCT=46d/825/12\x00"),
			expected: &Event{
				Action:    "add",
				KObj:      "/devices/usb1/1-4",
				Subsystem: "usb",
				DevType:   "usb_device",
				DevName:   "bus/usb/001/004",
				VendorID:  0x046d,
				ProductID: 0x0825,
				Env: map[string]string{
					"SUBSYSTEM": "usb",
					"DEVTYPE":   "usb_device",
					"DEVNAME":   "bus/usb/001/004",
					"PRODUCT":   "46d/825/12",
				},
			},
		},
		{
			name:  "usb device remove",
			input: []byte("remove@/devices/usb1/1-4\x00SUBSYSTEM=usb\x00DEVTYPE=usb_device\x00PRODUCT=1234/5678/100\x00"),
			expected: &Event{
				Action:    "remove",
				KObj:      "/devices/usb1/1-4",
				Subsystem: "usb",
				DevType:   "usb_device",
				VendorID:  0x1234,
				ProductID: 0x5678,
				Env: map[string]string{
					"SUBSYSTEM": "usb",
					"DEVTYPE":   "usb_device",
					"PRODUCT":   "1234/5678/100",
				},
			},
		},
		{
			name:  "interface event without product",
			input: []byte("bind@/devices/usb1/1-4/1-4:1.0\x00SUBSYSTEM=usb\x00DEVTYPE=usb_interface\x00"),
			expected: &Event{
				Action:    "bind",
				KObj:      "/devices/usb1/1-4/1-4:1.0",
				Subsystem: "usb",
				DevType:   "usb_interface",
				Env: map[string]string{
					"SUBSYSTEM": "usb",
					"DEVTYPE":   "usb_interface",
				},
			},
		},
		{
			name:  "malformed env entries skipped",
			input: []byte("add@/devices/usb1/1-4\x00SUBSYSTEM=usb\x00NOEQUALS\x00=novalue\x00"),
			expected: &Event{
				Action:    "add",
				KObj:      "/devices/usb1/1-4",
				Subsystem: "usb",
				Env: map[string]string{
					"SUBSYSTEM": "usb",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseUEvent(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ParseUEvent() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestParseUEventLibudevHeader(t *testing.T) {
	// udevd prepends a binary header; the parser must skip to the
	// ACTION@KOBJ payload.
	payload := []byte("add@/devices/usb1/1-4\x00SUBSYSTEM=usb\x00DEVTYPE=usb_device\x00")
	input := append([]byte("libudev\x00\xfe\xed\xca\xfe\x00"), payload...)

	got := ParseUEvent(input)
	if got == nil {
		t.Fatal("parser rejected libudev-framed event")
	}
	if got.Action != "add" || got.Subsystem != "usb" || got.DevType != "usb_device" {
		t.Errorf("got %+v", got)
	}
}

func TestParseProduct(t *testing.T) {
	tests := []struct {
		input       string
		wantVendor  uint16
		wantProduct uint16
	}{
		{"46d/825/12", 0x046d, 0x0825},
		{"1234/5678/100", 0x1234, 0x5678},
		{"ffff/ffff/0", 0xffff, 0xffff},
		{"46d", 0, 0},
		{"xyz/825/12", 0, 0},
		{"46d/xyz/12", 0, 0},
		{"", 0, 0},
	}
	for _, tt := range tests {
		vendor, product := parseProduct(tt.input)
		if vendor != tt.wantVendor || product != tt.wantProduct {
			t.Errorf("parseProduct(%q) = %04x:%04x, want %04x:%04x",
				tt.input, vendor, product, tt.wantVendor, tt.wantProduct)
		}
	}
}
