//go:build linux

package usbmon

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Device is one USB device found in sysfs.
type Device struct {
	VendorID  uint16
	ProductID uint16
	Product   string
	Serial    string
	SysPath   string
}

const sysfsUSBDevices = "/sys/bus/usb/devices"

// ListDevices enumerates USB devices from sysfs. Interfaces and hubs
// without an idVendor file are skipped.
func ListDevices() ([]Device, error) {
	return listDevices(sysfsUSBDevices)
}

func listDevices(root string) ([]Device, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var devices []Device
	for _, entry := range entries {
		// Interface directories contain a colon (e.g. "1-1:1.0").
		if strings.Contains(entry.Name(), ":") {
			continue
		}
		path := filepath.Join(root, entry.Name())

		vendor, ok := readHex16(filepath.Join(path, "idVendor"))
		if !ok {
			continue
		}
		product, ok := readHex16(filepath.Join(path, "idProduct"))
		if !ok {
			continue
		}

		devices = append(devices, Device{
			VendorID:  vendor,
			ProductID: product,
			Product:   readString(filepath.Join(path, "product")),
			Serial:    readString(filepath.Join(path, "serial")),
			SysPath:   path,
		})
	}
	return devices, nil
}

func readHex16(path string) (uint16, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

func readString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
