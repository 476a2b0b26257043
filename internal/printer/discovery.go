package printer

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/gousb"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Device is a printer candidate found on this machine
type Device struct {
	Path        string `json:"path"` // usable as device.path
	Type        string `json:"type"` // serial, usb
	Description string `json:"description"`
}

// ListPorts lists serial ports, with USB details where the OS reports them
func ListPorts() ([]Device, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil || len(details) == 0 {
		// Some platforms only support the plain listing
		names, err := serial.GetPortsList()
		if err != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", err)
		}
		devices := make([]Device, 0, len(names))
		for _, name := range names {
			devices = append(devices, Device{Path: name, Type: "serial", Description: "Serial: " + name})
		}
		return devices, nil
	}

	devices := make([]Device, 0, len(details))
	for _, d := range details {
		desc := "Serial: " + d.Name
		if d.IsUSB {
			usb := strings.TrimSpace(fmt.Sprintf("USB %s:%s %s", d.VID, d.PID, d.Product))
			desc = fmt.Sprintf("Serial: %s (%s)", d.Name, usb)
		}
		devices = append(devices, Device{Path: d.Name, Type: "serial", Description: desc})
	}
	return devices, nil
}

// ListCandidates lists serial ports followed by USB printers. USB
// enumeration is best effort since libusb may be missing.
func ListCandidates() ([]Device, error) {
	devices, err := ListPorts()
	usb, usbErr := DetectUSB()
	if err != nil && usbErr != nil {
		return nil, err
	}
	return append(devices, usb...), nil
}

// DetectUSB lists USB devices of the printer class. It returns an error when
// libusb is unavailable.
func DetectUSB() ([]Device, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var devices []Device
	found, err := ctx.OpenDevices(isPrinterClass)
	for _, dev := range found {
		desc := dev.Desc
		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()

		description := fmt.Sprintf("USB: %s:%s", desc.Vendor, desc.Product)
		if manufacturer != "" || product != "" {
			description = fmt.Sprintf("USB: %s %s (%s:%s)", manufacturer, product, desc.Vendor, desc.Product)
		}

		devices = append(devices, Device{
			Path:        fmt.Sprintf("usb://%s:%s", desc.Vendor, desc.Product),
			Type:        "usb",
			Description: description,
		})
		dev.Close()
	}
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	return devices, nil
}

func isPrinterClass(desc *gousb.DeviceDesc) bool {
	if desc.Class == gousb.ClassPrinter {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

// Present reports whether the device behind a device.path is reachable
// without opening it.
func Present(path string) bool {
	switch {
	case strings.HasPrefix(path, "tcp://"):
		addr := strings.TrimPrefix(path, "tcp://")
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, DefaultNetworkPort)
		}
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	case strings.HasPrefix(path, "usb://"):
		devices, err := DetectUSB()
		if err != nil {
			return false
		}
		want := strings.ToLower(path)
		for _, d := range devices {
			if strings.ToLower(d.Path) == want {
				return true
			}
		}
		return false
	default:
		ports, err := serial.GetPortsList()
		if err != nil {
			return false
		}
		for _, p := range ports {
			if p == path {
				return true
			}
		}
		return false
	}
}
