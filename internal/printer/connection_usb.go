package printer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/gousb"
)

// USBConnection is a printer driven through its bulk endpoints
type USBConnection struct {
	ctx     *gousb.Context
	device  *gousb.Device
	iface   *gousb.Interface
	release func()
	out     *gousb.OutEndpoint
	in      *gousb.InEndpoint
	timeout time.Duration
}

// ParseUSBID parses "VID:PID" in hex, e.g. "04b8:0e15"
func ParseUSBID(s string) (uint16, uint16, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid USB id %q, want VID:PID", s)
	}
	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid vendor id %q: %w", parts[0], err)
	}
	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid product id %q: %w", parts[1], err)
	}
	return uint16(vid), uint16(pid), nil
}

// ConnectUSB opens the first interface of vid:pid that has a bulk OUT
// endpoint. Requires libusb.
func ConnectUSB(vid, pid uint16, timeout time.Duration) (*USBConnection, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("failed to open USB device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("device not found: %04x:%04x", vid, pid)
	}

	// Kernel printer drivers (usblp) hold the interface otherwise
	dev.SetAutoDetach(true)

	conn := &USBConnection{ctx: ctx, device: dev, timeout: timeout}

	iface, done, err := dev.DefaultInterface()
	if err == nil {
		if conn.bind(iface) {
			conn.release = done
			return conn, nil
		}
		done()
	}

	// Fall back to scanning every configuration and interface
	var lastErr error
	for _, cfgDesc := range dev.Desc.Configs {
		cfg, err := dev.Config(cfgDesc.Number)
		if err != nil {
			lastErr = fmt.Errorf("failed to set config %d: %w", cfgDesc.Number, err)
			continue
		}
		for _, ifaceDesc := range cfgDesc.Interfaces {
			iface, err := cfg.Interface(ifaceDesc.Number, 0)
			if err != nil {
				lastErr = fmt.Errorf("failed to claim interface %d: %w", ifaceDesc.Number, err)
				continue
			}
			if conn.bind(iface) {
				conn.release = func() {
					iface.Close()
					cfg.Close()
				}
				return conn, nil
			}
			iface.Close()
		}
		cfg.Close()
	}

	dev.Close()
	ctx.Close()
	if lastErr != nil {
		return nil, fmt.Errorf("failed to connect to USB printer: %w", lastErr)
	}
	return nil, fmt.Errorf("no bulk OUT endpoint on USB printer %04x:%04x", vid, pid)
}

// bind picks the endpoints of iface, reporting whether it can print
func (c *USBConnection) bind(iface *gousb.Interface) bool {
	var out *gousb.OutEndpoint
	var in *gousb.InEndpoint
	for _, ep := range iface.Setting.Endpoints {
		switch {
		case ep.Direction == gousb.EndpointDirectionOut && out == nil:
			if e, err := iface.OutEndpoint(ep.Number); err == nil {
				out = e
			}
		case ep.Direction == gousb.EndpointDirectionIn && in == nil:
			if e, err := iface.InEndpoint(ep.Number); err == nil {
				in = e
			}
		}
	}
	if out == nil {
		return false
	}
	c.iface, c.out, c.in = iface, out, in
	return true
}

// Read returns 0 bytes and no error when the printer has nothing to say or
// has no IN endpoint
func (c *USBConnection) Read(p []byte) (int, error) {
	if c.in == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	n, err := c.in.ReadContext(ctx, p)
	if err != nil && ctx.Err() != nil {
		return n, nil
	}
	return n, err
}

func (c *USBConnection) Write(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.out.WriteContext(ctx, p)
}

// Flush is a no-op: bulk transfers complete before Write returns
func (c *USBConnection) Flush() error {
	return nil
}

func (c *USBConnection) Close() error {
	if c.release != nil {
		c.release()
	}
	if c.device != nil {
		c.device.Close()
	}
	if c.ctx != nil {
		c.ctx.Close()
	}
	return nil
}
