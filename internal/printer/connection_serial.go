package printer

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate suits most thermal printers
const DefaultBaudRate = 9600

// SerialConnection is a printer on a serial device
type SerialConnection struct {
	port serial.Port
}

// ConnectSerial opens device at baud, 8N1, with reads bounded by timeout
func ConnectSerial(device string, baud int, timeout time.Duration) (*SerialConnection, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &SerialConnection{port: port}, nil
}

// Read returns 0 bytes and no error when the read timeout passes
func (c *SerialConnection) Read(p []byte) (int, error) {
	return c.port.Read(p)
}

func (c *SerialConnection) Write(p []byte) (int, error) {
	return c.port.Write(p)
}

// Flush waits until the output buffer has been transmitted
func (c *SerialConnection) Flush() error {
	return c.port.Drain()
}

func (c *SerialConnection) Close() error {
	return c.port.Close()
}
