package printer

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// DefaultNetworkPort is the raw printing port of most network printers
const DefaultNetworkPort = "9100"

// NetworkConnection is a printer reached over raw TCP
type NetworkConnection struct {
	conn    net.Conn
	timeout time.Duration
}

// ConnectNetwork dials address ("host" or "host:port")
func ConnectNetwork(address string, timeout time.Duration) (*NetworkConnection, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultNetworkPort)
	}

	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network printer: %w", err)
	}

	return &NetworkConnection{conn: conn, timeout: timeout}, nil
}

// Read returns 0 bytes and no error when nothing arrives before the deadline
func (c *NetworkConnection) Read(p []byte) (int, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	n, err := c.conn.Read(p)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

func (c *NetworkConnection) Write(p []byte) (int, error) {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.conn.Write(p)
}

// Flush is a no-op: TCP writes are handed to the kernel as they are made
func (c *NetworkConnection) Flush() error {
	return nil
}

func (c *NetworkConnection) Close() error {
	return c.conn.Close()
}
