// Package printer drives a thermal receipt printer: the exclusive device
// link, ESC/POS sessions, the print service and its queue.
package printer

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every read, write and flush when none is configured
const DefaultTimeout = 10 * time.Second

// Port is the raw byte stream under a Link
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	// Flush blocks until buffered output has been transmitted
	Flush() error
	Close() error
}

// Link is the single shared connection to the printer. Every operation
// takes the link without waiting: a caller that finds it held gets ErrBusy.
// Copies of *Link share the same handle.
type Link struct {
	name    string
	timeout time.Duration
	opener  func() (Port, error)
	logger  *zap.Logger

	// mu guards port and is only ever taken with TryLock
	mu   sync.Mutex
	port Port

	bytesWritten atomic.Int64
	bytesRead    atomic.Int64
	ops          atomic.Int64
	busy         atomic.Int64
	failures     atomic.Int64
	lastActivity atomic.Int64
}

// Stats is a snapshot of link activity
type Stats struct {
	BytesWritten int64     `json:"bytes_written"`
	BytesRead    int64     `json:"bytes_read"`
	Operations   int64     `json:"operations"`
	Busy         int64     `json:"busy"`
	Failures     int64     `json:"failures"`
	LastActivity time.Time `json:"last_activity,omitempty"`
}

// Open connects to the printer at path. The transport follows the path:
// "tcp://host:port" for network printers, "usb://VID:PID" for raw USB, and
// anything else is a serial device opened at baudRate.
func Open(path string, baudRate int, timeout time.Duration, logger *zap.Logger) (*Link, error) {
	var (
		name   string
		opener func() (Port, error)
	)

	switch {
	case strings.HasPrefix(path, "tcp://"):
		addr := strings.TrimPrefix(path, "tcp://")
		name = fmt.Sprintf("Network printer (%s)", addr)
		opener = func() (Port, error) { return ConnectNetwork(addr, timeout) }
	case strings.HasPrefix(path, "usb://"):
		vid, pid, err := ParseUSBID(strings.TrimPrefix(path, "usb://"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		name = fmt.Sprintf("USB printer (%04x:%04x)", vid, pid)
		opener = func() (Port, error) { return ConnectUSB(vid, pid, timeout) }
	default:
		name = fmt.Sprintf("Serial port (%s)", path)
		opener = func() (Port, error) { return ConnectSerial(path, baudRate, timeout) }
	}

	port, err := opener()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrIO, name, err)
	}

	l := NewLink(name, port, timeout, logger)
	l.opener = opener
	l.logger.Info("printer link opened", zap.Duration("timeout", l.timeout))
	return l, nil
}

// NewLink wraps an already open port
func NewLink(name string, port Port, timeout time.Duration, logger *zap.Logger) *Link {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Link{
		name:    name,
		timeout: timeout,
		port:    port,
		logger:  logger.With(zap.String("component", "link"), zap.String("link", name)),
	}
}

// Name identifies the link in logs and status output
func (l *Link) Name() string {
	return l.name
}

// Timeout returns the per-operation timeout
func (l *Link) Timeout() time.Duration {
	return l.timeout
}

// Write sends all of p or fails. It returns ErrBusy at once when the link is
// held, and ErrTimeout when the device does not accept the bytes in time.
// p is copied first, so the caller may reuse it once Write returns.
func (l *Link) Write(p []byte) (int, error) {
	data := append([]byte(nil), p...)
	return l.run("write", func(port Port) (int, error) {
		n := 0
		defer func() { l.bytesWritten.Add(int64(n)) }()
		for n < len(data) {
			m, err := port.Write(data[n:])
			n += m
			if err != nil {
				return n, err
			}
			if m == 0 {
				return n, io.ErrShortWrite
			}
		}
		return n, nil
	})
}

// Read waits up to the link timeout for input. A read that sees no data
// returns 0 and ErrTimeout. The port reads into a link-owned buffer, so
// bytes arriving after a timeout are counted in Stats but never reach p.
func (l *Link) Read(p []byte) (int, error) {
	buf := make([]byte, len(p))
	n, err := l.run("read", func(port Port) (int, error) {
		n, err := port.Read(buf)
		l.bytesRead.Add(int64(n))
		if err == nil && n == 0 && len(buf) > 0 {
			return 0, errNoData
		}
		return n, err
	})
	copy(p, buf[:n])
	return n, err
}

// Flush blocks until written bytes have left the host
func (l *Link) Flush() error {
	_, err := l.run("flush", func(port Port) (int, error) {
		return 0, port.Flush()
	})
	return err
}

// Reopen replaces the port with a fresh connection, used after the device
// has been unplugged and comes back.
func (l *Link) Reopen() error {
	if l.opener == nil {
		return fmt.Errorf("%w: %s cannot be reopened", ErrIO, l.name)
	}
	if !l.mu.TryLock() {
		return l.busyError("reopen")
	}
	defer l.mu.Unlock()

	if l.port != nil {
		_ = l.port.Close()
	}
	port, err := l.opener()
	if err != nil {
		l.port = nil
		l.failures.Add(1)
		return fmt.Errorf("%w: failed to reopen %s: %v", ErrIO, l.name, err)
	}
	l.port = port
	l.logger.Info("printer link reopened")
	return nil
}

// Close releases the port. A held link is reported as busy.
func (l *Link) Close() error {
	if !l.mu.TryLock() {
		return l.busyError("close")
	}
	defer l.mu.Unlock()

	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	return err
}

// Stats returns a snapshot of link activity
func (l *Link) Stats() Stats {
	s := Stats{
		BytesWritten: l.bytesWritten.Load(),
		BytesRead:    l.bytesRead.Load(),
		Operations:   l.ops.Load(),
		Busy:         l.busy.Load(),
		Failures:     l.failures.Load(),
	}
	if ts := l.lastActivity.Load(); ts > 0 {
		s.LastActivity = time.Unix(0, ts)
	}
	return s
}

var errNoData = errors.New("no data")

// run executes op on the port while holding the link. The caller waits at
// most l.timeout; the link stays held until op actually returns, so a stuck
// device keeps reporting busy instead of letting writes interleave.
func (l *Link) run(name string, op func(Port) (int, error)) (int, error) {
	if !l.mu.TryLock() {
		return 0, l.busyError(name)
	}

	port := l.port
	if port == nil {
		l.mu.Unlock()
		l.failures.Add(1)
		return 0, fmt.Errorf("%w: %s: %s is not connected", ErrIO, name, l.name)
	}

	type result struct {
		n   int
		err error
	}

	l.ops.Add(1)
	done := make(chan result, 1)
	go func() {
		n, err := op(port)
		l.mu.Unlock()
		done <- result{n, err}
	}()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		l.lastActivity.Store(time.Now().UnixNano())
		if res.err == errNoData {
			return 0, fmt.Errorf("%w: %s on %s: no data within %s", ErrTimeout, name, l.name, l.timeout)
		}
		if res.err != nil {
			l.failures.Add(1)
			l.logger.Warn("link operation failed", zap.String("op", name), zap.Error(res.err))
			return res.n, fmt.Errorf("%w: %s on %s: %v", ErrIO, name, l.name, res.err)
		}
		return res.n, nil
	case <-timer.C:
		l.failures.Add(1)
		l.logger.Warn("link operation timed out", zap.String("op", name), zap.Duration("timeout", l.timeout))
		return 0, fmt.Errorf("%w: %s on %s after %s", ErrTimeout, name, l.name, l.timeout)
	}
}

func (l *Link) busyError(op string) error {
	l.busy.Add(1)
	l.logger.Debug("link busy", zap.String("op", op))
	return fmt.Errorf("%w: %s refused, %s is in use", ErrBusy, op, l.name)
}
