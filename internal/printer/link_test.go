package printer

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubPort records writes. When block is set, Write signals started and then
// waits for block to be closed.
type stubPort struct {
	mu      sync.Mutex
	written bytes.Buffer
	flushes int
	closed  bool

	block   chan struct{}
	started chan struct{}
	readErr error
}

func (p *stubPort) Read(b []byte) (int, error) {
	return 0, p.readErr
}

func (p *stubPort) Write(b []byte) (int, error) {
	if p.block != nil {
		select {
		case p.started <- struct{}{}:
		default:
		}
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *stubPort) Flush() error {
	p.mu.Lock()
	p.flushes++
	p.mu.Unlock()
	return nil
}

func (p *stubPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *stubPort) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func newBlockingPort() *stubPort {
	return &stubPort{block: make(chan struct{}), started: make(chan struct{}, 1)}
}

func TestLinkWrite(t *testing.T) {
	port := &stubPort{}
	link := NewLink("test", port, time.Second, nil)

	n, err := link.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Expected 5 bytes written, got %d", n)
	}
	if got := string(port.Bytes()); got != "hello" {
		t.Errorf("Expected port to hold %q, got %q", "hello", got)
	}

	if err := link.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if port.flushes != 1 {
		t.Errorf("Expected 1 flush, got %d", port.flushes)
	}

	stats := link.Stats()
	if stats.BytesWritten != 5 || stats.Operations != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.LastActivity.IsZero() {
		t.Error("Expected last activity to be set")
	}
}

func TestLinkConcurrentWriteIsBusy(t *testing.T) {
	port := newBlockingPort()
	link := NewLink("test", port, 5*time.Second, nil)

	first := make(chan error, 1)
	go func() {
		_, err := link.Write([]byte("first"))
		first <- err
	}()
	<-port.started

	// The second caller must fail immediately, not queue behind the first
	start := time.Now()
	_, err := link.Write([]byte("second"))
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Expected ErrBusy, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Busy write took %v, expected it to fail fast", elapsed)
	}

	close(port.block)
	if err := <-first; err != nil {
		t.Fatalf("First write failed: %v", err)
	}

	if got := string(port.Bytes()); got != "first" {
		t.Errorf("Expected only the first write on the port, got %q", got)
	}
	if link.Stats().Busy != 1 {
		t.Errorf("Expected 1 busy refusal, got %d", link.Stats().Busy)
	}
}

func TestLinkWriteTimeout(t *testing.T) {
	port := newBlockingPort()
	link := NewLink("test", port, 50*time.Millisecond, nil)

	_, err := link.Write([]byte("stuck"))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, ErrIO) {
		t.Errorf("Expected timeout to be an io error, got %v", err)
	}

	// The stuck write still holds the link
	if _, err := link.Write([]byte("next")); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy while the device is stuck, got %v", err)
	}

	close(port.block)

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := link.Write([]byte("next"))
		if err == nil {
			break
		}
		if !errors.Is(err, ErrBusy) || time.Now().After(deadline) {
			t.Fatalf("Expected link to recover, got %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLinkReadNoData(t *testing.T) {
	link := NewLink("test", &stubPort{}, time.Second, nil)

	n, err := link.Read(make([]byte, 4))
	if n != 0 {
		t.Errorf("Expected 0 bytes, got %d", n)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

// lateReadPort delivers its data only after release is closed
type lateReadPort struct {
	stubPort
	release chan struct{}
	done    chan struct{}
}

func (p *lateReadPort) Read(b []byte) (int, error) {
	<-p.release
	defer close(p.done)
	return copy(b, "x"), nil
}

func TestLinkReadTimeoutKeepsCallerBuffer(t *testing.T) {
	port := &lateReadPort{release: make(chan struct{}), done: make(chan struct{})}
	link := NewLink("test", port, 20*time.Millisecond, nil)

	buf := []byte("....")
	n, err := link.Read(buf)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 bytes, got %d", n)
	}

	// The caller owns buf again; the late read must not land in it
	buf[0] = 'a'
	close(port.release)
	<-port.done

	if string(buf) != "a..." {
		t.Errorf("Expected caller buffer untouched, got %q", buf)
	}

	deadline := time.Now().Add(2 * time.Second)
	for link.Stats().BytesRead != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected the late byte to be counted, got %+v", link.Stats())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLinkWriteTimeoutCopiesInput(t *testing.T) {
	port := newBlockingPort()
	link := NewLink("test", port, 20*time.Millisecond, nil)

	data := []byte("stuck")
	if _, err := link.Write(data); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	copy(data, "XXXXX")
	close(port.block)

	deadline := time.Now().Add(2 * time.Second)
	for string(port.Bytes()) != "stuck" {
		if time.Now().After(deadline) {
			t.Fatalf("Expected the original bytes on the port, got %q", port.Bytes())
		}
		time.Sleep(5 * time.Millisecond)
	}
	for link.Stats().BytesWritten != 5 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected late write to be counted, got %+v", link.Stats())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLinkReadError(t *testing.T) {
	link := NewLink("test", &stubPort{readErr: errors.New("unplugged")}, time.Second, nil)

	_, err := link.Read(make([]byte, 4))
	if !errors.Is(err, ErrIO) || errors.Is(err, ErrTimeout) {
		t.Errorf("Expected a plain io error, got %v", err)
	}
	if link.Stats().Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", link.Stats().Failures)
	}
}

func TestLinkNotConnected(t *testing.T) {
	link := NewLink("test", nil, time.Second, nil)

	if _, err := link.Write([]byte("x")); !errors.Is(err, ErrIO) {
		t.Errorf("Expected ErrIO, got %v", err)
	}
	if err := link.Reopen(); !errors.Is(err, ErrIO) {
		t.Errorf("Expected ErrIO from Reopen without an opener, got %v", err)
	}
}

func TestLinkReopenAndClose(t *testing.T) {
	old := &stubPort{}
	fresh := &stubPort{}
	link := NewLink("test", old, time.Second, nil)
	link.opener = func() (Port, error) { return fresh, nil }

	if err := link.Reopen(); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if !old.closed {
		t.Error("Expected the old port to be closed")
	}

	if _, err := link.Write([]byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if string(fresh.Bytes()) != "x" {
		t.Error("Expected write to reach the reopened port")
	}

	if err := link.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !fresh.closed {
		t.Error("Expected port to be closed")
	}
	if _, err := link.Write([]byte("x")); !errors.Is(err, ErrIO) {
		t.Errorf("Expected ErrIO after Close, got %v", err)
	}
}

func TestOpenInvalidUSBPath(t *testing.T) {
	_, err := Open("usb://nope", 0, time.Second, nil)
	if !errors.Is(err, ErrIO) {
		t.Errorf("Expected ErrIO, got %v", err)
	}
}

func TestParseUSBID(t *testing.T) {
	vid, pid, err := ParseUSBID("04b8:0e15")
	if err != nil {
		t.Fatalf("ParseUSBID failed: %v", err)
	}
	if vid != 0x04b8 || pid != 0x0e15 {
		t.Errorf("Expected 04b8:0e15, got %04x:%04x", vid, pid)
	}

	for _, bad := range []string{"", "04b8", "zz:0e15", "04b8:"} {
		if _, _, err := ParseUSBID(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrBusy, KindBusy},
		{ErrTimeout, KindIO},
		{errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
