package tui

import (
	"io"
	"sync"
)

// LogSink holds log output written before the dashboard exists and then
// forwards to it
type LogSink struct {
	mu      sync.Mutex
	pending [][]byte
	target  io.Writer
}

func (s *LogSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.target != nil {
		return s.target.Write(p)
	}
	s.pending = append(s.pending, append([]byte(nil), p...))
	if len(s.pending) > maxLogLines {
		s.pending = s.pending[len(s.pending)-maxLogLines:]
	}
	return len(p), nil
}

// Attach flushes held output to w and sends everything after it there too
func (s *LogSink) Attach(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pending {
		w.Write(p)
	}
	s.pending = nil
	s.target = w
}
