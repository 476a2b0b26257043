package printer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor polls for the configured printer and reopens the link when it
// comes back after being unplugged.
type Monitor struct {
	link     *Link
	path     string
	interval time.Duration
	present  func(path string) bool
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	available bool
	onAdded   func(name string)
	onRemoved func(name string)
}

// NewMonitor creates a monitor for the device at path. The link is assumed
// present, as it was just opened.
func NewMonitor(link *Link, path string, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		link:      link,
		path:      path,
		interval:  interval,
		present:   Present,
		logger:    logger.With(zap.String("component", "monitor")),
		ctx:       ctx,
		cancel:    cancel,
		available: true,
	}
}

// OnPrinterAdded sets a callback for when the printer appears
func (m *Monitor) OnPrinterAdded(callback func(name string)) {
	m.mu.Lock()
	m.onAdded = callback
	m.mu.Unlock()
}

// OnPrinterRemoved sets a callback for when the printer disappears
func (m *Monitor) OnPrinterRemoved(callback func(name string)) {
	m.mu.Lock()
	m.onRemoved = callback
	m.mu.Unlock()
}

// Available reports the last observed presence
func (m *Monitor) Available() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available
}

// Start begins polling
func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.check()
			}
		}
	}()
}

// Stop stops polling and waits for the poller to exit
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) check() {
	now := m.present(m.path)

	m.mu.Lock()
	was := m.available
	m.available = now
	added, removed := m.onAdded, m.onRemoved
	m.mu.Unlock()

	switch {
	case now && !was:
		m.logger.Info("printer added", zap.String("path", m.path))
		if err := m.link.Reopen(); err != nil {
			// try again on the next tick
			m.logger.Warn("failed to reopen printer link", zap.Error(err))
			m.mu.Lock()
			m.available = false
			m.mu.Unlock()
			return
		}
		if added != nil {
			added(m.link.Name())
		}
	case !now && was:
		m.logger.Warn("printer removed", zap.String("path", m.path))
		if removed != nil {
			removed(m.link.Name())
		}
	}
}
