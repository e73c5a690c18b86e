// Package network tracks connectivity state for the offline-first services.
//
// The host application reports transitions through SetOnline (mobile shells
// observe the platform's reachability APIs); an optional probe loop can feed
// the same signal from periodic API health checks.
package network

import (
	"context"
	"sync"
	"time"

	"github.com/serenemind/serene/backend/internal/logging"
)

// Listener is notified on every connectivity transition.
type Listener func(online bool)

// Monitor holds the current connectivity state and fans out transitions.
type Monitor struct {
	log *logging.Logger

	mu        sync.RWMutex
	online    bool
	listeners map[int]Listener
	nextID    int
}

// NewMonitor creates a connectivity monitor. Connectivity is assumed present
// until reported otherwise.
func NewMonitor(log *logging.Logger) *Monitor {
	return &Monitor{
		log:       log.WithComponent("network"),
		online:    true,
		listeners: make(map[int]Listener),
	}
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline records a connectivity change. Listeners are notified only on
// actual transitions.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	m.log.Info("connectivity changed", map[string]interface{}{"online": online})
	for _, fn := range listeners {
		fn(online)
	}
}

// Subscribe registers a transition listener. The returned function
// unsubscribes it.
func (m *Monitor) Subscribe(fn Listener) func() {
	m.mu.Lock()
	idx := m.nextID
	m.nextID++
	m.listeners[idx] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, idx)
		m.mu.Unlock()
	}
}

// Pinger checks reachability of the remote API.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe feeds the monitor from periodic health checks. Useful on platforms
// without a native reachability signal.
type Probe struct {
	monitor  *Monitor
	pinger   Pinger
	interval time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewProbe creates a probe feeding monitor from pinger at the given interval.
func NewProbe(monitor *Monitor, pinger Pinger, interval time.Duration) *Probe {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Probe{monitor: monitor, pinger: pinger, interval: interval}
}

// Start begins probing.
func (p *Probe) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})

	p.wg.Add(1)
	go p.loop(p.stopCh)
}

// Stop halts probing.
func (p *Probe) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Probe) loop(stopCh chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			err := p.pinger.Ping(ctx)
			cancel()
			p.monitor.SetOnline(err == nil)
		}
	}
}
