// Package netmon observes network reachability and emits debounced
// transition events. It only observes; it never retries failed work.
package netmon

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/porter/internal/core/logging"
)

const (
	defaultProbeInterval = 5 * time.Second
	defaultDebounce      = 500 * time.Millisecond
	defaultProbeTimeout  = 3 * time.Second
	eventBufferSize      = 16
)

// Event is a single reachability transition.
type Event struct {
	Online bool
	At     time.Time
}

// ProbeFunc reports current reachability. It must respect ctx cancellation.
type ProbeFunc func(ctx context.Context) bool

// HTTPProbe returns a probe that issues a HEAD request against the given
// URL. Any response, including an error status, counts as reachable; only
// transport failures count as offline.
func HTTPProbe(url string) ProbeFunc {
	client := &http.Client{Timeout: defaultProbeTimeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}
}

// Options tunes the monitor's probing and debounce behavior.
type Options struct {
	// ProbeInterval is how often reachability is re-checked.
	ProbeInterval time.Duration
	// Debounce is the window within which flapping transitions collapse
	// into the final observed state.
	Debounce time.Duration
}

// Monitor tracks reachability via a periodic probe and publishes at most
// one event per real transition.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	debounce time.Duration
	log      zerolog.Logger

	mu        sync.Mutex
	published bool // last state delivered to subscribers
	observed  bool // most recent probe result
	settle    *time.Timer
	subs      []chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a monitor and seeds its state with one synchronous probe.
// The periodic probe loop runs until Close.
func New(probe ProbeFunc, opts Options, log zerolog.Logger) *Monitor {
	interval := opts.ProbeInterval
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		probe:    probe,
		interval: interval,
		debounce: debounce,
		log:      logging.Component(log, "netmon"),
		ctx:      ctx,
		cancel:   cancel,
	}

	initial := probe(ctx)
	m.published = initial
	m.observed = initial

	m.wg.Add(1)
	go m.run()

	return m
}

// Online returns the current published reachability state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published
}

// Watch returns a channel receiving transition events. The subscription is
// released when ctx is cancelled; the channel is closed on release and on
// monitor Close.
func (m *Monitor) Watch(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, eventBufferSize)

	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			m.unsubscribe(ch)
		case <-m.ctx.Done():
			// Monitor is closing, channel will be closed by Close()
		}
	}()

	return ch, nil
}

// Refresh re-probes reachability immediately and publishes any transition
// without waiting out the debounce window. Used when the process resumes
// after a suspension that may have swallowed transitions.
func (m *Monitor) Refresh(ctx context.Context) {
	state := m.probe(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.observed = state
	if m.settle != nil {
		m.settle.Stop()
		m.settle = nil
	}
	m.publishLocked(state)
}

// Close stops probing and closes all subscriber channels.
func (m *Monitor) Close() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settle != nil {
		m.settle.Stop()
		m.settle = nil
	}
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
}

func (m *Monitor) unsubscribe(ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subs {
		if sub == ch {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			close(ch)
			break
		}
	}
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.observe(m.probe(m.ctx))
		}
	}
}

// observe records a probe result and arms the debounce timer. Transitions
// that flap within the window collapse into whatever state holds when the
// timer fires.
func (m *Monitor) observe(state bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.observed = state
	if state == m.published {
		if m.settle != nil {
			m.settle.Stop()
			m.settle = nil
		}
		return
	}

	if m.settle != nil {
		m.settle.Stop()
	}
	m.settle = time.AfterFunc(m.debounce, m.settled)
}

func (m *Monitor) settled() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settle = nil
	m.publishLocked(m.observed)
}

// publishLocked emits an event if the state differs from the published one.
// Callers must hold mu.
func (m *Monitor) publishLocked(state bool) {
	if state == m.published {
		return
	}
	m.published = state

	m.log.Info().Bool("online", state).Msg("connectivity changed")

	event := Event{Online: state, At: time.Now()}
	for _, ch := range m.subs {
		select {
		case ch <- event:
		default:
			// Channel full, drop event to prevent blocking
		}
	}
}
