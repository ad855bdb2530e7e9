package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"tether/internal/logging"
	"tether/internal/types"
)

var ErrStreamEnded = errors.New("event stream ended")

type Status int

const (
	StatusClosed Status = iota
	StatusConnecting
	StatusOpen
	StatusReconnecting
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusReconnecting:
		return "reconnecting"
	case StatusExhausted:
		return "exhausted"
	default:
		return "closed"
	}
}

// Source opens the server push channel. *client.Client implements it.
type Source interface {
	EventStream(ctx context.Context) (<-chan string, func(), error)
}

// Listener receives decoded events and connectivity changes. Callbacks run on
// the stream goroutine and must not call back into the Manager synchronously.
type Listener interface {
	HandleEvent(event types.Event)
	StreamConnected(connected bool)
	StreamExhausted(err error)
}

// AfterFunc schedules f after d and returns a func that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

type Options struct {
	Backoff   Backoff
	AfterFunc AfterFunc
	Logger    logging.Logger
}

// Manager owns the single push stream: opening it, decoding frames, and
// reconnecting with backoff when the transport drops.
type Manager struct {
	listener  Listener
	backoff   Backoff
	afterFunc AfterFunc
	logger    logging.Logger

	// deliverMu serializes listener callbacks with Open/Stop so a superseded
	// stream cannot deliver after it was torn down.
	deliverMu sync.Mutex

	mu          sync.Mutex
	source      Source
	gen         uint64
	status      Status
	attempt     int
	connected   bool
	cancelOpen  context.CancelFunc
	stopStream  func()
	cancelRetry func() bool
}

func NewManager(listener Listener, opts Options) *Manager {
	backoff := opts.Backoff
	if backoff.MaxAttempts <= 0 && backoff.Base <= 0 {
		backoff = DefaultBackoff()
	}
	afterFunc := opts.AfterFunc
	if afterFunc == nil {
		afterFunc = func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		}
	}
	return &Manager{
		listener:  listener,
		backoff:   backoff,
		afterFunc: afterFunc,
		logger:    logging.OrNop(opts.Logger).With(logging.F("component", "stream")),
	}
}

// Open tears down any current stream and opens a new one from source.
func (m *Manager) Open(source Source) {
	if source == nil {
		return
	}
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	wasConnected := m.teardownLocked()
	m.source = source
	m.attempt = 0
	m.status = StatusConnecting
	gen := m.gen
	m.mu.Unlock()

	if wasConnected {
		m.listener.StreamConnected(false)
	}
	m.logger.Info("stream open requested")
	go m.connect(gen)
}

// Reconnect reopens the stream from the last source with a fresh retry
// budget. It is the external trigger after the budget is exhausted.
func (m *Manager) Reconnect() bool {
	m.mu.Lock()
	source := m.source
	m.mu.Unlock()
	if source == nil {
		return false
	}
	m.Open(source)
	return true
}

// Stop closes the stream and cancels any scheduled retry.
func (m *Manager) Stop() {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	wasConnected := m.teardownLocked()
	m.source = nil
	m.status = StatusClosed
	m.attempt = 0
	m.mu.Unlock()

	if wasConnected {
		m.listener.StreamConnected(false)
	}
	m.logger.Info("stream stopped")
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// teardownLocked invalidates the current generation and releases its
// resources. It reports whether a stream was connected.
func (m *Manager) teardownLocked() bool {
	m.gen++
	if m.cancelRetry != nil {
		m.cancelRetry()
		m.cancelRetry = nil
	}
	if m.cancelOpen != nil {
		m.cancelOpen()
		m.cancelOpen = nil
	}
	if m.stopStream != nil {
		m.stopStream()
		m.stopStream = nil
	}
	wasConnected := m.connected
	m.connected = false
	return wasConnected
}

func (m *Manager) connect(gen uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		cancel()
		return
	}
	m.cancelOpen = cancel
	source := m.source
	m.status = StatusConnecting
	m.mu.Unlock()

	frames, stop, err := source.EventStream(ctx)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if stop != nil {
			stop()
		}
		cancel()
		return
	}
	if err != nil {
		m.cancelOpen = nil
		m.mu.Unlock()
		cancel()
		m.logger.Warn("stream open failed", logging.Err(err))
		m.scheduleRetry(gen, err)
		return
	}
	m.stopStream = func() {
		stop()
		cancel()
	}
	m.cancelOpen = nil
	m.status = StatusOpen
	m.attempt = 0
	m.mu.Unlock()

	m.logger.Info("stream open")
	if !m.deliver(gen, func() { m.setConnected(gen, true) }) {
		return
	}

	for frame := range frames {
		event, err := Decode(frame)
		if err != nil {
			m.logger.Warn("stream frame dropped", logging.Err(err))
			continue
		}
		switch event.(type) {
		case types.UnknownEvent, types.ServerConnectedEvent:
			m.logger.Debug("stream event ignored", logging.F("type", event.EventType()))
			continue
		}
		if !m.deliver(gen, func() { m.listener.HandleEvent(event) }) {
			return
		}
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.stopStream = nil
	m.status = StatusReconnecting
	m.mu.Unlock()
	cancel()

	m.logger.Warn("stream transport ended")
	m.deliver(gen, func() { m.setConnected(gen, false) })
	m.scheduleRetry(gen, ErrStreamEnded)
}

func (m *Manager) setConnected(gen uint64, connected bool) {
	m.mu.Lock()
	if gen != m.gen || m.connected == connected {
		m.mu.Unlock()
		return
	}
	m.connected = connected
	m.mu.Unlock()
	m.listener.StreamConnected(connected)
}

func (m *Manager) scheduleRetry(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	attempt := m.attempt
	delay, ok := m.backoff.Delay(attempt)
	if !ok {
		m.status = StatusExhausted
		m.mu.Unlock()
		m.logger.Error("stream disconnected, retries exhausted", logging.F("attempts", attempt), logging.Err(cause))
		m.deliver(gen, func() { m.listener.StreamExhausted(cause) })
		return
	}
	m.attempt++
	m.status = StatusReconnecting
	m.cancelRetry = m.afterFunc(delay, func() { m.retry(gen) })
	m.mu.Unlock()
	m.logger.Info("stream reconnect scheduled", logging.F("attempt", attempt), logging.F("delay", delay))
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.cancelRetry = nil
	m.mu.Unlock()
	m.connect(gen)
}

// deliver runs fn unless gen has been superseded. It reports whether the
// generation is still current.
func (m *Manager) deliver(gen uint64, fn func()) bool {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	m.mu.Lock()
	current := gen == m.gen
	m.mu.Unlock()
	if !current {
		return false
	}
	fn()
	return true
}
