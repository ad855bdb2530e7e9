package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"tether/internal/client"
	"tether/internal/logging"
	"tether/internal/state"
	"tether/internal/store"
	"tether/internal/stream"
	"tether/internal/types"
)

const (
	DefaultReconnectTimeout = 5 * time.Second
	defaultReopenInterval   = 2 * time.Second
	sendErrorBuffer         = 16
)

type Options struct {
	// Persistence remembers the last connection and session. Nil keeps them
	// in memory only.
	Persistence *store.Persistence
	// Dialer defaults to HandshakeDialer with zero client options.
	Dialer           Dialer
	HandshakeTimeout time.Duration
	ReconnectTimeout time.Duration
	Backoff          stream.Backoff
	AfterFunc        stream.AfterFunc
	// ReopenInterval is the minimum spacing of stream re-opens triggered by
	// foreground transitions.
	ReopenInterval time.Duration
	Logger         logging.Logger
}

// Controller is the operation surface presentation code drives. It owns the
// state store, the event stream and the persisted connection.
type Controller struct {
	states  *state.Store
	persist *store.Persistence
	stream  *stream.Manager
	dial    Dialer
	logger  logging.Logger

	handshakeTimeout time.Duration
	reconnectTimeout time.Duration

	flights singleflight.Group
	reopen  *rate.Limiter
	errs    chan SendError
	sends   sync.WaitGroup
	bg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	// streamMu orders gen-checked opens against stops.
	streamMu  sync.Mutex
	persistMu sync.Mutex

	mu          sync.Mutex
	api         API
	gen         uint64
	lastAddress string
	streamOpens int
	foreground  bool
}

func New(opts Options) *Controller {
	logger := logging.OrNop(opts.Logger)
	persist := opts.Persistence
	if persist == nil {
		persist = store.NewPersistence(store.NewMemoryKV(), logger)
	}
	dial := opts.Dialer
	if dial == nil {
		dial = HandshakeDialer(client.Options{Logger: logger})
	}
	handshakeTimeout := opts.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = client.DefaultHandshakeTimeout
	}
	reconnectTimeout := opts.ReconnectTimeout
	if reconnectTimeout <= 0 {
		reconnectTimeout = DefaultReconnectTimeout
	}
	reopenInterval := opts.ReopenInterval
	if reopenInterval <= 0 {
		reopenInterval = defaultReopenInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		states:           state.NewStore(logger),
		persist:          persist,
		dial:             dial,
		logger:           logger.With(logging.F("component", "session")),
		handshakeTimeout: handshakeTimeout,
		reconnectTimeout: reconnectTimeout,
		reopen:           rate.NewLimiter(rate.Every(reopenInterval), 1),
		errs:             make(chan SendError, sendErrorBuffer),
		ctx:              ctx,
		cancel:           cancel,
		foreground:       true,
	}
	c.stream = stream.NewManager(streamListener{c: c}, stream.Options{
		Backoff:   opts.Backoff,
		AfterFunc: opts.AfterFunc,
		Logger:    logger,
	})
	return c
}

// Connect performs the handshake against address, then lists sessions,
// opens the event stream and restores the last active session. On failure
// the state moves to error and the persisted connection is dropped.
func (c *Controller) Connect(ctx context.Context, address string, timeout time.Duration) error {
	address = strings.TrimSpace(address)
	if timeout <= 0 {
		timeout = c.handshakeTimeout
	}
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.api = nil
	c.lastAddress = address
	c.streamOpens = 0
	c.mu.Unlock()

	c.stopStream()
	c.applyFor(ctx, gen, state.SetConnecting{Address: address})
	c.logger.Info("connecting", logging.F("address", address), logging.F("timeout", timeout))

	api, err := c.dial(ctx, address, timeout)
	if err != nil {
		return c.fail(ctx, gen, err)
	}
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.api = api
	c.lastAddress = api.BaseURL()
	c.mu.Unlock()

	c.persist.SaveConnection(ctx, api.BaseURL())
	c.applyFor(ctx, gen, state.SetConnected{Address: api.BaseURL()})

	sessions, err := api.ListSessions(ctx)
	if err != nil {
		return c.fail(ctx, gen, fmt.Errorf("list sessions: %w", err))
	}
	if _, _, ok := c.applyFor(ctx, gen, state.SetSessions{Sessions: sessions}); !ok {
		return ErrSuperseded
	}
	if !c.openStream(gen, api) {
		return ErrSuperseded
	}
	c.logger.Info("connected", logging.F("address", api.BaseURL()), logging.F("sessions", len(sessions)))

	c.restoreSession(ctx, gen)
	return nil
}

func (c *Controller) fail(ctx context.Context, gen uint64, err error) error {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.api = nil
	c.mu.Unlock()

	c.stopStream()
	c.persist.ClearConnection(ctx)
	c.applyFor(ctx, gen, state.SetError{Message: err.Error()})
	c.logger.Warn("connect failed", logging.Err(err))
	return err
}

func (c *Controller) restoreSession(ctx context.Context, gen uint64) {
	saved, ok := c.persist.LoadSession(ctx)
	if !ok {
		return
	}
	current, found := c.states.Snapshot().FindSession(saved.ID)
	if !found {
		c.logger.Info("persisted session no longer on server", logging.F("session_id", saved.ID))
		c.persist.ClearSession(ctx)
		return
	}
	if _, _, ok := c.applyFor(ctx, gen, state.SetCurrentSession{Session: current}); !ok {
		return
	}
	if err := c.LoadMessages(ctx, current.ID); err != nil {
		c.logger.Warn("restore session messages failed", logging.F("session_id", current.ID), logging.Err(err))
	}
}

// Disconnect closes the stream, forgets the persisted connection and resets
// the state.
func (c *Controller) Disconnect(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.api = nil
	c.lastAddress = ""
	c.mu.Unlock()

	c.stopStream()
	c.persist.ClearConnection(ctx)
	c.applyFor(ctx, gen, state.Disconnect{})
	c.logger.Info("disconnected")
}

// AutoReconnect connects to the persisted address, if one is fresh. Failures
// only clear persisted state; the status is left idle.
func (c *Controller) AutoReconnect(ctx context.Context) error {
	_, err, _ := c.flights.Do("auto-reconnect", func() (any, error) {
		address, ok := c.persist.LoadConnection(ctx)
		if !ok {
			c.logger.Debug("auto reconnect skipped: nothing persisted")
			return nil, nil
		}
		err := c.Connect(ctx, address, c.reconnectTimeout)
		if err == nil || errors.Is(err, ErrSuperseded) {
			return nil, err
		}
		c.logger.Info("auto reconnect failed", logging.F("address", address), logging.Err(err))
		c.persist.ClearConnection(ctx)
		c.ClearError()
		return nil, err
	})
	return err
}

// RetryConnection re-opens a dropped stream while connected. Otherwise it
// reconnects to the last known address, or falls back to AutoReconnect.
func (c *Controller) RetryConnection(ctx context.Context) error {
	c.mu.Lock()
	api := c.api
	gen := c.gen
	address := c.lastAddress
	c.mu.Unlock()

	if api != nil && c.states.Snapshot().Connected() {
		if streamLive(c.stream.Status()) {
			return c.RefreshSessions(ctx)
		}
		c.logger.Info("retry: reopening stream")
		if !c.openStream(gen, api) {
			return ErrSuperseded
		}
		return nil
	}
	if address == "" {
		address = c.states.Snapshot().ServerAddress
	}
	if address == "" {
		return c.AutoReconnect(ctx)
	}
	return c.Connect(ctx, address, c.handshakeTimeout)
}

func (c *Controller) RefreshSessions(ctx context.Context) error {
	api, gen := c.handle()
	if api == nil {
		return ErrNotConnected
	}
	_, err, _ := c.flights.Do("refresh-sessions", func() (any, error) {
		sessions, err := api.ListSessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		c.applyFor(ctx, gen, state.SetSessions{Sessions: sessions})
		return nil, nil
	})
	return err
}

func (c *Controller) ClearError() {
	c.apply(c.ctx, state.ClearError{})
}

// SetCurrentSession selects session, or clears the selection when nil, and
// persists the choice.
func (c *Controller) SetCurrentSession(ctx context.Context, session *types.Session) {
	c.apply(ctx, state.SetCurrentSession{Session: session})
	c.persistCurrent(ctx)
}

// LoadMessages replaces the working set with the server's history of
// sessionID. A response for a session that is no longer current is
// discarded.
func (c *Controller) LoadMessages(ctx context.Context, sessionID string) error {
	api, gen := c.handle()
	if api == nil || !c.states.Snapshot().Connected() {
		return ErrNotConnected
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("session id is required")
	}
	c.applyFor(ctx, gen, state.SetLoadingMessages{SessionID: sessionID, Loading: true})

	start := time.Now()
	messages, err := api.ListMessages(ctx, sessionID)
	if err != nil {
		c.applyFor(ctx, gen, state.SetLoadingMessages{SessionID: sessionID, Loading: false})
		return fmt.Errorf("load messages: %w", err)
	}
	_, next, ok := c.applyFor(ctx, gen, state.SetMessages{SessionID: sessionID, Messages: messages})
	if !ok || next.CurrentSessionID() != sessionID {
		c.logger.Debug("stale messages discarded", logging.F("session_id", sessionID), logging.F("current", next.CurrentSessionID()))
		return nil
	}
	c.logger.Debug("messages loaded", logging.F("session_id", sessionID), logging.F("count", len(messages)), logging.F("dur", time.Since(start)))
	return nil
}

// AbortSession asks the server to stop the session's current turn. It
// reports false on any failure.
func (c *Controller) AbortSession(ctx context.Context, sessionID string) bool {
	api, _ := c.handle()
	if api == nil {
		return false
	}
	ok, err := api.AbortSession(ctx, sessionID)
	if err != nil {
		c.logger.Warn("abort failed", logging.F("session_id", sessionID), logging.Err(err))
		return false
	}
	return ok
}

// DefaultModel asks the server for its default provider and model.
func (c *Controller) DefaultModel(ctx context.Context) (providerID, modelID string, err error) {
	api, _ := c.handle()
	if api == nil {
		return "", "", ErrNotConnected
	}
	catalog, err := api.ListProviders(ctx)
	if err != nil {
		return "", "", fmt.Errorf("list providers: %w", err)
	}
	providerID, modelID, ok := catalog.DefaultModel()
	if !ok {
		return "", "", ErrNoModel
	}
	return providerID, modelID, nil
}

func (c *Controller) State() state.State {
	return c.states.Snapshot()
}

func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	return c.states.Subscribe()
}

// Errors delivers failures of sends that already returned.
func (c *Controller) Errors() <-chan SendError {
	return c.errs
}

func (c *Controller) StreamStatus() stream.Status {
	return c.stream.Status()
}

// Wait blocks until in-flight sends finish.
func (c *Controller) Wait() {
	c.sends.Wait()
}

// Close stops the stream and cancels in-flight sends and reloads. State and
// persisted records are kept.
func (c *Controller) Close() {
	c.cancel()
	c.mu.Lock()
	c.gen++
	c.api = nil
	c.mu.Unlock()
	c.stopStream()
	c.sends.Wait()
	c.bg.Wait()
}

// openStream opens the event stream from api unless gen has been superseded.
// A Disconnect that bumps gen after the check stops the stream it opened.
func (c *Controller) openStream(gen uint64, api API) bool {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	c.mu.Lock()
	current := gen == c.gen && c.api != nil
	c.mu.Unlock()
	if !current {
		return false
	}
	c.stream.Open(api)
	return true
}

func (c *Controller) stopStream() {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	c.stream.Stop()
}

func (c *Controller) handle() (API, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.api, c.gen
}

func (c *Controller) apply(ctx context.Context, a state.Action) (prev, next state.State) {
	prev, next = c.states.Dispatch(a)
	c.observe(ctx, a, prev, next)
	return prev, next
}

// applyFor dispatches a only while gen is the live connection.
func (c *Controller) applyFor(ctx context.Context, gen uint64, a state.Action) (prev, next state.State, ok bool) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		snapshot := c.states.Snapshot()
		return snapshot, snapshot, false
	}
	prev, next = c.states.Dispatch(a)
	c.mu.Unlock()
	c.observe(ctx, a, prev, next)
	return prev, next, true
}
