package session

import (
	"context"

	"tether/internal/logging"
	"tether/internal/state"
	"tether/internal/stream"
	"tether/internal/types"
)

// streamListener feeds stream callbacks into the controller. It never calls
// the stream manager back synchronously.
type streamListener struct {
	c *Controller
}

func (l streamListener) HandleEvent(event types.Event) {
	for _, action := range state.ActionsForEvent(event) {
		l.c.apply(l.c.ctx, action)
	}
}

func (l streamListener) StreamConnected(connected bool) {
	c := l.c
	c.apply(c.ctx, state.SetStreamConnected{Connected: connected})
	if !connected {
		return
	}
	c.mu.Lock()
	c.streamOpens++
	reopened := c.streamOpens > 1
	c.mu.Unlock()
	if !reopened {
		return
	}
	// Events sent while the stream was down are lost; refetch.
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		c.reloadCurrent()
	}()
}

func (l streamListener) StreamExhausted(err error) {
	l.c.logger.Warn("event stream gave up", logging.Err(err))
	for _, action := range state.StreamExhausted() {
		l.c.apply(l.c.ctx, action)
	}
}

func (c *Controller) reloadCurrent() {
	id := c.states.Snapshot().CurrentSessionID()
	if id == "" {
		return
	}
	if err := c.LoadMessages(c.ctx, id); err != nil {
		c.logger.Warn("reload after reconnect failed", logging.F("session_id", id), logging.Err(err))
	}
}

// SetForeground records a foreground/background transition. Coming to the
// foreground while connected re-opens a stream that is no longer live. It
// reports whether a re-open was started.
func (c *Controller) SetForeground(foreground bool) bool {
	c.mu.Lock()
	changed := c.foreground != foreground
	c.foreground = foreground
	api, gen := c.api, c.gen
	c.mu.Unlock()

	if changed {
		c.logger.Debug("foreground changed", logging.F("foreground", foreground))
	}
	if !foreground || api == nil || !c.states.Snapshot().Connected() {
		return false
	}
	if streamLive(c.stream.Status()) {
		return false
	}
	if !c.reopen.Allow() {
		c.logger.Debug("stream re-open rate limited")
		return false
	}
	c.logger.Info("foreground: reopening stream", logging.F("status", c.stream.Status()))
	return c.openStream(gen, api)
}

func streamLive(status stream.Status) bool {
	return status == stream.StatusOpen || status == stream.StatusConnecting
}

// observe keeps the persisted session in line with state transitions: a
// current session that vanished from the set is forgotten, and a renamed or
// re-shared one is saved again.
func (c *Controller) observe(ctx context.Context, a state.Action, prev, next state.State) {
	switch a.(type) {
	case state.SetSessions, state.RemoveSession:
		if prev.CurrentSession != nil && next.CurrentSession == nil {
			c.logger.Info("current session removed on server", logging.F("session_id", prev.CurrentSession.ID))
			c.persistCurrent(ctx)
		}
	case state.UpdateSession:
		if next.CurrentSession != nil && next.CurrentSession != prev.CurrentSession {
			c.persistCurrent(ctx)
		}
	}
}

// persistCurrent writes the store's current session, or its absence, as of
// the latest snapshot.
func (c *Controller) persistCurrent(ctx context.Context) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if current := c.states.Snapshot().CurrentSession; current != nil {
		c.persist.SaveSession(ctx, current)
		return
	}
	c.persist.ClearSession(ctx)
}
