package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrNoModel      = errors.New("no model selected")
	ErrEmptyMessage = errors.New("message is empty")
	// ErrSuperseded is returned by a connect that a later connect or
	// disconnect replaced before it finished.
	ErrSuperseded = errors.New("connection attempt superseded")
)

// SendError reports a fire-and-forget send that failed after SendMessage
// returned.
type SendError struct {
	RequestID string
	SessionID string
	Err       error
}

func (e SendError) Error() string {
	return fmt.Sprintf("send %s to session %s failed: %v", e.RequestID, e.SessionID, e.Err)
}

func (e SendError) Unwrap() error {
	return e.Err
}
