package state

import "tether/internal/types"

// Action is one transition of the state machine. The set is closed: only
// types in this package implement it.
type Action interface {
	actionName() string
}

// sessionScoped actions only apply while their session is the current one.
type sessionScoped interface {
	scopeSessionID() string
}

type SetConnecting struct {
	Address string
}

type SetConnected struct {
	Address string
}

type SetError struct {
	Message string
}

type SetSessions struct {
	Sessions []types.Session
}

// SetCurrentSession selects a session, or clears the selection when Session
// is nil.
type SetCurrentSession struct {
	Session *types.Session
}

// SetMessages replaces the working set with the full history of SessionID.
type SetMessages struct {
	SessionID string
	Messages  []types.MessageWithParts
}

type SetLoadingMessages struct {
	SessionID string
	Loading   bool
}

type UpdateMessage struct {
	Info types.Message
}

type UpdateMessagePart struct {
	Part types.Part
}

type RemoveMessage struct {
	SessionID string
	MessageID string
}

type RemoveMessagePart struct {
	SessionID string
	MessageID string
	PartID    string
}

type UpdateSession struct {
	Session types.Session
}

type RemoveSession struct {
	SessionID string
}

type SetStreamConnected struct {
	Connected bool
}

type SetGenerating struct {
	SessionID  string
	Generating bool
}

type Disconnect struct{}

type ClearError struct{}

// ReportError records a non-fatal error without changing the connection
// status. An empty SessionID makes it global.
type ReportError struct {
	SessionID string
	Message   string
}

func (SetConnecting) actionName() string      { return "set-connecting" }
func (SetConnected) actionName() string       { return "set-connected" }
func (SetError) actionName() string           { return "set-error" }
func (SetSessions) actionName() string        { return "set-sessions" }
func (SetCurrentSession) actionName() string  { return "set-current-session" }
func (SetMessages) actionName() string        { return "set-messages" }
func (SetLoadingMessages) actionName() string { return "set-loading-messages" }
func (UpdateMessage) actionName() string      { return "update-message" }
func (UpdateMessagePart) actionName() string  { return "update-message-part" }
func (RemoveMessage) actionName() string      { return "remove-message" }
func (RemoveMessagePart) actionName() string  { return "remove-message-part" }
func (UpdateSession) actionName() string      { return "update-session" }
func (RemoveSession) actionName() string      { return "remove-session" }
func (SetStreamConnected) actionName() string { return "set-stream-connected" }
func (SetGenerating) actionName() string      { return "set-generating" }
func (Disconnect) actionName() string         { return "disconnect" }
func (ClearError) actionName() string         { return "clear-error" }
func (ReportError) actionName() string        { return "report-error" }

func (a SetMessages) scopeSessionID() string        { return a.SessionID }
func (a SetLoadingMessages) scopeSessionID() string { return a.SessionID }
func (a UpdateMessage) scopeSessionID() string      { return a.Info.SessionID }
func (a UpdateMessagePart) scopeSessionID() string  { return a.Part.SessionID }
func (a RemoveMessage) scopeSessionID() string      { return a.SessionID }
func (a RemoveMessagePart) scopeSessionID() string  { return a.SessionID }
func (a SetGenerating) scopeSessionID() string      { return a.SessionID }

// ActionName returns the kebab-case name of a, for logs.
func ActionName(a Action) string {
	if a == nil {
		return ""
	}
	return a.actionName()
}

// InScope reports whether a may change s. Session-scoped actions are only in
// scope while their session is the current one; every other action is.
func InScope(s State, a Action) bool {
	if report, ok := a.(ReportError); ok {
		return report.SessionID == "" || report.SessionID == s.CurrentSessionID()
	}
	scoped, ok := a.(sessionScoped)
	if !ok {
		return true
	}
	id := scoped.scopeSessionID()
	return id != "" && id == s.CurrentSessionID()
}
