package types

import "encoding/json"

const (
	EventMessageUpdated     = "message.updated"
	EventMessageRemoved     = "message.removed"
	EventMessagePartUpdated = "message.part.updated"
	EventMessagePartRemoved = "message.part.removed"
	EventSessionUpdated     = "session.updated"
	EventSessionDeleted     = "session.deleted"
	EventSessionError       = "session.error"
	EventSessionIdle        = "session.idle"
	EventServerConnected    = "server.connected"
)

// Event is one decoded frame of the server push stream. The set of concrete
// types is closed; frames with an unrecognized type decode to UnknownEvent.
type Event interface {
	EventType() string
}

type MessageUpdatedEvent struct {
	Info Message
}

type MessageRemovedEvent struct {
	SessionID string
	MessageID string
}

type PartUpdatedEvent struct {
	Part  Part
	Delta string
}

type PartRemovedEvent struct {
	SessionID string
	MessageID string
	PartID    string
}

type SessionUpdatedEvent struct {
	Info Session
}

type SessionDeletedEvent struct {
	Info Session
}

type SessionErrorEvent struct {
	SessionID string
	Error     *MessageError
}

type SessionIdleEvent struct {
	SessionID string
}

type ServerConnectedEvent struct{}

type UnknownEvent struct {
	Type       string
	Properties json.RawMessage
}

func (MessageUpdatedEvent) EventType() string  { return EventMessageUpdated }
func (MessageRemovedEvent) EventType() string  { return EventMessageRemoved }
func (PartUpdatedEvent) EventType() string     { return EventMessagePartUpdated }
func (PartRemovedEvent) EventType() string     { return EventMessagePartRemoved }
func (SessionUpdatedEvent) EventType() string  { return EventSessionUpdated }
func (SessionDeletedEvent) EventType() string  { return EventSessionDeleted }
func (SessionErrorEvent) EventType() string    { return EventSessionError }
func (SessionIdleEvent) EventType() string     { return EventSessionIdle }
func (ServerConnectedEvent) EventType() string { return EventServerConnected }
func (e UnknownEvent) EventType() string       { return e.Type }

// SessionIDOf returns the session an event belongs to, or "" for
// server-wide events.
func SessionIDOf(event Event) string {
	switch e := event.(type) {
	case MessageUpdatedEvent:
		return e.Info.SessionID
	case MessageRemovedEvent:
		return e.SessionID
	case PartUpdatedEvent:
		return e.Part.SessionID
	case PartRemovedEvent:
		return e.SessionID
	case SessionUpdatedEvent:
		return e.Info.ID
	case SessionDeletedEvent:
		return e.Info.ID
	case SessionErrorEvent:
		return e.SessionID
	case SessionIdleEvent:
		return e.SessionID
	default:
		return ""
	}
}
