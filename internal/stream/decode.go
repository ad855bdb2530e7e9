package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tether/internal/types"
)

// Decode parses one frame payload of the form {"type": ..., "properties": {...}}.
// Unrecognized types decode to types.UnknownEvent; recognized types missing
// their identifying fields are an error.
func Decode(payload string) (types.Event, error) {
	var envelope struct {
		Type       string          `json:"type"`
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	eventType := strings.TrimSpace(envelope.Type)
	if eventType == "" {
		return nil, errors.New("event type missing")
	}
	props := envelope.Properties
	if len(props) == 0 || string(props) == "null" {
		props = json.RawMessage(`{}`)
	}

	switch eventType {
	case types.EventMessageUpdated:
		var p struct {
			Info types.Message `json:"info"`
		}
		if err := decodeProps(eventType, props, &p); err != nil {
			return nil, err
		}
		if p.Info.ID == "" || p.Info.SessionID == "" {
			return nil, fmt.Errorf("%s: message id and session id are required", eventType)
		}
		return types.MessageUpdatedEvent{Info: p.Info}, nil
	case types.EventMessageRemoved:
		var p struct {
			SessionID string `json:"sessionID"`
			MessageID string `json:"messageID"`
		}
		if err := decodeProps(eventType, props, &p); err != nil {
			return nil, err
		}
		if p.SessionID == "" || p.MessageID == "" {
			return nil, fmt.Errorf("%s: session id and message id are required", eventType)
		}
		return types.MessageRemovedEvent{SessionID: p.SessionID, MessageID: p.MessageID}, nil
	case types.EventMessagePartUpdated:
		var p struct {
			Part  types.Part `json:"part"`
			Delta string     `json:"delta"`
		}
		if err := decodeProps(eventType, props, &p); err != nil {
			return nil, err
		}
		if p.Part.ID == "" || p.Part.MessageID == "" || p.Part.SessionID == "" {
			return nil, fmt.Errorf("%s: part, message and session ids are required", eventType)
		}
		return types.PartUpdatedEvent{Part: p.Part, Delta: p.Delta}, nil
	case types.EventMessagePartRemoved:
		var p struct {
			SessionID string `json:"sessionID"`
			MessageID string `json:"messageID"`
			PartID    string `json:"partID"`
		}
		if err := decodeProps(eventType, props, &p); err != nil {
			return nil, err
		}
		if p.SessionID == "" || p.MessageID == "" || p.PartID == "" {
			return nil, fmt.Errorf("%s: session, message and part ids are required", eventType)
		}
		return types.PartRemovedEvent{SessionID: p.SessionID, MessageID: p.MessageID, PartID: p.PartID}, nil
	case types.EventSessionUpdated, types.EventSessionDeleted:
		var p struct {
			Info types.Session `json:"info"`
		}
		if err := decodeProps(eventType, props, &p); err != nil {
			return nil, err
		}
		if p.Info.ID == "" {
			return nil, fmt.Errorf("%s: session id is required", eventType)
		}
		if eventType == types.EventSessionDeleted {
			return types.SessionDeletedEvent{Info: p.Info}, nil
		}
		return types.SessionUpdatedEvent{Info: p.Info}, nil
	case types.EventSessionError:
		var p struct {
			SessionID string              `json:"sessionID"`
			Error     *types.MessageError `json:"error"`
		}
		if err := decodeProps(eventType, props, &p); err != nil {
			return nil, err
		}
		return types.SessionErrorEvent{SessionID: p.SessionID, Error: p.Error}, nil
	case types.EventSessionIdle:
		var p struct {
			SessionID string `json:"sessionID"`
		}
		if err := decodeProps(eventType, props, &p); err != nil {
			return nil, err
		}
		return types.SessionIdleEvent{SessionID: p.SessionID}, nil
	case types.EventServerConnected:
		return types.ServerConnectedEvent{}, nil
	default:
		return types.UnknownEvent{Type: eventType, Properties: append(json.RawMessage(nil), props...)}, nil
	}
}

func decodeProps(eventType string, raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode properties: %w", eventType, err)
	}
	return nil
}
