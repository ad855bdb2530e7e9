package state

import "tether/internal/types"

const streamDisconnectedMessage = "stream disconnected"

// ActionsForEvent maps a decoded stream event to the transitions it drives.
// Events that change nothing map to no actions.
func ActionsForEvent(event types.Event) []Action {
	switch ev := event.(type) {
	case types.MessageUpdatedEvent:
		return []Action{UpdateMessage{Info: ev.Info}}
	case types.MessageRemovedEvent:
		return []Action{RemoveMessage{SessionID: ev.SessionID, MessageID: ev.MessageID}}
	case types.PartUpdatedEvent:
		return []Action{UpdateMessagePart{Part: ev.Part}}
	case types.PartRemovedEvent:
		return []Action{RemoveMessagePart{SessionID: ev.SessionID, MessageID: ev.MessageID, PartID: ev.PartID}}
	case types.SessionUpdatedEvent:
		return []Action{UpdateSession{Session: ev.Info}}
	case types.SessionDeletedEvent:
		return []Action{RemoveSession{SessionID: ev.Info.ID}}
	case types.SessionIdleEvent:
		return []Action{SetGenerating{SessionID: ev.SessionID, Generating: false}}
	case types.SessionErrorEvent:
		var actions []Action
		if ev.SessionID != "" {
			actions = append(actions, SetGenerating{SessionID: ev.SessionID, Generating: false})
		}
		// A user abort surfaces as an error; it is not one.
		if ev.Error != nil && !ev.Error.Aborted() {
			if msg := ev.Error.Message(); msg != "" {
				actions = append(actions, ReportError{SessionID: ev.SessionID, Message: msg})
			}
		}
		return actions
	default:
		return nil
	}
}

// StreamExhausted is the report for a stream that ran out of retries.
func StreamExhausted() []Action {
	return []Action{
		SetStreamConnected{Connected: false},
		ReportError{Message: streamDisconnectedMessage},
	}
}
