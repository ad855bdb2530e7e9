package state

import (
	"tether/internal/logging"
	"tether/internal/types"
)

// Reduce applies a to s and returns the next state. It never mutates s.
func Reduce(s State, a Action) State {
	next, _ := reduce(s, a, logging.Nop())
	return next
}

// reduce reports whether the action changed anything; unchanged results are
// the input state itself.
func reduce(s State, a Action, logger logging.Logger) (State, bool) {
	if a == nil || !InScope(s, a) {
		return s, false
	}
	switch a := a.(type) {
	case SetConnecting:
		next := Initial()
		next.Status = StatusConnecting
		next.ServerAddress = a.Address
		return next, true
	case SetConnected:
		s.Status = StatusConnected
		if a.Address != "" {
			s.ServerAddress = a.Address
		}
		s.LastError = ""
		return s, true
	case SetError:
		next := Initial()
		next.Status = StatusError
		next.ServerAddress = s.ServerAddress
		next.LastError = a.Message
		return next, true
	case Disconnect:
		return Initial(), true
	case ClearError:
		if s.LastError == "" && s.Status != StatusError {
			return s, false
		}
		s.LastError = ""
		if s.Status == StatusError {
			s.Status = StatusIdle
		}
		return s, true
	case ReportError:
		s.LastError = a.Message
		return s, true
	case SetSessions:
		return reduceSetSessions(s, a), true
	case SetCurrentSession:
		s.CurrentSession = types.CloneSession(a.Session)
		s.Messages = nil
		s.LoadingMessages = false
		s.Generating = false
		return s, true
	case SetMessages:
		s.Messages = cloneMessages(a.Messages)
		s.LoadingMessages = false
		return s, true
	case SetLoadingMessages:
		if s.LoadingMessages == a.Loading {
			return s, false
		}
		s.LoadingMessages = a.Loading
		return s, true
	case UpdateMessage:
		return reduceUpdateMessage(s, a), true
	case UpdateMessagePart:
		return reduceUpdateMessagePart(s, a, logger)
	case RemoveMessage:
		idx := s.messageIndex(a.MessageID)
		if idx < 0 {
			return s, false
		}
		messages := make([]types.MessageWithParts, 0, len(s.Messages)-1)
		messages = append(messages, s.Messages[:idx]...)
		s.Messages = append(messages, s.Messages[idx+1:]...)
		return s, true
	case RemoveMessagePart:
		return reduceRemoveMessagePart(s, a)
	case UpdateSession:
		return reduceUpdateSession(s, a), true
	case RemoveSession:
		return reduceRemoveSession(s, a)
	case SetStreamConnected:
		// A live stream retires the exhaustion report, not other errors.
		staleReport := a.Connected && s.LastError == streamDisconnectedMessage
		if s.StreamConnected == a.Connected && !staleReport {
			return s, false
		}
		s.StreamConnected = a.Connected
		if staleReport {
			s.LastError = ""
		}
		return s, true
	case SetGenerating:
		if s.Generating == a.Generating {
			return s, false
		}
		s.Generating = a.Generating
		return s, true
	default:
		logger.Warn("unhandled action", logging.F("action", ActionName(a)))
		return s, false
	}
}

func reduceSetSessions(s State, a SetSessions) State {
	s.Sessions = append([]types.Session(nil), a.Sessions...)
	if s.CurrentSession == nil {
		return s
	}
	if current, ok := s.FindSession(s.CurrentSession.ID); ok {
		s.CurrentSession = types.CloneSession(current)
		return s
	}
	return clearCurrent(s)
}

func reduceUpdateMessage(s State, a UpdateMessage) State {
	messages := cloneMessageSlice(s.Messages)
	if idx := s.messageIndex(a.Info.ID); idx >= 0 {
		messages[idx].Info = a.Info
	} else {
		messages = append(messages, types.MessageWithParts{Info: a.Info, Parts: []types.Part{}})
	}
	s.Messages = messages
	return s
}

func reduceUpdateMessagePart(s State, a UpdateMessagePart, logger logging.Logger) (State, bool) {
	changed := false
	switch a.Part.Type {
	case types.PartTypeStepStart:
		changed = !s.Generating
		s.Generating = true
	case types.PartTypeStepFinish:
		changed = s.Generating
		s.Generating = false
	}

	idx := s.messageIndex(a.Part.MessageID)
	if idx < 0 {
		logger.Warn("part dropped: message not loaded",
			logging.F("session_id", a.Part.SessionID),
			logging.F("message_id", a.Part.MessageID),
			logging.F("part_id", a.Part.ID),
		)
		return s, changed
	}

	messages := cloneMessageSlice(s.Messages)
	owner := messages[idx]
	parts := make([]types.Part, len(owner.Parts), len(owner.Parts)+1)
	copy(parts, owner.Parts)
	replaced := false
	for i := range parts {
		if parts[i].ID == a.Part.ID {
			parts[i] = a.Part
			replaced = true
			break
		}
	}
	if !replaced {
		parts = append(parts, a.Part)
	}
	owner.Parts = parts
	messages[idx] = owner
	s.Messages = messages
	return s, true
}

func reduceRemoveMessagePart(s State, a RemoveMessagePart) (State, bool) {
	idx := s.messageIndex(a.MessageID)
	if idx < 0 {
		return s, false
	}
	owner := s.Messages[idx]
	parts := make([]types.Part, 0, len(owner.Parts))
	for _, part := range owner.Parts {
		if part.ID != a.PartID {
			parts = append(parts, part)
		}
	}
	if len(parts) == len(owner.Parts) {
		return s, false
	}
	messages := cloneMessageSlice(s.Messages)
	owner.Parts = parts
	messages[idx] = owner
	s.Messages = messages
	return s, true
}

// reduceUpdateSession replaces the session by id. Sessions the client has not
// listed yet are added at the front, where the server lists new sessions.
func reduceUpdateSession(s State, a UpdateSession) State {
	sessions := make([]types.Session, 0, len(s.Sessions)+1)
	found := false
	for _, session := range s.Sessions {
		if session.ID == a.Session.ID {
			session = a.Session
			found = true
		}
		sessions = append(sessions, session)
	}
	if !found {
		sessions = append([]types.Session{a.Session}, sessions...)
	}
	s.Sessions = sessions
	if s.CurrentSession != nil && s.CurrentSession.ID == a.Session.ID {
		s.CurrentSession = types.CloneSession(&a.Session)
	}
	return s
}

func reduceRemoveSession(s State, a RemoveSession) (State, bool) {
	sessions := make([]types.Session, 0, len(s.Sessions))
	for _, session := range s.Sessions {
		if session.ID != a.SessionID {
			sessions = append(sessions, session)
		}
	}
	removedCurrent := s.CurrentSession != nil && s.CurrentSession.ID == a.SessionID
	if len(sessions) == len(s.Sessions) && !removedCurrent {
		return s, false
	}
	s.Sessions = sessions
	if removedCurrent {
		s = clearCurrent(s)
	}
	return s, true
}

func clearCurrent(s State) State {
	s.CurrentSession = nil
	s.Messages = nil
	s.LoadingMessages = false
	s.Generating = false
	return s
}

func cloneMessageSlice(in []types.MessageWithParts) []types.MessageWithParts {
	out := make([]types.MessageWithParts, len(in), len(in)+1)
	copy(out, in)
	return out
}

func cloneMessages(in []types.MessageWithParts) []types.MessageWithParts {
	if in == nil {
		return []types.MessageWithParts{}
	}
	out := make([]types.MessageWithParts, len(in))
	for i, message := range in {
		out[i] = types.MessageWithParts{
			Info:  message.Info,
			Parts: append([]types.Part{}, message.Parts...),
		}
	}
	return out
}
