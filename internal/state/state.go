package state

import "tether/internal/types"

type ConnectionStatus string

const (
	StatusIdle       ConnectionStatus = "idle"
	StatusConnecting ConnectionStatus = "connecting"
	StatusConnected  ConnectionStatus = "connected"
	StatusError      ConnectionStatus = "error"
)

// State is the client's projection of the server. Values are treated as
// immutable: the reducer copies any slice it changes, so a State handed out
// by Snapshot stays valid after later dispatches.
type State struct {
	ServerAddress string
	Status        ConnectionStatus
	LastError     string

	Sessions       []types.Session
	CurrentSession *types.Session

	// Messages is the working set. It only ever holds messages of
	// CurrentSession.
	Messages        []types.MessageWithParts
	LoadingMessages bool

	StreamConnected bool
	Generating      bool
}

func Initial() State {
	return State{Status: StatusIdle}
}

func (s State) Connected() bool {
	return s.Status == StatusConnected
}

func (s State) CurrentSessionID() string {
	if s.CurrentSession == nil {
		return ""
	}
	return s.CurrentSession.ID
}

func (s State) FindSession(id string) (*types.Session, bool) {
	if id == "" {
		return nil, false
	}
	for i := range s.Sessions {
		if s.Sessions[i].ID == id {
			return &s.Sessions[i], true
		}
	}
	return nil, false
}

func (s State) FindMessage(id string) (*types.MessageWithParts, bool) {
	if idx := s.messageIndex(id); idx >= 0 {
		return &s.Messages[idx], true
	}
	return nil, false
}

func (s State) messageIndex(id string) int {
	for i := range s.Messages {
		if s.Messages[i].Info.ID == id {
			return i
		}
	}
	return -1
}
