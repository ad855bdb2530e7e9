package types

import (
	"encoding/json"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type MessageTime struct {
	Created   Millis  `json:"created"`
	Completed *Millis `json:"completed,omitempty"`
}

type CacheUsage struct {
	Read  int `json:"read"`
	Write int `json:"write"`
}

type TokenUsage struct {
	Input     int        `json:"input"`
	Output    int        `json:"output"`
	Reasoning int        `json:"reasoning"`
	Cache     CacheUsage `json:"cache"`
}

func (t *TokenUsage) Total() int {
	if t == nil {
		return 0
	}
	return t.Input + t.Output + t.Reasoning
}

// MessageError is the error descriptor the server attaches to a failed message
// or reports through session.error.
type MessageError struct {
	Name string         `json:"name"`
	Data map[string]any `json:"data,omitempty"`
}

func (e *MessageError) Message() string {
	if e == nil {
		return ""
	}
	if e.Data != nil {
		if msg, ok := e.Data["message"].(string); ok && strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
	}
	return strings.TrimSpace(e.Name)
}

// Aborted reports whether the error is the server's marker for a user abort.
func (e *MessageError) Aborted() bool {
	if e == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(e.Name), "MessageAbortedError")
}

type Message struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"sessionID"`
	Role       Role          `json:"role"`
	Time       MessageTime   `json:"time"`
	Error      *MessageError `json:"error,omitempty"`
	ProviderID string        `json:"providerID,omitempty"`
	ModelID    string        `json:"modelID,omitempty"`
	Cost       float64       `json:"cost,omitempty"`
	Tokens     *TokenUsage   `json:"tokens,omitempty"`
}

func (m *Message) Completed() bool {
	return m != nil && m.Time.Completed != nil
}

type PartType string

const (
	PartTypeText       PartType = "text"
	PartTypeReasoning  PartType = "reasoning"
	PartTypeTool       PartType = "tool"
	PartTypeFile       PartType = "file"
	PartTypeStepStart  PartType = "step-start"
	PartTypeStepFinish PartType = "step-finish"
	PartTypeAgent      PartType = "agent"
	PartTypeSnapshot   PartType = "snapshot"
	PartTypePatch      PartType = "patch"
)

type ToolState struct {
	Status   string         `json:"status"`
	Title    string         `json:"title,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
	Output   string         `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Part is one ordered piece of a message. Only the fields the client acts on
// are decoded; Raw keeps the server payload so unknown part types round-trip.
type Part struct {
	ID        string      `json:"id,omitempty"`
	SessionID string      `json:"sessionID,omitempty"`
	MessageID string      `json:"messageID,omitempty"`
	Type      PartType    `json:"type"`
	Text      string      `json:"text,omitempty"`
	Tool      string      `json:"tool,omitempty"`
	CallID    string      `json:"callID,omitempty"`
	State     *ToolState  `json:"state,omitempty"`
	Mime      string      `json:"mime,omitempty"`
	Filename  string      `json:"filename,omitempty"`
	URL       string      `json:"url,omitempty"`
	Cost      float64     `json:"cost,omitempty"`
	Tokens    *TokenUsage `json:"tokens,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type partFields Part

func (p *Part) UnmarshalJSON(data []byte) error {
	var fields partFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*p = Part(fields)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (p Part) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	return json.Marshal(partFields(p))
}

type MessageWithParts struct {
	Info  Message `json:"info"`
	Parts []Part  `json:"parts"`
}

// Text joins the text parts of the message in order.
func (m *MessageWithParts) Text() string {
	if m == nil {
		return ""
	}
	chunks := make([]string, 0, len(m.Parts))
	for _, part := range m.Parts {
		if part.Type != PartTypeText {
			continue
		}
		if text := strings.TrimSpace(part.Text); text != "" {
			chunks = append(chunks, text)
		}
	}
	return strings.Join(chunks, "\n\n")
}
