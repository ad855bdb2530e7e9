package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tether/internal/client"
	"tether/internal/types"
)

// fakeServer is an in-process opencode server: JSON endpoints plus an SSE
// /event stream fed from events.
type fakeServer struct {
	t      *testing.T
	server *httptest.Server

	events chan string
	drop   chan struct{}
	opened chan struct{}
	refuse atomic.Bool

	mu           sync.Mutex
	sessions     []types.Session
	messages     map[string][]types.MessageWithParts
	gates        map[string]chan struct{}
	listed       chan string
	sends        chan client.ChatRequest
	sendStatus   int
	abortStatus  int
	messageLists int
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{
		t:        t,
		events:   make(chan string, 16),
		drop:     make(chan struct{}),
		opened:   make(chan struct{}, 8),
		messages: map[string][]types.MessageWithParts{},
		gates:    map[string]chan struct{}{},
		listed:   make(chan string, 16),
		sends:    make(chan client.ChatRequest, 4),
		sessions: []types.Session{
			{ID: "A", Title: "alpha", Time: types.SessionTime{Created: 1, Updated: 2}},
			{ID: "B", Title: "beta", Time: types.SessionTime{Created: 3, Updated: 4}},
		},
	}
	f.messages["A"] = []types.MessageWithParts{messageWithText("A", "a1", "from A")}
	f.messages["B"] = []types.MessageWithParts{messageWithText("B", "b1", "from B")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /session", f.handleSessions)
	mux.HandleFunc("GET /session/{id}/message", f.handleMessages)
	mux.HandleFunc("POST /session/{id}/message", f.handleSend)
	mux.HandleFunc("POST /session/{id}/abort", f.handleAbort)
	mux.HandleFunc("GET /config/providers", f.handleProviders)
	mux.HandleFunc("GET /event", f.handleEvents)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func messageWithText(sessionID, id, text string) types.MessageWithParts {
	return types.MessageWithParts{
		Info: types.Message{ID: id, SessionID: sessionID, Role: types.RoleAssistant},
		Parts: []types.Part{{
			ID:        id + "-p1",
			SessionID: sessionID,
			MessageID: id,
			Type:      types.PartTypeText,
			Text:      text,
		}},
	}
}

func (f *fakeServer) URL() string {
	return f.server.URL
}

func (f *fakeServer) setSessions(sessions ...types.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = sessions
}

// gate blocks message listing for sessionID until the returned func runs.
func (f *fakeServer) gate(sessionID string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[sessionID] = ch
	f.mu.Unlock()
	var once sync.Once
	release := func() { once.Do(func() { close(ch) }) }
	f.t.Cleanup(release)
	return release
}

func (f *fakeServer) messageListCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messageLists
}

func (f *fakeServer) emit(payload string) {
	f.t.Helper()
	select {
	case f.events <- payload:
	case <-time.After(2 * time.Second):
		f.t.Fatalf("event not consumed: %s", payload)
	}
}

func (f *fakeServer) dropStream() {
	f.t.Helper()
	select {
	case f.drop <- struct{}{}:
	case <-time.After(2 * time.Second):
		f.t.Fatalf("no open stream to drop")
	}
}

func (f *fakeServer) waitStreamOpened() {
	f.t.Helper()
	select {
	case <-f.opened:
	case <-time.After(2 * time.Second):
		f.t.Fatalf("stream was not opened")
	}
}

func (f *fakeServer) handleSessions(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	sessions := append([]types.Session(nil), f.sessions...)
	f.mu.Unlock()
	respondJSON(w, http.StatusOK, sessions)
}

func (f *fakeServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	f.messageLists++
	gate := f.gates[id]
	messages := f.messages[id]
	f.mu.Unlock()

	select {
	case f.listed <- id:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if messages == nil {
		messages = []types.MessageWithParts{}
	}
	respondJSON(w, http.StatusOK, messages)
}

func (f *fakeServer) handleSend(w http.ResponseWriter, r *http.Request) {
	var req client.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	f.mu.Lock()
	status := f.sendStatus
	f.mu.Unlock()
	select {
	case f.sends <- req:
	default:
	}
	if status != 0 {
		respondJSON(w, status, map[string]string{"message": "provider unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"info": map[string]string{"id": "reply"}})
}

func (f *fakeServer) handleAbort(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	status := f.abortStatus
	f.mu.Unlock()
	if status != 0 {
		respondJSON(w, status, map[string]string{"message": "no such session"})
		return
	}
	respondJSON(w, http.StatusOK, true)
}

func (f *fakeServer) handleProviders(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"providers": []map[string]any{
			{"id": "anthropic", "name": "Anthropic", "models": map[string]any{"claude-sonnet-4": map[string]string{"name": "Sonnet"}}},
		},
		"default": map[string]string{"anthropic": "claude-sonnet-4"},
	})
}

func (f *fakeServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if f.refuse.Load() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "event bus down"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "data: {\"type\":\"server.connected\",\"properties\":{}}\n\n")
	flusher.Flush()
	select {
	case f.opened <- struct{}{}:
	default:
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-f.drop:
			return
		case payload := <-f.events:
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
