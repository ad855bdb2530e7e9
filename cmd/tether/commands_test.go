package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"tether/internal/client"
	"tether/internal/config"
	"tether/internal/session"
	"tether/internal/types"
)

type fakeCommandClient struct {
	sessionsResp  []types.Session
	sessionResp   *types.Session
	messagesResp  []types.MessageWithParts
	catalogResp   *client.ProviderCatalog
	abortResp     bool
	frames        []string
	sendErr       error
	sendRequests  []client.ChatRequest
	sendSessions  []string
	abortRequests []string
	listCalls     int
	streamClosed  bool
}

func (f *fakeCommandClient) ListSessions(context.Context) ([]types.Session, error) {
	f.listCalls++
	return f.sessionsResp, nil
}

func (f *fakeCommandClient) GetSession(_ context.Context, id string) (*types.Session, error) {
	if f.sessionResp == nil || f.sessionResp.ID != id {
		return nil, &client.RequestError{Method: "GET", Path: "/session/" + id, StatusCode: 404, Message: "not found"}
	}
	return f.sessionResp, nil
}

func (f *fakeCommandClient) ListMessages(context.Context, string) ([]types.MessageWithParts, error) {
	return f.messagesResp, nil
}

func (f *fakeCommandClient) SendMessage(_ context.Context, id string, req client.ChatRequest) error {
	f.sendSessions = append(f.sendSessions, id)
	f.sendRequests = append(f.sendRequests, req)
	return f.sendErr
}

func (f *fakeCommandClient) AbortSession(_ context.Context, id string) (bool, error) {
	f.abortRequests = append(f.abortRequests, id)
	return f.abortResp, nil
}

func (f *fakeCommandClient) ListProviders(context.Context) (*client.ProviderCatalog, error) {
	return f.catalogResp, nil
}

func (f *fakeCommandClient) EventStream(context.Context) (<-chan string, func(), error) {
	out := make(chan string, len(f.frames))
	for _, frame := range f.frames {
		out <- frame
	}
	close(out)
	return out, func() { f.streamClosed = true }, nil
}

type factoryCall struct {
	address string
}

func fixedFactory(fake *fakeCommandClient, calls *[]factoryCall) clientFactory {
	return func(_ context.Context, _ config.Settings, address string) (commandClient, error) {
		if calls != nil {
			*calls = append(*calls, factoryCall{address: address})
		}
		return fake, nil
	}
}

func fixedSettings(mutate func(*config.Settings)) func() (config.Settings, error) {
	return func() (config.Settings, error) {
		settings := config.DefaultSettings()
		settings.Server.Address = "127.0.0.1:4096"
		if mutate != nil {
			mutate(&settings)
		}
		return settings, nil
	}
}

func textMessage(id string, role types.Role, text string) types.MessageWithParts {
	return types.MessageWithParts{
		Info:  types.Message{ID: id, SessionID: "s1", Role: role},
		Parts: []types.Part{{ID: id + "-p", MessageID: id, Type: types.PartTypeText, Text: text}},
	}
}

func TestSessionsCommandPrintsSessions(t *testing.T) {
	stdout := &bytes.Buffer{}
	fake := &fakeCommandClient{
		sessionsResp: []types.Session{
			{ID: "s1", Title: "demo", Share: &types.SessionShare{URL: "https://opncd.ai/s/abc"}},
		},
	}
	var calls []factoryCall
	cmd := NewSessionsCommand(stdout, &bytes.Buffer{}, fixedSettings(nil), fixedFactory(fake, &calls))

	if err := cmd.Run(nil); err != nil {
		t.Fatalf("expected sessions to succeed, got err=%v", err)
	}
	if len(calls) != 1 || calls[0].address != "127.0.0.1:4096" {
		t.Fatalf("expected configured address, got %#v", calls)
	}
	out := stdout.String()
	if !strings.Contains(out, "ID") || !strings.Contains(out, "TITLE") {
		t.Fatalf("expected header in output, got %q", out)
	}
	if !strings.Contains(out, "s1") || !strings.Contains(out, "demo") || !strings.Contains(out, "yes") {
		t.Fatalf("expected session row in output, got %q", out)
	}
}

func TestSessionsCommandAddrFlagOverridesConfig(t *testing.T) {
	fake := &fakeCommandClient{}
	var calls []factoryCall
	cmd := NewSessionsCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedSettings(nil), fixedFactory(fake, &calls))

	if err := cmd.Run([]string{"--addr", "10.0.0.2:4096"}); err != nil {
		t.Fatalf("expected sessions to succeed, got err=%v", err)
	}
	if len(calls) != 1 || calls[0].address != "10.0.0.2:4096" {
		t.Fatalf("expected flag address, got %#v", calls)
	}
}

func TestSessionsCommandRequiresAddress(t *testing.T) {
	fake := &fakeCommandClient{}
	settings := fixedSettings(func(s *config.Settings) { s.Server.Address = "" })
	cmd := NewSessionsCommand(&bytes.Buffer{}, &bytes.Buffer{}, settings, fixedFactory(fake, nil))

	if err := cmd.Run(nil); !errors.Is(err, errNoAddress) {
		t.Fatalf("expected missing address error, got %v", err)
	}
}

func TestSessionsCommandShowsTranscript(t *testing.T) {
	stdout := &bytes.Buffer{}
	fake := &fakeCommandClient{
		sessionResp: &types.Session{ID: "s1", Title: "demo"},
		messagesResp: []types.MessageWithParts{
			textMessage("m1", types.RoleUser, "hello"),
			textMessage("m2", types.RoleAssistant, "hi there"),
		},
	}
	cmd := NewSessionsCommand(stdout, &bytes.Buffer{}, fixedSettings(nil), fixedFactory(fake, nil))

	if err := cmd.Run([]string{"s1"}); err != nil {
		t.Fatalf("expected show to succeed, got err=%v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "[user]\nhello") || !strings.Contains(out, "[assistant]\nhi there") {
		t.Fatalf("unexpected transcript output: %q", out)
	}
}

func TestSendCommandUsesModelFlagAndPrintsReply(t *testing.T) {
	stdout := &bytes.Buffer{}
	fake := &fakeCommandClient{
		messagesResp: []types.MessageWithParts{
			textMessage("m1", types.RoleUser, "hello"),
			textMessage("m2", types.RoleAssistant, "hi there"),
		},
	}
	cmd := NewSendCommand(stdout, &bytes.Buffer{}, fixedSettings(nil), fixedFactory(fake, nil))
	cmd.readFile = func(path string) ([]byte, error) {
		if path != "/tmp/shot.png" {
			t.Fatalf("unexpected image path %q", path)
		}
		return []byte("\x89PNG\r\n\x1a\n"), nil
	}

	err := cmd.Run([]string{"--model", "anthropic/claude-sonnet-4", "--image", "/tmp/shot.png", "s1", "hello", "world"})
	if err != nil {
		t.Fatalf("expected send to succeed, got err=%v", err)
	}
	if len(fake.sendRequests) != 1 || fake.sendSessions[0] != "s1" {
		t.Fatalf("expected one send to s1, got %#v", fake.sendSessions)
	}
	req := fake.sendRequests[0]
	if req.ProviderID != "anthropic" || req.ModelID != "claude-sonnet-4" {
		t.Fatalf("unexpected model: %#v", req)
	}
	if len(req.Parts) != 2 || req.Parts[0].Text != "hello world" {
		t.Fatalf("unexpected parts: %#v", req.Parts)
	}
	if req.Parts[1].Type != types.PartTypeFile || req.Parts[1].Filename != "shot.png" || req.Parts[1].Mime != "image/png" {
		t.Fatalf("unexpected file part: %#v", req.Parts[1])
	}
	if got := stdout.String(); got != "hi there\n" {
		t.Fatalf("unexpected stdout: %q", got)
	}
}

func TestSendCommandFallsBackToServerDefaultModel(t *testing.T) {
	fake := &fakeCommandClient{
		catalogResp: &client.ProviderCatalog{
			Providers: []client.Provider{{ID: "openai"}},
			Defaults:  map[string]string{"openai": "gpt-5"},
		},
	}
	cmd := NewSendCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedSettings(nil), fixedFactory(fake, nil))

	if err := cmd.Run([]string{"s1", "hello"}); err != nil {
		t.Fatalf("expected send to succeed, got err=%v", err)
	}
	if req := fake.sendRequests[0]; req.ProviderID != "openai" || req.ModelID != "gpt-5" {
		t.Fatalf("unexpected model: %#v", req)
	}
}

func TestSendCommandPrefersConfiguredModel(t *testing.T) {
	fake := &fakeCommandClient{}
	settings := fixedSettings(func(s *config.Settings) {
		s.Model.Provider = "anthropic"
		s.Model.Model = "claude-opus"
	})
	cmd := NewSendCommand(&bytes.Buffer{}, &bytes.Buffer{}, settings, fixedFactory(fake, nil))

	if err := cmd.Run([]string{"s1", "hello"}); err != nil {
		t.Fatalf("expected send to succeed, got err=%v", err)
	}
	if req := fake.sendRequests[0]; req.ProviderID != "anthropic" || req.ModelID != "claude-opus" {
		t.Fatalf("unexpected model: %#v", req)
	}
}

func TestSendCommandValidation(t *testing.T) {
	fake := &fakeCommandClient{catalogResp: &client.ProviderCatalog{}}
	cmd := NewSendCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedSettings(nil), fixedFactory(fake, nil))

	if err := cmd.Run(nil); err == nil {
		t.Fatalf("expected missing session id error")
	}
	if err := cmd.Run([]string{"s1", "   "}); !errors.Is(err, session.ErrEmptyMessage) {
		t.Fatalf("expected empty message error, got %v", err)
	}
	if err := cmd.Run([]string{"--model", "no-slash", "s1", "hi"}); err == nil || !strings.Contains(err.Error(), "provider/model") {
		t.Fatalf("expected invalid model error, got %v", err)
	}
	if err := cmd.Run([]string{"s1", "hi"}); !errors.Is(err, session.ErrNoModel) {
		t.Fatalf("expected no model error, got %v", err)
	}
	if len(fake.sendRequests) != 0 {
		t.Fatalf("expected no sends, got %d", len(fake.sendRequests))
	}
}

func TestSendCommandReportsAssistantError(t *testing.T) {
	failed := textMessage("m2", types.RoleAssistant, "")
	failed.Info.Error = &types.MessageError{Name: "ProviderAuthError", Data: map[string]any{"message": "bad key"}}
	fake := &fakeCommandClient{messagesResp: []types.MessageWithParts{failed}}
	cmd := NewSendCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedSettings(nil), fixedFactory(fake, nil))

	err := cmd.Run([]string{"--model", "a/b", "s1", "hello"})
	if err == nil || err.Error() != "bad key" {
		t.Fatalf("expected assistant error, got %v", err)
	}
}

func TestAbortCommand(t *testing.T) {
	stdout := &bytes.Buffer{}
	fake := &fakeCommandClient{abortResp: true}
	cmd := NewAbortCommand(stdout, &bytes.Buffer{}, fixedSettings(nil), fixedFactory(fake, nil))

	if err := cmd.Run([]string{"s1"}); err != nil {
		t.Fatalf("expected abort to succeed, got err=%v", err)
	}
	if len(fake.abortRequests) != 1 || fake.abortRequests[0] != "s1" {
		t.Fatalf("unexpected abort requests: %#v", fake.abortRequests)
	}
	if stdout.String() != "aborted\n" {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}

	fake.abortResp = false
	if err := cmd.Run([]string{"s1"}); err == nil {
		t.Fatalf("expected rejected abort to fail")
	}
	if err := cmd.Run(nil); err == nil {
		t.Fatalf("expected missing session id error")
	}
}

func TestEventsCommandFiltersAndStops(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	fake := &fakeCommandClient{
		frames: []string{
			`{"type":"server.connected","properties":{}}`,
			`{"type":"session.idle","properties":{"sessionID":"s2"}}`,
			`not json`,
			`{"type":"message.part.updated","properties":{"part":{"id":"p1","messageID":"m1","sessionID":"s1","type":"text","text":"hi"}}}`,
			`{"type":"session.idle","properties":{"sessionID":"s1"}}`,
			`{"type":"session.idle","properties":{"sessionID":"s1"}}`,
		},
	}
	cmd := NewEventsCommand(stdout, stderr, fixedSettings(nil), fixedFactory(fake, nil))

	if err := cmd.Run([]string{"--session", "s1", "--count", "2"}); err != nil {
		t.Fatalf("expected events to succeed, got err=%v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two events, got %q", stdout.String())
	}
	if lines[0] != "message.part.updated\ts1\tmessage=m1 part=p1 type=text" {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
	if lines[1] != "session.idle\ts1\t-" {
		t.Fatalf("unexpected second line: %q", lines[1])
	}
	if !strings.Contains(stderr.String(), "skipping frame") {
		t.Fatalf("expected malformed frame warning, got %q", stderr.String())
	}
	if !fake.streamClosed {
		t.Fatalf("expected stream to be closed")
	}
}

func TestEventsCommandReportsStreamEnd(t *testing.T) {
	fake := &fakeCommandClient{frames: []string{`{"type":"session.idle","properties":{"sessionID":"s1"}}`}}
	cmd := NewEventsCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedSettings(nil), fixedFactory(fake, nil))

	if err := cmd.Run([]string{"--raw"}); err == nil {
		t.Fatalf("expected stream end error")
	}
}

func TestConfigCommandDefaultsTOML(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	stdout := &bytes.Buffer{}
	cmd := NewConfigCommand(stdout, &bytes.Buffer{}, fixedSettings(nil))

	if err := cmd.Run([]string{"--default", "--format", "toml"}); err != nil {
		t.Fatalf("expected config to succeed, got err=%v", err)
	}
	out := stdout.String()
	for _, want := range []string{"[server]", "handshake_timeout = '10s'", "max_retries = 3", "backend = 'bbolt'"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestConfigCommandRedactsPassword(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	settings := fixedSettings(func(s *config.Settings) { s.Server.Password = "hunter2" })

	stdout := &bytes.Buffer{}
	if err := NewConfigCommand(stdout, &bytes.Buffer{}, settings).Run(nil); err != nil {
		t.Fatalf("expected config to succeed, got err=%v", err)
	}
	if strings.Contains(stdout.String(), "hunter2") || !strings.Contains(stdout.String(), redacted) {
		t.Fatalf("expected redacted password, got %s", stdout.String())
	}

	stdout.Reset()
	if err := NewConfigCommand(stdout, &bytes.Buffer{}, settings).Run([]string{"--show-secrets"}); err != nil {
		t.Fatalf("expected config to succeed, got err=%v", err)
	}
	if !strings.Contains(stdout.String(), "hunter2") {
		t.Fatalf("expected password with --show-secrets, got %s", stdout.String())
	}
}

func TestConfigCommandRejectsUnknownFormat(t *testing.T) {
	cmd := NewConfigCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedSettings(nil))
	if err := cmd.Run([]string{"--format", "yaml"}); err == nil {
		t.Fatalf("expected invalid format error")
	}
}

func TestUICommandResolvesOptions(t *testing.T) {
	var got uiOptions
	run := func(_ config.Settings, opts uiOptions) error {
		got = opts
		return nil
	}
	settings := fixedSettings(func(s *config.Settings) {
		s.Model.Provider = "anthropic"
		s.Model.Model = "claude-sonnet-4"
		s.Logging.Level = "warn"
	})

	if err := NewUICommand(&bytes.Buffer{}, settings, run).Run(nil); err != nil {
		t.Fatalf("expected ui to succeed, got err=%v", err)
	}
	want := uiOptions{address: "127.0.0.1:4096", providerID: "anthropic", modelID: "claude-sonnet-4", logLevel: "warn"}
	if got != want {
		t.Fatalf("unexpected options: %#v", got)
	}

	args := []string{"--addr", "10.0.0.2:4096", "--model", "openai/gpt-5", "--log-level", "debug"}
	if err := NewUICommand(&bytes.Buffer{}, settings, run).Run(args); err != nil {
		t.Fatalf("expected ui to succeed, got err=%v", err)
	}
	want = uiOptions{address: "10.0.0.2:4096", providerID: "openai", modelID: "gpt-5", logLevel: "debug"}
	if got != want {
		t.Fatalf("unexpected options: %#v", got)
	}

	if err := NewUICommand(&bytes.Buffer{}, settings, run).Run([]string{"--model", "gpt-5"}); err == nil {
		t.Fatalf("expected invalid model error")
	}
}

func TestSplitModel(t *testing.T) {
	providerID, modelID, ok := splitModel(" openrouter/anthropic/claude ")
	if !ok || providerID != "openrouter" || modelID != "anthropic/claude" {
		t.Fatalf("unexpected split: %q %q %v", providerID, modelID, ok)
	}
	if _, _, ok := splitModel("/model"); ok {
		t.Fatalf("expected empty provider to fail")
	}
}

func TestBuildCommandsRegistersAll(t *testing.T) {
	commands := buildCommands(defaultCommandWiring(&bytes.Buffer{}, &bytes.Buffer{}))
	for _, name := range []string{"ui", "sessions", "send", "abort", "events", "config"} {
		if _, ok := commands[name]; !ok {
			t.Fatalf("expected %s command", name)
		}
	}
}
