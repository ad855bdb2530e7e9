package app

import (
	"strings"
	"testing"

	xansi "github.com/charmbracelet/x/ansi"

	"tether/internal/types"
)

func TestRenderTranscriptShowsRolesPartsAndUsage(t *testing.T) {
	messages := []types.MessageWithParts{
		{
			Info:  types.Message{ID: "m1", SessionID: "s1", Role: types.RoleUser},
			Parts: []types.Part{{ID: "p1", MessageID: "m1", Type: types.PartTypeText, Text: "list the files"}},
		},
		{
			Info: types.Message{
				ID:        "m2",
				SessionID: "s1",
				Role:      types.RoleAssistant,
				ModelID:   "claude-sonnet-4",
				Tokens:    &types.TokenUsage{Input: 10, Output: 5},
			},
			Parts: []types.Part{
				{ID: "p2", MessageID: "m2", Type: types.PartTypeStepStart},
				{ID: "p3", MessageID: "m2", Type: types.PartTypeTool, Tool: "bash", State: &types.ToolState{Status: "completed", Title: "ls"}},
				{ID: "p4", MessageID: "m2", Type: types.PartTypeText, Text: "done"},
			},
		},
	}

	out := xansi.Strip(renderTranscript(messages, 60))
	for _, want := range []string{"you", "list the files", "assistant", "claude-sonnet-4", "15 tokens", "tool bash: ls [completed]", "done"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in transcript:\n%s", want, out)
		}
	}
	if strings.Index(out, "list the files") > strings.Index(out, "done") {
		t.Fatalf("expected messages in order:\n%s", out)
	}
}

func TestRenderMessageShowsErrorsButNotAborts(t *testing.T) {
	failed := types.MessageWithParts{Info: types.Message{
		ID:    "m1",
		Role:  types.RoleAssistant,
		Error: &types.MessageError{Name: "ProviderAuthError", Data: map[string]any{"message": "bad key"}},
	}}
	if out := xansi.Strip(renderMessage(failed, 40)); !strings.Contains(out, "error: bad key") {
		t.Fatalf("expected error line, got:\n%s", out)
	}

	aborted := types.MessageWithParts{Info: types.Message{
		ID:    "m2",
		Role:  types.RoleAssistant,
		Error: &types.MessageError{Name: "MessageAbortedError"},
	}}
	out := xansi.Strip(renderMessage(aborted, 40))
	if strings.Contains(out, "error:") || !strings.Contains(out, "aborted") {
		t.Fatalf("expected abort marker only, got:\n%s", out)
	}
}

func TestRenderTranscriptEmpty(t *testing.T) {
	if out := xansi.Strip(renderTranscript(nil, 40)); out != "no messages yet" {
		t.Fatalf("unexpected empty transcript: %q", out)
	}
}

func TestRenderPartSkipsStepMarkersAndBlankReasoning(t *testing.T) {
	for _, part := range []types.Part{
		{Type: types.PartTypeStepStart},
		{Type: types.PartTypeStepFinish},
		{Type: types.PartTypeReasoning, Text: "  "},
		{Type: types.PartTypeSnapshot},
	} {
		if out := renderPart(types.RoleAssistant, part, 40); out != "" {
			t.Fatalf("expected %s part to render nothing, got %q", part.Type, out)
		}
	}
}

func TestToolSummaryDefaultsToPending(t *testing.T) {
	if got := toolSummary(types.Part{Type: types.PartTypeTool, Tool: "read"}); got != "tool read [pending]" {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestTruncateRespectsDisplayWidth(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncate result: %q", got)
	}
	got := truncate("日本語のテキスト", 7)
	if xansi.StringWidth(got) > 7 || !strings.HasSuffix(got, "…") {
		t.Fatalf("unexpected wide truncate result: %q", got)
	}
}

func TestSessionItemsMarkCurrent(t *testing.T) {
	sessions := []types.Session{
		{ID: "s1", Title: "first"},
		{ID: "s2", Title: ""},
	}
	items := sessionItems(sessions, "s2")
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first := items[0].(sessionItem)
	second := items[1].(sessionItem)
	if first.Title() != "first" {
		t.Fatalf("unexpected first title: %q", first.Title())
	}
	if second.Title() != "● s2" {
		t.Fatalf("expected current marker and id fallback, got %q", second.Title())
	}
	if first.Description() != "new" {
		t.Fatalf("unexpected description: %q", first.Description())
	}
}
