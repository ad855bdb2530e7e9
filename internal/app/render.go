package app

import (
	"fmt"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"tether/internal/types"
)

func renderTranscript(messages []types.MessageWithParts, width int) string {
	if len(messages) == 0 {
		return metaStyle.Render("no messages yet")
	}
	blocks := make([]string, 0, len(messages))
	for _, message := range messages {
		blocks = append(blocks, renderMessage(message, width))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(message types.MessageWithParts, width int) string {
	lines := []string{messageHeader(message.Info)}
	for _, part := range message.Parts {
		if body := renderPart(message.Info.Role, part, width); body != "" {
			lines = append(lines, body)
		}
	}
	if err := message.Info.Error; err != nil {
		if err.Aborted() {
			lines = append(lines, metaStyle.Render("aborted"))
		} else {
			lines = append(lines, errorStyle.Render(xansi.Hardwrap("error: "+err.Message(), width, true)))
		}
	}
	return strings.Join(lines, "\n")
}

func messageHeader(info types.Message) string {
	if info.Role == types.RoleUser {
		return userStyle.Render("you")
	}
	header := assistantStyle.Render("assistant")
	var meta []string
	if info.ModelID != "" {
		meta = append(meta, info.ModelID)
	}
	if total := info.Tokens.Total(); total > 0 {
		meta = append(meta, fmt.Sprintf("%d tokens", total))
	}
	if info.Cost > 0 {
		meta = append(meta, fmt.Sprintf("$%.4f", info.Cost))
	}
	if len(meta) > 0 {
		header += " " + metaStyle.Render(strings.Join(meta, " · "))
	}
	return header
}

func renderPart(role types.Role, part types.Part, width int) string {
	switch part.Type {
	case types.PartTypeText:
		text := part.Text
		if role == types.RoleUser {
			text = escapeMarkdown(text)
		}
		return renderMarkdown(text, width)
	case types.PartTypeReasoning:
		if strings.TrimSpace(part.Text) == "" {
			return ""
		}
		return reasoningStyle.Render(xansi.Hardwrap(strings.TrimSpace(part.Text), width, true))
	case types.PartTypeTool:
		return toolStyle.Render(truncate(toolSummary(part), width))
	case types.PartTypeFile:
		name := part.Filename
		if name == "" {
			name = part.Mime
		}
		return metaStyle.Render(truncate("attachment: "+name, width))
	default:
		return ""
	}
}

func toolSummary(part types.Part) string {
	status := "pending"
	title := ""
	if part.State != nil {
		if part.State.Status != "" {
			status = part.State.Status
		}
		title = part.State.Title
	}
	summary := "tool " + part.Tool
	if title != "" {
		summary += ": " + title
	}
	return summary + " [" + status + "]"
}

func truncate(text string, width int) string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "…")
}
