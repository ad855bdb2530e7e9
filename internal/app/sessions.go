package app

import (
	"github.com/charmbracelet/bubbles/list"

	"tether/internal/types"
)

type sessionItem struct {
	session types.Session
	current bool
}

func (i sessionItem) FilterValue() string {
	return i.session.Title
}

func (i sessionItem) Title() string {
	title := i.session.Title
	if title == "" {
		title = i.session.ID
	}
	if i.current {
		return "● " + title
	}
	return title
}

func (i sessionItem) Description() string {
	desc := "new"
	if updated := i.session.UpdatedAt(); !updated.IsZero() {
		desc = updated.Local().Format("Jan 2 15:04")
	}
	if i.session.ShareURL() != "" {
		desc += " · shared"
	}
	return desc
}

func sessionItems(sessions []types.Session, currentID string) []list.Item {
	items := make([]list.Item, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, sessionItem{session: session, current: session.ID == currentID})
	}
	return items
}
