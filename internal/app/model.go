package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tether/internal/logging"
	"tether/internal/session"
	"tether/internal/state"
	"tether/internal/types"
)

const (
	maxListWidth      = 36
	minListWidth      = 20
	inputHeight       = 3
	statusLinePadding = 1
	borderSize        = 2
)

// Controller is the session surface the UI drives.
type Controller interface {
	State() state.State
	Subscribe() (<-chan struct{}, func())
	Errors() <-chan session.SendError
	Connect(ctx context.Context, address string, timeout time.Duration) error
	AutoReconnect(ctx context.Context) error
	RetryConnection(ctx context.Context) error
	Disconnect(ctx context.Context)
	RefreshSessions(ctx context.Context) error
	ClearError()
	SetCurrentSession(ctx context.Context, s *types.Session)
	LoadMessages(ctx context.Context, sessionID string) error
	SendMessage(sessionID, text, providerID, modelID string, images []session.Image) (string, error)
	AbortSession(ctx context.Context, sessionID string) bool
	SetForeground(foreground bool) bool
	DefaultModel(ctx context.Context) (providerID, modelID string, err error)
}

type Options struct {
	// Address connects on start. Empty means reconnect to the persisted
	// server, if any.
	Address    string
	ProviderID string
	ModelID    string
	Logger     logging.Logger
}

type focusArea int

const (
	focusSessions focusArea = iota
	focusInput
)

type Model struct {
	ctrl   Controller
	opts   Options
	logger logging.Logger

	width  int
	height int
	focus  focusArea

	sessions   list.Model
	transcript viewport.Model
	input      textarea.Model
	spinner    spinner.Model

	snapshot    state.State
	updates     <-chan struct{}
	unsubscribe func()

	providerID string
	modelID    string
	notice     string
}

func NewModel(ctrl Controller, opts Options) *Model {
	updates, unsubscribe := ctrl.Subscribe()

	sessions := list.New(nil, list.NewDefaultDelegate(), maxListWidth, 10)
	sessions.Title = "sessions"
	sessions.SetShowHelp(false)
	sessions.SetShowStatusBar(false)
	sessions.SetFilteringEnabled(false)
	sessions.DisableQuitKeybindings()

	input := textarea.New()
	input.ShowLineNumbers = false
	input.SetHeight(inputHeight)
	input.KeyMap.InsertNewline.SetKeys("alt+enter")
	input.Focus()

	m := &Model{
		ctrl:        ctrl,
		opts:        opts,
		logger:      logging.OrNop(opts.Logger).With(logging.F("component", "ui")),
		focus:       focusInput,
		sessions:    sessions,
		transcript:  viewport.New(40, 10),
		input:       input,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		updates:     updates,
		unsubscribe: unsubscribe,
		providerID:  strings.TrimSpace(opts.ProviderID),
		modelID:     strings.TrimSpace(opts.ModelID),
	}
	m.applySnapshot()
	return m
}

func Run(ctrl Controller, opts Options) error {
	renderers.setDark(lipgloss.HasDarkBackground())
	m := NewModel(ctrl, opts)
	defer m.unsubscribe()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		waitForStateCmd(m.updates),
		waitForSendErrorCmd(m.ctrl.Errors()),
		m.startupCmd(),
		textarea.Blink,
		m.spinner.Tick,
	)
}

func (m *Model) startupCmd() tea.Cmd {
	if address := strings.TrimSpace(m.opts.Address); address != "" {
		return connectCmd(m.ctrl, address)
	}
	return autoReconnectCmd(m.ctrl)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.FocusMsg:
		m.ctrl.SetForeground(true)
		return m, nil
	case tea.BlurMsg:
		m.ctrl.SetForeground(false)
		return m, nil
	case stateChangedMsg:
		m.applySnapshot()
		return m, waitForStateCmd(m.updates)
	case sendErrorMsg:
		m.notice = msg.err.Err.Error()
		return m, waitForSendErrorCmd(m.ctrl.Errors())
	case opResultMsg:
		return m, m.handleOpResult(msg)
	case defaultModelMsg:
		if msg.err != nil {
			m.logger.Warn("default model lookup failed", logging.Err(msg.err))
			m.notice = "no model configured: set [model] in config.toml"
			return m, nil
		}
		m.providerID, m.modelID = msg.providerID, msg.modelID
		return m, nil
	case copyResultMsg:
		if msg.err != nil {
			m.notice = "copy failed: " + msg.err.Error()
		} else {
			m.notice = "share link copied (" + msg.method.String() + ")"
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if handled, cmd := m.handleKey(msg); handled {
			return m, cmd
		}
	}
	return m, m.updateFocused(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return true, tea.Quit
	case "tab":
		m.toggleFocus()
		return true, nil
	case "ctrl+r":
		m.notice = "retrying connection"
		return true, retryCmd(m.ctrl)
	case "ctrl+l":
		if !m.snapshot.Connected() {
			return true, nil
		}
		return true, refreshSessionsCmd(m.ctrl)
	case "ctrl+d":
		if m.snapshot.Status == state.StatusIdle {
			return false, nil
		}
		m.ctrl.Disconnect(context.Background())
		m.notice = "disconnected"
		m.applySnapshot()
		return true, nil
	case "ctrl+e":
		m.notice = ""
		m.ctrl.ClearError()
		return true, nil
	case "ctrl+x":
		id := m.snapshot.CurrentSessionID()
		if id == "" {
			m.notice = "no session selected"
			return true, nil
		}
		return true, abortCmd(m.ctrl, id)
	case "ctrl+y":
		url := m.snapshot.CurrentSession.ShareURL()
		if url == "" {
			m.notice = "session is not shared"
			return true, nil
		}
		return true, copyCmd(url)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return true, cmd
	case "enter":
		if m.focus == focusSessions {
			return true, m.selectSession()
		}
		return true, m.submitInput()
	}
	return false, nil
}

func (m *Model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if m.focus == focusSessions {
		m.sessions, cmd = m.sessions.Update(msg)
		return cmd
	}
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) toggleFocus() {
	if m.focus == focusInput {
		m.focus = focusSessions
		m.input.Blur()
		return
	}
	m.focus = focusInput
	m.input.Focus()
}

func (m *Model) selectSession() tea.Cmd {
	item, ok := m.sessions.SelectedItem().(sessionItem)
	if !ok {
		return nil
	}
	selected := item.session
	m.ctrl.SetCurrentSession(context.Background(), &selected)
	m.applySnapshot()
	m.focus = focusInput
	m.input.Focus()
	return loadMessagesCmd(m.ctrl, selected.ID)
}

func (m *Model) submitInput() tea.Cmd {
	text := m.input.Value()
	if !m.snapshot.Connected() {
		address := strings.TrimSpace(text)
		if address == "" {
			m.notice = "enter a server address"
			return nil
		}
		m.input.Reset()
		m.notice = ""
		return connectCmd(m.ctrl, address)
	}
	current := m.snapshot.CurrentSessionID()
	if current == "" {
		m.notice = "select a session first (tab)"
		return nil
	}
	_, err := m.ctrl.SendMessage(current, text, m.providerID, m.modelID, nil)
	switch {
	case err == nil:
		m.input.Reset()
		m.notice = ""
	case errors.Is(err, session.ErrEmptyMessage):
	case errors.Is(err, session.ErrNoModel):
		m.notice = "no model configured: set [model] in config.toml"
	default:
		m.notice = err.Error()
	}
	return nil
}

func (m *Model) handleOpResult(msg opResultMsg) tea.Cmd {
	if msg.err == nil {
		if (msg.op == opConnect || msg.op == opAutoReconnect || msg.op == opRetry) && m.snapshot.Connected() {
			m.notice = ""
			if m.providerID == "" || m.modelID == "" {
				return defaultModelCmd(m.ctrl)
			}
		}
		if msg.op == opAbort {
			m.notice = "abort requested"
		}
		return nil
	}
	switch {
	case errors.Is(msg.err, session.ErrSuperseded):
	case msg.op == opAutoReconnect:
		m.logger.Info("auto reconnect failed", logging.Err(msg.err))
	case msg.op == opConnect:
		// The state carries the connection error.
	default:
		m.notice = msg.op + ": " + msg.err.Error()
	}
	return nil
}

func (m *Model) applySnapshot() {
	m.snapshot = m.ctrl.State()
	m.sessions.SetItems(sessionItems(m.snapshot.Sessions, m.snapshot.CurrentSessionID()))

	if m.snapshot.Connected() {
		m.input.Placeholder = "message (enter to send, alt+enter for newline)"
	} else {
		m.input.Placeholder = "server address, e.g. 192.168.1.20:4096"
	}

	atBottom := m.transcript.AtBottom()
	switch {
	case m.snapshot.CurrentSession == nil:
		m.transcript.SetContent(metaStyle.Render("select a session"))
	case m.snapshot.LoadingMessages && len(m.snapshot.Messages) == 0:
		m.transcript.SetContent(metaStyle.Render("loading…"))
	default:
		m.transcript.SetContent(renderTranscript(m.snapshot.Messages, m.transcript.Width))
	}
	if atBottom {
		m.transcript.GotoBottom()
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	listWidth := width / 3
	if listWidth > maxListWidth {
		listWidth = maxListWidth
	}
	if listWidth < minListWidth {
		listWidth = minListWidth
	}
	contentHeight := height - 1 - borderSize
	if contentHeight < inputHeight+borderSize+1 {
		contentHeight = inputHeight + borderSize + 1
	}
	m.sessions.SetSize(listWidth, contentHeight)

	rightWidth := width - listWidth - 2*borderSize
	if rightWidth < 10 {
		rightWidth = 10
	}
	m.transcript.Width = rightWidth
	m.transcript.Height = contentHeight - inputHeight - borderSize
	m.input.SetWidth(rightWidth)
	m.applySnapshot()
}

func (m *Model) View() string {
	if m.width == 0 {
		return "starting…"
	}
	left := pane(m.focus == focusSessions).Render(m.sessions.View())
	right := lipgloss.JoinVertical(lipgloss.Left,
		paneStyle.Render(m.transcript.View()),
		pane(m.focus == focusInput).Render(m.input.View()),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.statusLine())
}

func (m *Model) statusLine() string {
	s := m.snapshot
	parts := []string{string(s.Status)}
	if s.ServerAddress != "" {
		parts = append(parts, s.ServerAddress)
	}
	if s.Connected() {
		if s.StreamConnected {
			parts = append(parts, "live")
		} else {
			parts = append(parts, "stream down (ctrl+r)")
		}
		if s.Generating {
			parts = append(parts, m.spinner.View()+" generating")
		}
		if m.providerID != "" && m.modelID != "" {
			parts = append(parts, m.providerID+"/"+m.modelID)
		}
	}
	if s.LastError != "" {
		parts = append(parts, "error: "+s.LastError)
	}
	if m.notice != "" {
		parts = append(parts, m.notice)
	}
	width := m.width - 2*statusLinePadding
	return statusBarStyle.Width(m.width).Render(truncate(strings.Join(parts, " · "), width))
}
