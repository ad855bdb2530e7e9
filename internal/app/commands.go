package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tether/internal/session"
)

const (
	opConnect       = "connect"
	opAutoReconnect = "auto-reconnect"
	opRetry         = "retry"
	opLoadMessages  = "load messages"
	opRefresh       = "refresh sessions"
	opAbort         = "abort"

	opTimeout   = 30 * time.Second
	copyTimeout = 3 * time.Second
)

var errAbortRejected = errors.New("server did not abort the session")

type stateChangedMsg struct{}

type sendErrorMsg struct {
	err session.SendError
}

type opResultMsg struct {
	op  string
	err error
}

type defaultModelMsg struct {
	providerID string
	modelID    string
	err        error
}

type copyResultMsg struct {
	method clipboardMethod
	err    error
}

func waitForStateCmd(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

func waitForSendErrorCmd(errs <-chan session.SendError) tea.Cmd {
	return func() tea.Msg {
		err, ok := <-errs
		if !ok {
			return nil
		}
		return sendErrorMsg{err: err}
	}
}

func runOp(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opResultMsg{op: op, err: fn(ctx)}
	}
}

func connectCmd(ctrl Controller, address string) tea.Cmd {
	return runOp(opConnect, func(ctx context.Context) error {
		return ctrl.Connect(ctx, address, 0)
	})
}

func autoReconnectCmd(ctrl Controller) tea.Cmd {
	return runOp(opAutoReconnect, ctrl.AutoReconnect)
}

func retryCmd(ctrl Controller) tea.Cmd {
	return runOp(opRetry, ctrl.RetryConnection)
}

func refreshSessionsCmd(ctrl Controller) tea.Cmd {
	return runOp(opRefresh, ctrl.RefreshSessions)
}

func loadMessagesCmd(ctrl Controller, sessionID string) tea.Cmd {
	return runOp(opLoadMessages, func(ctx context.Context) error {
		return ctrl.LoadMessages(ctx, sessionID)
	})
}

func abortCmd(ctrl Controller, sessionID string) tea.Cmd {
	return runOp(opAbort, func(ctx context.Context) error {
		if !ctrl.AbortSession(ctx, sessionID) {
			return errAbortRejected
		}
		return nil
	})
}

func defaultModelCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		providerID, modelID, err := ctrl.DefaultModel(ctx)
		return defaultModelMsg{providerID: providerID, modelID: modelID, err: err}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), copyTimeout)
		defer cancel()
		method, err := copyText(ctx, text)
		return copyResultMsg{method: method, err: err}
	}
}
