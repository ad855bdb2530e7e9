package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"tether/internal/config"
	"tether/internal/types"
)

type SessionsCommand struct {
	stdout       io.Writer
	stderr       io.Writer
	loadSettings func() (config.Settings, error)
	newClient    clientFactory
}

func NewSessionsCommand(stdout, stderr io.Writer, loadSettings func() (config.Settings, error), newClient clientFactory) *SessionsCommand {
	return &SessionsCommand{
		stdout:       stdout,
		stderr:       stderr,
		loadSettings: loadSettings,
		newClient:    newClient,
	}
}

func (c *SessionsCommand) Run(args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	addr := fs.String("addr", "", "server address")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	client, _, err := connect(ctx, c.loadSettings, c.newClient, *addr)
	if err != nil {
		return err
	}

	if fs.NArg() > 0 {
		return c.show(ctx, client, fs.Arg(0), *asJSON)
	}
	sessions, err := client.ListSessions(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return json.NewEncoder(c.stdout).Encode(sessions)
	}
	printSessions(c.stdout, sessions)
	return nil
}

func (c *SessionsCommand) show(ctx context.Context, client commandClient, id string, asJSON bool) error {
	session, err := client.GetSession(ctx, id)
	if err != nil {
		return err
	}
	messages, err := client.ListMessages(ctx, session.ID)
	if err != nil {
		return err
	}
	if asJSON {
		return json.NewEncoder(c.stdout).Encode(struct {
			Session  *types.Session           `json:"session"`
			Messages []types.MessageWithParts `json:"messages"`
		}{session, messages})
	}
	printSessions(c.stdout, []types.Session{*session})
	if url := session.ShareURL(); url != "" {
		fmt.Fprintf(c.stdout, "share: %s\n", url)
	}
	for i := range messages {
		text := strings.TrimSpace(messages[i].Text())
		if text == "" {
			continue
		}
		fmt.Fprintf(c.stdout, "\n[%s]\n%s\n", messages[i].Info.Role, text)
	}
	return nil
}
