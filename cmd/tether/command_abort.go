package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"tether/internal/config"
)

type AbortCommand struct {
	stdout       io.Writer
	stderr       io.Writer
	loadSettings func() (config.Settings, error)
	newClient    clientFactory
}

func NewAbortCommand(stdout, stderr io.Writer, loadSettings func() (config.Settings, error), newClient clientFactory) *AbortCommand {
	return &AbortCommand{
		stdout:       stdout,
		stderr:       stderr,
		loadSettings: loadSettings,
		newClient:    newClient,
	}
}

func (c *AbortCommand) Run(args []string) error {
	fs := flag.NewFlagSet("abort", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	addr := fs.String("addr", "", "server address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("abort requires a session id")
	}
	id := fs.Arg(0)

	ctx := context.Background()
	client, _, err := connect(ctx, c.loadSettings, c.newClient, *addr)
	if err != nil {
		return err
	}
	ok, err := client.AbortSession(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("server did not abort session %s", id)
	}
	fmt.Fprintln(c.stdout, "aborted")
	return nil
}
