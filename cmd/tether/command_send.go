package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"tether/internal/client"
	"tether/internal/config"
	"tether/internal/session"
	"tether/internal/types"
)

type SendCommand struct {
	stdout       io.Writer
	stderr       io.Writer
	loadSettings func() (config.Settings, error)
	newClient    clientFactory
	readFile     func(string) ([]byte, error)
}

func NewSendCommand(stdout, stderr io.Writer, loadSettings func() (config.Settings, error), newClient clientFactory) *SendCommand {
	return &SendCommand{
		stdout:       stdout,
		stderr:       stderr,
		loadSettings: loadSettings,
		newClient:    newClient,
		readFile:     os.ReadFile,
	}
}

func (c *SendCommand) Run(args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	addr := fs.String("addr", "", "server address")
	model := fs.String("model", "", "provider/model (defaults to config, then the server default)")
	var images stringList
	fs.Var(&images, "image", "attach an image file (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("send requires a session id")
	}
	sessionID := fs.Arg(0)
	text := strings.Join(fs.Args()[1:], " ")

	attachments := make([]session.Image, 0, len(images))
	for _, path := range images {
		data, err := c.readFile(path)
		if err != nil {
			return err
		}
		attachments = append(attachments, session.Image{Filename: filepath.Base(path), Data: data})
	}
	parts := session.BuildParts(text, attachments)
	if len(parts) == 0 {
		return session.ErrEmptyMessage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	api, settings, err := connect(ctx, c.loadSettings, c.newClient, *addr)
	if err != nil {
		return err
	}
	providerID, modelID, err := resolveModel(ctx, api, settings, *model)
	if err != nil {
		return err
	}

	err = api.SendMessage(ctx, sessionID, client.ChatRequest{ProviderID: providerID, ModelID: modelID, Parts: parts})
	if err != nil {
		if ctx.Err() != nil {
			if ok, abortErr := api.AbortSession(context.Background(), sessionID); abortErr == nil && ok {
				return errors.New("interrupted; session aborted")
			}
		}
		return err
	}

	messages, err := api.ListMessages(ctx, sessionID)
	if err != nil {
		return err
	}
	if reply := lastAssistant(messages); reply != nil {
		if reply.Info.Error != nil && !reply.Info.Error.Aborted() {
			return errors.New(reply.Info.Error.Message())
		}
		fmt.Fprintln(c.stdout, strings.TrimSpace(reply.Text()))
	}
	return nil
}

func resolveModel(ctx context.Context, api commandClient, settings config.Settings, flagValue string) (string, string, error) {
	if strings.TrimSpace(flagValue) != "" {
		providerID, modelID, ok := splitModel(flagValue)
		if !ok {
			return "", "", fmt.Errorf("invalid --model %q: expected provider/model", flagValue)
		}
		return providerID, modelID, nil
	}
	if providerID, modelID := settings.DefaultModel(); providerID != "" && modelID != "" {
		return providerID, modelID, nil
	}
	catalog, err := api.ListProviders(ctx)
	if err != nil {
		return "", "", err
	}
	if providerID, modelID, ok := catalog.DefaultModel(); ok {
		return providerID, modelID, nil
	}
	return "", "", session.ErrNoModel
}

func lastAssistant(messages []types.MessageWithParts) *types.MessageWithParts {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Info.Role == types.RoleAssistant {
			return &messages[i]
		}
	}
	return nil
}
