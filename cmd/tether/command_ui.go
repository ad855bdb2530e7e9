package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"tether/internal/app"
	"tether/internal/client"
	"tether/internal/config"
	"tether/internal/logging"
	"tether/internal/session"
	"tether/internal/store"
	"tether/internal/stream"
)

type uiOptions struct {
	address    string
	providerID string
	modelID    string
	logLevel   string
}

type uiRunner func(settings config.Settings, opts uiOptions) error

type UICommand struct {
	stderr       io.Writer
	loadSettings func() (config.Settings, error)
	run          uiRunner
}

func NewUICommand(stderr io.Writer, loadSettings func() (config.Settings, error), run uiRunner) *UICommand {
	return &UICommand{
		stderr:       stderr,
		loadSettings: loadSettings,
		run:          run,
	}
}

func (c *UICommand) Run(args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	addr := fs.String("addr", "", "server address (defaults to the last connected server)")
	model := fs.String("model", "", "provider/model for new messages")
	logLevel := fs.String("log-level", "", "debug|info|warn|error (defaults to config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := c.loadSettings()
	if err != nil {
		return err
	}
	opts := uiOptions{address: strings.TrimSpace(*addr), logLevel: strings.TrimSpace(*logLevel)}
	if opts.address == "" {
		opts.address = settings.ServerAddress()
	}
	if strings.TrimSpace(*model) != "" {
		providerID, modelID, ok := splitModel(*model)
		if !ok {
			return fmt.Errorf("invalid --model %q: expected provider/model", *model)
		}
		opts.providerID, opts.modelID = providerID, modelID
	} else {
		opts.providerID, opts.modelID = settings.DefaultModel()
	}
	if opts.logLevel == "" {
		opts.logLevel = settings.LogLevel()
	}
	return c.run(settings, opts)
}

func runTerminalUI(settings config.Settings, opts uiOptions) error {
	logger := logging.Nop()
	if logPath, err := config.LogPath(); err == nil {
		fileLogger, closer, err := logging.OpenFile(logPath, logging.ParseLevel(opts.logLevel))
		if err == nil {
			defer closer.Close()
			logger = fileLogger
		} else {
			fmt.Fprintf(os.Stderr, "logging disabled: %v\n", err)
		}
	}

	kv, err := store.OpenKV(settings.StorageBackend())
	if err != nil {
		logger.Warn("state store unavailable; connection will not be remembered", logging.Err(err))
		kv = store.NewMemoryKV()
	}
	persistence := store.NewPersistence(kv, logger)
	defer persistence.Close()

	ctrl := session.New(session.Options{
		Persistence: persistence,
		Dialer: session.HandshakeDialer(client.Options{
			Username: settings.Username(),
			Password: settings.Password(),
			Logger:   logger,
		}),
		HandshakeTimeout: settings.HandshakeTimeout(),
		ReconnectTimeout: settings.ReconnectTimeout(),
		Backoff: stream.Backoff{
			Base:        settings.StreamBaseDelay(),
			MaxAttempts: settings.StreamMaxRetries(),
		},
		Logger: logger,
	})
	defer ctrl.Close()

	return app.Run(ctrl, app.Options{
		Address:    opts.address,
		ProviderID: opts.providerID,
		ModelID:    opts.modelID,
		Logger:     logger,
	})
}
