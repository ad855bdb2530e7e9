package main

import (
	"context"
	"errors"
	"strings"

	"tether/internal/client"
	"tether/internal/config"
	"tether/internal/types"
)

var errNoAddress = errors.New("server address is required: pass --addr or set [server].address in config.toml")

type commandClient interface {
	ListSessions(ctx context.Context) ([]types.Session, error)
	GetSession(ctx context.Context, sessionID string) (*types.Session, error)
	ListMessages(ctx context.Context, sessionID string) ([]types.MessageWithParts, error)
	SendMessage(ctx context.Context, sessionID string, req client.ChatRequest) error
	AbortSession(ctx context.Context, sessionID string) (bool, error)
	ListProviders(ctx context.Context) (*client.ProviderCatalog, error)
	EventStream(ctx context.Context) (<-chan string, func(), error)
}

type clientFactory func(ctx context.Context, settings config.Settings, address string) (commandClient, error)

func newServerClient(ctx context.Context, settings config.Settings, address string) (commandClient, error) {
	c, err := client.Handshake(ctx, address, settings.HandshakeTimeout(), clientOptions(settings))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func clientOptions(settings config.Settings) client.Options {
	return client.Options{
		Username: settings.Username(),
		Password: settings.Password(),
	}
}

// resolveAddress prefers the flag over the configured server.
func resolveAddress(flagValue string, settings config.Settings) (string, error) {
	if address := strings.TrimSpace(flagValue); address != "" {
		return address, nil
	}
	if address := settings.ServerAddress(); address != "" {
		return address, nil
	}
	return "", errNoAddress
}

// connect loads settings and returns a client for the resolved address.
func connect(ctx context.Context, loadSettings func() (config.Settings, error), newClient clientFactory, addr string) (commandClient, config.Settings, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, config.Settings{}, err
	}
	address, err := resolveAddress(addr, settings)
	if err != nil {
		return nil, settings, err
	}
	c, err := newClient(ctx, settings, address)
	if err != nil {
		return nil, settings, err
	}
	return c, settings, nil
}
