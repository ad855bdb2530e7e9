package session

import (
	"context"
	"time"

	"tether/internal/client"
	"tether/internal/types"
)

// API is the request surface the controller needs from a connected server.
type API interface {
	BaseURL() string
	ListSessions(ctx context.Context) ([]types.Session, error)
	ListMessages(ctx context.Context, sessionID string) ([]types.MessageWithParts, error)
	SendMessage(ctx context.Context, sessionID string, req client.ChatRequest) error
	AbortSession(ctx context.Context, sessionID string) (bool, error)
	ListProviders(ctx context.Context) (*client.ProviderCatalog, error)
	EventStream(ctx context.Context) (<-chan string, func(), error)
}

// Dialer performs the handshake against address and returns a handle.
type Dialer func(ctx context.Context, address string, timeout time.Duration) (API, error)

func HandshakeDialer(opts client.Options) Dialer {
	return func(ctx context.Context, address string, timeout time.Duration) (API, error) {
		c, err := client.Handshake(ctx, address, timeout, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
