package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"tether/internal/logging"
	"tether/internal/types"
)

const (
	KeyConnection = "connection"
	KeySession    = "session"

	ConnectionTTL = 24 * time.Hour
)

// ConnectionRecord is the persisted "last connection". Timestamp is unix
// milliseconds of the last successful connect.
type ConnectionRecord struct {
	ServerAddress string `json:"serverAddress"`
	Timestamp     int64  `json:"timestamp"`
}

// Persistence remembers the last connection and the last active session.
// It is a convenience: every failure is logged and reported as "nothing
// persisted", never returned.
type Persistence struct {
	kv     KV
	logger logging.Logger
	ttl    time.Duration
	now    func() time.Time
}

func NewPersistence(kv KV, logger logging.Logger) *Persistence {
	if kv == nil {
		kv = NewMemoryKV()
	}
	return &Persistence{
		kv:     kv,
		logger: logging.OrNop(logger).With(logging.F("component", "persistence")),
		ttl:    ConnectionTTL,
		now:    time.Now,
	}
}

// WithClock replaces the clock used for the connection TTL.
func (p *Persistence) WithClock(now func() time.Time) *Persistence {
	if now != nil {
		p.now = now
	}
	return p
}

func (p *Persistence) SaveConnection(ctx context.Context, address string) {
	address = strings.TrimSpace(address)
	if address == "" {
		return
	}
	p.put(ctx, KeyConnection, ConnectionRecord{
		ServerAddress: address,
		Timestamp:     p.now().UnixMilli(),
	})
}

// LoadConnection returns the persisted address. Records older than the TTL
// are deleted and reported as absent.
func (p *Persistence) LoadConnection(ctx context.Context) (string, bool) {
	var record ConnectionRecord
	if !p.get(ctx, KeyConnection, &record) {
		return "", false
	}
	address := strings.TrimSpace(record.ServerAddress)
	if address == "" {
		p.ClearConnection(ctx)
		return "", false
	}
	age := p.now().Sub(time.UnixMilli(record.Timestamp))
	if age > p.ttl {
		p.logger.Info("persisted connection expired", logging.F("address", address), logging.F("age", age.Round(time.Second)))
		p.ClearConnection(ctx)
		return "", false
	}
	return address, true
}

func (p *Persistence) ClearConnection(ctx context.Context) {
	p.delete(ctx, KeyConnection)
}

func (p *Persistence) SaveSession(ctx context.Context, session *types.Session) {
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return
	}
	p.put(ctx, KeySession, session)
}

func (p *Persistence) LoadSession(ctx context.Context) (*types.Session, bool) {
	var session types.Session
	if !p.get(ctx, KeySession, &session) {
		return nil, false
	}
	if strings.TrimSpace(session.ID) == "" {
		p.ClearSession(ctx)
		return nil, false
	}
	return &session, true
}

func (p *Persistence) ClearSession(ctx context.Context) {
	p.delete(ctx, KeySession)
}

func (p *Persistence) Close() error {
	return p.kv.Close()
}

func (p *Persistence) put(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		p.logger.Warn("persist encode failed", logging.F("key", key), logging.Err(err))
		return
	}
	if err := p.kv.Put(ctx, key, raw); err != nil {
		p.logger.Warn("persist write failed", logging.F("key", key), logging.Err(err))
	}
}

func (p *Persistence) get(ctx context.Context, key string, out any) bool {
	raw, ok, err := p.kv.Get(ctx, key)
	if err != nil {
		p.logger.Warn("persist read failed", logging.F("key", key), logging.Err(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		p.logger.Warn("persisted record corrupt", logging.F("key", key), logging.Err(err))
		p.delete(ctx, key)
		return false
	}
	return true
}

func (p *Persistence) delete(ctx context.Context, key string) {
	if err := p.kv.Delete(ctx, key); err != nil {
		p.logger.Warn("persist delete failed", logging.F("key", key), logging.Err(err))
	}
}
