package config

import (
	"errors"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReconnectTimeout = 5 * time.Second
	defaultStreamRetries    = 3
	defaultStreamBaseDelay  = time.Second
	defaultUsername         = "opencode"
)

const (
	StorageBackendBbolt = "bbolt"
	StorageBackendFile  = "file"
)

type Settings struct {
	Server  ServerSettings  `toml:"server"`
	Stream  StreamSettings  `toml:"stream"`
	Model   ModelSettings   `toml:"model"`
	Storage StorageSettings `toml:"storage"`
	Logging LoggingSettings `toml:"logging"`
}

type ServerSettings struct {
	Address          string `toml:"address"`
	Username         string `toml:"username"`
	Password         string `toml:"password"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	ReconnectTimeout string `toml:"reconnect_timeout"`
}

type StreamSettings struct {
	MaxRetries int    `toml:"max_retries"`
	BaseDelay  string `toml:"base_delay"`
}

type ModelSettings struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
}

type StorageSettings struct {
	Backend string `toml:"backend"`
}

type LoggingSettings struct {
	Level string `toml:"level"`
}

func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Username:         defaultUsername,
			HandshakeTimeout: defaultHandshakeTimeout.String(),
			ReconnectTimeout: defaultReconnectTimeout.String(),
		},
		Stream: StreamSettings{
			MaxRetries: defaultStreamRetries,
			BaseDelay:  defaultStreamBaseDelay.String(),
		},
		Storage: StorageSettings{
			Backend: StorageBackendBbolt,
		},
		Logging: LoggingSettings{
			Level: "info",
		},
	}
}

func LoadSettings() (Settings, error) {
	path, err := ConfigPath()
	if err != nil {
		return Settings{}, err
	}
	return loadSettingsFromPath(path)
}

// ServerAddress returns the configured address, or "" when the client should
// fall back to the persisted connection.
func (s Settings) ServerAddress() string {
	return strings.TrimRight(strings.TrimSpace(s.Server.Address), "/")
}

func (s Settings) Username() string {
	username := strings.TrimSpace(s.Server.Username)
	if username == "" {
		return defaultUsername
	}
	return username
}

func (s Settings) Password() string {
	return strings.TrimSpace(s.Server.Password)
}

func (s Settings) HandshakeTimeout() time.Duration {
	return parseDuration(s.Server.HandshakeTimeout, defaultHandshakeTimeout)
}

func (s Settings) ReconnectTimeout() time.Duration {
	return parseDuration(s.Server.ReconnectTimeout, defaultReconnectTimeout)
}

func (s Settings) StreamMaxRetries() int {
	if s.Stream.MaxRetries <= 0 {
		return defaultStreamRetries
	}
	return s.Stream.MaxRetries
}

func (s Settings) StreamBaseDelay() time.Duration {
	return parseDuration(s.Stream.BaseDelay, defaultStreamBaseDelay)
}

// DefaultModel returns the provider and model ids used when a send does not
// name one. Either may be empty.
func (s Settings) DefaultModel() (providerID, modelID string) {
	return strings.TrimSpace(s.Model.Provider), strings.TrimSpace(s.Model.Model)
}

func (s Settings) StorageBackend() string {
	switch strings.ToLower(strings.TrimSpace(s.Storage.Backend)) {
	case StorageBackendFile:
		return StorageBackendFile
	default:
		return StorageBackendBbolt
	}
}

func (s Settings) LogLevel() string {
	level := strings.TrimSpace(s.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

func (s Settings) Encode() ([]byte, error) {
	return toml.Marshal(s)
}

func loadSettingsFromPath(path string) (Settings, error) {
	cfg := DefaultSettings()
	if err := readTOML(path, &cfg); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
