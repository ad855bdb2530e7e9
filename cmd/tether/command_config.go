package main

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"strings"

	"tether/internal/config"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	configFormatJSON = "json"
	configFormatTOML = "toml"

	redacted = "********"
)

type ConfigCommand struct {
	stdout       io.Writer
	stderr       io.Writer
	loadSettings func() (config.Settings, error)
}

type configOutput struct {
	ConfigPath string                `json:"config_path" toml:"config_path"`
	DataDir    string                `json:"data_dir" toml:"data_dir"`
	Server     effectiveServerConfig `json:"server" toml:"server"`
	Stream     effectiveStreamConfig `json:"stream" toml:"stream"`
	Model      effectiveModelConfig  `json:"model" toml:"model"`
	Storage    effectiveStoreConfig  `json:"storage" toml:"storage"`
	Logging    effectiveLogConfig    `json:"logging" toml:"logging"`
}

type effectiveServerConfig struct {
	Address          string `json:"address" toml:"address"`
	Username         string `json:"username" toml:"username"`
	Password         string `json:"password,omitempty" toml:"password,omitempty"`
	HandshakeTimeout string `json:"handshake_timeout" toml:"handshake_timeout"`
	ReconnectTimeout string `json:"reconnect_timeout" toml:"reconnect_timeout"`
}

type effectiveStreamConfig struct {
	MaxRetries int    `json:"max_retries" toml:"max_retries"`
	BaseDelay  string `json:"base_delay" toml:"base_delay"`
}

type effectiveModelConfig struct {
	Provider string `json:"provider" toml:"provider"`
	Model    string `json:"model" toml:"model"`
}

type effectiveStoreConfig struct {
	Backend string `json:"backend" toml:"backend"`
	Path    string `json:"path" toml:"path"`
}

type effectiveLogConfig struct {
	Level string `json:"level" toml:"level"`
	Path  string `json:"path" toml:"path"`
}

func NewConfigCommand(stdout, stderr io.Writer, loadSettings func() (config.Settings, error)) *ConfigCommand {
	return &ConfigCommand{
		stdout:       stdout,
		stderr:       stderr,
		loadSettings: loadSettings,
	}
}

func (c *ConfigCommand) Run(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	defaults := fs.Bool("default", false, "print default config values")
	format := fs.String("format", configFormatJSON, "output format: json|toml")
	showSecrets := fs.Bool("show-secrets", false, "print the server password instead of a placeholder")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resolvedFormat, err := resolveConfigFormat(*format)
	if err != nil {
		return err
	}
	settings := config.DefaultSettings()
	if !*defaults {
		settings, err = c.loadSettings()
		if err != nil {
			return err
		}
	}
	payload, err := buildConfigOutput(settings, *showSecrets)
	if err != nil {
		return err
	}
	return writeConfigOutput(c.stdout, resolvedFormat, payload)
}

func buildConfigOutput(settings config.Settings, showSecrets bool) (configOutput, error) {
	configPath, err := config.ConfigPath()
	if err != nil {
		return configOutput{}, err
	}
	dataDir, err := config.DataDir()
	if err != nil {
		return configOutput{}, err
	}
	logPath, err := config.LogPath()
	if err != nil {
		return configOutput{}, err
	}
	storePath, err := config.DBPath()
	if err != nil {
		return configOutput{}, err
	}
	if settings.StorageBackend() == config.StorageBackendFile {
		if storePath, err = config.StateDir(); err != nil {
			return configOutput{}, err
		}
	}

	password := settings.Password()
	if password != "" && !showSecrets {
		password = redacted
	}
	provider, model := settings.DefaultModel()
	return configOutput{
		ConfigPath: configPath,
		DataDir:    dataDir,
		Server: effectiveServerConfig{
			Address:          settings.ServerAddress(),
			Username:         settings.Username(),
			Password:         password,
			HandshakeTimeout: settings.HandshakeTimeout().String(),
			ReconnectTimeout: settings.ReconnectTimeout().String(),
		},
		Stream: effectiveStreamConfig{
			MaxRetries: settings.StreamMaxRetries(),
			BaseDelay:  settings.StreamBaseDelay().String(),
		},
		Model: effectiveModelConfig{
			Provider: provider,
			Model:    model,
		},
		Storage: effectiveStoreConfig{
			Backend: settings.StorageBackend(),
			Path:    storePath,
		},
		Logging: effectiveLogConfig{
			Level: settings.LogLevel(),
			Path:  logPath,
		},
	}, nil
}

func writeConfigOutput(out io.Writer, format string, payload any) error {
	switch format {
	case configFormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	case configFormatTOML:
		data, err := toml.Marshal(payload)
		if err != nil {
			return err
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		_, err = out.Write(data)
		return err
	default:
		return errors.New("unsupported format")
	}
}

func resolveConfigFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", configFormatJSON:
		return configFormatJSON, nil
	case configFormatTOML:
		return configFormatTOML, nil
	default:
		return "", errors.New("invalid format: must be json or toml")
	}
}
