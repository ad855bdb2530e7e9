package main

import (
	"io"
	"os"

	"tether/internal/config"
)

type commandRunner interface {
	Run(args []string) error
}

type commandWiring struct {
	stdout       io.Writer
	stderr       io.Writer
	loadSettings func() (config.Settings, error)
	newClient    clientFactory
	runUI        uiRunner
}

func defaultCommandWiring(stdout, stderr io.Writer) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdout:       stdout,
		stderr:       stderr,
		loadSettings: config.LoadSettings,
		newClient:    newServerClient,
		runUI:        runTerminalUI,
	}
}

func buildCommands(wiring commandWiring) map[string]commandRunner {
	return map[string]commandRunner{
		"ui":       NewUICommand(wiring.stderr, wiring.loadSettings, wiring.runUI),
		"sessions": NewSessionsCommand(wiring.stdout, wiring.stderr, wiring.loadSettings, wiring.newClient),
		"send":     NewSendCommand(wiring.stdout, wiring.stderr, wiring.loadSettings, wiring.newClient),
		"abort":    NewAbortCommand(wiring.stdout, wiring.stderr, wiring.loadSettings, wiring.newClient),
		"events":   NewEventsCommand(wiring.stdout, wiring.stderr, wiring.loadSettings, wiring.newClient),
		"config":   NewConfigCommand(wiring.stdout, wiring.stderr, wiring.loadSettings),
	}
}
