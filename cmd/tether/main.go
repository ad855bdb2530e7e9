package main

import (
	"fmt"
	"os"
)

const usageText = `tether is a terminal client for an opencode server.

Usage:
  tether <command> [flags]

Commands:
  ui        run the terminal UI
  sessions  list sessions, or show one session
  send      send a message and wait for the reply
  abort     abort the running turn of a session
  events    print the server event stream
  config    print configuration (effective or defaults)
  help      show help

Flags:
  -h, --help   show help

Common flags:
  --addr       server address (defaults to [server].address in config.toml)

Examples:
  tether ui --addr 192.168.1.20:4096
  tether sessions
  tether send --model anthropic/claude-sonnet-4 ses_123 "summarize the diff"
  tether events --session ses_123
  tether config --format json
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"ui"}
	}

	wiring := defaultCommandWiring(os.Stdout, os.Stderr)
	commands := buildCommands(wiring)

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return
	}

	runner, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	exitOnErr(args[0], runner.Run(args[1:]), wiring.stderr)
}
