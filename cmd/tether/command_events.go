package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"tether/internal/config"
	"tether/internal/stream"
	"tether/internal/types"
)

type EventsCommand struct {
	stdout       io.Writer
	stderr       io.Writer
	loadSettings func() (config.Settings, error)
	newClient    clientFactory
}

func NewEventsCommand(stdout, stderr io.Writer, loadSettings func() (config.Settings, error), newClient clientFactory) *EventsCommand {
	return &EventsCommand{
		stdout:       stdout,
		stderr:       stderr,
		loadSettings: loadSettings,
		newClient:    newClient,
	}
}

func (c *EventsCommand) Run(args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	addr := fs.String("addr", "", "server address")
	sessionID := fs.String("session", "", "only print events for this session")
	raw := fs.Bool("raw", false, "print frame payloads as received")
	count := fs.Int("count", 0, "exit after this many events (0 = until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	client, _, err := connect(ctx, c.loadSettings, c.newClient, *addr)
	if err != nil {
		return err
	}
	frames, closeStream, err := client.EventStream(ctx)
	if err != nil {
		return err
	}
	defer closeStream()

	printed := 0
	for frame := range frames {
		event, err := stream.Decode(frame)
		if err != nil {
			fmt.Fprintf(c.stderr, "skipping frame: %v\n", err)
			continue
		}
		id := types.SessionIDOf(event)
		if *sessionID != "" && id != *sessionID {
			continue
		}
		if *raw {
			fmt.Fprintln(c.stdout, frame)
		} else {
			fmt.Fprintf(c.stdout, "%s\t%s\t%s\n", event.EventType(), orDash(id), describeEvent(event))
		}
		printed++
		if *count > 0 && printed >= *count {
			return nil
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return stream.ErrStreamEnded
}

func describeEvent(event types.Event) string {
	switch e := event.(type) {
	case types.MessageUpdatedEvent:
		return fmt.Sprintf("message=%s role=%s", e.Info.ID, e.Info.Role)
	case types.MessageRemovedEvent:
		return "message=" + e.MessageID
	case types.PartUpdatedEvent:
		return fmt.Sprintf("message=%s part=%s type=%s", e.Part.MessageID, e.Part.ID, e.Part.Type)
	case types.PartRemovedEvent:
		return fmt.Sprintf("message=%s part=%s", e.MessageID, e.PartID)
	case types.SessionUpdatedEvent:
		return "title=" + e.Info.Title
	case types.SessionErrorEvent:
		return "error=" + e.Error.Message()
	default:
		return "-"
	}
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
