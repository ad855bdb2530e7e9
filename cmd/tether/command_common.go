package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"tether/internal/types"
)

func printSessions(output io.Writer, sessions []types.Session) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tUPDATED\tSHARED\tTITLE")
	for i := range sessions {
		session := &sessions[i]
		updated := "-"
		if t := session.UpdatedAt(); !t.IsZero() {
			updated = t.Local().Format(time.DateTime)
		}
		shared := "-"
		if session.ShareURL() != "" {
			shared = "yes"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", session.ID, updated, shared, session.Title)
	}
	_ = writer.Flush()
}

type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// splitModel parses "provider/model". Model ids may contain slashes.
func splitModel(raw string) (providerID, modelID string, ok bool) {
	providerID, modelID, ok = strings.Cut(strings.TrimSpace(raw), "/")
	if !ok || providerID == "" || modelID == "" {
		return "", "", false
	}
	return providerID, modelID, true
}

func exitOnErr(label string, err error, stderr io.Writer) {
	if err == nil {
		return
	}
	fmt.Fprintf(stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}
