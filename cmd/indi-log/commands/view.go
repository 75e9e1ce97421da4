package commands

import (
	"fmt"
	"io"

	"github.com/twinkle-astronomy/twinkle/pkg/log"
)

// RunView prints matching events from the capture file in
// human-readable format.
func RunView(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)
	dir := event.Direction.String()

	var typeLabel string
	switch {
	case event.Command != nil:
		typeLabel = event.Command.Verb
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s\n", ts, connID, dir, typeLabel)

	switch {
	case event.Command != nil:
		formatCommandDetails(w, event.Command)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatCommandDetails writes command-specific details.
func formatCommandDetails(w io.Writer, cmd *log.CommandEvent) {
	if cmd.Device != "" {
		fmt.Fprintf(w, "  Device: %s\n", cmd.Device)
	}
	if cmd.Property != "" {
		fmt.Fprintf(w, "  Property: %s\n", cmd.Property)
	}
	if cmd.State != "" {
		fmt.Fprintf(w, "  State: %s\n", cmd.State)
	}
	if cmd.Elements > 0 {
		fmt.Fprintf(w, "  Elements: %d\n", cmd.Elements)
	}
	if cmd.BlobBytes > 0 {
		fmt.Fprintf(w, "  BLOB: %s\n", formatBytes(cmd.BlobBytes))
	}
	if cmd.Message != "" {
		fmt.Fprintf(w, "  Message: %s\n", cmd.Message)
	}
}

// formatStateChangeDetails writes state-change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  Transition: %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  State: %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Error: %s\n", e.Message)
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
}

// formatBytes renders a byte count in a human-readable unit.
func formatBytes(n uint64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
