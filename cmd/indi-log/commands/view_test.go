package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/twinkle-astronomy/twinkle/pkg/log"
)

func commandEvent(ts time.Time) log.Event {
	return log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionIn,
		Category:     log.CategoryCommand,
		Command: &log.CommandEvent{
			Verb:     "setNumberVector",
			Device:   "CCD Simulator",
			Property: "CCD_EXPOSURE",
			State:    "Busy",
			Elements: 1,
		},
	}
}

func TestFormatCommandEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

	var buf bytes.Buffer
	formatEvent(&buf, commandEvent(ts))
	output := buf.String()

	if !strings.Contains(output, "2026-01-28T10:15:32.123456Z") {
		t.Errorf("expected formatted timestamp, got: %s", output)
	}
	if !strings.Contains(output, "[conn:abc12345]") {
		t.Errorf("expected shortened connection ID, got: %s", output)
	}
	if !strings.Contains(output, "IN") {
		t.Errorf("expected IN direction, got: %s", output)
	}
	if !strings.Contains(output, "setNumberVector") {
		t.Errorf("expected verb label, got: %s", output)
	}
	if !strings.Contains(output, "Device: CCD Simulator") {
		t.Errorf("expected device detail, got: %s", output)
	}
	if !strings.Contains(output, "Property: CCD_EXPOSURE") {
		t.Errorf("expected property detail, got: %s", output)
	}
	if !strings.Contains(output, "State: Busy") {
		t.Errorf("expected state detail, got: %s", output)
	}
}

func TestFormatBlobEvent(t *testing.T) {
	event := log.Event{
		Timestamp:    time.Date(2026, 1, 28, 10, 15, 33, 0, time.UTC),
		ConnectionID: "abc12345",
		Direction:    log.DirectionIn,
		Category:     log.CategoryCommand,
		Command: &log.CommandEvent{
			Verb:      "setBLOBVector",
			Device:    "CCD Simulator",
			Property:  "CCD1",
			State:     "Ok",
			Elements:  1,
			BlobBytes: 2 << 20,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "BLOB: 2.0 MiB") {
		t.Errorf("expected BLOB size detail, got: %s", output)
	}
}

func TestFormatStateChangeEvent(t *testing.T) {
	event := log.Event{
		Timestamp:    time.Date(2026, 1, 28, 10, 15, 34, 0, time.UTC),
		ConnectionID: "abc12345",
		Direction:    log.DirectionIn,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: "connected",
			NewState: "reconnecting",
			Reason:   "connection reset",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Transition: connected -> reconnecting") {
		t.Errorf("expected transition detail, got: %s", output)
	}
	if !strings.Contains(output, "Reason: connection reset") {
		t.Errorf("expected reason detail, got: %s", output)
	}
}

func TestFormatErrorEvent(t *testing.T) {
	event := log.Event{
		Timestamp:    time.Date(2026, 1, 28, 10, 15, 35, 0, time.UTC),
		ConnectionID: "abc12345",
		Direction:    log.DirectionIn,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Message: "malformed element",
			Context: "read loop",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Error: malformed element") {
		t.Errorf("expected error detail, got: %s", output)
	}
	if !strings.Contains(output, "Context: read loop") {
		t.Errorf("expected context detail, got: %s", output)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    uint64
		want string
	}{
		{512, "512 bytes"},
		{2048, "2.0 KiB"},
		{3 << 20, "3.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestShortenConnID(t *testing.T) {
	if got := shortenConnID("abc12345-6789"); got != "abc12345" {
		t.Errorf("shortenConnID = %q, want %q", got, "abc12345")
	}
	if got := shortenConnID("abc"); got != "abc" {
		t.Errorf("shortenConnID = %q, want %q", got, "abc")
	}
}
