package commands

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunExport_JSONL(t *testing.T) {
	path := sampleCapture(t)
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
		var je jsonEvent
		if err := json.Unmarshal(scanner.Bytes(), &je); err != nil {
			t.Fatalf("line %d not valid JSON: %v", lines, err)
		}
		if je.ConnectionID != "conn-1" {
			t.Errorf("line %d connection_id = %q, want conn-1", lines, je.ConnectionID)
		}
	}
	if lines != 4 {
		t.Errorf("exported %d lines, want 4", lines)
	}
}

func TestRunExport_CSV(t *testing.T) {
	path := sampleCapture(t)
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}

	// Header plus four events.
	if len(records) != 5 {
		t.Fatalf("got %d CSV records, want 5", len(records))
	}
	if records[0][0] != "timestamp" {
		t.Errorf("header[0] = %q, want timestamp", records[0][0])
	}

	found := false
	for _, row := range records[1:] {
		if strings.Contains(strings.Join(row, ","), "setBLOBVector") {
			found = true
		}
	}
	if !found {
		t.Error("expected a setBLOBVector row in CSV output")
	}
}

func TestRunExport_UnknownFormat(t *testing.T) {
	path := sampleCapture(t)
	if err := RunExport(path, "xml", ""); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
