package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/twinkle-astronomy/twinkle/pkg/log"
)

// RunExport exports the capture file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

// jsonEvent is the JSON export shape of an event.
type jsonEvent struct {
	Timestamp    string `json:"timestamp"`
	ConnectionID string `json:"connection_id"`
	Direction    string `json:"direction"`
	Category     string `json:"category"`
	RemoteAddr   string `json:"remote_addr,omitempty"`

	Verb      string `json:"verb,omitempty"`
	Device    string `json:"device,omitempty"`
	Property  string `json:"property,omitempty"`
	State     string `json:"state,omitempty"`
	Elements  int    `json:"elements,omitempty"`
	BlobBytes uint64 `json:"blob_bytes,omitempty"`
	Message   string `json:"message,omitempty"`

	OldState string `json:"old_state,omitempty"`
	NewState string `json:"new_state,omitempty"`
	Reason   string `json:"reason,omitempty"`

	Error        string `json:"error,omitempty"`
	ErrorContext string `json:"error_context,omitempty"`
}

func toJSONEvent(event log.Event) jsonEvent {
	je := jsonEvent{
		Timestamp:    event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		ConnectionID: event.ConnectionID,
		Direction:    event.Direction.String(),
		Category:     event.Category.String(),
		RemoteAddr:   event.RemoteAddr,
	}
	if cmd := event.Command; cmd != nil {
		je.Verb = cmd.Verb
		je.Device = cmd.Device
		je.Property = cmd.Property
		je.State = cmd.State
		je.Elements = cmd.Elements
		je.BlobBytes = cmd.BlobBytes
		je.Message = cmd.Message
	}
	if sc := event.StateChange; sc != nil {
		je.OldState = sc.OldState
		je.NewState = sc.NewState
		je.Reason = sc.Reason
	}
	if e := event.Error; e != nil {
		je.Error = e.Message
		je.ErrorContext = e.Context
	}
	return je
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(toJSONEvent(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "connection_id", "direction", "category", "verb", "device", "property", "state", "elements", "blob_bytes", "message"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var verb, device, property, state, elements, blobBytes, message string
		if cmd := event.Command; cmd != nil {
			verb = cmd.Verb
			device = cmd.Device
			property = cmd.Property
			state = cmd.State
			if cmd.Elements > 0 {
				elements = strconv.Itoa(cmd.Elements)
			}
			if cmd.BlobBytes > 0 {
				blobBytes = strconv.FormatUint(cmd.BlobBytes, 10)
			}
			message = cmd.Message
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.ConnectionID,
			event.Direction.String(),
			event.Category.String(),
			verb,
			device,
			property,
			state,
			elements,
			blobBytes,
			message,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}
