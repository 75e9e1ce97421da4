package log

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinkle-astronomy/twinkle/pkg/wire"
)

func sampleEvent() Event {
	return Event{
		Timestamp:    time.Date(2024, 3, 1, 22, 15, 4, 123456789, time.UTC),
		ConnectionID: "0f8fad5b-d9cb-469f-a165-70867728950e",
		Direction:    DirectionIn,
		Category:     CategoryCommand,
		RemoteAddr:   "astroberry.local:7624",
		Command: &CommandEvent{
			Verb:     "setNumberVector",
			Device:   "CCD Simulator",
			Property: "CCD_EXPOSURE",
			State:    "Busy",
			Elements: 1,
		},
	}
}

func TestEventRoundTrip(t *testing.T) {
	data, err := EncodeEvent(sampleEvent())
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, sampleEvent(), decoded)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		cmd  wire.Command
		want CommandEvent
	}{
		{
			name: "getProperties",
			cmd:  &wire.GetProperties{Version: wire.INDIProtocolVersion},
			want: CommandEvent{Verb: "getProperties"},
		},
		{
			name: "setNumberVector",
			cmd: &wire.SetNumberVector{
				Device: "CCD Simulator", Name: "CCD_EXPOSURE", State: wire.StateBusy,
				Numbers: []wire.OneNumber{{Name: "CCD_EXPOSURE_VALUE", Value: 1}},
			},
			want: CommandEvent{
				Verb: "setNumberVector", Device: "CCD Simulator",
				Property: "CCD_EXPOSURE", State: "Busy", Elements: 1,
			},
		},
		{
			name: "setBLOBVector counts payload bytes",
			cmd: &wire.SetBLOBVector{
				Device: "CCD Simulator", Name: "CCD1", State: wire.StateOk,
				Blobs: []wire.OneBLOB{
					{Name: "CCD1", Value: make([]byte, 1024)},
					{Name: "CCD2", Value: make([]byte, 512)},
				},
			},
			want: CommandEvent{
				Verb: "setBLOBVector", Device: "CCD Simulator",
				Property: "CCD1", State: "Ok", Elements: 2, BlobBytes: 1536,
			},
		},
		{
			name: "enableBLOB",
			cmd:  &wire.EnableBlob{Device: "CCD Simulator", Value: wire.BlobAlso},
			want: CommandEvent{Verb: "enableBLOB", Device: "CCD Simulator", Message: "Also"},
		},
		{
			name: "message",
			cmd:  &wire.Message{Device: "CCD Simulator", Message: "cooler on"},
			want: CommandEvent{Verb: "message", Device: "CCD Simulator", Message: "cooler on"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, &tt.want, Summarize(tt.cmd))
		})
	}
}

func TestFileLoggerAndReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.ilog")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	in := sampleEvent()
	out := sampleEvent()
	out.Direction = DirectionOut
	out.Command = &CommandEvent{Verb: "getProperties"}

	logger.Log(in)
	logger.Log(out)
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close()) // idempotent

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	first, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, in, first)

	second, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, DirectionOut, second.Direction)

	_, err = reader.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.ilog")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	ccd := sampleEvent()
	scope := sampleEvent()
	scope.Command = &CommandEvent{Verb: "setNumberVector", Device: "Telescope Simulator", Property: "EQUATORIAL_EOD_COORD"}

	logger.Log(ccd)
	logger.Log(scope)
	logger.Log(ccd)
	require.NoError(t, logger.Close())

	reader, err := NewFilteredReader(path, Filter{Device: "Telescope Simulator"})
	require.NoError(t, err)
	defer reader.Close()

	event, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "Telescope Simulator", event.Command.Device)

	_, err = reader.Next()
	assert.Equal(t, io.EOF, err)
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	adapter.Log(sampleEvent())

	out := buf.String()
	assert.Contains(t, out, "setNumberVector")
	assert.Contains(t, out, "CCD_EXPOSURE")
	assert.Contains(t, out, "IN")
}

type recordingLogger struct {
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.events = append(r.events, event)
}

func TestMultiLogger(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}

	NewMultiLogger(a, b, NoopLogger{}).Log(sampleEvent())

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, sampleEvent(), a.events[0])
}
