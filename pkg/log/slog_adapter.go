package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger. Useful in
// development to watch traffic on the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to the given logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	switch {
	case event.Command != nil:
		attrs = append(attrs, slog.String("verb", event.Command.Verb))
		if event.Command.Device != "" {
			attrs = append(attrs, slog.String("device", event.Command.Device))
		}
		if event.Command.Property != "" {
			attrs = append(attrs, slog.String("property", event.Command.Property))
		}
		if event.Command.State != "" {
			attrs = append(attrs, slog.String("state", event.Command.State))
		}
		if event.Command.Elements > 0 {
			attrs = append(attrs, slog.Int("elements", event.Command.Elements))
		}
		if event.Command.BlobBytes > 0 {
			attrs = append(attrs, slog.Uint64("blob_bytes", event.Command.BlobBytes))
		}
		if event.Command.Message != "" {
			attrs = append(attrs, slog.String("message", event.Command.Message))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs, slog.String("error", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
