package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/twinkle-astronomy/twinkle/pkg/client"
	"github.com/twinkle-astronomy/twinkle/pkg/model"
	"github.com/twinkle-astronomy/twinkle/pkg/notify"
	"github.com/twinkle-astronomy/twinkle/pkg/wire"
)

// printer serializes console output across watcher goroutines.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s  ", time.Now().Format("15:04:05.000"))
	fmt.Fprintf(p.w, format, args...)
	fmt.Fprintln(p.w)
}

// watch streams property and message traffic to the printer until ctx
// is cancelled.
func watch(ctx context.Context, c *client.Client, config *Config, pr *printer) {
	go watchMessages(ctx, "server", c.Model().Messages(), pr)

	devices := c.Model().Devices().Subscribe()
	defer devices.Close()

	seen := make(map[string]bool)
	for {
		names, err := devices.Next(ctx)
		if err != nil {
			return
		}
		for _, name := range names {
			if seen[name] || !config.WantsDevice(name) {
				continue
			}
			seen[name] = true
			pr.printf("+ %s", name)

			dev, ok := c.Model().Device(name)
			if !ok {
				continue
			}
			if config.Blobs {
				if err := c.EnableBlob(name, "", wire.BlobAlso); err != nil {
					pr.printf("! %s: enableBLOB: %v", name, err)
				}
			}
			go watchDevice(ctx, dev, pr)
			go watchMessages(ctx, name, dev.Messages(), pr)
		}
		for name := range seen {
			if !names.Contains(name) {
				delete(seen, name)
				pr.printf("- %s", name)
			}
		}
	}
}

// watchDevice starts a property watcher for each property as it is
// defined.
func watchDevice(ctx context.Context, dev *model.Device, pr *printer) {
	properties := dev.Properties().Subscribe()
	defer properties.Close()

	seen := make(map[string]bool)
	for {
		names, err := properties.Next(ctx)
		if err != nil {
			return
		}
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			if handle, ok := dev.Property(name); ok {
				go watchProperty(ctx, handle, pr)
			}
		}
	}
}

// watchProperty prints each snapshot of one property vector.
func watchProperty(ctx context.Context, handle *notify.Value[model.PropertyVector], pr *printer) {
	sub := handle.Subscribe()
	defer sub.Close()

	for {
		p, err := sub.Next(ctx)
		if err != nil {
			return
		}
		pr.printf("%s", formatProperty(p))
	}
}

// watchMessages prints log entries as they arrive, skipping history
// already present at subscription time.
func watchMessages(ctx context.Context, source string, handle *notify.Value[model.MessageLog], pr *printer) {
	sub := handle.Subscribe()
	defer sub.Close()

	printed := 0
	first := true
	for {
		entries, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if first {
			printed = len(entries)
			first = false
			continue
		}
		// The log is bounded; resync if it was trimmed.
		if printed > len(entries) {
			printed = len(entries)
		}
		for _, entry := range entries[printed:] {
			pr.printf("%s: %s", source, entry.Text)
		}
		printed = len(entries)
	}
}

// formatProperty renders one property snapshot as a single line.
func formatProperty(p model.PropertyVector) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s [%s]", p.Device, p.Name, p.State)
	for _, el := range p.Elements {
		fmt.Fprintf(&b, " %s=%s", el.Name, formatValue(el.Value))
	}
	if p.Message != "" {
		fmt.Fprintf(&b, "  (%s)", p.Message)
	}
	return b.String()
}

// formatValue renders one element value.
func formatValue(v model.Value) string {
	switch val := v.(type) {
	case model.Number:
		return val.Display()
	case model.Text:
		return val.Value
	case model.Switch:
		if val.On {
			return "On"
		}
		return "Off"
	case model.Light:
		return val.State.String()
	case model.Blob:
		return fmt.Sprintf("<%d bytes %s>", val.Size, val.Format)
	default:
		return "?"
	}
}
