package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/twinkle-astronomy/twinkle/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	EventsByVerb      map[string]int
	Devices           map[string]*DeviceStats
	BlobBytes         uint64
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// DeviceStats holds statistics for a single device.
type DeviceStats struct {
	Commands   int
	Properties map[string]bool
	BlobBytes  uint64
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		EventsByVerb:      make(map[string]int),
		Devices:           make(map[string]*DeviceStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		if cmd := event.Command; cmd != nil {
			stats.EventsByVerb[cmd.Verb]++
			stats.BlobBytes += cmd.BlobBytes

			if cmd.Device != "" {
				dev, ok := stats.Devices[cmd.Device]
				if !ok {
					dev = &DeviceStats{Properties: make(map[string]bool)}
					stats.Devices[cmd.Device] = dev
				}
				dev.Commands++
				dev.BlobBytes += cmd.BlobBytes
				if cmd.Property != "" {
					dev.Properties[cmd.Property] = true
				}
			}
		}

		if event.Error != nil {
			stats.Errors++
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== INDI Protocol Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration: %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	if stats.BlobBytes > 0 {
		fmt.Fprintf(w, "BLOB Payload: %s\n", formatBytes(stats.BlobBytes))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "By Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-8s %d\n", dir.String(), count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "By Category:")
	for _, cat := range []log.Category{log.CategoryCommand, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-8s %d\n", cat.String(), count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.EventsByVerb) > 0 {
		fmt.Fprintln(w, "By Command:")
		verbs := make([]string, 0, len(stats.EventsByVerb))
		for verb := range stats.EventsByVerb {
			verbs = append(verbs, verb)
		}
		sort.Strings(verbs)
		for _, verb := range verbs {
			fmt.Fprintf(w, "  %-18s %d\n", verb, stats.EventsByVerb[verb])
		}
		fmt.Fprintln(w)
	}

	if len(stats.Devices) > 0 {
		fmt.Fprintln(w, "Devices:")
		names := make([]string, 0, len(stats.Devices))
		for name := range stats.Devices {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			dev := stats.Devices[name]
			fmt.Fprintf(w, "  %s: %d commands, %d properties", name, dev.Commands, len(dev.Properties))
			if dev.BlobBytes > 0 {
				fmt.Fprintf(w, ", %s BLOB", formatBytes(dev.BlobBytes))
			}
			fmt.Fprintln(w)
		}
	}
}
