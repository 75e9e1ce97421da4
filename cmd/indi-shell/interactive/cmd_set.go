package interactive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/twinkle-astronomy/twinkle/pkg/model"
	"github.com/twinkle-astronomy/twinkle/pkg/wire"
)

// changeTimeout bounds how long set waits for the server to confirm.
const changeTimeout = 30 * time.Second

// watchDuration is how long watch streams updates.
const watchDuration = 10 * time.Second

func (s *Shell) cmdSet(ctx context.Context, args []string) {
	if len(args) < 3 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: set <device> <property> NAME=VALUE...")
		return
	}

	device, property := args[0], args[1]
	assignments, err := parseAssignments(args[2:])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	dev, ok := s.client.GetDevice(device)
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "Unknown device: %s\n", device)
		return
	}
	current, ok := s.lookup(device, property)
	if !ok {
		return
	}

	changeCtx, cancel := context.WithTimeout(ctx, changeTimeout)
	defer cancel()

	var result model.PropertyVector
	switch current.Kind {
	case model.KindNumber:
		values := make(map[string]float64, len(assignments))
		for name, raw := range assignments {
			v, err := wire.ParseNumber(raw)
			if err != nil {
				fmt.Fprintf(s.rl.Stdout(), "Error: %s: %v\n", name, err)
				return
			}
			values[name] = v
		}
		result, err = dev.ChangeNumbers(changeCtx, property, values)

	case model.KindText:
		result, err = dev.ChangeTexts(changeCtx, property, assignments)

	case model.KindSwitch:
		values := make(map[string]bool, len(assignments))
		for name, raw := range assignments {
			on, err := parseSwitchValue(raw)
			if err != nil {
				fmt.Fprintf(s.rl.Stdout(), "Error: %s: %v\n", name, err)
				return
			}
			values[name] = on
		}
		result, err = dev.ChangeSwitches(changeCtx, property, values)

	default:
		fmt.Fprintf(s.rl.Stdout(), "Cannot set %s property %s.%s\n", current.Kind, device, property)
		return
	}

	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	s.printProperty(result)
}

func (s *Shell) cmdWatch(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: watch <device> [property]")
		return
	}

	dev, ok := s.client.GetDevice(args[0])
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "Unknown device: %s\n", args[0])
		return
	}

	var properties []string
	if len(args) > 1 {
		if _, ok := dev.Property(args[1]); !ok {
			fmt.Fprintf(s.rl.Stdout(), "Unknown property: %s.%s\n", args[0], args[1])
			return
		}
		properties = []string{args[1]}
	} else {
		properties = dev.Properties().Get()
	}

	watchCtx, cancel := context.WithTimeout(ctx, watchDuration)
	defer cancel()

	fmt.Fprintf(s.rl.Stdout(), "Watching %s for %s...\n", args[0], watchDuration)

	updates := make(chan model.PropertyVector, 16)
	for _, name := range properties {
		handle, ok := dev.Property(name)
		if !ok {
			continue
		}
		go func() {
			sub := handle.Subscribe()
			defer sub.Close()
			// Skip the primed snapshot; only report changes.
			first := true
			for {
				p, err := sub.Next(watchCtx)
				if err != nil {
					return
				}
				if first {
					first = false
					continue
				}
				select {
				case updates <- p:
				case <-watchCtx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case p := <-updates:
			line := fmt.Sprintf("%s.%s [%s]", p.Device, p.Name, p.State)
			for _, el := range p.Elements {
				line += fmt.Sprintf(" %s=%s", el.Name, displayValue(el.Value))
			}
			fmt.Fprintln(s.rl.Stdout(), line)
		case <-watchCtx.Done():
			return
		}
	}
}

func (s *Shell) cmdBlob(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: blob <device> [property] <never|also|only>")
		return
	}

	device := args[0]
	property := ""
	modeArg := args[1]
	if len(args) > 2 {
		property = args[1]
		modeArg = args[2]
	}

	mode, err := parseBlobMode(modeArg)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	if err := s.client.EnableBlob(device, property, mode); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	target := device
	if property != "" {
		target = device + "." + property
	}
	fmt.Fprintf(s.rl.Stdout(), "BLOB delivery for %s: %s\n", target, mode)
}

// parseAssignments parses NAME=VALUE arguments.
func parseAssignments(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, found := strings.Cut(arg, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("expected NAME=VALUE, got %q", arg)
		}
		values[name] = value
	}
	return values, nil
}

// parseSwitchValue parses a switch assignment value.
func parseSwitchValue(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

// parseBlobMode parses a BLOB delivery mode.
func parseBlobMode(s string) (wire.BlobEnable, error) {
	switch strings.ToLower(s) {
	case "never":
		return wire.BlobNever, nil
	case "also":
		return wire.BlobAlso, nil
	case "only":
		return wire.BlobOnly, nil
	default:
		return "", fmt.Errorf("expected never, also, or only, got %q", s)
	}
}
