// Package interactive implements the indi-shell command loop.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/twinkle-astronomy/twinkle/pkg/client"
	"github.com/twinkle-astronomy/twinkle/pkg/model"
)

// Shell handles the interactive command loop.
type Shell struct {
	client *client.Client
	addr   string
	rl     *readline.Instance
}

// New creates a shell over a running client session.
func New(c *client.Client, addr string) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "indi> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Shell{
		client: c,
		addr:   addr,
		rl:     rl,
	}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Close tears down the readline instance, unblocking Run.
func (s *Shell) Close() {
	s.rl.Close()
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := splitArgs(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "devices", "ls":
			s.cmdDevices()

		case "properties", "props", "p":
			s.cmdProperties(args)

		case "get", "g":
			s.cmdGet(args)

		case "set":
			s.cmdSet(ctx, args)

		case "watch", "w":
			s.cmdWatch(ctx, args)

		case "messages", "msg":
			s.cmdMessages(args)

		case "blob":
			s.cmdBlob(args)

		case "status":
			s.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
INDI Shell Commands:
  devices                           - List devices
  properties <device>               - List a device's properties
  get <device> <property>           - Show a property in detail
  set <device> <property> NAME=V... - Change property elements
  watch <device> [property]         - Stream updates (10s, or until ^C)
  messages [device]                 - Show the message log
  blob <device> [property] <mode>   - Set BLOB delivery (never/also/only)
  status                            - Show connection status
  quit                              - Exit

Quote device names containing spaces: get "CCD Simulator" CCD_EXPOSURE`)
}

func (s *Shell) cmdDevices() {
	names := s.client.Model().Devices().Get()
	if len(names) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No devices yet")
		return
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, name := range sorted {
		dev, ok := s.client.Model().Device(name)
		if !ok {
			continue
		}
		fmt.Fprintf(s.rl.Stdout(), "  %-24s %d properties\n", name, len(dev.Properties().Get()))
	}
}

func (s *Shell) cmdProperties(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: properties <device>")
		return
	}

	dev, ok := s.client.GetDevice(args[0])
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "Unknown device: %s\n", args[0])
		return
	}

	names := append([]string(nil), dev.Properties().Get()...)
	sort.Strings(names)
	for _, name := range names {
		handle, ok := dev.Property(name)
		if !ok {
			continue
		}
		p := handle.Get()
		label := p.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(s.rl.Stdout(), "  %-24s %-7s %-6s %-2s  %s\n",
			name, p.Kind, p.State, p.Perm, label)
	}
}

func (s *Shell) cmdGet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: get <device> <property>")
		return
	}

	p, ok := s.lookup(args[0], args[1])
	if !ok {
		return
	}
	s.printProperty(p)
}

func (s *Shell) cmdMessages(args []string) {
	var entries model.MessageLog
	if len(args) > 0 {
		dev, ok := s.client.GetDevice(args[0])
		if !ok {
			fmt.Fprintf(s.rl.Stdout(), "Unknown device: %s\n", args[0])
			return
		}
		entries = dev.Messages().Get()
	} else {
		entries = s.client.Model().Messages().Get()
	}

	if len(entries) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No messages")
		return
	}
	for _, entry := range entries {
		fmt.Fprintf(s.rl.Stdout(), "  %s  %s\n", entry.Timestamp.Format("15:04:05"), entry.Text)
	}
}

func (s *Shell) cmdStatus() {
	conn := s.client.Connection()
	connected := s.client.Connected().Get().Connected

	fmt.Fprintf(s.rl.Stdout(), "Server:    %s\n", s.addr)
	fmt.Fprintf(s.rl.Stdout(), "Connected: %v\n", connected)
	fmt.Fprintf(s.rl.Stdout(), "Conn ID:   %s\n", conn.ID())
	fmt.Fprintf(s.rl.Stdout(), "Devices:   %d\n", len(s.client.Model().Devices().Get()))
}

// lookup resolves one property vector, reporting failures to the user.
func (s *Shell) lookup(device, property string) (model.PropertyVector, bool) {
	dev, ok := s.client.GetDevice(device)
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "Unknown device: %s\n", device)
		return model.PropertyVector{}, false
	}
	handle, ok := dev.Property(property)
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "Unknown property: %s.%s\n", device, property)
		return model.PropertyVector{}, false
	}
	return handle.Get(), true
}

// printProperty writes the detailed multi-line view of a property.
func (s *Shell) printProperty(p model.PropertyVector) {
	w := s.rl.Stdout()
	fmt.Fprintf(w, "\n%s.%s (%s)\n", p.Device, p.Name, p.Kind)
	if p.Label != "" {
		fmt.Fprintf(w, "  Label:   %s\n", p.Label)
	}
	if p.Group != "" {
		fmt.Fprintf(w, "  Group:   %s\n", p.Group)
	}
	fmt.Fprintf(w, "  State:   %s\n", p.State)
	fmt.Fprintf(w, "  Perm:    %s\n", p.Perm)
	if p.Kind == model.KindSwitch {
		fmt.Fprintf(w, "  Rule:    %s\n", p.Rule)
	}
	if p.Timeout != 0 {
		fmt.Fprintf(w, "  Timeout: %ds\n", p.Timeout)
	}
	if p.Message != "" {
		fmt.Fprintf(w, "  Message: %s\n", p.Message)
	}
	fmt.Fprintln(w, "  Elements:")
	for _, el := range p.Elements {
		label := ""
		if el.Label != "" && el.Label != el.Name {
			label = "  (" + el.Label + ")"
		}
		fmt.Fprintf(w, "    %-20s %s%s\n", el.Name, displayValue(el.Value), label)
	}
	fmt.Fprintln(w)
}

// displayValue renders one element value for the console.
func displayValue(v model.Value) string {
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
		if val.Size == 0 {
			return "<no data>"
		}
		return fmt.Sprintf("<%d bytes %s>", val.Size, val.Format)
	default:
		return "?"
	}
}

// splitArgs splits a command line into fields, honoring double quotes
// around device names with spaces.
func splitArgs(input string) []string {
	var args []string
	var current strings.Builder
	inQuote := false

	for _, r := range input {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}
