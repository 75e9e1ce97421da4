// Command indi-monitor connects to an INDI server and streams property
// changes and device messages to the console.
//
// Usage:
//
//	indi-monitor [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-addr string          INDI server address (default "localhost:7624")
//	-discover             Find a server via mDNS instead of -addr
//	-interface string     Network interface for mDNS discovery
//	-device string        Monitor only these devices (comma-separated)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  Write a CBOR protocol capture to this file
//	-reconnect            Redial automatically on connection loss (default true)
//	-blobs                Opt in to BLOB delivery for monitored devices
//
// Examples:
//
//	# Monitor a local indiserver
//	indi-monitor
//
//	# Discover a server on the network and capture the session
//	indi-monitor -discover -protocol-log session.ilog
//
//	# Monitor one camera, including BLOBs
//	indi-monitor -addr astroberry.local -device "CCD Simulator" -blobs
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/twinkle-astronomy/twinkle/pkg/client"
	"github.com/twinkle-astronomy/twinkle/pkg/connection"
	"github.com/twinkle-astronomy/twinkle/pkg/discovery"
	"github.com/twinkle-astronomy/twinkle/pkg/log"
	"github.com/twinkle-astronomy/twinkle/pkg/version"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Configuration file path (YAML)")
		addr        = flag.String("addr", "", "INDI server address")
		discover    = flag.Bool("discover", false, "Find a server via mDNS")
		ifaceName   = flag.String("interface", "", "Network interface for mDNS discovery")
		deviceList  = flag.String("device", "", "Monitor only these devices (comma-separated)")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
		protocolLog = flag.String("protocol-log", "", "Write a CBOR protocol capture to this file")
		reconnect   = flag.Bool("reconnect", true, "Redial automatically on connection loss")
		blobs       = flag.Bool("blobs", false, "Opt in to BLOB delivery for monitored devices")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("indi-monitor %s (INDI protocol %s)\n", version.Library, version.Protocol)
		return
	}

	config := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		config = loaded
	}

	// Flags override the config file.
	if *addr != "" {
		config.Addr = *addr
	}
	if *discover {
		config.Discover = true
	}
	if *ifaceName != "" {
		config.Interface = *ifaceName
	}
	if *deviceList != "" {
		config.Devices = splitList(*deviceList)
	}
	if *logLevel != "" {
		config.LogLevel = *logLevel
	}
	if *protocolLog != "" {
		config.ProtocolLog = *protocolLog
	}
	if !*reconnect {
		config.Reconnect = false
	}
	if *blobs {
		config.Blobs = true
	}

	logger, err := setupLogger(config.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(&config, logger); err != nil {
		logger.Error("monitor failed", "error", err)
		os.Exit(1)
	}
}

func run(config *Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Protocol capture.
	var protocol log.Logger = log.NoopLogger{}
	if config.ProtocolLog != "" {
		file, err := log.NewFileLogger(config.ProtocolLog)
		if err != nil {
			return fmt.Errorf("opening protocol log: %w", err)
		}
		defer file.Close()
		protocol = log.NewMultiLogger(file, log.NewSlogAdapter(logger))
		logger.Info("capturing protocol traffic", "file", config.ProtocolLog)
	}

	addr := config.Addr
	if config.Discover {
		browser := discovery.NewBrowser(discovery.BrowserConfig{Interface: config.Interface})
		server, err := browser.FindFirst(ctx)
		if err != nil {
			return fmt.Errorf("discovery: %w", err)
		}
		addr = server.Addr()
		logger.Info("discovered server", "instance", server.InstanceName, "addr", addr)
	}

	dial := func(ctx context.Context) (*connection.Connection, error) {
		return connection.DialContext(ctx, addr)
	}

	manager := connection.NewManager(dial, connection.DefaultBackoffConfig())
	defer manager.Close()
	manager.SetAutoReconnect(config.Reconnect)

	connCh := make(chan *connection.Connection, 1)
	manager.OnConnected(func(conn *connection.Connection) {
		select {
		case connCh <- conn:
		default:
		}
	})
	manager.OnReconnecting(func(attempt int, delay time.Duration) {
		logger.Info("reconnecting", "attempt", attempt, "delay", delay)
	})
	manager.StartReconnectLoop()

	if _, err := manager.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	logger.Info("connected", "addr", addr)

	pr := &printer{w: os.Stdout}
	for {
		select {
		case <-ctx.Done():
			return nil
		case conn := <-connCh:
			err := runSession(ctx, conn, config, protocol, pr)
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("session ended", "error", err)
			if !config.Reconnect {
				return err
			}
			manager.ConnectionLost()
		}
	}
}

// runSession runs one client session over an established connection.
func runSession(ctx context.Context, conn *connection.Connection, config *Config, protocol log.Logger, pr *printer) error {
	c := client.New(conn, client.WithProtocolLog(protocol))

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watch(watchCtx, c, config, pr)

	return c.Run(ctx)
}

func setupLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info", "":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
