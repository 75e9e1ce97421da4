// Command indi-shell is an interactive shell for exploring and driving
// an INDI server.
//
// Usage:
//
//	indi-shell [flags]
//
// Flags:
//
//	-addr string          INDI server address (default "localhost:7624")
//	-discover             Find a server via mDNS instead of -addr
//	-interface string     Network interface for mDNS discovery
//	-protocol-log string  Write a CBOR protocol capture to this file
//
// Interactive Commands:
//
//	devices                         - List devices
//	properties <device>             - List a device's properties
//	get <device> <property>         - Show a property in detail
//	set <device> <property> N=V...  - Change property elements
//	watch <device> [property]       - Stream updates for a while
//	messages [device]               - Show the message log
//	blob <device> [property] <mode> - Set BLOB delivery (never/also/only)
//	status                          - Show connection status
//	quit                            - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/twinkle-astronomy/twinkle/cmd/indi-shell/interactive"
	"github.com/twinkle-astronomy/twinkle/pkg/client"
	"github.com/twinkle-astronomy/twinkle/pkg/connection"
	"github.com/twinkle-astronomy/twinkle/pkg/discovery"
	"github.com/twinkle-astronomy/twinkle/pkg/log"
	"github.com/twinkle-astronomy/twinkle/pkg/version"
)

func main() {
	var (
		addr        = flag.String("addr", "localhost:7624", "INDI server address")
		discover    = flag.Bool("discover", false, "Find a server via mDNS")
		ifaceName   = flag.String("interface", "", "Network interface for mDNS discovery")
		protocolLog = flag.String("protocol-log", "", "Write a CBOR protocol capture to this file")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("indi-shell %s (INDI protocol %s)\n", version.Library, version.Protocol)
		return
	}

	if err := run(*addr, *discover, *ifaceName, *protocolLog); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(addr string, discover bool, ifaceName, protocolLog string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var protocol log.Logger = log.NoopLogger{}
	if protocolLog != "" {
		file, err := log.NewFileLogger(protocolLog)
		if err != nil {
			return fmt.Errorf("opening protocol log: %w", err)
		}
		defer file.Close()
		protocol = file
	}

	if discover {
		browser := discovery.NewBrowser(discovery.BrowserConfig{Interface: ifaceName})
		server, err := browser.FindFirst(ctx)
		if err != nil {
			return fmt.Errorf("discovery: %w", err)
		}
		addr = server.Addr()
		fmt.Printf("Discovered %s at %s\n", server.InstanceName, addr)
	}

	conn, err := connection.DialContext(ctx, addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}

	c := client.New(conn, client.WithProtocolLog(protocol))

	runDone := make(chan error, 1)
	go func() {
		runDone <- c.Run(ctx)
	}()

	shell, err := interactive.New(c, addr)
	if err != nil {
		return err
	}

	shellDone := make(chan struct{})
	go func() {
		shell.Run(ctx, cancel)
		close(shellDone)
	}()

	select {
	case err := <-runDone:
		cancel()
		shell.Close()
		<-shellDone
		if ctx.Err() != nil {
			return nil
		}
		return err
	case <-shellDone:
		cancel()
		<-runDone
		return nil
	}
}
