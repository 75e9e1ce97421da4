// Package log provides structured protocol logging for INDI traffic.
//
// This package defines the Logger interface and Event types for
// capturing protocol-level events: commands as they cross a
// connection, connection state changes, and errors. It is separate
// from operational logging (slog) - protocol capture provides a
// complete machine-readable trace of a session for debugging and
// offline analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	client.New(conn, client.WithProtocolLog(log.NewSlogAdapter(slog.Default())))
//
//	// For capture: write to binary file
//	capture, _ := log.NewFileLogger("session.ilog")
//	client.New(conn, client.WithProtocolLog(capture))
//
//	// Both: use MultiLogger
//	client.New(conn, client.WithProtocolLog(log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    capture,
//	)))
//
// # File Format
//
// Capture files are a concatenation of CBOR-encoded events with
// integer keys, .ilog extension by convention. BLOB payloads are not
// captured, only their sizes. The indi-log tool decodes and filters
// capture files.
package log
