// Package connection manages one INDI server connection.
//
// A Connection wraps a transport stream with the wire codec: Send
// encodes one command (callable from any goroutine), Read decodes the
// next incoming command (single reader). Reads and writes are
// independent; neither blocks the other.
//
// The package also provides reconnection support:
//   - Exponential backoff with jitter between attempts
//   - Connection state tracking (disconnected through closed)
//   - A Manager that redials automatically on connection loss
//
// # Reconnection Strategy
//
// When a connection is lost, the manager redials with exponential
// backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds, held until success
//  4. Reset to 1s on successful reconnection
//
// Jitter of up to 25% of the base delay is added so that many clients
// losing the same server do not redial in lockstep.
//
// Device and property state does not survive a reconnect: the server
// re-announces everything in response to the fresh getProperties.
package connection
