// Package client drives one INDI connection into a live model.
//
// A Client owns a connection and a model.Model. Run sends the initial
// getProperties, then applies every incoming command to the model
// until the context is cancelled or the connection fails. Malformed
// elements and commands the model cannot apply are logged and skipped;
// they never stop the session.
//
// Device wraps one model device with command-sending capability: the
// Change* methods send a new*Vector and block until the server
// confirms the requested values and the property leaves Busy.
//
// BLOB delivery is opt-in per the protocol; EnableBlob sends the
// enablement and the client tracks what has been enabled.
package client
