// Package wire defines the XML wire format for the INDI protocol.
//
// INDI traffic is a continuous sequence of sibling XML elements over a
// byte stream; there is no document root and no framing beyond XML
// well-formedness. Each top-level element is one protocol command.
//
// # Command Types
//
// There are three verb families plus a handful of standalone commands:
//   - def*Vector: a device declares a property's existence and shape
//   - set*Vector: a device pushes new state for a declared property
//   - new*Vector: a client requests a property change
//   - getProperties, message, delProperty, enableBLOB
//
// # Streaming
//
// Decoder produces one command at a time from an io.Reader and tolerates
// arbitrary read fragmentation. A malformed element is reported as a
// per-element error and decoding resumes at the next top-level element;
// a stream that ends mid-element reports ErrTruncated.
//
// # Numbers
//
// Numeric element bodies are plain decimal or sexagesimal ("dd:mm:ss.s")
// depending on the element's printf-style format attribute ("%6.2f" vs
// "%10.6m"). Values are canonicalized to float64 on decode.
package wire
