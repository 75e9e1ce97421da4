package wire

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Codec errors.
var (
	// ErrTruncated indicates the byte stream ended inside an element.
	// More bytes would allow decoding to continue; for a fixed input it
	// is terminal.
	ErrTruncated = errors.New("truncated element")

	// ErrMalformed indicates an element that can never parse (bad
	// attribute type, invalid enum value). It is a per-element error:
	// the decoder has already resynchronized at the next top-level
	// element boundary and Next may be called again.
	ErrMalformed = errors.New("malformed element")
)

// Encoder writes commands as INDI XML elements to an underlying writer.
// Elements are separated by newlines for the benefit of humans reading
// captures; the protocol needs no separator.
type Encoder struct {
	w io.Writer
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one command. The element and its newline separator go
// out in a single Write so that fully synchronous transports (net.Pipe)
// cannot stall between them.
func (e *Encoder) Encode(cmd Command) error {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	start := xml.StartElement{Name: xml.Name{Local: cmd.tag()}}
	if err := enc.EncodeElement(cmd, start); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := e.w.Write(buf.Bytes())
	return err
}

// Marshal returns the XML encoding of a single command.
func Marshal(cmd Command) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(cmd); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a single command from data.
func Unmarshal(data []byte) (Command, error) {
	return NewDecoder(bytes.NewReader(data)).Next()
}

// Decoder produces commands from an unframed INDI XML stream. It
// tolerates arbitrary read fragmentation: the underlying reader may
// deliver bytes one at a time or in large chunks with identical results.
//
// Decoding is two-phase: the token scanner first locates the byte range
// of one complete top-level element (buffering exactly that element and
// any read-ahead), then the element is unmarshalled from those bytes.
// A conversion failure in the second phase therefore never desynchronizes
// the scanner, which is what makes ErrMalformed recoverable.
type Decoder struct {
	capture *captureReader
	dec     *xml.Decoder

	// base is the stream offset of capture.buf[0].
	base int64

	// fatal latches stream-level errors (EOF, truncation, broken
	// well-formedness). Once set, Next always returns it.
	fatal error
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	capture := &captureReader{r: r}
	return &Decoder{capture: capture, dec: xml.NewDecoder(capture)}
}

// Next returns the next complete command from the stream. It returns
// io.EOF at a clean end of stream, ErrTruncated if the stream ends
// mid-element, and ErrMalformed (recoverable, call Next again) for an
// element that cannot parse. Unknown top-level elements are skipped.
func (d *Decoder) Next() (Command, error) {
	if d.fatal != nil {
		return nil, d.fatal
	}
	for {
		d.discardTo(d.dec.InputOffset())
		elemStart := d.dec.InputOffset()

		tok, err := d.dec.Token()
		if err != nil {
			d.fatal = streamError(err)
			return nil, d.fatal
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			// Inter-element whitespace, comments, processing
			// instructions.
			continue
		}

		if err := d.dec.Skip(); err != nil {
			d.fatal = streamError(err)
			return nil, d.fatal
		}
		elemEnd := d.dec.InputOffset()

		cmd := newCommand(start.Name.Local)
		if cmd == nil {
			// Forward compatibility: unknown elements are not an
			// error.
			continue
		}

		raw := d.capture.slice(elemStart-d.base, elemEnd-d.base)
		if err := xml.Unmarshal(raw, cmd); err != nil {
			return nil, fmt.Errorf("%w: <%s>: %v", ErrMalformed, start.Name.Local, err)
		}
		if err := cmd.finish(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return cmd, nil
	}
}

// discardTo drops capture bytes the scanner has fully consumed.
func (d *Decoder) discardTo(offset int64) {
	if n := offset - d.base; n > 0 {
		d.capture.discard(int(n))
		d.base = offset
	}
}

// streamError maps token-scanner errors onto the codec taxonomy.
func streamError(err error) error {
	if err == io.EOF {
		return io.EOF
	}
	var syntax *xml.SyntaxError
	if errors.As(err, &syntax) {
		if strings.Contains(syntax.Msg, "unexpected EOF") {
			return ErrTruncated
		}
		// Broken well-formedness leaves no element boundary to
		// resynchronize on.
		return fmt.Errorf("%w: %s (unrecoverable)", ErrMalformed, syntax.Msg)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}

// captureReader tees everything read by the XML scanner into a buffer so
// that each element's exact bytes are available for the unmarshal phase.
// The buffer holds only the element in progress plus scanner read-ahead.
type captureReader struct {
	r   io.Reader
	buf bytes.Buffer
}

func (c *captureReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.buf.Write(p[:n])
	}
	return n, err
}

func (c *captureReader) discard(n int) {
	c.buf.Next(n)
}

func (c *captureReader) slice(start, end int64) []byte {
	return c.buf.Bytes()[start:end]
}
