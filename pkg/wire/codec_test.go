package wire

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTimestamp() Timestamp {
	return Timestamp{time.Date(2024, 3, 1, 22, 15, 4, 500e6, time.UTC)}
}

func floatPtr(v float64) *float64 { return &v }

func TestCommandRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{
			name: "getProperties",
			cmd:  &GetProperties{Version: INDIProtocolVersion},
		},
		{
			name: "getProperties scoped",
			cmd:  &GetProperties{Version: INDIProtocolVersion, Device: "CCD Simulator", Name: "CCD_EXPOSURE"},
		},
		{
			name: "defTextVector",
			cmd: &DefTextVector{
				Device: "Telescope Simulator", Name: "DRIVER_INFO",
				Label: "Driver Info", Group: "General Info",
				State: StateIdle, Perm: PermReadOnly,
				Timestamp: testTimestamp(),
				Texts: []DefText{
					{Name: "DRIVER_NAME", Label: "Name", Value: "Telescope Simulator"},
					{Name: "DRIVER_EXEC", Value: "indi_simulator_telescope"},
				},
			},
		},
		{
			name: "setTextVector",
			cmd: &SetTextVector{
				Device: "Telescope Simulator", Name: "DRIVER_INFO",
				State: StateOk, Timestamp: testTimestamp(),
				Texts: []OneText{{Name: "DRIVER_NAME", Value: "renamed"}},
			},
		},
		{
			name: "newTextVector",
			cmd: &NewTextVector{
				Device: "Telescope Simulator", Name: "ACTIVE_DEVICES",
				Timestamp: testTimestamp(),
				Texts:     []OneText{{Name: "ACTIVE_CCD", Value: "CCD Simulator"}},
			},
		},
		{
			name: "defNumberVector",
			cmd: &DefNumberVector{
				Device: "CCD Simulator", Name: "CCD_EXPOSURE",
				Label: "Expose", Group: "Main Control",
				State: StateIdle, Perm: PermReadWrite, Timeout: 60,
				Timestamp: testTimestamp(),
				Numbers: []DefNumber{
					{Name: "CCD_EXPOSURE_VALUE", Label: "Duration (s)", Format: "%5.2f", Min: 0.01, Max: 3600, Step: 1, Value: 1},
				},
			},
		},
		{
			name: "setNumberVector with element limits",
			cmd: &SetNumberVector{
				Device: "CCD Simulator", Name: "CCD_EXPOSURE",
				State: StateBusy, Timestamp: testTimestamp(),
				Numbers: []OneNumber{
					{Name: "CCD_EXPOSURE_VALUE", Min: floatPtr(0), Max: floatPtr(7200), Value: 0.5},
				},
			},
		},
		{
			name: "newNumberVector",
			cmd: &NewNumberVector{
				Device: "Telescope Simulator", Name: "EQUATORIAL_EOD_COORD",
				Timestamp: testTimestamp(),
				Numbers: []OneNumber{
					{Name: "RA", Value: 12.51},
					{Name: "DEC", Value: -79.89},
				},
			},
		},
		{
			name: "defSwitchVector",
			cmd: &DefSwitchVector{
				Device: "CCD Simulator", Name: "CONNECTION",
				Label: "Connection", Group: "Main Control",
				State: StateIdle, Perm: PermReadWrite, Rule: RuleOneOfMany,
				Timestamp: testTimestamp(),
				Switches: []DefSwitch{
					{Name: "CONNECT", Label: "Connect", Value: SwitchOff},
					{Name: "DISCONNECT", Label: "Disconnect", Value: SwitchOn},
				},
			},
		},
		{
			name: "setSwitchVector",
			cmd: &SetSwitchVector{
				Device: "CCD Simulator", Name: "CONNECTION",
				State: StateOk, Timestamp: testTimestamp(),
				Switches: []OneSwitch{{Name: "CONNECT", Value: SwitchOn}},
			},
		},
		{
			name: "newSwitchVector",
			cmd: &NewSwitchVector{
				Device: "CCD Simulator", Name: "CONNECTION",
				Timestamp: testTimestamp(),
				Switches:  []OneSwitch{{Name: "CONNECT", Value: SwitchOn}},
			},
		},
		{
			name: "defLightVector",
			cmd: &DefLightVector{
				Device: "Dome Simulator", Name: "WEATHER_STATUS",
				State: StateIdle, Timestamp: testTimestamp(),
				Lights: []DefLight{{Name: "WEATHER_RAIN", Label: "Rain", Value: StateAlert}},
			},
		},
		{
			name: "setLightVector",
			cmd: &SetLightVector{
				Device: "Dome Simulator", Name: "WEATHER_STATUS",
				State: StateOk, Timestamp: testTimestamp(),
				Lights: []OneLight{{Name: "WEATHER_RAIN", Value: StateOk}},
			},
		},
		{
			name: "defBLOBVector",
			cmd: &DefBLOBVector{
				Device: "CCD Simulator", Name: "CCD1",
				Label: "Image Data", State: StateIdle, Perm: PermReadOnly,
				Timestamp: testTimestamp(),
				Blobs:     []DefBLOB{{Name: "CCD1", Label: "Image"}},
			},
		},
		{
			name: "setBLOBVector",
			cmd: &SetBLOBVector{
				Device: "CCD Simulator", Name: "CCD1",
				State: StateOk, Timestamp: testTimestamp(),
				Blobs: []OneBLOB{{
					Name:   "CCD1",
					Size:   8,
					Format: ".fits",
					Value:  []byte{0x53, 0x49, 0x4d, 0x50, 0x4c, 0x45, 0x20, 0x20},
				}},
			},
		},
		{
			name: "message",
			cmd:  &Message{Device: "CCD Simulator", Timestamp: testTimestamp(), Message: "Capture complete"},
		},
		{
			name: "delProperty whole device",
			cmd:  &DelProperty{Device: "CCD Simulator", Timestamp: testTimestamp()},
		},
		{
			name: "delProperty single",
			cmd:  &DelProperty{Device: "CCD Simulator", Name: "CCD_EXPOSURE", Timestamp: testTimestamp()},
		},
		{
			name: "enableBLOB",
			cmd:  &EnableBlob{Device: "CCD Simulator", Name: "CCD1", Value: BlobAlso},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.cmd)
			require.NoError(t, err)

			decoded, err := Unmarshal(data)
			require.NoError(t, err, "input: %s", data)
			assert.Equal(t, tt.cmd, decoded)
		})
	}
}

func TestDecoderStream(t *testing.T) {
	input := `
<getProperties version="1.7"/>
<message device="CCD Simulator" message="hello"/>
<delProperty device="CCD Simulator"/>
`
	dec := NewDecoder(strings.NewReader(input))

	cmd, err := dec.Next()
	require.NoError(t, err)
	require.IsType(t, &GetProperties{}, cmd)

	cmd, err = dec.Next()
	require.NoError(t, err)
	require.IsType(t, &Message{}, cmd)
	assert.Equal(t, "CCD Simulator", cmd.DeviceName())

	cmd, err = dec.Next()
	require.NoError(t, err)
	require.IsType(t, &DelProperty{}, cmd)

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderOneByteAtATime(t *testing.T) {
	// Partial-read tolerance: feeding the stream one byte at a time must
	// yield exactly the same commands as feeding it all at once.
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	commands := []Command{
		&GetProperties{Version: INDIProtocolVersion},
		&SetNumberVector{
			Device: "CCD Simulator", Name: "CCD_EXPOSURE", State: StateBusy,
			Numbers: []OneNumber{{Name: "CCD_EXPOSURE_VALUE", Value: 0.75}},
		},
		&Message{Device: "CCD Simulator", Message: "exposing"},
	}
	for _, cmd := range commands {
		require.NoError(t, enc.Encode(cmd))
	}

	dec := NewDecoder(iotest.OneByteReader(bytes.NewReader(buf.Bytes())))
	for i, want := range commands {
		got, err := dec.Next()
		require.NoError(t, err, "command %d", i)
		assert.Equal(t, want, got, "command %d", i)
	}
	_, err := dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderSkipsUnknownElements(t *testing.T) {
	input := `<futureThing device="X"><child a="b">body</child></futureThing>` +
		`<message device="CCD Simulator" message="still here"/>`
	dec := NewDecoder(strings.NewReader(input))

	cmd, err := dec.Next()
	require.NoError(t, err)
	require.IsType(t, &Message{}, cmd)
}

func TestDecoderUnknownAttributesIgnored(t *testing.T) {
	input := `<message device="CCD Simulator" message="hi" futureAttr="whatever"/>`
	cmd, err := NewDecoder(strings.NewReader(input)).Next()
	require.NoError(t, err)
	assert.Equal(t, "hi", cmd.(*Message).Message)
}

func TestDecoderMalformedResync(t *testing.T) {
	// A bad enum makes one element malformed; decoding must resume at
	// the next element boundary.
	input := `<setSwitchVector device="D" name="P" state="Wrong"><oneSwitch name="S">On</oneSwitch></setSwitchVector>` +
		`<message device="D" message="recovered"/>`
	dec := NewDecoder(strings.NewReader(input))

	_, err := dec.Next()
	require.ErrorIs(t, err, ErrMalformed)

	cmd, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "recovered", cmd.(*Message).Message)
}

func TestDecoderMalformedNumber(t *testing.T) {
	input := `<setNumberVector device="D" name="P" state="Ok"><oneNumber name="N">not-a-number</oneNumber></setNumberVector>` +
		`<getProperties version="1.7"/>`
	dec := NewDecoder(strings.NewReader(input))

	_, err := dec.Next()
	require.ErrorIs(t, err, ErrMalformed)

	cmd, err := dec.Next()
	require.NoError(t, err)
	require.IsType(t, &GetProperties{}, cmd)
}

func TestDecoderTruncated(t *testing.T) {
	input := `<setNumberVector device="D" name="P" state="Ok"><oneNumber name="N">1.0`
	dec := NewDecoder(strings.NewReader(input))

	_, err := dec.Next()
	require.ErrorIs(t, err, ErrTruncated)

	// Sticky: the stream cannot make progress without more bytes.
	_, err = dec.Next()
	require.ErrorIs(t, err, ErrTruncated)
}

func TestDecoderBlobWithWhitespace(t *testing.T) {
	// Servers wrap base64 payloads in newlines.
	input := "<setBLOBVector device=\"CCD Simulator\" name=\"CCD1\" state=\"Ok\">" +
		"<oneBLOB name=\"CCD1\" size=\"11\" format=\".fits\">\n  aGVsbG8gd29y\n  bGQ=\n</oneBLOB>" +
		"</setBLOBVector>"
	cmd, err := NewDecoder(strings.NewReader(input)).Next()
	require.NoError(t, err)

	blob := cmd.(*SetBLOBVector).Blobs[0]
	assert.Equal(t, []byte("hello world"), blob.Value)
	assert.Equal(t, ".fits", blob.Format)
	assert.Equal(t, uint64(11), blob.Size)
}

func TestDecoderSexagesimalBody(t *testing.T) {
	input := `<newNumberVector device="Scope" name="EQUATORIAL_EOD_COORD">` +
		`<oneNumber name="RA">12:30:36</oneNumber>` +
		`<oneNumber name="DEC">-79 53 22.5</oneNumber>` +
		`</newNumberVector>`
	cmd, err := NewDecoder(strings.NewReader(input)).Next()
	require.NoError(t, err)

	numbers := cmd.(*NewNumberVector).Numbers
	assert.InDelta(t, 12.51, numbers[0].Value, 1e-9)
	assert.InDelta(t, -(79 + 53.0/60 + 22.5/3600), numbers[1].Value, 1e-9)
}

func TestEncoderOutputShape(t *testing.T) {
	data, err := Marshal(&EnableBlob{Device: "CCD Simulator", Name: "CCD1", Value: BlobAlso})
	require.NoError(t, err)
	assert.Equal(t, "<enableBLOB device=\"CCD Simulator\" name=\"CCD1\">Also</enableBLOB>\n", string(data))
}

func TestStreamErrorClassification(t *testing.T) {
	truncated := streamError(io.ErrUnexpectedEOF)
	assert.ErrorIs(t, truncated, ErrTruncated)

	var generic = errors.New("boom")
	assert.Equal(t, generic, streamError(generic))
}
