package ndiwire

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReader_S1_CRCVector exercises S1 from spec.md §8: the wire form
// carries no space between payload and CRC ("OKAYA896\r"), and the
// parser must return the bare payload with no error.
func TestReader_S1_CRCVector(t *testing.T) {
	link := newFakeLink("OKAYA896\r")
	r := NewReader(NewBuffer(0))

	payload, err := r.Read(link, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "OKAY", string(payload))
}

func TestReader_BadCRC(t *testing.T) {
	link := newFakeLink("OKAYFFFF\r")
	r := NewReader(NewBuffer(0))

	_, err := r.Read(link, time.Second)
	assert.ErrorIs(t, err, ErrBadCRC)
}

func TestReader_Timeout(t *testing.T) {
	link := newFakeLink("") // nothing ever arrives
	r := NewReader(NewBuffer(0))

	_, err := r.Read(link, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestReader_ShortFrameIsFramingError(t *testing.T) {
	link := newFakeLink("A\r")
	r := NewReader(NewBuffer(0))

	_, err := r.Read(link, time.Second)
	assert.ErrorIs(t, err, ErrProtocolFraming)
}

func TestReader_ReadExpected_Mismatch(t *testing.T) {
	crc := CRC16([]byte("RESET"))
	digits := FormatCRC(crc)
	link := newFakeLink("RESET" + string(digits[:]) + "\r")
	r := NewReader(NewBuffer(0))

	_, err := r.ReadExpected(link, time.Second, "OKAY")
	var unexpected *UnexpectedError
	require.True(t, errors.As(err, &unexpected))
	assert.Equal(t, "OKAY", unexpected.Expected)
	assert.Equal(t, "RESET", unexpected.Got)
	assert.ErrorIs(t, err, ErrUnexpected)
}

func TestReader_ReadExpected_Match(t *testing.T) {
	crc := CRC16([]byte("OKAY"))
	digits := FormatCRC(crc)
	link := newFakeLink("OKAY" + string(digits[:]) + "\r")
	r := NewReader(NewBuffer(0))

	payload, err := r.ReadExpected(link, time.Second, "OKAY")
	require.NoError(t, err)
	assert.Equal(t, "OKAY", string(payload))
}

// TestReader_LoopbackRoundTrip is the loopback law from spec.md §8:
// crc(buf) == crc_of(send(buf) ∥ strip_cr(read())) across a loopback
// fixture — what the assembler sends is exactly what the reader, once
// looped back, parses back out with a matching CRC.
func TestReader_LoopbackRoundTrip(t *testing.T) {
	link := newFakeLink("")
	asm := NewAssembler(NewBuffer(0), false)
	require.NoError(t, asm.Send(link, "INIT"))

	// Loop the sent bytes back as the device's echo, with a CRC the
	// fixture (not the device) appends, simulating a compliant reply.
	crc := CRC16([]byte("INIT"))
	digits := FormatCRC(crc)
	link.inbound = append([]byte("INIT"), append(digits[:], '\r')...)
	link.pos = 0

	r := NewReader(NewBuffer(0))
	payload, err := r.Read(link, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "INIT", string(payload))
	assert.Equal(t, crc, CRC16(payload))
}
