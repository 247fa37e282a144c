package ndiwire

// Assembler builds one outgoing command into a reusable Buffer and
// transmits it via a Link (component C3). The device accepts commands
// both with and without a trailing CRC; the source never appends one,
// so every caller in this module passes withCRC=false (see
// SPEC_FULL.md §12 on the outgoing CRC open question).
type Assembler struct {
	buf     *Buffer
	withCRC bool
}

// NewAssembler wires an Assembler to a shared Buffer.
func NewAssembler(buf *Buffer, withCRC bool) *Assembler {
	return &Assembler{buf: buf, withCRC: withCRC}
}

// Send resets the buffer, writes command, optionally appends a 4-hex
// CRC, appends a trailing CR, and writes the whole buffer to link.
func (a *Assembler) Send(link Link, command string) error {
	a.buf.Reset()
	if err := a.buf.WriteString(command); err != nil {
		return err
	}
	if a.withCRC {
		crc := CRC16(a.buf.Bytes())
		digits := FormatCRC(crc)
		if err := a.buf.Write(digits[:]); err != nil {
			return err
		}
	}
	if err := a.buf.WriteByte('\r'); err != nil {
		return err
	}
	_, err := link.Write(a.buf.Bytes())
	return err
}
