// Package ndiwire implements the NDI ASCII serial wire format: the
// proprietary CRC-16, the fixed-capacity command/response buffer, and
// the send/receive contracts layered on top of it.
package ndiwire

// nibbleParity[i] is the odd-parity bit of the 4-bit value i.
var nibbleParity = [16]byte{0, 1, 1, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0, 1, 1, 0}

// CRC16 computes the device's CRC-16 over data, stopping at the first
// zero byte (the wire format never carries one; commands and payloads
// are plain ASCII).
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		if b == 0 {
			break
		}
		t := uint16(b) ^ (crc & 0xFF)
		crc >>= 8
		lo := t & 0x0F
		hi := (t >> 4) & 0x0F
		if nibbleParity[lo]^nibbleParity[hi] == 1 {
			crc ^= 0xC001
		}
		t <<= 6
		crc ^= t
		t <<= 1
		crc ^= t
	}
	return crc
}

const hexDigits = "0123456789ABCDEF"

// FormatCRC renders a CRC as 4 upper-case hex digits, zero-padded.
func FormatCRC(crc uint16) [4]byte {
	var out [4]byte
	out[0] = hexDigits[(crc>>12)&0xF]
	out[1] = hexDigits[(crc>>8)&0xF]
	out[2] = hexDigits[(crc>>4)&0xF]
	out[3] = hexDigits[crc&0xF]
	return out
}

// ParseCRC decodes 4 upper- or lower-case hex digits into a CRC value.
// It returns false if any byte is not a hex digit.
func ParseCRC(digits []byte) (uint16, bool) {
	if len(digits) != 4 {
		return 0, false
	}
	var crc uint16
	for _, d := range digits {
		var v uint16
		switch {
		case d >= '0' && d <= '9':
			v = uint16(d - '0')
		case d >= 'A' && d <= 'F':
			v = uint16(d-'A') + 10
		case d >= 'a' && d <= 'f':
			v = uint16(d-'a') + 10
		default:
			return 0, false
		}
		crc = crc<<4 | v
	}
	return crc, true
}
