package tracking

import (
	"github.com/ndi-tracker/ndi-driver/pkg/ndiwire"
	"github.com/ndi-tracker/ndi-driver/pkg/tool"
)

// MaxStrayMarkers is the fixed row count of the stray-marker table
// (spec.md §3): rows beyond the reported count are always zero.
const MaxStrayMarkers = 50

// ToolRow is one tool's decoded entry from a TX reply.
type ToolRow struct {
	Handle      string
	Status      string // "" for a numeric (occupied) row, else MISSING/DISABLED/UNOCCUPIED
	Quaternion  tool.Quaternion
	Translation tool.Vector3
	ErrorRMS    float64
	PortStatus  uint32
	FrameNumber uint32
	Valid       bool
}

// StrayMarkerTable is the fixed 50x5 published matrix: col 0 occupied,
// col 1 in-volume, cols 2-4 are x/y/z in millimetres.
type StrayMarkerTable [MaxStrayMarkers][5]float64

// TXReply is one fully decoded TX response.
type TXReply struct {
	Tools        []ToolRow
	StrayMarkers StrayMarkerTable
	SystemStatus uint32
}

// Command returns the TX command string for the requested feature
// set: transformation data is always requested; stray markers only if
// withStrays (spec.md §4.7's bit 0x0001 / bit 0x1000).
func Command(withStrays bool) string {
	if withStrays {
		return "TX 1001"
	}
	return "TX 0001"
}

// ParseTXReply decodes a TX reply payload (CRC and CR already
// stripped) into a TXReply. withStrays must match the bit requested in
// the command that produced payload.
func ParseTXReply(payload []byte, withStrays bool) (*TXReply, error) {
	cur := ndiwire.NewCursor(payload)

	handleCount, err := cur.TakeHexUint(2)
	if err != nil {
		return nil, err
	}

	reply := &TXReply{Tools: make([]ToolRow, 0, handleCount)}
	for i := uint64(0); i < handleCount; i++ {
		row, err := parseToolRow(cur)
		if err != nil {
			return nil, err
		}
		reply.Tools = append(reply.Tools, row)
	}

	if withStrays {
		if err := parseStrayMarkers(cur, &reply.StrayMarkers); err != nil {
			return nil, err
		}
	}

	if err := cur.Skip(4); err != nil {
		return nil, ndiwire.ErrProtocolFraming
	}

	return reply, nil
}

func parseToolRow(cur *ndiwire.Cursor) (ToolRow, error) {
	var row ToolRow

	handle, err := cur.TakeString(2)
	if err != nil {
		return row, err
	}
	row.Handle = handle

	switch {
	case cur.HasPrefix("MISSING"):
		if err := cur.Skip(len("MISSING")); err != nil {
			return row, err
		}
		row.Status = "MISSING"
	case cur.HasPrefix("DISABLED"):
		if err := cur.Skip(len("DISABLED")); err != nil {
			return row, err
		}
		row.Status = "DISABLED"
	case cur.HasPrefix("UNOCCUPIED"):
		if err := cur.Skip(len("UNOCCUPIED")); err != nil {
			return row, err
		}
		row.Status = "UNOCCUPIED"
	default:
		quat := tool.Quaternion{}
		if quat.W, err = cur.TakeSignedFixed(6, 10000); err != nil {
			return row, err
		}
		if quat.X, err = cur.TakeSignedFixed(6, 10000); err != nil {
			return row, err
		}
		if quat.Y, err = cur.TakeSignedFixed(6, 10000); err != nil {
			return row, err
		}
		if quat.Z, err = cur.TakeSignedFixed(6, 10000); err != nil {
			return row, err
		}

		trans := tool.Vector3{}
		if trans.X, err = cur.TakeSignedFixed(7, 100); err != nil {
			return row, err
		}
		if trans.Y, err = cur.TakeSignedFixed(7, 100); err != nil {
			return row, err
		}
		if trans.Z, err = cur.TakeSignedFixed(7, 100); err != nil {
			return row, err
		}

		errRMS, err := cur.TakeSignedFixed(6, 10000)
		if err != nil {
			return row, err
		}

		row.Quaternion = quat
		row.Translation = trans
		row.ErrorRMS = errRMS
		row.Valid = true
	}

	portStatus, err := cur.TakeHexUint(8)
	if err != nil {
		return row, err
	}
	row.PortStatus = uint32(portStatus)

	frame, err := cur.TakeHexUint(8)
	if err != nil {
		return row, err
	}
	row.FrameNumber = uint32(frame)

	nl, err := cur.Take(1)
	if err != nil {
		return row, ndiwire.ErrProtocolFraming
	}
	if nl[0] != '\n' {
		return row, ndiwire.ErrProtocolFraming
	}

	return row, nil
}

func parseStrayMarkers(cur *ndiwire.Cursor, table *StrayMarkerTable) error {
	count, err := cur.TakeHexUint(2)
	if err != nil {
		return err
	}
	m := int(count)

	numOOVBytes := (m + 3) / 4
	oovBytes, err := cur.Take(numOOVBytes)
	if err != nil {
		return err
	}

	totalBits := numOOVBytes * 4
	garbage := totalBits - m
	visibilities := make([]bool, m)
	bitIndex := 0
	for _, b := range oovBytes {
		inv := ^b
		for shift := 3; shift >= 0; shift-- {
			if bitIndex >= totalBits {
				break
			}
			bit := (inv >> uint(shift)) & 1
			if bitIndex >= garbage {
				visibilities[bitIndex-garbage] = bit == 1
			}
			bitIndex++
		}
	}

	for i := 0; i < m && i < MaxStrayMarkers; i++ {
		x, err := cur.TakeSignedFixed(7, 100)
		if err != nil {
			return err
		}
		y, err := cur.TakeSignedFixed(7, 100)
		if err != nil {
			return err
		}
		z, err := cur.TakeSignedFixed(7, 100)
		if err != nil {
			return err
		}
		table[i][0] = 1.0
		if visibilities[i] {
			table[i][1] = 1.0
		}
		table[i][2] = x
		table[i][3] = y
		table[i][4] = z
	}
	return nil
}
