// Package phandle implements the port-handle state machine (component
// C8): the PHSR-driven free/initialize/enable transitions, PHINF tool
// identification, and passive-tool ROM upload via PHRQ/PVWR.
package phandle

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ndi-tracker/ndi-driver/pkg/ndiwire"
	"github.com/ndi-tracker/ndi-driver/pkg/tool"
)

// CommandTimeout is the reply deadline for PHSR/PHF/PINIT/PENA/PHRQ/
// PVWR/PHINF round trips, all of which run during bring-up.
const CommandTimeout = 5 * time.Second

// MaxZeroSerialRetries bounds the "00000000" transient-serial retry
// recursion (spec.md §7's depth-bounded Open Question).
const MaxZeroSerialRetries = 3

var (
	// ErrUnknownToolType is returned when a main_type has no known
	// PENA mode byte.
	ErrUnknownToolType = errors.New("phandle: unknown tool type")
	// ErrDefinitionTooLarge is returned when a passive-tool ROM file
	// exceeds the 960-byte upload cap.
	ErrDefinitionTooLarge = errors.New("phandle: tool definition too large")
	// ErrZeroSerialExhausted is returned when a port handle still
	// reports a transient all-zero serial number after exhausting the
	// retry budget.
	ErrZeroSerialExhausted = errors.New("phandle: serial number still zero after retries")
)

// Transport is the PHSR/PHF/PINIT/PENA/PHRQ/PVWR/PHINF command round
// tripper, built on the shared assembler/reader pair.
type Transport struct {
	link   ndiwire.Link
	asm    *ndiwire.Assembler
	reader *ndiwire.Reader
}

// NewTransport wires a Transport to link, using buf as the shared
// send/receive scratch space.
func NewTransport(link ndiwire.Link, buf *ndiwire.Buffer) *Transport {
	return &Transport{
		link:   link,
		asm:    ndiwire.NewAssembler(buf, false),
		reader: ndiwire.NewReader(buf),
	}
}

func (t *Transport) roundTrip(command, expected string) ([]byte, error) {
	if err := t.asm.Send(t.link, command); err != nil {
		return nil, err
	}
	return t.reader.ReadExpected(t.link, CommandTimeout, expected)
}

// phsrHandle is one entry of a PHSR reply: 2-char handle + 3-char
// status (status is currently unused by the state machine, which only
// needs the handle to act on).
type phsrHandle struct {
	handle string
	status string
}

func parsePHSR(payload []byte) ([]phsrHandle, error) {
	cur := ndiwire.NewCursor(payload)
	count, err := cur.TakeHexUint(2)
	if err != nil {
		return nil, err
	}
	handles := make([]phsrHandle, 0, count)
	for i := uint64(0); i < count; i++ {
		h, err := cur.TakeString(2)
		if err != nil {
			return nil, err
		}
		s, err := cur.TakeString(3)
		if err != nil {
			return nil, err
		}
		handles = append(handles, phsrHandle{handle: h, status: s})
	}
	return handles, nil
}

// FreeHandles issues PHSR 01 and PHF's every handle it reports free.
func FreeHandles(t *Transport) ([]string, error) {
	payload, err := t.roundTrip("PHSR 01", "")
	if err != nil {
		return nil, err
	}
	entries, err := parsePHSR(payload)
	if err != nil {
		return nil, err
	}
	freed := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, err := t.roundTrip(fmt.Sprintf("PHF %s", e.handle), "OKAY"); err != nil {
			return freed, err
		}
		freed = append(freed, e.handle)
	}
	return freed, nil
}

// InitializeHandles issues PHSR 02 and PINIT's every handle it reports
// needing initialization, returning the handles now initialized.
func InitializeHandles(t *Transport) ([]string, error) {
	payload, err := t.roundTrip("PHSR 02", "")
	if err != nil {
		return nil, err
	}
	entries, err := parsePHSR(payload)
	if err != nil {
		return nil, err
	}
	initialized := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, err := t.roundTrip(fmt.Sprintf("PINIT %s", e.handle), "OKAY"); err != nil {
			return initialized, err
		}
		initialized = append(initialized, e.handle)
	}
	return initialized, nil
}

// penaMode maps a tool main_type to the PENA mode byte, per spec.md
// §4.6: 01 -> S (static), 02/04/0A -> D (dynamic), 03 -> B (button).
func penaMode(mainType string) (string, error) {
	switch mainType {
	case "01":
		return "S", nil
	case "02", "04", "0A":
		return "D", nil
	case "03":
		return "B", nil
	default:
		return "", ErrUnknownToolType
	}
}

// EnableHandles issues PHSR 03 and PENA's every handle it reports
// needing enabling, looking up each handle's main_type in registry to
// pick the mode byte. A handle whose tool isn't registered, or whose
// main_type is unrecognized, is skipped rather than aborting the rest
// of the batch.
func EnableHandles(t *Transport, registry *tool.Registry) ([]string, error) {
	payload, err := t.roundTrip("PHSR 03", "")
	if err != nil {
		return nil, err
	}
	entries, err := parsePHSR(payload)
	if err != nil {
		return nil, err
	}
	enabled := make([]string, 0, len(entries))
	for _, e := range entries {
		tl, ok := registry.ToolByPortHandle(e.handle)
		if !ok {
			continue
		}
		mode, err := penaMode(string(tl.MainType))
		if err != nil {
			continue
		}
		if _, err := t.roundTrip(fmt.Sprintf("PENA %s%s", e.handle, mode), "OKAY"); err != nil {
			return enabled, err
		}
		enabled = append(enabled, e.handle)
	}
	return enabled, nil
}

// PHINFResult is one tool's identification, as decoded from a PHINF
// 0021 reply.
type PHINFResult struct {
	MainType       string
	ManufacturerID string
	ToolRevision   string
	PartNumber     string
	SerialNumber   string
	Channel        string
}

// QueryHandle issues PHINF 0021 for handle and decodes the reply,
// transparently retrying through the transient all-zero-serial fault
// (spec.md §4.6, §7) up to MaxZeroSerialRetries times.
func QueryHandle(t *Transport, handle string) (PHINFResult, error) {
	return queryHandle(t, handle, 0)
}

func queryHandle(t *Transport, handle string, depth int) (PHINFResult, error) {
	payload, err := t.roundTrip(fmt.Sprintf("PHINF %s0021", handle), "")
	if err != nil {
		return PHINFResult{}, err
	}

	res, err := parsePHINF(payload)
	if err != nil {
		return PHINFResult{}, err
	}

	if res.Channel == "01" {
		res.SerialNumber = bumpLastChar(res.SerialNumber)
	}

	if res.SerialNumber == "00000000" {
		if depth >= MaxZeroSerialRetries {
			return PHINFResult{}, ErrZeroSerialExhausted
		}
		time.Sleep(500 * time.Millisecond)
		if _, err := InitializeHandles(t); err != nil {
			return PHINFResult{}, err
		}
		return queryHandle(t, handle, depth+1)
	}

	return res, nil
}

// bumpLastChar increments the last byte of s by one, disambiguating
// the second channel of a Dual 5-DoF Aurora tool's shared serial.
func bumpLastChar(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	b[len(b)-1]++
	return string(b)
}

// parsePHINF decodes a PHINF 0021 reply per spec.md §4.6's fixed-width
// layout, reading the option-bit fields (main_type, manufacturer_id,
// tool_revision, part_number) and, from the same payload at the
// offsets the device always emits them at, the serial_number and
// channel.
func parsePHINF(payload []byte) (PHINFResult, error) {
	cur := ndiwire.NewCursor(payload)

	mainType, err := cur.TakeString(2)
	if err != nil {
		return PHINFResult{}, err
	}
	if err := cur.Skip(1 + 1 + 2 + 2); err != nil { // manufacturer-hi, manufacturer-lo, skip, skip
		return PHINFResult{}, err
	}
	manufacturerID, err := cur.TakeString(12)
	if err != nil {
		return PHINFResult{}, err
	}
	toolRevision, err := cur.TakeString(3)
	if err != nil {
		return PHINFResult{}, err
	}
	if err := cur.Skip(8 + 2); err != nil {
		return PHINFResult{}, err
	}
	partNumber, err := cur.TakeString(20)
	if err != nil {
		return PHINFResult{}, err
	}

	cur2 := ndiwire.NewCursor(payload)
	if _, err := cur2.TakeString(2); err != nil {
		return PHINFResult{}, err
	}
	if err := cur2.Skip(20); err != nil {
		return PHINFResult{}, err
	}
	serialNumber, err := cur2.TakeString(8)
	if err != nil {
		return PHINFResult{}, err
	}
	if err := cur2.Skip(4); err != nil {
		return PHINFResult{}, err
	}
	channel, err := cur2.TakeString(2)
	if err != nil {
		return PHINFResult{}, err
	}

	return PHINFResult{
		MainType:       mainType,
		ManufacturerID: manufacturerID,
		ToolRevision:   toolRevision,
		PartNumber:     partNumber,
		SerialNumber:   serialNumber,
		Channel:        channel,
	}, nil
}

// MaxDefinitionSize is the largest passive-tool ROM the device will
// accept.
const MaxDefinitionSize = 960

// chunkSize is the number of raw bytes uploaded per PVWR, hex-encoded
// to 128 ASCII characters on the wire.
const chunkSize = 64

// LoadPassiveTool requests a port handle for a passive tool via PHRQ
// and uploads its ROM definition via PVWR, chunked per spec.md §4.6.
func LoadPassiveTool(t *Transport, definition []byte) (string, error) {
	if len(definition) > MaxDefinitionSize {
		return "", ErrDefinitionTooLarge
	}

	payload, err := t.roundTrip("PHRQ *********1****", "")
	if err != nil {
		return "", err
	}
	cur := ndiwire.NewCursor(payload)
	handle, err := cur.TakeString(2)
	if err != nil {
		return "", err
	}

	numChunks := (2*len(definition) + chunkSize*2 - 1) / (chunkSize * 2)
	padded := make([]byte, numChunks*chunkSize)
	copy(padded, definition)

	for i := 0; i < numChunks; i++ {
		chunk := padded[i*chunkSize : (i+1)*chunkSize]
		hexChunk := hex.EncodeToString(chunk)
		addr := fmt.Sprintf("%04X", i*chunkSize)
		cmd := fmt.Sprintf("PVWR %s%s%s", handle, addr, hexChunk)
		if _, err := t.roundTrip(cmd, "OKAY"); err != nil {
			return handle, err
		}
	}

	return handle, nil
}
