// Package bringup implements the bring-up sequencer (component C6):
// negotiating baud/framing via COMM, INIT, firmware-version checks via
// VER, and driving the port-handle and passive-tool-loading sequence
// that brings every configured Tool to a tracked state.
package bringup

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ndi-tracker/ndi-driver/pkg/ndiwire"
	"github.com/ndi-tracker/ndi-driver/pkg/phandle"
	"github.com/ndi-tracker/ndi-driver/pkg/tool"
)

// CommandTimeout is the reply deadline for the COMM/INIT/VER bring-up
// round trips.
const CommandTimeout = 5 * time.Second

// SupportedFirmware is the only VER 5 payload bring-up accepts.
const SupportedFirmware = "024"

// ErrUnsupportedFirmware is returned when VER 5 reports anything other
// than SupportedFirmware.
var ErrUnsupportedFirmware = errors.New("bringup: unsupported firmware")

var baudCodes = map[int]byte{9600: '0', 19200: '2', 38400: '3', 57600: '4', 115200: '5'}
var dataBitsCodes = map[int]byte{8: '0', 7: '1'}
var parityCodes = map[ndiwire.Parity]byte{ndiwire.ParityNone: '0', ndiwire.ParityOdd: '1', ndiwire.ParityEven: '2'}
var stopCodes = map[ndiwire.StopBits]byte{ndiwire.Stop1: '0', ndiwire.Stop2: '1'}
var flowCodes = map[ndiwire.FlowControl]byte{ndiwire.FlowNone: '0', ndiwire.FlowHardware: '1'}

// commCommand renders the COMM argument string for cfg.
func commCommand(cfg ndiwire.LinkConfig) (string, error) {
	baud, ok := baudCodes[cfg.Baud]
	if !ok {
		return "", fmt.Errorf("bringup: unsupported baud %d", cfg.Baud)
	}
	dataBits, ok := dataBitsCodes[cfg.DataBits]
	if !ok {
		return "", fmt.Errorf("bringup: unsupported data bits %d", cfg.DataBits)
	}
	parity, ok := parityCodes[cfg.Parity]
	if !ok {
		return "", fmt.Errorf("bringup: unsupported parity %d", cfg.Parity)
	}
	stop, ok := stopCodes[cfg.Stop]
	if !ok {
		return "", fmt.Errorf("bringup: unsupported stop bits %d", cfg.Stop)
	}
	flow, ok := flowCodes[cfg.Flow]
	if !ok {
		return "", fmt.Errorf("bringup: unsupported flow control %d", cfg.Flow)
	}
	return fmt.Sprintf("COMM %c%c%c%c%c", baud, dataBits, parity, stop, flow), nil
}

// StatusEvent reports an informational VER reply surfaced during
// bring-up.
type StatusEvent struct {
	Query   string
	Payload string
}

// Sequencer drives one bring-up pass over an already-discovered link.
type Sequencer struct {
	link     ndiwire.Link
	asm      *ndiwire.Assembler
	reader   *ndiwire.Reader
	registry *tool.Registry

	// definitionDirs is the ordered definition-path directory list
	// (spec.md §6) a relative tool definition name is resolved
	// against.
	definitionDirs []string

	OnStatus func(StatusEvent)
}

// NewSequencer wires a Sequencer to link (opened at 9600-8-N-1-NoFlow,
// per discovery), the tool registry bring-up should populate, and the
// ordered definition-path directory list used to resolve non-absolute
// tool definition names.
func NewSequencer(link ndiwire.Link, buf *ndiwire.Buffer, registry *tool.Registry, definitionDirs []string) *Sequencer {
	return &Sequencer{
		link:           link,
		asm:            ndiwire.NewAssembler(buf, false),
		reader:         ndiwire.NewReader(buf),
		registry:       registry,
		definitionDirs: definitionDirs,
	}
}

func (s *Sequencer) roundTrip(command, expected string) ([]byte, error) {
	if err := s.asm.Send(s.link, command); err != nil {
		return nil, err
	}
	return s.reader.ReadExpected(s.link, CommandTimeout, expected)
}

// NegotiateComm issues COMM at target and reconfigures the host side
// of the link to match, per spec.md §4.4's two 200ms settling sleeps.
func (s *Sequencer) NegotiateComm(target ndiwire.LinkConfig) error {
	cmd, err := commCommand(target)
	if err != nil {
		return err
	}
	if _, err := s.roundTrip(cmd, "OKAY"); err != nil {
		return err
	}
	time.Sleep(200 * time.Millisecond)
	if err := s.link.SetMode(target); err != nil {
		return err
	}
	time.Sleep(200 * time.Millisecond)
	return nil
}

// Initialize issues INIT and the VER sequence, failing with
// ErrUnsupportedFirmware if VER 5 doesn't report SupportedFirmware.
func (s *Sequencer) Initialize() error {
	if _, err := s.roundTrip("INIT", "OKAY"); err != nil {
		return err
	}

	for _, q := range []string{"VER 0", "VER 3", "VER 4"} {
		payload, err := s.roundTrip(q, "")
		if err != nil {
			return err
		}
		if s.OnStatus != nil {
			s.OnStatus(StatusEvent{Query: q, Payload: string(payload)})
		}
	}

	payload, err := s.roundTrip("VER 5", "")
	if err != nil {
		return err
	}
	if string(payload) != SupportedFirmware {
		return fmt.Errorf("%w: got %q", ErrUnsupportedFirmware, payload)
	}
	return nil
}

// LoadTools runs the port-handle state machine to completion for
// every registered tool: passive-tool ROM upload, free/initialize any
// stale handles, query each newly initialized handle's identity, and
// enable every handle PHSR reports ready. Per-tool load failures are
// collected and returned together via go-multierror rather than
// aborting the whole batch, since one bad tool definition shouldn't
// strand the rest of the system.
func (s *Sequencer) LoadTools(buf *ndiwire.Buffer) error {
	transport := phandle.NewTransport(s.link, buf)

	var warnings *multierror.Error

	for _, t := range s.registry.WithDefinition() {
		def, err := loadDefinitionFile(s.definitionDirs, t.DefinitionPath)
		if err != nil {
			warnings = multierror.Append(warnings, fmt.Errorf("tool %q: %w", t.Name, err))
			continue
		}
		ph, err := phandle.LoadPassiveTool(transport, def)
		if err != nil {
			warnings = multierror.Append(warnings, fmt.Errorf("tool %q: %w", t.Name, err))
			continue
		}
		s.registry.AssignPortHandle(t, ph)
	}

	if _, err := phandle.FreeHandles(transport); err != nil {
		return err
	}

	initialized, err := phandle.InitializeHandles(transport)
	if err != nil {
		return err
	}

	for _, ph := range initialized {
		info, err := phandle.QueryHandle(transport, ph)
		if err != nil {
			warnings = multierror.Append(warnings, fmt.Errorf("handle %q: %w", ph, err))
			continue
		}
		applyToolInfo(s.registry, ph, info)
	}

	if _, err := phandle.EnableHandles(transport, s.registry); err != nil {
		return err
	}

	return warnings.ErrorOrNil()
}

// applyToolInfo finds or adopts the tool matching info's serial number
// and records its identity and port handle. A wired tool discovered
// without a prior config entry is auto-named "<main_type>-<serial>"
// per spec.md §8's S4 scenario (e.g. "02-12345678" for a probe).
func applyToolInfo(registry *tool.Registry, ph string, info phandle.PHINFResult) {
	t, ok := registry.ToolBySerial(info.SerialNumber)
	if !ok {
		name := fmt.Sprintf("%s-%s", info.MainType, info.SerialNumber)
		t, _ = registry.Add(name, info.SerialNumber, "")
	}
	t.MainType = tool.MainType(info.MainType)
	t.ManufacturerID = info.ManufacturerID
	t.ToolRevision = info.ToolRevision
	t.PartNumber = info.PartNumber
	registry.AssignPortHandle(t, ph)
}
