// Package ndiserial is the concrete serial-port backing for
// ndiwire.Link (component C1), built on go.bug.st/serial. It owns
// nothing about the NDI wire protocol itself; it only opens a named
// port, moves bytes, and reconfigures baud/framing/break on request.
package ndiserial

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/ndi-tracker/ndi-driver/pkg/ndiwire"
)

// Port wraps an open go.bug.st/serial port as an ndiwire.Link.
type Port struct {
	name string
	port serial.Port
}

// Open opens name at the given initial framing. The device always
// starts a session at 9600-8-N-1-NoFlow (spec.md §4.3), so callers
// performing discovery should pass that as cfg and reconfigure later
// via SetMode once COMM has been negotiated.
func Open(name string, cfg ndiwire.LinkConfig) (*Port, error) {
	mode, err := toMode(cfg)
	if err != nil {
		return nil, err
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("ndiserial: open %s: %w", name, err)
	}
	return &Port{name: name, port: p}, nil
}

// Candidates lists the platform's serial device names. Discovery
// (component C5) probes these in order; enumeration itself carries no
// NDI semantics.
func Candidates() ([]string, error) {
	return candidates()
}

func (p *Port) Write(b []byte) (int, error) {
	n, err := p.port.Write(b)
	if err != nil {
		return n, fmt.Errorf("ndiserial: write %s: %w", p.name, err)
	}
	return n, nil
}

// Read returns (0, nil) on a read-timeout expiry with nothing
// received, matching go.bug.st/serial's own timeout contract and
// satisfying ndiwire.Link's no-data-no-error requirement.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if err != nil {
		return n, fmt.Errorf("ndiserial: read %s: %w", p.name, err)
	}
	return n, nil
}

func (p *Port) SetReadTimeout(d time.Duration) error {
	if err := p.port.SetReadTimeout(d); err != nil {
		return fmt.Errorf("ndiserial: set read timeout %s: %w", p.name, err)
	}
	return nil
}

func (p *Port) SetMode(cfg ndiwire.LinkConfig) error {
	mode, err := toMode(cfg)
	if err != nil {
		return err
	}
	if err := p.port.SetMode(mode); err != nil {
		return fmt.Errorf("ndiserial: set mode %s: %w", p.name, err)
	}
	return nil
}

func (p *Port) Break(d time.Duration) error {
	if err := p.port.Break(d); err != nil {
		return fmt.Errorf("ndiserial: break %s: %w", p.name, err)
	}
	return nil
}

func (p *Port) Close() error {
	if err := p.port.Close(); err != nil {
		return fmt.Errorf("ndiserial: close %s: %w", p.name, err)
	}
	return nil
}

// Name reports the device path the port was opened from.
func (p *Port) Name() string {
	return p.name
}

func toMode(cfg ndiwire.LinkConfig) (*serial.Mode, error) {
	mode := &serial.Mode{BaudRate: cfg.Baud}

	switch cfg.DataBits {
	case 0, 8:
		mode.DataBits = 8
	case 7:
		mode.DataBits = 7
	default:
		return nil, fmt.Errorf("ndiserial: unsupported data bits %d", cfg.DataBits)
	}

	switch cfg.Parity {
	case ndiwire.ParityNone:
		mode.Parity = serial.NoParity
	case ndiwire.ParityOdd:
		mode.Parity = serial.OddParity
	case ndiwire.ParityEven:
		mode.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("ndiserial: unsupported parity %d", cfg.Parity)
	}

	switch cfg.Stop {
	case ndiwire.Stop1:
		mode.StopBits = serial.OneStopBit
	case ndiwire.Stop2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("ndiserial: unsupported stop bits %d", cfg.Stop)
	}

	// go.bug.st/serial's Mode has no hardware-flow-control field; a
	// FlowHardware request is honored on the wire (COMM still tells
	// the device to use it) but the host side can't enforce RTS/CTS
	// through this library. Bring-up treats that as acceptable since
	// the reference hardware tolerates software-paced traffic.
	_ = cfg.Flow

	return mode, nil
}
