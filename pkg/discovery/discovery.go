// Package discovery implements port discovery and reset (component
// C5): scanning platform-appropriate candidate device names (or trying
// a single configured one), asserting a break on each, and latching
// the first one that replies RESET.
package discovery

import (
	"errors"
	"time"

	"github.com/ndi-tracker/ndi-driver/pkg/ndiwire"
)

// ErrNoDevice is returned when every candidate port was tried and none
// answered break with RESET.
var ErrNoDevice = errors.New("discovery: no device found")

// BreakDuration is the break asserted to trigger a device reset.
const BreakDuration = 500 * time.Millisecond

// ResetTimeout is the temporarily widened read timeout while waiting
// for the RESET reply; bare metal devices can take a few seconds to
// come back up after a break.
const ResetTimeout = 5 * time.Second

// InitialConfig is the framing every candidate is opened with before
// a RESET has been observed (spec.md §4.3).
var InitialConfig = ndiwire.LinkConfig{
	Baud:     9600,
	DataBits: 8,
	Parity:   ndiwire.ParityNone,
	Stop:     ndiwire.Stop1,
	Flow:     ndiwire.FlowNone,
}

// Opener opens a named port at cfg, handing back an ndiwire.Link.
// pkg/ndiserial.Open satisfies this.
type Opener func(name string, cfg ndiwire.LinkConfig) (ndiwire.Link, error)

// Lister returns the platform's candidate device names.
// pkg/ndiserial.Candidates satisfies this.
type Lister func() ([]string, error)

// Result is a latched, reset device ready for bring-up.
type Result struct {
	Name string
	Link ndiwire.Link
}

// Discover tries configuredPort alone if non-empty, else the full
// platform candidate list from list. Each candidate is opened,
// break-reset, and probed for RESET; the first to answer is latched.
// Every other opened candidate is closed before returning.
func Discover(configuredPort string, list Lister, open Opener) (*Result, error) {
	var names []string
	if configuredPort != "" {
		names = []string{configuredPort}
	} else {
		var err error
		names, err = list()
		if err != nil {
			return nil, err
		}
	}

	for _, name := range names {
		link, err := open(name, InitialConfig)
		if err != nil {
			continue
		}
		if ok := probe(link); ok {
			return &Result{Name: name, Link: link}, nil
		}
		link.Close()
	}

	return nil, ErrNoDevice
}

// probe asserts a break on link and waits for a CRC-checked RESET
// reply. It leaves link's read timeout at ResetTimeout; the earlier
// timeout is not restored (every later Reader.Read sets its own).
func probe(link ndiwire.Link) bool {
	if err := link.Break(BreakDuration); err != nil {
		return false
	}
	time.Sleep(BreakDuration + 500*time.Millisecond)

	if err := link.SetReadTimeout(ResetTimeout); err != nil {
		return false
	}

	buf := ndiwire.NewBuffer(ndiwire.MinBufferCapacity)
	reader := ndiwire.NewReader(buf)
	_, err := reader.ReadExpected(link, ResetTimeout, "RESET")
	return err == nil
}
