// Package driver implements the control surface (component C10): the
// Session state machine, the thread-safe command queue consumers
// submit to, and the published state/event surface backed by Redis.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ndi-tracker/ndi-driver/pkg/bringup"
	"github.com/ndi-tracker/ndi-driver/pkg/discovery"
	"github.com/ndi-tracker/ndi-driver/pkg/ndiwire"
	"github.com/ndi-tracker/ndi-driver/pkg/tool"
	"github.com/ndi-tracker/ndi-driver/pkg/tracking"
)

// Session is the driver's connection/tracking state.
type Session int

const (
	SessionDisconnected Session = iota
	SessionOpening
	SessionResetting
	SessionInitializing
	SessionReady
	SessionTracking
)

func (s Session) String() string {
	switch s {
	case SessionDisconnected:
		return "disconnected"
	case SessionOpening:
		return "opening"
	case SessionResetting:
		return "resetting"
	case SessionInitializing:
		return "initializing"
	case SessionReady:
		return "ready"
	case SessionTracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// RunConfig is the operating-baud framing negotiated by COMM after
// reset, per spec.md §6: 115200-8-N-1-NoFlow.
var RunConfig = ndiwire.LinkConfig{
	Baud:     115200,
	DataBits: 8,
	Parity:   ndiwire.ParityNone,
	Stop:     ndiwire.Stop1,
	Flow:     ndiwire.FlowNone,
}

type command struct {
	kind string
	n    int
	on   bool
	port string
	done chan error
}

// Driver owns the serial link and all device-facing state for one
// tracker. It is driven exclusively by Run; every control method
// (Connect, Disconnect, Beep, ToggleTracking, ToggleStray,
// ReportStrayMarkers) enqueues a command executed at the top of the
// next tick, matching
// the single-threaded cooperative model of spec.md §5.
type Driver struct {
	cfg      Config
	registry *tool.Registry
	redis    *RedisClient

	list Lister
	open Opener

	link    ndiwire.Link
	buf     *ndiwire.Buffer
	session Session

	loop      *tracking.Loop
	lastReply *tracking.TXReply

	mailbox chan command
	stop    chan struct{}

	// mu guards session and registry against the Run goroutine's
	// writes racing with Session()/Registry() calls from consumers
	// outside the command queue, matching the teacher's usock.USOCK
	// mutex around its own shared connection state.
	mu sync.Mutex
}

// Lister and Opener mirror pkg/discovery's collaborator contracts,
// re-exported here so callers don't need to import pkg/discovery to
// construct a Driver.
type Lister = discovery.Lister
type Opener = discovery.Opener

// New constructs a Driver. redis may be nil for tests that don't need
// publication.
func New(cfg Config, redis *RedisClient, list Lister, open Opener) *Driver {
	registry := tool.NewRegistry(nil)
	for _, tc := range cfg.Tools {
		t, err := registry.Add(tc.Name, tc.SerialNumber, tc.DefinitionPath)
		if err == nil {
			t.TooltipOffset = tc.TooltipOffset
			if tc.TooltipRotation != (tool.Vector3{}) {
				log.Printf("ndi-driver: tool %q has a tooltip_rotation, which this driver does not apply (see SPEC_FULL.md §12)", tc.Name)
			}
		}
	}

	return &Driver{
		cfg:      cfg,
		registry: registry,
		redis:    redis,
		list:     list,
		open:     open,
		session:  SessionDisconnected,
		mailbox:  make(chan command, 32),
		stop:     make(chan struct{}),
	}
}

// Registry exposes the tool registry for inspection by consumers that
// aren't going through the command queue (e.g. a status endpoint).
func (d *Driver) Registry() *tool.Registry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry
}

// Session reports the driver's current connection state.
func (d *Driver) Session() Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// setSession updates the session under mu, the only way d.session may
// be written so Session() always sees a consistent value.
func (d *Driver) setSession(s Session) {
	d.mu.Lock()
	d.session = s
	d.mu.Unlock()
}

func (d *Driver) send(c command) error {
	c.done = make(chan error, 1)
	select {
	case d.mailbox <- c:
	case <-d.stop:
		return errors.New("driver: stopped")
	}
	select {
	case err := <-c.done:
		return err
	case <-d.stop:
		return errors.New("driver: stopped")
	}
}

// Connect requests the driver open port (or discover one if empty).
func (d *Driver) Connect(port string) error {
	return d.send(command{kind: "connect", port: port})
}

// Disconnect requests the driver close its link and return to
// SessionDisconnected.
func (d *Driver) Disconnect() error {
	return d.send(command{kind: "disconnect"})
}

// Beep requests an n-pulse beep (n in 1..9).
func (d *Driver) Beep(n int) error {
	return d.send(command{kind: "beep", n: n})
}

// ToggleTracking starts or stops the periodic TX loop.
func (d *Driver) ToggleTracking(on bool) error {
	return d.send(command{kind: "toggle_tracking", on: on})
}

// ToggleStray enables or disables the stray-marker block in TX.
func (d *Driver) ToggleStray(on bool) error {
	return d.send(command{kind: "toggle_stray", on: on})
}

// ReportStrayMarkers requests an immediate publish of the current
// stray-marker table without waiting for the next tick.
func (d *Driver) ReportStrayMarkers() error {
	return d.send(command{kind: "report_stray_markers"})
}

// Stop ends Run's loop and fails any command still in flight.
func (d *Driver) Stop() {
	close(d.stop)
}

// Run drains the command queue and, once tracking, runs one TX round
// trip per tick, publishing a snapshot after each. It returns when ctx
// is canceled, when Stop is called, or with the error of a tick that
// failed to send TX.
func (d *Driver) Run(ctx context.Context) error {
	period := time.Duration(d.cfg.TickPeriodMS) * time.Millisecond
	if period <= 0 {
		period = 20 * time.Millisecond
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.stop:
			return nil
		case <-ticker.C:
			d.drainMailbox()
			if d.Session() == SessionTracking && d.loop != nil {
				if err := d.loop.Tick(); err != nil {
					return err
				}
				d.publishSnapshot()
			}
		}
	}
}

// drainMailbox executes every command already queued without blocking
// for more, so a tick's tracking round never waits on a consumer that
// hasn't sent anything yet.
func (d *Driver) drainMailbox() {
	for {
		select {
		case c := <-d.mailbox:
			c.done <- d.handle(c)
		default:
			return
		}
	}
}

func (d *Driver) handle(c command) error {
	switch c.kind {
	case "connect":
		return d.doConnect(c.port)
	case "disconnect":
		return d.doDisconnect()
	case "beep":
		return d.doBeep(c.n)
	case "toggle_tracking":
		return d.doToggleTracking(c.on)
	case "toggle_stray":
		return d.doToggleStray(c.on)
	case "report_stray_markers":
		d.publishSnapshot()
		return nil
	default:
		return fmt.Errorf("driver: unknown command %q", c.kind)
	}
}

func (d *Driver) doConnect(port string) error {
	d.setSession(SessionOpening)
	result, err := discovery.Discover(port, d.list, d.open)
	if err != nil {
		d.setSession(SessionDisconnected)
		return err
	}

	d.setSession(SessionResetting)
	d.link = result.Link
	d.buf = ndiwire.NewBuffer(ndiwire.MinBufferCapacity)

	seq := bringup.NewSequencer(d.link, d.buf, d.registry, d.cfg.DefinitionPath)
	if err := seq.NegotiateComm(RunConfig); err != nil {
		d.setSession(SessionDisconnected)
		return err
	}

	d.setSession(SessionInitializing)
	if err := seq.Initialize(); err != nil {
		d.setSession(SessionDisconnected)
		return err
	}
	if err := seq.LoadTools(d.buf); err != nil {
		log.Printf("ndi-driver: bring-up warnings: %v", err)
	}

	d.loop = tracking.NewLoop(d.link, d.buf, d.registry, 20*time.Millisecond, 2*time.Second)
	d.loop.OnFrame = func(reply *tracking.TXReply) { d.lastReply = reply }
	d.setSession(SessionReady)
	d.publishConnected(result.Name)
	d.publishToolsUpdated()
	return nil
}

func (d *Driver) doDisconnect() error {
	if d.link != nil {
		d.link.Close()
	}
	d.link = nil
	d.loop = nil
	d.setSession(SessionDisconnected)
	d.publishConnected("")
	return nil
}

// ErrBeepCountOutOfRange is returned when Beep is called with a pulse
// count outside the device's 1..9 range.
var ErrBeepCountOutOfRange = errors.New("driver: beep count must be in 1..9")

func (d *Driver) doBeep(n int) error {
	if n < 1 || n > 9 {
		return ErrBeepCountOutOfRange
	}
	if d.link == nil {
		return errors.New("driver: not connected")
	}
	asm := ndiwire.NewAssembler(d.buf, false)
	reader := ndiwire.NewReader(d.buf)

	for {
		if err := asm.Send(d.link, fmt.Sprintf("BEEP %d", n)); err != nil {
			return err
		}
		payload, err := reader.Read(d.link, 2*time.Second)
		if err != nil {
			return err
		}
		switch {
		case len(payload) > 0 && payload[0] == '1':
			return nil
		case len(payload) > 0 && payload[0] == '0':
			continue // device busy, retry
		default:
			return ndiwire.NewUnexpected("0 or 1", string(payload))
		}
	}
}

func (d *Driver) doToggleTracking(on bool) error {
	if d.link == nil {
		return errors.New("driver: not connected")
	}
	asm := ndiwire.NewAssembler(d.buf, false)
	reader := ndiwire.NewReader(d.buf)

	cmd := "TSTOP"
	if on {
		cmd = "TSTART 80"
	}
	if err := asm.Send(d.link, cmd); err != nil {
		return err
	}
	if _, err := reader.ReadExpected(d.link, 2*time.Second, "OKAY"); err != nil {
		return err
	}
	time.Sleep(500 * time.Millisecond)

	if on {
		d.setSession(SessionTracking)
	} else {
		d.setSession(SessionReady)
	}
	d.publishTracking(on)
	return nil
}

// doToggleStray enables or disables the stray-marker block in the
// tracking loop's TX request. d.loop is only set once doConnect has
// completed, so this guards the same way doBeep/doToggleTracking guard
// on d.link.
func (d *Driver) doToggleStray(on bool) error {
	if d.loop == nil {
		return errors.New("driver: not connected")
	}
	d.loop.TrackStrayMarkers = on
	return nil
}
