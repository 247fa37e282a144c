package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/ndi-tracker/ndi-driver/pkg/ndiwire"
	"github.com/ndi-tracker/ndi-driver/pkg/tool"
)

// Loop is the tracking loop (component C9): while tracking is on, it
// issues TX at a fixed period, parses the reply, and applies it to the
// tool registry. One TX round trip happens per tick; a tick whose
// reply doesn't arrive in time is simply dropped, never pipelined.
type Loop struct {
	link     ndiwire.Link
	asm      *ndiwire.Assembler
	reader   *ndiwire.Reader
	registry *tool.Registry

	Period          time.Duration
	Timeout         time.Duration
	TrackStrayMarkers bool

	OnFrame   func(*TXReply)
	OnTimeout func()
	OnError   func(error)
}

// NewLoop wires a Loop to a link and registry. period is typically
// 20ms (50Hz); timeout is the steady-state read deadline (default 2s
// per spec.md §5).
func NewLoop(link ndiwire.Link, buf *ndiwire.Buffer, registry *tool.Registry, period, timeout time.Duration) *Loop {
	return &Loop{
		link:     link,
		asm:      ndiwire.NewAssembler(buf, false),
		reader:   ndiwire.NewReader(buf),
		registry: registry,
		Period:   period,
		Timeout:  timeout,
	}
}

// Tick performs one TX round trip. A timeout is not an error: it is
// reported via OnTimeout and the tick is dropped. A framing or CRC
// error is reported via OnError and the tick is dropped. Only a write
// failure on the link itself is returned, since that likely means the
// link is no longer usable.
func (l *Loop) Tick() error {
	if err := l.asm.Send(l.link, Command(l.TrackStrayMarkers)); err != nil {
		return err
	}

	payload, err := l.reader.Read(l.link, l.Timeout)
	if err != nil {
		if errors.Is(err, ndiwire.ErrTimeout) {
			if l.OnTimeout != nil {
				l.OnTimeout()
			}
			return nil
		}
		if l.OnError != nil {
			l.OnError(err)
		}
		return nil
	}

	reply, err := ParseTXReply(payload, l.TrackStrayMarkers)
	if err != nil {
		if l.OnError != nil {
			l.OnError(err)
		}
		return nil
	}

	l.apply(reply)
	if l.OnFrame != nil {
		l.OnFrame(reply)
	}
	return nil
}

func (l *Loop) apply(reply *TXReply) {
	for _, row := range reply.Tools {
		t, ok := l.registry.ToolByPortHandle(row.Handle)
		if !ok {
			continue
		}
		if !row.Valid {
			t.Invalidate()
			continue
		}
		q := Normalize(row.Quaternion)
		rot := RotationMatrix(q)
		t.ApplyFrame(q, rot, row.Translation, row.ErrorRMS, row.FrameNumber)
	}
}

// Run ticks at Period until ctx is canceled, returning ctx.Err(). A
// write failure from Tick stops the loop and is returned.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		start := time.Now()
		if err := l.Tick(); err != nil {
			return err
		}
		elapsed := time.Since(start)
		if elapsed < l.Period {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.Period - elapsed):
			}
		}
	}
}
