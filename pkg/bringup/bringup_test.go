package bringup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndi-tracker/ndi-driver/pkg/ndiwire"
	"github.com/ndi-tracker/ndi-driver/pkg/tool"
)

type scriptedLink struct {
	replies [][]byte
	next    int
	inbound []byte
	pos     int
	Sent    [][]byte
	cfg     ndiwire.LinkConfig
}

func newScriptedLink(replies ...string) *scriptedLink {
	l := &scriptedLink{}
	for _, r := range replies {
		crc := ndiwire.CRC16([]byte(r))
		digits := ndiwire.FormatCRC(crc)
		l.replies = append(l.replies, append(append([]byte(r), digits[:]...), '\r'))
	}
	return l
}

func (l *scriptedLink) Write(p []byte) (int, error) {
	l.Sent = append(l.Sent, append([]byte(nil), p...))
	if l.next < len(l.replies) {
		l.inbound = l.replies[l.next]
		l.pos = 0
		l.next++
	}
	return len(p), nil
}

func (l *scriptedLink) Read(p []byte) (int, error) {
	if l.pos >= len(l.inbound) {
		return 0, nil
	}
	n := copy(p, l.inbound[l.pos:l.pos+1])
	l.pos += n
	return n, nil
}

func (l *scriptedLink) SetReadTimeout(d time.Duration) error { return nil }
func (l *scriptedLink) SetMode(cfg ndiwire.LinkConfig) error  { l.cfg = cfg; return nil }
func (l *scriptedLink) Break(d time.Duration) error           { return nil }
func (l *scriptedLink) Close() error                          { return nil }

func TestNegotiateComm(t *testing.T) {
	link := newScriptedLink("OKAY")
	registry := tool.NewRegistry(nil)
	s := NewSequencer(link, ndiwire.NewBuffer(ndiwire.MinBufferCapacity), registry, nil)

	target := ndiwire.LinkConfig{Baud: 115200, DataBits: 8, Parity: ndiwire.ParityNone, Stop: ndiwire.Stop1, Flow: ndiwire.FlowNone}
	err := s.NegotiateComm(target)
	require.NoError(t, err)
	assert.Equal(t, "COMM 50000\r", string(link.Sent[0]))
	assert.Equal(t, target, link.cfg)
}

func TestInitialize_Success(t *testing.T) {
	link := newScriptedLink("OKAY", "SOMEVER", "SOMEVER", "SOMEVER", SupportedFirmware)
	registry := tool.NewRegistry(nil)
	s := NewSequencer(link, ndiwire.NewBuffer(ndiwire.MinBufferCapacity), registry, nil)

	var events []StatusEvent
	s.OnStatus = func(e StatusEvent) { events = append(events, e) }

	err := s.Initialize()
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestInitialize_UnsupportedFirmware(t *testing.T) {
	link := newScriptedLink("OKAY", "SOMEVER", "SOMEVER", "SOMEVER", "999")
	registry := tool.NewRegistry(nil)
	s := NewSequencer(link, ndiwire.NewBuffer(ndiwire.MinBufferCapacity), registry, nil)

	err := s.Initialize()
	assert.ErrorIs(t, err, ErrUnsupportedFirmware)
}

func TestLoadTools_NoToolsNoHandles(t *testing.T) {
	link := newScriptedLink("00", "00", "00")
	registry := tool.NewRegistry(nil)
	s := NewSequencer(link, ndiwire.NewBuffer(ndiwire.MinBufferCapacity), registry, nil)

	err := s.LoadTools(ndiwire.NewBuffer(ndiwire.MinBufferCapacity))
	require.NoError(t, err)
}

func TestLoadTools_AggregatesDefinitionReadFailure(t *testing.T) {
	link := newScriptedLink("00", "00", "00")
	registry := tool.NewRegistry(nil)
	_, err := registry.Add("bad-tool", "00000099", "/nonexistent/path.rom")
	require.NoError(t, err)

	s := NewSequencer(link, ndiwire.NewBuffer(ndiwire.MinBufferCapacity), registry, nil)
	err = s.LoadTools(ndiwire.NewBuffer(ndiwire.MinBufferCapacity))
	assert.Error(t, err)
}
