package discovery

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndi-tracker/ndi-driver/pkg/ndiwire"
)

// fakeLink models one candidate device. If reply is set, Break succeeds
// and Read streams the framed reply byte by byte. If failRead is set,
// Read returns an error immediately, so a non-responding candidate
// fails probe() without waiting out the full ResetTimeout.
type fakeLink struct {
	reply     []byte
	pos       int
	failRead  bool
	breakErr  error
	breakSeen bool
	closed    bool
}

func newFakeReply(payload string) []byte {
	crc := ndiwire.CRC16([]byte(payload))
	digits := ndiwire.FormatCRC(crc)
	return append(append([]byte(payload), digits[:]...), '\r')
}

func (l *fakeLink) Write(p []byte) (int, error) { return len(p), nil }

func (l *fakeLink) Read(p []byte) (int, error) {
	if l.failRead {
		return 0, errors.New("fakeLink: no device")
	}
	if l.pos >= len(l.reply) {
		return 0, nil
	}
	n := copy(p, l.reply[l.pos:l.pos+1])
	l.pos += n
	return n, nil
}

func (l *fakeLink) SetReadTimeout(d time.Duration) error { return nil }
func (l *fakeLink) SetMode(cfg ndiwire.LinkConfig) error { return nil }
func (l *fakeLink) Break(d time.Duration) error {
	l.breakSeen = true
	return l.breakErr
}
func (l *fakeLink) Close() error {
	l.closed = true
	return nil
}

func TestDiscover_SingleConfiguredPort(t *testing.T) {
	link := &fakeLink{reply: newFakeReply("RESET")}
	listCalled := false

	result, err := Discover("/dev/ttyUSB3",
		func() ([]string, error) { listCalled = true; return nil, nil },
		func(name string, cfg ndiwire.LinkConfig) (ndiwire.Link, error) {
			assert.Equal(t, "/dev/ttyUSB3", name)
			assert.Equal(t, InitialConfig, cfg)
			return link, nil
		},
	)

	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB3", result.Name)
	assert.Same(t, link, result.Link)
	assert.False(t, listCalled, "list must not be consulted when a port is configured")
	assert.True(t, link.breakSeen)
}

func TestDiscover_SkipsNonRespondingCandidates(t *testing.T) {
	dead := &fakeLink{failRead: true}
	live := &fakeLink{reply: newFakeReply("RESET")}

	result, err := Discover("",
		func() ([]string, error) { return []string{"a", "b"}, nil },
		func(name string, cfg ndiwire.LinkConfig) (ndiwire.Link, error) {
			if name == "a" {
				return dead, nil
			}
			return live, nil
		},
	)

	require.NoError(t, err)
	assert.Equal(t, "b", result.Name)
	assert.Same(t, live, result.Link)
	assert.True(t, dead.closed, "a non-responding candidate must be closed before moving on")
	assert.False(t, live.closed, "the winning candidate must not be closed")
}

func TestDiscover_OpenErrorSkipsCandidate(t *testing.T) {
	live := &fakeLink{reply: newFakeReply("RESET")}

	result, err := Discover("",
		func() ([]string, error) { return []string{"a", "b"}, nil },
		func(name string, cfg ndiwire.LinkConfig) (ndiwire.Link, error) {
			if name == "a" {
				return nil, errors.New("open: permission denied")
			}
			return live, nil
		},
	)

	require.NoError(t, err)
	assert.Equal(t, "b", result.Name)
}

func TestDiscover_ExhaustsAllCandidates(t *testing.T) {
	result, err := Discover("",
		func() ([]string, error) { return []string{"a", "b"}, nil },
		func(name string, cfg ndiwire.LinkConfig) (ndiwire.Link, error) {
			return &fakeLink{failRead: true}, nil
		},
	)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestDiscover_ListErrorPropagates(t *testing.T) {
	wantErr := errors.New("enumeration failed")
	result, err := Discover("",
		func() ([]string, error) { return nil, wantErr },
		func(name string, cfg ndiwire.LinkConfig) (ndiwire.Link, error) {
			t.Fatal("open must not be called when list fails")
			return nil, nil
		},
	)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, wantErr)
}
