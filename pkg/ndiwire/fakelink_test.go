package ndiwire

import "time"

// fakeLink is an in-memory loopback fixture: Write appends to Sent,
// and Read drains a pre-loaded inbound queue byte by byte, reporting
// (0, nil) once the queue is empty (matching the Link no-data-yet
// contract) so Reader's deadline logic is what ends the read loop.
type fakeLink struct {
	inbound []byte
	pos     int
	Sent    []byte
	cfg     LinkConfig
	timeout time.Duration
	breaks  []time.Duration
}

func newFakeLink(response string) *fakeLink {
	return &fakeLink{inbound: []byte(response)}
}

func (f *fakeLink) Write(p []byte) (int, error) {
	f.Sent = append(f.Sent, p...)
	return len(p), nil
}

func (f *fakeLink) Read(p []byte) (int, error) {
	if f.pos >= len(f.inbound) {
		return 0, nil
	}
	n := copy(p, f.inbound[f.pos:f.pos+1])
	f.pos += n
	return n, nil
}

func (f *fakeLink) SetReadTimeout(d time.Duration) error {
	f.timeout = d
	return nil
}

func (f *fakeLink) SetMode(cfg LinkConfig) error {
	f.cfg = cfg
	return nil
}

func (f *fakeLink) Break(d time.Duration) error {
	f.breaks = append(f.breaks, d)
	return nil
}

func (f *fakeLink) Close() error { return nil }
