package core

import (
	"sync"

	"github.com/jabolina/maekawa/pkg/maekawa/types"
)

// fakeTransport is an in-memory Transport used by unit tests to drive
// and observe a Peer's arbiter/requester logic without opening real
// sockets.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []types.Message
	inbound chan types.Message
	closed  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan types.Message, 256)}
}

func (f *fakeTransport) Send(m types.Message, dest types.PeerID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.Dest = dest
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeTransport) Inbound() <-chan types.Message {
	return f.inbound
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) sentOfKind(k types.Kind) []types.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Message
	for _, m := range f.sent {
		if m.Kind == k {
			out = append(out, m)
		}
	}
	return out
}

// noopLogger discards everything; tests assert on transport/state, not
// log output.
type noopLogger struct{}

func (noopLogger) Infof(string, ...interface{})    {}
func (noopLogger) Warnf(string, ...interface{})    {}
func (noopLogger) Errorf(string, ...interface{})   {}
func (noopLogger) Debugf(string, ...interface{})   {}
func (noopLogger) ToggleDebug(bool)                {}

func newTestPeer(id types.PeerID, quorum []types.PeerID) (*Peer, *fakeTransport) {
	ft := newFakeTransport()
	p := NewPeer(Config{
		ID:        id,
		N:         len(quorum),
		Quorum:    quorum,
		Clock:     NewLogicalClock(),
		Transport: ft,
		Logger:    noopLogger{},
	})
	return p, ft
}
