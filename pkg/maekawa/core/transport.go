package core

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jabolina/maekawa/pkg/maekawa/definition"
	"github.com/jabolina/maekawa/pkg/maekawa/types"
)

// Transport is the contract the arbiter/requester core consumes from
// the network layer: a non-blocking Send from the caller's
// perspective, and a single stream of fully-decoded messages presented
// one at a time, preserving per-sender FIFO order.
type Transport interface {
	// Send reliably delivers m to dest using the socket pre-established
	// for that destination.
	Send(m types.Message, dest types.PeerID) error

	// Inbound returns the channel of decoded messages arriving from any
	// sender. Per-sender order is preserved; cross-sender order is not.
	Inbound() <-chan types.Message

	// Close tears down all sockets owned by this transport.
	Close() error
}

// TCPTransport implements Transport over loopback TCP, one listener
// per peer at BASE+i and one outbound connection per ordered pair.
// relt's UDP group multicast is replaced here with a plain
// dial-everyone TCP topology, and JSON framing is implemented with
// brace-depth scanning instead of relying on relt's message
// boundaries.
type TCPTransport struct {
	self     types.PeerID
	n        int
	basePort int
	log      definition.Logger

	listener net.Listener

	mutex  sync.Mutex
	dialed map[types.PeerID]net.Conn

	inbound chan types.Message
	closing chan struct{}
	wg      sync.WaitGroup
}

// NewTCPTransport binds the local listener, then dials every peer
// 0..n-1 (including self, matching original_source/nodeSend.py's
// build_connection which connects to every configured peer without
// excluding its own id) at 127.0.0.1:basePort+i, retrying with a short
// backoff until each dial succeeds or the overall deadline elapses. A
// dial or bind failure that survives the deadline is a bootstrap
// failure and is fatal to this peer: a quorum that can't reach one of
// its members can never reach unanimity.
func NewTCPTransport(self types.PeerID, n int, basePort int, log definition.Logger, dialTimeout time.Duration) (*TCPTransport, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", basePort+int(self))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("maekawa: peer %d failed to bind %s: %w", self, addr, err)
	}

	t := &TCPTransport{
		self:     self,
		n:        n,
		basePort: basePort,
		log:      log,
		listener: listener,
		dialed:   make(map[types.PeerID]net.Conn, n),
		inbound:  make(chan types.Message, 64*n),
		closing:  make(chan struct{}),
	}

	t.wg.Add(1)
	go t.acceptLoop()

	deadline := time.Now().Add(dialTimeout)
	for j := 0; j < n; j++ {
		conn, err := dialWithRetry(t.peerAddress(types.PeerID(j)), deadline)
		if err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("maekawa: peer %d failed to dial peer %d: %w", self, j, err)
		}
		t.dialed[types.PeerID(j)] = conn
	}

	return t, nil
}

func (t *TCPTransport) peerAddress(id types.PeerID) string {
	return fmt.Sprintf("127.0.0.1:%d", t.basePort+int(id))
}

func dialWithRetry(addr string, deadline time.Time) (net.Conn, error) {
	var lastErr error
	for {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return nil, lastErr
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// Send implements Transport.
func (t *TCPTransport) Send(m types.Message, dest types.PeerID) error {
	t.mutex.Lock()
	conn, ok := t.dialed[dest]
	t.mutex.Unlock()
	if !ok {
		return fmt.Errorf("maekawa: peer %d has no connection to peer %d", t.self, dest)
	}

	payload, err := types.Encode(m)
	if err != nil {
		return fmt.Errorf("maekawa: failed encoding message to peer %d: %w", dest, err)
	}

	if _, err := conn.Write(payload); err != nil {
		t.log.Errorf("peer %d: link to peer %d failed: %v", t.self, dest, err)
		return err
	}
	return nil
}

// Inbound implements Transport.
func (t *TCPTransport) Inbound() <-chan types.Message {
	return t.inbound
}

// Close implements Transport.
func (t *TCPTransport) Close() error {
	select {
	case <-t.closing:
		return nil
	default:
		close(t.closing)
	}

	err := t.listener.Close()
	t.mutex.Lock()
	for _, conn := range t.dialed {
		_ = conn.Close()
	}
	t.mutex.Unlock()
	t.wg.Wait()
	return err
}

// acceptLoop accepts every inbound connection (one per remote peer
// that dialed us) and spawns a dedicated reader for it, so each
// sender's byte stream is decoded strictly in order.
func (t *TCPTransport) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closing:
				return
			default:
				t.log.Warnf("peer %d: accept failed: %v", t.self, err)
				return
			}
		}
		t.wg.Add(1)
		go t.readLoop(conn)
	}
}

// readLoop decodes one sender's byte stream into Message values. The
// wire format has no delimiter between frames; a frame ends where its
// brace nesting returns to zero. Decode errors discard only the
// offending frame; link errors close only this connection.
func (t *TCPTransport) readLoop(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()

	// Close the accepted connection as soon as the transport closes, so
	// a blocked Read returns instead of waiting for the remote peer.
	readerDone := make(chan struct{})
	defer close(readerDone)
	go func() {
		select {
		case <-t.closing:
			_ = conn.Close()
		case <-readerDone:
		}
	}()

	reader := bufio.NewReaderSize(conn, 4096)
	var pending []byte
	chunk := make([]byte, 4096)

	for {
		n, err := reader.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)
			frames, remainder := extractFrames(pending)
			pending = remainder
			for _, frame := range frames {
				msg, decodeErr := types.Decode(frame)
				if decodeErr != nil {
					t.log.Warnf("peer %d: discarding malformed frame from a peer: %v", t.self, decodeErr)
					continue
				}
				select {
				case t.inbound <- msg:
				case <-t.closing:
					return
				}
			}
		}
		if err != nil {
			select {
			case <-t.closing:
			default:
				t.log.Warnf("peer %d: link closed: %v", t.self, err)
			}
			return
		}
	}
}

// extractFrames scans buf for complete, brace-balanced JSON objects
// and returns them in order along with any trailing partial object
// still awaiting more bytes. It assumes the schema never places a
// '{' or '}' inside a string value, which holds for Message since
// every field is numeric, an enum, or a nested object - never a
// string.
func extractFrames(buf []byte) (frames [][]byte, remainder []byte) {
	depth := 0
	start := 0
	lastEnd := 0

	for i, c := range buf {
		switch c {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					frames = append(frames, append([]byte(nil), buf[start:i+1]...))
					lastEnd = i + 1
				}
			}
		}
	}
	remainder = append([]byte(nil), buf[lastEnd:]...)
	return frames, remainder
}
