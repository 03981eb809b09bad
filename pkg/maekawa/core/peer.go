package core

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/jabolina/maekawa/pkg/maekawa/definition"
	"github.com/jabolina/maekawa/pkg/maekawa/metrics"
	"github.com/jabolina/maekawa/pkg/maekawa/types"
)

// Peer is a single participant of the deployment. It plays both roles
// of Maekawa's algorithm at once: a requester competing for the
// critical section, and an arbiter voting on behalf of the peers that
// include it in their quorum. Both roles share one clock and one
// mutex, favoring a single mutex protecting all per-peer fields with
// the admission condition variable attached over the original's more
// fragmented, interleaved locking.
//
// The overall shape - a poll loop owning the decode path, handlers
// dispatched by message kind, a separate driver goroutine blocking on
// a condition variable - mirrors chaitanyaphalak-go-mcast/pkg/mcast/
// core/peer.go's Peer, generalized from generic-multicast delivery to
// Maekawa arbitration.
type Peer struct {
	id     types.PeerID
	quorum []types.PeerID

	clock     LogicalClock
	transport Transport
	log       definition.Logger
	metrics   *metrics.Registry

	mu   sync.Mutex
	cond *sync.Cond

	arb arbiterState
	req requesterState

	barrier *Barrier

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// Config bundles everything a Peer needs to be constructed.
type Config struct {
	ID        types.PeerID
	N         int
	Quorum    []types.PeerID
	Clock     LogicalClock
	Transport Transport
	Logger    definition.Logger
	Metrics   *metrics.Registry
	Barrier   *Barrier
}

// NewPeer wires up a Peer and starts its inbound dispatch loop. The
// caller remains responsible for driving request/CS/release cycles
// through RunIterations.
func NewPeer(cfg Config) *Peer {
	p := &Peer{
		id:        cfg.ID,
		quorum:    cfg.Quorum,
		clock:     cfg.Clock,
		transport: cfg.Transport,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		arb:       newArbiterState(),
		req:       newRequesterState(),
		barrier:   cfg.Barrier,
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	go p.pollInbound()
	return p
}

// ID returns the peer's identity.
func (p *Peer) ID() types.PeerID {
	return p.id
}

// pollInbound owns the decode loop: it strictly serializes every
// inbound message through dispatch, so the clock update, state
// mutation and outbound sends triggered by one message are atomic
// with respect to every other inbound message.
func (p *Peer) pollInbound() {
	defer close(p.stopped)
	for {
		select {
		case <-p.stop:
			return
		case msg, ok := <-p.transport.Inbound():
			if !ok {
				return
			}
			p.dispatch(msg)
		}
	}
}

// dispatch applies the Lamport clock update exactly once per message,
// before branching on kind - never inside individual handlers, where
// a bug in one branch could silently skip or double the update -
// then routes the message to its handler.
func (p *Peer) dispatch(msg types.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clock.Observe(msg.Ts)

	switch msg.Kind {
	case types.Request:
		p.onRequest(msg)
	case types.Yield:
		p.onYield(msg)
	case types.Release:
		p.onRelease(msg)
	case types.Inquire:
		p.onInquire(msg)
	case types.Grant:
		p.onGrant(msg)
	case types.Failed:
		p.onFailed(msg)
	default:
		p.log.Warnf("peer %d: unknown message kind %v", p.id, msg.Kind)
	}
}

// sendLocked fills in Src and, for messages that don't already carry
// a caller-assigned shared timestamp (REQUEST/RELEASE multicasts),
// assigns a freshly ticked one. Every freshly assigned ts is therefore
// strictly greater than any previously sent or observed by this peer;
// the copies of one multicast share a single ts. Caller holds p.mu.
func (p *Peer) sendLocked(msg types.Message) {
	msg.Src = p.id
	if msg.Ts == 0 {
		msg.Ts = p.clock.Tick()
	}
	if err := p.transport.Send(msg, msg.Dest); err != nil {
		p.log.Errorf("peer %d: failed sending %v to peer %d: %v", p.id, msg.Kind, msg.Dest, err)
		return
	}
	p.log.Debugf("peer %d: sent %v to peer %d (ts=%d)", p.id, msg.Kind, msg.Dest, msg.Ts)
}

func (p *Peer) peerLabel() string {
	return strconv.Itoa(int(p.id))
}

// bumpSent increments the counter for an outbound message of the
// given kind, a no-op when metrics are disabled. Caller holds p.mu.
func (p *Peer) bumpSent(kind types.Kind) {
	if p.metrics == nil {
		return
	}
	label := p.peerLabel()
	switch kind {
	case types.Request:
		p.metrics.RequestsSent.WithLabelValues(label).Inc()
	case types.Grant:
		p.metrics.GrantsSent.WithLabelValues(label).Inc()
	case types.Failed:
		p.metrics.FailedSent.WithLabelValues(label).Inc()
	case types.Inquire:
		p.metrics.InquireSent.WithLabelValues(label).Inc()
	case types.Yield:
		p.metrics.YieldSent.WithLabelValues(label).Inc()
	case types.Release:
		p.metrics.ReleaseSent.WithLabelValues(label).Inc()
	}
}

// Stop halts the inbound dispatch loop and closes the transport.
func (p *Peer) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	<-p.stopped
	if err := p.transport.Close(); err != nil {
		p.log.Warnf("peer %d: error closing transport: %v", p.id, err)
	}
}

var _ fmt.Stringer = (*Peer)(nil)

func (p *Peer) String() string {
	return fmt.Sprintf("peer[%d]", p.id)
}
