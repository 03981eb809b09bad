package core

import (
	"math/rand"
	"time"

	"github.com/jabolina/maekawa/pkg/maekawa/types"
)

// requesterState holds the per-peer state a requester maintains while
// competing for the critical section. It is always accessed with
// Peer.mu held.
type requesterState struct {
	// grantsReceived holds the peers whose GRANT is currently held for
	// the active request. Self is counted immediately on multicast.
	grantsReceived map[types.PeerID]bool

	// inCS is true only while strictly between enter and exit.
	inCS bool

	// outstandingTs is the ts used for the active REQUEST.
	outstandingTs types.Timestamp

	// yielded/failed mirror whether this requester has been told to
	// stand down by an arbiter it depends on.
	yielded bool
	failed  bool
}

func newRequesterState() requesterState {
	return requesterState{grantsReceived: make(map[types.PeerID]bool)}
}

// onGrant records a vote toward the active request and wakes the
// waiting requester goroutine once every quorum member has granted.
// Caller holds p.mu.
func (p *Peer) onGrant(msg types.Message) {
	p.req.grantsReceived[msg.Src] = true
	p.req.yielded = false
	p.req.failed = false

	if len(p.req.grantsReceived) == len(p.quorum) {
		p.cond.Broadcast()
	}
}

// onFailed records that this request has lost a race outright: it
// must also concede every race it was itself holding off on, so it
// YIELDs to everything it had buffered in arb.inquired rather than
// leaving those peers waiting on a grant that will never come.
// Caller holds p.mu.
func (p *Peer) onFailed(msg types.Message) {
	p.req.failed = true
	p.req.yielded = true

	for src := range p.arb.inquired {
		p.sendLocked(types.Message{Kind: types.Yield, Dest: src})
		p.bumpSent(types.Yield)
	}
	p.arb.inquired = make(map[types.PeerID]types.Priority)
	p.req.grantsReceived = make(map[types.PeerID]bool)
}

// RunIterations drives this peer through count request/CS/release
// cycles, each preceded by a small randomized backoff so concurrently
// starting peers don't lock-step their REQUESTs, and then waits on the
// shared barrier. csWork, when non-nil, runs while the peer holds the
// critical section; it stands in for whatever opaque work the driver
// wants executed there.
func (p *Peer) RunIterations(count int, csWork func(iteration int)) {
	rng := rand.New(rand.NewSource(int64(p.id) + 1))

	for iter := 0; iter < count; iter++ {
		backoff := time.Duration(rng.Intn(50)) * time.Millisecond
		time.Sleep(backoff)

		p.requestCycle(iter, csWork)
	}

	if p.barrier != nil {
		p.barrier.Done()
	}
}

// requestCycle runs a single request/CS/release cycle: multicast
// REQUEST to the rest of the quorum under one shared timestamp, wait
// for unanimous GRANT, run the critical section, then multicast
// RELEASE under a second shared timestamp.
func (p *Peer) requestCycle(iteration int, csWork func(iteration int)) {
	p.mu.Lock()
	ts := p.clock.Tick()
	p.req.outstandingTs = ts
	p.req.grantsReceived = map[types.PeerID]bool{p.id: true}

	for _, dest := range p.quorum {
		if dest == p.id {
			continue
		}
		p.sendLocked(types.Message{Kind: types.Request, Dest: dest, Ts: ts})
	}
	p.bumpSent(types.Request)

	for len(p.req.grantsReceived) < len(p.quorum) {
		p.cond.Wait()
	}

	p.req.inCS = true
	p.mu.Unlock()

	p.log.Infof("peer %d entering critical section (iteration %d)", p.id, iteration)
	if p.metrics != nil {
		p.metrics.CSEntries.WithLabelValues(p.peerLabel()).Inc()
	}
	if csWork != nil {
		csWork(iteration)
	}

	p.mu.Lock()
	p.req.inCS = false
	p.req.grantsReceived = make(map[types.PeerID]bool)
	relTs := p.clock.Tick()
	for _, dest := range p.quorum {
		if dest == p.id {
			continue
		}
		p.sendLocked(types.Message{Kind: types.Release, Dest: dest, Ts: relTs})
	}
	p.bumpSent(types.Release)
	p.mu.Unlock()
}
