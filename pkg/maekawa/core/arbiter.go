package core

import "github.com/jabolina/maekawa/pkg/maekawa/types"

// arbiterState holds the per-peer state an arbiter maintains on
// behalf of the peers that include it in their quorum: at most one
// outstanding grant, plus whatever requests arrived while that grant
// was held. It is always accessed with Peer.mu held.
type arbiterState struct {
	// pending holds (ts, src) requests that arrived while a grant was
	// already outstanding.
	pending *pendingQueue

	// currentGrant is the single outstanding vote this arbiter has
	// cast, or nil when idle. Its Ts field doubles as the original
	// request timestamp: if the holder is later asked to step aside
	// and YIELDs, this same Priority is reinserted into pending rather
	// than being given a freshly ticked timestamp, so it keeps its
	// place in line instead of going to the back.
	currentGrant *types.Priority

	// inquired buffers INQUIRE senders this peer, acting as requester,
	// has not yet answered because it neither holds nor has lost the
	// race outright. Resolved the moment a FAILED tells this peer it
	// has lost a different race and must step aside from all of them.
	inquired map[types.PeerID]types.Priority
}

func newArbiterState() arbiterState {
	return arbiterState{
		pending:  newPendingQueue(),
		inquired: make(map[types.PeerID]types.Priority),
	}
}

// onRequest handles an incoming REQUEST: grant it outright if this
// arbiter is idle, otherwise compare it against the current holder and
// either reject it or ask the holder to step aside. Caller holds p.mu.
func (p *Peer) onRequest(msg types.Message) {
	requester := msg.Priority()

	if p.arb.currentGrant == nil {
		p.grantLocked(requester)
		return
	}

	current := *p.arb.currentGrant
	if current.Less(requester) {
		// The current holder outranks the newcomer: reject it outright
		// and queue it for later.
		p.sendLocked(types.Message{Kind: types.Failed, Dest: requester.Src})
		p.arb.pending.Insert(requester)
		p.bumpSent(types.Failed)
	} else {
		// The newcomer outranks the current holder: ask the holder to
		// step aside. current_grant is left untouched until the holder
		// actually YIELDs.
		data := types.InquireData{Ts: requester.Ts, Src: requester.Src}
		p.sendLocked(types.Message{Kind: types.Inquire, Dest: current.Src, Data: &data})
		p.arb.pending.Insert(requester)
		p.bumpSent(types.Inquire)
	}
}

// onYield handles a holder stepping aside after losing an INQUIRE
// race: its original grant goes back into pending and, if anyone is
// waiting, the next-highest-priority request is granted immediately.
// Caller holds p.mu.
func (p *Peer) onYield(msg types.Message) {
	if p.arb.currentGrant == nil || p.arb.currentGrant.Src != msg.Src {
		// Stale YIELD: the sender is not (or no longer) the grant
		// holder this arbiter believes it has. Ignored.
		return
	}

	yielded := *p.arb.currentGrant
	p.arb.pending.Insert(yielded)
	p.arb.currentGrant = nil

	if next, ok := p.arb.pending.PopMin(); ok {
		p.grantLocked(next)
	}
}

// onRelease handles a holder leaving the critical section: clear the
// grant if it's still held by this source, drop any pending entry for
// it too, and hand the grant to the next waiter if one exists. Caller
// holds p.mu.
func (p *Peer) onRelease(msg types.Message) {
	if p.arb.currentGrant != nil && p.arb.currentGrant.Src == msg.Src {
		p.arb.currentGrant = nil
	}
	p.arb.pending.Remove(msg.Src)

	if p.arb.currentGrant == nil {
		if next, ok := p.arb.pending.PopMin(); ok {
			p.grantLocked(next)
		}
	}
}

// onInquire handles this peer's requester role being asked, by some
// other arbiter, to step aside for a higher-priority latecomer. It
// arrives only at peers that hold or are waiting on a grant from that
// arbiter. Caller holds p.mu.
func (p *Peer) onInquire(msg types.Message) {
	if p.req.inCS {
		// Already committed; the grant holder must wait for RELEASE.
		return
	}

	var willLose bool
	if msg.Data != nil {
		competitor := types.Priority{Ts: msg.Data.Ts, Src: msg.Data.Src}
		own := types.Priority{Ts: p.req.outstandingTs, Src: p.id}
		willLose = competitor.Less(own)
	}

	if p.req.failed || p.req.yielded || willLose {
		p.sendLocked(types.Message{Kind: types.Yield, Dest: msg.Src})
		p.req.yielded = true
		delete(p.req.grantsReceived, msg.Src)
		p.bumpSent(types.Yield)
		return
	}

	p.arb.inquired[msg.Src] = msg.Priority()
}

// grantLocked sends a GRANT to the given requester and records it as
// this arbiter's sole outstanding vote. Caller holds p.mu.
func (p *Peer) grantLocked(requester types.Priority) {
	p.sendLocked(types.Message{Kind: types.Grant, Dest: requester.Src})
	g := requester
	p.arb.currentGrant = &g
	p.bumpSent(types.Grant)
}
