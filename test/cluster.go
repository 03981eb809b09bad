// Package test provides helpers for assembling a full in-process
// deployment of peers over real loopback TCP sockets, for use by
// integration tests that need more than one peer wired together.
package test

import (
	"fmt"
	"time"

	"github.com/jabolina/maekawa/pkg/maekawa/core"
	"github.com/jabolina/maekawa/pkg/maekawa/definition"
	"github.com/jabolina/maekawa/pkg/maekawa/types"
)

// Cluster is a deployment of n peers dialed together over loopback TCP.
type Cluster struct {
	Peers []*core.Peer

	transports []*core.TCPTransport
}

// NewCluster builds and wires n peers starting at basePort, each with
// its own Maekawa quorum and a shared Barrier so callers can wait for
// every peer to finish its iterations.
func NewCluster(n, basePort int) (*Cluster, error) {
	logger := definition.NewDefaultLogger()
	barrier := core.NewBarrier(n)

	c := &Cluster{
		Peers:      make([]*core.Peer, n),
		transports: make([]*core.TCPTransport, n),
	}

	for i := 0; i < n; i++ {
		id := types.PeerID(i)
		tr, err := core.NewTCPTransport(id, n, basePort, logger.WithPeer(id), 10*time.Second)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("cluster: peer %d failed to bootstrap: %w", i, err)
		}
		c.transports[i] = tr

		c.Peers[i] = core.NewPeer(core.Config{
			ID:        id,
			N:         n,
			Quorum:    core.Quorum(n, i),
			Clock:     core.NewLogicalClock(),
			Transport: tr,
			Logger:    logger.WithPeer(id),
			Barrier:   barrier,
		})
	}

	return c, nil
}

// Close stops every peer and tears down its transport.
func (c *Cluster) Close() {
	for _, p := range c.Peers {
		if p != nil {
			p.Stop()
		}
	}
}
