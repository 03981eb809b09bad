package core

import (
	"sync"

	"github.com/jabolina/maekawa/pkg/maekawa/types"
)

// LogicalClock is a Lamport logical clock shared by a peer's arbiter
// and requester roles. Both roles update it through the same
// instance, so every timestamp this peer assigns is strictly greater
// than any it has previously sent or observed.
type LogicalClock interface {
	// Tick advances the clock by one and returns the new value. Used
	// when sending a fresh message that does not need to witness any
	// incoming timestamp.
	Tick() types.Timestamp

	// Observe updates the clock from a received timestamp and returns
	// the new value: local <- max(local, observed) + 1. Called exactly
	// once per inbound message, regardless of its kind.
	Observe(observed types.Timestamp) types.Timestamp

	// Current returns the clock's value without advancing it.
	Current() types.Timestamp
}

type lamportClock struct {
	mutex sync.Mutex
	value types.Timestamp
}

// NewLogicalClock returns a LogicalClock starting at zero.
func NewLogicalClock() LogicalClock {
	return &lamportClock{}
}

func (c *lamportClock) Tick() types.Timestamp {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.value++
	return c.value
}

func (c *lamportClock) Observe(observed types.Timestamp) types.Timestamp {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if observed > c.value {
		c.value = observed
	}
	c.value++
	return c.value
}

func (c *lamportClock) Current() types.Timestamp {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.value
}
