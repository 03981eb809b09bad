package core

import (
	"testing"

	"github.com/jabolina/maekawa/pkg/maekawa/types"
	"github.com/stretchr/testify/assert"
)

func TestLogicalClock_TickMonotonic(t *testing.T) {
	c := NewLogicalClock()
	assert.Equal(t, types.Timestamp(1), c.Tick())
	assert.Equal(t, types.Timestamp(2), c.Tick())
	assert.Equal(t, types.Timestamp(2), c.Current())
}

func TestLogicalClock_ObserveTakesMax(t *testing.T) {
	c := NewLogicalClock()
	c.Tick() // 1
	c.Tick() // 2

	got := c.Observe(10)
	assert.Equal(t, types.Timestamp(11), got)

	got = c.Observe(3)
	assert.Equal(t, types.Timestamp(12), got)
}
