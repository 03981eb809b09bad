package core

import (
	"testing"

	"github.com/jabolina/maekawa/pkg/maekawa/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingQueue_PopMinOrdering(t *testing.T) {
	q := newPendingQueue()
	q.Insert(types.Priority{Ts: 5, Src: 1})
	q.Insert(types.Priority{Ts: 2, Src: 3})
	q.Insert(types.Priority{Ts: 2, Src: 0})
	q.Insert(types.Priority{Ts: 9, Src: 2})

	first, ok := q.PopMin()
	require.True(t, ok)
	assert.Equal(t, types.Priority{Ts: 2, Src: 0}, first)

	second, ok := q.PopMin()
	require.True(t, ok)
	assert.Equal(t, types.Priority{Ts: 2, Src: 3}, second)

	third, ok := q.PopMin()
	require.True(t, ok)
	assert.Equal(t, types.Priority{Ts: 5, Src: 1}, third)

	fourth, ok := q.PopMin()
	require.True(t, ok)
	assert.Equal(t, types.Priority{Ts: 9, Src: 2}, fourth)

	assert.True(t, q.Empty())
	_, ok = q.PopMin()
	assert.False(t, ok)
}

func TestPendingQueue_InsertIsIdempotentPerSrc(t *testing.T) {
	q := newPendingQueue()
	q.Insert(types.Priority{Ts: 1, Src: 4})
	q.Insert(types.Priority{Ts: 99, Src: 4})

	assert.Equal(t, 1, q.Len())
	got, ok := q.PopMin()
	require.True(t, ok)
	assert.Equal(t, types.Timestamp(1), got.Ts)
}

func TestPendingQueue_Remove(t *testing.T) {
	q := newPendingQueue()
	q.Insert(types.Priority{Ts: 1, Src: 0})
	q.Insert(types.Priority{Ts: 2, Src: 1})
	q.Insert(types.Priority{Ts: 3, Src: 2})

	assert.True(t, q.Remove(1))
	assert.False(t, q.Contains(1))
	assert.Equal(t, 2, q.Len())

	assert.False(t, q.Remove(1))

	got, ok := q.PopMin()
	require.True(t, ok)
	assert.Equal(t, types.PeerID(0), got.Src)
}

func TestPendingQueue_Contains(t *testing.T) {
	q := newPendingQueue()
	assert.False(t, q.Contains(7))
	q.Insert(types.Priority{Ts: 1, Src: 7})
	assert.True(t, q.Contains(7))
}
