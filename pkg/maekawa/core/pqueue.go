package core

import (
	"container/heap"

	"github.com/jabolina/maekawa/pkg/maekawa/types"
)

// pendingQueue is the arbiter's priority-ordered collection of
// waiting requesters. It is built on container/heap the way
// yarpc-yarpc-go's peer/pendingheap package orders peers by score;
// here the ordering key is types.Priority instead of a load score,
// and duplicate sources are rejected rather than reweighted.
type pendingQueue struct {
	items pqItems
	index map[types.PeerID]int
}

type pqItem struct {
	priority types.Priority
}

type pqItems []pqItem

func (q pqItems) Len() int { return len(q) }
func (q pqItems) Less(i, j int) bool {
	return q[i].priority.Less(q[j].priority)
}
func (q pqItems) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
}
func (q *pqItems) Push(x interface{}) {
	*q = append(*q, x.(pqItem))
}
func (q *pqItems) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{
		index: make(map[types.PeerID]int),
	}
}

// Contains reports whether src already has an entry pending.
func (q *pendingQueue) Contains(src types.PeerID) bool {
	_, ok := q.index[src]
	return ok
}

// Insert adds p to the queue. Duplicates for the same src are not
// allowed; a repeated insert for a src already pending is a no-op so
// replaying a REQUEST is idempotent.
func (q *pendingQueue) Insert(p types.Priority) {
	if q.Contains(p.Src) {
		return
	}
	heap.Push(&q.items, pqItem{priority: p})
	q.reindex()
}

// Remove drops any entry for src, reporting whether one existed.
func (q *pendingQueue) Remove(src types.PeerID) bool {
	pos, ok := q.index[src]
	if !ok {
		return false
	}
	heap.Remove(&q.items, pos)
	q.reindex()
	return true
}

// Empty reports whether the queue holds no entries.
func (q *pendingQueue) Empty() bool {
	return len(q.items) == 0
}

// PopMin removes and returns the highest-priority (lowest ts, then
// lowest src) entry.
func (q *pendingQueue) PopMin() (types.Priority, bool) {
	if q.Empty() {
		return types.Priority{}, false
	}
	item := heap.Pop(&q.items).(pqItem)
	q.reindex()
	return item.priority, true
}

// Len reports the number of pending entries.
func (q *pendingQueue) Len() int {
	return len(q.items)
}

// reindex rebuilds the src->position map after a heap mutation, since
// container/heap does not report which positions moved.
func (q *pendingQueue) reindex() {
	for k := range q.index {
		delete(q.index, k)
	}
	for i, it := range q.items {
		q.index[it.priority.Src] = i
	}
}
