package checker

import "sync"

// queueNode is a singly-linked pending-state entry.
type queueNode struct {
	s    *State
	next *queueNode
}

// queue is one worker's pending-state list, guarded by its own mutex. A
// property the explorer maintains is that every queued state has already
// been admitted to the seen set.
type queue struct {
	mu    sync.Mutex
	head  *queueNode
	count int
}

// Queues is the set of per-worker queues. Dequeueing steals from the next
// queue round-robin when the caller's own queue is empty.
type Queues struct {
	qs []queue
}

// NewQueues creates one queue per worker.
func NewQueues(workers int) *Queues {
	return &Queues{qs: make([]queue, workers)}
}

// Enqueue prepends s to the given queue and returns the queue's new
// length.
func (q *Queues) Enqueue(s *State, queueID int) int {
	target := &q.qs[queueID]
	target.mu.Lock()
	target.head = &queueNode{s: s, next: target.head}
	target.count++
	n := target.count
	target.mu.Unlock()
	return n
}

// Dequeue pops a state, preferring the caller's queue and then trying each
// other queue once. The queue actually used is written back through
// queueID so the caller keeps draining where work was found. Returns nil
// when every queue came up empty.
func (q *Queues) Dequeue(queueID *int) *State {
	for attempts := 0; attempts < len(q.qs); attempts++ {
		target := &q.qs[*queueID]

		target.mu.Lock()
		n := target.head
		if n != nil {
			target.head = n.next
			target.count--
		}
		target.mu.Unlock()

		if n != nil {
			return n.s
		}

		*queueID = (*queueID + 1) % len(q.qs)
	}
	return nil
}

// Count returns the current length of one queue.
func (q *Queues) Count(queueID int) int {
	target := &q.qs[queueID]
	target.mu.Lock()
	n := target.count
	target.mu.Unlock()
	return n
}
