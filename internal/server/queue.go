// Package server implements the matchmaking queue: a strict-FIFO waiting
// list of connections looking for a peer.
package server

import "time"

type waitingEntry struct {
	connID     string
	enqueuedAt time.Time
}

// MatchQueue is the ordered waiting list consumed by the session supervisor.
// Like the registry, it is mutated only from the supervisor's event loop;
// DequeuePair removes both entries within one loop iteration, so no other
// event can ever observe a half-dequeued pair.
//
// Re-queued connections go to the back, discarding their original wait time.
// That matches the behavior this server replaces; seniority is deliberately
// not preserved.
type MatchQueue struct {
	entries []waitingEntry
	queued  map[string]struct{}
}

// NewMatchQueue creates an empty matchmaking queue.
func NewMatchQueue() *MatchQueue {
	return &MatchQueue{queued: make(map[string]struct{})}
}

// Enqueue appends the connection to the back of the queue. It is idempotent:
// an already-queued id is left where it is and false is returned.
func (q *MatchQueue) Enqueue(connID string) bool {
	if _, ok := q.queued[connID]; ok {
		return false
	}
	q.entries = append(q.entries, waitingEntry{connID: connID, enqueuedAt: time.Now()})
	q.queued[connID] = struct{}{}
	return true
}

// DequeuePair removes and returns the two longest-waiting connections. It
// only yields a pair when at least two entries exist; insertion order breaks
// enqueue-time ties.
func (q *MatchQueue) DequeuePair() (first, second string, ok bool) {
	if len(q.entries) < 2 {
		return "", "", false
	}
	first = q.entries[0].connID
	second = q.entries[1].connID
	q.entries = q.entries[2:]
	delete(q.queued, first)
	delete(q.queued, second)
	return first, second, true
}

// Remove deletes the connection from the queue wherever it sits, preserving
// the order of everyone else. Unknown ids are a no-op.
func (q *MatchQueue) Remove(connID string) bool {
	if _, ok := q.queued[connID]; !ok {
		return false
	}
	delete(q.queued, connID)
	for i, entry := range q.entries {
		if entry.connID == connID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether the connection is currently waiting.
func (q *MatchQueue) Contains(connID string) bool {
	_, ok := q.queued[connID]
	return ok
}

// Len reports the number of waiting connections.
func (q *MatchQueue) Len() int {
	return len(q.entries)
}
