package room

import (
	"sync"

	"ws-class-server/pkg/types"
)

// WaitingQueue parks connections that asked to watch a class before the
// teacher started it.
type WaitingQueue struct {
	lock   sync.Mutex
	queues map[string][]types.ConnectionID
}

func NewWaitingQueue() *WaitingQueue {
	return &WaitingQueue{
		queues: make(map[string][]types.ConnectionID),
	}
}

// Join appends conn to the queue of classID. A connection already waiting
// for the class is not added twice.
func (q *WaitingQueue) Join(classID string, conn types.ConnectionID) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	for _, c := range q.queues[classID] {
		if c == conn {
			return false
		}
	}
	q.queues[classID] = append(q.queues[classID], conn)
	return true
}

// Drain removes and returns the queue for classID in arrival order.
func (q *WaitingQueue) Drain(classID string) []types.ConnectionID {
	q.lock.Lock()
	defer q.lock.Unlock()
	conns := q.queues[classID]
	delete(q.queues, classID)
	return conns
}

// Remove drops conn from every queue, deleting queues that become empty.
func (q *WaitingQueue) Remove(conn types.ConnectionID) {
	q.lock.Lock()
	defer q.lock.Unlock()
	for classID, conns := range q.queues {
		kept := conns[:0]
		for _, c := range conns {
			if c != conn {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			delete(q.queues, classID)
		} else {
			q.queues[classID] = kept
		}
	}
}

func (q *WaitingQueue) Waiting(classID string) []types.ConnectionID {
	q.lock.Lock()
	defer q.lock.Unlock()
	return append([]types.ConnectionID(nil), q.queues[classID]...)
}

func (q *WaitingQueue) Total() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	n := 0
	for _, conns := range q.queues {
		n += len(conns)
	}
	return n
}
