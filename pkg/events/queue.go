package events

import "sync"

// queue is an unbounded FIFO between the socket reader and the dispatcher.
// The reader never blocks on it, so acks keep flowing while handlers run.
type queue struct {
	mu     sync.Mutex
	items  []Event
	closed bool
	signal chan struct{}
}

func newQueue(capacity int) *queue {
	return &queue{
		items:  make([]Event, 0, capacity),
		signal: make(chan struct{}, 1),
	}
}

func (q *queue) push(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, ev)
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// pop blocks until an event is available. It returns false once the queue
// is closed and drained.
func (q *queue) pop() (Event, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items[0] = Event{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, true
		}
		if q.closed {
			q.mu.Unlock()
			return Event{}, false
		}
		q.mu.Unlock()
		<-q.signal
	}
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.signal)
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
