package audioio

import (
	"sync"
	"time"
)

// Queue is a bounded FIFO of audio chunks connecting a transport to the
// voice pipeline. When full, Push drops the oldest chunk so live audio
// keeps flowing at the cost of the stalest data. Receives never panic or
// throw; absence is reported through the ok return.
type Queue struct {
	mu sync.Mutex
	ch chan AudioChunk
}

// DefaultQueueSize bounds a queue at 100 chunks (~8 s of 80 ms frames).
const DefaultQueueSize = 100

// NewQueue creates a queue holding at most capacity chunks.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Queue{ch: make(chan AudioChunk, capacity)}
}

// Push enqueues a chunk, evicting the oldest entry if the queue is full.
// Returns true when an eviction happened.
func (q *Queue) Push(chunk AudioChunk) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case q.ch <- chunk:
		return false
	default:
	}
	// Full: evict one, then insert. Both selects are non-blocking because
	// pushes are serialized by the mutex.
	select {
	case <-q.ch:
		dropped = true
	default:
	}
	select {
	case q.ch <- chunk:
	default:
	}
	return dropped
}

// TryPop dequeues immediately, returning ok=false on an empty queue.
func (q *Queue) TryPop() (AudioChunk, bool) {
	select {
	case c := <-q.ch:
		return c, true
	default:
		return AudioChunk{}, false
	}
}

// PopWait dequeues, waiting up to timeout for a chunk to arrive.
func (q *Queue) PopWait(timeout time.Duration) (AudioChunk, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c := <-q.ch:
		return c, true
	case <-timer.C:
		return AudioChunk{}, false
	}
}

// Drain removes and returns everything currently queued.
func (q *Queue) Drain() []AudioChunk {
	var out []AudioChunk
	for {
		select {
		case c := <-q.ch:
			out = append(out, c)
		default:
			return out
		}
	}
}

// Len returns the number of queued chunks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
