package playlist

import (
	"sync"
	"time"

	"pirateradio/internal/eventbus"
)

// Queue is the ordered FIFO of ready-to-play segments.
//
// Discipline:
//   - Any number of producers may Enqueue concurrently.
//   - Exactly one consumer (the broadcast loop) calls Pop.
//   - Emptiness is a normal state, never an error; Pop never blocks.
//
// The queue has no capacity ceiling; the scheduler enforces a soft floor
// instead (see the refill rule).
type Queue struct {
	mu   sync.Mutex
	segs []*Segment

	bus eventbus.Bus
}

func NewQueue(bus eventbus.Bus) *Queue {
	return &Queue{bus: bus}
}

// Enqueue appends unconditionally: no deduplication, no capacity rejection.
func (q *Queue) Enqueue(seg *Segment) {
	if seg == nil {
		return
	}
	q.mu.Lock()
	q.segs = append(q.segs, seg)
	n := len(q.segs)
	q.mu.Unlock()

	if q.bus != nil {
		q.bus.Publish(eventbus.Event{
			Type: eventbus.EventSegmentEnqueued,
			Time: time.Now(),
			Data: EnqueueEvent{ID: seg.ID, Kind: seg.Kind, Title: seg.Title, Depth: n},
		})
	}
}

// Pop removes and returns the head, or ok=false when the queue is empty.
func (q *Queue) Pop() (*Segment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.segs) == 0 {
		return nil, false
	}
	seg := q.segs[0]
	// Avoid retaining the popped element through the backing array.
	q.segs[0] = nil
	q.segs = q.segs[1:]
	return seg, true
}

// Len returns the current depth, used for refill decisions and /status.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.segs)
}

// Peek returns the head without removing it, or nil when empty.
func (q *Queue) Peek() *Segment {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.segs) == 0 {
		return nil
	}
	return q.segs[0]
}

// EnqueueEvent is published on the bus for every appended segment.
type EnqueueEvent struct {
	ID    string `json:"id"`
	Kind  Kind   `json:"kind"`
	Title string `json:"title,omitempty"`
	Depth int    `json:"depth"`
}
