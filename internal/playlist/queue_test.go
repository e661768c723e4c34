package playlist

import (
	"fmt"
	"sync"
	"testing"

	"pirateradio/internal/eventbus"
)

func TestQueueFIFOOrder(t *testing.T) {
	t.Parallel()

	q := NewQueue(nil)
	for i := 0; i < 10; i++ {
		q.Enqueue(&Segment{ID: fmt.Sprintf("seg-%d", i), Kind: KindMusic})
	}
	if got := q.Len(); got != 10 {
		t.Fatalf("Len = %d, want 10", got)
	}
	for i := 0; i < 10; i++ {
		seg, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop %d: queue unexpectedly empty", i)
		}
		if want := fmt.Sprintf("seg-%d", i); seg.ID != want {
			t.Fatalf("Pop %d: got %q, want %q", i, seg.ID, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on empty queue returned ok")
	}
}

func TestQueuePopEmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	q := NewQueue(nil)
	for i := 0; i < 3; i++ {
		if seg, ok := q.Pop(); ok || seg != nil {
			t.Fatalf("empty Pop returned (%v, %v)", seg, ok)
		}
	}
	// Still usable after draining attempts.
	q.Enqueue(&Segment{ID: "a"})
	if seg, ok := q.Pop(); !ok || seg.ID != "a" {
		t.Fatalf("Pop after empty = (%v, %v)", seg, ok)
	}
}

func TestQueueConcurrentEnqueue(t *testing.T) {
	t.Parallel()

	const producers = 8
	const perProducer = 50

	q := NewQueue(nil)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(&Segment{ID: fmt.Sprintf("p%d-%d", p, i)})
			}
		}(p)
	}
	wg.Wait()

	if got := q.Len(); got != producers*perProducer {
		t.Fatalf("Len = %d, want %d", got, producers*perProducer)
	}

	// Every enqueued segment comes out exactly once.
	seen := map[string]bool{}
	for {
		seg, ok := q.Pop()
		if !ok {
			break
		}
		if seen[seg.ID] {
			t.Fatalf("segment %q popped twice", seg.ID)
		}
		seen[seg.ID] = true
	}
	if len(seen) != producers*perProducer {
		t.Fatalf("popped %d unique segments, want %d", len(seen), producers*perProducer)
	}
}

func TestQueuePublishesEnqueueEvents(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	q := NewQueue(bus)
	q.Enqueue(&Segment{ID: "x", Kind: KindNews, Title: "headlines"})

	ev := <-ch
	if ev.Type != eventbus.EventSegmentEnqueued {
		t.Fatalf("event type = %q", ev.Type)
	}
	data, ok := ev.Data.(EnqueueEvent)
	if !ok {
		t.Fatalf("event data type = %T", ev.Data)
	}
	if data.ID != "x" || data.Kind != KindNews || data.Depth != 1 {
		t.Fatalf("event data = %+v", data)
	}
}

func TestQueueIgnoresNil(t *testing.T) {
	t.Parallel()

	q := NewQueue(nil)
	q.Enqueue(nil)
	if got := q.Len(); got != 0 {
		t.Fatalf("Len after nil enqueue = %d", got)
	}
}
