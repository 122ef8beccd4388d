package voting

import (
	"sync"

	"github.com/aragon/zkvote-node/types"
	"github.com/ethereum/go-ethereum/event"
)

// eventQueue buffers the announcements of the Manager and delivers them to
// the feed from its own goroutine, in push order. push never blocks, so a
// slow subscriber only delays its own deliveries.
type eventQueue struct {
	feed *event.Feed

	mu      sync.Mutex
	pending []types.Event

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func newEventQueue(feed *event.Feed) *eventQueue {
	q := &eventQueue{
		feed: feed,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *eventQueue) push(e types.Event) {
	q.mu.Lock()
	q.pending = append(q.pending, e)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) loop() {
	defer close(q.done)
	for {
		select {
		case <-q.quit:
			return
		case <-q.wake:
		}

		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, e := range batch {
			q.feed.Send(e)
		}
	}
}

// stop ends the delivery loop. A Send blocked on a subscriber must be
// released by unsubscribing it before calling stop.
func (q *eventQueue) stop() {
	close(q.quit)
	<-q.done
}
