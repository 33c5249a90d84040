package transport

import "context"

// DefaultQueueSize is the outbound queue capacity used by the adapters.
const DefaultQueueSize = 64

type queueItem struct {
	data []byte
	done chan error
}

// Queue is a FIFO write queue with exactly one write in flight. Concurrent
// writes to a single GATT characteristic (or interleaved serial writes) are a
// known source of "operation already in progress" transport failures; every
// adapter funnels its writes through one Queue instead.
type Queue struct {
	inbox chan queueItem
}

// NewQueue creates a queue with the given capacity (DefaultQueueSize if <= 0).
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Queue{inbox: make(chan queueItem, capacity)}
}

// Send enqueues data and blocks until the drain loop has written it (or ctx
// is cancelled). The returned error is the write's outcome, giving each
// caller a completion signal per enqueued item.
func (q *Queue) Send(ctx context.Context, data []byte) error {
	it := queueItem{data: data, done: make(chan error, 1)}
	select {
	case q.inbox <- it:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-it.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain is the single-writer loop. It applies write to each queued item in
// FIFO order, one at a time, and exits when ctx is cancelled.
func (q *Queue) Drain(ctx context.Context, write func([]byte) error) {
	for {
		select {
		case it := <-q.inbox:
			it.done <- write(it.data)
		case <-ctx.Done():
			return
		}
	}
}
