package core

import (
	"context"
	"sync"
)

// FIFO linearizes work submitted through Do. Each call runs after every call
// that entered the queue before it, so per-client operations observe a strict
// serial order regardless of how many goroutines submit concurrently.
//
// The zero value is ready to use.
type FIFO struct {
	mu   sync.Mutex
	tail chan struct{}
}

// Do enqueues fn and blocks until it has run. If ctx is cancelled while the
// call waits for its turn, Do returns ctx.Err() without running fn; the slot
// is handed to the successor only after every predecessor finished, so
// cancellation never lets two entries overlap.
func (q *FIFO) Do(ctx context.Context, fn func() error) error {
	q.mu.Lock()
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// Keep the chain intact for successors.
			go func() {
				<-prev
				close(done)
			}()
			return ctx.Err()
		}
	}

	defer close(done)
	return fn()
}
