// Package bus carries progress events from a pipeline invocation to the
// HTTP writer.
package bus

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"
)

// capacity bounds the number of queued events per invocation.
const capacity = 64

// ErrTimeout is returned by Next when no event arrives within the receive
// timeout; the consumer sends a heartbeat frame and keeps waiting.
var ErrTimeout = errors.New("no event within timeout")

// ErrClosed is returned by Next after the producer closed the bus and the
// queue drained.
var ErrClosed = errors.New("bus closed")

// Event is one progress message.
type Event struct {
	Name    string
	Payload map[string]any
}

// heartbeatClass events are droppable under backpressure and get padding
// on the wire.
func heartbeatClass(name string) bool {
	return name == "ping" || name == "heartbeat"
}

// Bus is a bounded single-producer single-consumer event queue.
type Bus struct {
	mu     sync.Mutex
	queue  []Event
	notify chan struct{}
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{notify: make(chan struct{}, 1)}
}

// Emit enqueues an event without blocking. When the buffer is full, the
// oldest heartbeat-class event is dropped to make room; state-change
// events are never dropped. After enqueueing, the scheduler is yielded
// once so the writer gets a chance to flush.
func (b *Bus) Emit(name string, payload map[string]any) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	if len(b.queue) >= capacity {
		if !b.dropOldestHeartbeat() && heartbeatClass(name) {
			// Full of state changes; an incoming heartbeat is the one
			// thing safe to discard.
			b.mu.Unlock()
			return
		}
	}

	b.queue = append(b.queue, Event{Name: name, Payload: payload})
	b.mu.Unlock()

	b.wake()
	runtime.Gosched()
}

// dropOldestHeartbeat removes the first heartbeat-class event from the
// queue. Caller holds the lock.
func (b *Bus) dropOldestHeartbeat() bool {
	for i, ev := range b.queue {
		if heartbeatClass(ev.Name) {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			return true
		}
	}
	return false
}

// Close marks the stream finished. Queued events remain readable; Next
// returns ErrClosed once they drain.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wake()
}

func (b *Bus) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Next returns the next event, waiting up to timeout. It returns
// ErrTimeout when the wait elapses and ErrClosed after Close once the
// queue is empty.
func (b *Bus) Next(ctx context.Context, timeout time.Duration) (Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			ev := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return ev, nil
		}
		closed := b.closed
		b.mu.Unlock()

		if closed {
			return Event{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-timer.C:
			return Event{}, ErrTimeout
		case <-b.notify:
		}
	}
}
