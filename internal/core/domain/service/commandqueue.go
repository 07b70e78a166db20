package service

import (
	"fmt"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
)

// CommandQueue is a bounded multi-producer single-consumer queue:
// façade handlers enqueue entity.Command values wrapped in an Envelope,
// the orchestrator is the sole consumer and drains it at the start of
// every tick (spec.md §4.2).
type CommandQueue struct {
	ch chan entity.Envelope
}

// NewCommandQueue returns a queue with the given bounded capacity.
func NewCommandQueue(capacity int) *CommandQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &CommandQueue{ch: make(chan entity.Envelope, capacity)}
}

// Enqueue submits cmd and returns a reply channel the caller can block
// on for the synchronous result. It never blocks: when the queue is
// full it returns ErrBackpressure immediately (spec.md §4.2 overflow
// policy).
func (q *CommandQueue) Enqueue(cmd entity.Command) (<-chan entity.Result, error) {
	env := entity.Envelope{Command: cmd, Reply: make(chan entity.Result, 1)}
	select {
	case q.ch <- env:
		return env.Reply, nil
	default:
		return nil, fmt.Errorf("%w", entity.ErrBackpressure)
	}
}

// DrainAll removes every envelope currently queued, without blocking,
// preserving arrival order. Called once at the start of each tick's
// Phase A; anything enqueued after this call is observed no earlier
// than the next tick (spec.md §5).
func (q *CommandQueue) DrainAll() []entity.Envelope {
	var envs []entity.Envelope
	for {
		select {
		case env := <-q.ch:
			envs = append(envs, env)
		default:
			return envs
		}
	}
}

// Len reports the number of envelopes currently buffered (diagnostic
// only).
func (q *CommandQueue) Len() int {
	return len(q.ch)
}
