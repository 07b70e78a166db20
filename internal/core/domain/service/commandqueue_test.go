package service

import (
	"errors"
	"testing"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
)

func TestCommandQueueEnqueueAndDrainPreservesOrder(t *testing.T) {
	q := NewCommandQueue(4)

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(entity.Command{Kind: entity.CommandSpawn, Template: "sphere", BodyID: entity.BodyID(i + 1)}); err != nil {
			t.Fatalf("unexpected error enqueuing: %v", err)
		}
	}

	envs := q.DrainAll()
	if len(envs) != 3 {
		t.Fatalf("expected 3 drained envelopes, got %d", len(envs))
	}
	for i, env := range envs {
		if env.Command.BodyID != entity.BodyID(i+1) {
			t.Fatalf("expected arrival order to be preserved, got body id %d at position %d", env.Command.BodyID, i)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue empty after drain, got len %d", q.Len())
	}
}

func TestCommandQueueBackpressure(t *testing.T) {
	q := NewCommandQueue(1)
	if _, err := q.Enqueue(entity.Command{}); err != nil {
		t.Fatalf("unexpected error filling queue: %v", err)
	}
	_, err := q.Enqueue(entity.Command{})
	if !errors.Is(err, entity.ErrBackpressure) {
		t.Fatalf("expected ErrBackpressure on a full queue, got %v", err)
	}
}

func TestCommandQueueDrainAllDoesNotBlockWhenEmpty(t *testing.T) {
	q := NewCommandQueue(4)
	envs := q.DrainAll()
	if envs != nil {
		t.Fatalf("expected nil envelopes from an empty queue, got %+v", envs)
	}
}

func TestCommandQueueZeroCapacityDefaults(t *testing.T) {
	q := NewCommandQueue(0)
	if cap(q.ch) != 256 {
		t.Fatalf("expected default capacity 256 for non-positive input, got %d", cap(q.ch))
	}
}
