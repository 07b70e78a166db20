package store

import (
	"context"
	"testing"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
)

func TestMemoryStoreAddAssignsVersionOne(t *testing.T) {
	s := NewMemoryStore()
	id, err := s.Add(context.Background(), entity.Body{Shape: entity.Sphere{Radius: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := s.Get(context.Background(), []entity.BodyID{id})
	if got[id].Version != 1 {
		t.Fatalf("expected version 1 on first add, got %d", got[id].Version)
	}
}

func TestMemoryStoreCommitBatchCASSuccess(t *testing.T) {
	s := NewMemoryStore()
	id, _ := s.Add(context.Background(), entity.Body{Shape: entity.Sphere{Radius: 1}})

	result, err := s.CommitBatch(context.Background(),
		map[entity.BodyID]entity.Body{id: {Shape: entity.Sphere{Radius: 1}}},
		map[entity.BodyID]uint64{id: 1},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Committed) != 1 || len(result.Conflicted) != 0 {
		t.Fatalf("expected a clean commit, got %+v", result)
	}

	got, _ := s.Get(context.Background(), []entity.BodyID{id})
	if got[id].Version != 2 {
		t.Fatalf("expected version to advance to 2, got %d", got[id].Version)
	}
}

func TestMemoryStoreCommitBatchCASConflict(t *testing.T) {
	s := NewMemoryStore()
	id, _ := s.Add(context.Background(), entity.Body{Shape: entity.Sphere{Radius: 1}})

	// Stale expected version (0 instead of the real 1) must conflict.
	result, err := s.CommitBatch(context.Background(),
		map[entity.BodyID]entity.Body{id: {Shape: entity.Sphere{Radius: 1}}},
		map[entity.BodyID]uint64{id: 0},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Conflicted) != 1 || len(result.Committed) != 0 {
		t.Fatalf("expected a CAS conflict, got %+v", result)
	}
}

func TestMemoryStoreGetReturnsDefensiveCopy(t *testing.T) {
	s := NewMemoryStore()
	id, _ := s.Add(context.Background(), entity.Body{Boosters: []entity.Booster{{Force: 1}}})

	got, _ := s.Get(context.Background(), []entity.BodyID{id})
	snapshot := got[id]
	snapshot.Boosters[0].Force = 999

	gotAgain, _ := s.Get(context.Background(), []entity.BodyID{id})
	if gotAgain[id].Boosters[0].Force == 999 {
		t.Fatalf("mutating a Get() result leaked into the store's internal state")
	}
}

func TestMemoryStoreRemoveDeletes(t *testing.T) {
	s := NewMemoryStore()
	id, _ := s.Add(context.Background(), entity.Body{})

	if err := s.Remove(context.Background(), []entity.BodyID{id}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := s.Get(context.Background(), []entity.BodyID{id})
	if _, ok := got[id]; ok {
		t.Fatalf("expected body to be gone after Remove")
	}
}

func TestMemoryStoreSeedPrimesIDAllocator(t *testing.T) {
	s := NewMemoryStore()
	s.Seed(map[entity.BodyID]entity.Body{42: {ID: 42, Version: 1}})

	newID, _ := s.Add(context.Background(), entity.Body{})
	if newID <= 42 {
		t.Fatalf("expected a fresh id greater than the seeded max, got %d", newID)
	}
}

func TestMemoryStoreSubscribePublishesOnAdd(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, _ := s.Add(context.Background(), entity.Body{})

	select {
	case ev := <-ch:
		if ev.BodyID != id || ev.Version != 1 {
			t.Fatalf("unexpected version event: %+v", ev)
		}
	default:
		t.Fatalf("expected a version event to be published synchronously")
	}
}
