// Package store provides state-store implementations of
// internal/core/port/out/store.Port: an in-process map (MemoryStore) and
// a durable mirror on top of it (SQLiteLog).
package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
	storeport "github.com/azrael-sim/azrael/internal/core/port/out/store"
)

// MemoryStore is an in-process, concurrency-safe implementation of
// storeport.Port backed by a map guarded by a single RWMutex. Readers
// get a point-in-time snapshot per call; CAS enforces single-writer-wins
// semantics (spec.md §4.1).
type MemoryStore struct {
	mu      sync.RWMutex
	bodies  map[entity.BodyID]entity.Body
	nextID  atomic.Uint64

	subMu sync.Mutex
	subs  []chan storeport.VersionEvent
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bodies: make(map[entity.BodyID]entity.Body)}
}

// Seed installs a pre-existing set of bodies and primes the id
// allocator past the highest id present (used when resuming from a
// persisted log on orchestrator restart).
func (s *MemoryStore) Seed(bodies map[entity.BodyID]entity.Body) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var maxID entity.BodyID
	for id, b := range bodies {
		s.bodies[id] = b
		if id > maxID {
			maxID = id
		}
	}
	if cur := s.nextID.Load(); uint64(maxID) >= cur {
		s.nextID.Store(uint64(maxID) + 1)
	}
}

func (s *MemoryStore) Get(_ context.Context, ids []entity.BodyID) (map[entity.BodyID]entity.Body, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[entity.BodyID]entity.Body, len(ids))
	for _, id := range ids {
		if b, ok := s.bodies[id]; ok {
			out[id] = b.Clone()
		}
	}
	return out, nil
}

func (s *MemoryStore) GetAll(_ context.Context) (map[entity.BodyID]entity.Body, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[entity.BodyID]entity.Body, len(s.bodies))
	for id, b := range s.bodies {
		out[id] = b.Clone()
	}
	return out, nil
}

func (s *MemoryStore) CommitBatch(_ context.Context, writes map[entity.BodyID]entity.Body, expected map[entity.BodyID]uint64) (storeport.CommitResult, error) {
	s.mu.Lock()
	var result storeport.CommitResult
	var events []storeport.VersionEvent
	for id, write := range writes {
		current, exists := s.bodies[id]
		expectedVersion := expected[id]
		if exists && current.Version != expectedVersion {
			result.Conflicted = append(result.Conflicted, id)
			continue
		}
		if !exists && expectedVersion != 0 {
			result.Conflicted = append(result.Conflicted, id)
			continue
		}
		write.Version = expectedVersion + 1
		write.RecomputeAABB()
		s.bodies[id] = write
		result.Committed = append(result.Committed, id)
		events = append(events, storeport.VersionEvent{BodyID: id, Version: write.Version})
	}
	s.mu.Unlock()

	s.publish(events)
	return result, nil
}

func (s *MemoryStore) Add(_ context.Context, body entity.Body) (entity.BodyID, error) {
	id := entity.BodyID(s.nextID.Add(1))
	body.ID = id
	body.Version = 1
	body.RecomputeAABB()

	s.mu.Lock()
	s.bodies[id] = body
	s.mu.Unlock()

	s.publish([]storeport.VersionEvent{{BodyID: id, Version: body.Version}})
	return id, nil
}

func (s *MemoryStore) Remove(_ context.Context, ids []entity.BodyID) error {
	s.mu.Lock()
	for _, id := range ids {
		delete(s.bodies, id)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan storeport.VersionEvent, error) {
	ch := make(chan storeport.VersionEvent, 64)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, c := range s.subs {
			if c == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func (s *MemoryStore) publish(events []storeport.VersionEvent) {
	if len(events) == 0 {
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ev := range events {
		for _, ch := range s.subs {
			select {
			case ch <- ev:
			default:
				// A slow subscriber drops events rather than stalling
				// the store; the change feed is informational only.
			}
		}
	}
}
