// Package worker defines the orchestrator's view of the rigid-body
// worker pool: a fleet of stateless request/reply endpoints, one
// request simulating one island for one time step.
package worker

import (
	"context"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
)

// ExternalForce is the aggregated {force, torque} the orchestrator
// computed for one body in Phase C.
type ExternalForce struct {
	Force  [3]float64
	Torque [3]float64
}

// IslandRequest is one unit of dispatch: simulate this island for one
// step of dt, subdivided into at most maxSubSteps internal sub-steps.
type IslandRequest struct {
	IslandID       uint64
	TickNonce      string
	Dt          float64
	MaxSubSteps int
	// Bodies carries the full per-body snapshot (shape, pose, velocity,
	// mass parameters, version) exactly as stored; boosters are not
	// read by the worker.
	Bodies         []entity.Body
	ExternalForces map[entity.BodyID]ExternalForce
}

// BodyUpdate is one body's post-step state. Version echoes the
// request's baseline version for that body; the orchestrator uses it as
// the CAS expected-version on commit.
type BodyUpdate struct {
	ID          entity.BodyID
	Version     uint64
	Position    [3]float64
	Orientation [4]float64 // x,y,z,w
	VLin        [3]float64
	VAng        [3]float64
}

// IslandReply is the result of simulating one island for one step.
type IslandReply struct {
	IslandID  uint64
	TickNonce string
	Bodies    []BodyUpdate
	Contacts  []entity.ContactPair
}

// Pool is the orchestrator's view of the worker fleet: a single async
// endpoint, as required by spec.md §4.4. Submit returns a channel that
// receives exactly one reply (or is closed without a value on
// cancellation/timeout).
type Pool interface {
	Submit(ctx context.Context, req IslandRequest) (<-chan IslandReply, error)
	Close() error
}
