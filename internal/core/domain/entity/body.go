package entity

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyID identifies a rigid body. Zero is never a valid id.
type BodyID uint64

// QuaternionRenormEps is the default drift tolerance before a committed
// orientation is renormalized. Configurable via internal/config.
const QuaternionRenormEps = 1e-6

// Booster is a fixed-direction, fixed-position force actuator. Force is
// the only field commands are allowed to mutate after spawn.
type Booster struct {
	Position  mgl64.Vec3 // local to the body
	Direction mgl64.Vec3 // unit length, local to the body
	Force     float64
}

// WorldPosition returns the booster's application point in world space.
func (b Booster) WorldPosition(bodyPos mgl64.Vec3, bodyOrient mgl64.Quat) mgl64.Vec3 {
	return bodyPos.Add(bodyOrient.Rotate(b.Position))
}

// WorldForce returns the booster's force vector in world space.
func (b Booster) WorldForce(bodyOrient mgl64.Quat) mgl64.Vec3 {
	return bodyOrient.Rotate(b.Direction).Mul(b.Force)
}

// Body is a simulated rigid object: pose, velocity, mass parameters,
// collision shape, and actuators, plus the version used for optimistic
// concurrency.
type Body struct {
	ID BodyID

	Position    mgl64.Vec3
	Orientation mgl64.Quat

	VLin mgl64.Vec3
	VAng mgl64.Vec3

	InvMass         float64
	Restitution     float64
	Friction        float64
	LinearDamping   float64
	AngularDamping  float64

	Shape Shape
	Scale float64

	Boosters []Booster

	Version uint64

	AABB AABB

	// Sleeping is set by Phase G once velocity has stayed under
	// threshold for N_sleep consecutive ticks; cleared by any command
	// or successful contact.
	Sleeping        bool
	SleepTickStreak int

	// Tombstoned marks a body removed this tick; it is kept for one
	// more tick so in-flight worker replies referencing it can be
	// discarded cleanly, then physically deleted from the store.
	Tombstoned bool
}

// Clone returns a deep, independent copy suitable for handing to a
// caller as an immutable snapshot (spec.md §9: callers must never see
// or mutate the store's internal record through a Get result).
func (b Body) Clone() Body {
	clone := b
	clone.Boosters = append([]Booster(nil), b.Boosters...)
	clone.Shape = cloneShape(b.Shape)
	return clone
}

func cloneShape(s Shape) Shape {
	switch sh := s.(type) {
	case Compound:
		children := make([]CompoundChild, len(sh.Children))
		for i, c := range sh.Children {
			c.Shape = cloneShape(c.Shape)
			children[i] = c
		}
		return Compound{Children: children}
	default:
		// Sphere, Box, StaticPlane, Empty are plain value types with no
		// shared mutable state.
		return s
	}
}

// IsStatic reports whether the body's pose can only ever change through
// a direct command (InvMass == 0); the solver must never move it.
func (b Body) IsStatic() bool {
	return b.InvMass == 0
}

// RecomputeAABB refreshes b.AABB from the current pose, shape and scale.
func (b *Body) RecomputeAABB() {
	b.AABB = WorldAABB(b.Shape, b.Position, b.Orientation, b.Scale)
}

// RenormalizeOrientation renormalizes b.Orientation in place if its norm
// has drifted from 1 by more than eps. Returns whether it renormalized.
func (b *Body) RenormalizeOrientation(eps float64) bool {
	n := b.Orientation.Len()
	if math.Abs(n-1) <= eps {
		return false
	}
	if n == 0 {
		b.Orientation = mgl64.QuatIdent()
		return true
	}
	b.Orientation = mgl64.Quat{W: b.Orientation.W / n, V: b.Orientation.V.Mul(1 / n)}
	return true
}

// ContactPair is a transient per-tick record of a single contact point
// produced by the solver; never persisted across ticks.
type ContactPair struct {
	A, B             BodyID // A < B
	PointOnA         mgl64.Vec3
	PointOnB         mgl64.Vec3
	NormalOnB        mgl64.Vec3
}

// Island is a transient per-tick set of body ids that may interact this
// step; constructed and discarded within a single tick.
type Island struct {
	ID      uint64
	Bodies  []BodyID
	// StaticOnly marks bodies included read-only because they are a
	// static (InvMass==0) collision partner of the island's members (the
	// same static may be attached to several islands); their post-tick
	// update is the identity.
	StaticOnly map[BodyID]bool
}
