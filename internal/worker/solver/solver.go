// Package solver is the rigid-body worker's physics core: a pure-Go
// semi-implicit-Euler integrator with analytic contact resolution for
// sphere-sphere and sphere-plane pairs; Box and Compound bodies are
// treated as spheres of their boundingRadius.
// It operates only on the domain request/reply shapes in
// internal/core/port/out/worker so it can be unit tested without any
// transport involved.
package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
	"github.com/azrael-sim/azrael/internal/core/port/out/worker"
)

// boundingRadius returns the sphere of influence used for broad contact
// tests against non-sphere shapes the solver cannot yet resolve exactly
// (Box, Compound): the max extent from the body's origin, so no real
// overlap is ever missed even when the resolved response is approximate.
func boundingRadius(s entity.Shape) float64 {
	switch sh := s.(type) {
	case entity.Sphere:
		return sh.Radius
	case entity.Box:
		return sh.HalfExtents.Len()
	case entity.Compound:
		r := 0.0
		for _, c := range sh.Children {
			cr := boundingRadius(c.Shape) + c.LocalPosition.Len()
			if cr > r {
				r = cr
			}
		}
		return r
	default:
		return 0
	}
}

// particle is the integrator's working copy of one body: everything
// Step needs, mutable across sub-steps, converted back to a
// worker.BodyUpdate once at the end.
type particle struct {
	id          entity.BodyID
	version     uint64
	position    mgl64.Vec3
	orientation mgl64.Quat
	vLin        mgl64.Vec3
	vAng        mgl64.Vec3
	invMass     float64
	restitution float64
	friction    float64
	linDamping  float64
	angDamping  float64
	shape       entity.Shape
	scale       float64
	static      bool
	radius      float64
}

// Step simulates one island for req.Dt seconds, subdivided into at most
// req.MaxSubSteps equal sub-steps, and returns the post-step body
// updates plus any contacts resolved along the way.
//
// Integration is semi-implicit Euler: velocity is updated from the
// per-body external force/torque first, then position/orientation are
// advanced using the updated velocity, which is unconditionally stable
// for the restitution-based contact response used here (grounded on the
// free-flight and elastic-collision invariants in spec.md §8).
func Step(req worker.IslandRequest) worker.IslandReply {
	n := len(req.Bodies)
	particles := make([]*particle, n)
	byID := make(map[entity.BodyID]*particle, n)

	for i, b := range req.Bodies {
		p := &particle{
			id:          b.ID,
			version:     b.Version,
			position:    b.Position,
			orientation: b.Orientation,
			vLin:        b.VLin,
			vAng:        b.VAng,
			invMass:     b.InvMass,
			restitution: b.Restitution,
			friction:    b.Friction,
			linDamping:  b.LinearDamping,
			angDamping:  b.AngularDamping,
			shape:       b.Shape,
			scale:       b.Scale,
			static:      b.IsStatic(),
			radius:      boundingRadius(b.Shape) * maxComponent(b.Scale),
		}
		particles[i] = p
		byID[b.ID] = p
	}

	subSteps := req.MaxSubSteps
	if subSteps < 1 {
		subSteps = 1
	}
	dt := req.Dt / float64(subSteps)

	var contacts []entity.ContactPair
	for step := 0; step < subSteps; step++ {
		for _, p := range particles {
			if p.static {
				continue
			}
			f, ok := req.ExternalForces[p.id]
			if ok && p.invMass > 0 {
				force := mgl64.Vec3{f.Force[0], f.Force[1], f.Force[2]}
				torque := mgl64.Vec3{f.Torque[0], f.Torque[1], f.Torque[2]}
				p.vLin = p.vLin.Add(force.Mul(p.invMass * dt))
				p.vAng = p.vAng.Add(torque.Mul(p.invMass * dt))
			}
			if p.linDamping > 0 {
				p.vLin = p.vLin.Mul(math.Max(0, 1-p.linDamping*dt))
			}
			if p.angDamping > 0 {
				p.vAng = p.vAng.Mul(math.Max(0, 1-p.angDamping*dt))
			}

			p.position = p.position.Add(p.vLin.Mul(dt))
			p.orientation = integrateOrientation(p.orientation, p.vAng, dt)
		}

		contacts = append(contacts, resolveContacts(particles, byID)...)
	}

	updates := make([]worker.BodyUpdate, 0, n)
	for _, p := range particles {
		updates = append(updates, worker.BodyUpdate{
			ID:          p.id,
			Version:     p.version,
			Position:    [3]float64{p.position[0], p.position[1], p.position[2]},
			Orientation: [4]float64{p.orientation.V[0], p.orientation.V[1], p.orientation.V[2], p.orientation.W},
			VLin:        [3]float64{p.vLin[0], p.vLin[1], p.vLin[2]},
			VAng:        [3]float64{p.vAng[0], p.vAng[1], p.vAng[2]},
		})
	}

	return worker.IslandReply{
		IslandID:  req.IslandID,
		TickNonce: req.TickNonce,
		Bodies:    updates,
		Contacts:  contacts,
	}
}

func maxComponent(scale float64) float64 {
	if scale == 0 {
		return 1
	}
	return scale
}

// integrateOrientation advances q by the angular velocity omega over dt
// using the standard quaternion derivative q' = 0.5 * omega_quat * q,
// followed by renormalization (quaternion drift is expected between
// ticks and corrected by the orchestrator; the worker keeps its own
// copy close to unit length so repeated sub-steps don't compound error
// visibly within a single tick).
func integrateOrientation(q mgl64.Quat, omega mgl64.Vec3, dt float64) mgl64.Quat {
	if omega.Len() == 0 {
		return q
	}
	omegaQuat := mgl64.Quat{W: 0, V: omega}
	dq := omegaQuat.Mul(q)
	q = mgl64.Quat{
		W: q.W + 0.5*dt*dq.W,
		V: q.V.Add(dq.V.Mul(0.5 * dt)),
	}
	if n := q.Len(); n > 0 {
		q = mgl64.Quat{W: q.W / n, V: q.V.Mul(1 / n)}
	}
	return q
}

// resolveContacts performs O(n^2) pairwise contact detection within the
// island (Config.IslandSizeSoftCap only logs oversized islands; it does
// not bound them) and resolves each overlap with an impulse along the
// contact normal using the lower of the two bodies' restitution
// coefficients. Plane contacts also remove the fraction
// min(1, sqrt(frictionA*frictionB)) of the tangential velocity;
// sphere-sphere contacts apply no friction.
func resolveContacts(particles []*particle, byID map[entity.BodyID]*particle) []entity.ContactPair {
	var contacts []entity.ContactPair
	for i := 0; i < len(particles); i++ {
		for j := i + 1; j < len(particles); j++ {
			a, b := particles[i], particles[j]
			if a.static && b.static {
				continue
			}

			if plane, normal, depth, point, ok := planeContact(a, b); ok {
				resolvePlaneContact(planeBody(a, b), sphereBody(a, b, plane), normal, depth)
				contacts = append(contacts, contactPair(a, b, point, normal))
				continue
			}

			sNormal, sDepth, sPoint, sOk := sphereContact(a, b)
			if !sOk {
				continue
			}
			resolveSphereContact(a, b, sNormal, sDepth)
			contacts = append(contacts, contactPair(a, b, sPoint, sNormal))
		}
	}
	return contacts
}

func contactPair(a, b *particle, point, normal mgl64.Vec3) entity.ContactPair {
	lo, hi := a, b
	if hi.id < lo.id {
		lo, hi = hi, lo
	}
	return entity.ContactPair{A: lo.id, B: hi.id, PointOnA: point, PointOnB: point, NormalOnB: normal}
}

// planeContact reports whether exactly one of a/b is a StaticPlane and
// the sphere-radius'd other body penetrates it, returning the plane
// normal (pointing away from the plane, i.e. "normal on the non-plane
// body") and penetration depth.
func planeContact(a, b *particle) (planeSide int, normal mgl64.Vec3, depth float64, point mgl64.Vec3, ok bool) {
	ap, aIsPlane := a.shape.(entity.StaticPlane)
	bp, bIsPlane := b.shape.(entity.StaticPlane)
	if aIsPlane == bIsPlane {
		return 0, mgl64.Vec3{}, 0, mgl64.Vec3{}, false
	}
	var plane entity.StaticPlane
	var sphere *particle
	if aIsPlane {
		plane, sphere = ap, b
	} else {
		plane, sphere = bp, a
	}
	n := plane.Normal.Normalize()
	dist := sphere.position.Dot(n) - plane.Offset
	if dist >= sphere.radius {
		return 0, mgl64.Vec3{}, 0, mgl64.Vec3{}, false
	}
	depth = sphere.radius - dist
	point = sphere.position.Sub(n.Mul(sphere.radius))
	if aIsPlane {
		return 1, n, depth, point, true
	}
	return 2, n, depth, point, true
}

func planeBody(a, b *particle) *particle {
	if _, ok := a.shape.(entity.StaticPlane); ok {
		return a
	}
	return b
}

func sphereBody(a, b *particle, _ int) *particle {
	if _, ok := a.shape.(entity.StaticPlane); ok {
		return b
	}
	return a
}

// resolvePlaneContact pushes the moving body out of the plane and
// applies a restitution-based bounce along the plane normal, matching
// the "static-plane support" scenario in spec.md §8: a resting body's
// post-step vertical velocity stays within [-epsilon, Restitution *
// incoming].
func resolvePlaneContact(plane, sphere *particle, normalOnSphere mgl64.Vec3, depth float64) {
	if sphere.static {
		return
	}
	sphere.position = sphere.position.Add(normalOnSphere.Mul(depth))

	vn := sphere.vLin.Dot(normalOnSphere)
	if vn < 0 {
		restitution := math.Min(plane.restitution, sphere.restitution)
		sphere.vLin = sphere.vLin.Sub(normalOnSphere.Mul(vn * (1 + restitution)))
	}

	tangent := sphere.vLin.Sub(normalOnSphere.Mul(sphere.vLin.Dot(normalOnSphere)))
	if tLen := tangent.Len(); tLen > 1e-9 {
		friction := math.Sqrt(plane.friction * sphere.friction)
		sphere.vLin = sphere.vLin.Sub(tangent.Mul(math.Min(1, friction) * 1))
	}
}

// sphereContact reports overlap between two spherical bodies of
// boundingRadius each (an approximation for Box/Compound shapes; see
// boundingRadius), returning the contact normal pointing from a to b.
func sphereContact(a, b *particle) (normal mgl64.Vec3, depth float64, point mgl64.Vec3, ok bool) {
	delta := b.position.Sub(a.position)
	dist := delta.Len()
	minDist := a.radius + b.radius
	if dist >= minDist || minDist == 0 {
		return mgl64.Vec3{}, 0, mgl64.Vec3{}, false
	}
	if dist < 1e-9 {
		normal = mgl64.Vec3{0, 1, 0}
		dist = 0
	} else {
		normal = delta.Mul(1 / dist)
	}
	depth = minDist - dist
	point = a.position.Add(normal.Mul(a.radius))
	return normal, depth, point, true
}

// resolveSphereContact is a textbook elastic-collision impulse along the
// contact normal weighted by inverse mass, matching spec.md §8's
// velocity-swap invariant for two equal-mass bodies with restitution 1.
func resolveSphereContact(a, b *particle, normal mgl64.Vec3, depth float64) {
	invSum := a.invMass + b.invMass
	if invSum == 0 {
		return
	}
	if !a.static {
		a.position = a.position.Sub(normal.Mul(depth * (a.invMass / invSum)))
	}
	if !b.static {
		b.position = b.position.Add(normal.Mul(depth * (b.invMass / invSum)))
	}

	relVel := b.vLin.Sub(a.vLin)
	vn := relVel.Dot(normal)
	if vn >= 0 {
		return // separating already
	}

	restitution := math.Min(a.restitution, b.restitution)
	j := -(1 + restitution) * vn / invSum

	impulse := normal.Mul(j)
	if !a.static {
		a.vLin = a.vLin.Sub(impulse.Mul(a.invMass))
	}
	if !b.static {
		b.vLin = b.vLin.Add(impulse.Mul(b.invMass))
	}
}
