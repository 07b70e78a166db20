package workerrpc

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
	"github.com/azrael-sim/azrael/internal/core/port/out/worker"
)

func vec3(v mgl64.Vec3) [3]float64   { return [3]float64{v[0], v[1], v[2]} }
func toVec3(a [3]float64) mgl64.Vec3 { return mgl64.Vec3{a[0], a[1], a[2]} }

func quat(q mgl64.Quat) [4]float64 { return [4]float64{q.V[0], q.V[1], q.V[2], q.W} }
func toQuat(a [4]float64) mgl64.Quat {
	return mgl64.Quat{V: mgl64.Vec3{a[0], a[1], a[2]}, W: a[3]}
}

func shapeToWire(s entity.Shape) WireShape {
	switch sh := s.(type) {
	case entity.Sphere:
		return WireShape{Tag: "sphere", Sphere: &WireSphere{Radius: sh.Radius}}
	case entity.Box:
		return WireShape{Tag: "box", Box: &WireBox{HalfExtents: vec3(sh.HalfExtents)}}
	case entity.StaticPlane:
		return WireShape{Tag: "plane", Plane: &WirePlane{Normal: vec3(sh.Normal), Offset: sh.Offset}}
	case entity.Compound:
		children := make([]WireCompound, len(sh.Children))
		for i, c := range sh.Children {
			children[i] = WireCompound{
				LocalPosition:    vec3(c.LocalPosition),
				LocalOrientation: quat(c.LocalOrientation),
				Shape:            shapeToWire(c.Shape),
			}
		}
		return WireShape{Tag: "compound", Compound: children}
	default:
		return WireShape{Tag: "empty"}
	}
}

func wireToShape(w WireShape) entity.Shape {
	switch w.Tag {
	case "sphere":
		if w.Sphere != nil {
			return entity.Sphere{Radius: w.Sphere.Radius}
		}
	case "box":
		if w.Box != nil {
			return entity.Box{HalfExtents: toVec3(w.Box.HalfExtents)}
		}
	case "plane":
		if w.Plane != nil {
			return entity.StaticPlane{Normal: toVec3(w.Plane.Normal), Offset: w.Plane.Offset}
		}
	case "compound":
		children := make([]entity.CompoundChild, len(w.Compound))
		for i, c := range w.Compound {
			children[i] = entity.CompoundChild{
				LocalPosition:    toVec3(c.LocalPosition),
				LocalOrientation: toQuat(c.LocalOrientation),
				Shape:            wireToShape(c.Shape),
			}
		}
		return entity.Compound{Children: children}
	}
	return entity.Empty{}
}

func bodyToWire(b entity.Body) WireBody {
	return WireBody{
		ID:             uint64(b.ID),
		Position:       vec3(b.Position),
		Orientation:    quat(b.Orientation),
		VLin:           vec3(b.VLin),
		VAng:           vec3(b.VAng),
		InvMass:        b.InvMass,
		Restitution:    b.Restitution,
		Friction:       b.Friction,
		LinearDamping:  b.LinearDamping,
		AngularDamping: b.AngularDamping,
		Scale:          b.Scale,
		Shape:          shapeToWire(b.Shape),
	}
}

func wireToBody(w WireBody) entity.Body {
	b := entity.Body{
		ID:             entity.BodyID(w.ID),
		Position:       toVec3(w.Position),
		Orientation:    toQuat(w.Orientation),
		VLin:           toVec3(w.VLin),
		VAng:           toVec3(w.VAng),
		InvMass:        w.InvMass,
		Restitution:    w.Restitution,
		Friction:       w.Friction,
		LinearDamping:  w.LinearDamping,
		AngularDamping: w.AngularDamping,
		Scale:          w.Scale,
		Shape:          wireToShape(w.Shape),
	}
	b.RecomputeAABB()
	return b
}

// ToWireRequest converts a domain IslandRequest to its wire form.
func ToWireRequest(req worker.IslandRequest) *SimulateRequest {
	bodies := make([]WireBody, len(req.Bodies))
	for i, b := range req.Bodies {
		bodies[i] = bodyToWire(b)
	}
	forces := make(map[uint64]WireExternalForce, len(req.ExternalForces))
	for id, f := range req.ExternalForces {
		forces[uint64(id)] = WireExternalForce{Force: f.Force, Torque: f.Torque}
	}
	return &SimulateRequest{
		IslandID:       req.IslandID,
		TickNonce:      req.TickNonce,
		Dt:             req.Dt,
		MaxSubSteps:    req.MaxSubSteps,
		Bodies:         bodies,
		ExternalForces: forces,
	}
}

// FromWireRequest converts a wire request back to its domain form
// (used on the worker side).
func FromWireRequest(req *SimulateRequest) worker.IslandRequest {
	bodies := make([]entity.Body, len(req.Bodies))
	for i, b := range req.Bodies {
		bodies[i] = wireToBody(b)
	}
	forces := make(map[entity.BodyID]worker.ExternalForce, len(req.ExternalForces))
	for id, f := range req.ExternalForces {
		forces[entity.BodyID(id)] = worker.ExternalForce{Force: f.Force, Torque: f.Torque}
	}
	return worker.IslandRequest{
		IslandID:       req.IslandID,
		TickNonce:      req.TickNonce,
		Dt:             req.Dt,
		MaxSubSteps:    req.MaxSubSteps,
		Bodies:         bodies,
		ExternalForces: forces,
	}
}

// ToWireReply converts a domain IslandReply to its wire form (worker side).
func ToWireReply(reply worker.IslandReply) *SimulateReply {
	updates := make([]WireBodyUpdate, len(reply.Bodies))
	for i, u := range reply.Bodies {
		updates[i] = WireBodyUpdate{
			ID:          uint64(u.ID),
			Version:     u.Version,
			Position:    u.Position,
			Orientation: u.Orientation,
			VLin:        u.VLin,
			VAng:        u.VAng,
		}
	}
	contacts := make([]WireContact, len(reply.Contacts))
	for i, c := range reply.Contacts {
		contacts[i] = WireContact{
			A:         uint64(c.A),
			B:         uint64(c.B),
			PointOnA:  vec3(c.PointOnA),
			PointOnB:  vec3(c.PointOnB),
			NormalOnB: vec3(c.NormalOnB),
		}
	}
	return &SimulateReply{
		IslandID:  reply.IslandID,
		TickNonce: reply.TickNonce,
		Bodies:    updates,
		Contacts:  contacts,
	}
}

// FromWireReply converts a wire reply back to its domain form (pool side).
func FromWireReply(reply *SimulateReply) worker.IslandReply {
	updates := make([]worker.BodyUpdate, len(reply.Bodies))
	for i, u := range reply.Bodies {
		updates[i] = worker.BodyUpdate{
			ID:          entity.BodyID(u.ID),
			Version:     u.Version,
			Position:    u.Position,
			Orientation: u.Orientation,
			VLin:        u.VLin,
			VAng:        u.VAng,
		}
	}
	contacts := make([]entity.ContactPair, len(reply.Contacts))
	for i, c := range reply.Contacts {
		contacts[i] = entity.ContactPair{
			A:         entity.BodyID(c.A),
			B:         entity.BodyID(c.B),
			PointOnA:  toVec3(c.PointOnA),
			PointOnB:  toVec3(c.PointOnB),
			NormalOnB: toVec3(c.NormalOnB),
		}
	}
	return worker.IslandReply{
		IslandID:  reply.IslandID,
		TickNonce: reply.TickNonce,
		Bodies:    updates,
		Contacts:  contacts,
	}
}
