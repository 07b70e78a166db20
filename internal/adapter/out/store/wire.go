package store

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
)

// wireBody is the JSON-serializable mirror of entity.Body, needed
// because entity.Shape is a sum type expressed as a Go interface and
// entity.Body otherwise has no exported encoding. Only the state
// store's durable log uses this; the in-memory path and the worker
// wire protocol never touch it.
type wireBody struct {
	ID             uint64       `json:"id"`
	Position       [3]float64   `json:"position"`
	Orientation    [4]float64   `json:"orientation"`
	VLin           [3]float64   `json:"v_lin"`
	VAng           [3]float64   `json:"v_ang"`
	InvMass        float64      `json:"inv_mass"`
	Restitution    float64      `json:"restitution"`
	Friction       float64      `json:"friction"`
	LinearDamping  float64      `json:"linear_damping"`
	AngularDamping float64      `json:"angular_damping"`
	Scale          float64      `json:"scale"`
	Shape          wireShape    `json:"shape"`
	Boosters       []wireBooster `json:"boosters"`
	Version        uint64       `json:"version"`
	Sleeping       bool         `json:"sleeping"`
	Tombstoned     bool         `json:"tombstoned"`
}

type wireBooster struct {
	Position  [3]float64 `json:"position"`
	Direction [3]float64 `json:"direction"`
	Force     float64    `json:"force"`
}

// wireShape holds exactly one of its pointer fields, selected by Tag.
type wireShape struct {
	Tag      string         `json:"tag"`
	Sphere   *wireSphere    `json:"sphere,omitempty"`
	Box      *wireBox       `json:"box,omitempty"`
	Plane    *wirePlane     `json:"plane,omitempty"`
	Compound []wireCompound `json:"compound,omitempty"`
}

type wireSphere struct {
	Radius float64 `json:"radius"`
}

type wireBox struct {
	HalfExtents [3]float64 `json:"half_extents"`
}

type wirePlane struct {
	Normal [3]float64 `json:"normal"`
	Offset float64    `json:"offset"`
}

type wireCompound struct {
	LocalPosition    [3]float64 `json:"local_position"`
	LocalOrientation [4]float64 `json:"local_orientation"`
	Shape            wireShape  `json:"shape"`
}

func vec3(v mgl64.Vec3) [3]float64 { return [3]float64{v[0], v[1], v[2]} }
func toVec3(a [3]float64) mgl64.Vec3 { return mgl64.Vec3{a[0], a[1], a[2]} }

func quat(q mgl64.Quat) [4]float64 { return [4]float64{q.V[0], q.V[1], q.V[2], q.W} }
func toQuat(a [4]float64) mgl64.Quat {
	return mgl64.Quat{V: mgl64.Vec3{a[0], a[1], a[2]}, W: a[3]}
}

func shapeToWire(s entity.Shape) wireShape {
	switch sh := s.(type) {
	case entity.Empty:
		return wireShape{Tag: "empty"}
	case entity.Sphere:
		return wireShape{Tag: "sphere", Sphere: &wireSphere{Radius: sh.Radius}}
	case entity.Box:
		return wireShape{Tag: "box", Box: &wireBox{HalfExtents: vec3(sh.HalfExtents)}}
	case entity.StaticPlane:
		return wireShape{Tag: "plane", Plane: &wirePlane{Normal: vec3(sh.Normal), Offset: sh.Offset}}
	case entity.Compound:
		children := make([]wireCompound, len(sh.Children))
		for i, c := range sh.Children {
			children[i] = wireCompound{
				LocalPosition:    vec3(c.LocalPosition),
				LocalOrientation: quat(c.LocalOrientation),
				Shape:            shapeToWire(c.Shape),
			}
		}
		return wireShape{Tag: "compound", Compound: children}
	default:
		return wireShape{Tag: "empty"}
	}
}

func wireToShape(w wireShape) (entity.Shape, error) {
	switch w.Tag {
	case "empty", "":
		return entity.Empty{}, nil
	case "sphere":
		if w.Sphere == nil {
			return nil, fmt.Errorf("%w: sphere payload missing", entity.ErrUnknownShape)
		}
		return entity.Sphere{Radius: w.Sphere.Radius}, nil
	case "box":
		if w.Box == nil {
			return nil, fmt.Errorf("%w: box payload missing", entity.ErrUnknownShape)
		}
		return entity.Box{HalfExtents: toVec3(w.Box.HalfExtents)}, nil
	case "plane":
		if w.Plane == nil {
			return nil, fmt.Errorf("%w: plane payload missing", entity.ErrUnknownShape)
		}
		return entity.StaticPlane{Normal: toVec3(w.Plane.Normal), Offset: w.Plane.Offset}, nil
	case "compound":
		children := make([]entity.CompoundChild, len(w.Compound))
		for i, c := range w.Compound {
			child, err := wireToShape(c.Shape)
			if err != nil {
				return nil, err
			}
			children[i] = entity.CompoundChild{
				LocalPosition:    toVec3(c.LocalPosition),
				LocalOrientation: toQuat(c.LocalOrientation),
				Shape:            child,
			}
		}
		return entity.Compound{Children: children}, nil
	default:
		return nil, fmt.Errorf("%w: %q", entity.ErrUnknownShape, w.Tag)
	}
}

func toWire(b entity.Body) wireBody {
	boosters := make([]wireBooster, len(b.Boosters))
	for i, bo := range b.Boosters {
		boosters[i] = wireBooster{Position: vec3(bo.Position), Direction: vec3(bo.Direction), Force: bo.Force}
	}
	return wireBody{
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
		Boosters:       boosters,
		Version:        b.Version,
		Sleeping:       b.Sleeping,
		Tombstoned:     b.Tombstoned,
	}
}

func (w wireBody) toBody() entity.Body {
	shape, err := wireToShape(w.Shape)
	if err != nil {
		shape = entity.Empty{}
	}
	boosters := make([]entity.Booster, len(w.Boosters))
	for i, bo := range w.Boosters {
		boosters[i] = entity.Booster{Position: toVec3(bo.Position), Direction: toVec3(bo.Direction), Force: bo.Force}
	}
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
		Shape:          shape,
		Boosters:       boosters,
		Version:        w.Version,
		Sleeping:       w.Sleeping,
		Tombstoned:     w.Tombstoned,
	}
	b.RecomputeAABB()
	return b
}
