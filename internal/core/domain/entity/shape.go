package entity

import "github.com/go-gl/mathgl/mgl64"

// Shape is the closed set of collision shape variants a Body may carry.
// Its consumers (AABB computation, the worker solver, and the store and
// worker wire encodings) switch on the concrete type; adding a variant
// here means updating each of them.
type Shape interface {
	isShape()
}

// Empty bodies never collide and are skipped by the solver.
type Empty struct{}

func (Empty) isShape() {}

// Sphere is a uniform ball of the given radius in local space.
type Sphere struct {
	Radius float64
}

func (Sphere) isShape() {}

// Box is an axis-aligned (in local space) box described by its half
// extents along each local axis.
type Box struct {
	HalfExtents mgl64.Vec3
}

func (Box) isShape() {}

// StaticPlane is an infinite plane; bodies carrying it must have
// InvMass == 0.
type StaticPlane struct {
	Normal mgl64.Vec3 // unit length
	Offset float64
}

func (StaticPlane) isShape() {}

// CompoundChild is one element of a Compound shape: a child shape at a
// transform local to the owning body's pose.
type CompoundChild struct {
	LocalPosition    mgl64.Vec3
	LocalOrientation mgl64.Quat
	Shape            Shape
}

// Compound is an aggregate of child shapes, each at a fixed local
// transform relative to the body pose.
type Compound struct {
	Children []CompoundChild
}

func (Compound) isShape() {}

// AABB is an axis-aligned bounding box in world coordinates.
type AABB struct {
	Min, Max mgl64.Vec3
}

// Union returns the smallest AABB containing both a and b.
func (a AABB) Union(b AABB) AABB {
	return AABB{
		Min: mgl64.Vec3{min(a.Min[0], b.Min[0]), min(a.Min[1], b.Min[1]), min(a.Min[2], b.Min[2])},
		Max: mgl64.Vec3{max(a.Max[0], b.Max[0]), max(a.Max[1], b.Max[1]), max(a.Max[2], b.Max[2])},
	}
}

// Overlaps reports whether two AABBs intersect on all three axes.
func (a AABB) Overlaps(b AABB) bool {
	return a.Min[0] <= b.Max[0] && a.Max[0] >= b.Min[0] &&
		a.Min[1] <= b.Max[1] && a.Max[1] >= b.Min[1] &&
		a.Min[2] <= b.Max[2] && a.Max[2] >= b.Min[2]
}

// WorldAABB computes the world-space bounding box of shape s when placed
// at the given world pose and uniformly scaled.
func WorldAABB(s Shape, position mgl64.Vec3, orientation mgl64.Quat, scale float64) AABB {
	switch sh := s.(type) {
	case Empty:
		return AABB{Min: position, Max: position}
	case Sphere:
		r := sh.Radius * scale
		extent := mgl64.Vec3{r, r, r}
		return AABB{Min: position.Sub(extent), Max: position.Add(extent)}
	case Box:
		he := sh.HalfExtents.Mul(scale)
		// Rotate all eight corners and take the enclosing box; cheap and
		// exact for a box of this size.
		var box AABB
		first := true
		for _, sx := range [2]float64{-1, 1} {
			for _, sy := range [2]float64{-1, 1} {
				for _, sz := range [2]float64{-1, 1} {
					corner := mgl64.Vec3{sx * he[0], sy * he[1], sz * he[2]}
					world := position.Add(orientation.Rotate(corner))
					if first {
						box = AABB{Min: world, Max: world}
						first = false
						continue
					}
					box = box.Union(AABB{Min: world, Max: world})
				}
			}
		}
		return box
	case StaticPlane:
		// Unbounded in the plane; represent with a very large but finite
		// extent so broadphase sweep-and-prune can still sort it.
		const huge = 1e9
		return AABB{Min: mgl64.Vec3{-huge, -huge, -huge}, Max: mgl64.Vec3{huge, huge, huge}}
	case Compound:
		var box AABB
		first := true
		for _, child := range sh.Children {
			childPos := position.Add(orientation.Rotate(child.LocalPosition.Mul(scale)))
			childOrient := orientation.Mul(child.LocalOrientation)
			childBox := WorldAABB(child.Shape, childPos, childOrient, scale)
			if first {
				box = childBox
				first = false
				continue
			}
			box = box.Union(childBox)
		}
		return box
	default:
		return AABB{Min: position, Max: position}
	}
}
