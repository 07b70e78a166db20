package entity

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestWorldAABBBoxRotated(t *testing.T) {
	box := Box{HalfExtents: mgl64.Vec3{1, 1, 1}}
	// 90 degree rotation about Y should swap X/Z extents but for a cube
	// the AABB stays the same.
	rot := mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{0, 1, 0})
	got := WorldAABB(box, mgl64.Vec3{}, rot, 1)

	const eps = 1e-9
	if abs(got.Min[0]+1) > eps || abs(got.Max[0]-1) > eps {
		t.Fatalf("unexpected rotated box AABB: %+v", got)
	}
}

func TestWorldAABBEmptyIsDegenerate(t *testing.T) {
	got := WorldAABB(Empty{}, mgl64.Vec3{2, 3, 4}, mgl64.QuatIdent(), 1)
	if got.Min != got.Max {
		t.Fatalf("expected degenerate AABB for Empty shape, got %+v", got)
	}
}

func TestWorldAABBStaticPlaneIsHuge(t *testing.T) {
	plane := StaticPlane{Normal: mgl64.Vec3{0, 1, 0}, Offset: 0}
	got := WorldAABB(plane, mgl64.Vec3{}, mgl64.QuatIdent(), 1)
	if got.Min[0] > -1e8 || got.Max[0] < 1e8 {
		t.Fatalf("expected a very large bounding box for an infinite plane, got %+v", got)
	}
}

func TestWorldAABBCompoundUnionsChildren(t *testing.T) {
	compound := Compound{Children: []CompoundChild{
		{LocalPosition: mgl64.Vec3{-5, 0, 0}, LocalOrientation: mgl64.QuatIdent(), Shape: Sphere{Radius: 1}},
		{LocalPosition: mgl64.Vec3{5, 0, 0}, LocalOrientation: mgl64.QuatIdent(), Shape: Sphere{Radius: 1}},
	}}
	got := WorldAABB(compound, mgl64.Vec3{}, mgl64.QuatIdent(), 1)
	if got.Min[0] != -6 || got.Max[0] != 6 {
		t.Fatalf("expected compound AABB to span both children, got %+v", got)
	}
}

func TestAABBUnion(t *testing.T) {
	a := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}}
	b := AABB{Min: mgl64.Vec3{-1, -1, -1}, Max: mgl64.Vec3{0.5, 0.5, 0.5}}
	got := a.Union(b)
	want := AABB{Min: mgl64.Vec3{-1, -1, -1}, Max: mgl64.Vec3{1, 1, 1}}
	if got != want {
		t.Fatalf("unexpected union: got %+v want %+v", got, want)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
