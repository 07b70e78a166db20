package entity

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestBodyPatchApplyOnlySetsNonNilFields(t *testing.T) {
	b := Body{
		Position:    mgl64.Vec3{1, 1, 1},
		Restitution: 0.5,
		Scale:       1,
	}
	newPos := mgl64.Vec3{9, 9, 9}
	patch := BodyPatch{Position: &newPos}
	patch.Apply(&b)

	if b.Position != newPos {
		t.Fatalf("expected position to be overwritten, got %v", b.Position)
	}
	if b.Restitution != 0.5 {
		t.Fatalf("expected restitution to be left unchanged, got %v", b.Restitution)
	}
}

func TestBodyPatchApplyRecomputesAABB(t *testing.T) {
	b := Body{Shape: Sphere{Radius: 1}, Scale: 1}
	newPos := mgl64.Vec3{10, 0, 0}
	patch := BodyPatch{Position: &newPos}
	patch.Apply(&b)

	if b.AABB.Min != (mgl64.Vec3{9, -1, -1}) {
		t.Fatalf("expected AABB recomputed at new position, got %+v", b.AABB)
	}
}

func TestTemplateRegistryResolveKnown(t *testing.T) {
	reg := NewTemplateRegistry(Template{Name: "sphere", Body: Body{
		InvMass: 1, Shape: Sphere{Radius: 2}, Orientation: mgl64.QuatIdent(), Scale: 1,
	}})
	body, err := reg.Resolve("sphere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Shape.(Sphere).Radius != 2 {
		t.Fatalf("unexpected resolved body: %+v", body)
	}
}

func TestTemplateRegistryResolveUnknown(t *testing.T) {
	reg := NewTemplateRegistry()
	_, err := reg.Resolve("does-not-exist")
	if !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected ErrUnknownTemplate, got %v", err)
	}
}

func TestTemplateRegistryResolveEmptyNameDefaults(t *testing.T) {
	reg := NewTemplateRegistry()
	body, err := reg.Resolve("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.InvMass != 1 {
		t.Fatalf("expected default body with InvMass 1, got %+v", body)
	}
	if _, ok := body.Shape.(Empty); !ok {
		t.Fatalf("expected default body to have an Empty shape, got %T", body.Shape)
	}
}

func TestTemplateRegistryResolveReturnsIndependentCopy(t *testing.T) {
	reg := NewTemplateRegistry(Template{Name: "box", Body: Body{
		Boosters: []Booster{{Force: 1}},
		Shape:    Box{HalfExtents: mgl64.Vec3{1, 1, 1}},
	}})
	first, _ := reg.Resolve("box")
	first.Boosters[0].Force = 999

	second, _ := reg.Resolve("box")
	if second.Boosters[0].Force == 999 {
		t.Fatalf("mutating one resolved template body affected the registry's base")
	}
}
