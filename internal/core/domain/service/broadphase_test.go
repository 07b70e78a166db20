package service

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
)

func vecX(x float64) mgl64.Vec3 {
	return mgl64.Vec3{x, 0, 0}
}

func mkBody(id entity.BodyID, minX, maxX float64, static, active bool) broadphaseBody {
	return broadphaseBody{
		ID:     id,
		AABB:   entity.AABB{Min: vecX(minX), Max: vecX(maxX)},
		Static: static,
		Active: active,
	}
}

func TestBuildIslandsMergesOverlappingBodies(t *testing.T) {
	bodies := []broadphaseBody{
		mkBody(1, 0, 2, false, true),
		mkBody(2, 1, 3, false, true), // overlaps body 1
		mkBody(3, 10, 12, false, true),
	}
	islands := BuildIslands(bodies)

	if len(islands) != 2 {
		t.Fatalf("expected 2 islands, got %d: %+v", len(islands), islands)
	}

	var sawPair, sawSolo bool
	for _, isl := range islands {
		switch len(isl.Bodies) {
		case 2:
			sawPair = true
		case 1:
			sawSolo = true
		}
	}
	if !sawPair || !sawSolo {
		t.Fatalf("expected one 2-body island and one 1-body island, got %+v", islands)
	}
}

func TestBuildIslandsSkipsLoneStaticBody(t *testing.T) {
	bodies := []broadphaseBody{
		mkBody(1, 0, 2, true, true),
	}
	islands := BuildIslands(bodies)
	if len(islands) != 0 {
		t.Fatalf("expected a lone static body to form no island, got %+v", islands)
	}
}

func TestBuildIslandsSkipsLoneSleepingBody(t *testing.T) {
	bodies := []broadphaseBody{
		mkBody(1, 0, 2, false, false),
	}
	islands := BuildIslands(bodies)
	if len(islands) != 0 {
		t.Fatalf("expected a lone sleeping body to form no island, got %+v", islands)
	}
}

func TestBuildIslandsSharesStaticAcrossDisjointIslands(t *testing.T) {
	// A wide static ground plane overlapping two far-apart dynamic
	// bodies that don't overlap each other.
	ground := mkBody(100, -1000, 1000, true, true)
	left := mkBody(1, -5, -3, false, true)
	right := mkBody(2, 50, 52, false, true)

	islands := BuildIslands([]broadphaseBody{ground, left, right})
	if len(islands) != 2 {
		t.Fatalf("expected 2 islands (left+ground, right+ground), got %d: %+v", len(islands), islands)
	}
	for _, isl := range islands {
		if !isl.StaticOnly[100] {
			t.Fatalf("expected the shared static ground body in every island, got %+v", isl)
		}
	}
}

func TestBuildIslandsTwoStaticBodiesNeverShareAnIsland(t *testing.T) {
	a := mkBody(1, 0, 2, true, true)
	b := mkBody(2, 1, 3, true, true)
	islands := BuildIslands([]broadphaseBody{a, b})
	if len(islands) != 0 {
		t.Fatalf("expected no islands from two overlapping static bodies, got %+v", islands)
	}
}

func TestBuildIslandsEmptyInput(t *testing.T) {
	if islands := BuildIslands(nil); islands != nil {
		t.Fatalf("expected nil islands for empty input, got %+v", islands)
	}
}
