package solver

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
	"github.com/azrael-sim/azrael/internal/core/port/out/worker"
)

func approxEqual(a, b mgl64.Vec3, eps float64) bool {
	return math.Abs(a[0]-b[0]) <= eps && math.Abs(a[1]-b[1]) <= eps && math.Abs(a[2]-b[2]) <= eps
}

func TestStepFreeFlightNoForcesNoContacts(t *testing.T) {
	req := worker.IslandRequest{
		IslandID:    1,
		Dt:          1,
		MaxSubSteps: 10,
		Bodies: []entity.Body{{
			ID: 1, InvMass: 1, Orientation: mgl64.QuatIdent(), Scale: 1,
			Position: mgl64.Vec3{0, 100, 0}, VLin: mgl64.Vec3{1, 0, 0},
			Shape: entity.Sphere{Radius: 1},
		}},
	}

	reply := Step(req)
	if len(reply.Bodies) != 1 {
		t.Fatalf("expected exactly one body update, got %d", len(reply.Bodies))
	}
	got := reply.Bodies[0]
	want := mgl64.Vec3{1, 100, 0}
	if !approxEqual(mgl64.Vec3{got.Position[0], got.Position[1], got.Position[2]}, want, 1e-9) {
		t.Fatalf("expected free flight to advance by velocity*dt, got %+v", got.Position)
	}
	if len(reply.Contacts) != 0 {
		t.Fatalf("expected no contacts for a single free body, got %+v", reply.Contacts)
	}
}

func TestStepExternalForceAccelerates(t *testing.T) {
	req := worker.IslandRequest{
		Dt:          1,
		MaxSubSteps: 1,
		Bodies: []entity.Body{{
			ID: 1, InvMass: 1, Orientation: mgl64.QuatIdent(), Scale: 1,
			Shape: entity.Sphere{Radius: 1},
		}},
		ExternalForces: map[entity.BodyID]worker.ExternalForce{
			1: {Force: [3]float64{10, 0, 0}},
		},
	}
	reply := Step(req)
	got := reply.Bodies[0]
	// semi-implicit Euler: v += F*invMass*dt, then x += v*dt, one substep.
	if math.Abs(got.VLin[0]-10) > 1e-9 {
		t.Fatalf("expected velocity to reach 10 after one substep, got %v", got.VLin[0])
	}
	if math.Abs(got.Position[0]-10) > 1e-9 {
		t.Fatalf("expected position to advance by the updated velocity, got %v", got.Position[0])
	}
}

func TestStepSpherePlaneBounce(t *testing.T) {
	req := worker.IslandRequest{
		Dt:          0.1,
		MaxSubSteps: 4,
		Bodies: []entity.Body{
			{
				ID: 1, InvMass: 0, Orientation: mgl64.QuatIdent(), Scale: 1,
				Shape: entity.StaticPlane{Normal: mgl64.Vec3{0, 1, 0}, Offset: 0},
			},
			{
				ID: 2, InvMass: 1, Restitution: 0.5, Orientation: mgl64.QuatIdent(), Scale: 1,
				Position: mgl64.Vec3{0, 0.5, 0}, VLin: mgl64.Vec3{0, -5, 0},
				Shape: entity.Sphere{Radius: 1},
			},
		},
	}
	reply := Step(req)

	var ball *worker.BodyUpdate
	for i := range reply.Bodies {
		if reply.Bodies[i].ID == 2 {
			ball = &reply.Bodies[i]
		}
	}
	if ball == nil {
		t.Fatalf("expected an update for the dynamic ball")
	}
	if ball.Position[1] < 0 {
		t.Fatalf("expected ball pushed back above the plane, got y=%v", ball.Position[1])
	}
	if ball.VLin[1] < 0 {
		t.Fatalf("expected a resting/rebounding ball to have non-negative vertical velocity, got %v", ball.VLin[1])
	}
	if len(reply.Contacts) == 0 {
		t.Fatalf("expected at least one contact to be reported for the bounce")
	}
}

func TestStepSphereSphereElasticCollisionSwapsVelocity(t *testing.T) {
	req := worker.IslandRequest{
		Dt:          0.01,
		MaxSubSteps: 1,
		Bodies: []entity.Body{
			{
				ID: 1, InvMass: 1, Restitution: 1, Orientation: mgl64.QuatIdent(), Scale: 1,
				Position: mgl64.Vec3{-1, 0, 0}, VLin: mgl64.Vec3{1, 0, 0},
				Shape: entity.Sphere{Radius: 1},
			},
			{
				ID: 2, InvMass: 1, Restitution: 1, Orientation: mgl64.QuatIdent(), Scale: 1,
				Position: mgl64.Vec3{1, 0, 0}, VLin: mgl64.Vec3{-1, 0, 0},
				Shape: entity.Sphere{Radius: 1},
			},
		},
	}
	reply := Step(req)

	byID := map[entity.BodyID]worker.BodyUpdate{}
	for _, b := range reply.Bodies {
		byID[b.ID] = b
	}

	// Equal masses, restitution 1, head-on: velocities should swap.
	if byID[1].VLin[0] > 0 {
		t.Fatalf("expected body 1 to reverse direction after elastic collision, got %v", byID[1].VLin[0])
	}
	if byID[2].VLin[0] < 0 {
		t.Fatalf("expected body 2 to reverse direction after elastic collision, got %v", byID[2].VLin[0])
	}
}

func TestStepStaticBodyNeverMoves(t *testing.T) {
	req := worker.IslandRequest{
		Dt:          1,
		MaxSubSteps: 1,
		Bodies: []entity.Body{{
			ID: 1, InvMass: 0, Orientation: mgl64.QuatIdent(), Scale: 1,
			Position: mgl64.Vec3{5, 5, 5},
			Shape:    entity.StaticPlane{Normal: mgl64.Vec3{0, 1, 0}},
		}},
		ExternalForces: map[entity.BodyID]worker.ExternalForce{
			1: {Force: [3]float64{100, 100, 100}},
		},
	}
	reply := Step(req)
	got := reply.Bodies[0].Position
	if got != [3]float64{5, 5, 5} {
		t.Fatalf("expected a static body to never move even with a force applied, got %+v", got)
	}
}
