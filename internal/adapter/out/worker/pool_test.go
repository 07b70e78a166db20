package worker

import (
	"context"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"google.golang.org/grpc"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
	workerport "github.com/azrael-sim/azrael/internal/core/port/out/worker"
	"github.com/azrael-sim/azrael/internal/transport/workerrpc"
	"github.com/azrael-sim/azrael/internal/worker/solver"
)

// startTestWorker boots a real gRPC server backed by the pure-Go solver
// on an ephemeral localhost port and returns its address plus a closer.
func startTestWorker(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected error listening: %v", err)
	}

	srv := grpc.NewServer(grpc.ForceServerCodec(workerrpc.Codec))
	workerrpc.RegisterRigidBodyWorkerServer(srv, solver.NewServer(log.New(io.Discard, "", 0)))

	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

func TestPoolDialRejectsEmptyAddressList(t *testing.T) {
	if _, err := Dial(Config{}); err == nil {
		t.Fatalf("expected an error dialing a pool with no worker addresses")
	}
}

func TestPoolSubmitRoundTripsThroughARealWorker(t *testing.T) {
	addr := startTestWorker(t)

	pool, err := Dial(Config{
		Addresses:     []string{addr},
		WorkerTimeout: 2 * time.Second,
		Logger:        log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("unexpected error dialing pool: %v", err)
	}
	defer pool.Close()

	req := workerport.IslandRequest{
		IslandID:    1,
		Dt:          1,
		MaxSubSteps: 1,
		Bodies: []entity.Body{{
			ID: 1, InvMass: 1, Orientation: mgl64.QuatIdent(), Scale: 1,
			Position: mgl64.Vec3{0, 0, 0}, VLin: mgl64.Vec3{1, 0, 0},
			Shape: entity.Sphere{Radius: 1},
		}},
	}

	ch, err := pool.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error submitting to pool: %v", err)
	}

	select {
	case reply := <-ch:
		if len(reply.Bodies) != 1 {
			t.Fatalf("expected exactly one body update from the worker, got %+v", reply.Bodies)
		}
		if reply.Bodies[0].Position[0] != 1 {
			t.Fatalf("expected the body to advance by velocity*dt, got %+v", reply.Bodies[0].Position)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for a reply from the real worker")
	}
}

func TestPoolSubmitRoundRobinsAcrossWorkers(t *testing.T) {
	addrA := startTestWorker(t)
	addrB := startTestWorker(t)

	pool, err := Dial(Config{
		Addresses:     []string{addrA, addrB},
		WorkerTimeout: 2 * time.Second,
		Logger:        log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("unexpected error dialing pool: %v", err)
	}
	defer pool.Close()

	for i := 0; i < 4; i++ {
		req := workerport.IslandRequest{
			IslandID: uint64(i), Dt: 1, MaxSubSteps: 1,
			Bodies: []entity.Body{{
				ID: 1, InvMass: 1, Orientation: mgl64.QuatIdent(), Scale: 1,
				Shape: entity.Sphere{Radius: 1},
			}},
		}
		ch, err := pool.Submit(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error submitting request %d: %v", i, err)
		}
		select {
		case reply := <-ch:
			if len(reply.Bodies) != 1 {
				t.Fatalf("expected a reply for request %d, got %+v", i, reply)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for reply to request %d", i)
		}
	}
}

func TestPoolSubmitTimesOutAgainstAnUnreachableWorker(t *testing.T) {
	pool, err := Dial(Config{
		Addresses:     []string{"127.0.0.1:1"},
		WorkerTimeout: 50 * time.Millisecond,
		Logger:        log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("unexpected error dialing pool: %v", err)
	}
	defer pool.Close()

	req := workerport.IslandRequest{IslandID: 1, Dt: 1, MaxSubSteps: 1}
	ch, err := pool.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error submitting request: %v", err)
	}

	select {
	case reply, ok := <-ch:
		if ok {
			t.Fatalf("expected the channel to close without a reply for an unreachable worker, got %+v", reply)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for the submit channel to close")
	}
}
