// Command worker hosts the stateless rigid-body simulation service the
// orchestrator dispatches island requests to (spec.md §4.4).
package main

import (
	"log"
	"net"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/azrael-sim/azrael/internal/transport/workerrpc"
	"github.com/azrael-sim/azrael/internal/worker/solver"
)

func main() {
	addr := os.Getenv("AZRAEL_WORKER_ADDR")
	if addr == "" {
		addr = ":7070"
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	encoding.RegisterCodec(workerrpc.Codec)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatalf("[Worker] listen %s: %v", addr, err)
	}

	grpcServer := grpc.NewServer(grpc.ForceServerCodec(workerrpc.Codec))
	workerrpc.RegisterRigidBodyWorkerServer(grpcServer, solver.NewServer(logger))

	logger.Printf("[Worker] listening on %s", addr)
	if err := grpcServer.Serve(lis); err != nil {
		logger.Fatalf("[Worker] serve: %v", err)
	}
}
