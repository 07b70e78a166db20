package solver

import (
	"context"
	"log"

	"github.com/azrael-sim/azrael/internal/transport/workerrpc"
)

// Server adapts Step to the workerrpc.RigidBodyWorkerServer interface;
// it carries no state of its own, matching spec.md §4.4's "purity" rule
// (the worker never reads or writes persistent state).
type Server struct {
	log *log.Logger
}

// NewServer returns a stateless Server. logger may be nil.
func NewServer(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{log: logger}
}

func (s *Server) Simulate(ctx context.Context, req *workerrpc.SimulateRequest) (*workerrpc.SimulateReply, error) {
	domainReq := workerrpc.FromWireRequest(req)
	reply := Step(domainReq)
	return workerrpc.ToWireReply(reply), nil
}
