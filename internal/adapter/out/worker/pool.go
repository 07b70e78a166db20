// Package worker implements the orchestrator's worker.Pool port by
// dialing a fixed fleet of rigid-body worker processes over gRPC and
// round-robining island requests across them, grounded on the teacher's
// internal/adapter/out/physics.GRPCPhysicsAdapter (same dial/forward
// shape, generalized from one address to a pool).
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
	workerport "github.com/azrael-sim/azrael/internal/core/port/out/worker"
	"github.com/azrael-sim/azrael/internal/transport/workerrpc"
)

// Pool dials a fixed fleet of worker addresses and round-robins
// requests across them. It implements workerport.Pool.
type Pool struct {
	conns   []*grpc.ClientConn
	clients []workerrpc.RigidBodyWorkerClient
	next    atomic.Uint64

	timeout time.Duration

	sem chan struct{}

	log *log.Logger
}

// Config controls pool construction.
type Config struct {
	Addresses     []string
	WorkerTimeout time.Duration
	// QueueDepth bounds in-flight requests per worker (spec.md §4.4:
	// inFlight <= poolSize * queueDepth).
	QueueDepth int
	Logger     *log.Logger
}

// Dial connects to every configured worker address.
func Dial(cfg Config) (*Pool, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("azrael: worker pool needs at least one address")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	queueDepth := cfg.QueueDepth
	if queueDepth <= 0 {
		queueDepth = 4
	}

	p := &Pool{
		timeout: cfg.WorkerTimeout,
		sem:     make(chan struct{}, len(cfg.Addresses)*queueDepth),
		log:     logger,
	}

	for _, addr := range cfg.Addresses {
		conn, err := grpc.NewClient(addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.ForceCodec(workerrpc.Codec)),
		)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("azrael: dial worker %s: %w", addr, err)
		}
		p.conns = append(p.conns, conn)
		p.clients = append(p.clients, workerrpc.NewRigidBodyWorkerClient(conn))
	}

	logger.Printf("[WorkerPool] dialed %d worker(s)", len(p.clients))
	return p, nil
}

// Submit dispatches req to the next worker in round-robin order and
// returns a channel that receives exactly one reply, or is closed
// without a value if the call fails, times out, or ctx is cancelled
// during the call. If ctx is cancelled while Submit waits for a free
// slot, it returns ctx.Err() and no channel (spec.md §4.4: per-request timeout yields WorkerTimeout, the
// island is marked failed for this tick).
func (p *Pool) Submit(ctx context.Context, req workerport.IslandRequest) (<-chan workerport.IslandReply, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	idx := p.next.Add(1) % uint64(len(p.clients))
	client := p.clients[idx]

	out := make(chan workerport.IslandReply, 1)
	go func() {
		defer func() { <-p.sem }()
		defer close(out)

		callCtx := ctx
		var cancel context.CancelFunc
		if p.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}

		wireReq := workerrpc.ToWireRequest(req)
		reply, err := client.Simulate(callCtx, wireReq)
		if err != nil {
			p.log.Printf("[WorkerPool] island %d: %v", req.IslandID, classifyErr(err))
			return
		}
		out <- workerrpc.FromWireReply(reply)
	}()

	return out, nil
}

func classifyErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w", entity.ErrWorkerTimeout)
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.DeadlineExceeded {
		return fmt.Errorf("%w", entity.ErrWorkerTimeout)
	}
	return fmt.Errorf("%w: %v", entity.ErrWorkerFailed, err)
}

// Close tears down every client connection.
func (p *Pool) Close() error {
	var wg sync.WaitGroup
	var firstErr error
	var mu sync.Mutex
	for _, c := range p.conns {
		wg.Add(1)
		go func(c *grpc.ClientConn) {
			defer wg.Done()
			if err := c.Close(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()
	return firstErr
}
