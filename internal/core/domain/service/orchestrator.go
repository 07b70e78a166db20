// Package service holds the orchestrator's domain logic: the command
// queue, the force grid, broadphase partitioning, and the tick
// orchestrator itself — the core described in spec.md §4.
package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
	storeport "github.com/azrael-sim/azrael/internal/core/port/out/store"
	workerport "github.com/azrael-sim/azrael/internal/core/port/out/worker"
)

// Config carries every tunable named in spec.md §6.
type Config struct {
	TickPeriod          time.Duration
	MaxSubSteps         int
	WorkerTimeout       time.Duration
	DeadlineMultiplier  float64
	CommandRetries      int
	QuaternionRenormEps float64
	SleepLinearVelocity float64
	SleepAngularVelocity float64
	SleepTicks          int
	IslandSizeSoftCap   int
}

// DefaultConfig returns the defaults named in spec.md §6.
func DefaultConfig() Config {
	return Config{
		TickPeriod:           50 * time.Millisecond,
		MaxSubSteps:          10,
		WorkerTimeout:        1 * time.Second,
		DeadlineMultiplier:   3,
		CommandRetries:       3,
		QuaternionRenormEps:  entity.QuaternionRenormEps,
		SleepLinearVelocity:  0.01,
		SleepAngularVelocity: 0.01,
		SleepTicks:           30,
		IslandSizeSoftCap:    64,
	}
}

// ContactFeed receives informational contact pairs after each tick's
// commit (spec.md §4.5 Phase F: "Contacts are forwarded to the
// external change-feed"). Implemented out-of-core by the façade.
type ContactFeed interface {
	PublishContacts(tick uint64, contacts []entity.ContactPair)
}

// Metrics is the orchestrator's counter surface, read by Stats() and
// logged periodically; grounded on the teacher's
// GameTicker/PerformanceMonitor in internal/game/ticker.go.
type Metrics struct {
	mu sync.Mutex

	TickCount       uint64
	TickOverruns    uint64
	CASConflicts    uint64
	WorkerTimeouts  uint64
	WorkerFailures  uint64
	CommandsApplied uint64
	CommandsFailed  uint64
	LastTickTime    time.Duration
	AverageTickTime time.Duration
}

func (m *Metrics) observeTick(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastTickTime = d
	if m.AverageTickTime == 0 {
		m.AverageTickTime = d
	} else {
		m.AverageTickTime = (m.AverageTickTime*9 + d) / 10
	}
}

func (m *Metrics) snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		TickCount: m.TickCount, TickOverruns: m.TickOverruns, CASConflicts: m.CASConflicts,
		WorkerTimeouts: m.WorkerTimeouts, WorkerFailures: m.WorkerFailures,
		CommandsApplied: m.CommandsApplied, CommandsFailed: m.CommandsFailed,
		LastTickTime: m.LastTickTime, AverageTickTime: m.AverageTickTime,
	}
}

// Orchestrator drives the simulation at Config.TickPeriod. Body state
// lives in the store.Port; the orchestrator itself keeps only
// per-process bookkeeping (metrics, sleep streaks, and the bodies
// tombstoned last tick that await removal), none of it persisted.
type Orchestrator struct {
	store     storeport.Port
	pool      workerport.Pool
	queue     *CommandQueue
	grid      *ForceGrid
	templates *entity.TemplateRegistry
	feed      ContactFeed

	cfg    Config
	log    *log.Logger
	metric Metrics

	sleepStreak    map[entity.BodyID]int
	sleepMu        sync.Mutex
	pendingRemoval []entity.BodyID
}

// New constructs an Orchestrator. feed may be nil.
func New(store storeport.Port, pool workerport.Pool, queue *CommandQueue, grid *ForceGrid, templates *entity.TemplateRegistry, feed ContactFeed, cfg Config, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		store: store, pool: pool, queue: queue, grid: grid, templates: templates, feed: feed,
		cfg: cfg, log: logger,
		sleepStreak: make(map[entity.BodyID]int),
	}
}

// Stats returns a snapshot of the orchestrator's counters.
func (o *Orchestrator) Stats() Metrics {
	return o.metric.snapshot()
}

// Run drives the tick loop until ctx is cancelled. Ticks never overlap:
// the next tick starts at prevStart+TickPeriod if the current tick
// finished earlier, otherwise immediately, incrementing TickOverruns
// (spec.md §4.5 Scheduling).
func (o *Orchestrator) Run(ctx context.Context) error {
	nextStart := time.Now()
	for {
		select {
		case <-ctx.Done():
			return o.shutdown()
		default:
		}

		now := time.Now()
		if now.Before(nextStart) {
			timer := time.NewTimer(nextStart.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				return o.shutdown()
			case <-timer.C:
			}
		} else if o.metric.TickCount > 0 && now.After(nextStart) {
			o.metric.mu.Lock()
			o.metric.TickOverruns++
			o.metric.mu.Unlock()
		}

		tickStart := time.Now()
		if err := o.RunTick(ctx); err != nil {
			o.shutdown()
			return fmt.Errorf("azrael: tick failed: %w", err)
		}
		o.metric.observeTick(time.Since(tickStart))

		if o.metric.TickCount%statsLogInterval == 0 {
			o.logStats()
		}

		nextStart = tickStart.Add(o.cfg.TickPeriod)
	}
}

// statsLogInterval is how often Run emits a summary log line.
const statsLogInterval = 200

func (o *Orchestrator) logStats() {
	m := o.metric.snapshot()
	o.log.Printf("[Orchestrator] tick %s, overruns %s, CAS conflicts %s, worker timeouts %s, avg tick %s",
		humanize.Comma(int64(m.TickCount)),
		humanize.Comma(int64(m.TickOverruns)),
		humanize.Comma(int64(m.CASConflicts)),
		humanize.Comma(int64(m.WorkerTimeouts)),
		m.AverageTickTime,
	)
}

func (o *Orchestrator) shutdown() error {
	o.log.Printf("[Orchestrator] shutdown requested, draining pending commands")
	for _, env := range o.queue.DrainAll() {
		env.Reply <- entity.Result{Err: entity.ErrShutdown}
	}
	return nil
}

// RunTick executes exactly one tick, advancing the tick counter and
// running phases A through G in order.
func (o *Orchestrator) RunTick(ctx context.Context) error {
	o.metric.mu.Lock()
	o.metric.TickCount++
	tick := o.metric.TickCount
	o.metric.mu.Unlock()

	nonce := uuid.NewString()

	impulses := o.phaseCommandIntake(ctx)

	world, err := o.phaseWorldLoad(ctx)
	if err != nil {
		return fmt.Errorf("azrael: phase B world load: %w", err)
	}

	active, forces := o.phaseForceAccumulation(world, impulses)

	islands := o.phaseBroadphase(world, active)

	deadline := deadlineBudget(o.cfg.TickPeriod, o.cfg.DeadlineMultiplier)
	dispatchCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	replies := o.phaseDispatch(dispatchCtx, islands, world, forces, nonce, tick)

	contacts := o.phaseMergeCommit(ctx, world, replies)
	if o.feed != nil && len(contacts) > 0 {
		o.feed.PublishContacts(tick, contacts)
	}

	o.phaseSleepBookkeeping(ctx, world)

	return nil
}

// deadlineBudget is the per-tick dispatch deadline: TickPeriod scaled by
// DeadlineMultiplier (spec.md §6).
func deadlineBudget(period time.Duration, multiplier float64) time.Duration {
	return time.Duration(float64(period) * multiplier)
}
