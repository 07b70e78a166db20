package service

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
	workerport "github.com/azrael-sim/azrael/internal/core/port/out/worker"
)

// --- Phase A: command intake -------------------------------------------------

// phaseCommandIntake physically removes bodies tombstoned by last tick's
// Remove commands, then drains and applies every command currently
// queued, in arrival order. Spawns and removes mutate the store
// unconditionally; SetBody/SetForce mutate via CAS with up to
// Config.CommandRetries retries. ApplyImpulse is accumulated and
// returned rather than written to the store directly — see DESIGN.md's
// resolution of the ApplyImpulse Open Question.
func (o *Orchestrator) phaseCommandIntake(ctx context.Context) map[entity.BodyID]impulseAccum {
	if len(o.pendingRemoval) > 0 {
		_ = o.store.Remove(ctx, o.pendingRemoval)
		o.pendingRemoval = nil
	}

	impulses := make(map[entity.BodyID]impulseAccum)
	for _, env := range o.queue.DrainAll() {
		result := o.applyCommand(ctx, env.Command, impulses)
		env.Reply <- result
	}
	return impulses
}

type impulseAccum struct {
	Linear  mgl64.Vec3
	Angular mgl64.Vec3
}

func (o *Orchestrator) applyCommand(ctx context.Context, cmd entity.Command, impulses map[entity.BodyID]impulseAccum) entity.Result {
	switch cmd.Kind {
	case entity.CommandSpawn:
		return o.applySpawn(ctx, cmd)
	case entity.CommandRemove:
		return o.applyRemove(ctx, cmd)
	case entity.CommandSetBody:
		return o.applyCAS(ctx, cmd.BodyID, func(b *entity.Body) { cmd.Patch.Apply(b) })
	case entity.CommandSetForce:
		return o.applySetForce(ctx, cmd)
	case entity.CommandApplyImpulse:
		return o.applyImpulse(ctx, cmd, impulses)
	default:
		return entity.Result{Err: fmt.Errorf("%w: unknown command kind", entity.ErrValidation)}
	}
}

func (o *Orchestrator) applySpawn(ctx context.Context, cmd entity.Command) entity.Result {
	base, err := o.templates.Resolve(cmd.Template)
	if err != nil {
		return entity.Result{Err: err}
	}
	body := mergeSpawnBody(base, cmd.InitialBody)
	body.RecomputeAABB()
	id, err := o.store.Add(ctx, body)
	if err != nil {
		return entity.Result{Err: err}
	}
	o.metric.mu.Lock()
	o.metric.CommandsApplied++
	o.metric.mu.Unlock()
	return entity.Result{BodyID: id}
}

// mergeSpawnBody overlays override's non-zero Shape, Position,
// Orientation, InvMass, Restitution, Friction, Scale and non-empty
// Boosters onto base, and adds override's VLin/VAng to base's; damping,
// sleep and tombstone fields always come from base. Orientation
// defaults to identity and Scale to 1 when neither supplies one,
// matching Body's zero value otherwise being unusable.
func mergeSpawnBody(base, override entity.Body) entity.Body {
	out := base
	if override.Shape != nil {
		out.Shape = override.Shape
	}
	if override.Position != (mgl64.Vec3{}) {
		out.Position = override.Position
	}
	if override.Orientation != (mgl64.Quat{}) {
		out.Orientation = override.Orientation
	}
	if out.Orientation == (mgl64.Quat{}) {
		out.Orientation = mgl64.QuatIdent()
	}
	out.VLin = out.VLin.Add(override.VLin)
	out.VAng = out.VAng.Add(override.VAng)
	if override.InvMass != 0 {
		out.InvMass = override.InvMass
	}
	if override.Restitution != 0 {
		out.Restitution = override.Restitution
	}
	if override.Friction != 0 {
		out.Friction = override.Friction
	}
	if override.Scale != 0 {
		out.Scale = override.Scale
	}
	if out.Scale == 0 {
		out.Scale = 1
	}
	if len(override.Boosters) > 0 {
		out.Boosters = append([]entity.Booster(nil), override.Boosters...)
	}
	if out.Shape == nil {
		out.Shape = entity.Empty{}
	}
	return out
}

func (o *Orchestrator) applyRemove(ctx context.Context, cmd entity.Command) entity.Result {
	existing, err := o.store.Get(ctx, []entity.BodyID{cmd.BodyID})
	if err != nil {
		return entity.Result{Err: err}
	}
	body, ok := existing[cmd.BodyID]
	if !ok {
		return entity.Result{Err: fmt.Errorf("%w: body %d", entity.ErrNotFound, cmd.BodyID)}
	}
	body.Tombstoned = true
	_, err = o.store.CommitBatch(ctx,
		map[entity.BodyID]entity.Body{cmd.BodyID: body},
		map[entity.BodyID]uint64{cmd.BodyID: body.Version},
	)
	if err != nil {
		return entity.Result{Err: err}
	}
	o.pendingRemoval = append(o.pendingRemoval, cmd.BodyID)
	o.metric.mu.Lock()
	o.metric.CommandsApplied++
	o.metric.mu.Unlock()
	return entity.Result{BodyID: cmd.BodyID}
}

func (o *Orchestrator) applySetForce(ctx context.Context, cmd entity.Command) entity.Result {
	return o.applyCAS(ctx, cmd.BodyID, func(b *entity.Body) {
		if cmd.BoosterIndex >= 0 && cmd.BoosterIndex < len(b.Boosters) {
			b.Boosters[cmd.BoosterIndex].Force = cmd.Force
		}
	})
}

// applyCAS retries a mutation against the store's current version up to
// Config.CommandRetries times before replying Conflict (spec.md §4.5
// Phase A).
func (o *Orchestrator) applyCAS(ctx context.Context, id entity.BodyID, mutate func(*entity.Body)) entity.Result {
	for attempt := 0; attempt <= o.cfg.CommandRetries; attempt++ {
		existing, err := o.store.Get(ctx, []entity.BodyID{id})
		if err != nil {
			return entity.Result{Err: err}
		}
		body, ok := existing[id]
		if !ok {
			return entity.Result{Err: fmt.Errorf("%w: body %d", entity.ErrNotFound, id)}
		}
		expected := body.Version
		mutate(&body)
		body.Sleeping = false
		body.RenormalizeOrientation(o.cfg.QuaternionRenormEps)
		result, err := o.store.CommitBatch(ctx,
			map[entity.BodyID]entity.Body{id: body},
			map[entity.BodyID]uint64{id: expected},
		)
		if err != nil {
			return entity.Result{Err: err}
		}
		if len(result.Committed) == 1 {
			o.metric.mu.Lock()
			o.metric.CommandsApplied++
			o.metric.mu.Unlock()
			o.clearSleep(id)
			return entity.Result{BodyID: id}
		}
		o.metric.mu.Lock()
		o.metric.CASConflicts++
		o.metric.mu.Unlock()
	}
	o.metric.mu.Lock()
	o.metric.CommandsFailed++
	o.metric.mu.Unlock()
	return entity.Result{Err: fmt.Errorf("%w: body %d", entity.ErrConflict, id)}
}

func (o *Orchestrator) applyImpulse(ctx context.Context, cmd entity.Command, impulses map[entity.BodyID]impulseAccum) entity.Result {
	existing, err := o.store.Get(ctx, []entity.BodyID{cmd.BodyID})
	if err != nil {
		return entity.Result{Err: err}
	}
	if _, ok := existing[cmd.BodyID]; !ok {
		return entity.Result{Err: fmt.Errorf("%w: body %d", entity.ErrNotFound, cmd.BodyID)}
	}
	acc := impulses[cmd.BodyID]
	acc.Linear = acc.Linear.Add(cmd.LinearImpulse)
	acc.Angular = acc.Angular.Add(cmd.AngularImpulse)
	impulses[cmd.BodyID] = acc
	o.clearSleep(cmd.BodyID)
	o.metric.mu.Lock()
	o.metric.CommandsApplied++
	o.metric.mu.Unlock()
	return entity.Result{BodyID: cmd.BodyID}
}

// --- Phase B: world load ------------------------------------------------------

func (o *Orchestrator) phaseWorldLoad(ctx context.Context) (map[entity.BodyID]entity.Body, error) {
	return o.store.GetAll(ctx)
}

// --- Phase C: force accumulation ----------------------------------------------

// phaseForceAccumulation computes, for every non-sleeping body, the
// ambient grid sample, the booster contribution, and any pending
// impulse converted to an instantaneous force-equivalent, and returns
// the set of bodies eligible for dispatch this tick alongside their
// aggregated {force, torque}. Sleeping bodies without a pending impulse
// are left out of the active set. They still enter broadphase as
// dynamic bodies: a sleeping body whose AABB overlaps an active one
// joins that island and is dispatched and integrated with it, while a
// sleeping body with no active neighbour is not dispatched.
func (o *Orchestrator) phaseForceAccumulation(world map[entity.BodyID]entity.Body, impulses map[entity.BodyID]impulseAccum) (map[entity.BodyID]entity.Body, map[entity.BodyID]workerport.ExternalForce) {
	active := make(map[entity.BodyID]entity.Body)
	forces := make(map[entity.BodyID]workerport.ExternalForce)

	for id, body := range world {
		if body.Tombstoned {
			continue
		}
		if _, isEmpty := body.Shape.(entity.Empty); isEmpty {
			continue
		}
		if body.IsStatic() {
			continue
		}
		if body.Sleeping {
			if _, hasImpulse := impulses[id]; !hasImpulse {
				continue
			}
		}

		active[id] = body

		var force, torque mgl64.Vec3
		force = force.Add(o.grid.Sample(body.Position))
		for _, booster := range body.Boosters {
			f := booster.WorldForce(body.Orientation)
			force = force.Add(f)
			r := booster.WorldPosition(body.Position, body.Orientation).Sub(body.Position)
			torque = torque.Add(r.Cross(f))
		}
		if acc, ok := impulses[id]; ok && body.InvMass > 0 {
			// The worker integrates v += F*invMass*dt over one tick, so
			// the impulse is sent pre-scaled to the one-tick force J/dt,
			// giving Δv = J*invMass while the wire contract stays a
			// single {force,torque} pair per body.
			if dt := o.cfg.TickPeriod.Seconds(); dt > 0 {
				force = force.Add(acc.Linear.Mul(1 / dt))
				torque = torque.Add(acc.Angular.Mul(1 / dt))
			}
		}

		forces[id] = workerport.ExternalForce{
			Force:  [3]float64{force[0], force[1], force[2]},
			Torque: [3]float64{torque[0], torque[1], torque[2]},
		}
	}

	return active, forces
}

// --- Phase D: broadphase -------------------------------------------------------

func (o *Orchestrator) phaseBroadphase(world map[entity.BodyID]entity.Body, active map[entity.BodyID]entity.Body) []entity.Island {
	bodies := make([]broadphaseBody, 0, len(world))
	for id, body := range world {
		if body.Tombstoned {
			continue
		}
		if _, isEmpty := body.Shape.(entity.Empty); isEmpty {
			continue
		}
		body.RecomputeAABB()
		_, isActive := active[id]
		bodies = append(bodies, broadphaseBody{
			ID:     id,
			AABB:   body.AABB,
			Static: body.IsStatic(),
			Active: isActive,
		})
	}
	return BuildIslands(bodies)
}

// --- Phase E: dispatch -----------------------------------------------------

func (o *Orchestrator) phaseDispatch(ctx context.Context, islands []entity.Island, world map[entity.BodyID]entity.Body, forces map[entity.BodyID]workerport.ExternalForce, nonce string, tick uint64) map[uint64]workerport.IslandReply {
	type pending struct {
		islandID uint64
		ch       <-chan workerport.IslandReply
	}
	var futures []pending

	for i, island := range islands {
		if len(island.Bodies) > o.cfg.IslandSizeSoftCap {
			o.log.Printf("[Orchestrator] tick %d: island %d has %d bodies, exceeding the soft cap of %d; dispatching whole",
				tick, island.ID, len(island.Bodies), o.cfg.IslandSizeSoftCap)
		}

		req := workerport.IslandRequest{
			IslandID:       island.ID,
			TickNonce:      nonce,
			Dt:             o.cfg.TickPeriod.Seconds(),
			MaxSubSteps:    o.cfg.MaxSubSteps,
			ExternalForces: make(map[entity.BodyID]workerport.ExternalForce, len(island.Bodies)),
		}
		for _, id := range island.Bodies {
			body, ok := world[id]
			if !ok {
				continue
			}
			req.Bodies = append(req.Bodies, body)
			if f, ok := forces[id]; ok {
				req.ExternalForces[id] = f
			}
		}

		ch, err := o.pool.Submit(ctx, req)
		if err != nil {
			o.log.Printf("[Orchestrator] tick %d: island %d dispatch failed: %v", tick, island.ID, err)
			continue
		}
		futures = append(futures, pending{islandID: islands[i].ID, ch: ch})
	}

	replies := make(map[uint64]workerport.IslandReply, len(futures))
	for _, f := range futures {
		select {
		case reply, ok := <-f.ch:
			if !ok {
				o.metric.mu.Lock()
				o.metric.WorkerTimeouts++
				o.metric.mu.Unlock()
				continue
			}
			if reply.TickNonce != nonce {
				// A reply from a cancelled earlier tick; ignore it.
				continue
			}
			replies[f.islandID] = reply
		case <-ctx.Done():
			o.metric.mu.Lock()
			o.metric.TickOverruns++
			o.metric.mu.Unlock()
			return replies
		}
	}
	return replies
}

// --- Phase F: merge & commit --------------------------------------------------

// phaseMergeCommit applies every successful island reply via CAS keyed
// on the request's baseline version, discarding updates for bodies
// whose version has since moved (a concurrent command won), and returns
// the contacts gathered from successful islands for the change feed.
func (o *Orchestrator) phaseMergeCommit(ctx context.Context, world map[entity.BodyID]entity.Body, replies map[uint64]workerport.IslandReply) []entity.ContactPair {
	writes := make(map[entity.BodyID]entity.Body)
	expected := make(map[entity.BodyID]uint64)
	var contacts []entity.ContactPair

	for _, reply := range replies {
		for _, upd := range reply.Bodies {
			baseline, ok := world[upd.ID]
			if !ok {
				continue // body removed or never existed; discard silently
			}
			if baseline.Version != upd.Version {
				// The reply does not echo the version this tick
				// dispatched for the body, so its physics result is
				// discarded. A command that moved the store's version
				// after Phase B is caught by the CAS conflict in
				// CommitBatch below.
				o.metric.mu.Lock()
				o.metric.CASConflicts++
				o.metric.mu.Unlock()
				continue
			}
			next := baseline
			next.Position = mgl64.Vec3{upd.Position[0], upd.Position[1], upd.Position[2]}
			next.Orientation = mgl64.Quat{V: mgl64.Vec3{upd.Orientation[0], upd.Orientation[1], upd.Orientation[2]}, W: upd.Orientation[3]}
			next.VLin = mgl64.Vec3{upd.VLin[0], upd.VLin[1], upd.VLin[2]}
			next.VAng = mgl64.Vec3{upd.VAng[0], upd.VAng[1], upd.VAng[2]}
			next.RenormalizeOrientation(o.cfg.QuaternionRenormEps)
			next.RecomputeAABB()
			if next.Sleeping && (next.VLin.Len() >= o.cfg.SleepLinearVelocity || next.VAng.Len() >= o.cfg.SleepAngularVelocity) {
				next.Sleeping = false
			}

			writes[upd.ID] = next
			expected[upd.ID] = upd.Version
		}
		contacts = append(contacts, reply.Contacts...)
	}

	if len(writes) == 0 {
		return contacts
	}

	result, err := o.store.CommitBatch(ctx, writes, expected)
	if err != nil {
		o.log.Printf("[Orchestrator] phase F commit failed: %v", err)
		return contacts
	}
	if len(result.Conflicted) > 0 {
		o.metric.mu.Lock()
		o.metric.CASConflicts += uint64(len(result.Conflicted))
		o.metric.mu.Unlock()
	}
	for _, c := range result.Committed {
		o.clearSleepIfMoving(writes[c])
	}
	return contacts
}

// --- Phase G: sleep bookkeeping ------------------------------------------------

func (o *Orchestrator) phaseSleepBookkeeping(ctx context.Context, world map[entity.BodyID]entity.Body) {
	o.sleepMu.Lock()
	var toSleep []entity.BodyID
	for id, body := range world {
		if body.IsStatic() || body.Tombstoned || body.Sleeping {
			continue
		}
		slow := body.VLin.Len() < o.cfg.SleepLinearVelocity && body.VAng.Len() < o.cfg.SleepAngularVelocity
		if !slow {
			delete(o.sleepStreak, id)
			continue
		}
		o.sleepStreak[id]++
		if o.sleepStreak[id] >= o.cfg.SleepTicks {
			toSleep = append(toSleep, id)
			delete(o.sleepStreak, id)
		}
	}
	o.sleepMu.Unlock()

	if len(toSleep) == 0 {
		return
	}

	writes := make(map[entity.BodyID]entity.Body, len(toSleep))
	expected := make(map[entity.BodyID]uint64, len(toSleep))
	for _, id := range toSleep {
		body := world[id]
		body.Sleeping = true
		writes[id] = body
		expected[id] = body.Version
	}
	// Best-effort: a concurrent command or physics commit between world
	// load and here just means this body stays awake one tick longer.
	if _, err := o.store.CommitBatch(ctx, writes, expected); err != nil {
		o.log.Printf("[Orchestrator] phase G sleep commit failed: %v", err)
	}
}

func (o *Orchestrator) clearSleep(id entity.BodyID) {
	o.sleepMu.Lock()
	defer o.sleepMu.Unlock()
	delete(o.sleepStreak, id)
}

func (o *Orchestrator) clearSleepIfMoving(b entity.Body) {
	if b.VLin.Len() >= o.cfg.SleepLinearVelocity || b.VAng.Len() >= o.cfg.SleepAngularVelocity {
		o.clearSleep(b.ID)
	}
}
