// Package facade is the client-facing boundary described in spec.md §6:
// a WebSocket endpoint that accepts {cmd,data} envelopes, validates them
// against a JSON Schema, translates them into entity.Command values
// pushed onto the orchestrator's command queue, and replies
// synchronously with {ok,msg,data}. Grounded on the teacher's
// internal/adapter/in/ws.WSAdapter (handler-map dispatch, a
// mutex-guarded per-connection writer, an explicit client registry for
// broadcast) — generalized from the teacher's ad hoc game-object
// protocol to the orchestrator's five command kinds.
package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
	"github.com/azrael-sim/azrael/internal/core/domain/service"
	storeport "github.com/azrael-sim/azrael/internal/core/port/out/store"
)

// envelope is the wire request shape of spec.md §6.
type envelope struct {
	Cmd  string          `json:"cmd"`
	Data json.RawMessage `json:"data"`
}

// response is the wire reply shape of spec.md §6.
type response struct {
	OK   bool        `json:"ok"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// safeConn wraps one websocket connection with a write mutex, since
// gorilla/websocket connections do not tolerate concurrent writers
// (grounded on the teacher's SafeWriter in internal/transport/ws).
type safeConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *safeConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Facade owns the WebSocket listener and the set of connected clients.
type Facade struct {
	upgrader websocket.Upgrader
	queue    *service.CommandQueue
	store    storeport.Port
	validate *Validator
	log      *log.Logger

	clientsMu sync.Mutex
	clients   map[*safeConn]struct{}

	replyTimeout time.Duration
}

// New constructs a Facade. validator may be nil, in which case envelopes
// are forwarded without schema validation (useful for tests).
func New(queue *service.CommandQueue, store storeport.Port, validator *Validator, logger *log.Logger) *Facade {
	if logger == nil {
		logger = log.Default()
	}
	return &Facade{
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		queue:        queue,
		store:        store,
		validate:     validator,
		log:          logger,
		clients:      make(map[*safeConn]struct{}),
		replyTimeout: 5 * time.Second,
	}
}

// ServeHTTP upgrades the connection and runs the per-client read loop
// until the client disconnects.
func (f *Facade) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Printf("[Facade] upgrade: %v", err)
		return
	}
	sc := &safeConn{conn: conn}

	f.clientsMu.Lock()
	f.clients[sc] = struct{}{}
	f.clientsMu.Unlock()

	defer func() {
		f.clientsMu.Lock()
		delete(f.clients, sc)
		f.clientsMu.Unlock()
		conn.Close()
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		resp := f.dispatch(r.Context(), env)
		if err := sc.writeJSON(resp); err != nil {
			return
		}
	}
}

// PublishContacts implements service.ContactFeed: every contact pair
// resolved this tick is broadcast to every connected client as an
// informational message (spec.md §4.5 Phase F).
func (f *Facade) PublishContacts(tick uint64, contacts []entity.ContactPair) {
	msg := response{OK: true, Msg: "contacts", Data: map[string]interface{}{
		"tick":     tick,
		"contacts": contacts,
	}}

	f.clientsMu.Lock()
	defer f.clientsMu.Unlock()
	for c := range f.clients {
		if err := c.writeJSON(msg); err != nil {
			f.log.Printf("[Facade] broadcast to client failed: %v", err)
		}
	}
}

func (f *Facade) dispatch(ctx context.Context, env envelope) response {
	if f.validate != nil {
		if err := f.validate.Validate(env.Cmd, env.Data); err != nil {
			return response{OK: false, Msg: fmt.Sprintf("%s: %v", entity.ErrValidation, err)}
		}
	}

	switch env.Cmd {
	case "ping":
		return response{OK: true, Msg: "pong"}
	case "get_object_states":
		return f.handleGetObjectStates(ctx, env.Data)
	case "spawn":
		return f.handleSpawn(env.Data)
	case "remove":
		return f.handleRemove(env.Data)
	case "set_body":
		return f.handleSetBody(env.Data)
	case "set_force":
		return f.handleSetForce(env.Data)
	case "apply_impulse":
		return f.handleApplyImpulse(env.Data)
	default:
		return response{OK: false, Msg: fmt.Sprintf("unknown cmd %q", env.Cmd)}
	}
}

func (f *Facade) handleGetObjectStates(ctx context.Context, data json.RawMessage) response {
	var req struct {
		IDs []uint64 `json:"ids"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return response{OK: false, Msg: err.Error()}
		}
	}

	if len(req.IDs) == 0 {
		bodies, err := f.store.GetAll(ctx)
		if err != nil {
			return response{OK: false, Msg: err.Error()}
		}
		return response{OK: true, Data: bodies}
	}

	ids := make([]entity.BodyID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = entity.BodyID(id)
	}
	bodies, err := f.store.Get(ctx, ids)
	if err != nil {
		return response{OK: false, Msg: err.Error()}
	}
	return response{OK: true, Data: bodies}
}

func (f *Facade) enqueueAndWait(cmd entity.Command) response {
	reply, err := f.queue.Enqueue(cmd)
	if err != nil {
		return response{OK: false, Msg: err.Error()}
	}
	select {
	case result := <-reply:
		if result.Err != nil {
			return response{OK: false, Msg: result.Err.Error()}
		}
		return response{OK: true, Data: map[string]uint64{"body_id": uint64(result.BodyID)}}
	case <-time.After(f.replyTimeout):
		return response{OK: false, Msg: "timed out waiting for orchestrator reply"}
	}
}

type wireVec3 [3]float64

func (v wireVec3) toVec3() mgl64.Vec3 { return mgl64.Vec3{v[0], v[1], v[2]} }

func (f *Facade) handleSpawn(data json.RawMessage) response {
	var req struct {
		Template string `json:"template"`
		Position *wireVec3 `json:"position"`
		InvMass  *float64  `json:"inv_mass"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return response{OK: false, Msg: err.Error()}
	}
	cmd := entity.Command{Kind: entity.CommandSpawn, Template: req.Template}
	if req.Position != nil {
		cmd.InitialBody.Position = req.Position.toVec3()
	}
	if req.InvMass != nil {
		cmd.InitialBody.InvMass = *req.InvMass
	}
	return f.enqueueAndWait(cmd)
}

func (f *Facade) handleRemove(data json.RawMessage) response {
	var req struct {
		BodyID uint64 `json:"body_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return response{OK: false, Msg: err.Error()}
	}
	return f.enqueueAndWait(entity.Command{Kind: entity.CommandRemove, BodyID: entity.BodyID(req.BodyID)})
}

func (f *Facade) handleSetBody(data json.RawMessage) response {
	var req struct {
		BodyID   uint64    `json:"body_id"`
		Position *wireVec3 `json:"position"`
		VLin     *wireVec3 `json:"v_lin"`
		VAng     *wireVec3 `json:"v_ang"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return response{OK: false, Msg: err.Error()}
	}
	var patch entity.BodyPatch
	if req.Position != nil {
		v := req.Position.toVec3()
		patch.Position = &v
	}
	if req.VLin != nil {
		v := req.VLin.toVec3()
		patch.VLin = &v
	}
	if req.VAng != nil {
		v := req.VAng.toVec3()
		patch.VAng = &v
	}
	return f.enqueueAndWait(entity.Command{Kind: entity.CommandSetBody, BodyID: entity.BodyID(req.BodyID), Patch: patch})
}

func (f *Facade) handleSetForce(data json.RawMessage) response {
	var req struct {
		BodyID       uint64  `json:"body_id"`
		BoosterIndex int     `json:"booster_index"`
		Force        float64 `json:"force"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return response{OK: false, Msg: err.Error()}
	}
	return f.enqueueAndWait(entity.Command{
		Kind:         entity.CommandSetForce,
		BodyID:       entity.BodyID(req.BodyID),
		BoosterIndex: req.BoosterIndex,
		Force:        req.Force,
	})
}

func (f *Facade) handleApplyImpulse(data json.RawMessage) response {
	var req struct {
		BodyID  uint64   `json:"body_id"`
		Linear  wireVec3 `json:"linear"`
		Angular wireVec3 `json:"angular"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return response{OK: false, Msg: err.Error()}
	}
	return f.enqueueAndWait(entity.Command{
		Kind:           entity.CommandApplyImpulse,
		BodyID:         entity.BodyID(req.BodyID),
		LinearImpulse:  req.Linear.toVec3(),
		AngularImpulse: req.Angular.toVec3(),
	})
}
