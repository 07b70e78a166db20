// Package workerrpc defines the wire contract between the tick
// orchestrator and a rigid-body worker (spec.md §4.4, §6): one RPC
// simulates one island for one time step. It is transported over real
// google.golang.org/grpc connections using the JSON codec in codec.go,
// with the service description written by hand in the same shape
// protoc-gen-go-grpc would emit, since no .proto toolchain runs here.
package workerrpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the gRPC service's fully qualified name.
const ServiceName = "azrael.worker.v1.RigidBodyWorker"

// SimulateRequest is the wire form of worker.IslandRequest.
type SimulateRequest struct {
	IslandID       uint64                    `json:"island_id"`
	TickNonce      string                    `json:"tick_nonce"`
	Dt             float64                   `json:"dt"`
	MaxSubSteps    int                       `json:"max_sub_steps"`
	Bodies         []WireBody                `json:"bodies"`
	ExternalForces map[uint64]WireExternalForce `json:"external_forces"`
}

// WireExternalForce is the {force, torque} pair attached to one body.
type WireExternalForce struct {
	Force  [3]float64 `json:"force"`
	Torque [3]float64 `json:"torque"`
}

// WireBody is the over-the-wire body snapshot: shape, pose, velocity,
// mass parameters and version.
type WireBody struct {
	ID             uint64        `json:"id"`
	Position       [3]float64    `json:"position"`
	Orientation    [4]float64    `json:"orientation"`
	VLin           [3]float64    `json:"v_lin"`
	VAng           [3]float64    `json:"v_ang"`
	InvMass        float64       `json:"inv_mass"`
	Restitution    float64       `json:"restitution"`
	Friction       float64       `json:"friction"`
	LinearDamping  float64       `json:"linear_damping"`
	AngularDamping float64       `json:"angular_damping"`
	Scale          float64       `json:"scale"`
	Shape          WireShape     `json:"shape"`
}

// WireShape mirrors entity.Shape's closed variant set; exactly one
// pointer field is populated, selected by Tag. Unknown tags are ignored
// by plain json.Unmarshal, giving the forward-compatibility spec.md §6
// asks for.
type WireShape struct {
	Tag      string          `json:"tag"`
	Sphere   *WireSphere     `json:"sphere,omitempty"`
	Box      *WireBox        `json:"box,omitempty"`
	Plane    *WirePlane      `json:"plane,omitempty"`
	Compound []WireCompound  `json:"compound,omitempty"`
}

type WireSphere struct {
	Radius float64 `json:"radius"`
}

type WireBox struct {
	HalfExtents [3]float64 `json:"half_extents"`
}

type WirePlane struct {
	Normal [3]float64 `json:"normal"`
	Offset float64    `json:"offset"`
}

type WireCompound struct {
	LocalPosition    [3]float64 `json:"local_position"`
	LocalOrientation [4]float64 `json:"local_orientation"`
	Shape            WireShape  `json:"shape"`
}

// SimulateReply is the wire form of worker.IslandReply.
type SimulateReply struct {
	IslandID  uint64           `json:"island_id"`
	TickNonce string           `json:"tick_nonce"`
	Bodies    []WireBodyUpdate `json:"bodies"`
	Contacts  []WireContact    `json:"contacts"`
}

// WireBodyUpdate is one body's post-step state.
type WireBodyUpdate struct {
	ID          uint64     `json:"id"`
	Version     uint64     `json:"version"`
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
	VLin        [3]float64 `json:"v_lin"`
	VAng        [3]float64 `json:"v_ang"`
}

// WireContact is the wire form of entity.ContactPair.
type WireContact struct {
	A         uint64     `json:"a"`
	B         uint64     `json:"b"`
	PointOnA  [3]float64 `json:"point_on_a"`
	PointOnB  [3]float64 `json:"point_on_b"`
	NormalOnB [3]float64 `json:"normal_on_b"`
}

// RigidBodyWorkerServer is implemented by the worker process.
type RigidBodyWorkerServer interface {
	Simulate(ctx context.Context, req *SimulateRequest) (*SimulateReply, error)
}

// RigidBodyWorkerClient is implemented by generated-style client stubs;
// the pool adapter in internal/adapter/out/worker depends on this.
type RigidBodyWorkerClient interface {
	Simulate(ctx context.Context, req *SimulateRequest, opts ...grpc.CallOption) (*SimulateReply, error)
}

type client struct {
	cc grpc.ClientConnInterface
}

// NewRigidBodyWorkerClient wraps a dialed connection as a typed client.
func NewRigidBodyWorkerClient(cc grpc.ClientConnInterface) RigidBodyWorkerClient {
	return &client{cc: cc}
}

func (c *client) Simulate(ctx context.Context, req *SimulateRequest, opts ...grpc.CallOption) (*SimulateReply, error) {
	reply := new(SimulateReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Simulate", req, reply, opts...); err != nil {
		return nil, err
	}
	return reply, nil
}

func simulateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(SimulateRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RigidBodyWorkerServer).Simulate(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Simulate"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RigidBodyWorkerServer).Simulate(ctx, req.(*SimulateRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// ServiceDesc is the hand-authored equivalent of a protoc-gen-go-grpc
// service descriptor: method name plus handler, no message reflection
// metadata required because the codec above never touches proto
// descriptors.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RigidBodyWorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Simulate", Handler: simulateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/transport/workerrpc/service.go",
}

// RegisterRigidBodyWorkerServer registers impl against s.
func RegisterRigidBodyWorkerServer(s grpc.ServiceRegistrar, impl RigidBodyWorkerServer) {
	s.RegisterService(&ServiceDesc, impl)
}
