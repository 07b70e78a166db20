package workerrpc

import "encoding/json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec over plain
// JSON, so the worker RPC service can run on real gRPC transport
// (HTTP/2 framing, deadlines, status codes) without depending on the
// protobuf toolchain to generate message types. Both client and server
// force this codec explicitly (grpc.ForceCodec / grpc.ForceServerCodec),
// bypassing gRPC's content-type negotiation entirely.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "azrael-json"
}

// Codec is the shared codec instance used by both the worker server and
// the pool's client connections.
var Codec = jsonCodec{}
