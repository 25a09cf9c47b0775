package bridge

import (
	"context"
	"encoding/json"

	"github.com/golang/protobuf/ptypes/wrappers"
	"google.golang.org/grpc"
)

// DispatchMethod is the full name of the bidirectional engine stream.  Every
// message on it is a BytesValue holding one JSON envelope.
const DispatchMethod = "/shield.Engine/Dispatch"

var dispatchStreamDesc = grpc.StreamDesc{
	StreamName:    "Dispatch",
	ServerStreams: true,
	ClientStreams: true,
}

// GRPCTransport carries JSON envelopes over a single gRPC stream.
type GRPCTransport struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc
}

// DialGRPC connects to the engine at target and opens the dispatch stream.
func DialGRPC(ctx context.Context, target string, opts ...grpc.DialOption) (*GRPCTransport, error) {
	conn, err := grpc.DialContext(ctx, target, opts...)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	stream, err := conn.NewStream(streamCtx, &dispatchStreamDesc, DispatchMethod)
	if err != nil {
		cancel()
		conn.Close()
		return nil, err
	}
	log.Infof("Opened engine stream at %s", target)

	return &GRPCTransport{
		conn:   conn,
		stream: stream,
		cancel: cancel,
	}, nil
}

// Send writes req as one stream message.
func (t *GRPCTransport) Send(req *Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return t.stream.SendMsg(&wrappers.BytesValue{Value: data})
}

// Receive returns the next reply.  Messages that do not decode as a reply
// are logged and skipped.
func (t *GRPCTransport) Receive() (*Reply, error) {
	for {
		msg := new(wrappers.BytesValue)
		if err := t.stream.RecvMsg(msg); err != nil {
			return nil, err
		}
		var reply Reply
		if err := json.Unmarshal(msg.Value, &reply); err != nil {
			log.Warnf("Skipping malformed engine message: %v", err)
			continue
		}
		return &reply, nil
	}
}

// Close ends the stream and the underlying connection.
func (t *GRPCTransport) Close() error {
	_ = t.stream.CloseSend()
	t.cancel()
	return t.conn.Close()
}
