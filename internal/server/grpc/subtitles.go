package grpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/emmett/sublive/internal/app"
	"github.com/emmett/sublive/internal/transcript"
)

const (
	serviceName    = "sublive.v1.Subtitles"
	snapshotMethod = "/" + serviceName + "/Snapshot"
	watchMethod    = "/" + serviceName + "/Watch"
)

// SubtitlesServer is the server API for sublive.v1.Subtitles.
//
// The messages are protobuf well-known types, so no generated code is
// needed: every reply is a google.protobuf.Struct holding the session
// status and the current subtitle snapshot.
type SubtitlesServer interface {
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Watch(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterSubtitlesServer registers srv on s
func RegisterSubtitlesServer(s grpc.ServiceRegistrar, srv SubtitlesServer) {
	s.RegisterService(&subtitlesServiceDesc, srv)
}

var subtitlesServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SubtitlesServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Snapshot", Handler: snapshotHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "sublive/v1/subtitles.proto",
}

func snapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SubtitlesServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: snapshotMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SubtitlesServer).Snapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SubtitlesServer).Watch(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// SubtitlesService serves the hub's state
type SubtitlesService struct {
	hub    *app.Hub
	buffer int
}

// NewSubtitlesService creates the service
func NewSubtitlesService(hub *app.Hub) *SubtitlesService {
	return &SubtitlesService{hub: hub, buffer: 8}
}

// Snapshot returns the current state
func (s *SubtitlesService) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return encode(s.hub.Status(), s.hub.Snapshot())
}

// Watch streams every snapshot until the client leaves or the hub closes
func (s *SubtitlesService) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ch, cancel := s.hub.Subscribe(s.buffer)
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := encode(s.hub.Status(), snap)
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// message is the JSON shape carried in the Struct
type message struct {
	Status   app.StatusInfo       `json:"status"`
	Snapshot transcript.Snapshot `json:"snapshot"`
}

func encode(status app.StatusInfo, snap transcript.Snapshot) (*structpb.Struct, error) {
	data, err := json.Marshal(message{Status: status, Snapshot: snap})
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return structpb.NewStruct(m)
}

// Decode turns a reply back into the status and snapshot
func Decode(msg *structpb.Struct) (app.StatusInfo, transcript.Snapshot, error) {
	data, err := msg.MarshalJSON()
	if err != nil {
		return app.StatusInfo{}, transcript.Snapshot{}, err
	}
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		return app.StatusInfo{}, transcript.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return m.Status, m.Snapshot, nil
}

// SubtitlesClient calls sublive.v1.Subtitles
type SubtitlesClient struct {
	cc grpc.ClientConnInterface
}

// NewSubtitlesClient wraps a client connection
func NewSubtitlesClient(cc grpc.ClientConnInterface) *SubtitlesClient {
	return &SubtitlesClient{cc: cc}
}

// Snapshot fetches the current state
func (c *SubtitlesClient) Snapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, snapshotMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch opens the snapshot stream
func (c *SubtitlesClient) Watch(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &subtitlesServiceDesc.Streams[0], watchMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
