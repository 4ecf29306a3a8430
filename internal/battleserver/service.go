// Package battleserver exposes the battle engines over gRPC.
//
// Messages are google.protobuf.Struct documents; the caller's user ID travels in
// the x-user-id metadata key and is trusted as given.
package battleserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "legendraid.battle.v1.BattleService"
	// UserIDKey is the metadata key carrying the caller's user ID.
	UserIDKey = "x-user-id"
)

// BattleServiceServer is the server API for the battle service.
type BattleServiceServer interface {
	Load(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Act(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Forfeit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateRaid(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AwaitSetup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateDuel(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(BattleServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, fn call) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(BattleServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(BattleServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes BattleService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BattleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Load", BattleServiceServer.Load),
		unary("Act", BattleServiceServer.Act),
		unary("Forfeit", BattleServiceServer.Forfeit),
		unary("CreateRaid", BattleServiceServer.CreateRaid),
		unary("AwaitSetup", BattleServiceServer.AwaitSetup),
		unary("CreateDuel", BattleServiceServer.CreateDuel),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "legendraid/battle/v1/battle.proto",
}

// RegisterBattleServiceServer registers srv on s.
func RegisterBattleServiceServer(s grpc.ServiceRegistrar, srv BattleServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls BattleService over conn.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Load calls BattleService.Load.
func (c *Client) Load(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Load", in, opts...)
}

// Act calls BattleService.Act.
func (c *Client) Act(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Act", in, opts...)
}

// Forfeit calls BattleService.Forfeit.
func (c *Client) Forfeit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Forfeit", in, opts...)
}

// CreateRaid calls BattleService.CreateRaid.
func (c *Client) CreateRaid(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateRaid", in, opts...)
}

// AwaitSetup calls BattleService.AwaitSetup.
func (c *Client) AwaitSetup(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "AwaitSetup", in, opts...)
}

// CreateDuel calls BattleService.CreateDuel.
func (c *Client) CreateDuel(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateDuel", in, opts...)
}
