package grpc

// proto.go describes trust.v1.TrustService by hand. Messages are plain
// structs carried by the JSON codec.

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "trust.v1.TrustService"

// TrustServiceServer is the server API for TrustService.
type TrustServiceServer interface {
	CheckTrust(context.Context, *CheckTrustRequest) (*CheckTrustResponse, error)
	ListEvaluators(context.Context, *ListEvaluatorsRequest) (*ListEvaluatorsResponse, error)
	mustEmbedUnimplementedTrustServiceServer()
}

// UnimplementedTrustServiceServer provides forward-compatible default implementations.
type UnimplementedTrustServiceServer struct{}

func (UnimplementedTrustServiceServer) CheckTrust(context.Context, *CheckTrustRequest) (*CheckTrustResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CheckTrust not implemented")
}
func (UnimplementedTrustServiceServer) ListEvaluators(context.Context, *ListEvaluatorsRequest) (*ListEvaluatorsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListEvaluators not implemented")
}
func (UnimplementedTrustServiceServer) mustEmbedUnimplementedTrustServiceServer() {}

// RegisterTrustServiceServer registers srv with the gRPC server.
func RegisterTrustServiceServer(s grpclib.ServiceRegistrar, srv TrustServiceServer) {
	s.RegisterService(&trustServiceDesc, srv)
}

var trustServiceDesc = grpclib.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TrustServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "CheckTrust", Handler: checkTrustHandler},
		{MethodName: "ListEvaluators", Handler: listEvaluatorsHandler},
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "trust/v1/trust.proto",
}

func checkTrustHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	req := new(CheckTrustRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrustServiceServer).CheckTrust(ctx, req)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/CheckTrust"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(TrustServiceServer).CheckTrust(ctx, req.(*CheckTrustRequest))
	})
}

func listEvaluatorsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	req := new(ListEvaluatorsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrustServiceServer).ListEvaluators(ctx, req)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ListEvaluators"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(TrustServiceServer).ListEvaluators(ctx, req.(*ListEvaluatorsRequest))
	})
}
