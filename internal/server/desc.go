package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages are google.protobuf.Struct so the service needs no generated code;
// field names follow the JSON tags of the entity types.
const (
	ServiceName = "policy.v1.ExtractionService"

	ExtractMethod      = "/" + ServiceName + "/Extract"
	ExtractBatchMethod = "/" + ServiceName + "/ExtractBatch"
	ValidateMethod     = "/" + ServiceName + "/Validate"
	UsageSummaryMethod = "/" + ServiceName + "/UsageSummary"
)

// ExtractionServer is the server API for the extraction service.
type ExtractionServer interface {
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExtractBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Validate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UsageSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterExtractionServer(s grpc.ServiceRegistrar, srv ExtractionServer) {
	s.RegisterService(&ExtractionServiceDesc, srv)
}

type unaryCall func(ExtractionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ExtractionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ExtractionServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: unaryHandler(ExtractMethod, ExtractionServer.Extract)},
		{MethodName: "ExtractBatch", Handler: unaryHandler(ExtractBatchMethod, ExtractionServer.ExtractBatch)},
		{MethodName: "Validate", Handler: unaryHandler(ValidateMethod, ExtractionServer.Validate)},
		{MethodName: "UsageSummary", Handler: unaryHandler(UsageSummaryMethod, ExtractionServer.UsageSummary)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "policy/v1/extraction.proto",
}

// ExtractionClient calls the extraction service over a client connection.
type ExtractionClient struct {
	cc grpc.ClientConnInterface
}

func NewExtractionClient(cc grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{cc: cc}
}

func (c *ExtractionClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) Extract(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ExtractMethod, in, opts...)
}

func (c *ExtractionClient) ExtractBatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ExtractBatchMethod, in, opts...)
}

func (c *ExtractionClient) Validate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ValidateMethod, in, opts...)
}

func (c *ExtractionClient) UsageSummary(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, UsageSummaryMethod, in, opts...)
}
