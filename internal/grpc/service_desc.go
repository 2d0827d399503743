package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name used for routing and health checks.
const ServiceName = "feedback.v1.FeedbackReports"

const (
	GetReportMethod      = "/" + ServiceName + "/GetReport"
	SubmitFeedbackMethod = "/" + ServiceName + "/SubmitFeedback"
)

// FeedbackReportsServer exchanges google.protobuf.Struct messages so clients
// need no generated stubs.
type FeedbackReportsServer interface {
	GetReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SubmitFeedback(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterFeedbackReportsServer(s grpc.ServiceRegistrar, srv FeedbackReportsServer) {
	s.RegisterService(&FeedbackReportsServiceDesc, srv)
}

var FeedbackReportsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FeedbackReportsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetReport",
			Handler:    unaryHandler(GetReportMethod, FeedbackReportsServer.GetReport),
		},
		{
			MethodName: "SubmitFeedback",
			Handler:    unaryHandler(SubmitFeedbackMethod, FeedbackReportsServer.SubmitFeedback),
		},
	},
	Streams: []grpc.StreamDesc{},
}

type structMethod func(FeedbackReportsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FeedbackReportsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FeedbackReportsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
