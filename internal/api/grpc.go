package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Fully qualified names of the calendar service and its methods.
const (
	CalendarServiceName    = "storecast.v1.Calendar"
	CalendarTagMethod      = "/storecast.v1.Calendar/Tag"
	CalendarTagRangeMethod = "/storecast.v1.Calendar/TagRange"
)

// CalendarServer is the server API of storecast.v1.Calendar. Messages are
// google.protobuf.Struct documents:
//
//	Tag:      {"date": "YYYY-MM-DD"}               -> tags of that date
//	TagRange: {"from": "YYYY-MM-DD", "to": "..."}  -> stream of tags, one per date
type CalendarServer interface {
	Tag(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	TagRange(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterCalendarServer registers srv on s.
func RegisterCalendarServer(s grpc.ServiceRegistrar, srv CalendarServer) {
	s.RegisterService(&CalendarServiceDesc, srv)
}

// CalendarServiceDesc describes storecast.v1.Calendar for grpc.Server and
// for clients opening streams.
var CalendarServiceDesc = grpc.ServiceDesc{
	ServiceName: CalendarServiceName,
	HandlerType: (*CalendarServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Tag", Handler: calendarTagHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "TagRange", Handler: calendarTagRangeHandler, ServerStreams: true},
	},
	Metadata: "storecast/v1/calendar.proto",
}

func calendarTagHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalendarServer).Tag(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CalendarTagMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CalendarServer).Tag(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func calendarTagRangeHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CalendarServer).TagRange(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}
