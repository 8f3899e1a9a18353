package proto

import (
	"context"

	"BDDLabelServer/bdd"
	iface "BDDLabelServer/interface"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

const ServiceName = "bdd.ConvertService"

type DecodeRequest struct {
	Record *bdd.RawAnnotation `json:"record"`
	Width  int32              `json:"width"`
	Height int32              `json:"height"`
}

type DecodeResponse struct {
	Success bool               `json:"success"`
	Labels  *iface.ImageLabels `json:"labels"`
}

type EncodeRequest struct {
	Labels   *iface.ImageLabels `json:"labels"`
	Width    int32              `json:"width"`
	Height   int32              `json:"height"`
	Filename string             `json:"filename"`
}

type EncodeResponse struct {
	Success bool               `json:"success"`
	Record  *bdd.RawAnnotation `json:"record"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type ConvertServiceServer interface {
	Decode(context.Context, *DecodeRequest) (*DecodeResponse, error)
	Encode(context.Context, *EncodeRequest) (*EncodeResponse, error)
	Health(context.Context, *emptypb.Empty) (*HealthResponse, error)
}

func RegisterConvertServiceServer(s grpc.ServiceRegistrar, srv ConvertServiceServer) {
	s.RegisterService(&ConvertService_ServiceDesc, srv)
}

func _ConvertService_Decode_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DecodeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConvertServiceServer).Decode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Decode"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ConvertServiceServer).Decode(ctx, req.(*DecodeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ConvertService_Encode_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(EncodeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConvertServiceServer).Encode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Encode"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ConvertServiceServer).Encode(ctx, req.(*EncodeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ConvertService_Health_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConvertServiceServer).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Health"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ConvertServiceServer).Health(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var ConvertService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConvertServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Decode", Handler: _ConvertService_Decode_Handler},
		{MethodName: "Encode", Handler: _ConvertService_Encode_Handler},
		{MethodName: "Health", Handler: _ConvertService_Health_Handler},
	},
	Streams: []grpc.StreamDesc{},
}

type ConvertServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewConvertServiceClient(cc grpc.ClientConnInterface) *ConvertServiceClient {
	return &ConvertServiceClient{cc: cc}
}

func (c *ConvertServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *ConvertServiceClient) Decode(ctx context.Context, in *DecodeRequest, opts ...grpc.CallOption) (*DecodeResponse, error) {
	out := new(DecodeResponse)
	if err := c.invoke(ctx, "Decode", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ConvertServiceClient) Encode(ctx context.Context, in *EncodeRequest, opts ...grpc.CallOption) (*EncodeResponse, error) {
	out := new(EncodeResponse)
	if err := c.invoke(ctx, "Encode", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ConvertServiceClient) Health(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*HealthResponse, error) {
	out := new(HealthResponse)
	if err := c.invoke(ctx, "Health", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
