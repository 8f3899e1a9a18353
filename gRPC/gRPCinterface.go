package proto

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"BDDLabelServer/bdd"
	iface "BDDLabelServer/interface"
	"BDDLabelServer/logger"
	"BDDLabelServer/monitor"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

type Server struct {
	startedAt time.Time
}

func NewServer() *Server {
	return &Server{startedAt: time.Now()}
}

// toStatus 转换错误都是调用方输入问题
func toStatus(err error) error {
	var domainErr *bdd.DomainError
	var missingErr *bdd.MissingFieldError
	var malformedErr *bdd.MalformedInputError
	if errors.As(err, &domainErr) || errors.As(err, &missingErr) || errors.As(err, &malformedErr) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func (s *Server) Decode(ctx context.Context, req *DecodeRequest) (*DecodeResponse, error) {
	monitor.RequestsTotal.WithLabelValues("grpc_decode").Inc()
	if req.Record == nil {
		return nil, status.Error(codes.InvalidArgument, "record is required")
	}
	labels, err := bdd.Decode(req.Record, iface.FrameSize{Width: int(req.Width), Height: int(req.Height)})
	if err != nil {
		monitor.RecordError(err)
		return nil, toStatus(err)
	}
	monitor.SamplesImported.Inc()
	return &DecodeResponse{Success: true, Labels: labels}, nil
}

func (s *Server) Encode(ctx context.Context, req *EncodeRequest) (*EncodeResponse, error) {
	monitor.RequestsTotal.WithLabelValues("grpc_encode").Inc()
	if req.Filename == "" {
		return nil, status.Error(codes.InvalidArgument, "filename cannot be empty")
	}
	record, err := bdd.Encode(req.Labels, iface.FrameSize{Width: int(req.Width), Height: int(req.Height)}, req.Filename)
	if err != nil {
		monitor.RecordError(err)
		return nil, toStatus(err)
	}
	monitor.SamplesExported.Inc()
	return &EncodeResponse{Success: true, Record: record}, nil
}

func (s *Server) Health(ctx context.Context, _ *emptypb.Empty) (*HealthResponse, error) {
	return &HealthResponse{
		Status:        "SERVING",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}, nil
}

func logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		logger.Log().Warn("gRPC call failed", zap.String("method", info.FullMethod), zap.Duration("latency", time.Since(start)), zap.Error(err))
	} else {
		logger.Log().Debug("gRPC call", zap.String("method", info.FullMethod), zap.Duration("latency", time.Since(start)))
	}
	return resp, err
}

func NewGRPCServer() *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(logInterceptor))
	RegisterConvertServiceServer(s, NewServer())
	return s
}

func StartGRPCServer(port int) (*grpc.Server, error) {
	addr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %s: %w", addr, err)
	}
	s := NewGRPCServer()
	go func() {
		logger.Log().Info("gRPC server listening", zap.String("addr", addr))
		if err := s.Serve(lis); err != nil {
			logger.Log().Error("gRPC server stopped", zap.Error(err))
		}
	}()
	return s, nil
}
