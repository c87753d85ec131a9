// Package grpcapi serves the verification decision over gRPC. Messages are
// google.protobuf.Struct values carrying the same fields as the HTTP JSON
// body, so no generated code is needed on either side.
package grpcapi

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/secureentry/secureentry/internal/logging"
	"github.com/secureentry/secureentry/internal/secureentry/types"
)

const (
	ServiceName  = "secureentry.v1.Verification"
	VerifyMethod = "/" + ServiceName + "/Verify"

	// KioskMetadataKey may carry the kiosk id when the message does not.
	KioskMetadataKey = "x-kiosk-id"
)

// Decider makes the verification decision.
type Decider interface {
	Decide(ctx context.Context, req types.VerifyRequest) (types.VerifyResponse, error)
}

type verificationServer interface {
	Verify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var verificationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*verificationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Verify", Handler: verifyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "secureentry/v1/verification.proto",
}

func verifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(verificationServer).Verify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: VerifyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(verificationServer).Verify(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type VerificationServer struct {
	decider Decider
	log     logging.Logger
}

func NewVerificationServer(d Decider, log logging.Logger) *VerificationServer {
	if log == nil {
		log = logging.Discard()
	}
	return &VerificationServer{decider: d, log: log}
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv *VerificationServer) {
	s.RegisterService(&verificationServiceDesc, srv)
}

// NewServer returns a gRPC server with the verification service and the
// logging interceptor installed.
func NewServer(d Decider, log logging.Logger, opts ...grpc.ServerOption) *grpc.Server {
	srv := NewVerificationServer(d, log)
	opts = append(opts, grpc.UnaryInterceptor(LoggingInterceptor(srv.log)))
	s := grpc.NewServer(opts...)
	Register(s, srv)
	return s
}

func (s *VerificationServer) Verify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	req := types.VerifyRequest{
		Image:     fields["image"].GetStringValue(),
		Timestamp: fields["timestamp"].GetStringValue(),
		KioskID:   fields["kiosk_id"].GetStringValue(),
	}
	if strings.TrimSpace(req.KioskID) == "" {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(KioskMetadataKey); len(v) > 0 {
				req.KioskID = v[0]
			}
		}
	}

	resp, err := s.decider.Decide(ctx, req)
	if err != nil {
		s.log.Error(ctx, "grpc verify failed", "err", err)
		return nil, status.Error(codes.Internal, "internal_error")
	}

	out, err := structpb.NewStruct(map[string]any{
		"granted":     resp.Granted,
		"code":        resp.Code,
		"message":     resp.Message,
		"server_time": resp.ServerTime,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}
