package grpcapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/secureentry/secureentry/internal/logging"
)

// LoggingInterceptor logs one line per unary call.
func LoggingInterceptor(log logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info(ctx, "grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"dur", time.Since(start).Truncate(time.Millisecond).String(),
		)
		return resp, err
	}
}
