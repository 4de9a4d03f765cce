package telemetry

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/oshokin/smokewatch/internal/logger"
)

// LoggingInterceptor injects the base logger into each call context and logs the outcome at debug level.
func LoggingInterceptor(base context.Context) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = logger.ToContext(ctx, logger.FromContext(base).With("method", info.FullMethod))

		start := time.Now()
		resp, err := handler(ctx, req)

		logger.DebugKV(ctx, "gRPC call",
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)

		return resp, err
	}
}
