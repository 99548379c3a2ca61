package observability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"live-caption-service/internal/observability/metrics"
)

const healthService = "grpc.health.v1.Health"

// UnaryServerInterceptor records every unary call in m and logs it to logger.
// Health probes are logged at trace level so a polling load balancer does not
// flood the log.
func UnaryServerInterceptor(m *metrics.Metrics, logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		observeCall(ctx, m, logger, info.FullMethod, "unary", time.Since(start), err)
		return resp, err
	}
}

// StreamServerInterceptor is the streaming counterpart of UnaryServerInterceptor.
// Health Watch streams and reflection sessions pass through here.
func StreamServerInterceptor(m *metrics.Metrics, logger zerolog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		err := handler(srv, ss)
		observeCall(ss.Context(), m, logger, info.FullMethod, "stream", time.Since(start), err)
		return err
	}
}

func observeCall(ctx context.Context, m *metrics.Metrics, logger zerolog.Logger, fullMethod, kind string, d time.Duration, err error) {
	code := status.Code(err)
	m.RecordGRPCCall(fullMethod, code.String(), d.Seconds())

	service, method := SplitMethod(fullMethod)
	var ev *zerolog.Event
	switch {
	case code != codes.OK && code != codes.Canceled:
		ev = logger.Warn().Err(err)
	case service == healthService:
		ev = logger.Trace()
	default:
		ev = logger.Debug()
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ev = ev.Str("peer", p.Addr.String())
	}
	ev.Str("service", service).
		Str("method", method).
		Str("kind", kind).
		Str("code", code.String()).
		Dur("duration", d).
		Msg("gRPC call")
}

// SplitMethod splits "/pkg.Service/Method" into its service and method parts.
func SplitMethod(fullMethod string) (service, method string) {
	name := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "unknown", name
}
