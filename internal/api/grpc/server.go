// Package grpcapi bootstraps the gRPC listener: health checks, reflection and
// the metrics and logging interceptors.
package grpcapi

import (
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"live-caption-service/internal/observability"
	"live-caption-service/internal/observability/metrics"
)

// ServiceName is the health-check name reported for the caption controller.
const ServiceName = "live.caption.CaptionService"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger zerolog.Logger
}

// New creates a gRPC server with health and reflection registered. Both
// services start NOT_SERVING until SetServing(true).
func New(m *metrics.Metrics, logger zerolog.Logger) *Server {
	g := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(m, logger)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(m, logger)),
	)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(g)

	s := &Server{grpc: g, health: hs, logger: logger}
	s.SetServing(false)
	return s
}

// SetServing flips the health status of the server and the caption service.
func (s *Server) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve accepts connections on lis until Stop or GracefulStop.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC server started")
	return s.grpc.Serve(lis)
}

// GracefulStop marks the server NOT_SERVING and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.logger.Info().Msg("Shutting down gRPC server")
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
