// Package server exposes the gRPC side of the service: the standard health
// protocol, guarded by the bearer token interceptor for anything else.
package server

import (
	"campus-chat/auth"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the chat core.
const ServiceName = "campus.chat.Core"

type HealthServer struct {
	log    *slog.Logger
	health *health.Server
}

func NewHealthServer(log *slog.Logger) *HealthServer {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{log: log, health: h}
}

// MarkServing is called once the stores are loaded.
func (h *HealthServer) MarkServing() {
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	h.log.Info("Health status set to serving")
}

// Shutdown reports NOT_SERVING to every watcher and ignores later updates.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
}

// NewGRPCServer creates a gRPC server with the health service registered.
// Health checks are public; any other method requires a bearer token.
func NewGRPCServer(secret []byte, h *HealthServer) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(auth.UnaryInterceptor(secret,
		healthpb.Health_Check_FullMethodName,
	)))
	healthpb.RegisterHealthServer(s, h.health)
	return s
}
