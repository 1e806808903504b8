package api

import (
	"context"
	"time"

	"github.com/cuemby/stkgate/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for the gateway.
const ServiceName = "stkgate"

// GRPCHealth is the grpc.health.v1 service. Its serving status follows the
// gateway readiness reported by the metrics package.
type GRPCHealth struct {
	srv *health.Server
}

// NewGRPCHealth creates the service in NOT_SERVING state.
func NewGRPCHealth() *GRPCHealth {
	h := &GRPCHealth{srv: health.NewServer()}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register attaches the service to a gRPC server.
func (h *GRPCHealth) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Sync copies the current readiness into the serving status.
func (h *GRPCHealth) Sync() {
	if metrics.GetReadiness().Status == "ready" {
		h.set(healthpb.HealthCheckResponse_SERVING)
		return
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
}

// Follow calls Sync every interval until ctx is done.
func (h *GRPCHealth) Follow(ctx context.Context, interval time.Duration) {
	h.Sync()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sync()
		}
	}
}

// Shutdown reports NOT_SERVING to all watchers and ignores later updates.
func (h *GRPCHealth) Shutdown() {
	h.srv.Shutdown()
}

func (h *GRPCHealth) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(ServiceName, status)
}
