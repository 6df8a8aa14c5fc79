package api

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// MappingService is the health service name reported for the mapping loop.
const MappingService = "swarm.map.Mapping"

// Pausable reports whether the mapping loop is currently held.
type Pausable interface {
	IsPaused() bool
}

// HealthServer reports overall liveness plus the mapping loop, which is
// NOT_SERVING while paused.
type HealthServer struct {
	*health.Server
	engine Pausable
}

// NewHealthServer creates the health service and registers it on srv when
// srv is non-nil.
func NewHealthServer(srv *grpc.Server, engine Pausable) *HealthServer {
	h := &HealthServer{Server: health.NewServer(), engine: engine}
	if srv != nil {
		healthpb.RegisterHealthServer(srv, h.Server)
	}
	h.refresh()
	return h
}

func (h *HealthServer) refresh() {
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	status := healthpb.HealthCheckResponse_SERVING
	if h.engine.IsPaused() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.SetServingStatus(MappingService, status)
}

// Run polls the engine every interval until ctx is done, then marks every
// service NOT_SERVING.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return nil
		case <-ticker.C:
			h.refresh()
		}
	}
}
