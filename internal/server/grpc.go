package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC health service name reported for the pipeline.
const ServiceName = "docintake.Pipeline"

// NewGRPC returns a gRPC server carrying only the health and reflection services.
func NewGRPC() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(srv)
	return srv, hs
}

// WatchHealth mirrors check into hs every interval until ctx ends.
func WatchHealth(ctx context.Context, hs *health.Server, check func(context.Context) error, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if check == nil {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	last := healthpb.HealthCheckResponse_SERVING
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			status := healthpb.HealthCheckResponse_SERVING
			cctx, cancel := context.WithTimeout(ctx, interval)
			if err := check(cctx); err != nil {
				status = healthpb.HealthCheckResponse_NOT_SERVING
				logger.Warn("server.grpc.health.failed", "err", err)
			}
			cancel()
			if status != last {
				hs.SetServingStatus(ServiceName, status)
				last = status
			}
		}
	}
}
