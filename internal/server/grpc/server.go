// Package grpcserver runs the operational gRPC listener: health checks backed
// by a database probe, plus server reflection.
package grpcserver

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check name of the course API.
const ServiceName = "coursekeeper.v1.CourseKeeper"

const pingTimeout = 2 * time.Second

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health publishes serving status from periodic database pings.
type Health struct {
	srv      *health.Server
	db       Pinger
	log      *zap.Logger
	interval time.Duration

	mu   sync.Mutex
	last healthpb.HealthCheckResponse_ServingStatus
}

// NewHealth starts NOT_SERVING until the first successful probe.
func NewHealth(db Pinger, interval time.Duration, log *zap.Logger) *Health {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	h := &Health{srv: health.NewServer(), db: db, log: log, interval: interval}
	h.publish(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Server returns the grpc_health_v1 implementation.
func (h *Health) Server() healthpb.HealthServer { return h.srv }

// Probe pings the database once and publishes the result.
func (h *Health) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	err := h.db.Ping(ctx)
	if err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}

	h.mu.Lock()
	changed := st != h.last
	h.mu.Unlock()
	if changed {
		if err != nil {
			h.log.Warn("database unreachable", zap.Error(err))
		} else {
			h.log.Info("database reachable")
		}
	}
	h.publish(st)
	return st
}

func (h *Health) publish(st healthpb.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	h.last = st
	h.mu.Unlock()
	h.srv.SetServingStatus("", st)
	h.srv.SetServingStatus(ServiceName, st)
}

// Run probes every interval until ctx is done, then marks everything NOT_SERVING.
func (h *Health) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	h.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-t.C:
			h.Probe(ctx)
		}
	}
}

// NewServer builds the gRPC server with panic recovery and access logging.
func NewServer(log *zap.Logger, h *Health, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
		grpc.ChainStreamInterceptor(RecoverStream(log)),
	)
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.srv)
	reflection.Register(s)
	return s
}
