// Package grpcserver exposes the standard gRPC health service for the face
// login server, backed by live dependency checks.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name the server reports on.
const ServiceName = "facelogin.v1.FaceLogin"

// DefaultCheckInterval is how often dependency checks run.
const DefaultCheckInterval = 10 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	checks   map[string]Check
	interval time.Duration
	logger   *zap.Logger
	stopOnce sync.Once
}

// New builds a server that reports SERVING while every check passes.
func New(checks map[string]Check, interval time.Duration, logger *zap.Logger) *Server {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	s := &Server{
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		checks:   checks,
		interval: interval,
		logger:   logger,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Serve runs checks and answers health requests on lis until ctx ends.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.watch(ctx)
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks every service as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.health.Shutdown()
		s.grpc.GracefulStop()
	})
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Server) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, s.interval)
		err := check(checkCtx)
		cancel()
		if err != nil {
			s.logger.Warn("dependency check failed", zap.String("dependency", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.setStatus(status)
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
