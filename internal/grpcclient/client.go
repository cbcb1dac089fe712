package grpcclient

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/facelogin/internal/logging"
)

// CheckHealth asks the server at addr for the serving status of service.
func CheckHealth(ctx context.Context, addr, service string, logger *zap.Logger) (healthpb.HealthCheckResponse_ServingStatus, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_health", logging.RequestIDFromContext(ctx), err)
		logger.Error("failed to dial health service", zap.Error(wrapped), zap.String("addr", addr))
		return healthpb.HealthCheckResponse_UNKNOWN, wrapped
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.check_health", logging.RequestIDFromContext(ctx), err)
		logger.Error("health check call failed", zap.Error(wrapped), zap.String("service", service))
		return healthpb.HealthCheckResponse_UNKNOWN, wrapped
	}
	return resp.GetStatus(), nil
}
