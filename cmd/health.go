package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/facelogin/internal/grpcclient"
	"github.com/example/facelogin/internal/grpcserver"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query the gRPC health service of a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := grpcclient.CheckHealth(cmd.Context(), mustGetString(cmd, "addr"), mustGetString(cmd, "service"), zap.NewNop())
		if err != nil {
			return err
		}
		fmt.Println(status.String())
		if status != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("service is %s", status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().String("addr", "localhost:9090", "gRPC health service address")
	healthCmd.Flags().String("service", grpcserver.ServiceName, "Service name to check; empty for overall status")
}
