package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	grpcapi "live-caption-service/internal/api/grpc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check HTTP readiness and gRPC health",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var statusGRPCAddr string

func init() {
	statusCmd.Flags().StringVar(&statusGRPCAddr, "grpc", envOr("CAPTION_GRPC", "localhost:50051"), "gRPC address")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	out := cmd.OutOrStdout()

	healthy := true
	report := func(name string, err error) {
		if err != nil {
			healthy = false
			fmt.Fprintf(out, "  %-12s DOWN  %v\n", name, err)
			return
		}
		fmt.Fprintf(out, "  %-12s OK\n", name)
	}

	report("http", newAPIClient(serverURL).call(ctx, http.MethodGet, "/v1/readiness", nil, nil))
	report("grpc", checkGRPC(ctx, statusGRPCAddr))

	var c caption
	if err := newAPIClient(serverURL).call(ctx, http.MethodGet, "/v1/caption", nil, &c); err == nil {
		fmt.Fprintf(out, "  %-12s %s\n", "caption", c.State)
	}

	if !healthy {
		return errors.New("service unhealthy")
	}
	return nil
}

func checkGRPC(ctx context.Context, addr string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: grpcapi.ServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("status %s", resp.GetStatus())
	}
	return nil
}
