package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	grpcapi "live-caption-service/internal/api/grpc"
	"live-caption-service/internal/app"
	"live-caption-service/internal/config"
	httpapi "live-caption-service/internal/http"
	"live-caption-service/internal/observability"
	"live-caption-service/internal/observability/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Live caption service exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			application.Logger.Warn().Err(err).Msg("Resource cleanup failed")
		}
	}()

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		return err
	}
	grpcServer := grpcapi.New(application.Metrics, logging.WithComponent("grpc"))

	httpServer := &http.Server{
		Addr:              cfg.Service.HTTPAddr,
		Handler:           httpapi.NewRouter(application),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsServer := observability.NewServer(cfg.Observability.MetricsAddr, application.Registry, application.Ready)

	// The controller and outbox loops ignore ctx and are stopped by Shutdown
	// so the final commit still reaches Kafka.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return application.Controller.Run(context.Background()) })
	g.Go(func() error { return application.Outbox.Run(context.Background()) })
	g.Go(func() error { return grpcServer.Serve(lis) })
	g.Go(func() error {
		application.Logger.Info().Str("addr", httpServer.Addr).Msg("HTTP API started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	metricsServer.Start()

	if err := application.Start(); err != nil {
		return err
	}
	grpcServer.SetServing(true)

	<-gctx.Done()
	application.Logger.Info().Msg("Shutting down")

	grpcServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		application.Logger.Warn().Err(err).Msg("HTTP server shutdown failed")
	}
	application.Shutdown()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		application.Logger.Warn().Err(err).Msg("Metrics server shutdown failed")
	}

	return g.Wait()
}
