package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/policy-extractor/internal/bootstrap"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/observability/logging"
	"github.com/joseph-ayodele/policy-extractor/internal/pipeline"
	svc "github.com/joseph-ayodele/policy-extractor/internal/server"
)

const serviceName = "policyd"

func main() {
	configPath := flag.String("config", os.Getenv("POLICY_CONFIG"), "optional YAML config file")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := logging.New(logging.Options{Service: serviceName, Level: cfg.Log.Level, Format: cfg.Log.Format})
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, serviceName, logger)
	if err != nil {
		logger.Error("failed to start extraction runtime", "error", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		rt.Close(context.Background())
		os.Exit(1)
	}

	// base64 inflates documents by a third; leave headroom for the envelope
	maxMsg := cfg.Server.MaxDocumentBytes*2 + 1<<20
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(svc.UnaryInterceptor(logger)),
		grpc.MaxRecvMsgSize(maxMsg),
		grpc.MaxSendMsgSize(maxMsg),
	)

	opts := []svc.ServiceOption{
		svc.WithMaxDocumentBytes(cfg.Server.MaxDocumentBytes),
		svc.WithBatch(pipeline.NewBatch(rt.Extractor, logger, pipeline.WithConcurrency(cfg.Pipeline.BatchConcurrency))),
	}
	if rt.Usage != nil {
		opts = append(opts, svc.WithUsage(rt.Usage))
	}
	svc.RegisterExtractionServer(grpcServer, svc.NewExtractionService(rt.Extractor, logger, opts...))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(svc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rt.Metrics.Handler())
		metricsServer = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics listening", "addr", cfg.Server.MetricsAddr)
	}

	logger.Info("policy-extractor listening", "addr", addr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	rt.Close(shutdownCtx)
}
