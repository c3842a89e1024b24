package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"

	"github.com/riskwatch/riskwatch/pkg/rpc"
	"github.com/riskwatch/riskwatch/server/internal/alerts"
	"github.com/riskwatch/riskwatch/server/internal/api"
	"github.com/riskwatch/riskwatch/server/internal/auth"
	"github.com/riskwatch/riskwatch/server/internal/config"
	"github.com/riskwatch/riskwatch/server/internal/dashboard"
	"github.com/riskwatch/riskwatch/server/internal/equipment"
	"github.com/riskwatch/riskwatch/server/internal/kafka"
	"github.com/riskwatch/riskwatch/server/internal/notify"
	"github.com/riskwatch/riskwatch/server/internal/receiver"
	"github.com/riskwatch/riskwatch/server/internal/risk"
	"github.com/riskwatch/riskwatch/server/internal/store"
	"github.com/riskwatch/riskwatch/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	s := cfg.Server

	level, _ := config.ParseLogLevel(s.LogLevel)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("riskwatch-server starting", "config", *configPath)
	slog.Info("config loaded",
		"grpc_port", s.GRPCPort,
		"http_port", s.HTTPPort,
		"auth_mode", s.Auth.Mode,
		"storage", s.Storage.Backend,
		"catalog", s.Equipment.Catalog,
		"kafka", s.Notify.Kafka.Enabled,
		"webhooks", len(s.Notify.Webhooks),
	)
	if sum := s.Risk.Weights.Sum(); !sum.Equal(decimal.NewFromInt(1)) {
		slog.Warn("risk weights do not sum to 1, scores may exceed 100", "sum", sum.String())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, s); err != nil {
		slog.Error("riskwatch-server failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, s config.ServerConfig) error {
	st, err := store.Open(ctx, store.Options{Backend: s.Storage.Backend, Path: s.Storage.Path})
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	catalog, err := equipment.Load(s.Equipment.Catalog)
	if err != nil {
		return err
	}
	slog.Info("equipment catalog loaded", "count", catalog.Len())
	if s.Equipment.Watch {
		go func() {
			if err := catalog.Watch(ctx, s.Equipment.Catalog); err != nil {
				slog.Error("equipment catalog watch stopped", "err", err)
			}
		}()
	}

	stats := dashboard.NewSource(catalog, st)

	// WebSocket hub: pushes alerts as they happen and stats every interval.
	hub := ws.New(stats, s.Notify.StatsInterval)
	go hub.Run(ctx)

	sinks := []notify.Sink{{Name: "websocket", Publisher: hub}}

	if s.Notify.Kafka.Enabled {
		k := s.Notify.Kafka
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers:      k.Brokers,
			TopicPrefix:  k.TopicPrefix,
			Compression:  k.Compression,
			RequiredAcks: k.RequiredAcks,
			MaxRetries:   k.MaxRetries,
			RetryBackoff: k.RetryBackoff,
			WriteTimeout: k.WriteTimeout,
		})
		if err != nil {
			return err
		}
		defer producer.Close() //nolint:errcheck
		sinks = append(sinks, notify.Sink{Name: "kafka", Publisher: producer})
	}

	if len(s.Notify.Webhooks) > 0 {
		targets := make([]alerts.Target, 0, len(s.Notify.Webhooks))
		for _, wh := range s.Notify.Webhooks {
			targets = append(targets, alerts.Target{Type: wh.Type, URL: wh.URL()})
		}
		notifier := alerts.New(targets)
		defer notifier.Close() //nolint:errcheck
		sinks = append(sinks, notify.Sink{Name: "webhook", Publisher: notifier})
	}

	fanout := notify.NewFanout(sinks...)
	slog.Info("alert sinks configured", "sinks", fanout.Names())

	pipeline := risk.NewPipeline(s.Risk.Weights.Weights(), catalog, st,
		risk.WithPublisher(fanout),
		risk.WithPushTimeout(s.Notify.PushTimeout),
		risk.WithReadingLog(st),
	)

	// gRPC server with optional API key authentication interceptor.
	interceptor := auth.APIKeyInterceptor(s.Auth.Mode, s.Auth.EffectiveHeader(), s.Auth.Key())
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	rpc.RegisterReadingServiceServer(grpcSrv, receiver.New(pipeline))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on gRPC port %d: %w", s.GRPCPort, err)
	}
	go func() {
		slog.Info("gRPC receiver listening", "port", s.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	// REST API, metrics and WebSocket share the HTTP port.
	handler := api.New(api.Deps{
		Pipeline:  pipeline,
		History:   st,
		Catalog:   catalog,
		Stats:     stats,
		Readings:  st,
		WebSocket: hub,
		Auth:      auth.APIKeyMiddleware(s.Auth.Mode, s.Auth.EffectiveHeader(), s.Auth.Key()),
	})
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", s.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("riskwatch-server shutting down")
	grpcSrv.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
