package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BearBump/WipBox/internal/api/wipapi"
	"github.com/BearBump/WipBox/internal/broker/kafka"
	"github.com/BearBump/WipBox/internal/broker/messages"
	"github.com/BearBump/WipBox/internal/services/snapshots"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type wipAPIOpts struct {
	grpcAddr     string
	httpAddr     string
	grpcDialAddr string
	swaggerPath  string

	checkpointTopic string
	statusTopic     string
	consumerGroup   string

	onListen func(grpcAddr, httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runWipAPI(ctx context.Context, opts wipAPIOpts, svc *snapshots.Service, checkpoints, statuses kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	grpcLis, err := net.Listen("tcp", opts.grpcAddr)
	if err != nil {
		return err
	}
	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}

	if opts.onListen != nil {
		opts.onListen(grpcLis.Addr().String(), httpLis.Addr().String())
	}

	dialAddr := opts.grpcDialAddr
	if dialAddr == "" || strings.HasSuffix(dialAddr, ":0") {
		dialAddr = grpcLis.Addr().String()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hs := health.NewServer()

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- runGRPCServer(ctx, grpcLis, hs)
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runGatewayServer(ctx, httpLis, dialAddr, opts.swaggerPath, wipapi.New(svc))
	}()

	// Ошибка обработки без commit: процесс падает, сообщение придёт заново после рестарта.
	consumeErr := make(chan error, 2)
	go func() {
		slog.Info("kafka consumer started", "topic", opts.checkpointTopic, "group", opts.consumerGroup)
		consumeErr <- checkpoints.Consume(ctx, checkpointHandler(ctx, svc))
	}()
	go func() {
		slog.Info("kafka consumer started", "topic", opts.statusTopic, "group", opts.consumerGroup)
		consumeErr <- statuses.Consume(ctx, statusHandler(ctx, svc))
	}()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-grpcErr:
	case runErr = <-httpErr:
	case runErr = <-consumeErr:
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return runErr
}

func checkpointHandler(ctx context.Context, svc *snapshots.Service) func(key, value []byte) error {
	return func(_ []byte, value []byte) error {
		var m messages.CheckpointRecorded
		if err := json.Unmarshal(value, &m); err != nil {
			return errors.Wrap(kafka.ErrPoisonMessage, err.Error())
		}
		_, err := svc.IngestCheckpoint(ctx, m)
		return poison(err)
	}
}

func statusHandler(ctx context.Context, svc *snapshots.Service) func(key, value []byte) error {
	return func(_ []byte, value []byte) error {
		var m messages.StatusExtracted
		if err := json.Unmarshal(value, &m); err != nil {
			return errors.Wrap(kafka.ErrPoisonMessage, err.Error())
		}
		return poison(svc.IngestStatus(ctx, m))
	}
}

// poison помечает невалидные сообщения, чтобы consumer их закоммитил и пошёл дальше.
func poison(err error) error {
	if errors.Is(err, snapshots.ErrInvalidInput) {
		return errors.Wrap(kafka.ErrPoisonMessage, err.Error())
	}
	return err
}

func runGRPCServer(ctx context.Context, lis net.Listener, hs *health.Server) error {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			s.Stop()
		}
		_ = lis.Close()
	}()

	slog.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.Serve(lis)
}

func runGatewayServer(ctx context.Context, lis net.Listener, grpcAddr string, swaggerPath string, api *wipapi.WipAPI) error {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	r := chi.NewRouter()
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, swaggerPath)
	})

	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	api.Routes(r)

	// /healthz проксируется в gRPC health сервис.
	mux := runtime.NewServeMux(runtime.WithHealthzEndpoint(healthpb.NewHealthClient(conn)))
	r.Mount("/", mux)

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP gateway listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
