package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/WipBox/config"
	"github.com/BearBump/WipBox/internal/services/builder"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type builderHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	runner       *builder.Runner
	limiter      triggerLimiter
	triggerLimit int64
	cfg          *config.Config
}

func runBuilderHTTPServer(ctx context.Context, opts builderHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("builder swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("builder swagger file not found: %s", opts.swaggerPath)
	}
	if opts.triggerLimit <= 0 {
		opts.triggerLimit = 6
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.runner == nil {
			_, _ = w.Write([]byte(`{"error":"runner not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.runner.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Без секретов, только настройки сборки.
		c := opts.cfg.WipBox
		out := map[string]any{
			"daysBack":               c.DaysBack,
			"snapshotHours":          c.SnapshotHours,
			"unitKinds":              c.UnitKinds,
			"shipmentDayPolicy":      c.ShipmentDayPolicy,
			"builderIntervalSeconds": c.BuilderIntervalSeconds,
			"builderConcurrency":     c.BuilderConcurrency,
			"builderPartitions":      c.BuilderPartitions,
			"builderFlushSize":       c.BuilderFlushSize,
			"sinkChunkSize":          c.SinkChunkSize,
			"fullRefresh":            c.FullRefresh,
			"extractDays":            c.ExtractDays,
			"retentionDays":          c.RetentionDays,
			"csvExportDir":           c.CSVExportDir,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.runner == nil {
			_, _ = w.Write([]byte(`{"error":"runner not wired"}`))
			return
		}
		if opts.limiter != nil {
			ok, _, err := opts.limiter.AllowPerMinute(r.Context(), "trigger", opts.triggerLimit)
			if err != nil {
				// redis недоступен: не блокируем ручной запуск
				slog.Warn("trigger rate limiter failed", "error", err.Error())
			} else if !ok {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"too many triggers, try again later"}`))
				return
			}
		}
		opts.runner.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("builder HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
