package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/honeyhiveai/semconv-collector/internal/batcher"
	"github.com/honeyhiveai/semconv-collector/internal/config"
	grpcserver "github.com/honeyhiveai/semconv-collector/internal/grpc"
	"github.com/honeyhiveai/semconv-collector/internal/model"
	"github.com/honeyhiveai/semconv-collector/internal/semconv"
	"github.com/honeyhiveai/semconv-collector/internal/server"
	"github.com/honeyhiveai/semconv-collector/internal/uploader"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	store, err := semconv.NewStore()
	if err != nil {
		log.Fatalf("failed to load builtin patterns: %v", err)
	}
	if cfg.PatternDir != "" {
		if err := store.LoadDir(cfg.PatternDir); err != nil {
			log.Fatalf("failed to load patterns from %s: %v", cfg.PatternDir, err)
		}
	}

	reg := semconv.NewRegistry(semconv.WithMaxFieldChars(cfg.MaxFieldChars))
	proc, compileErrs := semconv.New(store, reg, cfg.Conventions,
		semconv.WithCapturePolicy(cfg.ContentCapture),
		semconv.WithStrictArrays(cfg.StrictArrays),
	)
	// A bad pattern disables that convention only; surface it at startup
	// rather than at the first matching span.
	for _, cerr := range compileErrs {
		slog.Error("convention disabled", "err", cerr)
	}
	if len(compileErrs) == len(cfg.Conventions) {
		log.Fatalf("no convention compiled; check CONVENTIONS=%v", cfg.Conventions)
	}

	ch := make(chan *model.Record, 1024)
	trSrv := server.NewRouter(cfg, proc, ch)

	up := uploader.New(uploader.Config{
		BaseURL:        cfg.Endpoint,
		MaxAttempts:    cfg.MaxRetries,
		BackoffInitial: cfg.BackoffInitial,
		BackoffMax:     30 * time.Second,
		InFlight:       100,
		APIKey:         cfg.DefaultAPIKey,
	})

	bat := batcher.New(up, batcher.Config{
		BatchSize:      cfg.BatchSize,
		FlushInterval:  cfg.FlushInterval,
		MaxBufferBytes: cfg.MaxBufferBytes,
		FilterConfig: batcher.FilterConfig{
			DropUnmatched: cfg.DropUnmatched,
		},
	}, ch)
	bat.Start()
	defer bat.Stop()

	// HTTP Server
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      trSrv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  75 * time.Second,
	}

	// gRPC Server (if enabled)
	var grpcSrv *grpcserver.Server
	if cfg.GRPCEnabled {
		grpcSrv, err = grpcserver.NewServer(cfg, proc, ch)
		if err != nil {
			log.Fatalf("failed to create gRPC server: %v", err)
		}
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("semconv-collector v%s HTTP server listening on %s", Version, httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	if cfg.GRPCEnabled && grpcSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("semconv-collector v%s gRPC server listening on %s", Version, grpcSrv.Addr())
			if err := grpcSrv.Start(); err != nil {
				log.Fatalf("gRPC server error: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown failed: %v", err)
	}

	if cfg.GRPCEnabled && grpcSrv != nil {
		grpcSrv.Stop()
	}

	close(ch)

	if err := bat.Flush(ctx); err != nil {
		log.Printf("failed to flush records: %v", err)
	}

	bat.Stop()

	log.Printf("shutdown complete")
}
