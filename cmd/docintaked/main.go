package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/docintake/internal/app"
	"github.com/joseph-ayodele/docintake/internal/async"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/ingest"
	"github.com/joseph-ayodele/docintake/internal/pipeline"
	"github.com/joseph-ayodele/docintake/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.LogLevel, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{
		Registerer: prometheus.DefaultRegisterer,
		OnStatus: func(r pipeline.Run) {
			logger.Debug("run.status", "run_id", r.ID, "path", r.Path, "status", r.Status)
		},
	}, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	queue := async.NewProcessorQueue(a.Processor, logger)

	// Folder intake
	if len(cfg.Server.WatchDirs) > 0 {
		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       cfg.Server.WatchDirs,
			InitialScan: true,
			Debounce:    750 * time.Millisecond,
			SkipHidden:  true,
		}, logger)
		if err != nil {
			logger.Error("watcher start failed", "err", err)
			os.Exit(1)
		}
		go func() {
			for {
				select {
				case p, ok := <-paths:
					if !ok {
						return
					}
					if err := queue.Enqueue(ctx, async.Job{Path: p}); err != nil {
						logger.Warn("watch.enqueue.failed", "path", p, "err", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					logger.Warn("watch.error", "err", err)
				}
			}
		}()
		logger.Info("watching", "dirs", cfg.Server.WatchDirs)
	}

	// gRPC health
	grpcServer, hs := server.NewGRPC()
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("grpc listen failed", "addr", cfg.Server.GRPCAddr, "err", err)
		os.Exit(1)
	}
	go server.WatchHealth(ctx, hs, a.Health, 15*time.Second, logger)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve failed", "err", err)
		}
	}()
	logger.Info("grpc serving", "addr", cfg.Server.GRPCAddr)

	// HTTP ops
	deps := server.Deps{Queue: queue, Health: a.Health, Gatherer: prometheus.DefaultGatherer}
	if a.Runs != nil {
		deps.Runs = a.Runs
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.New(deps, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "err", err)
		}
	}()
	logger.Info("http serving", "addr", cfg.Server.HTTPAddr)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	queue.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	logger.Info("stopped")
}
