package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	inputredis "sentinelir/internal/input/redis"
	"sentinelir/internal/logger"
	"sentinelir/internal/metrics"
	"sentinelir/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consume security events and respond to incidents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline()
	},
}

func runPipeline() error {
	s := cfg.Sentinel
	logger.Infof("SentinelIR starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx, cfg, buildOptions{audit: true, metrics: s.Metrics.Enabled})
	if err != nil {
		logger.Errorf("Failed to build service: %v", err)
		return err
	}
	defer a.close()
	logger.Infof("Store mode: %s", s.Store.Mode)

	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:          s.Input.Redis.Addr,
		Password:      s.Input.Redis.Password,
		DB:            s.Input.Redis.DB,
		Key:           s.Input.Redis.Key,
		DeadLetterKey: s.Input.Redis.DeadLetterKey,
		BlockTimeout:  s.Input.Redis.BlockTimeout,
	})
	if err != nil {
		logger.Errorf("Failed to create Redis consumer: %v", err)
		return err
	}

	pipe := pipeline.NewEventPipeline(consumer, a.stores.writer, a.svc, s.Pipeline.Workers)
	defer func() {
		if err := pipe.Close(); err != nil {
			logger.Errorf("Failed to close pipeline: %v", err)
		}
	}()

	var wg sync.WaitGroup

	var srv *http.Server
	if s.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{Addr: s.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Infof("Metrics listening on %s", s.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Metrics server failed: %v", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		refreshLoop(ctx, a, s.Catalog.RefreshInterval)
	}()

	if s.Metrics.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			depthLoop(ctx, consumer, a.metrics, 15*time.Second)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- pipe.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Infof("Received signal %s, shutting down", sig)
		cancel()
		runErr = <-errCh
	case runErr = <-errCh:
		cancel()
	}

	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		stop()
	}
	wg.Wait()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Errorf("Pipeline error: %v", runErr)
		return runErr
	}
	logger.Infof("SentinelIR stopped")
	return nil
}

func refreshLoop(ctx context.Context, a *app, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	a.metrics.SetCatalogDegraded(a.catalog.Current().Degraded())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = a.catalog.Refresh(ctx)
			a.metrics.SetCatalogDegraded(a.catalog.Current().Degraded())
		}
	}
}

func depthLoop(ctx context.Context, c *inputredis.Consumer, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Depth(ctx)
			if err != nil {
				logger.Debugf("Queue depth unavailable: %v", err)
				continue
			}
			m.SetQueueDepth(n)
		}
	}
}
