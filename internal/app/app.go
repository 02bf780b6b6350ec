// Package app assembles the keyvisord process: logger, service and HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sourcegraph/conc"

	"keyvisor/internal/config"
	"keyvisor/internal/httpapi"
	"keyvisor/internal/logging"
	"keyvisor/internal/service"
)

// Run serves cfg until ctx is done, then shuts the HTTP server down, stops
// the supervisors and saves state. Logs go to out. ready, if non-nil, is
// called with the bound listen address once the server accepts connections.
func Run(ctx context.Context, cfg config.Config, out io.Writer, ready func(addr string)) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, out)
	if err != nil {
		return err
	}

	svc, err := service.New(service.Config{
		CounterInterval:   cfg.CounterInterval(),
		CounterLimit:      cfg.CounterLimit,
		UploadEndpoint:    cfg.UploadEndpoint,
		UploadMaxAttempts: cfg.UploadMaxAttempts,
		UploadBackoff:     cfg.UploadBackoff(),
		UploadTimeout:     cfg.UploadTimeout(),
		SpoolDir:          cfg.SpoolDir,
		StateFile:         cfg.StateFile,
		Logger:            log,
	})
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpapi.SetLogger(log)
	httpapi.SetRequestLogLevel(cfg.HTTPLogLevel)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetEventHeartbeat(cfg.EventHeartbeat())
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)
	// Streaming handlers end when ctx is cancelled so Shutdown does not wait on them.
	httpapi.SetBaseContext(ctx)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           httpapi.NewMux(service.NewAPI(svc)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	svcCtx, stopSvc := context.WithCancel(context.Background())
	defer stopSvc()
	errc := make(chan error, 2)
	var wg conc.WaitGroup
	wg.Go(func() {
		if err := svc.Run(svcCtx); err != nil {
			errc <- fmt.Errorf("service: %w", err)
		}
	})
	wg.Go(func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	})

	addr := ln.Addr().String()
	log.Info().Str("addr", addr).Msg("keyvisord listening")
	if ready != nil {
		ready(addr)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	stopSvc()
	wg.Wait()

	select {
	case err := <-errc:
		runErr = errors.Join(runErr, err)
	default:
	}
	log.Info().Msg("keyvisord stopped")
	return runErr
}
