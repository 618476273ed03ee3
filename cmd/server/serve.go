package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kunal-Gupta28/Connectly/internal/audit"
	"github.com/Kunal-Gupta28/Connectly/internal/config"
	"github.com/Kunal-Gupta28/Connectly/internal/discovery"
	"github.com/Kunal-Gupta28/Connectly/internal/logging"
	"github.com/Kunal-Gupta28/Connectly/internal/server"
	"github.com/Kunal-Gupta28/Connectly/internal/signaling"
	"github.com/Kunal-Gupta28/Connectly/internal/version"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadServer(v, cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logging.Init(cfg.LogLevel, slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var opts []signaling.Option
	var recorder *audit.Recorder
	if cfg.AuditDriver != "" {
		store, err := audit.Open(ctx, cfg.AuditDriver, cfg.AuditDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		recorder = audit.NewRecorder(store, 1024)
		opts = append(opts, signaling.WithObserver(recorder))
		slog.Info("room audit enabled", "driver", cfg.AuditDriver)
	}

	hub := signaling.NewHub(opts...)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		cancel()
		<-hubDone
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	if cfg.MDNSEnabled {
		port := ln.Addr().(*net.TCPAddr).Port
		shutdownMDNS, err := discovery.Advertise(cfg.MDNSInstance, port, "/ws")
		if err != nil {
			slog.Warn("mDNS advertising disabled", "err", err)
		} else {
			defer shutdownMDNS()
			slog.Info("advertising on local network", "service", discovery.ServiceType, "instance", cfg.MDNSInstance)
		}
	}

	srv := &http.Server{
		Handler: server.NewRouter(hub, server.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			SendQueueSize:  cfg.SendQueueSize,
			Client: signaling.ClientOptions{
				MaxMessageSize: cfg.MaxMessageSize,
				RateLimit:      cfg.RateLimit,
				RateBurst:      cfg.RateBurst,
			},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	slog.Info("starting signaling server", "addr", ln.Addr().String(), "version", version.Version)

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Warn("http shutdown", "err", shutdownErr)
	}

	// Stopping the hub closes every websocket it still owns.
	cancel()
	<-hubDone
	if recorder != nil {
		recorder.Close()
	}
	return err
}
