// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authlobby/internal/banner"
	"github.com/holomush/authlobby/internal/bridge"
	"github.com/holomush/authlobby/internal/config"
	"github.com/holomush/authlobby/internal/dispatch"
	"github.com/holomush/authlobby/internal/guard"
	"github.com/holomush/authlobby/internal/language"
	"github.com/holomush/authlobby/internal/logging"
	"github.com/holomush/authlobby/internal/observability"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the lobby and wait for a host adapter",
		Long: `Verify the banner assets, then listen for a host adapter. Each
attached host gets a banner surface, a view-lock anchor and a frozen
world until it disconnects.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg, nil)
		},
	}
}

// openAssets opens the banner store and the language catalog.
func openAssets(cfg config.Config) (*banner.Store, *language.Catalog, error) {
	store, err := banner.OpenDir(cfg.Banners.Dir)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, nil, err
	}
	return store, catalog, nil
}

// runServe runs until ctx is done or a server fails. ready, when not nil, is
// closed once the bridge is listening; its address is sent first.
func runServe(ctx context.Context, cmd *cobra.Command, cfg config.Config, ready chan<- string) error {
	logger, err := logging.SetDefault(logging.Options{
		Service: "authlobby",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	store, catalog, err := openAssets(cfg)
	if err != nil {
		return oops.Wrapf(err, "refusing to start")
	}
	if err := banner.NewResolver(store, catalog).Verify(); err != nil {
		return oops.Wrapf(err, "refusing to start")
	}
	logger.Info("banner assets verified",
		"dir", cfg.Banners.Dir,
		"languages", len(catalog.Codes()),
		"base_language", catalog.Base())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The loop outlives ctx so the lobby can be torn down on shutdown.
	loop := dispatch.New(dispatch.WithLogger(logger.With("component", "dispatch")))
	loop.Start(context.WithoutCancel(ctx))
	defer func() {
		loop.Stop()
		loop.Wait()
	}()

	bridgeSrv, err := bridge.NewServer(bridge.Deps{
		Loop:    loop,
		Store:   store,
		Catalog: catalog,
		Lobby:   cfg.Lobby(),
	},
		bridge.WithConstraint(cfg.Bridge.Constraint),
		bridge.WithCallTimeout(cfg.Bridge.CallTimeout),
		bridge.WithLogger(logger.With("component", "bridge")),
	)
	if err != nil {
		return err
	}

	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, version, bridgeSrv.Ready,
			banner.RegisterMetrics,
			guard.RegisterMetrics,
			bridge.RegisterMetrics,
		)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Wrapf(err, "start observability server")
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Bridge.Path, bridgeSrv.Handler())
	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	listener, err := net.Listen("tcp", cfg.Bridge.Addr)
	if err != nil {
		stopObservability(obsServer)
		return oops.Code("BRIDGE_LISTEN_FAILED").With("addr", cfg.Bridge.Addr).Wrap(err)
	}

	bridgeErrCh := make(chan error, 1)
	go func() {
		defer close(bridgeErrCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			bridgeErrCh <- serveErr
		}
	}()

	addr := listener.Addr().String()
	cmd.Println("authlobby listening on " + addr + cfg.Bridge.Path)
	logger.Info("lobby ready for host adapter", "addr", addr, "path", cfg.Bridge.Path)
	if ready != nil {
		ready <- addr
		close(ready)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err, ok := <-bridgeErrCh:
		if ok && err != nil {
			serveErr = oops.Code("BRIDGE_SERVE_FAILED").Wrap(err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping bridge listener", "error", err)
	}
	if err := bridgeSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("lobby teardown incomplete", "error", err)
	}
	bridgeSrv.Wait()
	stopObservability(obsServer)

	logger.Info("shutdown complete")
	return serveErr
}

func stopObservability(s *observability.Server) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server failed, shutting down", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
