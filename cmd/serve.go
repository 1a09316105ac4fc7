// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-core-stack/kyc-proxy/pkg/airtable"
	"github.com/go-core-stack/kyc-proxy/pkg/config"
	"github.com/go-core-stack/kyc-proxy/pkg/proxy"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the KYC proxy",
		Long: `Run the HTTP proxy.

Routes (relative to the route path, default /kyc):
  GET /kyc               relay the Airtable table listing unchanged
  GET /kyc/{account_id}  effective KYC status for a NEAR account
  GET /healthz           liveness

The process refuses to start when AIRTABLE_API_TOKEN is missing or invalid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := setupLogging(cfg, cmd.ErrOrStderr()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}
}

// run serves until ctx is cancelled, then shuts the server down gracefully.
func run(ctx context.Context, cfg config.Config) error {
	proxyHandler, err := proxy.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to construct proxy: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
	}

	server := &http.Server{
		Handler:      proxyHandler,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("listen_addr", listener.Addr().String()).
			Str("route", cfg.RoutePath).
			Str("upstream", airtable.TableURL(cfg.Airtable).String()).
			Msg("starting KYC proxy")
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("proxy server exited unexpectedly: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdown(server, cfg.GracefulShutdownTimeout)
	return nil
}

func shutdown(srv *http.Server, timeout time.Duration) {
	log.Info().Msg("shutting down KYC proxy")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed; forcing close")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("forced close failed")
		}
	}

	log.Info().Msg("proxy stopped")
}
