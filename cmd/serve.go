/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"repairdesk/internal/bootstrap"
	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/errs"
	"repairdesk/internal/transport/httpapi"
	"repairdesk/internal/usecase/servicedesk"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the draft auto-saver",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *servicedesk.Service, saver *servicedesk.DraftAutoSaver) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
			if err := app.InitSchema(ctx); err != nil {
				return errs.Wrap(err, "initialize schema")
			}
		}

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}

		// In-flight requests keep the logger but outlive the shutdown signal.
		requestCtx := context.WithoutCancel(ctx)
		server := &http.Server{
			Addr:              addr,
			Handler:           httpapi.NewRouter(svc, saver, promhttp.Handler()),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext: func(_ net.Listener) context.Context {
				return requestCtx
			},
		}

		saverDone := make(chan struct{})
		go func() {
			defer close(saverDone)
			saver.Start(ctx)
		}()

		serveErr := make(chan error, 1)
		go func() {
			logging.Info(ctx, "http server started", slog.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		var runErr error
		select {
		case <-ctx.Done():
			logging.Info(ctx, "shutdown signal received")
		case err := <-serveErr:
			if err != nil {
				logging.Error(ctx, "http server failed", slog.Any("err", errs.Loggable(err)))
				runErr = errs.Wrap(err, "serve http")
			}
			stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Error(ctx, "http server shutdown failed", slog.Any("err", errs.Loggable(err)))
		}
		<-saverDone

		logging.Info(ctx, "http server stopped")
		return runErr
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: http.addr from config)")
	serveCmd.Flags().Bool("migrate", false, "Run schema migration before serving")
}
