package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/k11v/etex/internal/builder"
	"github.com/k11v/etex/internal/relay"
	"github.com/k11v/etex/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	run := func() int {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		cfg, err := parseConfig(os.Environ())
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}

		log := newLogger(cfg.Development)
		slog.SetDefault(log)

		b, err := builder.New(&cfg.Builder, log)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		r := relay.New(&cfg.Relay, b, log)
		srv := server.New(&cfg.Server, log, r, cfg.Development)

		serveErr := make(chan error, 1)
		go func() {
			log.Info("starting server", "addr", srv.Addr)
			serveErr <- srv.ListenAndServe()
		}()

		select {
		case err = <-serveErr:
		case <-ctx.Done():
			log.Info("shutting down server")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			err = srv.Shutdown(shutdownCtx)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}

		return 0
	}
	os.Exit(run())
}

func newLogger(development bool) *slog.Logger {
	if development {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}
