package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ixurl.local/internal/platform/config"
)

// New builds the public server on cfg.Addr.
func New(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		Addr:              cfg.Addr,
	}
}

// NewAdmin builds the server for /metrics, pprof and probes on cfg.AdminAddr.
// Write timeout is left unset so CPU profiles can stream.
func NewAdmin(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		Addr:              cfg.AdminAddr,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Serve runs srv until it fails or ctx is done, then shuts down within
// shutdownTimeout. A clean shutdown returns nil.
func Serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	return nil
}
