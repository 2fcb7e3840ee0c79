package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/caddyserver/certmagic"
)

// Options configures the HTTP(S) listener.
type Options struct {
	Port string

	// TLSDomains switches to HTTPS on certmagic.HTTPSPort with ACME-managed
	// certificates for these names.
	TLSDomains []string
	ACMEEmail  string
	Production bool

	ShutdownTimeout time.Duration
}

// ListenAndServe serves handler until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, opts Options, handler http.Handler, logger *slog.Logger) error {
	ln, err := listen(ctx, opts, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket previews need unlimited write time
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", ln.Addr().String(), "tls", len(opts.TLSDomains) > 0)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func listen(ctx context.Context, opts Options, logger *slog.Logger) (net.Listener, error) {
	if len(opts.TLSDomains) == 0 {
		port := opts.Port
		if port == "" {
			port = "8080"
		}
		return net.Listen("tcp", ":"+port)
	}

	certmagic.DefaultACME.Email = opts.ACMEEmail
	certmagic.DefaultACME.Agreed = true
	if !opts.Production {
		certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
	}
	cfg := certmagic.NewDefault()

	logger.Info("managing TLS certificates", "domains", opts.TLSDomains)
	if err := cfg.ManageSync(ctx, opts.TLSDomains); err != nil {
		return nil, fmt.Errorf("manage domains: %w", err)
	}

	tlsCfg := cfg.TLSConfig()
	tlsCfg.NextProtos = append([]string{"h2", "http/1.1"}, tlsCfg.NextProtos...)
	ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", certmagic.HTTPSPort), tlsCfg)
	if err != nil {
		return nil, fmt.Errorf("tls listen: %w", err)
	}
	return ln, nil
}
