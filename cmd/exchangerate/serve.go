package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/exchangerate-client/pkg/cache"
	"github.com/Sternrassler/exchangerate-client/pkg/client"
	"github.com/Sternrassler/exchangerate-client/pkg/metrics"
	"github.com/Sternrassler/exchangerate-client/pkg/rates"
)

const requestTimeout = 30 * time.Second

// rateService is the part of *client.Client the HTTP handlers need.
type rateService interface {
	LatestRates(ctx context.Context, base string) (*rates.LatestResponse, error)
	PairRate(ctx context.Context, from, to string) (float64, error)
	SupportedCodes(ctx context.Context) ([]rates.Currency, error)
}

// pinger is implemented by backends with a remote dependency.
type pinger interface {
	Ping(ctx context.Context) error
}

func newServeCmd(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve cached exchange rates over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c, err := opts.newClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			srv := &http.Server{
				Addr:              addr,
				Handler:           newServeMux(c, c.Backend()),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Str("backend", cfg.Cache.Backend).Msg("Starting exchange rate server")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			log.Info().Msg("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":"+getEnv("PORT", "8080"), "listen address")
	return cmd
}

func newServeMux(svc rateService, backend cache.Backend) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(backend))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /latest/{base}", latestHandler(svc))
	mux.HandleFunc("GET /pair/{from}/{to}", pairHandler(svc))
	mux.HandleFunc("GET /codes", codesHandler(svc))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports 503 while a remote cache backend is unreachable.
func readyHandler(backend cache.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := backend.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				log.Warn().Err(err).Msg("Readiness check failed")
				http.Error(w, "cache backend unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

func latestHandler(svc rateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		table, err := svc.LatestRates(ctx, r.PathValue("base"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, table)
	}
}

func pairHandler(svc rateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		from, to := rates.NormalizeCode(r.PathValue("from")), rates.NormalizeCode(r.PathValue("to"))
		rate, err := svc.PairRate(ctx, from, to)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"base_code":       from,
			"target_code":     to,
			"conversion_rate": rate,
		})
	}
}

func codesHandler(svc rateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		currencies, err := svc.SupportedCodes(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"supported_codes": currencies})
	}
}

// writeError maps client errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, client.ErrInvalidCurrency), errors.Is(err, client.ErrMalformedRequest):
		status = http.StatusBadRequest
	case errors.Is(err, client.ErrUnsupportedCode):
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusBadGateway {
		log.Error().Err(err).Msg("Upstream request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
