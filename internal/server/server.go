// Package server exposes the schedule API over HTTP: a read endpoint that
// computes the daily schedule and a token-guarded write endpoint that
// persists a caller-supplied one.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dusklight/duskd/internal/planner"
)

// authHeader carries the pre-shared write token.
const authHeader = "X-Custom-Auth"

// Server is the HTTP API server.
type Server struct {
	addr       string
	token      string
	planner    *planner.Planner
	httpServer *http.Server
}

// New creates a new API server. An empty token disables writes entirely.
func New(host string, port int, token string, p *planner.Planner) *Server {
	return &Server{
		addr:    fmt.Sprintf("%s:%d", host, port),
		token:   token,
		planner: p,
	}
}

// Run starts the API server. It blocks until the context is cancelled and
// the graceful shutdown has finished draining in-flight requests.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	// Handle graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		// Listener failure: the shutdown goroutine is still parked on the
		// context, do not wait for it.
		return err
	}

	// Shutdown returns only once in-flight requests have drained.
	<-shutdownDone
	return nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/schedule", s.handleSchedule)
	return s.withRequestLog(mux)
}

// withRequestLog attaches a request ID, logs each request, and converts
// panics into a generic 500 so internal details never leak to the caller.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()

		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Str("request_id", requestID).
					Interface("panic", rec).
					Msg("Panic while handling request")
				writeJSONError(w, http.StatusInternalServerError, "Internal server error.")
			}
		}()

		log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Msg("Received API request")

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the caller's address for geolocation, preferring the
// first X-Forwarded-For hop when the service sits behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
