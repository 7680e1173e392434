// Package rpc exposes a Backend over HTTP and provides the matching client.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nhath/ezquery/internal/backend"
	"github.com/nhath/ezquery/internal/core"
)

const maxBodyBytes = 4 << 20

// ErrorBody is the error half of the response envelope.
type ErrorBody struct {
	Kind    core.Kind `json:"kind"`
	Message string    `json:"message"`
}

// Envelope wraps every response.
type Envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ErrorBody      `json:"error,omitempty"`
}

// Server serves backend commands at POST /invoke/{command}.
type Server struct {
	backend backend.Backend
	logger  *slog.Logger
}

// NewServer wraps b.
func NewServer(b backend.Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{backend: b, logger: logger}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.logger))

	r.Get("/healthz", s.health)
	r.Post("/invoke/{command}", s.invoke)
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("rpc server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down rpc server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	command := chi.URLParam(r, "command")

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, command, core.Invalid("args", "read request body: "+err.Error()))
		return
	}

	out, err := backend.Dispatch(r.Context(), s.backend, command, raw)
	if err != nil {
		s.fail(w, command, err)
		return
	}

	var data json.RawMessage
	if out != nil {
		if data, err = json.Marshal(out); err != nil {
			s.fail(w, command, core.WrapExecution(err))
			return
		}
	}
	writeJSON(w, http.StatusOK, Envelope{Data: data})
}

func (s *Server) fail(w http.ResponseWriter, command string, err error) {
	kind := core.KindOf(err)
	if kind == core.KindUnknown {
		kind = core.KindExecution
	}
	s.logger.Warn("command failed", "command", command, "kind", kind, "error", err)
	writeJSON(w, statusFor(kind), Envelope{Error: &ErrorBody{Kind: kind, Message: core.Message(err)}})
}

func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindBusy, core.KindStale:
		return http.StatusConflict
	case core.KindConnectivity:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
