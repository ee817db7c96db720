package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"finetune-orchestrator/internal/domain"
	"finetune-orchestrator/internal/domain/ports/repository"
	"finetune-orchestrator/internal/infra/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the operational read-only surface: health, metrics and the
// current lineage snapshot. It never mutates state.
type Server struct {
	store     repository.LineageStore
	lineageID string
	log       *zerolog.Logger
	srv       *http.Server
}

func NewServer(port int, lineageID string, store repository.LineageStore, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "StatusServer").Logger()
	s := &Server{store: store, lineageID: lineageID, log: &l}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/v1/lineage", s.handleLineage)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler is exposed for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("status server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithLineageID(r.Context(), s.lineageID)
	log := logging.With(ctx, s.log)
	st, err := s.store.ReadSnapshot(ctx, s.lineageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "no snapshot yet", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("snapshot read failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		log.Error().Err(err).Msg("encode snapshot")
	}
}
