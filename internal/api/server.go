package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/die-net/tunnelcheck/internal/dialer"
	"github.com/die-net/tunnelcheck/internal/pipeline"
)

// APIVersion prefixes every route.
const APIVersion = "v1"

// maxSubmission bounds a submitted batch body.
const maxSubmission = 32 << 20

// Server hosts the control API for one pipeline.
type Server struct {
	ctx      context.Context
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	http     *http.Server

	mu      sync.Mutex
	current *hub
	last    *pipeline.Summary
}

// NewServer returns a server that runs submitted batches on p under ctx.
// Cancelling ctx aborts any running batch.
func NewServer(ctx context.Context, p *pipeline.Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		ctx:      ctx,
		pipeline: p,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /"+APIVersion+"/healthz", s.handleHealthz)
	mux.HandleFunc("POST /"+APIVersion+"/batches", s.handleSubmit)
	mux.HandleFunc("GET /"+APIVersion+"/batches/current/events", s.handleEvents)
	mux.HandleFunc("POST /"+APIVersion+"/batches/current/cancel", s.handleCancel)
	mux.HandleFunc("GET /"+APIVersion+"/batches/last", s.handleLast)

	// No WriteTimeout: event streams last as long as the batch.
	s.http = &http.Server{
		Handler:           withLogging(mux, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Serve accepts connections on ln until Close.
func (s *Server) Serve(ln net.Listener) error {
	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close() error {
	return s.http.Close()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub pipeline.Submission
	dec := json.NewDecoder(io.LimitReader(r.Body, maxSubmission))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, StatusResponse{Status: statusBadRequest, Error: "invalid JSON: " + err.Error()})
		return
	}

	items, dst, opts, err := sub.Prepare()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, StatusResponse{Status: statusBadRequest, Error: errorDetail(err)})
		return
	}

	h := newHub()
	// last is recorded before the hub ends its streams.
	obs := pipeline.Observers{pipeline.ObserverFuncs{Done: s.finished}, h}

	// Held across Start so a reader never sees the new batch without its hub.
	s.mu.Lock()
	id, _, err := s.pipeline.Start(s.ctx, items, dst, opts, obs)
	if err == nil {
		h.id = id
		s.current = h
	}
	s.mu.Unlock()

	switch {
	case errors.Is(err, pipeline.ErrBusy):
		writeJSON(w, http.StatusConflict, StatusResponse{Status: statusAlready})
	case err != nil:
		writeJSON(w, http.StatusBadRequest, StatusResponse{Status: statusBadRequest, Error: errorDetail(err)})
	default:
		s.logger.Info("batch submitted", "batch", id, "items", len(items), "dest", dst.Addr())
		writeJSON(w, http.StatusAccepted, StatusResponse{Status: statusStarted, BatchID: id})
	}
}

func (s *Server) finished(sum pipeline.Summary) {
	s.mu.Lock()
	s.last = &sum
	s.mu.Unlock()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h := s.current
	s.mu.Unlock()

	if h == nil {
		writeJSON(w, http.StatusNotFound, StatusResponse{Status: statusNoBatch})
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	sent := 0
	for {
		events, sum, changed := h.since(sent)
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return
			}
		}
		sent += len(events)

		if sum != nil {
			_ = enc.Encode(sum)
			_ = rc.Flush()
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}

		select {
		case <-changed:
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, _ *http.Request) {
	st := s.pipeline.Cancel()
	writeJSON(w, http.StatusOK, StatusResponse{Status: string(st)})
}

func (s *Server) handleLast(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	if last == nil {
		writeJSON(w, http.StatusNotFound, StatusResponse{Status: statusNoBatch})
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("api request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start), "remote", r.RemoteAddr)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorDetail(err error) string {
	var f *dialer.Failure
	if errors.As(err, &f) && f.Detail != "" {
		return f.Detail
	}
	return err.Error()
}
