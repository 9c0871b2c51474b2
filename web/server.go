// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package web serves the dashboard pages and the JSON API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/poiesic/stdgap"
	"github.com/poiesic/stdgap/analysis"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/ingestion"
	"github.com/poiesic/stdgap/search"
)

// Workspace is the set of actions the server exposes.
// *stdgap.Workspace implements it.
type Workspace interface {
	Upload(ctx context.Context, upload ingestion.Upload) (*ingestion.Report, error)
	Documents(ctx context.Context) ([]*core.Document, error)
	Document(ctx context.Context, id core.ID) (*core.Document, []*core.Section, error)
	Search(ctx context.Context, query string, opts search.Options) ([]*core.SearchResult, error)
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error)
	Gaps(ctx context.Context) ([]*core.Gap, error)
	Gap(ctx context.Context, id core.ID) (*core.Gap, []*core.Recommendation, error)
	Recommend(ctx context.Context, gapID core.ID) ([]*core.Recommendation, error)
	ClearGaps(ctx context.Context) error
	Dashboard(ctx context.Context) (*stdgap.Dashboard, error)
	Network(ctx context.Context) (*core.Network, error)
	Pending() []*stdgap.Pending
	RetryPending(ctx context.Context) (int, error)
}

var _ Workspace = (*stdgap.Workspace)(nil)

// DefaultMaxUploadBytes caps multipart request bodies.
const DefaultMaxUploadBytes = 32 << 20

// Server routes HTTP requests to a Workspace.
type Server struct {
	ws             Workspace
	router         chi.Router
	pages          *pages
	maxUploadBytes int64
	searchK        int
	logger         *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMaxUploadBytes caps the size of upload request bodies.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithSearchK sets the number of results the search box returns by default.
func WithSearchK(k int) Option {
	return func(s *Server) {
		if k > 0 {
			s.searchK = k
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates the dashboard server.
func NewServer(ws Workspace, opts ...Option) *Server {
	s := &Server{
		ws:             ws,
		pages:          loadPages(),
		maxUploadBytes: DefaultMaxUploadBytes,
		searchK:        search.DefaultK,
		logger:         slog.Default().With("component", "web"),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.routePages(r)
	r.Route("/api", s.routeAPI)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Timeouts bounds the HTTP server. Zero values disable the limit.
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Shutdown time.Duration
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within timeouts.Shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string, timeouts Timeouts) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeouts.Read,
		WriteTimeout:      timeouts.Write,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down dashboard")
	shutdownCtx := context.Background()
	if timeouts.Shutdown > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, timeouts.Shutdown)
		defer cancel()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelInfo
				if status >= 500 {
					level = slog.LevelError
				}
				logger.Log(r.Context(), level, "request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
