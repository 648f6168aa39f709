// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/c2FmZQ/storage"
	"go.uber.org/zap"
)

func parsePagination(r *http.Request) (int, int) {
	limit := 50
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil {
			offset = val
		}
	}

	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// Options represent server options.
type Options struct {
	Addr     string
	Cert     *tls.Certificate
	Listener net.Listener

	// DriverPath is the booking driver executable. A relative path with a
	// directory component is resolved against WorkDir.
	DriverPath string
	DriverArgs []string
	RunTimeout time.Duration
	// WorkDir is the driver's working directory. Empty means the
	// server's working directory.
	WorkDir string

	DataDir  string
	Storage  *storage.Storage
	RunStore *RunStore

	// RatePerMinute limits trigger requests per client IP. Zero disables it.
	RatePerMinute int

	Logger *zap.Logger
}

// Server represents the running server instance.
type Server struct {
	httpServer *http.Server
}

// Shutdown gracefully shuts down the server. Runs in flight are not
// interrupted by a client going away, so Shutdown waits for them up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

// StartServer starts the web server and registers the handlers.
func StartServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger
	handler := NewServerHandler(opts)

	httpServer := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if opts.Cert != nil {
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*opts.Cert},
		}
	}

	ln := opts.Listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", opts.Addr); err != nil {
			return nil, fmt.Errorf("listen %s: %w", opts.Addr, err)
		}
	}

	go func() {
		var err error
		if httpServer.TLSConfig != nil {
			logger.Info("starting HTTPS server", zap.Stringer("addr", ln.Addr()))
			err = httpServer.ServeTLS(ln, "", "")
		} else {
			logger.Info("starting HTTP server", zap.Stringer("addr", ln.Addr()))
			err = httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, net.ErrClosed) && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	return &Server{httpServer: httpServer}, nil
}

type server struct {
	opts    Options
	runner  *Runner
	store   *RunStore
	metrics *RunMetrics
	logger  *zap.Logger
}

// NewServerHandler creates and configures the HTTP handler for the server.
func NewServerHandler(opts Options) http.Handler {
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Storage == nil {
		opts.Storage = storage.New(opts.DataDir, nil)
	}
	store := opts.RunStore
	if store == nil {
		store = NewRunStore(opts.DataDir, opts.Storage, opts.Logger)
	}

	s := &server{
		opts: opts,
		runner: &Runner{
			Path:    opts.DriverPath,
			Args:    opts.DriverArgs,
			Timeout: opts.RunTimeout,
			Dir:     opts.WorkDir,
		},
		store:   store,
		metrics: NewRunMetrics(),
		logger:  opts.Logger,
	}

	trigger := func(h http.HandlerFunc) http.Handler { return h }
	if opts.RatePerMinute > 0 {
		limiter := newRateLimiter(opts.RatePerMinute)
		trigger = func(h http.HandlerFunc) http.Handler {
			return rateLimitMiddleware(limiter, s.logger, h)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /run-script", trigger(s.handleRunScript))
	mux.Handle("GET /run-script/ws", trigger(s.serveRunWS))
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	handler := http.Handler(mux)
	handler = recoverMiddleware(s.logger, handler)
	handler = loggingMiddleware(s.logger, handler)
	handler = securityMiddleware(handler)
	return handler
}

// execute runs the driver once and records the run.
func (s *server) execute(ctx context.Context, source string, sink io.Writer) *RunRecord {
	s.logger.Info("starting driver", zap.String("path", s.runner.Path), zap.String("source", source))
	res := s.runner.Run(ctx, sink)
	s.metrics.Record(res)

	rec := NewRunRecord(source, res)
	if err := s.store.SaveRun(rec); err != nil {
		s.logger.Error("saving run record", zap.String("runId", rec.ID), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("runId", rec.ID),
		zap.Int("exitCode", rec.ExitCode),
		zap.Duration("duration", res.Duration),
	}
	switch {
	case res.TimedOut:
		s.logger.Warn("driver timed out", fields...)
	case res.Err != nil:
		s.logger.Error("driver failed to run", append(fields, zap.Error(res.Err))...)
	default:
		s.logger.Info("driver finished", fields...)
	}
	return rec
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, "index.html", indexPage{
		DriverPath: s.opts.DriverPath,
		Timeout:    s.opts.RunTimeout,
	})
}

func (s *server) handleRunScript(w http.ResponseWriter, r *http.Request) {
	// The booking must not be abandoned when the client goes away.
	rec := s.execute(context.WithoutCancel(r.Context()), "http", nil)
	page := newResultPage(rec, s.opts.RunTimeout)
	renderPage(w, page.status(), "result.html", page)
}

// StatusResponse is the JSON document served by /status.
type StatusResponse struct {
	Status           string `json:"status"`
	Timestamp        string `json:"timestamp"`
	WorkingDirectory string `json:"working_directory"`
	ScriptExists     bool   `json:"script_exists"`
	ScriptPath       string `json:"script_path"`
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	wd := s.opts.WorkDir
	if wd == "" {
		wd, _ = os.Getwd()
	}
	path, exists := s.resolveDriver(wd)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{
		Status:           "running",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		WorkingDirectory: wd,
		ScriptExists:     exists,
		ScriptPath:       path,
	})
}

// resolveDriver returns the path the driver would be started from and
// whether a regular file is there.
func (s *server) resolveDriver(wd string) (string, bool) {
	p := s.opts.DriverPath
	if p == "" {
		return "", false
	}
	if !strings.ContainsRune(p, filepath.Separator) && !strings.ContainsRune(p, '/') {
		found, err := exec.LookPath(p)
		if err != nil {
			return p, false
		}
		p = found
	} else if !filepath.IsAbs(p) {
		p = filepath.Join(wd, p)
	}
	fi, err := os.Stat(p)
	return p, err == nil && fi.Mode().IsRegular()
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	runs, total, err := s.store.ListRuns(limit, offset)
	if err != nil {
		s.logger.Error("listing runs", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"runs":   runs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.LoadRun(r.PathValue("id"))
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("loading run", zap.String("runId", r.PathValue("id")), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.metrics.Snapshot())
}
