package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/caffeineduck/rustplay/executor"
	"github.com/caffeineduck/rustplay/source"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the playground",
		Long: `Start an HTTP server that serves the Rust files and runs them.

Endpoints:
  GET    /api/rust/files       List source files, {"files":[...]}
  GET    /api/rust/{path}      File content (tests/... for test files)
  POST   /api/run              Run a file, {"file":"hello.rs","mode":"test"}
  GET    /api/sample           Acceleration module sample program
  POST   /sessions             Create REPL session, returns {"session_id":"..."}
  POST   /sessions/{id}/exec   Execute in session (bindings persist)
  DELETE /sessions/{id}        Close session
  GET    /ws                   WebSocket: run requests in, run responses out
  GET    /health               Health check`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("addr", ":8080", "Address to listen on")
	cmd.Flags().Duration("timeout", 30*time.Second, "Default execution timeout")
	cmd.Flags().Duration("session-ttl", 15*time.Minute, "Idle time before a session is closed")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	exec, err := newExecutor(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer exec.Close()

	sessions := newSessionManager(exec, cfg.SessionTTL)
	defer sessions.closeAll()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: newServer(exec, newProvider(cfg), sessions, cfg.Timeout, logger).routes(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("rustplay server listening", "addr", cfg.Addr,
		"accelerated", exec.Accelerated(), "dir", cfg.RustDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type sessionManager struct {
	exec     *executor.Executor
	sessions map[string]*serverSession
	mu       sync.Mutex
	ttl      time.Duration
	done     chan struct{}
	once     sync.Once
}

type serverSession struct {
	session  *executor.Session
	lastUsed time.Time
}

func newSessionManager(exec *executor.Executor, ttl time.Duration) *sessionManager {
	sm := &sessionManager{
		exec:     exec,
		sessions: make(map[string]*serverSession),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go sm.cleanup()
	return sm
}

func (sm *sessionManager) create() string {
	id := uuid.NewString()
	sm.mu.Lock()
	sm.sessions[id] = &serverSession{
		session:  sm.exec.NewSession(),
		lastUsed: time.Now(),
	}
	sm.mu.Unlock()
	return id
}

func (sm *sessionManager) get(id string) (*executor.Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	ss, ok := sm.sessions[id]
	if !ok {
		return nil, false
	}
	ss.lastUsed = time.Now()
	return ss.session, true
}

func (sm *sessionManager) close(id string) bool {
	sm.mu.Lock()
	ss, ok := sm.sessions[id]
	if ok {
		ss.session.Close()
		delete(sm.sessions, id)
	}
	sm.mu.Unlock()
	return ok
}

// expire closes sessions idle for longer than the TTL as of now.
func (sm *sessionManager) expire(now time.Time) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	n := 0
	for id, ss := range sm.sessions {
		if now.Sub(ss.lastUsed) > sm.ttl {
			ss.session.Close()
			delete(sm.sessions, id)
			n++
		}
	}
	return n
}

func (sm *sessionManager) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			sm.expire(now)
		case <-sm.done:
			return
		}
	}
}

func (sm *sessionManager) closeAll() {
	sm.once.Do(func() { close(sm.done) })
	sm.mu.Lock()
	for id, ss := range sm.sessions {
		ss.session.Close()
		delete(sm.sessions, id)
	}
	sm.mu.Unlock()
}

type filesResponse struct {
	Files []string `json:"files"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type runRequest struct {
	File    string `json:"file"`
	Code    string `json:"code,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type runResponse struct {
	Output      string `json:"output"`
	DurationMs  int64  `json:"duration_ms"`
	Accelerated bool   `json:"accelerated"`
	Error       string `json:"error,omitempty"`
}

type sampleResponse struct {
	Code string `json:"code"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type sessionExecRequest struct {
	Code    string `json:"code"`
	Timeout string `json:"timeout,omitempty"`
}

type server struct {
	exec     *executor.Executor
	provider source.Provider
	sessions *sessionManager
	timeout  time.Duration
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func newServer(exec *executor.Executor, provider source.Provider, sessions *sessionManager, timeout time.Duration, logger *slog.Logger) *server {
	return &server{
		exec:     exec,
		provider: provider,
		sessions: sessions,
		timeout:  timeout,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/rust/files", s.handleFiles)
	mux.HandleFunc("/api/rust/{path...}", s.handleFile)
	mux.HandleFunc("POST /api/run", s.handleRun)
	mux.HandleFunc("GET /api/sample", s.handleSample)
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("POST /sessions/{id}/exec", s.handleSessionExec)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleCloseSession)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *server) handleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.provider.List(r.Context())
	if err != nil {
		s.logger.Error("listing rust files", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read Rust files")
		return
	}
	writeJSON(w, http.StatusOK, filesResponse{Files: files})
}

func (s *server) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	name := r.PathValue("path")
	if name == "" {
		writeError(w, http.StatusBadRequest, "Invalid path")
		return
	}

	content, err := s.provider.Read(r.Context(), name)
	switch {
	case errors.Is(err, source.ErrInvalidPath):
		writeError(w, http.StatusBadRequest, invalidPathMessage(name))
		return
	case err != nil:
		s.logger.Warn("reading rust file", "path", name, "error", err)
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, content)
}

func invalidPathMessage(name string) string {
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || strings.Contains(seg, "..") {
			return "Invalid path segment"
		}
	}
	return "Invalid filename"
}

// run resolves a run request to a result. The second return is the HTTP
// status for requests that could not be run at all.
func (s *server) run(ctx context.Context, req runRequest) (runResponse, int, error) {
	mode, err := executor.ParseMode(req.Mode)
	if err != nil {
		return runResponse{}, http.StatusBadRequest, err
	}
	if req.File == "" {
		return runResponse{}, http.StatusBadRequest, errors.New("file required")
	}

	code := req.Code
	if code == "" {
		code, err = s.provider.Read(ctx, source.FileFor(req.File, mode == executor.ModeTest))
		switch {
		case errors.Is(err, source.ErrInvalidPath):
			return runResponse{}, http.StatusBadRequest, err
		case err != nil:
			return runResponse{}, http.StatusNotFound, err
		}
	}

	timeout := s.timeout
	if req.Timeout != "" {
		if d, err := time.ParseDuration(req.Timeout); err == nil {
			timeout = d
		}
	}

	name := req.File
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	result := s.exec.Run(ctx, name, code, executor.WithMode(mode), executor.WithTimeout(timeout))

	resp := runResponse{
		Output:      result.Output,
		DurationMs:  result.Duration.Milliseconds(),
		Accelerated: result.Accelerated,
	}
	if result.Error != nil {
		resp.Error = result.Error.Error()
	}
	return resp, http.StatusOK, nil
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	resp, status, err := s.run(r.Context(), req)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleSample(w http.ResponseWriter, r *http.Request) {
	code, err := s.exec.SampleCode(r.Context())
	switch {
	case errors.Is(err, executor.ErrNoAccelerator):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, sampleResponse{Code: code})
	}
}

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, createSessionResponse{SessionID: s.sessions.create()})
}

func (s *server) handleSessionExec(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessions.get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req sessionExecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code required")
		return
	}

	ctx := r.Context()
	if req.Timeout != "" {
		if d, err := time.ParseDuration(req.Timeout); err == nil {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
	}

	result := session.Run(ctx, req.Code)
	resp := runResponse{
		Output:     result.Output,
		DurationMs: result.Duration.Milliseconds(),
	}
	if result.Error != nil {
		resp.Error = result.Error.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions.close(r.PathValue("id")) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeError(w, http.StatusNotFound, "session not found")
}

// handleWS runs one request per text message and answers each with a
// run response; request errors come back in its error field.
func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var resp runResponse
		var req runRequest
		if err := json.Unmarshal(message, &req); err != nil {
			resp.Error = "invalid json"
		} else if out, _, err := s.run(r.Context(), req); err != nil {
			resp.Error = err.Error()
		} else {
			resp = out
		}

		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}
