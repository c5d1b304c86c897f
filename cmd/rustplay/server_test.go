package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/rustplay/accel"
	"github.com/caffeineduck/rustplay/accel/acceltest"
	"github.com/caffeineduck/rustplay/executor"
	"github.com/caffeineduck/rustplay/source"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T, accelerated bool) (*server, *sessionManager) {
	t.Helper()

	var opts []executor.ExecutorOption
	if accelerated {
		mod, err := accel.Load(context.Background(), acceltest.Module(wasmHello, wasmSample))
		require.NoError(t, err, "load module")
		opts = append(opts, executor.WithAccelerator(mod))
	}
	exec, err := executor.New(opts...)
	require.NoError(t, err, "create executor")

	sessions := newSessionManager(exec, 15*time.Minute)
	t.Cleanup(func() {
		sessions.closeAll()
		exec.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newServer(exec, source.Embedded(), sessions, 30*time.Second, logger), sessions
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v), "body is not JSON: %s", w.Body.String())
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	decodeJSON(t, w, &resp)
	return resp.Error
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	w := do(t, srv.routes(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestFilesEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	w := do(t, srv.routes(), http.MethodGet, "/api/rust/files", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp filesResponse
	decodeJSON(t, w, &resp)
	assert.Equal(t, []string{"hello.rs", "calculator.rs"}, resp.Files)
}

func TestFileEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	h := srv.routes()

	w := do(t, h, http.MethodGet, "/api/rust/hello.rs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "fn main()")

	w = do(t, h, http.MethodGet, "/api/rust/tests/test_hello.rs", "")
	require.Equal(t, http.StatusOK, w.Code, "test file")
	assert.Contains(t, w.Body.String(), "#[test]")
}

func TestFileEndpointErrors(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	h := srv.routes()

	tests := []struct {
		method string
		target string
		status int
		msg    string
	}{
		{http.MethodGet, "/api/rust/missing.rs", http.StatusNotFound, "File not found"},
		{http.MethodGet, "/api/rust/notes.txt", http.StatusBadRequest, "Invalid filename"},
		{http.MethodGet, "/api/rust/a..b/x.rs", http.StatusBadRequest, "Invalid path segment"},
		{http.MethodGet, "/api/rust/", http.StatusBadRequest, "Invalid path"},
		{http.MethodPost, "/api/rust/hello.rs", http.StatusMethodNotAllowed, "Method not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, "")
			require.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, decodeError(t, w))
		})
	}
}

func TestRunEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	h := srv.routes()

	w := do(t, h, http.MethodPost, "/api/run", `{"file": "calculator.rs"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp runResponse
	decodeJSON(t, w, &resp)
	assert.Contains(t, resp.Output, "Division: 42 / 7 = 6")
	assert.False(t, resp.Accelerated, "run should not be accelerated")

	w = do(t, h, http.MethodPost, "/api/run", `{"file": "scratch.rs", "code": "fn main() { println!(\"{:.1}\", average_vector(&vec![1, 2])); }"}`)
	resp = runResponse{}
	decodeJSON(t, w, &resp)
	assert.Equal(t, "1.5", resp.Output)
}

func TestRunEndpointTestMode(t *testing.T) {
	srv, _ := setupTestServer(t, true)
	w := do(t, srv.routes(), http.MethodPost, "/api/run", `{"file": "hello.rs", "mode": "test"}`)

	var resp runResponse
	decodeJSON(t, w, &resp)
	assert.True(t, strings.HasPrefix(resp.Output, "Running tests for hello.rs..."), "unexpected output %q", resp.Output)
	assert.False(t, resp.Accelerated, "test view should not be accelerated")
}

func TestRunEndpointAccelerated(t *testing.T) {
	srv, _ := setupTestServer(t, true)
	w := do(t, srv.routes(), http.MethodPost, "/api/run", `{"file": "hello.rs"}`)

	var resp runResponse
	decodeJSON(t, w, &resp)
	assert.Equal(t, wasmHello, resp.Output)
	assert.True(t, resp.Accelerated)
}

func TestRunEndpointErrors(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	h := srv.routes()

	tests := []struct {
		body   string
		status int
	}{
		{`not json`, http.StatusBadRequest},
		{`{}`, http.StatusBadRequest},
		{`{"file": "hello.rs", "mode": "bench"}`, http.StatusBadRequest},
		{`{"file": "../x.rs"}`, http.StatusBadRequest},
		{`{"file": "missing.rs"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		w := do(t, h, http.MethodPost, "/api/run", tt.body)
		assert.Equal(t, tt.status, w.Code, tt.body)
	}

	w := do(t, h, http.MethodGet, "/api/run", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code, "GET /api/run")
}

func TestSampleEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	w := do(t, srv.routes(), http.MethodGet, "/api/sample", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "without accelerator")

	srv, _ = setupTestServer(t, true)
	w = do(t, srv.routes(), http.MethodGet, "/api/sample", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp sampleResponse
	decodeJSON(t, w, &resp)
	assert.Equal(t, wasmSample, resp.Code)
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp createSessionResponse
	decodeJSON(t, w, &resp)
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func sessionExec(t *testing.T, h http.Handler, id, code string) runResponse {
	t.Helper()
	body, err := json.Marshal(sessionExecRequest{Code: code})
	require.NoError(t, err)
	w := do(t, h, http.MethodPost, "/sessions/"+id+"/exec", string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp runResponse
	decodeJSON(t, w, &resp)
	return resp
}

func TestSessionExecution(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	h := srv.routes()
	id := createSession(t, h)

	resp := sessionExec(t, h, id, "let v = vec![2, 4, 6];")
	assert.Empty(t, resp.Output, "binding should be silent")
	assert.Empty(t, resp.Error)

	resp = sessionExec(t, h, id, `println!("{}", sum_vector(&v));`)
	assert.Equal(t, "12", resp.Output)

	resp = sessionExec(t, h, id, `println!("{}", v);`)
	assert.Equal(t, "2,4,6", resp.Output)

	resp = sessionExec(t, h, id, `println!("{}", add(v, 1));`)
	assert.NotEmpty(t, resp.Error)
	assert.True(t, strings.HasPrefix(resp.Output, "Runtime Error: "), "got %q", resp.Output)

	resp = sessionExec(t, h, id, `println!("{:?}", v);`)
	assert.Equal(t, "[2, 4, 6]", resp.Output, "expected only the new line")
}

func TestSessionClose(t *testing.T) {
	srv, sessions := setupTestServer(t, false)
	h := srv.routes()
	id := createSession(t, h)

	w := do(t, h, http.MethodDelete, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, ok := sessions.get(id)
	assert.False(t, ok, "session should be removed")

	w = do(t, h, http.MethodDelete, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionNotFound(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	w := do(t, srv.routes(), http.MethodPost, "/sessions/nonexistent/exec", `{"code": "let x = 1;"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionExecValidation(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	h := srv.routes()
	id := createSession(t, h)

	w := do(t, h, http.MethodPost, "/sessions/"+id+"/exec", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty code")
	w = do(t, h, http.MethodPost, "/sessions/"+id+"/exec", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "bad json")
}

func TestMultipleSessions(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	h := srv.routes()
	id1 := createSession(t, h)
	id2 := createSession(t, h)
	require.NotEqual(t, id1, id2, "session IDs should be unique")

	sessionExec(t, h, id1, "let x = 1;")
	sessionExec(t, h, id2, "let x = 2;")

	r1 := sessionExec(t, h, id1, `println!("{}", x);`)
	r2 := sessionExec(t, h, id2, `println!("{}", x);`)
	assert.Equal(t, "1", r1.Output, "sessions share state")
	assert.Equal(t, "2", r2.Output, "sessions share state")
}

func TestSessionExpiry(t *testing.T) {
	_, sessions := setupTestServer(t, false)
	id := sessions.create()

	assert.Equal(t, 0, sessions.expire(time.Now()), "fresh session expired")
	assert.Equal(t, 1, sessions.expire(time.Now().Add(time.Hour)))
	_, ok := sessions.get(id)
	assert.False(t, ok, "expired session should be gone")
}

func TestWebSocketRun(t *testing.T) {
	srv, _ := setupTestServer(t, true)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "dial")
	defer conn.Close()

	requests := []struct {
		req  string
		want runResponse
	}{
		{`{"file": "hello.rs"}`, runResponse{Output: wasmHello, Accelerated: true}},
		{`{"file": "x.rs", "code": "fn main() { println!(\"{}\", subtract(10, 4)); }"}`, runResponse{Output: "6"}},
		{`{"file": "missing.rs"}`, runResponse{Error: "file not found: missing.rs"}},
		{`nope`, runResponse{Error: "invalid json"}},
	}
	for _, tt := range requests {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.req)))
		var resp runResponse
		require.NoError(t, conn.ReadJSON(&resp))
		resp.DurationMs = 0
		assert.Equal(t, tt.want, resp, tt.req)
	}
}
