package jwtauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wang-tianhao/echo-auth-service/pipeline"
	"github.com/Wang-tianhao/echo-auth-service/requestid"
)

func init() {
	// Set Gin to test mode to suppress logs
	gin.SetMode(gin.TestMode)
}

// spyService counts calls and remembers the last request it saw
type spyService struct {
	calls   atomic.Int32
	mu      sync.Mutex
	lastReq *http.Request
}

func (s *spyService) Call(req *http.Request) (*pipeline.Response, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.lastReq = req
	s.mu.Unlock()
	return pipeline.NewResponse(http.StatusOK), nil
}

func (s *spyService) last() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

// newAuthFixture returns a signer and a BearerAuth-wrapped spy
func newAuthFixture(t *testing.T, opts ...ConfigOption) (*Signer, *spyService, pipeline.Service) {
	t.Helper()
	keys := mustGenerateKeyMaterial(t)
	signer := mustNewSigner(t, keys)
	cfg := mustCreateConfig(t, append([]ConfigOption{
		WithVerifier(mustNewVerifier(t, keys)),
		WithBypassPaths("/signin", "/echo"),
	}, opts...)...)

	spy := &spyService{}
	return signer, spy, BearerAuth(cfg).Wrap(spy)
}

// TestBearerAuthBypass tests that bypass paths are forwarded unmodified
func TestBearerAuthBypass(t *testing.T) {
	_, spy, svc := newAuthFixture(t)

	for _, path := range []string{"/signin", "/echo", "/echo/nested", "/signin?x=1"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, nil)

			resp, err := svc.Call(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
			if spy.last() != req {
				t.Errorf("expected the original request to be forwarded")
			}
			if _, ok := GetClaims(spy.last().Context()); ok {
				t.Errorf("expected no claims on a bypassed request")
			}
		})
	}
}

// TestBearerAuthBypassKeepsHeader tests that a bypassed request keeps its Authorization header
func TestBearerAuthBypassKeepsHeader(t *testing.T) {
	_, spy, svc := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	if _, err := svc.Call(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spy.last().Header.Get("Authorization") != "Bearer whatever" {
		t.Errorf("expected Authorization header to be untouched")
	}
}

// TestBearerAuthRejects tests every failure path short-circuits with an empty 401
func TestBearerAuthRejects(t *testing.T) {
	signer, spy, svc := newAuthFixture(t)
	valid := mustSign(t, signer, "alice")

	otherSigner := mustNewSigner(t, mustGenerateKeyMaterial(t))
	foreign := mustSign(t, otherSigner, "alice")

	tests := []struct {
		name   string
		header []string
	}{
		{name: "missing header", header: nil},
		{name: "empty header", header: []string{""}},
		{name: "basic scheme", header: []string{"Basic dXNlcjpwYXNz"}},
		{name: "lowercase bearer", header: []string{"bearer " + valid}},
		{name: "no space", header: []string{"Bearer" + valid}},
		{name: "empty token", header: []string{"Bearer "}},
		{name: "garbage token", header: []string{"Bearer not.a.token"}},
		{name: "token from another key", header: []string{"Bearer " + foreign}},
		{name: "control character", header: []string{"Bearer " + valid + "\x7f"}},
		{name: "invalid utf8", header: []string{"Bearer \xff\xfe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := spy.calls.Load()

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			for _, v := range tt.header {
				req.Header.Add("Authorization", v)
			}

			resp, err := svc.Call(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", resp.StatusCode)
			}
			if len(resp.Body) != 0 {
				t.Errorf("expected empty body, got %q", resp.Body)
			}
			if got := spy.calls.Load() - before; got != 0 {
				t.Errorf("expected wrapped service not to be called, got %d calls", got)
			}
		})
	}
}

// TestBearerAuthExpiredToken tests rejection of an expired but correctly signed token
func TestBearerAuthExpiredToken(t *testing.T) {
	keys := mustGenerateKeyMaterial(t)
	signer := mustNewSigner(t, keys,
		WithTokenDuration(time.Minute),
		WithSignerClock(func() time.Time { return time.Now().Add(-time.Hour) }),
	)
	cfg := mustCreateConfig(t, WithVerifier(mustNewVerifier(t, keys)))
	spy := &spyService{}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+mustSign(t, signer, "alice"))

	resp, err := BearerAuth(cfg).Wrap(spy).Call(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", resp.StatusCode)
	}
	if spy.calls.Load() != 0 {
		t.Errorf("expected wrapped service not to be called")
	}
}

// TestBearerAuthSuccess tests claims injection and header removal
func TestBearerAuthSuccess(t *testing.T) {
	signer, spy, svc := newAuthFixture(t)
	token := mustSign(t, signer, "alice")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Other", "kept")

	resp, err := svc.Call(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	forwarded := spy.last()
	claims, ok := GetClaims(forwarded.Context())
	if !ok {
		t.Fatal("expected claims in forwarded request context")
	}
	if claims.CustomData != "alice" {
		t.Errorf("expected CustomData %q, got %q", "alice", claims.CustomData)
	}
	if forwarded.Header.Get("Authorization") != "" {
		t.Errorf("expected Authorization header to be removed from forwarded request")
	}
	if forwarded.Header.Get("X-Other") != "kept" {
		t.Errorf("expected other headers to be forwarded")
	}
	if req.Header.Get("Authorization") == "" {
		t.Errorf("expected caller's request to be left untouched")
	}
}

// TestBearerAuthCancelledRequest tests that a cancelled request produces an error, not a response
func TestBearerAuthCancelledRequest(t *testing.T) {
	signer, spy, svc := newAuthFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+mustSign(t, signer, "alice"))

	resp, err := svc.Call(req)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if resp != nil {
		t.Errorf("expected no response, got %+v", resp)
	}
	if spy.calls.Load() != 0 {
		t.Errorf("expected wrapped service not to be called")
	}
}

// TestBearerAuthPropagatesInnerError tests that inner errors are not swallowed
func TestBearerAuthPropagatesInnerError(t *testing.T) {
	keys := mustGenerateKeyMaterial(t)
	cfg := mustCreateConfig(t, WithVerifier(mustNewVerifier(t, keys)))
	innerErr := errors.New("inner failure")

	svc := BearerAuth(cfg).Wrap(pipeline.ServiceFunc(func(*http.Request) (*pipeline.Response, error) {
		return nil, innerErr
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+mustSign(t, mustNewSigner(t, keys), "alice"))

	if _, err := svc.Call(req); !errors.Is(err, innerErr) {
		t.Errorf("expected inner error, got %v", err)
	}
}

// TestBearerAuthConcurrent tests shared use of one layer across goroutines
func TestBearerAuthConcurrent(t *testing.T) {
	signer, spy, svc := newAuthFixture(t)
	token := mustSign(t, signer, "alice")

	const workers = 32
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if i%2 == 0 {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			resp, err := svc.Call(req)
			if err != nil {
				failures.Add(1)
				return
			}
			want := http.StatusOK
			if i%2 != 0 {
				want = http.StatusUnauthorized
			}
			if resp.StatusCode != want {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("expected no failures, got %d", failures.Load())
	}
	if spy.calls.Load() != workers/2 {
		t.Errorf("expected %d calls, got %d", workers/2, spy.calls.Load())
	}
}

// TestBearerAuthWithGin tests the layer in front of a gin engine over real HTTP
func TestBearerAuthWithGin(t *testing.T) {
	keys := mustGenerateKeyMaterial(t)
	signer := mustNewSigner(t, keys)
	cfg := mustCreateConfig(t,
		WithVerifier(mustNewVerifier(t, keys)),
		WithBypassPaths("/public"),
	)

	router := gin.New()
	router.GET("/public", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "public"})
	})
	router.GET("/profile", func(c *gin.Context) {
		claims := MustGetClaims(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user": claims.CustomData})
	})

	svc := pipeline.Stack(pipeline.FromHandler(router), BearerAuth(cfg))
	server := httptest.NewServer(pipeline.Handler(svc, nil))
	defer server.Close()

	tests := []struct {
		name           string
		path           string
		token          string
		expectedStatus int
		expectedUser   string
	}{
		{name: "public without token", path: "/public", expectedStatus: http.StatusOK},
		{name: "profile without token", path: "/profile", expectedStatus: http.StatusUnauthorized},
		{name: "profile with token", path: "/profile", token: mustSign(t, signer, "alice"), expectedStatus: http.StatusOK, expectedUser: "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, server.URL+tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, resp.StatusCode)
			}
			if tt.expectedUser != "" {
				var body map[string]string
				if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body["user"] != tt.expectedUser {
					t.Errorf("expected user %q, got %q", tt.expectedUser, body["user"])
				}
			}
		})
	}
}

// TestBearerAuthLogging tests security event logging with redaction
func TestBearerAuthLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	signer, _, svc := newAuthFixture(t, WithLogger(logger))
	token := mustSign(t, signer, "alice")

	// Failure: missing header
	req := requestWithID(httptest.NewRequest(http.MethodGet, "/protected", nil), "req-1")
	if _, err := svc.Call(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Success
	req = requestWithID(httptest.NewRequest(http.MethodGet, "/protected", nil), "req-2")
	req.Header.Set("Authorization", "Bearer "+token)
	if _, err := svc.Call(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}

	var failure, success struct {
		Msg   string         `json:"msg"`
		Event map[string]any `json:"auth_event"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &failure); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &success); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}

	if failure.Msg != "authentication failed" || failure.Event["failure_reason"] != string(ErrMissingToken) {
		t.Errorf("unexpected failure event: %+v", failure)
	}
	if failure.Event["request_id"] != "req-1" {
		t.Errorf("expected request_id req-1, got %v", failure.Event["request_id"])
	}
	if success.Msg != "authentication succeeded" || success.Event["user_id"] != "alice" {
		t.Errorf("unexpected success event: %+v", success)
	}
	if success.Event["algorithm"] != "EdDSA" {
		t.Errorf("expected algorithm EdDSA, got %v", success.Event["algorithm"])
	}
	if strings.Contains(buf.String(), token) {
		t.Errorf("expected token to be redacted in logs")
	}
	if success.Event["token"] != token[:8]+"..." {
		t.Errorf("expected redacted token preview, got %v", success.Event["token"])
	}
}

// TestNewConfigErrors tests configuration validation
func TestNewConfigErrors(t *testing.T) {
	verifier := mustNewVerifier(t, mustGenerateKeyMaterial(t))

	tests := []struct {
		name string
		opts []ConfigOption
	}{
		{name: "no verifier", opts: nil},
		{name: "nil verifier", opts: []ConfigOption{WithVerifier(nil)}},
		{name: "empty bypass path", opts: []ConfigOption{WithVerifier(verifier), WithBypassPaths("/ok", " ")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.opts...)
			assertErrorCode(t, err, ErrConfigError)
		})
	}
}

// TestIsBypassed tests prefix matching of bypass paths
func TestIsBypassed(t *testing.T) {
	cfg := mustCreateConfig(t,
		WithVerifier(mustNewVerifier(t, mustGenerateKeyMaterial(t))),
		WithBypassPaths("/api/signin", "/health"),
	)

	tests := []struct {
		path string
		want bool
	}{
		{"/api/signin", true},
		{"/api/signin/extra", true},
		{"/api/signinx", true},
		{"/health", true},
		{"/api/echo", false},
		{"/protected", false},
		{"/", false},
	}

	for _, tt := range tests {
		if got := cfg.IsBypassed(tt.path); got != tt.want {
			t.Errorf("IsBypassed(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func requestWithID(req *http.Request, id string) *http.Request {
	return req.WithContext(requestid.WithContext(req.Context(), id))
}
