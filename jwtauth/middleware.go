package jwtauth

import (
	"net/http"
	"time"

	"github.com/Wang-tianhao/echo-auth-service/pipeline"
	"github.com/Wang-tianhao/echo-auth-service/requestid"
)

// BearerAuth returns a pipeline layer that authenticates requests with a bearer token.
//
// Requests whose path starts with a configured bypass prefix are forwarded
// unmodified. Every other request must carry "Authorization: Bearer <token>"
// with a token accepted by the configured Verifier. On success the header is
// removed from the forwarded request and the claims are stored in its context.
// On failure the wrapped service is never called and an empty 401 is returned.
func BearerAuth(cfg *Config) pipeline.Layer {
	return pipeline.LayerFunc(func(next pipeline.Service) pipeline.Service {
		return &bearerAuthService{cfg: cfg, next: next}
	})
}

type bearerAuthService struct {
	cfg  *Config
	next pipeline.Service
}

// Call implements pipeline.Service
func (s *bearerAuthService) Call(req *http.Request) (*pipeline.Response, error) {
	ctx := req.Context()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.cfg.IsBypassed(req.URL.Path) {
		return s.next.Call(req)
	}

	startTime := time.Now()
	reqID, _ := requestid.FromContext(ctx)

	// Extract token from request
	token, err := extractTokenFromHeader(req.Header)
	if err != nil {
		logAuthFailure(ctx, s.cfg, "http", req.URL.Path, reqID, "", err, time.Since(startTime))
		return unauthorizedResponse(), nil
	}

	// Validate token
	claims, err := s.cfg.Verifier().Verify(token)
	if err != nil {
		logAuthFailure(ctx, s.cfg, "http", req.URL.Path, reqID, token, err, time.Since(startTime))
		return unauthorizedResponse(), nil
	}

	logAuthSuccess(ctx, s.cfg, "http", req.URL.Path, reqID, claims, token, time.Since(startTime))

	// Downstream sees the claims, never the raw header
	forwarded := req.Clone(WithClaims(ctx, claims))
	forwarded.Header.Del("Authorization")

	resp, err := s.next.Call(forwarded)
	if err != nil {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return resp, nil
}

// unauthorizedResponse is the single response for every authentication
// failure; it carries no detail about the reason.
func unauthorizedResponse() *pipeline.Response {
	return pipeline.NewResponse(http.StatusUnauthorized)
}

// ClaimsFromRequest is a convenience wrapper around GetClaims for handlers
func ClaimsFromRequest(r *http.Request) (*Claims, bool) {
	return GetClaims(r.Context())
}
