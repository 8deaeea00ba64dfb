package jwtauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SecurityEvent represents a structured security log entry
type SecurityEvent struct {
	EventType     string        // "success" or "failure"
	Timestamp     time.Time     // Event timestamp
	RequestID     string        // Correlation ID
	Transport     string        // "http" or "grpc"
	Target        string        // Request path or gRPC method
	UserID        string        // Authenticated username (empty on failure)
	Algorithm     string        // Algorithm named in the token header
	FailureReason string        // Error code (on failure)
	TokenPreview  string        // Redacted token preview
	Latency       time.Duration // Validation latency
}

// LogValue implements slog.LogValuer for structured logging with redaction
func (e SecurityEvent) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("event", e.EventType),
		slog.Time("timestamp", e.Timestamp),
		slog.String("request_id", e.RequestID),
		slog.String("transport", e.Transport),
		slog.String("target", e.Target),
		slog.String("user_id", e.UserID),
		slog.String("algorithm", e.Algorithm),
		slog.String("failure_reason", e.FailureReason),
		slog.String("token", redactToken(e.TokenPreview)),
		slog.Duration("latency", e.Latency),
	)
}

// redactToken redacts sensitive token data
func redactToken(token string) string {
	if len(token) == 0 {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}

// logSecurityEvent emits a security event via the configured logger
func logSecurityEvent(ctx context.Context, logger *slog.Logger, event SecurityEvent) {
	if logger == nil {
		return // Logging disabled
	}

	if event.EventType == "failure" {
		logger.WarnContext(ctx, "authentication failed", "auth_event", event)
	} else {
		logger.InfoContext(ctx, "authentication succeeded", "auth_event", event)
	}
}

// logAuthSuccess logs a successful authentication event
func logAuthSuccess(ctx context.Context, cfg *Config, transport, target, requestID string, claims *Claims, token string, latency time.Duration) {
	if cfg.Logger() == nil {
		return
	}

	logSecurityEvent(ctx, cfg.Logger(), SecurityEvent{
		EventType:    "success",
		Timestamp:    time.Now(),
		RequestID:    requestID,
		Transport:    transport,
		Target:       target,
		UserID:       claims.CustomData,
		Algorithm:    extractAlgorithmFromToken(token),
		TokenPreview: token,
		Latency:      latency,
	})
}

// logAuthFailure logs a failed authentication event
func logAuthFailure(ctx context.Context, cfg *Config, transport, target, requestID string, token string, err error, latency time.Duration) {
	if cfg.Logger() == nil {
		return
	}

	logSecurityEvent(ctx, cfg.Logger(), SecurityEvent{
		EventType:     "failure",
		Timestamp:     time.Now(),
		RequestID:     requestID,
		Transport:     transport,
		Target:        target,
		Algorithm:     extractAlgorithmFromToken(token),
		FailureReason: getErrorCode(err),
		TokenPreview:  token,
		Latency:       latency,
	})
}

// getErrorCode extracts the error code from a validation error
func getErrorCode(err error) string {
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return string(valErr.Code)
	}
	return "UNKNOWN"
}

// extractAlgorithmFromToken reads the alg header without verifying the token
// Returns "MALFORMED" if the header cannot be decoded and "" for an empty token
func extractAlgorithmFromToken(token string) string {
	if token == "" {
		return ""
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "MALFORMED"
	}

	if alg, ok := parsed.Header["alg"].(string); ok {
		return alg
	}
	return "MALFORMED"
}
