package jwtauth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Wang-tianhao/echo-auth-service/requestid"
)

// unauthenticatedMessage is the only detail a rejected gRPC caller sees
const unauthenticatedMessage = "unauthenticated"

// UnaryServerInterceptor returns a gRPC unary server interceptor for bearer authentication.
// Methods whose full name starts with a bypass prefix are not authenticated.
func UnaryServerInterceptor(cfg *Config) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if cfg.IsBypassed(info.FullMethod) {
			return handler(ctx, req)
		}

		startTime := time.Now()

		// Generate request ID for correlation
		reqID := requestIDFromMetadata(ctx)
		ctx = requestid.WithContext(ctx, reqID)

		// Extract metadata
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			err := NewValidationError(ErrMissingToken, "metadata not found", nil)
			logAuthFailure(ctx, cfg, "grpc", info.FullMethod, reqID, "", err, time.Since(startTime))
			return nil, status.Error(codes.Unauthenticated, unauthenticatedMessage)
		}

		// Extract token from metadata
		token, err := extractTokenFromMetadata(md)
		if err != nil {
			logAuthFailure(ctx, cfg, "grpc", info.FullMethod, reqID, "", err, time.Since(startTime))
			return nil, status.Error(codes.Unauthenticated, unauthenticatedMessage)
		}

		// Validate token
		claims, err := cfg.Verifier().Verify(token)
		if err != nil {
			logAuthFailure(ctx, cfg, "grpc", info.FullMethod, reqID, token, err, time.Since(startTime))
			return nil, status.Error(codes.Unauthenticated, unauthenticatedMessage)
		}

		logAuthSuccess(ctx, cfg, "grpc", info.FullMethod, reqID, claims, token, time.Since(startTime))

		// Call the handler with enriched context
		return handler(WithClaims(ctx, claims), req)
	}
}

// requestIDFromMetadata reuses an inbound x-request-id or generates one
func requestIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(strings.ToLower(requestid.Header)); len(values) > 0 && requestid.Valid(values[0]) {
			return values[0]
		}
	}
	return uuid.New().String()
}
