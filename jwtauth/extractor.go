package jwtauth

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/http/httpguts"
	"google.golang.org/grpc/metadata"
)

// bearerPrefix is matched case-sensitively
const bearerPrefix = "Bearer "

// extractTokenFromHeader extracts the token from the Authorization header
// Expected format: "Authorization: Bearer <token>"
func extractTokenFromHeader(h http.Header) (string, error) {
	values := h.Values("Authorization")
	if len(values) == 0 {
		return "", NewValidationError(ErrMissingToken, "authorization header not found", nil)
	}
	return parseBearer(values[0])
}

// extractTokenFromMetadata extracts the token from gRPC metadata
func extractTokenFromMetadata(md metadata.MD) (string, error) {
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", NewValidationError(ErrMissingToken, "authorization metadata not found", nil)
	}
	return parseBearer(values[0])
}

// parseBearer strips the "Bearer " prefix from a raw header value
func parseBearer(value string) (string, error) {
	if !utf8.ValidString(value) || !httpguts.ValidHeaderFieldValue(value) {
		return "", NewValidationError(ErrMalformed, "authorization header is not a valid text value", nil)
	}

	if !strings.HasPrefix(value, bearerPrefix) {
		return "", NewValidationError(ErrMalformed, "invalid authorization header format, expected 'Bearer <token>'", nil)
	}

	token := value[len(bearerPrefix):]
	if token == "" {
		return "", NewValidationError(ErrMalformed, "token is empty", nil)
	}

	return token, nil
}
