// Package requestid assigns every request a correlation ID, stores it in the
// request context and echoes it in the X-Request-ID response header.
package requestid

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/Wang-tianhao/echo-auth-service/pipeline"
)

const (
	Header      = "X-Request-ID"
	maxIDLength = 128
	idPattern   = "^[a-zA-Z0-9_-]+$"
)

var validIDRegex = regexp.MustCompile(idPattern)

type contextKey struct{}

// WithContext stores a request ID in ctx
func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the request ID stored in ctx
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok
}

// Layer returns a pipeline layer that accepts a well-formed inbound
// X-Request-ID or generates a new UUID in its place.
func Layer() pipeline.Layer {
	return pipeline.LayerFunc(func(next pipeline.Service) pipeline.Service {
		return pipeline.ServiceFunc(func(req *http.Request) (*pipeline.Response, error) {
			id := req.Header.Get(Header)
			if !Valid(id) {
				id = uuid.New().String()
			}

			resp, err := next.Call(req.WithContext(WithContext(req.Context(), id)))
			if err != nil {
				return nil, err
			}
			if resp == nil {
				resp = pipeline.NewResponse(http.StatusOK)
			}
			if resp.Header == nil {
				resp.Header = make(http.Header)
			}
			resp.Header.Set(Header, id)
			return resp, nil
		})
	})
}

// Valid reports whether id is an acceptable inbound request ID
func Valid(id string) bool {
	if len(id) == 0 || len(id) > maxIDLength {
		return false
	}
	return validIDRegex.MatchString(id)
}
