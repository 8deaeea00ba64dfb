// Package servertiming provides a pipeline layer that measures how long the
// wrapped service takes and reports it in the Server-Timing response header.
//
// The layer's contribution has the form
//
//	app;dur=<ms>
//	app;desc="<description>";dur=<ms>
//
// and is prepended to any Server-Timing value already present on the
// response, so timings added by inner layers and handlers are preserved.
package servertiming

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/http/httpguts"

	"github.com/Wang-tianhao/echo-auth-service/pipeline"
)

// HeaderName is the response header written by the layer
const HeaderName = "Server-Timing"

// ErrHeaderEncoding is returned when a Server-Timing value cannot be built or merged
var ErrHeaderEncoding = errors.New("servertiming: header encoding failed")

// Layer measures latency of the service it wraps.
// A Layer is immutable after construction and safe for concurrent use.
type Layer struct {
	app         string
	description string
	observer    prometheus.Observer
}

// Option configures a Layer
type Option func(*Layer) error

// New creates a timing layer that reports under the metric name app
func New(app string, opts ...Option) (*Layer, error) {
	if !httpguts.ValidHeaderFieldName(app) {
		return nil, fmt.Errorf("%w: metric name %q is not a valid token", ErrHeaderEncoding, app)
	}

	l := &Layer{app: app}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// WithDescription adds a desc parameter to the header value
func WithDescription(description string) Option {
	return func(l *Layer) error {
		if !validQuotedText(description) {
			return fmt.Errorf("%w: description %q cannot be carried in a quoted-string", ErrHeaderEncoding, description)
		}
		l.description = description
		return nil
	}
}

// WithObserver records every measured duration, in seconds, on o
func WithObserver(o prometheus.Observer) Option {
	return func(l *Layer) error {
		l.observer = o
		return nil
	}
}

// App returns the metric name
func (l *Layer) App() string {
	return l.app
}

// Description returns the configured description, if any
func (l *Layer) Description() string {
	return l.description
}

// Wrap implements pipeline.Layer
func (l *Layer) Wrap(next pipeline.Service) pipeline.Service {
	return pipeline.ServiceFunc(func(req *http.Request) (*pipeline.Response, error) {
		start := time.Now()

		resp, err := next.Call(req)
		if err != nil {
			return nil, err
		}
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}

		elapsed := time.Since(start)
		if l.observer != nil {
			l.observer.Observe(elapsed.Seconds())
		}

		if resp == nil {
			resp = pipeline.NewResponse(http.StatusOK)
		}
		if err := l.annotate(resp, elapsed); err != nil {
			return nil, err
		}
		return resp, nil
	})
}

// Format renders the header contribution for the given duration
func (l *Layer) Format(elapsed time.Duration) string {
	if l.description != "" {
		return fmt.Sprintf("%s;desc=%q;dur=%d", l.app, l.description, elapsed.Milliseconds())
	}
	return fmt.Sprintf("%s;dur=%d", l.app, elapsed.Milliseconds())
}

// annotate merges this layer's contribution into resp's header
func (l *Layer) annotate(resp *pipeline.Response, elapsed time.Duration) error {
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}

	value := l.Format(elapsed)
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("%w: formatted value %q is not a valid header value", ErrHeaderEncoding, value)
	}

	existing := resp.Header.Values(HeaderName)
	if len(existing) == 0 {
		resp.Header.Set(HeaderName, value)
		return nil
	}

	for _, v := range existing {
		if !utf8.ValidString(v) || !httpguts.ValidHeaderFieldValue(v) {
			return fmt.Errorf("%w: existing value %q is not a valid header value", ErrHeaderEncoding, v)
		}
	}

	resp.Header.Set(HeaderName, value+", "+strings.Join(existing, ", "))
	return nil
}

// validQuotedText reports whether s fits in a quoted-string without escaping
func validQuotedText(s string) bool {
	if !utf8.ValidString(s) || !httpguts.ValidHeaderFieldValue(s) {
		return false
	}
	return !strings.ContainsAny(s, "\"\\")
}
