// Package pipeline defines the request/response service model that the
// authentication and timing middleware are built on.
//
// A Service turns one *http.Request into one *Response. A Layer wraps a
// Service to produce another Service. Stacking layers around a base service
// yields a decorator chain: requests travel outer to inner, responses travel
// inner to outer, and every layer can observe or replace the response of the
// service it wraps.
package pipeline

import (
	"net/http"
)

// Response is the buffered result produced by a Service.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewResponse creates a response with the given status and an empty header map.
func NewResponse(status int) *Response {
	return &Response{
		StatusCode: status,
		Header:     make(http.Header),
	}
}

// Service handles a single request.
//
// Call blocks until the response is available. Implementations that hold a
// handle to an inner service must return the inner error unchanged unless
// they deliberately turn it into a Response.
type Service interface {
	Call(req *http.Request) (*Response, error)
}

// ServiceFunc adapts an ordinary function to the Service interface.
type ServiceFunc func(req *http.Request) (*Response, error)

// Call calls f(req).
func (f ServiceFunc) Call(req *http.Request) (*Response, error) {
	return f(req)
}

// Layer wraps a Service to produce a new Service.
// Wrap must be cheap and must not perform I/O.
type Layer interface {
	Wrap(next Service) Service
}

// LayerFunc adapts an ordinary function to the Layer interface.
type LayerFunc func(next Service) Service

// Wrap calls f(next).
func (f LayerFunc) Wrap(next Service) Service {
	return f(next)
}

// Stack wraps base with the given layers. The first layer is the outermost:
//
//	Stack(handler, timing, auth)
//	// Request order:  timing -> auth -> handler
//	// Response order: handler -> auth -> timing
func Stack(base Service, layers ...Layer) Service {
	svc := base
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i] == nil {
			continue
		}
		svc = layers[i].Wrap(svc)
	}
	return svc
}
