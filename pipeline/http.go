package pipeline

import (
	"bytes"
	"log/slog"
	"net/http"
)

// FromHandler adapts an http.Handler into a Service. The handler writes into
// an in-memory buffer that becomes the Response, so streaming and hijacking
// are not supported.
func FromHandler(h http.Handler) Service {
	return ServiceFunc(func(req *http.Request) (*Response, error) {
		w := newBufferedWriter()
		h.ServeHTTP(w, req)
		return w.response(), nil
	})
}

// Handler adapts a Service into an http.Handler.
//
// When the service fails because the client went away, nothing is written.
// Any other error produces an empty 500 response and is logged.
func Handler(svc Service, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, err := svc.Call(r)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			if logger != nil {
				logger.ErrorContext(r.Context(), "service call failed",
					"method", r.Method,
					"path", r.URL.Path,
					"error", err,
				)
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		WriteResponse(w, resp)
	})
}

// WriteResponse copies resp onto w. A nil response or a zero status is
// written as 200 OK.
func WriteResponse(w http.ResponseWriter, resp *Response) {
	if resp == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	dst := w.Header()
	for key, values := range resp.Header {
		dst[key] = append([]string(nil), values...)
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

// bufferedWriter is an http.ResponseWriter that records everything in memory
type bufferedWriter struct {
	header      http.Header
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header)}
}

func (w *bufferedWriter) Header() http.Header {
	return w.header
}

func (w *bufferedWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(p)
}

// Flush is a no-op; gin calls it through http.Flusher.
func (w *bufferedWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
}

func (w *bufferedWriter) response() *Response {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{
		StatusCode: status,
		Header:     w.header,
		Body:       w.body.Bytes(),
	}
}
