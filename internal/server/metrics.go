package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Wang-tianhao/echo-auth-service/pipeline"
)

const metricsNamespace = "echo"

// metrics holds the collectors exposed on /metrics
type metrics struct {
	registry *prometheus.Registry
	duration prometheus.Histogram
	requests *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent in the service chain, as reported in Server-Timing.",
			Buckets:   prometheus.DefBuckets,
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Responses produced, by status code.",
		}, []string{"code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.duration,
		m.requests,
	)
	return m
}

// countLayer counts every response by status code
func (m *metrics) countLayer() pipeline.Layer {
	return pipeline.LayerFunc(func(next pipeline.Service) pipeline.Service {
		return pipeline.ServiceFunc(func(req *http.Request) (*pipeline.Response, error) {
			resp, err := next.Call(req)
			if err != nil {
				return nil, err
			}
			code := http.StatusOK
			if resp != nil && resp.StatusCode != 0 {
				code = resp.StatusCode
			}
			m.requests.WithLabelValues(strconv.Itoa(code)).Inc()
			return resp, nil
		})
	})
}
