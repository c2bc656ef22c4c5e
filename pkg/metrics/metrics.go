/*
Copyright The Modelserve Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Label names
	LabelMethod     = "method"
	LabelResource   = "resource"
	LabelStatusCode = "status_code"
	LabelEndpoint   = "endpoint"
	LabelStream     = "stream"
)

// ClientMetrics holds the Prometheus instruments shared by the control-plane
// and runtime clients.
type ClientMetrics struct {
	// Control-plane call counters and latency
	CallsTotal   prometheus.CounterVec
	CallDuration prometheus.HistogramVec

	// Runtime invocation metrics
	InvocationsTotal   prometheus.CounterVec
	InvocationDuration prometheus.HistogramVec
	StreamChunksTotal  prometheus.CounterVec
}

var (
	clientOnce    sync.Once
	clientMetrics *ClientMetrics
)

// Client returns the process-wide client metrics, registering them on the
// default registry on first use.
func Client() *ClientMetrics {
	clientOnce.Do(func() {
		clientMetrics = &ClientMetrics{
			CallsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "modelserve_client_calls_total",
					Help: "Total control-plane API calls issued by the client",
				},
				[]string{LabelMethod, LabelResource, LabelStatusCode},
			),
			CallDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "modelserve_client_call_duration_seconds",
					Help:    "Control-plane API call latency distribution",
					Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
				},
				[]string{LabelMethod, LabelResource},
			),
			InvocationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "modelserve_client_invocations_total",
					Help: "Total endpoint invocations issued by the client",
				},
				[]string{LabelEndpoint, LabelStream, LabelStatusCode},
			),
			InvocationDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "modelserve_client_invocation_duration_seconds",
					Help:    "End-to-end invocation latency distribution",
					Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
				},
				[]string{LabelEndpoint, LabelStream},
			),
			StreamChunksTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "modelserve_client_stream_chunks_total",
					Help: "Total streamed response chunks received",
				},
				[]string{LabelEndpoint},
			),
		}
	})
	return clientMetrics
}

// ObserveCall records one control-plane call. resp may be nil when the
// transport failed before a response arrived.
func (m *ClientMetrics) ObserveCall(method, path string, resp *http.Response, err error, elapsed time.Duration) {
	status := "0"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	} else if err == nil {
		status = "200"
	}
	resource := resourceFromPath(path)
	m.CallsTotal.WithLabelValues(method, resource, status).Inc()
	m.CallDuration.WithLabelValues(method, resource).Observe(elapsed.Seconds())
}

// ObserveInvocation records one runtime invocation.
func (m *ClientMetrics) ObserveInvocation(endpoint string, stream bool, statusCode int, elapsed time.Duration) {
	m.InvocationsTotal.WithLabelValues(endpoint, strconv.FormatBool(stream), strconv.Itoa(statusCode)).Inc()
	m.InvocationDuration.WithLabelValues(endpoint, strconv.FormatBool(stream)).Observe(elapsed.Seconds())
}

// resourceFromPath reduces a request path to its resource collection so
// metric label cardinality stays bounded, e.g.
// "/v1/endpoints/my-ep" -> "endpoints".
func resourceFromPath(path string) string {
	path = strings.TrimPrefix(path, "/v1/")
	if i := strings.IndexAny(path, "/?"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "unknown"
	}
	return path
}
