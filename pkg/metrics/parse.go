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
	"context"
	"fmt"
	"io"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Sample is one flattened metric series from a scrape.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// ParseMetricsURL scrapes a Prometheus text exposition endpoint, such as
// the simulator's /metrics, into metric families.
func ParseMetricsURL(ctx context.Context, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metrics from %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics endpoint %s returned %s", url, resp.Status)
	}
	return ParseMetrics(resp.Body)
}

// ParseMetrics parses the Prometheus text format.
func ParseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metric families: %v", err)
	}
	return families, nil
}

// Flatten turns the families whose name passes keep into scalar samples.
// Counters and gauges yield their value; histograms yield the mean
// (sample sum over sample count).
func Flatten(families map[string]*dto.MetricFamily, keep func(name string) bool) []Sample {
	var samples []Sample
	for name, family := range families {
		if keep != nil && !keep(name) {
			continue
		}
		for _, metric := range family.Metric {
			labels := make(map[string]string, len(metric.Label))
			for _, pair := range metric.Label {
				labels[pair.GetName()] = pair.GetValue()
			}

			var value float64
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				value = metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				value = metric.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				histogram := metric.GetHistogram()
				if histogram.GetSampleCount() == 0 {
					continue
				}
				value = histogram.GetSampleSum() / float64(histogram.GetSampleCount())
			default:
				continue
			}
			samples = append(samples, Sample{Name: name, Labels: labels, Value: value})
		}
	}
	return samples
}
