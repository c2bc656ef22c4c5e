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

package sim

import (
	"context"
	"sync"
	"time"

	"k8s.io/klog/v2"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
)

const metricWindowSpan = 5 * time.Minute

// Evaluator keeps per-endpoint metric windows and periodically evaluates
// registered alarms against them, firing step-scaling policies on ALARM.
type Evaluator struct {
	store *Store

	mu      sync.Mutex
	windows map[string]*metricWindow
}

func NewEvaluator(store *Store) *Evaluator {
	return &Evaluator{
		store:   store,
		windows: make(map[string]*metricWindow),
	}
}

// Record appends one metric sample for an endpoint.
func (e *Evaluator) Record(endpointName, metric string, value float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := metric + "|" + endpointName
	window, ok := e.windows[key]
	if !ok {
		window = newMetricWindow(metricWindowSpan)
		e.windows[key] = window
	}
	window.Append(value)
}

// EvaluateOnce walks all alarms, updates their states, and applies the
// policies of alarms in ALARM state.
func (e *Evaluator) EvaluateOnce() {
	for _, alarm := range e.store.ListAlarms() {
		endpointName := alarm.Dimensions["EndpointName"]

		e.mu.Lock()
		window := e.windows[alarm.MetricName+"|"+endpointName]
		e.mu.Unlock()

		if window == nil || window.Count() == 0 {
			e.store.SetAlarmState(alarm.Name, inferencev1.AlarmStateInsufficientData)
			continue
		}

		var value float64
		if alarm.Statistic == "Average" {
			value, _ = window.Average()
		} else {
			value = window.Sum()
		}

		breached := false
		switch alarm.Comparison {
		case inferencev1.GreaterThanThreshold:
			breached = value > alarm.Threshold
		case inferencev1.LessThanThreshold:
			breached = value < alarm.Threshold
		}

		if !breached {
			e.store.SetAlarmState(alarm.Name, inferencev1.AlarmStateOK)
			continue
		}
		if e.store.SetAlarmState(alarm.Name, inferencev1.AlarmStateAlarm) {
			klog.Infof("sim: alarm %s breached (%s=%v, threshold %v)",
				alarm.Name, alarm.MetricName, value, alarm.Threshold)
		}
		if alarm.PolicyName != "" {
			e.store.ApplyStepPolicy(alarm.PolicyName, value)
		}
	}
}

// Run evaluates alarms and the idle scale-to-zero check on a fixed
// interval until ctx is cancelled.
func (e *Evaluator) Run(ctx context.Context, interval, idleAfter time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.store.ScaleIdleToZero(idleAfter)
			e.EvaluateOnce()
		}
	}
}
