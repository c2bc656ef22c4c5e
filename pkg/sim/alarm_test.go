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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
)

func putAlarm(t *testing.T, store *Store, name, metric, statistic, policy string, threshold float64) {
	t.Helper()
	_, err := store.PutMetricAlarm(&inferencev1.MetricAlarm{
		Name:       name,
		MetricName: metric,
		Statistic:  statistic,
		Threshold:  threshold,
		Comparison: inferencev1.GreaterThanThreshold,
		PolicyName: policy,
		Dimensions: map[string]string{"EndpointName": "chat"},
	})
	require.NoError(t, err)
}

func alarmState(t *testing.T, store *Store, name string) inferencev1.AlarmState {
	t.Helper()
	for _, alarm := range store.ListAlarms() {
		if alarm.Name == name {
			return alarm.State
		}
	}
	t.Fatalf("alarm %s not found", name)
	return ""
}

func TestEvaluateAlarmStates(t *testing.T) {
	store := newTestStore(t)
	evaluator := NewEvaluator(store)
	putAlarm(t, store, "failures", MetricNoCapacityFailures, "Sum", "", 2)

	// No samples yet.
	evaluator.EvaluateOnce()
	assert.Equal(t, inferencev1.AlarmStateInsufficientData, alarmState(t, store, "failures"))

	// Below the threshold.
	evaluator.Record("chat", MetricNoCapacityFailures, 1)
	evaluator.EvaluateOnce()
	assert.Equal(t, inferencev1.AlarmStateOK, alarmState(t, store, "failures"))

	// Breach.
	evaluator.Record("chat", MetricNoCapacityFailures, 1)
	evaluator.Record("chat", MetricNoCapacityFailures, 1)
	evaluator.EvaluateOnce()
	assert.Equal(t, inferencev1.AlarmStateAlarm, alarmState(t, store, "failures"))
}

func TestEvaluateAverageStatistic(t *testing.T) {
	store := newTestStore(t)
	evaluator := NewEvaluator(store)
	putAlarm(t, store, "latency", MetricModelLatency, "Average", "", 100)

	evaluator.Record("chat", MetricModelLatency, 50)
	evaluator.Record("chat", MetricModelLatency, 90)
	evaluator.EvaluateOnce()
	assert.Equal(t, inferencev1.AlarmStateOK, alarmState(t, store, "latency"))

	evaluator.Record("chat", MetricModelLatency, 500)
	evaluator.EvaluateOnce()
	assert.Equal(t, inferencev1.AlarmStateAlarm, alarmState(t, store, "latency"))
}

func TestAlarmTriggersStepPolicy(t *testing.T) {
	store := newTestStore(t)
	evaluator := NewEvaluator(store)
	seedEndpoint(t, store, "chat")

	_, err := store.CreateInferenceComponent(&inferencev1.InferenceComponent{
		Name:         "chat-base",
		EndpointName: "chat",
		ModelName:    "chat-model",
		Resources:    &inferencev1.ComputeResources{Accelerators: 1},
		CopyCount:    1,
	})
	require.NoError(t, err)
	putIdlePolicy(t, store, "scale-out", "inference-component/chat-base", 0, 4)
	putAlarm(t, store, "failures", MetricNoCapacityFailures, "Sum", "scale-out", 0)

	evaluator.Record("chat", MetricNoCapacityFailures, 1)
	evaluator.EvaluateOnce()

	assert.Equal(t, inferencev1.AlarmStateAlarm, alarmState(t, store, "failures"))
	ic, err := store.GetInferenceComponent("chat-base")
	require.NoError(t, err)
	assert.Equal(t, int32(2), ic.CopyCount)
}

func TestAlarmForOtherEndpointStaysQuiet(t *testing.T) {
	store := newTestStore(t)
	evaluator := NewEvaluator(store)
	putAlarm(t, store, "failures", MetricNoCapacityFailures, "Sum", "", 0)

	// Samples for a different endpoint do not feed this alarm's window.
	evaluator.Record("other", MetricNoCapacityFailures, 5)
	evaluator.EvaluateOnce()
	assert.Equal(t, inferencev1.AlarmStateInsufficientData, alarmState(t, store, "failures"))
}
