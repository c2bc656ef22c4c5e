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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
	"github.com/modelserve-ai/inferctl/pkg/platform"
)

func putIdlePolicy(t *testing.T, store *Store, name, resourceID string, minCap, maxCap int32) {
	t.Helper()
	_, err := store.PutScalingPolicy(&inferencev1.ScalingPolicy{
		Name:        name,
		ResourceID:  resourceID,
		Type:        inferencev1.StepScaling,
		MinCapacity: minCap,
		MaxCapacity: maxCap,
		StepScaling: &inferencev1.StepScalingConfig{
			Steps: []inferencev1.StepAdjustment{{MetricIntervalLowerBound: 0, ScalingAdjustment: 1}},
		},
	})
	require.NoError(t, err)
}

func TestBeginInvocation(t *testing.T) {
	store := newTestStore(t)
	seedEndpoint(t, store, "chat")

	assert.Nil(t, store.BeginInvocation("chat"))

	apiErr := store.BeginInvocation("ghost")
	require.NotNil(t, apiErr)
	assert.Equal(t, platform.CodeNotFound, apiErr.Code)
}

func TestScaleIdleToZeroRequiresPolicy(t *testing.T) {
	store := newTestStore(t)
	seedEndpoint(t, store, "chat")

	// Without a MinCapacity=0 policy the endpoint keeps its capacity.
	store.ScaleIdleToZero(0)
	ep, err := store.GetEndpoint("chat")
	require.NoError(t, err)
	assert.Equal(t, int32(1), ep.Variants[0].CurrentInstanceCount)

	putIdlePolicy(t, store, "to-zero", "endpoint/chat", 0, 2)
	store.ScaleIdleToZero(0)
	ep, err = store.GetEndpoint("chat")
	require.NoError(t, err)
	assert.Equal(t, int32(0), ep.Variants[0].CurrentInstanceCount)
}

func TestScaleIdleToZeroRespectsIdleWindow(t *testing.T) {
	store := newTestStore(t)
	seedEndpoint(t, store, "chat")
	putIdlePolicy(t, store, "to-zero", "endpoint/chat", 0, 2)

	// Recently invoked, so a long idle window keeps it up.
	require.Nil(t, store.BeginInvocation("chat"))
	store.ScaleIdleToZero(time.Hour)
	ep, err := store.GetEndpoint("chat")
	require.NoError(t, err)
	assert.Equal(t, int32(1), ep.Variants[0].CurrentInstanceCount)
}

func TestZeroCapacityInvocationWakesEndpoint(t *testing.T) {
	store := newTestStore(t)
	seedEndpoint(t, store, "chat")
	putIdlePolicy(t, store, "to-zero", "endpoint/chat", 0, 2)
	store.ScaleIdleToZero(0)

	apiErr := store.BeginInvocation("chat")
	require.NotNil(t, apiErr)
	assert.Equal(t, platform.CodeNoCapacity, apiErr.Code)

	// The failed invocation started re-provisioning.
	ep, err := store.GetEndpoint("chat")
	require.NoError(t, err)
	assert.Equal(t, inferencev1.EndpointUpdating, ep.Status)

	require.Eventually(t, func() bool {
		ep, err := store.GetEndpoint("chat")
		return err == nil && ep.Status == inferencev1.EndpointInService &&
			ep.Variants[0].CurrentInstanceCount > 0
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, store.BeginInvocation("chat"))
}

func TestApplyStepPolicyOnComponent(t *testing.T) {
	store := newTestStore(t)
	seedEndpoint(t, store, "chat")

	_, err := store.CreateInferenceComponent(&inferencev1.InferenceComponent{
		Name:         "chat-base",
		EndpointName: "chat",
		ModelName:    "chat-model",
		Resources:    &inferencev1.ComputeResources{Accelerators: 1},
		CopyCount:    1,
	})
	require.NoError(t, err)

	_, err = store.PutScalingPolicy(&inferencev1.ScalingPolicy{
		Name:        "step-up",
		ResourceID:  "inference-component/chat-base",
		Type:        inferencev1.StepScaling,
		MinCapacity: 0,
		MaxCapacity: 3,
		StepScaling: &inferencev1.StepScalingConfig{
			Steps: []inferencev1.StepAdjustment{
				{MetricIntervalLowerBound: 0, ScalingAdjustment: 1},
				{MetricIntervalLowerBound: 10, ScalingAdjustment: 2},
			},
		},
	})
	require.NoError(t, err)

	// Metric value 5 matches the first step only.
	store.ApplyStepPolicy("step-up", 5)
	ic, err := store.GetInferenceComponent("chat-base")
	require.NoError(t, err)
	assert.Equal(t, int32(2), ic.CopyCount)

	// Metric value 50 matches the largest step, clamped to MaxCapacity.
	store.ApplyStepPolicy("step-up", 50)
	ic, err = store.GetInferenceComponent("chat-base")
	require.NoError(t, err)
	assert.Equal(t, int32(3), ic.CopyCount)

	// At the bound the policy is a no-op.
	store.ApplyStepPolicy("step-up", 50)
	ic, err = store.GetInferenceComponent("chat-base")
	require.NoError(t, err)
	assert.Equal(t, int32(3), ic.CopyCount)
}

func TestApplyStepPolicyUnknownTarget(t *testing.T) {
	store := newTestStore(t)
	putIdlePolicy(t, store, "dangling", "inference-component/ghost", 0, 4)

	// Must not panic or create anything.
	store.ApplyStepPolicy("dangling", 1)
	store.ApplyStepPolicy("missing-policy", 1)
	assert.Empty(t, store.ListInferenceComponents(""))
}
