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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
	"github.com/modelserve-ai/inferctl/pkg/platform"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(10 * time.Millisecond)
	t.Cleanup(store.Close)
	return store
}

// seedEndpoint creates model + config + endpoint and waits for the endpoint
// to settle InService.
func seedEndpoint(t *testing.T, store *Store, name string) {
	t.Helper()
	_, err := store.CreateModel(&inferencev1.Model{
		Name:    name + "-model",
		Primary: inferencev1.ContainerSpec{Image: "vllm/vllm-openai:v0.8.4"},
	})
	require.NoError(t, err)
	_, err = store.CreateEndpointConfig(&inferencev1.EndpointConfig{
		Name: name + "-config",
		Variants: []inferencev1.ProductionVariant{{
			Name:                 "main",
			ModelName:            name + "-model",
			InstanceType:         "ml.g5.2xlarge",
			InitialInstanceCount: 1,
		}},
	})
	require.NoError(t, err)
	_, err = store.CreateEndpoint(&inferencev1.Endpoint{Name: name, ConfigName: name + "-config"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		ep, err := store.GetEndpoint(name)
		return err == nil && ep.Status == inferencev1.EndpointInService
	}, time.Second, 5*time.Millisecond)
}

// Returned endpoints must not alias the live Variants backing array:
// the settle timer mutates it under the store lock while callers hold
// (and marshal) their snapshot outside it.
func TestEndpointSnapshotsDoNotAliasStore(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateModel(&inferencev1.Model{
		Name:    "chat-model",
		Primary: inferencev1.ContainerSpec{Image: "vllm/vllm-openai:v0.8.4"},
	})
	require.NoError(t, err)
	_, err = store.CreateEndpointConfig(&inferencev1.EndpointConfig{
		Name: "chat-config",
		Variants: []inferencev1.ProductionVariant{{
			Name:                 "main",
			ModelName:            "chat-model",
			InstanceType:         "ml.g5.2xlarge",
			InitialInstanceCount: 2,
		}},
	})
	require.NoError(t, err)

	created, err := store.CreateEndpoint(&inferencev1.Endpoint{Name: "chat", ConfigName: "chat-config"})
	require.NoError(t, err)
	listed := store.ListEndpoints()
	require.Len(t, listed, 1)

	// Both snapshots were taken while Creating, before any instances came up.
	require.Len(t, created.Variants, 1)
	assert.Equal(t, int32(0), created.Variants[0].CurrentInstanceCount)

	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.Now().Add(500 * time.Millisecond)
		for time.Now().Before(deadline) {
			if _, err := json.Marshal(listed); err != nil {
				return
			}
			ep, err := store.GetEndpoint("chat")
			if err == nil && ep.Status == inferencev1.EndpointInService {
				return
			}
		}
	}()
	<-done

	ep, err := store.GetEndpoint("chat")
	require.NoError(t, err)
	require.Equal(t, inferencev1.EndpointInService, ep.Status)
	assert.Equal(t, int32(2), ep.Variants[0].CurrentInstanceCount)

	// The settle left the snapshots untouched.
	assert.Equal(t, int32(0), created.Variants[0].CurrentInstanceCount)
	assert.Equal(t, int32(0), listed[0].Variants[0].CurrentInstanceCount)

	// UpdateEndpoint snapshots detach from the rollout the same way.
	updated, err := store.UpdateEndpoint("chat", "chat-config")
	require.NoError(t, err)
	require.Equal(t, inferencev1.EndpointUpdating, updated.Status)
	require.Eventually(t, func() bool {
		ep, err := store.GetEndpoint("chat")
		return err == nil && ep.Status == inferencev1.EndpointInService
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), updated.Variants[0].CurrentInstanceCount)
}

func TestStoreReferentialIntegrity(t *testing.T) {
	store := newTestStore(t)
	seedEndpoint(t, store, "chat")

	// Model pinned by config, config pinned by endpoint.
	err := store.DeleteModel("chat-model")
	require.Error(t, err)
	assert.Equal(t, platform.CodeResourceInUse, err.(*platform.APIError).Code)

	err = store.DeleteEndpointConfig("chat-config")
	require.Error(t, err)
	assert.Equal(t, platform.CodeResourceInUse, err.(*platform.APIError).Code)

	// Endpoint pinned by component.
	_, err = store.CreateInferenceComponent(&inferencev1.InferenceComponent{
		Name:         "chat-base",
		EndpointName: "chat",
		ModelName:    "chat-model",
		Resources:    &inferencev1.ComputeResources{Accelerators: 1},
		CopyCount:    1,
	})
	require.NoError(t, err)

	err = store.DeleteEndpoint("chat")
	require.Error(t, err)
	assert.Equal(t, platform.CodeResourceInUse, err.(*platform.APIError).Code)
}

func TestStoreAdapterValidation(t *testing.T) {
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

	// Adapters must name an existing base.
	_, err = store.CreateInferenceComponent(&inferencev1.InferenceComponent{
		Name:          "orphan",
		EndpointName:  "chat",
		BaseComponent: "ghost",
	})
	require.Error(t, err)
	assert.Equal(t, platform.CodeValidation, err.(*platform.APIError).Code)

	_, err = store.CreateInferenceComponent(&inferencev1.InferenceComponent{
		Name:          "summarizer",
		EndpointName:  "chat",
		BaseComponent: "chat-base",
		ArtifactURL:   "s3://adapters/summarizer",
	})
	require.NoError(t, err)

	// Adapters cannot stack.
	require.Eventually(t, func() bool {
		ic, err := store.GetInferenceComponent("summarizer")
		return err == nil && ic.Status == inferencev1.EndpointInService
	}, time.Second, 5*time.Millisecond)
	_, err = store.CreateInferenceComponent(&inferencev1.InferenceComponent{
		Name:          "stacked",
		EndpointName:  "chat",
		BaseComponent: "summarizer",
	})
	require.Error(t, err)
	assert.Equal(t, platform.CodeValidation, err.(*platform.APIError).Code)
}

func TestStoreComponentNeedsInServiceEndpoint(t *testing.T) {
	store := NewStore(time.Minute)
	t.Cleanup(store.Close)

	_, err := store.CreateModel(&inferencev1.Model{
		Name:    "m",
		Primary: inferencev1.ContainerSpec{Image: "img"},
	})
	require.NoError(t, err)
	_, err = store.CreateEndpointConfig(&inferencev1.EndpointConfig{
		Name: "cfg",
		Variants: []inferencev1.ProductionVariant{{
			Name: "main", ModelName: "m", InstanceType: "ml.g5.2xlarge", InitialInstanceCount: 1,
		}},
	})
	require.NoError(t, err)
	_, err = store.CreateEndpoint(&inferencev1.Endpoint{Name: "chat", ConfigName: "cfg"})
	require.NoError(t, err)

	// Endpoint is still Creating.
	_, err = store.CreateInferenceComponent(&inferencev1.InferenceComponent{
		Name:         "early",
		EndpointName: "chat",
		ModelName:    "m",
		Resources:    &inferencev1.ComputeResources{Accelerators: 1},
	})
	require.Error(t, err)
	assert.Equal(t, platform.CodeConflictingOp, err.(*platform.APIError).Code)
}

func TestSeenToken(t *testing.T) {
	store := newTestStore(t)

	assert.False(t, store.SeenToken("", "model/a"))
	assert.False(t, store.SeenToken("", "model/a"))

	assert.False(t, store.SeenToken("tok-1", "model/a"))
	assert.True(t, store.SeenToken("tok-1", "model/a"))

	// The same token for a different resource is not a replay.
	assert.False(t, store.SeenToken("tok-1", "model/b"))
}
