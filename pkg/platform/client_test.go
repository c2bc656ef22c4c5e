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

package platform_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
	"github.com/modelserve-ai/inferctl/pkg/platform"
	"github.com/modelserve-ai/inferctl/pkg/sim"
)

// newTestClient spins up an in-process simulator and a client pointed at
// it, with delays short enough for waiter loops to finish quickly.
func newTestClient(t *testing.T, opts sim.Options) (*platform.Client, *sim.Server) {
	t.Helper()
	if opts.ProvisioningDelay == 0 {
		opts.ProvisioningDelay = 20 * time.Millisecond
	}
	server := sim.NewServer(opts)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(server.Store().Close)

	client := platform.NewClient(&platform.Config{
		BaseURL:      ts.URL,
		Credentials:  platform.Credentials{AccessKeyID: "AKTEST", SecretAccessKey: "test-secret-key"},
		PollInterval: 10 * time.Millisecond,
		Timeout:      5 * time.Second,
	})
	return client, server
}

func testModel(name string) *inferencev1.Model {
	return &inferencev1.Model{
		Name: name,
		Primary: inferencev1.ContainerSpec{
			Image:        "vllm/vllm-openai:v0.8.4",
			ModelDataURL: "s3://models/" + name,
		},
	}
}

func testConfig(name, modelName string, instances int32) *inferencev1.EndpointConfig {
	return &inferencev1.EndpointConfig{
		Name: name,
		Variants: []inferencev1.ProductionVariant{{
			Name:                 "main",
			ModelName:            modelName,
			InstanceType:         "ml.g5.2xlarge",
			InitialInstanceCount: instances,
		}},
	}
}

func TestModelLifecycle(t *testing.T) {
	client, _ := newTestClient(t, sim.Options{})
	ctx := context.Background()

	created, err := client.CreateModel(ctx, testModel("llama-3-8b"))
	require.NoError(t, err)
	assert.Equal(t, "llama-3-8b", created.Name)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = client.CreateModel(ctx, testModel("llama-3-8b"))
	require.Error(t, err)
	assert.True(t, platform.IsAlreadyExists(err))

	described, err := client.DescribeModel(ctx, "llama-3-8b")
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(created, described, cmpopts.IgnoreFields(inferencev1.Model{}, "CreatedAt")))
	assert.True(t, created.CreatedAt.Equal(&described.CreatedAt))

	models, err := client.ListModels(ctx)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "llama-3-8b", models[0].Name)

	require.NoError(t, client.DeleteModel(ctx, "llama-3-8b"))
	_, err = client.DescribeModel(ctx, "llama-3-8b")
	assert.True(t, platform.IsNotFound(err))
}

func TestEndpointLifecycle(t *testing.T) {
	client, _ := newTestClient(t, sim.Options{})
	ctx := context.Background()

	_, err := client.CreateModel(ctx, testModel("llama-3-8b"))
	require.NoError(t, err)
	_, err = client.CreateEndpointConfig(ctx, testConfig("chat-config", "llama-3-8b", 2))
	require.NoError(t, err)

	ep, err := client.CreateEndpoint(ctx, &inferencev1.Endpoint{Name: "chat", ConfigName: "chat-config"})
	require.NoError(t, err)
	assert.Equal(t, inferencev1.EndpointCreating, ep.Status)

	ep, err = client.WaitForEndpointInService(ctx, "chat")
	require.NoError(t, err)
	assert.Equal(t, inferencev1.EndpointInService, ep.Status)
	require.Len(t, ep.Variants, 1)
	assert.Equal(t, int32(2), ep.Variants[0].CurrentInstanceCount)

	endpoints, err := client.ListEndpoints(ctx)
	require.NoError(t, err)
	require.Len(t, endpoints, 1)
	assert.Equal(t, "chat", endpoints[0].Name)

	configs, err := client.ListEndpointConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "chat-config", configs[0].Name)

	// The config is pinned while the endpoint exists.
	err = client.DeleteEndpointConfig(ctx, "chat-config")
	require.Error(t, err)
	var apiErr *platform.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, platform.CodeResourceInUse, apiErr.Code)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	require.NoError(t, client.DeleteEndpoint(ctx, "chat"))
	require.NoError(t, client.WaitForEndpointDeleted(ctx, "chat"))
	require.NoError(t, client.DeleteEndpointConfig(ctx, "chat-config"))
	require.NoError(t, client.DeleteModel(ctx, "llama-3-8b"))
}

func TestUpdateEndpointRollsOut(t *testing.T) {
	client, _ := newTestClient(t, sim.Options{})
	ctx := context.Background()

	_, err := client.CreateModel(ctx, testModel("llama-3-8b"))
	require.NoError(t, err)
	_, err = client.CreateEndpointConfig(ctx, testConfig("cfg-v1", "llama-3-8b", 1))
	require.NoError(t, err)
	_, err = client.CreateEndpointConfig(ctx, testConfig("cfg-v2", "llama-3-8b", 3))
	require.NoError(t, err)

	_, err = client.CreateEndpoint(ctx, &inferencev1.Endpoint{Name: "chat", ConfigName: "cfg-v1"})
	require.NoError(t, err)
	_, err = client.WaitForEndpointInService(ctx, "chat")
	require.NoError(t, err)

	ep, err := client.UpdateEndpoint(ctx, "chat", "cfg-v2")
	require.NoError(t, err)
	assert.Equal(t, inferencev1.EndpointUpdating, ep.Status)

	ep, err = client.WaitForEndpointInService(ctx, "chat")
	require.NoError(t, err)
	assert.Equal(t, "cfg-v2", ep.ConfigName)
	require.Len(t, ep.Variants, 1)
	assert.Equal(t, int32(3), ep.Variants[0].CurrentInstanceCount)
}

func TestInferenceComponents(t *testing.T) {
	client, _ := newTestClient(t, sim.Options{})
	ctx := context.Background()

	_, err := client.CreateModel(ctx, testModel("llama-3-8b"))
	require.NoError(t, err)
	_, err = client.CreateEndpointConfig(ctx, testConfig("chat-config", "llama-3-8b", 1))
	require.NoError(t, err)
	_, err = client.CreateEndpoint(ctx, &inferencev1.Endpoint{Name: "chat", ConfigName: "chat-config"})
	require.NoError(t, err)
	_, err = client.WaitForEndpointInService(ctx, "chat")
	require.NoError(t, err)

	base := &inferencev1.InferenceComponent{
		Name:         "chat-base",
		EndpointName: "chat",
		VariantName:  "main",
		ModelName:    "llama-3-8b",
		Resources:    &inferencev1.ComputeResources{Accelerators: 1},
		CopyCount:    1,
	}
	_, err = client.CreateInferenceComponent(ctx, base)
	require.NoError(t, err)
	_, err = client.WaitForInferenceComponentInService(ctx, "chat-base")
	require.NoError(t, err)

	adapter := &inferencev1.InferenceComponent{
		Name:          "summarizer",
		EndpointName:  "chat",
		VariantName:   "main",
		BaseComponent: "chat-base",
		ArtifactURL:   "s3://adapters/summarizer",
		CopyCount:     1,
	}
	_, err = client.CreateInferenceComponent(ctx, adapter)
	require.NoError(t, err)
	_, err = client.WaitForInferenceComponentInService(ctx, "summarizer")
	require.NoError(t, err)

	components, err := client.ListInferenceComponents(ctx, "chat")
	require.NoError(t, err)
	assert.Len(t, components, 2)

	// The base is pinned while the adapter exists.
	err = client.DeleteInferenceComponent(ctx, "chat-base")
	var apiErr *platform.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, platform.CodeResourceInUse, apiErr.Code)

	scaled, err := client.UpdateInferenceComponentCopies(ctx, "summarizer", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(3), scaled.CopyCount)
	ic, err := client.WaitForInferenceComponentInService(ctx, "summarizer")
	require.NoError(t, err)
	assert.Equal(t, int32(3), ic.CurrentCopies)
}

func TestScalingPoliciesAndAlarms(t *testing.T) {
	client, _ := newTestClient(t, sim.Options{})
	ctx := context.Background()

	policy := &inferencev1.ScalingPolicy{
		Name:        "chat-scale-out",
		ResourceID:  "endpoint/chat",
		Type:        inferencev1.StepScaling,
		MinCapacity: 0,
		MaxCapacity: 4,
		StepScaling: &inferencev1.StepScalingConfig{
			Steps: []inferencev1.StepAdjustment{{MetricIntervalLowerBound: 0, ScalingAdjustment: 1}},
		},
	}
	_, err := client.PutScalingPolicy(ctx, policy)
	require.NoError(t, err)

	// Put replaces by name.
	policy.MaxCapacity = 8
	_, err = client.PutScalingPolicy(ctx, policy)
	require.NoError(t, err)

	policies, err := client.ListScalingPolicies(ctx, "endpoint/chat")
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, int32(8), policies[0].MaxCapacity)

	none, err := client.ListScalingPolicies(ctx, "endpoint/other")
	require.NoError(t, err)
	assert.Empty(t, none)

	alarm := &inferencev1.MetricAlarm{
		Name:              "chat-no-capacity",
		MetricName:        "NoCapacityInvocationFailures",
		Statistic:         "Sum",
		Threshold:         0,
		Comparison:        inferencev1.GreaterThanThreshold,
		EvaluationPeriods: 1,
		PolicyName:        "chat-scale-out",
		Dimensions:        map[string]string{"EndpointName": "chat"},
	}
	stored, err := client.PutMetricAlarm(ctx, alarm)
	require.NoError(t, err)
	assert.Equal(t, inferencev1.AlarmStateInsufficientData, stored.State)

	require.NoError(t, client.DeleteAlarm(ctx, "chat-no-capacity"))
	require.NoError(t, client.DeleteScalingPolicy(ctx, "chat-scale-out"))
	assert.True(t, platform.IsNotFound(client.DeleteScalingPolicy(ctx, "chat-scale-out")))
}

func TestValidationErrors(t *testing.T) {
	client, _ := newTestClient(t, sim.Options{})
	ctx := context.Background()

	_, err := client.CreateModel(ctx, &inferencev1.Model{Name: "no-image"})
	var apiErr *platform.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, platform.CodeValidation, apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	// Configs must reference existing models.
	_, err = client.CreateEndpointConfig(ctx, testConfig("cfg", "ghost-model", 1))
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, platform.CodeValidation, apiErr.Code)

	// Endpoints must reference existing configs.
	_, err = client.CreateEndpoint(ctx, &inferencev1.Endpoint{Name: "ep", ConfigName: "ghost-config"})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, platform.CodeValidation, apiErr.Code)
}

func TestAuthRejected(t *testing.T) {
	// A secret-protected simulator rejects tokens signed with the wrong
	// key.
	server := sim.NewServer(sim.Options{Secret: "server-secret", ProvisioningDelay: 20 * time.Millisecond})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(server.Store().Close)

	client := platform.NewClient(&platform.Config{
		BaseURL:     ts.URL,
		Credentials: platform.Credentials{AccessKeyID: "AKTEST", SecretAccessKey: "wrong-secret"},
		RetryMax:    1,
	})
	_, err := client.DescribeModel(context.Background(), "anything")
	require.Error(t, err)
	var apiErr *platform.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestAuthAccepted(t *testing.T) {
	server := sim.NewServer(sim.Options{Secret: "shared-secret", ProvisioningDelay: 20 * time.Millisecond})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(server.Store().Close)

	client := platform.NewClient(&platform.Config{
		BaseURL:     ts.URL,
		Credentials: platform.Credentials{AccessKeyID: "AKTEST", SecretAccessKey: "shared-secret"},
	})
	_, err := client.CreateModel(context.Background(), testModel("m"))
	require.NoError(t, err)
}
