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

package manifests

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
)

func TestVectorStoreDeploymentDefaults(t *testing.T) {
	deployment := VectorStoreDeployment(VectorStoreOptions{})

	assert.Equal(t, "vector-store", deployment.Name)
	assert.Equal(t, "default", deployment.Namespace)
	require.NotNil(t, deployment.Spec.Replicas)
	assert.Equal(t, int32(1), *deployment.Spec.Replicas)

	require.Len(t, deployment.Spec.Template.Spec.Containers, 1)
	container := deployment.Spec.Template.Spec.Containers[0]
	assert.Equal(t, "redis/redis-stack-server:7.4.0-v0", container.Image)
	assert.Equal(t, int32(6379), container.Ports[0].ContainerPort)
	assert.Equal(t, "4Gi", container.Resources.Limits.Memory().String())
	require.NotNil(t, container.ReadinessProbe)
	assert.Equal(t, int32(6379), container.ReadinessProbe.TCPSocket.Port.IntVal)
}

func TestVectorStoreServiceMatchesDeployment(t *testing.T) {
	opts := VectorStoreOptions{Name: "docs", Namespace: "rag", Port: 7000}
	deployment := VectorStoreDeployment(opts)
	service := VectorStoreService(opts)

	assert.Equal(t, deployment.Spec.Selector.MatchLabels, service.Spec.Selector)
	assert.Equal(t, int32(7000), service.Spec.Ports[0].Port)
	assert.Equal(t, "rag", service.Namespace)
}

func TestRenderVectorStoreIsMultiDoc(t *testing.T) {
	data, err := RenderVectorStore(VectorStoreOptions{Name: "docs"})
	require.NoError(t, err)

	rendered := string(data)
	assert.Equal(t, 2, strings.Count(rendered, "---\n"))
	assert.Contains(t, rendered, "kind: Deployment")
	assert.Contains(t, rendered, "kind: Service")
	assert.Contains(t, rendered, "name: docs")
}

func stackInput() StackInput {
	return StackInput{
		Description: "chat endpoint",
		Model: &inferencev1.Model{
			Name:    "llama-3-8b",
			Primary: inferencev1.ContainerSpec{Image: "vllm/vllm-openai:v0.8.4"},
		},
		Config: &inferencev1.EndpointConfig{
			Name: "chat-config",
			Variants: []inferencev1.ProductionVariant{{
				Name: "main", ModelName: "llama-3-8b", InstanceType: "ml.g5.2xlarge",
			}},
		},
		Endpoint: &inferencev1.Endpoint{Name: "chat", ConfigName: "chat-config"},
		Policies: []inferencev1.ScalingPolicy{{
			Name: "scale-out", ResourceID: "endpoint/chat", Type: inferencev1.StepScaling,
		}},
		Alarms: []inferencev1.MetricAlarm{{
			Name: "no-capacity", MetricName: "NoCapacityInvocationFailures",
		}},
	}
}

func TestBuildStackDependencyOrder(t *testing.T) {
	stack, err := BuildStack(stackInput())
	require.NoError(t, err)

	assert.Equal(t, []string{"Model"}, stack.Resources["EndpointConfig"].DependsOn)
	assert.Equal(t, []string{"EndpointConfig"}, stack.Resources["Endpoint"].DependsOn)
	assert.Equal(t, []string{"Endpoint"}, stack.Resources["ScalingPolicy1"].DependsOn)
	assert.Equal(t, []string{"Endpoint"}, stack.Resources["Alarm1"].DependsOn)
	assert.Equal(t, "chat", stack.Outputs["EndpointName"].Value)
}

func TestBuildStackRequiresCoreResources(t *testing.T) {
	in := stackInput()
	in.Endpoint = nil
	_, err := BuildStack(in)
	assert.Error(t, err)
}

func TestStackRenderRoundTrips(t *testing.T) {
	stack, err := BuildStack(stackInput())
	require.NoError(t, err)
	data, err := stack.Render()
	require.NoError(t, err)

	var decoded Stack
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, stack.FormatVersion, decoded.FormatVersion)
	assert.Len(t, decoded.Resources, 5)
	assert.Equal(t, StackTypeModel, decoded.Resources["Model"].Type)
}
