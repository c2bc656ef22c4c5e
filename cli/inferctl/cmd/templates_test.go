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

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTemplateDescription(t *testing.T) {
	content := `# Description: Redis vector store for retrieval
# Variables: Name
apiVersion: apps/v1
`
	assert.Equal(t, "Redis vector store for retrieval", extractTemplateDescription(content))

	// Description must appear in the leading comment block.
	late := "apiVersion: v1\n# Description: too late\n"
	assert.Equal(t, "No description available", extractTemplateDescription(late))

	assert.Equal(t, "No description available", extractTemplateDescription(""))
}

func TestExtractTemplateVariables(t *testing.T) {
	content := `
name: {{ .Name }}
namespace: {{ .Namespace }}
image: {{ .Image }}
again: {{ .Name }}
`
	variables := extractTemplateVariables(content)
	assert.Equal(t, []string{"Name", "Namespace", "Image"}, variables)

	assert.Empty(t, extractTemplateVariables("no variables here"))
}

func TestLoadDeploySpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.yaml")
	content := `
model:
  name: llama-3-8b
  primaryContainer:
    image: vllm/vllm-openai:v0.8.4
endpointConfig:
  name: chat-config
  productionVariants:
    - name: main
      modelName: llama-3-8b
      instanceType: ml.g5.2xlarge
      initialInstanceCount: 1
endpointName: chat
scalingPolicies:
  - name: scale-out
    resourceId: endpoint/chat
    policyType: StepScaling
    minCapacity: 0
    maxCapacity: 2
    stepScaling:
      stepAdjustments:
        - metricIntervalLowerBound: 0
          scalingAdjustment: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	spec, err := loadDeploySpec(path)
	require.NoError(t, err)
	assert.Equal(t, "chat", spec.EndpointName)
	assert.Equal(t, "llama-3-8b", spec.Model.Name)
	require.Len(t, spec.EndpointConfig.Variants, 1)
	require.Len(t, spec.Policies, 1)
	assert.Equal(t, int32(2), spec.Policies[0].MaxCapacity)
}

func TestLoadDeploySpecRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpointName: chat\n"), 0o600))

	_, err := loadDeploySpec(path)
	assert.Error(t, err)

	_, err = loadDeploySpec(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDeploySpecRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpontName: typo\n"), 0o600))

	_, err := loadDeploySpec(path)
	assert.Error(t, err)
}
