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
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
)

// DeploySpec is the YAML document consumed by `inferctl deploy` and
// `inferctl create stack`: the full recipe of one endpoint, from model to
// alarms, in creation order.
type DeploySpec struct {
	Model          *inferencev1.Model               `json:"model"`
	EndpointConfig *inferencev1.EndpointConfig      `json:"endpointConfig"`
	EndpointName   string                           `json:"endpointName"`
	Components     []inferencev1.InferenceComponent `json:"inferenceComponents,omitempty"`
	Policies       []inferencev1.ScalingPolicy      `json:"scalingPolicies,omitempty"`
	Alarms         []inferencev1.MetricAlarm        `json:"alarms,omitempty"`
}

func loadDeploySpec(path string) (*DeploySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", path, err)
	}
	var spec DeploySpec
	if err := yaml.UnmarshalStrict(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", path, err)
	}
	if spec.Model == nil || spec.EndpointConfig == nil || spec.EndpointName == "" {
		return nil, fmt.Errorf("%s must set model, endpointConfig and endpointName", path)
	}
	return &spec, nil
}

func decodeFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %v", path, err)
	}
	if err := yaml.UnmarshalStrict(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %v", path, err)
	}
	return nil
}
