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
	"fmt"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
)

// Stack is an infrastructure-as-code document describing a full endpoint
// deployment (model, config, endpoint, scaling) so it can be provisioned
// by external stack tooling instead of imperative calls.
type Stack struct {
	FormatVersion string                   `json:"formatVersion"`
	Description   string                   `json:"description,omitempty"`
	Resources     map[string]StackResource `json:"resources"`
	Outputs       map[string]StackOutput   `json:"outputs,omitempty"`
}

// StackResource is one declared resource with its type tag and properties.
type StackResource struct {
	Type       string      `json:"type"`
	Properties interface{} `json:"properties"`
	DependsOn  []string    `json:"dependsOn,omitempty"`
}

// StackOutput exposes a provisioned attribute to the stack's consumers.
type StackOutput struct {
	Description string `json:"description,omitempty"`
	Value       string `json:"value"`
}

// Stack resource type tags.
const (
	StackTypeModel          = "Modelserve::Inference::Model"
	StackTypeEndpointConfig = "Modelserve::Inference::EndpointConfig"
	StackTypeEndpoint       = "Modelserve::Inference::Endpoint"
	StackTypeScalingPolicy  = "Modelserve::Scaling::Policy"
	StackTypeMetricAlarm    = "Modelserve::Monitoring::Alarm"
)

// StackInput names the resources an endpoint stack is built from.
type StackInput struct {
	Description string
	Model       *inferencev1.Model
	Config      *inferencev1.EndpointConfig
	Endpoint    *inferencev1.Endpoint
	Policies    []inferencev1.ScalingPolicy
	Alarms      []inferencev1.MetricAlarm
}

// BuildStack assembles a stack document wiring the dependency order the
// control plane requires: model before config, config before endpoint,
// endpoint before scaling.
func BuildStack(in StackInput) (*Stack, error) {
	if in.Model == nil || in.Config == nil || in.Endpoint == nil {
		return nil, fmt.Errorf("stack needs a model, an endpoint config, and an endpoint")
	}
	stack := &Stack{
		FormatVersion: "2020-09-01",
		Description:   in.Description,
		Resources: map[string]StackResource{
			"Model": {
				Type:       StackTypeModel,
				Properties: in.Model,
			},
			"EndpointConfig": {
				Type:       StackTypeEndpointConfig,
				Properties: in.Config,
				DependsOn:  []string{"Model"},
			},
			"Endpoint": {
				Type:       StackTypeEndpoint,
				Properties: in.Endpoint,
				DependsOn:  []string{"EndpointConfig"},
			},
		},
		Outputs: map[string]StackOutput{
			"EndpointName": {
				Description: "Name of the deployed endpoint",
				Value:       in.Endpoint.Name,
			},
		},
	}
	for i, policy := range in.Policies {
		stack.Resources[fmt.Sprintf("ScalingPolicy%d", i+1)] = StackResource{
			Type:       StackTypeScalingPolicy,
			Properties: policy,
			DependsOn:  []string{"Endpoint"},
		}
	}
	for i, alarm := range in.Alarms {
		stack.Resources[fmt.Sprintf("Alarm%d", i+1)] = StackResource{
			Type:       StackTypeMetricAlarm,
			Properties: alarm,
			DependsOn:  []string{"Endpoint"},
		}
	}
	return stack, nil
}

// Render marshals the stack with stable indentation.
func (s *Stack) Render() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stack: %v", err)
	}
	return append(data, '\n'), nil
}
