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

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

// EndpointStatus is the lifecycle state of an endpoint as reported by the
// control plane. Transitions are owned entirely by the platform; clients
// only observe them through Describe calls.
type EndpointStatus string

const (
	EndpointCreating  EndpointStatus = "Creating"
	EndpointInService EndpointStatus = "InService"
	EndpointUpdating  EndpointStatus = "Updating"
	EndpointDeleting  EndpointStatus = "Deleting"
	EndpointFailed    EndpointStatus = "Failed"
)

// Terminal reports whether the status is one the platform will not leave on
// its own. Deleting is not terminal: the resource disappears afterwards.
func (s EndpointStatus) Terminal() bool {
	return s == EndpointInService || s == EndpointFailed
}

// RoutingStrategy selects how the platform spreads invocations across the
// instances backing a variant.
type RoutingStrategy string

const (
	RoutingLeastOutstandingRequests RoutingStrategy = "LEAST_OUTSTANDING_REQUESTS"
	RoutingRandom                   RoutingStrategy = "RANDOM"
)

// ContainerSpec describes the serving container of a model.
type ContainerSpec struct {
	// Image is the serving container image URI.
	Image string `json:"image"`
	// ModelDataURL points at the model artifact the container loads on start.
	ModelDataURL string `json:"modelDataUrl,omitempty"`
	// Environment is passed to the container verbatim.
	Environment map[string]string `json:"environment,omitempty"`
}

// Model is a reference to a deployable model artifact and its serving
// container. It carries no runtime state of its own.
type Model struct {
	Name string `json:"name"`
	// ExecutionRole is the platform-side identity the serving container
	// assumes when pulling artifacts.
	ExecutionRole string        `json:"executionRole,omitempty"`
	Primary       ContainerSpec `json:"primaryContainer"`
	CreatedAt     metav1.Time   `json:"createdAt,omitempty"`
}

// ServerlessConfig enables managed scale-to-zero capacity for a variant
// instead of a fixed instance fleet.
type ServerlessConfig struct {
	// MemorySizeMB is the memory reservation per concurrent invocation.
	MemorySizeMB int32 `json:"memorySizeMb"`
	// MaxConcurrency bounds concurrent invocations before throttling.
	MaxConcurrency int32 `json:"maxConcurrency"`
	// ProvisionedConcurrency keeps this many warm workers; zero allows the
	// variant to scale all the way down when idle.
	ProvisionedConcurrency int32 `json:"provisionedConcurrency,omitempty"`
}

// ProductionVariant is one scalable unit of an endpoint config: a model
// bound to an instance fleet or a serverless reservation.
type ProductionVariant struct {
	Name      string `json:"name"`
	ModelName string `json:"modelName"`
	// InstanceType names the accelerator SKU, e.g. "ml.g5.2xlarge".
	InstanceType         string          `json:"instanceType,omitempty"`
	InitialInstanceCount int32           `json:"initialInstanceCount,omitempty"`
	MinInstanceCount     int32           `json:"minInstanceCount,omitempty"`
	MaxInstanceCount     int32           `json:"maxInstanceCount,omitempty"`
	Routing              RoutingStrategy `json:"routingStrategy,omitempty"`
	// ContainerStartupHealthCheckTimeout bounds how long the platform waits
	// for the serving container to pass its startup check.
	ContainerStartupHealthCheckTimeout metav1.Duration   `json:"containerStartupHealthCheckTimeout,omitempty"`
	ModelDataDownloadTimeout           metav1.Duration   `json:"modelDataDownloadTimeout,omitempty"`
	Serverless                         *ServerlessConfig `json:"serverless,omitempty"`
}

// EndpointConfig is the immutable deployment recipe an endpoint points at.
type EndpointConfig struct {
	Name      string              `json:"name"`
	Variants  []ProductionVariant `json:"productionVariants"`
	CreatedAt metav1.Time         `json:"createdAt,omitempty"`
}

// VariantStatus is the observed capacity of one production variant.
type VariantStatus struct {
	Name                 string `json:"name"`
	CurrentInstanceCount int32  `json:"currentInstanceCount"`
	DesiredInstanceCount int32  `json:"desiredInstanceCount"`
}

// Endpoint is a named, stateful deployment target exposing one endpoint
// config for inference.
type Endpoint struct {
	Name       string `json:"name"`
	ConfigName string `json:"endpointConfigName"`

	Status EndpointStatus `json:"status,omitempty"`
	// FailureReason is set by the platform when Status is Failed.
	FailureReason string          `json:"failureReason,omitempty"`
	Variants      []VariantStatus `json:"variantStatuses,omitempty"`
	CreatedAt     metav1.Time     `json:"createdAt,omitempty"`
	LastModified  metav1.Time     `json:"lastModifiedAt,omitempty"`
}

// ComputeResources is the per-copy reservation of an inference component.
type ComputeResources struct {
	CPU    resource.Quantity `json:"cpu,omitempty"`
	Memory resource.Quantity `json:"memory,omitempty"`
	// Accelerators is the number of accelerator devices reserved per copy.
	Accelerators int32 `json:"accelerators,omitempty"`
}

// InferenceComponent is a sub-resource of an endpoint holding one loaded
// model or adapter with its own reservation and copy count. Adapter
// components name a base component and carry no reservation of their own.
type InferenceComponent struct {
	Name         string `json:"name"`
	EndpointName string `json:"endpointName"`
	VariantName  string `json:"variantName,omitempty"`

	// ModelName is the model loaded into each copy. For adapter components
	// ArtifactURL points at the adapter weights instead.
	ModelName   string `json:"modelName,omitempty"`
	ArtifactURL string `json:"artifactUrl,omitempty"`
	// BaseComponent is set on adapter components only.
	BaseComponent string            `json:"baseComponentName,omitempty"`
	Resources     *ComputeResources `json:"computeResources,omitempty"`
	CopyCount     int32             `json:"copyCount"`

	Status        EndpointStatus `json:"status,omitempty"`
	FailureReason string         `json:"failureReason,omitempty"`
	CurrentCopies int32          `json:"currentCopyCount,omitempty"`
	CreatedAt     metav1.Time    `json:"createdAt,omitempty"`
}

// IsAdapter reports whether the component loads adapter weights on top of a
// base component instead of a full model.
func (c *InferenceComponent) IsAdapter() bool {
	return c.BaseComponent != ""
}

// ScalingPolicyType distinguishes the two policy shapes the platform
// accepts.
type ScalingPolicyType string

const (
	TargetTrackingScaling ScalingPolicyType = "TargetTrackingScaling"
	StepScaling           ScalingPolicyType = "StepScaling"
)

// TargetTrackingConfig keeps a metric at a target value by adjusting
// capacity between the policy bounds.
type TargetTrackingConfig struct {
	MetricName       string          `json:"metricName"`
	TargetValue      float64         `json:"targetValue"`
	ScaleInCooldown  metav1.Duration `json:"scaleInCooldown,omitempty"`
	ScaleOutCooldown metav1.Duration `json:"scaleOutCooldown,omitempty"`
}

// StepAdjustment adds ScalingAdjustment capacity when the alarm metric
// exceeds the bound.
type StepAdjustment struct {
	MetricIntervalLowerBound float64 `json:"metricIntervalLowerBound"`
	ScalingAdjustment        int32   `json:"scalingAdjustment"`
}

// StepScalingConfig reacts to a metric alarm with fixed capacity steps.
type StepScalingConfig struct {
	AdjustmentType string           `json:"adjustmentType,omitempty"`
	Steps          []StepAdjustment `json:"stepAdjustments"`
	Cooldown       metav1.Duration  `json:"cooldown,omitempty"`
}

// ScalingPolicy attaches scaling behavior to an endpoint variant or an
// inference component. MinCapacity of zero enables scale-to-zero.
type ScalingPolicy struct {
	Name string `json:"name"`
	// ResourceID identifies the scaling target, e.g.
	// "endpoint/my-ep/variant/main" or "inference-component/my-ic".
	ResourceID  string            `json:"resourceId"`
	Type        ScalingPolicyType `json:"policyType"`
	MinCapacity int32             `json:"minCapacity"`
	MaxCapacity int32             `json:"maxCapacity"`

	TargetTracking *TargetTrackingConfig `json:"targetTracking,omitempty"`
	StepScaling    *StepScalingConfig    `json:"stepScaling,omitempty"`
}

// ComparisonOperator relates an alarm metric to its threshold.
type ComparisonOperator string

const (
	GreaterThanThreshold ComparisonOperator = "GreaterThanThreshold"
	LessThanThreshold    ComparisonOperator = "LessThanThreshold"
)

// AlarmState is the evaluated state of a metric alarm.
type AlarmState string

const (
	AlarmStateOK               AlarmState = "OK"
	AlarmStateAlarm            AlarmState = "ALARM"
	AlarmStateInsufficientData AlarmState = "INSUFFICIENT_DATA"
)

// MetricAlarm watches one metric and trips step-scaling policies. The
// NoCapacityInvocationFailures metric backs the scale-from-zero path.
type MetricAlarm struct {
	Name              string             `json:"name"`
	MetricName        string             `json:"metricName"`
	Namespace         string             `json:"namespace,omitempty"`
	Dimensions        map[string]string  `json:"dimensions,omitempty"`
	Statistic         string             `json:"statistic,omitempty"`
	Period            metav1.Duration    `json:"period"`
	EvaluationPeriods int32              `json:"evaluationPeriods"`
	Threshold         float64            `json:"threshold"`
	Comparison        ComparisonOperator `json:"comparisonOperator"`
	// PolicyName names the step-scaling policy the alarm triggers.
	PolicyName string `json:"scalingPolicyName,omitempty"`

	State AlarmState `json:"state,omitempty"`
}

// List wrappers returned by the control plane.

type ModelList struct {
	Items []Model `json:"models"`
}

type EndpointConfigList struct {
	Items []EndpointConfig `json:"endpointConfigs"`
}

type EndpointList struct {
	Items []Endpoint `json:"endpoints"`
}

type InferenceComponentList struct {
	Items []InferenceComponent `json:"inferenceComponents"`
}

type ScalingPolicyList struct {
	Items []ScalingPolicy `json:"scalingPolicies"`
}

type MetricAlarmList struct {
	Items []MetricAlarm `json:"alarms"`
}
