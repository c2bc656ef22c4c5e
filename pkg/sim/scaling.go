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
	"fmt"
	"net/http"
	"strings"
	"time"

	"k8s.io/klog/v2"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
	"github.com/modelserve-ai/inferctl/pkg/platform"
)

// Metric names the simulator tracks per endpoint.
const (
	MetricNoCapacityFailures = "NoCapacityInvocationFailures"
	MetricInvocations        = "Invocations"
	MetricModelLatency       = "ModelLatency"
)

// BeginInvocation validates that the endpoint can serve a request. A
// scaled-to-zero endpoint returns NoCapacity and starts re-provisioning,
// which is exactly the failure the scale-from-zero alarm watches for.
func (s *Store) BeginInvocation(name string) *platform.APIError {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[name]
	if !ok {
		return errNotFound("endpoint", name)
	}
	switch ep.Status {
	case inferencev1.EndpointInService, inferencev1.EndpointUpdating:
	default:
		return &platform.APIError{
			Code:       platform.CodeConflictingOp,
			Message:    fmt.Sprintf("endpoint %q is %s and cannot be invoked", name, ep.Status),
			StatusCode: http.StatusConflict,
		}
	}

	capacity := int32(0)
	for _, v := range ep.Variants {
		capacity += v.CurrentInstanceCount
	}
	if capacity == 0 {
		s.wakeLocked(ep)
		return &platform.APIError{
			Code:       platform.CodeNoCapacity,
			Message:    fmt.Sprintf("endpoint %q has no capacity, re-provisioning", name),
			StatusCode: http.StatusServiceUnavailable,
		}
	}
	if ep.Status == inferencev1.EndpointUpdating {
		return &platform.APIError{
			Code:       platform.CodeNoCapacity,
			Message:    fmt.Sprintf("endpoint %q is re-provisioning", name),
			StatusCode: http.StatusServiceUnavailable,
		}
	}

	s.lastInvoked[name] = time.Now()
	return nil
}

// wakeLocked starts re-provisioning a scaled-to-zero endpoint. Callers hold
// the store lock.
func (s *Store) wakeLocked(ep *inferencev1.Endpoint) {
	if ep.Status == inferencev1.EndpointUpdating {
		return
	}
	ep.Status = inferencev1.EndpointUpdating
	for i := range ep.Variants {
		if ep.Variants[i].DesiredInstanceCount == 0 {
			ep.Variants[i].DesiredInstanceCount = 1
		}
	}
	name := ep.Name
	klog.Infof("sim: waking endpoint %s from zero capacity", name)
	s.after(func() { s.settleEndpoint(name, inferencev1.EndpointInService) })
}

// ScaleIdleToZero drops the capacity of endpoints that carry a
// MinCapacity=0 scaling policy and have been idle for longer than
// idleAfter.
func (s *Store) ScaleIdleToZero(idleAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, policy := range s.policies {
		if policy.MinCapacity != 0 {
			continue
		}
		name, ok := strings.CutPrefix(policy.ResourceID, "endpoint/")
		if !ok {
			continue
		}
		// Variant-level resource ids look like "endpoint/<name>/variant/<v>".
		if i := strings.Index(name, "/"); i >= 0 {
			name = name[:i]
		}
		ep, ok := s.endpoints[name]
		if !ok || ep.Status != inferencev1.EndpointInService {
			continue
		}
		last, ok := s.lastInvoked[name]
		if !ok || time.Since(last) < idleAfter {
			continue
		}
		scaled := false
		for i := range ep.Variants {
			if ep.Variants[i].CurrentInstanceCount > 0 {
				ep.Variants[i].CurrentInstanceCount = 0
				ep.Variants[i].DesiredInstanceCount = 0
				scaled = true
			}
		}
		if scaled {
			klog.Infof("sim: endpoint %s idle for %s, scaled to zero", name, idleAfter)
		}
	}
}

// SetAlarmState updates an alarm's evaluated state, returning true when it
// changed.
func (s *Store) SetAlarmState(name string, state inferencev1.AlarmState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	alarm, ok := s.alarms[name]
	if !ok || alarm.State == state {
		return false
	}
	alarm.State = state
	klog.V(2).Infof("sim: alarm %s -> %s", name, state)
	return true
}

// ApplyStepPolicy applies the step-scaling adjustment matching metricValue
// to the policy's target, clamped to the policy bounds.
func (s *Store) ApplyStepPolicy(policyName string, metricValue float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	policy, ok := s.policies[policyName]
	if !ok || policy.Type != inferencev1.StepScaling || policy.StepScaling == nil {
		return
	}
	var adjustment int32
	for _, step := range policy.StepScaling.Steps {
		if metricValue >= step.MetricIntervalLowerBound {
			adjustment = step.ScalingAdjustment
		}
	}
	if adjustment == 0 {
		return
	}

	clamp := func(v int32) int32 {
		if v < policy.MinCapacity {
			return policy.MinCapacity
		}
		if v > policy.MaxCapacity {
			return policy.MaxCapacity
		}
		return v
	}

	if name, ok := strings.CutPrefix(policy.ResourceID, "inference-component/"); ok {
		ic, ok := s.components[name]
		if !ok {
			return
		}
		next := clamp(ic.CopyCount + adjustment)
		if next == ic.CopyCount {
			return
		}
		ic.CopyCount = next
		klog.Infof("sim: policy %s scaling component %s to %d copies", policyName, name, next)
		s.after(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.closed {
				return
			}
			if component, ok := s.components[name]; ok {
				component.CurrentCopies = component.CopyCount
			}
		})
		return
	}

	if name, ok := strings.CutPrefix(policy.ResourceID, "endpoint/"); ok {
		if i := strings.Index(name, "/"); i >= 0 {
			name = name[:i]
		}
		ep, ok := s.endpoints[name]
		if !ok {
			return
		}
		for i := range ep.Variants {
			next := clamp(ep.Variants[i].DesiredInstanceCount + adjustment)
			if next == ep.Variants[i].DesiredInstanceCount {
				continue
			}
			ep.Variants[i].DesiredInstanceCount = next
			klog.Infof("sim: policy %s scaling endpoint %s variant %s to %d instances",
				policyName, name, ep.Variants[i].Name, next)
		}
		s.after(func() { s.settleEndpoint(name, inferencev1.EndpointInService) })
	}
}
