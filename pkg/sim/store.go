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
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
	"github.com/modelserve-ai/inferctl/pkg/platform"
)

const clientTokenCacheSize = 4096

// Store keeps every simulated control-plane resource in memory and drives
// the lifecycle transitions the real platform performs asynchronously.
type Store struct {
	mu sync.Mutex

	models     map[string]*inferencev1.Model
	configs    map[string]*inferencev1.EndpointConfig
	endpoints  map[string]*inferencev1.Endpoint
	components map[string]*inferencev1.InferenceComponent
	policies   map[string]*inferencev1.ScalingPolicy
	alarms     map[string]*inferencev1.MetricAlarm

	// lastInvoked feeds the scale-to-zero idle check.
	lastInvoked map[string]time.Time

	// seenTokens deduplicates retried creates by client token.
	seenTokens *lru.Cache[string, string]

	provisioningDelay time.Duration
	timers            []*time.Timer
	closed            bool
}

// NewStore builds an empty store. provisioningDelay is how long simulated
// endpoints stay in Creating/Updating/Deleting before settling.
func NewStore(provisioningDelay time.Duration) *Store {
	cache, _ := lru.New[string, string](clientTokenCacheSize)
	return &Store{
		models:            make(map[string]*inferencev1.Model),
		configs:           make(map[string]*inferencev1.EndpointConfig),
		endpoints:         make(map[string]*inferencev1.Endpoint),
		components:        make(map[string]*inferencev1.InferenceComponent),
		policies:          make(map[string]*inferencev1.ScalingPolicy),
		alarms:            make(map[string]*inferencev1.MetricAlarm),
		lastInvoked:       make(map[string]time.Time),
		seenTokens:        cache,
		provisioningDelay: provisioningDelay,
	}
}

// Close stops all pending lifecycle timers.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

// SeenToken records a client idempotency token and reports whether it was
// already used for the given resource. Retried creates with the same token
// succeed without duplicating the resource.
func (s *Store) SeenToken(token, resource string) bool {
	if token == "" {
		return false
	}
	if prev, ok := s.seenTokens.Get(token); ok && prev == resource {
		return true
	}
	s.seenTokens.Add(token, resource)
	return false
}

func errNotFound(kind, name string) *platform.APIError {
	return &platform.APIError{
		Code:       platform.CodeNotFound,
		Message:    fmt.Sprintf("%s %q does not exist", kind, name),
		StatusCode: http.StatusNotFound,
	}
}

func errAlreadyExists(kind, name string) *platform.APIError {
	return &platform.APIError{
		Code:       platform.CodeAlreadyExists,
		Message:    fmt.Sprintf("%s %q already exists", kind, name),
		StatusCode: http.StatusConflict,
	}
}

func errValidation(format string, args ...interface{}) *platform.APIError {
	return &platform.APIError{
		Code:       platform.CodeValidation,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: http.StatusBadRequest,
	}
}

func errInUse(format string, args ...interface{}) *platform.APIError {
	return &platform.APIError{
		Code:       platform.CodeResourceInUse,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: http.StatusConflict,
	}
}

// after schedules fn once the provisioning delay elapses, unless the store
// is closed first.
func (s *Store) after(fn func()) {
	timer := time.AfterFunc(s.provisioningDelay, fn)
	s.timers = append(s.timers, timer)
}

// Models

func (s *Store) CreateModel(model *inferencev1.Model) (*inferencev1.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if model.Name == "" {
		return nil, errValidation("model name is required")
	}
	if model.Primary.Image == "" {
		return nil, errValidation("model %q has no container image", model.Name)
	}
	if _, ok := s.models[model.Name]; ok {
		return nil, errAlreadyExists("model", model.Name)
	}
	stored := *model
	stored.CreatedAt = metav1.Now()
	s.models[model.Name] = &stored
	klog.V(2).Infof("sim: created model %s", model.Name)
	return &stored, nil
}

func (s *Store) GetModel(name string) (*inferencev1.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	model, ok := s.models[name]
	if !ok {
		return nil, errNotFound("model", name)
	}
	copied := *model
	return &copied, nil
}

func (s *Store) ListModels() []inferencev1.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inferencev1.Model, 0, len(s.models))
	for _, model := range s.models {
		out = append(out, *model)
	}
	return out
}

func (s *Store) DeleteModel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[name]; !ok {
		return errNotFound("model", name)
	}
	for _, cfg := range s.configs {
		for _, variant := range cfg.Variants {
			if variant.ModelName == name {
				return errInUse("model %q is referenced by endpoint config %q", name, cfg.Name)
			}
		}
	}
	delete(s.models, name)
	return nil
}

// Endpoint configs

func (s *Store) CreateEndpointConfig(cfg *inferencev1.EndpointConfig) (*inferencev1.EndpointConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Name == "" {
		return nil, errValidation("endpoint config name is required")
	}
	if len(cfg.Variants) == 0 {
		return nil, errValidation("endpoint config %q has no production variants", cfg.Name)
	}
	if _, ok := s.configs[cfg.Name]; ok {
		return nil, errAlreadyExists("endpoint config", cfg.Name)
	}
	for _, variant := range cfg.Variants {
		if _, ok := s.models[variant.ModelName]; !ok {
			return nil, errValidation("variant %q references unknown model %q", variant.Name, variant.ModelName)
		}
		if variant.Serverless == nil && variant.InstanceType == "" {
			return nil, errValidation("variant %q needs an instance type or serverless config", variant.Name)
		}
	}
	stored := *cfg
	stored.CreatedAt = metav1.Now()
	s.configs[cfg.Name] = &stored
	klog.V(2).Infof("sim: created endpoint config %s", cfg.Name)
	return &stored, nil
}

func (s *Store) GetEndpointConfig(name string) (*inferencev1.EndpointConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[name]
	if !ok {
		return nil, errNotFound("endpoint config", name)
	}
	copied := *cfg
	return &copied, nil
}

func (s *Store) ListEndpointConfigs() []inferencev1.EndpointConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inferencev1.EndpointConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, *cfg)
	}
	return out
}

func (s *Store) DeleteEndpointConfig(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[name]; !ok {
		return errNotFound("endpoint config", name)
	}
	for _, ep := range s.endpoints {
		if ep.ConfigName == name {
			return errInUse("endpoint config %q is in use by endpoint %q", name, ep.Name)
		}
	}
	delete(s.configs, name)
	return nil
}

// Endpoints

// copyEndpoint snapshots an endpoint, including the Variants backing
// array, which the settle and scaling timers keep mutating under the
// store lock after the snapshot is returned.
func copyEndpoint(ep *inferencev1.Endpoint) inferencev1.Endpoint {
	copied := *ep
	copied.Variants = append([]inferencev1.VariantStatus(nil), ep.Variants...)
	return copied
}

func (s *Store) CreateEndpoint(ep *inferencev1.Endpoint) (*inferencev1.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ep.Name == "" {
		return nil, errValidation("endpoint name is required")
	}
	if _, ok := s.endpoints[ep.Name]; ok {
		return nil, errAlreadyExists("endpoint", ep.Name)
	}
	cfg, ok := s.configs[ep.ConfigName]
	if !ok {
		return nil, errValidation("endpoint %q references unknown config %q", ep.Name, ep.ConfigName)
	}

	stored := &inferencev1.Endpoint{
		Name:       ep.Name,
		ConfigName: ep.ConfigName,
		Status:     inferencev1.EndpointCreating,
		CreatedAt:  metav1.Now(),
	}
	for _, variant := range cfg.Variants {
		stored.Variants = append(stored.Variants, inferencev1.VariantStatus{
			Name:                 variant.Name,
			DesiredInstanceCount: variant.InitialInstanceCount,
		})
	}
	s.endpoints[ep.Name] = stored

	name := ep.Name
	s.after(func() { s.settleEndpoint(name, inferencev1.EndpointInService) })
	klog.V(2).Infof("sim: created endpoint %s (Creating)", name)
	copied := copyEndpoint(stored)
	return &copied, nil
}

// settleEndpoint moves an endpoint out of a transitional status once the
// provisioning delay has elapsed.
func (s *Store) settleEndpoint(name string, status inferencev1.EndpointStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	ep, ok := s.endpoints[name]
	if !ok {
		return
	}
	ep.Status = status
	ep.LastModified = metav1.Now()
	if status == inferencev1.EndpointInService {
		for i := range ep.Variants {
			ep.Variants[i].CurrentInstanceCount = ep.Variants[i].DesiredInstanceCount
		}
		s.lastInvoked[name] = time.Now()
	}
	klog.V(2).Infof("sim: endpoint %s is now %s", name, status)
}

func (s *Store) GetEndpoint(name string) (*inferencev1.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[name]
	if !ok {
		return nil, errNotFound("endpoint", name)
	}
	copied := copyEndpoint(ep)
	return &copied, nil
}

func (s *Store) ListEndpoints() []inferencev1.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inferencev1.Endpoint, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		out = append(out, copyEndpoint(ep))
	}
	return out
}

// UpdateEndpoint swaps the endpoint's config. The endpoint reports
// Updating until the rollout settles.
func (s *Store) UpdateEndpoint(name, configName string) (*inferencev1.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[name]
	if !ok {
		return nil, errNotFound("endpoint", name)
	}
	if ep.Status != inferencev1.EndpointInService {
		return nil, &platform.APIError{
			Code:       platform.CodeConflictingOp,
			Message:    fmt.Sprintf("endpoint %q cannot be updated while %s", name, ep.Status),
			StatusCode: http.StatusConflict,
		}
	}
	cfg, ok := s.configs[configName]
	if !ok {
		return nil, errValidation("unknown endpoint config %q", configName)
	}
	ep.ConfigName = configName
	ep.Status = inferencev1.EndpointUpdating
	ep.LastModified = metav1.Now()
	ep.Variants = ep.Variants[:0]
	for _, variant := range cfg.Variants {
		ep.Variants = append(ep.Variants, inferencev1.VariantStatus{
			Name:                 variant.Name,
			DesiredInstanceCount: variant.InitialInstanceCount,
		})
	}
	s.after(func() { s.settleEndpoint(name, inferencev1.EndpointInService) })
	copied := copyEndpoint(ep)
	return &copied, nil
}

func (s *Store) DeleteEndpoint(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[name]
	if !ok {
		return errNotFound("endpoint", name)
	}
	for _, ic := range s.components {
		if ic.EndpointName == name {
			return errInUse("endpoint %q still has inference component %q", name, ic.Name)
		}
	}
	ep.Status = inferencev1.EndpointDeleting
	s.after(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		delete(s.endpoints, name)
		delete(s.lastInvoked, name)
		klog.V(2).Infof("sim: endpoint %s deleted", name)
	})
	return nil
}

// Inference components

func (s *Store) CreateInferenceComponent(ic *inferencev1.InferenceComponent) (*inferencev1.InferenceComponent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ic.Name == "" {
		return nil, errValidation("inference component name is required")
	}
	if _, ok := s.components[ic.Name]; ok {
		return nil, errAlreadyExists("inference component", ic.Name)
	}
	ep, ok := s.endpoints[ic.EndpointName]
	if !ok {
		return nil, errValidation("inference component %q references unknown endpoint %q", ic.Name, ic.EndpointName)
	}
	if ep.Status != inferencev1.EndpointInService {
		return nil, &platform.APIError{
			Code:       platform.CodeConflictingOp,
			Message:    fmt.Sprintf("endpoint %q is %s, components need InService", ic.EndpointName, ep.Status),
			StatusCode: http.StatusConflict,
		}
	}
	if ic.IsAdapter() {
		base, ok := s.components[ic.BaseComponent]
		if !ok {
			return nil, errValidation("adapter %q references unknown base component %q", ic.Name, ic.BaseComponent)
		}
		if base.IsAdapter() {
			return nil, errValidation("adapter %q cannot stack on adapter %q", ic.Name, ic.BaseComponent)
		}
	} else {
		if ic.ModelName == "" {
			return nil, errValidation("inference component %q needs a model", ic.Name)
		}
		if _, ok := s.models[ic.ModelName]; !ok {
			return nil, errValidation("inference component %q references unknown model %q", ic.Name, ic.ModelName)
		}
		if ic.Resources == nil {
			return nil, errValidation("inference component %q needs a compute reservation", ic.Name)
		}
	}
	if ic.CopyCount < 0 {
		return nil, errValidation("copy count must not be negative")
	}

	stored := *ic
	stored.Status = inferencev1.EndpointCreating
	stored.CreatedAt = metav1.Now()
	s.components[ic.Name] = &stored

	name := ic.Name
	s.after(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		if component, ok := s.components[name]; ok {
			component.Status = inferencev1.EndpointInService
			component.CurrentCopies = component.CopyCount
			klog.V(2).Infof("sim: inference component %s is now InService", name)
		}
	})
	copied := stored
	return &copied, nil
}

func (s *Store) GetInferenceComponent(name string) (*inferencev1.InferenceComponent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ic, ok := s.components[name]
	if !ok {
		return nil, errNotFound("inference component", name)
	}
	copied := *ic
	return &copied, nil
}

func (s *Store) ListInferenceComponents(endpointName string) []inferencev1.InferenceComponent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inferencev1.InferenceComponent, 0, len(s.components))
	for _, ic := range s.components {
		if endpointName != "" && ic.EndpointName != endpointName {
			continue
		}
		out = append(out, *ic)
	}
	return out
}

// SetInferenceComponentCopies adjusts the desired copy count; the current
// count follows after the provisioning delay.
func (s *Store) SetInferenceComponentCopies(name string, copies int32) (*inferencev1.InferenceComponent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ic, ok := s.components[name]
	if !ok {
		return nil, errNotFound("inference component", name)
	}
	if copies < 0 {
		return nil, errValidation("copy count must not be negative")
	}
	ic.CopyCount = copies
	ic.Status = inferencev1.EndpointUpdating
	s.after(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		if component, ok := s.components[name]; ok {
			component.CurrentCopies = component.CopyCount
			component.Status = inferencev1.EndpointInService
		}
	})
	copied := *ic
	return &copied, nil
}

func (s *Store) DeleteInferenceComponent(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ic, ok := s.components[name]
	if !ok {
		return errNotFound("inference component", name)
	}
	for _, other := range s.components {
		if other.BaseComponent == name {
			return errInUse("component %q is the base of adapter %q", name, other.Name)
		}
	}
	ic.Status = inferencev1.EndpointDeleting
	s.after(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		delete(s.components, name)
	})
	return nil
}

// Scaling policies and alarms

func (s *Store) PutScalingPolicy(policy *inferencev1.ScalingPolicy) (*inferencev1.ScalingPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if policy.Name == "" || policy.ResourceID == "" {
		return nil, errValidation("scaling policy needs a name and a resource id")
	}
	if policy.MaxCapacity < policy.MinCapacity {
		return nil, errValidation("max capacity %d below min capacity %d", policy.MaxCapacity, policy.MinCapacity)
	}
	switch policy.Type {
	case inferencev1.TargetTrackingScaling:
		if policy.TargetTracking == nil {
			return nil, errValidation("target tracking policy %q has no target config", policy.Name)
		}
	case inferencev1.StepScaling:
		if policy.StepScaling == nil || len(policy.StepScaling.Steps) == 0 {
			return nil, errValidation("step scaling policy %q has no steps", policy.Name)
		}
	default:
		return nil, errValidation("unknown policy type %q", policy.Type)
	}
	stored := *policy
	s.policies[policy.Name] = &stored
	klog.V(2).Infof("sim: put scaling policy %s on %s", policy.Name, policy.ResourceID)
	copied := stored
	return &copied, nil
}

func (s *Store) DeleteScalingPolicy(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[name]; !ok {
		return errNotFound("scaling policy", name)
	}
	delete(s.policies, name)
	return nil
}

func (s *Store) ListScalingPolicies(resourceID string) []inferencev1.ScalingPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inferencev1.ScalingPolicy, 0, len(s.policies))
	for _, policy := range s.policies {
		if resourceID != "" && policy.ResourceID != resourceID {
			continue
		}
		out = append(out, *policy)
	}
	return out
}

func (s *Store) PutMetricAlarm(alarm *inferencev1.MetricAlarm) (*inferencev1.MetricAlarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alarm.Name == "" || alarm.MetricName == "" {
		return nil, errValidation("alarm needs a name and a metric")
	}
	stored := *alarm
	if stored.State == "" {
		stored.State = inferencev1.AlarmStateInsufficientData
	}
	s.alarms[alarm.Name] = &stored
	copied := stored
	return &copied, nil
}

func (s *Store) DeleteAlarm(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alarms[name]; !ok {
		return errNotFound("alarm", name)
	}
	delete(s.alarms, name)
	return nil
}

func (s *Store) ListAlarms() []inferencev1.MetricAlarm {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inferencev1.MetricAlarm, 0, len(s.alarms))
	for _, alarm := range s.alarms {
		out = append(out, *alarm)
	}
	return out
}
