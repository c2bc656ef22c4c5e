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

package platform

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
)

// DeployInput bundles the three resources of the canonical deployment
// sequence: model, endpoint config, endpoint.
type DeployInput struct {
	Model        *inferencev1.Model
	Config       *inferencev1.EndpointConfig
	EndpointName string
}

// Deploy runs the standard provisioning sequence: create the model, create
// the endpoint config, create the endpoint, then wait until it is
// InService. Resources that already exist are reused, so a failed deploy
// can be re-run.
func (c *Client) Deploy(ctx context.Context, in DeployInput) (*inferencev1.Endpoint, error) {
	if _, err := c.CreateModel(ctx, in.Model); err != nil && !IsAlreadyExists(err) {
		return nil, fmt.Errorf("create model: %w", err)
	}
	if _, err := c.CreateEndpointConfig(ctx, in.Config); err != nil && !IsAlreadyExists(err) {
		return nil, fmt.Errorf("create endpoint config: %w", err)
	}
	ep := &inferencev1.Endpoint{Name: in.EndpointName, ConfigName: in.Config.Name}
	if _, err := c.CreateEndpoint(ctx, ep); err != nil && !IsAlreadyExists(err) {
		return nil, fmt.Errorf("create endpoint: %w", err)
	}
	return c.WaitForEndpointInService(ctx, in.EndpointName)
}

// Teardown deletes everything attached to an endpoint in reverse creation
// order: alarms, scaling policies, inference components, the endpoint, its
// config, and its models. Resources that are already gone are skipped.
func (c *Client) Teardown(ctx context.Context, endpointName string) error {
	ep, err := c.DescribeEndpoint(ctx, endpointName)
	if IsNotFound(err) {
		klog.Infof("endpoint %s not found, nothing to tear down", endpointName)
		return nil
	}
	if err != nil {
		return err
	}

	components, err := c.ListInferenceComponents(ctx, endpointName)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("list inference components: %w", err)
	}

	// Scaling targets: the endpoint's variants plus every component.
	targets := make([]string, 0, len(components)+1)
	for _, ic := range components {
		targets = append(targets, "inference-component/"+ic.Name)
	}
	targets = append(targets, "endpoint/"+endpointName)

	alarms, err := c.ListAlarms(ctx)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("list alarms: %w", err)
	}

	for _, target := range targets {
		policies, err := c.ListScalingPolicies(ctx, target)
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("list scaling policies of %s: %w", target, err)
		}
		for _, policy := range policies {
			for _, alarm := range alarms {
				if alarm.PolicyName != policy.Name {
					continue
				}
				if err := c.DeleteAlarm(ctx, alarm.Name); err != nil && !IsNotFound(err) {
					return fmt.Errorf("delete alarm %s: %w", alarm.Name, err)
				}
				klog.Infof("deleted alarm %s", alarm.Name)
			}
			if err := c.DeleteScalingPolicy(ctx, policy.Name); err != nil && !IsNotFound(err) {
				return fmt.Errorf("delete scaling policy %s: %w", policy.Name, err)
			}
			klog.Infof("deleted scaling policy %s", policy.Name)
		}
	}

	// Adapter components must go before their base components.
	for _, ic := range components {
		if !ic.IsAdapter() {
			continue
		}
		if err := c.deleteComponent(ctx, ic.Name); err != nil {
			return err
		}
	}
	for _, ic := range components {
		if ic.IsAdapter() {
			continue
		}
		if err := c.deleteComponent(ctx, ic.Name); err != nil {
			return err
		}
	}

	if err := c.DeleteEndpoint(ctx, endpointName); err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete endpoint %s: %w", endpointName, err)
	}
	// Endpoint deletion is asynchronous and the config cannot go while the
	// endpoint still references it.
	if err := c.WaitForEndpointDeleted(ctx, endpointName); err != nil {
		return err
	}
	klog.Infof("deleted endpoint %s", endpointName)

	cfg, err := c.DescribeEndpointConfig(ctx, ep.ConfigName)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := c.DeleteEndpointConfig(ctx, cfg.Name); err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete endpoint config %s: %w", cfg.Name, err)
	}
	klog.Infof("deleted endpoint config %s", cfg.Name)

	for _, variant := range cfg.Variants {
		if err := c.DeleteModel(ctx, variant.ModelName); err != nil && !IsNotFound(err) {
			return fmt.Errorf("delete model %s: %w", variant.ModelName, err)
		}
		klog.Infof("deleted model %s", variant.ModelName)
	}
	return nil
}

func (c *Client) deleteComponent(ctx context.Context, name string) error {
	if err := c.DeleteInferenceComponent(ctx, name); err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete inference component %s: %w", name, err)
	}
	// Component deletion is asynchronous; base components and the endpoint
	// refuse to go while this one is still present.
	if err := c.WaitForInferenceComponentDeleted(ctx, name); err != nil {
		return err
	}
	klog.Infof("deleted inference component %s", name)
	return nil
}
