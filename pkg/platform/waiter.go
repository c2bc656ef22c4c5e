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
	"time"

	"k8s.io/klog/v2"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
)

// Waiters poll Describe calls on a fixed interval until the resource
// reaches a terminal status. The platform owns all transitions; polling is
// the only way to observe them. Cancellation comes from ctx.

// WaitForEndpointInService polls until the endpoint reports InService.
// A Failed endpoint returns an error carrying the platform's failure
// reason.
func (c *Client) WaitForEndpointInService(ctx context.Context, name string) (*inferencev1.Endpoint, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ep, err := c.DescribeEndpoint(ctx, name)
		if err != nil {
			return nil, err
		}
		klog.V(2).Infof("endpoint %s status: %s", name, ep.Status)
		switch ep.Status {
		case inferencev1.EndpointInService:
			return ep, nil
		case inferencev1.EndpointFailed:
			return ep, fmt.Errorf("endpoint %s failed: %s", name, ep.FailureReason)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for endpoint %s: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// WaitForEndpointDeleted polls until DescribeEndpoint returns NotFound.
func (c *Client) WaitForEndpointDeleted(ctx context.Context, name string) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ep, err := c.DescribeEndpoint(ctx, name)
		if IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		klog.V(2).Infof("endpoint %s status: %s", name, ep.Status)

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for endpoint %s deletion: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// WaitForInferenceComponentDeleted polls until DescribeInferenceComponent
// returns NotFound.
func (c *Client) WaitForInferenceComponentDeleted(ctx context.Context, name string) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ic, err := c.DescribeInferenceComponent(ctx, name)
		if IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		klog.V(2).Infof("inference component %s status: %s", name, ic.Status)

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for inference component %s deletion: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// WaitForInferenceComponentInService polls until the component reports
// InService or Failed.
func (c *Client) WaitForInferenceComponentInService(ctx context.Context, name string) (*inferencev1.InferenceComponent, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ic, err := c.DescribeInferenceComponent(ctx, name)
		if err != nil {
			return nil, err
		}
		klog.V(2).Infof("inference component %s status: %s", name, ic.Status)
		switch ic.Status {
		case inferencev1.EndpointInService:
			return ic, nil
		case inferencev1.EndpointFailed:
			return ic, fmt.Errorf("inference component %s failed: %s", name, ic.FailureReason)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for inference component %s: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}
