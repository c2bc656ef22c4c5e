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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"k8s.io/klog/v2"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
	"github.com/modelserve-ai/inferctl/pkg/metrics"
)

// Request headers understood by the control plane.
const (
	headerRequestID   = "X-Request-Id"
	headerClientToken = "X-Client-Token"
)

// Client issues control-plane calls against one Modelserve region.
// All methods are safe for concurrent use.
type Client struct {
	cfg        *Config
	http       *retryablehttp.Client
	invokeHTTP *http.Client
	metrics    *metrics.ClientMetrics
}

// NewClient builds a client from cfg. Retries are bounded and never applied
// to non-idempotent responses the platform has already acted on; every
// create/update carries a client token so the platform can deduplicate.
func NewClient(cfg *Config) *Client {
	cfg.applyDefaults()

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &Client{
		cfg:        cfg,
		http:       rc,
		invokeHTTP: &http.Client{},
		metrics:    metrics.Client(),
	}
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *Config { return c.cfg }

type errorEnvelope struct {
	Error APIError `json:"error"`
}

// do issues one JSON request and decodes the response into out (when
// non-nil). Non-2xx responses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %v", err)
	}
	if err := c.prepare(req.Request, method); err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveCall(method, path, resp, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response of %s %s: %v", method, path, err)
	}
	return nil
}

// prepare attaches auth and tracing headers shared by control-plane and
// runtime requests.
func (c *Client) prepare(req *http.Request, method string) error {
	token, err := MintToken(c.cfg.Credentials)
	if err != nil {
		return err
	}
	req.Header.Set(authHeader, bearerPrefix+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerRequestID, uuid.New().String())
	if method != http.MethodGet {
		req.Header.Set(headerClientToken, uuid.New().String())
	}
	if c.cfg.Region != "" {
		req.Header.Set("X-Region", c.cfg.Region)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code == "" {
		// The platform always wraps errors; anything else is a proxy or
		// transport artifact.
		return &APIError{
			Code:       CodeInternalFailure,
			Message:    fmt.Sprintf("unexpected response: %s", bytes.TrimSpace(data)),
			StatusCode: resp.StatusCode,
		}
	}
	apiErr := envelope.Error
	apiErr.StatusCode = resp.StatusCode
	apiErr.RequestID = resp.Header.Get(headerRequestID)
	return &apiErr
}

// Models

func (c *Client) CreateModel(ctx context.Context, model *inferencev1.Model) (*inferencev1.Model, error) {
	klog.V(4).Infof("creating model %s", model.Name)
	out := &inferencev1.Model{}
	if err := c.do(ctx, http.MethodPost, "/v1/models", model, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DescribeModel(ctx context.Context, name string) (*inferencev1.Model, error) {
	out := &inferencev1.Model{}
	if err := c.do(ctx, http.MethodGet, "/v1/models/"+url.PathEscape(name), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteModel(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/v1/models/"+url.PathEscape(name), nil, nil)
}

func (c *Client) ListModels(ctx context.Context) ([]inferencev1.Model, error) {
	out := &inferencev1.ModelList{}
	if err := c.do(ctx, http.MethodGet, "/v1/models", nil, out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Endpoint configs

func (c *Client) CreateEndpointConfig(ctx context.Context, cfg *inferencev1.EndpointConfig) (*inferencev1.EndpointConfig, error) {
	klog.V(4).Infof("creating endpoint config %s with %d variants", cfg.Name, len(cfg.Variants))
	out := &inferencev1.EndpointConfig{}
	if err := c.do(ctx, http.MethodPost, "/v1/endpoint-configs", cfg, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DescribeEndpointConfig(ctx context.Context, name string) (*inferencev1.EndpointConfig, error) {
	out := &inferencev1.EndpointConfig{}
	if err := c.do(ctx, http.MethodGet, "/v1/endpoint-configs/"+url.PathEscape(name), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteEndpointConfig(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/v1/endpoint-configs/"+url.PathEscape(name), nil, nil)
}

func (c *Client) ListEndpointConfigs(ctx context.Context) ([]inferencev1.EndpointConfig, error) {
	out := &inferencev1.EndpointConfigList{}
	if err := c.do(ctx, http.MethodGet, "/v1/endpoint-configs", nil, out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Endpoints

func (c *Client) CreateEndpoint(ctx context.Context, ep *inferencev1.Endpoint) (*inferencev1.Endpoint, error) {
	klog.V(4).Infof("creating endpoint %s from config %s", ep.Name, ep.ConfigName)
	out := &inferencev1.Endpoint{}
	if err := c.do(ctx, http.MethodPost, "/v1/endpoints", ep, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DescribeEndpoint(ctx context.Context, name string) (*inferencev1.Endpoint, error) {
	out := &inferencev1.Endpoint{}
	if err := c.do(ctx, http.MethodGet, "/v1/endpoints/"+url.PathEscape(name), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateEndpoint points an existing endpoint at a new config. The platform
// performs a blue/green rollout and reports Updating until it completes.
func (c *Client) UpdateEndpoint(ctx context.Context, name, configName string) (*inferencev1.Endpoint, error) {
	in := &inferencev1.Endpoint{Name: name, ConfigName: configName}
	out := &inferencev1.Endpoint{}
	if err := c.do(ctx, http.MethodPut, "/v1/endpoints/"+url.PathEscape(name), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteEndpoint(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/v1/endpoints/"+url.PathEscape(name), nil, nil)
}

func (c *Client) ListEndpoints(ctx context.Context) ([]inferencev1.Endpoint, error) {
	out := &inferencev1.EndpointList{}
	if err := c.do(ctx, http.MethodGet, "/v1/endpoints", nil, out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Inference components

func (c *Client) CreateInferenceComponent(ctx context.Context, ic *inferencev1.InferenceComponent) (*inferencev1.InferenceComponent, error) {
	klog.V(4).Infof("creating inference component %s on endpoint %s", ic.Name, ic.EndpointName)
	out := &inferencev1.InferenceComponent{}
	if err := c.do(ctx, http.MethodPost, "/v1/inference-components", ic, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DescribeInferenceComponent(ctx context.Context, name string) (*inferencev1.InferenceComponent, error) {
	out := &inferencev1.InferenceComponent{}
	if err := c.do(ctx, http.MethodGet, "/v1/inference-components/"+url.PathEscape(name), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateInferenceComponentCopies adjusts the copy count of a component.
func (c *Client) UpdateInferenceComponentCopies(ctx context.Context, name string, copies int32) (*inferencev1.InferenceComponent, error) {
	in := map[string]int32{"copyCount": copies}
	out := &inferencev1.InferenceComponent{}
	if err := c.do(ctx, http.MethodPut, "/v1/inference-components/"+url.PathEscape(name), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteInferenceComponent(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/v1/inference-components/"+url.PathEscape(name), nil, nil)
}

func (c *Client) ListInferenceComponents(ctx context.Context, endpointName string) ([]inferencev1.InferenceComponent, error) {
	path := "/v1/inference-components"
	if endpointName != "" {
		path += "?endpoint=" + url.QueryEscape(endpointName)
	}
	out := &inferencev1.InferenceComponentList{}
	if err := c.do(ctx, http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Scaling policies and alarms

// PutScalingPolicy registers or replaces a scaling policy by name.
func (c *Client) PutScalingPolicy(ctx context.Context, policy *inferencev1.ScalingPolicy) (*inferencev1.ScalingPolicy, error) {
	out := &inferencev1.ScalingPolicy{}
	if err := c.do(ctx, http.MethodPut, "/v1/scaling-policies", policy, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteScalingPolicy(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/v1/scaling-policies/"+url.PathEscape(name), nil, nil)
}

func (c *Client) ListScalingPolicies(ctx context.Context, resourceID string) ([]inferencev1.ScalingPolicy, error) {
	path := "/v1/scaling-policies"
	if resourceID != "" {
		path += "?resourceId=" + url.QueryEscape(resourceID)
	}
	out := &inferencev1.ScalingPolicyList{}
	if err := c.do(ctx, http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) PutMetricAlarm(ctx context.Context, alarm *inferencev1.MetricAlarm) (*inferencev1.MetricAlarm, error) {
	out := &inferencev1.MetricAlarm{}
	if err := c.do(ctx, http.MethodPut, "/v1/alarms", alarm, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteAlarm(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/v1/alarms/"+url.PathEscape(name), nil, nil)
}

func (c *Client) ListAlarms(ctx context.Context) ([]inferencev1.MetricAlarm, error) {
	out := &inferencev1.MetricAlarmList{}
	if err := c.do(ctx, http.MethodGet, "/v1/alarms", nil, out); err != nil {
		return nil, err
	}
	return out.Items, nil
}
