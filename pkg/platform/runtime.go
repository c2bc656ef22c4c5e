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

// Runtime (data-plane) calls: invoking a deployed endpoint, optionally over
// a streaming response.
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

	"k8s.io/klog/v2"
)

// Usage is the token accounting block serving containers attach to
// completions.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Choice is one generated alternative within a completion response.
type Choice struct {
	Index int    `json:"index"`
	Text  string `json:"text,omitempty"`
	Delta struct {
		Content string `json:"content,omitempty"`
	} `json:"delta,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// InvokeResponse is a completion returned by a deployed model. The schema
// is owned by the serving container; fields not modeled here remain
// available through Raw.
type InvokeResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Text concatenates the generated text of all choices.
func (r *InvokeResponse) Text() string {
	var buf bytes.Buffer
	for _, choice := range r.Choices {
		if choice.Text != "" {
			buf.WriteString(choice.Text)
		} else {
			buf.WriteString(choice.Delta.Content)
		}
	}
	return buf.String()
}

// InvokeOption tweaks a single invocation.
type InvokeOption func(*invokeOptions)

type invokeOptions struct {
	component string
}

// WithInferenceComponent targets a specific inference component instead of
// the endpoint's default variant.
func WithInferenceComponent(name string) InvokeOption {
	return func(o *invokeOptions) { o.component = name }
}

// Invoke sends payload to the endpoint and returns the parsed completion.
func (c *Client) Invoke(ctx context.Context, endpointName string, payload []byte, opts ...InvokeOption) (*InvokeResponse, error) {
	resp, elapsed, err := c.invoke(ctx, endpointName, payload, false, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveInvocation(endpointName, false, 0, elapsed)
		return nil, fmt.Errorf("failed to read invocation response: %w", err)
	}
	c.metrics.ObserveInvocation(endpointName, false, resp.StatusCode, elapsed)

	out := &InvokeResponse{Raw: data}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to decode invocation response: %v", err)
	}
	return out, nil
}

// InvokeStream sends payload and returns a Stream over the server-sent
// response chunks. The caller must Close the stream.
func (c *Client) InvokeStream(ctx context.Context, endpointName string, payload []byte, opts ...InvokeOption) (*Stream, error) {
	resp, elapsed, err := c.invoke(ctx, endpointName, payload, true, opts)
	if err != nil {
		return nil, err
	}
	c.metrics.ObserveInvocation(endpointName, true, resp.StatusCode, elapsed)
	return newStream(resp.Body, endpointName, c.metrics), nil
}

func (c *Client) invoke(ctx context.Context, endpointName string, payload []byte, stream bool, opts []InvokeOption) (*http.Response, time.Duration, error) {
	var options invokeOptions
	for _, opt := range opts {
		opt(&options)
	}

	path := "/v1/endpoints/" + url.PathEscape(endpointName) + "/invocations"
	if stream {
		path += "-stream"
	}
	if options.component != "" {
		path += "?component=" + url.QueryEscape(options.component)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build invocation request: %v", err)
	}
	if err := c.prepare(req, http.MethodPost); err != nil {
		return nil, 0, err
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	// Invocations bypass the retrying control-plane client: they are not
	// idempotent and long generations must not hit its timeout.
	start := time.Now()
	resp, err := c.invokeHTTP.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveInvocation(endpointName, stream, 0, elapsed)
		return nil, elapsed, fmt.Errorf("invocation of %s failed: %w", endpointName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp)
		resp.Body.Close()
		c.metrics.ObserveInvocation(endpointName, stream, resp.StatusCode, elapsed)
		klog.V(4).Infof("invocation of %s rejected: %v", endpointName, apiErr)
		return nil, elapsed, apiErr
	}
	return resp, elapsed, nil
}
