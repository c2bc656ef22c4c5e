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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/modelserve-ai/inferctl/pkg/platform"
	"github.com/modelserve-ai/inferctl/pkg/tokenizer"
)

// invoke serves a non-streaming invocation with a canned completion.
func (s *Server) invoke(c *gin.Context) {
	name := c.Param("name")
	request, ok := s.beginInvocation(c, name)
	if !ok {
		return
	}

	start := time.Now()
	completion, usage := s.complete(request)
	s.evaluator.Record(name, MetricInvocations, 1)
	s.evaluator.Record(name, MetricModelLatency, float64(time.Since(start).Milliseconds()))

	c.JSON(http.StatusOK, platform.InvokeResponse{
		ID:      "cmpl-" + uuid.New().String(),
		Object:  "text_completion",
		Created: time.Now().Unix(),
		Model:   requestModel(request),
		Choices: []platform.Choice{{Index: 0, Text: completion, FinishReason: "stop"}},
		Usage:   usage,
	})
}

// invokeStream serves the streaming variant: word-sized SSE chunks, a
// final usage frame, then the [DONE] marker.
func (s *Server) invokeStream(c *gin.Context) {
	name := c.Param("name")
	request, ok := s.beginInvocation(c, name)
	if !ok {
		return
	}

	start := time.Now()
	completion, usage := s.complete(request)
	words := strings.SplitAfter(completion, " ")
	id := "cmpl-" + uuid.New().String()
	model := requestModel(request)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")

	i := 0
	c.Stream(func(w io.Writer) bool {
		if i < len(words) {
			writeFrame(w, gin.H{
				"id":      id,
				"object":  "text_completion.chunk",
				"created": time.Now().Unix(),
				"model":   model,
				"choices": []gin.H{{"index": 0, "delta": gin.H{"content": words[i]}}},
			})
			i++
			return true
		}
		if i == len(words) {
			writeFrame(w, gin.H{
				"id":      id,
				"object":  "text_completion.chunk",
				"created": time.Now().Unix(),
				"model":   model,
				"choices": []gin.H{},
				"usage":   usage,
			})
			i++
			return true
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		s.evaluator.Record(name, MetricInvocations, 1)
		s.evaluator.Record(name, MetricModelLatency, float64(time.Since(start).Milliseconds()))
		return false
	})
}

// beginInvocation parses the request body and checks endpoint capacity,
// aborting the gin context when invocation cannot proceed.
func (s *Server) beginInvocation(c *gin.Context, name string) (map[string]interface{}, bool) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortWithError(c, errValidation("failed to read request body: %v", err))
		return nil, false
	}
	var request map[string]interface{}
	if err := json.Unmarshal(data, &request); err != nil {
		abortWithError(c, errValidation("request body is not JSON: %v", err))
		return nil, false
	}

	if apiErr := s.store.BeginInvocation(name); apiErr != nil {
		if apiErr.Code == platform.CodeNoCapacity {
			s.evaluator.Record(name, MetricNoCapacityFailures, 1)
		}
		abortWithError(c, apiErr)
		return nil, false
	}
	return request, true
}

// complete produces the canned completion and its token accounting. Token
// counts use the real tokenizer so usage numbers line up with what clients
// compute locally.
func (s *Server) complete(request map[string]interface{}) (string, *platform.Usage) {
	prompt, err := tokenizer.ExtractPrompt(request)
	if err != nil {
		prompt = ""
	}
	completion := fmt.Sprintf(
		"This is a simulated completion from %s. Deploy against the managed platform for real inference.",
		requestModel(request))

	promptTokens, err := tokenizer.CountTokens(prompt)
	if err != nil {
		promptTokens = len(strings.Fields(prompt))
	}
	completionTokens, err := tokenizer.CountTokens(completion)
	if err != nil {
		completionTokens = len(strings.Fields(completion))
	}
	return completion, &platform.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

func requestModel(request map[string]interface{}) string {
	if model, ok := request["model"].(string); ok && model != "" {
		return model
	}
	return "default"
}

func writeFrame(w io.Writer, frame gin.H) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
