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
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"k8s.io/klog/v2"

	"github.com/modelserve-ai/inferctl/pkg/metrics"
)

const (
	streamDataPrefix = "data: "
	streamEndMarker  = "[DONE]"
)

// Stream iterates over the server-sent-event chunks of a streaming
// invocation. Frames that fail to decode are skipped, matching how the
// managed platform's clients treat partial flushes.
//
// Example frame, with "stream_options": {"include_usage": true}:
//
//	data: {"id":"...","object":"text_completion","model":"m","choices":[],
//	"usage":{"prompt_tokens":7,"total_tokens":17,"completion_tokens":10}}
//
//	data: [DONE]
type Stream struct {
	body     io.ReadCloser
	scanner  *bufio.Scanner
	endpoint string
	metrics  *metrics.ClientMetrics

	usage *Usage
	err   error
	done  bool
}

func newStream(body io.ReadCloser, endpoint string, m *metrics.ClientMetrics) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Stream{
		body:     body,
		scanner:  scanner,
		endpoint: endpoint,
		metrics:  m,
	}
}

// Next returns the next decoded chunk. It returns false when the stream has
// ended, either at the [DONE] marker or on a transport error; check Err
// afterwards.
func (s *Stream) Next() (*InvokeResponse, bool) {
	if s.done {
		return nil, false
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, streamDataPrefix) {
			// Comment lines and blank keep-alives separate events.
			continue
		}
		content := strings.TrimPrefix(line, streamDataPrefix)
		if strings.HasPrefix(content, streamEndMarker) {
			s.done = true
			return nil, false
		}

		var chunk InvokeResponse
		if err := json.Unmarshal([]byte(content), &chunk); err != nil {
			klog.V(4).Infof("skipping undecodable stream fragment from %s: %v", s.endpoint, err)
			continue
		}
		chunk.Raw = json.RawMessage(content)
		if chunk.Usage != nil {
			s.usage = chunk.Usage
		}
		s.metrics.StreamChunksTotal.WithLabelValues(s.endpoint).Inc()
		return &chunk, true
	}
	s.done = true
	s.err = s.scanner.Err()
	return nil, false
}

// Usage returns the token accounting of the final chunk, when the serving
// container emitted one.
func (s *Stream) Usage() *Usage { return s.usage }

// Err returns the transport error that terminated the stream, if any.
func (s *Stream) Err() error { return s.err }

// Close releases the underlying response body. Safe to call at any point;
// a stream abandoned mid-generation is simply disconnected.
func (s *Stream) Close() error {
	s.done = true
	return s.body.Close()
}
