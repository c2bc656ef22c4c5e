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

// Package tokenizer counts prompt tokens locally so invoke and bench
// reports do not depend on the serving container returning usage blocks.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
)

const encodingName = "cl100k_base"

var loaderOnce sync.Once

// CountTokens returns the cl100k_base token count of prompt. The BPE table
// is loaded from the bundled offline dictionary, never the network.
func CountTokens(prompt string) (int, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return 0, fmt.Errorf("failed to load encoding %s: %v", encodingName, err)
	}
	return len(encoding.Encode(prompt, nil, nil)), nil
}

// ExtractPrompt pulls the prompt text out of a completion-style request
// body: either a "prompt" string or chat "messages" contents joined
// together.
func ExtractPrompt(body map[string]interface{}) (string, error) {
	if prompt, ok := body["prompt"]; ok {
		res, ok := prompt.(string)
		if !ok {
			return "", fmt.Errorf("prompt is not a string")
		}
		return res, nil
	}

	if messages, ok := body["messages"]; ok {
		messageList, ok := messages.([]interface{})
		if !ok {
			return "", fmt.Errorf("messages is not a list")
		}
		res := ""
		for _, message := range messageList {
			msgMap, ok := message.(map[string]interface{})
			if !ok {
				continue
			}
			content, ok := msgMap["content"].(string)
			if !ok {
				continue
			}
			role, ok := msgMap["role"].(string)
			if !ok {
				continue
			}
			res += fmt.Sprintf("<|im_start|>%s\n%s<|im_end|>\n", role, content)
		}
		return res, nil
	}

	return "", fmt.Errorf("prompt or messages not found in request body")
}
