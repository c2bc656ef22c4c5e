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

package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	count, err := CountTokens("Hello, how are you today?")
	require.NoError(t, err)
	assert.Greater(t, count, 0)

	empty, err := CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, empty)

	longer, err := CountTokens("Hello, how are you today? I am fine, thank you.")
	require.NoError(t, err)
	assert.Greater(t, longer, count)
}

func TestExtractPromptString(t *testing.T) {
	prompt, err := ExtractPrompt(map[string]interface{}{"prompt": "tell me a joke"})
	require.NoError(t, err)
	assert.Equal(t, "tell me a joke", prompt)

	_, err = ExtractPrompt(map[string]interface{}{"prompt": 42})
	assert.Error(t, err)
}

func TestExtractPromptMessages(t *testing.T) {
	body := map[string]interface{}{
		"messages": []interface{}{
			map[string]interface{}{"role": "system", "content": "you are helpful"},
			map[string]interface{}{"role": "user", "content": "hi"},
		},
	}
	prompt, err := ExtractPrompt(body)
	require.NoError(t, err)
	assert.Contains(t, prompt, "<|im_start|>system\nyou are helpful<|im_end|>")
	assert.Contains(t, prompt, "<|im_start|>user\nhi<|im_end|>")
}

func TestExtractPromptMissing(t *testing.T) {
	_, err := ExtractPrompt(map[string]interface{}{"max_tokens": 16})
	assert.Error(t, err)
}
