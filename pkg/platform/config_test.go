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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MODELSERVE_CONFIG",
		"MODELSERVE_ENDPOINT",
		"MODELSERVE_REGION",
		"MODELSERVE_ACCESS_KEY_ID",
		"MODELSERVE_SECRET_ACCESS_KEY",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultRetryMax, cfg.RetryMax)
	assert.Empty(t, cfg.Credentials.AccessKeyID)
}

func TestLoadConfigFromFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
baseUrl: https://api.modelserve.example
region: us-east-1
credentials:
  accessKeyId: AKIDEXAMPLE
  secretAccessKey: file-secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.modelserve.example", cfg.BaseURL)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "AKIDEXAMPLE", cfg.Credentials.AccessKeyID)
	assert.Equal(t, "file-secret", cfg.Credentials.SecretAccessKey)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baseUrl: https://from-file\n"), 0o600))

	t.Setenv("MODELSERVE_ENDPOINT", "https://from-env")
	t.Setenv("MODELSERVE_ACCESS_KEY_ID", "AKENV")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env", cfg.BaseURL)
	assert.Equal(t, "AKENV", cfg.Credentials.AccessKeyID)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baseUrl: [unclosed\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
