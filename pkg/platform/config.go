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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sigs.k8s.io/yaml"
)

// Default client settings; all of them can be overridden by the config file
// or environment.
const (
	DefaultBaseURL      = "http://localhost:8780"
	DefaultTimeout      = 60 * time.Second
	DefaultPollInterval = 15 * time.Second
	DefaultRetryMax     = 3

	defaultConfigFile = ".modelserve/config.yaml"
)

// Credentials identify the caller to the platform. The access key signs the
// bearer token attached to every request.
type Credentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
}

// Config holds everything needed to reach one Modelserve region.
type Config struct {
	BaseURL     string      `json:"baseUrl"`
	Region      string      `json:"region,omitempty"`
	Credentials Credentials `json:"credentials"`

	// Timeout bounds each individual HTTP request, not waiter loops.
	Timeout time.Duration `json:"timeout,omitempty"`
	// PollInterval is the fixed sleep between waiter Describe calls.
	PollInterval time.Duration `json:"pollInterval,omitempty"`
	RetryMax     int           `json:"retryMax,omitempty"`
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RetryMax <= 0 {
		c.RetryMax = DefaultRetryMax
	}
}

// LoadEnv returns the value of key or def when unset.
func LoadEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// LoadConfig reads path (or $MODELSERVE_CONFIG, or ~/.modelserve/config.yaml)
// and applies environment overrides. A missing file is not an error: the
// environment alone can configure the client.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		path = os.Getenv("MODELSERVE_CONFIG")
	}
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, defaultConfigFile)
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config %s: %v", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config %s: %v", path, err)
		}
	}

	cfg.BaseURL = LoadEnv("MODELSERVE_ENDPOINT", cfg.BaseURL)
	cfg.Region = LoadEnv("MODELSERVE_REGION", cfg.Region)
	cfg.Credentials.AccessKeyID = LoadEnv("MODELSERVE_ACCESS_KEY_ID", cfg.Credentials.AccessKeyID)
	cfg.Credentials.SecretAccessKey = LoadEnv("MODELSERVE_SECRET_ACCESS_KEY", cfg.Credentials.SecretAccessKey)

	cfg.applyDefaults()
	return cfg, nil
}
