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

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/modelserve-ai/inferctl/pkg/platform"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "inferctl",
	Short: "CLI for managing Modelserve inference endpoints",
	Long: `inferctl provisions, inspects, invokes, and tears down managed
inference endpoints on the Modelserve platform.

It allows you to:
- Create models, endpoint configs, endpoints, inference components,
  scaling policies, and metric alarms
- Deploy the whole model -> config -> endpoint sequence in one command
- Invoke deployed endpoints, optionally over a streaming response
- Render manifests for supporting infrastructure from templates

Examples:
  inferctl deploy -f examples/endpoint.yaml
  inferctl get endpoints
  inferctl describe endpoint llama-chat
  inferctl invoke llama-chat --data '{"prompt": "Hello"}' --stream
  inferctl create manifest --template vector-store --set Name=docs
  inferctl teardown llama-chat`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCmd exports the root command for external tools (e.g., doc generation)
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.modelserve/config.yaml)")
}

// newClient builds a platform client from the configured profile.
func newClient() (*platform.Client, error) {
	cfg, err := platform.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	return platform.NewClient(cfg), nil
}
