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
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

// describeCmd prints the full platform view of a single resource as YAML.
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show detailed information about a resource",
	Long: `Show detailed information about a resource.

Examples:
  inferctl describe endpoint llama-chat
  inferctl describe model llama-3-8b
  inferctl describe endpoint-config llama-chat-config
  inferctl describe inference-component summarizer-adapter`,
}

var describeEndpointCmd = &cobra.Command{
	Use:   "endpoint [NAME]",
	Short: "Describe an endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ep, err := client.DescribeEndpoint(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printYAML(ep)
	},
}

var describeModelCmd = &cobra.Command{
	Use:   "model [NAME]",
	Short: "Describe a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		model, err := client.DescribeModel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printYAML(model)
	},
}

var describeConfigCmd = &cobra.Command{
	Use:   "endpoint-config [NAME]",
	Short: "Describe an endpoint config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		cfg, err := client.DescribeEndpointConfig(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printYAML(cfg)
	},
}

var describeComponentCmd = &cobra.Command{
	Use:   "inference-component [NAME]",
	Short: "Describe an inference component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ic, err := client.DescribeInferenceComponent(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printYAML(ic)
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.AddCommand(describeEndpointCmd)
	describeCmd.AddCommand(describeModelCmd)
	describeCmd.AddCommand(describeConfigCmd)
	describeCmd.AddCommand(describeComponentCmd)
}

func printYAML(value interface{}) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal to YAML: %v", err)
	}
	fmt.Print(string(data))
	return nil
}
