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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelserve-ai/inferctl/pkg/platform"
)

var ignoreNotFound bool

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a resource",
	Long: `Delete a resource.

Deletion is rejected while other resources still reference the target:
a model in use by an endpoint config, a config in use by an endpoint, an
endpoint that still has inference components. Use 'inferctl teardown'
to remove an endpoint together with everything attached to it.

Examples:
  inferctl delete endpoint llama-chat
  inferctl delete model llama-3-8b --ignore-not-found
  inferctl delete scaling-policy chat-scale-out`,
}

func newDeleteSubcommand(use, kind string, fn func(ctx context.Context, client *platform.Client, name string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [NAME]",
		Short: "Delete " + aOrAn(kind) + " " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			if err := fn(cmd.Context(), client, args[0]); err != nil {
				if ignoreNotFound && platform.IsNotFound(err) {
					fmt.Printf("%s %s not found, ignoring\n", kind, args[0])
					return nil
				}
				return err
			}
			fmt.Printf("%s %s deleted\n", kind, args[0])
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.AddCommand(newDeleteSubcommand("model", "model",
		func(ctx context.Context, c *platform.Client, name string) error {
			return c.DeleteModel(ctx, name)
		}))
	deleteCmd.AddCommand(newDeleteSubcommand("endpoint-config", "endpoint config",
		func(ctx context.Context, c *platform.Client, name string) error {
			return c.DeleteEndpointConfig(ctx, name)
		}))
	deleteCmd.AddCommand(newDeleteSubcommand("endpoint", "endpoint",
		func(ctx context.Context, c *platform.Client, name string) error {
			return c.DeleteEndpoint(ctx, name)
		}))
	deleteCmd.AddCommand(newDeleteSubcommand("inference-component", "inference component",
		func(ctx context.Context, c *platform.Client, name string) error {
			return c.DeleteInferenceComponent(ctx, name)
		}))
	deleteCmd.AddCommand(newDeleteSubcommand("scaling-policy", "scaling policy",
		func(ctx context.Context, c *platform.Client, name string) error {
			return c.DeleteScalingPolicy(ctx, name)
		}))
	deleteCmd.AddCommand(newDeleteSubcommand("alarm", "alarm",
		func(ctx context.Context, c *platform.Client, name string) error {
			return c.DeleteAlarm(ctx, name)
		}))

	deleteCmd.PersistentFlags().BoolVar(&ignoreNotFound, "ignore-not-found", false, "Treat a missing resource as success")
}

func aOrAn(noun string) string {
	switch noun[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return "an"
	}
	return "a"
}
