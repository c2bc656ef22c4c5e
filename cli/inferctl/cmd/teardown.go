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
)

// teardownCmd removes an endpoint and everything attached to it in reverse
// creation order.
var teardownCmd = &cobra.Command{
	Use:   "teardown [ENDPOINT]",
	Short: "Delete an endpoint and everything attached to it",
	Long: `Delete an endpoint and everything attached to it.

Teardown walks the dependency chain in reverse creation order: alarms,
scaling policies, adapter components, base components, the endpoint,
its config, and finally the models the config references. Resources
that are already gone are skipped, so teardown can be re-run after a
partial failure.

Example:
  inferctl teardown llama-chat`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		fmt.Printf("tearing down endpoint %s...\n", args[0])
		if err := client.Teardown(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("endpoint %s torn down\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(teardownCmd)
}
