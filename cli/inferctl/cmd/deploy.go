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

	"github.com/modelserve-ai/inferctl/pkg/platform"
)

var deployFile string

// deployCmd provisions a full endpoint from a deploy spec: model, config,
// endpoint, then components, scaling policies and alarms once the endpoint
// is InService.
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Provision an endpoint from a deploy spec",
	Long: `Provision an endpoint from a deploy spec.

The spec file bundles the model, the endpoint config, the endpoint name
and optional inference components, scaling policies and alarms.
Resources that already exist are reused, so a failed deploy can simply
be re-run.

Example:
  inferctl deploy -f deploy.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := loadDeploySpec(deployFile)
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		fmt.Printf("deploying endpoint %s...\n", spec.EndpointName)
		ep, err := client.Deploy(ctx, platform.DeployInput{
			Model:        spec.Model,
			Config:       spec.EndpointConfig,
			EndpointName: spec.EndpointName,
		})
		if err != nil {
			return err
		}
		fmt.Printf("endpoint %s is %s\n", ep.Name, ep.Status)

		// Base components before adapters: an adapter's base must exist
		// when the adapter is created.
		for _, pass := range []bool{false, true} {
			for _, ic := range spec.Components {
				ic := ic
				if ic.IsAdapter() != pass {
					continue
				}
				ic.EndpointName = spec.EndpointName
				if _, err := client.CreateInferenceComponent(ctx, &ic); err != nil && !platform.IsAlreadyExists(err) {
					return fmt.Errorf("create inference component %s: %w", ic.Name, err)
				}
				if _, err := client.WaitForInferenceComponentInService(ctx, ic.Name); err != nil {
					return err
				}
				fmt.Printf("inference component %s is InService\n", ic.Name)
			}
		}

		for _, policy := range spec.Policies {
			policy := policy
			if _, err := client.PutScalingPolicy(ctx, &policy); err != nil {
				return fmt.Errorf("put scaling policy %s: %w", policy.Name, err)
			}
			fmt.Printf("scaling policy %s attached to %s\n", policy.Name, policy.ResourceID)
		}
		for _, alarm := range spec.Alarms {
			alarm := alarm
			if _, err := client.PutMetricAlarm(ctx, &alarm); err != nil {
				return fmt.Errorf("put alarm %s: %w", alarm.Name, err)
			}
			fmt.Printf("alarm %s created on metric %s\n", alarm.Name, alarm.MetricName)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().StringVarP(&deployFile, "filename", "f", "", "Path to the deploy spec YAML file")
	_ = deployCmd.MarkFlagRequired("filename")
}
