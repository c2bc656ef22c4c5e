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
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
	"github.com/modelserve-ai/inferctl/pkg/manifests"
)

var (
	createFile     string
	createTemplate string
	createSetVars  []string
	createOutFile  string
	stackDesc      string
)

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a resource from a file or template",
	Long: `Create a resource from a file or template.

Examples:
  inferctl create model -f model.yaml
  inferctl create endpoint-config -f config.yaml
  inferctl create endpoint llama-chat --endpoint-config llama-chat-config
  inferctl create inference-component -f component.yaml
  inferctl create scaling-policy -f policy.yaml
  inferctl create alarm -f alarm.yaml
  inferctl create manifest --template vector-store --set Name=my-store
  inferctl create stack -f deploy.yaml -o stack.json`,
}

var createModelCmd = &cobra.Command{
	Use:   "model",
	Short: "Create a model from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		var model inferencev1.Model
		if err := decodeFile(createFile, &model); err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		created, err := client.CreateModel(cmd.Context(), &model)
		if err != nil {
			return err
		}
		fmt.Printf("model %s created\n", created.Name)
		return nil
	},
}

var createConfigCmd = &cobra.Command{
	Use:   "endpoint-config",
	Short: "Create an endpoint config from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg inferencev1.EndpointConfig
		if err := decodeFile(createFile, &cfg); err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		created, err := client.CreateEndpointConfig(cmd.Context(), &cfg)
		if err != nil {
			return err
		}
		fmt.Printf("endpoint config %s created\n", created.Name)
		return nil
	},
}

var createEndpointCmd = &cobra.Command{
	Use:   "endpoint [NAME]",
	Short: "Create an endpoint pointing at an endpoint config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configName, err := cmd.Flags().GetString("endpoint-config")
		if err != nil {
			return err
		}
		if configName == "" {
			return fmt.Errorf("--endpoint-config is required")
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		ep, err := client.CreateEndpoint(cmd.Context(), &inferencev1.Endpoint{
			Name:       args[0],
			ConfigName: configName,
		})
		if err != nil {
			return err
		}
		fmt.Printf("endpoint %s created, status %s\n", ep.Name, ep.Status)

		wait, err := cmd.Flags().GetBool("wait")
		if err != nil {
			return err
		}
		if !wait {
			return nil
		}
		ep, err = client.WaitForEndpointInService(cmd.Context(), ep.Name)
		if err != nil {
			return err
		}
		fmt.Printf("endpoint %s is %s\n", ep.Name, ep.Status)
		return nil
	},
}

var createComponentCmd = &cobra.Command{
	Use:   "inference-component",
	Short: "Create an inference component from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		var ic inferencev1.InferenceComponent
		if err := decodeFile(createFile, &ic); err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		created, err := client.CreateInferenceComponent(cmd.Context(), &ic)
		if err != nil {
			return err
		}
		fmt.Printf("inference component %s created, status %s\n", created.Name, created.Status)
		return nil
	},
}

var createPolicyCmd = &cobra.Command{
	Use:   "scaling-policy",
	Short: "Create or replace a scaling policy from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		var policy inferencev1.ScalingPolicy
		if err := decodeFile(createFile, &policy); err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		created, err := client.PutScalingPolicy(cmd.Context(), &policy)
		if err != nil {
			return err
		}
		fmt.Printf("scaling policy %s attached to %s\n", created.Name, created.ResourceID)
		return nil
	},
}

var createAlarmCmd = &cobra.Command{
	Use:   "alarm",
	Short: "Create or replace a metric alarm from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		var alarm inferencev1.MetricAlarm
		if err := decodeFile(createFile, &alarm); err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		created, err := client.PutMetricAlarm(cmd.Context(), &alarm)
		if err != nil {
			return err
		}
		fmt.Printf("alarm %s created on metric %s\n", created.Name, created.MetricName)
		return nil
	},
}

var createManifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Render a manifest from an embedded template",
	Long: `Render a manifest from an embedded template.

Use 'inferctl get templates' to list templates and
'inferctl get template NAME' to see a template's variables.

Examples:
  inferctl create manifest --template vector-store --set Name=my-store
  inferctl create manifest --template endpoint-basic --set EndpointName=chat --set ModelImage=vllm/vllm-openai:v0.8.4 -o deploy.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if createTemplate == "" {
			return fmt.Errorf("--template is required")
		}
		rendered, err := renderTemplate(createTemplate, createSetVars)
		if err != nil {
			return err
		}
		if createOutFile == "" {
			fmt.Print(rendered)
			return nil
		}
		if err := os.WriteFile(createOutFile, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %v", createOutFile, err)
		}
		fmt.Printf("manifest written to %s\n", createOutFile)
		return nil
	},
}

var createStackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Render a deploy spec as an infrastructure stack document",
	Long: `Render a deploy spec as an infrastructure stack document.

The stack document captures the same model/config/endpoint recipe that
'inferctl deploy' provisions, as a declarative JSON template with
dependency ordering.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := loadDeploySpec(createFile)
		if err != nil {
			return err
		}
		stack, err := manifests.BuildStack(manifests.StackInput{
			Description: stackDesc,
			Model:       spec.Model,
			Config:      spec.EndpointConfig,
			Endpoint:    &inferencev1.Endpoint{Name: spec.EndpointName, ConfigName: spec.EndpointConfig.Name},
			Policies:    spec.Policies,
			Alarms:      spec.Alarms,
		})
		if err != nil {
			return err
		}
		data, err := stack.Render()
		if err != nil {
			return err
		}
		if createOutFile == "" {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(createOutFile, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %v", createOutFile, err)
		}
		fmt.Printf("stack written to %s\n", createOutFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.AddCommand(createModelCmd)
	createCmd.AddCommand(createConfigCmd)
	createCmd.AddCommand(createEndpointCmd)
	createCmd.AddCommand(createComponentCmd)
	createCmd.AddCommand(createPolicyCmd)
	createCmd.AddCommand(createAlarmCmd)
	createCmd.AddCommand(createManifestCmd)
	createCmd.AddCommand(createStackCmd)

	createCmd.PersistentFlags().StringVarP(&createFile, "filename", "f", "", "Path to the resource YAML file")

	createEndpointCmd.Flags().String("endpoint-config", "", "Name of the endpoint config to deploy")
	createEndpointCmd.Flags().Bool("wait", false, "Wait until the endpoint is InService")

	createManifestCmd.Flags().StringVar(&createTemplate, "template", "", "Name of the embedded template")
	createManifestCmd.Flags().StringArrayVar(&createSetVars, "set", nil, "Template variables as key=value (repeatable)")
	createManifestCmd.Flags().StringVarP(&createOutFile, "output-file", "o", "", "Write the result to a file instead of stdout")

	createStackCmd.Flags().StringVar(&stackDesc, "description", "", "Stack description")
	createStackCmd.Flags().StringVarP(&createOutFile, "output-file", "o", "", "Write the result to a file instead of stdout")
}

// renderTemplate executes an embedded template against --set variables.
// Unset variables fail the render rather than producing empty fields.
func renderTemplate(name string, setVars []string) (string, error) {
	content, err := GetTemplateContent(name)
	if err != nil {
		return "", err
	}
	vars := make(map[string]string, len(setVars))
	for _, kv := range setVars {
		key, value, found := strings.Cut(kv, "=")
		if !found || key == "" {
			return "", fmt.Errorf("invalid --set value %q, expected key=value", kv)
		}
		vars[key] = value
	}

	tpl, err := template.New(name).Option("missingkey=error").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %v", name, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render template %s: %v", name, err)
	}
	return buf.String(), nil
}
