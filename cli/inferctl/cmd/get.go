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
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/modelserve-ai/inferctl/pkg/metrics"
	"github.com/modelserve-ai/inferctl/pkg/platform"
)

var (
	outputFormat  string
	endpointScope string
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Display one or many resources",
	Long: `Display one or many resources.

You can get models, endpoint configs, endpoints, inference components,
scaling policies, alarms, platform metrics, and manifest templates.

Examples:
  inferctl get endpoints
  inferctl get endpoints -o yaml
  inferctl get models
  inferctl get inference-components --endpoint llama-chat
  inferctl get scaling-policies
  inferctl get metrics
  inferctl get templates
  inferctl get template vector-store -o yaml`,
}

var getEndpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		endpoints, err := client.ListEndpoints(cmd.Context())
		if err != nil {
			return err
		}
		if !tableOutput() {
			return printEncoded(endpoints)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tCONFIG\tSTATUS\tAGE")
		for _, ep := range endpoints {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ep.Name, ep.ConfigName, ep.Status, age(ep.CreatedAt.Time))
		}
		return w.Flush()
	},
}

var getModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		models, err := client.ListModels(cmd.Context())
		if err != nil {
			return err
		}
		if !tableOutput() {
			return printEncoded(models)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tIMAGE\tAGE")
		for _, model := range models {
			fmt.Fprintf(w, "%s\t%s\t%s\n", model.Name, model.Primary.Image, age(model.CreatedAt.Time))
		}
		return w.Flush()
	},
}

var getConfigsCmd = &cobra.Command{
	Use:     "endpoint-configs",
	Aliases: []string{"configs"},
	Short:   "List endpoint configs",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		configs, err := client.ListEndpointConfigs(cmd.Context())
		if err != nil {
			return err
		}
		if !tableOutput() {
			return printEncoded(configs)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tVARIANTS\tAGE")
		for _, cfg := range configs {
			names := make([]string, 0, len(cfg.Variants))
			for _, variant := range cfg.Variants {
				names = append(names, variant.Name)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", cfg.Name, strings.Join(names, ","), age(cfg.CreatedAt.Time))
		}
		return w.Flush()
	},
}

var getComponentsCmd = &cobra.Command{
	Use:     "inference-components",
	Aliases: []string{"components"},
	Short:   "List inference components",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		components, err := client.ListInferenceComponents(cmd.Context(), endpointScope)
		if err != nil {
			return err
		}
		if !tableOutput() {
			return printEncoded(components)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tENDPOINT\tMODEL\tCOPIES\tSTATUS")
		for _, ic := range components {
			model := ic.ModelName
			if ic.IsAdapter() {
				model = "adapter on " + ic.BaseComponent
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
				ic.Name, ic.EndpointName, model, ic.CurrentCopies, ic.CopyCount, ic.Status)
		}
		return w.Flush()
	},
}

var getPoliciesCmd = &cobra.Command{
	Use:     "scaling-policies",
	Aliases: []string{"policies"},
	Short:   "List scaling policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		policies, err := client.ListScalingPolicies(cmd.Context(), "")
		if err != nil {
			return err
		}
		if !tableOutput() {
			return printEncoded(policies)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tTARGET\tTYPE\tMIN\tMAX")
		for _, policy := range policies {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
				policy.Name, policy.ResourceID, policy.Type, policy.MinCapacity, policy.MaxCapacity)
		}
		return w.Flush()
	},
}

var getAlarmsCmd = &cobra.Command{
	Use:   "alarms",
	Short: "List metric alarms",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		alarms, err := client.ListAlarms(cmd.Context())
		if err != nil {
			return err
		}
		if !tableOutput() {
			return printEncoded(alarms)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tMETRIC\tTHRESHOLD\tSTATE")
		for _, alarm := range alarms {
			fmt.Fprintf(w, "%s\t%s\t%s %g\t%s\n",
				alarm.Name, alarm.MetricName, comparisonSymbol(string(alarm.Comparison)), alarm.Threshold, alarm.State)
		}
		return w.Flush()
	},
}

var getMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Scrape and display the platform's metrics",
	Long: `Scrape and display the platform's metrics.

Fetches the Prometheus exposition endpoint of the configured platform
and prints the modelserve_* series. Histograms are shown as their mean.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := platform.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		families, err := metrics.ParseMetricsURL(cmd.Context(), cfg.BaseURL+"/metrics")
		if err != nil {
			return err
		}
		samples := metrics.Flatten(families, func(name string) bool {
			return strings.HasPrefix(name, "modelserve_")
		})
		sort.Slice(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METRIC\tLABELS\tVALUE")
		for _, sample := range samples {
			fmt.Fprintf(w, "%s\t%s\t%g\n", sample.Name, formatLabels(sample.Labels), sample.Value)
		}
		return w.Flush()
	},
}

var getTemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List available manifest templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		templateNames, err := ListTemplates()
		if err != nil {
			return fmt.Errorf("failed to read templates: %v", err)
		}
		if len(templateNames) == 0 {
			fmt.Println("No templates found.")
			return nil
		}

		var templates []TemplateInfo
		for _, templateName := range templateNames {
			info, err := GetTemplateInfo(templateName)
			if err != nil {
				info = TemplateInfo{Name: templateName, Description: "No description available"}
			}
			templates = append(templates, info)
		}
		if !tableOutput() {
			return printEncoded(templates)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESCRIPTION")
		for _, tpl := range templates {
			fmt.Fprintf(w, "%s\t%s\n", tpl.Name, tpl.Description)
		}
		return w.Flush()
	},
}

var getTemplateCmd = &cobra.Command{
	Use:   "template [NAME]",
	Short: "Get a specific template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := GetTemplateContent(args[0])
		if err != nil {
			return err
		}
		showVars, err := cmd.Flags().GetBool("variables")
		if err != nil {
			return err
		}
		if showVars {
			for _, variable := range extractTemplateVariables(content) {
				fmt.Println(variable)
			}
			return nil
		}
		fmt.Print(content)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.AddCommand(getModelsCmd)
	getCmd.AddCommand(getConfigsCmd)
	getCmd.AddCommand(getEndpointsCmd)
	getCmd.AddCommand(getComponentsCmd)
	getCmd.AddCommand(getPoliciesCmd)
	getCmd.AddCommand(getAlarmsCmd)
	getCmd.AddCommand(getMetricsCmd)
	getCmd.AddCommand(getTemplatesCmd)
	getCmd.AddCommand(getTemplateCmd)

	getCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format (yaml|json|table)")
	getComponentsCmd.Flags().StringVar(&endpointScope, "endpoint", "", "Only list components of this endpoint")
	getTemplateCmd.Flags().Bool("variables", false, "List the variables the template expects instead of its content")
}

// tableOutput reports whether the default tabwriter renderer applies.
// "table" is accepted as an explicit alias for it.
func tableOutput() bool {
	return outputFormat == "" || outputFormat == "table"
}

func printEncoded(value interface{}) error {
	switch outputFormat {
	case "yaml":
		data, err := yaml.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal to YAML: %v", err)
		}
		fmt.Print(string(data))
	case "json":
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal to JSON: %v", err)
		}
		fmt.Println(string(data))
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
	return nil
}

func age(t time.Time) string {
	if t.IsZero() {
		return "<unknown>"
	}
	return time.Since(t).Round(time.Second).String()
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return "-"
	}
	pairs := make([]string, 0, len(labels))
	for name, value := range labels {
		pairs = append(pairs, name+"="+value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func comparisonSymbol(comparison string) string {
	switch comparison {
	case "GreaterThanThreshold":
		return ">"
	case "LessThanThreshold":
		return "<"
	}
	return comparison
}
