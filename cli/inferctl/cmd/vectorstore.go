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
	"os"

	"github.com/spf13/cobra"

	"github.com/modelserve-ai/inferctl/pkg/manifests"
	"github.com/modelserve-ai/inferctl/pkg/vectorstore"
)

var (
	vsManifestOpts manifests.VectorStoreOptions
	vsClientOpts   vectorstore.Options
)

var vectorStoreCmd = &cobra.Command{
	Use:     "vector-store",
	Aliases: []string{"vectorstore"},
	Short:   "Manage the supporting vector search cluster",
	Long: `Manage the supporting vector search cluster.

Examples:
  inferctl vector-store manifest --name my-store --memory 8Gi -o store.yaml
  inferctl vector-store health --addr localhost:6379
  inferctl vector-store init --addr localhost:6379 --index doc-index --dim 768`,
}

var vectorStoreManifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Render the cluster's Deployment and Service manifests",
	RunE: func(cmd *cobra.Command, args []string) error {
		rendered, err := manifests.RenderVectorStore(vsManifestOpts)
		if err != nil {
			return err
		}
		if createOutFile == "" {
			fmt.Print(string(rendered))
			return nil
		}
		if err := os.WriteFile(createOutFile, rendered, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %v", createOutFile, err)
		}
		fmt.Printf("manifest written to %s\n", createOutFile)
		return nil
	},
}

var vectorStoreHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check connectivity to a running cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := vectorstore.New(cmd.Context(), vsClientOpts)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := client.HealthCheck(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("vector store at %s is healthy\n", vsClientOpts.Addr)
		return nil
	},
}

var vectorStoreInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the vector index on a running cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := vectorstore.New(cmd.Context(), vsClientOpts)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := client.EnsureIndex(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("index %s ready on %s\n", vsClientOpts.IndexName, vsClientOpts.Addr)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(vectorStoreCmd)
	vectorStoreCmd.AddCommand(vectorStoreManifestCmd)
	vectorStoreCmd.AddCommand(vectorStoreHealthCmd)
	vectorStoreCmd.AddCommand(vectorStoreInitCmd)

	vectorStoreManifestCmd.Flags().StringVar(&vsManifestOpts.Name, "name", "", "Cluster name (default vector-store)")
	vectorStoreManifestCmd.Flags().StringVar(&vsManifestOpts.Namespace, "namespace", "", "Target namespace (default default)")
	vectorStoreManifestCmd.Flags().StringVar(&vsManifestOpts.Image, "image", "", "Container image override")
	vectorStoreManifestCmd.Flags().Int32Var(&vsManifestOpts.Replicas, "replicas", 0, "Replica count (default 1)")
	vectorStoreManifestCmd.Flags().StringVar(&vsManifestOpts.Memory, "memory", "", "Per-pod memory limit (default 4Gi)")
	vectorStoreManifestCmd.Flags().Int32Var(&vsManifestOpts.Port, "port", 0, "Service port (default 6379)")
	vectorStoreManifestCmd.Flags().StringVarP(&createOutFile, "output-file", "o", "", "Write the result to a file instead of stdout")

	for _, sub := range []*cobra.Command{vectorStoreHealthCmd, vectorStoreInitCmd} {
		sub.Flags().StringVar(&vsClientOpts.Addr, "addr", "localhost:6379", "Cluster address")
		sub.Flags().StringVar(&vsClientOpts.Password, "password", "", "Cluster password")
		sub.Flags().IntVar(&vsClientOpts.DB, "db", 0, "Database number")
	}
	vectorStoreInitCmd.Flags().StringVar(&vsClientOpts.IndexName, "index", "doc-index", "Index name")
	vectorStoreInitCmd.Flags().StringVar(&vsClientOpts.KeyPrefix, "key-prefix", "doc:", "Document key prefix")
	vectorStoreInitCmd.Flags().IntVar(&vsClientOpts.VectorDim, "dim", 768, "Embedding dimension")
}
