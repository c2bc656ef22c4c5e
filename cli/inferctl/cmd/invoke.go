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

	"github.com/modelserve-ai/inferctl/pkg/platform"
	"github.com/modelserve-ai/inferctl/pkg/tokenizer"
)

var (
	invokeData      string
	invokeDataFile  string
	invokeStream    bool
	invokeComponent string
	invokeCount     bool
)

// invokeCmd sends a payload to a deployed endpoint and prints the
// completion.
var invokeCmd = &cobra.Command{
	Use:   "invoke [ENDPOINT]",
	Short: "Invoke a deployed endpoint",
	Long: `Invoke a deployed endpoint.

The payload is passed to the serving container verbatim. With --stream
the response is consumed as server-sent events and printed chunk by
chunk as it arrives.

Examples:
  inferctl invoke llama-chat --data '{"prompt": "Hello", "max_tokens": 64}'
  inferctl invoke llama-chat --data-file request.json --stream
  inferctl invoke llama-chat --data-file request.json --component summarizer-adapter`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := invokePayload()
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}

		var opts []platform.InvokeOption
		if invokeComponent != "" {
			opts = append(opts, platform.WithInferenceComponent(invokeComponent))
		}

		if invokeStream {
			return runStreamingInvoke(cmd, client, args[0], payload, opts)
		}

		resp, err := client.Invoke(cmd.Context(), args[0], payload, opts...)
		if err != nil {
			return err
		}
		fmt.Println(resp.Text())
		printUsage(resp.Usage, resp.Text())
		return nil
	},
}

func runStreamingInvoke(cmd *cobra.Command, client *platform.Client, endpoint string, payload []byte, opts []platform.InvokeOption) error {
	stream, err := client.InvokeStream(cmd.Context(), endpoint, payload, opts...)
	if err != nil {
		return err
	}
	defer stream.Close()

	var text string
	for {
		chunk, ok := stream.Next()
		if !ok {
			break
		}
		fmt.Print(chunk.Text())
		text += chunk.Text()
	}
	fmt.Println()
	if err := stream.Err(); err != nil {
		return fmt.Errorf("stream aborted: %w", err)
	}
	printUsage(stream.Usage(), text)
	return nil
}

func invokePayload() ([]byte, error) {
	switch {
	case invokeData != "" && invokeDataFile != "":
		return nil, fmt.Errorf("--data and --data-file are mutually exclusive")
	case invokeData != "":
		return []byte(invokeData), nil
	case invokeDataFile != "":
		data, err := os.ReadFile(invokeDataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %v", invokeDataFile, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("one of --data or --data-file is required")
}

// printUsage reports token usage on stderr so it never mixes with the
// completion text on stdout. Falls back to a local count when the server
// sent no usage block.
func printUsage(usage *platform.Usage, text string) {
	if !invokeCount {
		return
	}
	if usage != nil {
		fmt.Fprintf(os.Stderr, "tokens: prompt=%d completion=%d total=%d\n",
			usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
		return
	}
	count, err := tokenizer.CountTokens(text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokens: unavailable (%v)\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "tokens: completion=%d (counted locally)\n", count)
}

func init() {
	rootCmd.AddCommand(invokeCmd)
	invokeCmd.Flags().StringVarP(&invokeData, "data", "d", "", "Request payload as a JSON string")
	invokeCmd.Flags().StringVar(&invokeDataFile, "data-file", "", "Path to a file holding the request payload")
	invokeCmd.Flags().BoolVar(&invokeStream, "stream", false, "Consume the response as server-sent events")
	invokeCmd.Flags().StringVar(&invokeComponent, "component", "", "Target a specific inference component")
	invokeCmd.Flags().BoolVar(&invokeCount, "count-tokens", false, "Report token usage on stderr")
}
