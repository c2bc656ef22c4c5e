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
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var (
	benchRate        float64
	benchDuration    time.Duration
	benchConcurrency int
)

type benchResult struct {
	latency time.Duration
	tokens  int
	err     error
}

// benchCmd drives a constant-rate invocation load against an endpoint and
// reports latency percentiles and token throughput.
var benchCmd = &cobra.Command{
	Use:   "bench [ENDPOINT]",
	Short: "Benchmark a deployed endpoint",
	Long: `Benchmark a deployed endpoint.

Invocations are issued at a fixed aggregate rate across the worker pool
for the given duration. Failures are counted but do not stop the run.

Example:
  inferctl bench llama-chat --data-file request.json --rate 5 --duration 30s`,
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

		ctx, cancel := context.WithTimeout(cmd.Context(), benchDuration)
		defer cancel()

		limiter := rate.NewLimiter(rate.Limit(benchRate), 1)
		results := make(chan benchResult, 1024)

		var wg sync.WaitGroup
		for i := 0; i < benchConcurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					if err := limiter.Wait(ctx); err != nil {
						return
					}
					start := time.Now()
					resp, err := client.Invoke(ctx, args[0], payload)
					result := benchResult{latency: time.Since(start), err: err}
					if err == nil && resp.Usage != nil {
						result.tokens = resp.Usage.CompletionTokens
					}
					select {
					case results <- result:
					case <-ctx.Done():
						return
					}
				}
			}()
		}

		go func() {
			wg.Wait()
			close(results)
		}()

		start := time.Now()
		var (
			latencies []time.Duration
			failures  int
			tokens    int
		)
		for result := range results {
			if result.err != nil {
				if errors.Is(result.err, context.DeadlineExceeded) || errors.Is(result.err, context.Canceled) {
					continue
				}
				failures++
				continue
			}
			latencies = append(latencies, result.latency)
			tokens += result.tokens
		}
		elapsed := time.Since(start)

		if len(latencies) == 0 {
			return fmt.Errorf("no successful invocations (%d failures)", failures)
		}
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		fmt.Printf("requests:    %d ok, %d failed\n", len(latencies), failures)
		fmt.Printf("throughput:  %.2f req/s", float64(len(latencies))/elapsed.Seconds())
		if tokens > 0 {
			fmt.Printf(", %.1f tokens/s", float64(tokens)/elapsed.Seconds())
		}
		fmt.Println()
		fmt.Printf("latency p50: %s\n", percentile(latencies, 0.50).Round(time.Millisecond))
		fmt.Printf("latency p90: %s\n", percentile(latencies, 0.90).Round(time.Millisecond))
		fmt.Printf("latency p99: %s\n", percentile(latencies, 0.99).Round(time.Millisecond))
		return nil
	},
}

// percentile picks from a sorted slice using the nearest-rank method.
func percentile(sorted []time.Duration, q float64) time.Duration {
	idx := int(q*float64(len(sorted))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringVarP(&invokeData, "data", "d", "", "Request payload as a JSON string")
	benchCmd.Flags().StringVar(&invokeDataFile, "data-file", "", "Path to a file holding the request payload")
	benchCmd.Flags().Float64Var(&benchRate, "rate", 1, "Aggregate invocations per second")
	benchCmd.Flags().DurationVar(&benchDuration, "duration", 30*time.Second, "How long to run")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", 4, "Number of worker goroutines")
}
