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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/modelserve-ai/inferctl/pkg/sim"
)

var (
	port              string
	secret            string
	provisioningDelay time.Duration
	evalInterval      time.Duration
	idleAfter         time.Duration
)

func main() {
	klog.InitFlags(nil)
	pflag.StringVar(&port, "port", "8780", "Port to listen on")
	pflag.StringVar(&secret, "secret", "", "Shared secret for bearer token verification; empty disables auth")
	pflag.DurationVar(&provisioningDelay, "provisioning-delay", 3*time.Second, "How long simulated resources stay in transitional states")
	pflag.DurationVar(&evalInterval, "eval-interval", 5*time.Second, "Alarm evaluation interval")
	pflag.DurationVar(&idleAfter, "idle-after", 2*time.Minute, "Idle span before scale-to-zero endpoints drop their capacity")
	pflag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		cancel()
	}()

	server := sim.NewServer(sim.Options{
		Port:              port,
		Secret:            secret,
		ProvisioningDelay: provisioningDelay,
		EvalInterval:      evalInterval,
		IdleAfter:         idleAfter,
	})
	if err := server.Run(ctx); err != nil {
		klog.Fatalf("simulator exited: %v", err)
	}
}
