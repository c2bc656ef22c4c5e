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

// Package manifests renders deployment manifests for the supporting
// services around a managed inference endpoint, mainly the vector search
// cluster. Manifests are applied by external tooling; nothing here talks
// to a cluster.
package manifests

import (
	"bytes"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/yaml"
)

func intstrPort(port int32) intstr.IntOrString {
	return intstr.FromInt32(port)
}

// VectorStoreOptions parameterizes the vector search cluster manifests.
type VectorStoreOptions struct {
	Name      string
	Namespace string
	Image     string
	Replicas  int32
	// Memory is the per-pod memory limit, e.g. "4Gi".
	Memory string
	Port   int32
}

func (o *VectorStoreOptions) applyDefaults() {
	if o.Name == "" {
		o.Name = "vector-store"
	}
	if o.Namespace == "" {
		o.Namespace = "default"
	}
	if o.Image == "" {
		o.Image = "redis/redis-stack-server:7.4.0-v0"
	}
	if o.Replicas <= 0 {
		o.Replicas = 1
	}
	if o.Memory == "" {
		o.Memory = "4Gi"
	}
	if o.Port <= 0 {
		o.Port = 6379
	}
}

// VectorStoreDeployment builds the Deployment for the vector search
// cluster.
func VectorStoreDeployment(opts VectorStoreOptions) *appsv1.Deployment {
	opts.applyDefaults()
	labels := map[string]string{
		"app":                          opts.Name,
		"app.kubernetes.io/component":  "vector-store",
		"app.kubernetes.io/managed-by": "inferctl",
	}
	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      opts.Name,
			Namespace: opts.Namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(opts.Replicas),
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": opts.Name}},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  "vector-store",
						Image: opts.Image,
						Ports: []corev1.ContainerPort{{
							Name:          "redis",
							ContainerPort: opts.Port,
						}},
						Resources: corev1.ResourceRequirements{
							Limits: corev1.ResourceList{
								corev1.ResourceMemory: resource.MustParse(opts.Memory),
							},
						},
						ReadinessProbe: &corev1.Probe{
							ProbeHandler: corev1.ProbeHandler{
								TCPSocket: &corev1.TCPSocketAction{
									Port: intstrPort(opts.Port),
								},
							},
							InitialDelaySeconds: 5,
							PeriodSeconds:       10,
						},
					}},
				},
			},
		},
	}
}

// VectorStoreService builds the ClusterIP Service in front of the cluster.
func VectorStoreService(opts VectorStoreOptions) *corev1.Service {
	opts.applyDefaults()
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      opts.Name,
			Namespace: opts.Namespace,
			Labels:    map[string]string{"app": opts.Name},
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": opts.Name},
			Ports: []corev1.ServicePort{{
				Name:       "redis",
				Port:       opts.Port,
				TargetPort: intstrPort(opts.Port),
			}},
		},
	}
}

// RenderVectorStore marshals the Deployment and Service into one
// multi-document YAML stream ready for kubectl apply.
func RenderVectorStore(opts VectorStoreOptions) ([]byte, error) {
	var buf bytes.Buffer
	for _, obj := range []interface{}{
		VectorStoreDeployment(opts),
		VectorStoreService(opts),
	} {
		data, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal manifest: %v", err)
		}
		buf.WriteString("---\n")
		buf.Write(data)
	}
	return buf.Bytes(), nil
}
