// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client builds Kubernetes clients for appstack.
//
// Two kinds of cluster access exist in a plan:
//
//   - Ambient access, used to read settings and referenced outputs from
//     cm://namespace/name URIs and to publish outputs there. It uses the
//     singleton returned by GetKubeClient (KUBECONFIG, ~/.kube/config, then
//     in-cluster credentials).
//   - Target access, used to deploy the workload. The kubeconfig of the target
//     cluster is an output of the referenced deployment and only known once
//     that output resolves, so the plan takes a Factory and calls it with the
//     kubeconfig content.
//
// # Usage
//
//	clientset, _, err := client.BuildKubeClientFromContent([]byte(kubeconfig))
//	if err != nil {
//	    return fmt.Errorf("failed to build target cluster client: %w", err)
//	}
//
// # Testing
//
// Inject a Factory returning k8s.io/client-go/kubernetes/fake clientsets:
//
//	factory := func(string) (client.Interface, error) { return fake.NewClientset(), nil }
package client
