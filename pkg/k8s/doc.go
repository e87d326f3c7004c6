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

// Package k8s provides Kubernetes integration for appstack.
//
// # Sub-packages
//
// client: ambient singleton client and target-cluster clients built from
// kubeconfig content
//
//	clientset, _, err := client.BuildKubeClientFromContent([]byte(kubeconfig))
//
// workload: the Deployment and LoadBalancer Service that run the artifact
//
//	app := workload.New(clientset, args)
//	change, err := app.Ensure(ctx)
//	addr, err := app.WaitForAddress(ctx, defaults.LoadBalancerAddressTimeout)
//
// # Architecture
//
//   - Idempotent ensure: objects are created when missing and updated only when
//     the desired spec hash differs from the one recorded on the live object.
//   - Single label source: the label set is built once and shared by the
//     Deployment metadata, pod template, selector and Service selector.
//   - Testability: everything accepts kubernetes.Interface so tests run against
//     k8s.io/client-go/kubernetes/fake.
package k8s
