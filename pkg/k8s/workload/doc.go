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

// Package workload deploys the application into Kubernetes: a Deployment
// whose init container downloads the artifact into a shared emptyDir volume,
// and a LoadBalancer Service exposing it.
//
// Both objects are built from one Args value and carry the same label set in
// metadata, pod template, selector and Service selector. Ensure creates the
// objects, or updates them only when the spec hash annotation differs, so
// repeated runs are no-ops:
//
//	app := workload.New(clientset, args)
//	if _, err := app.Ensure(ctx); err != nil {
//	    return err
//	}
//	addr, err := app.WaitForAddress(ctx, defaults.LoadBalancerAddressTimeout)
//
// Declare registers the same objects on an engine graph, either grouped under
// an App component or inline at the root.
package workload
