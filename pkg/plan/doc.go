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

// Package plan declares the complete deployment as one engine graph.
//
// The graph reads the platform deployment's outputs, uploads the artifact to
// object storage, registers the feature flag and deploys the workload that
// fetches the artifact. Its single export is the service URL:
//
//	p, err := plan.Build(ctx, settings, plan.Options{})
//	if err != nil {
//	    return err
//	}
//	res, err := engine.New(engine.Config{}).Up(ctx, p.Graph)
//	fmt.Println(res.Outputs[stack.OutputService])
//
// Build validates settings before anything is declared, so configuration
// problems fail without touching any remote API. Preview renders the workload
// manifests without a cluster.
package plan
