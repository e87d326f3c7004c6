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

// Package engine resolves a plan's resource graph.
//
// A plan declares nodes on a Graph. Each node has a URN, a Kind and a body.
// Values that only exist after a node runs (an uploaded blob's URL, a
// Service's external address) are modelled as *Output[T]. An Output carries
// the URNs of the nodes that produce it. Passing it to DependsOn creates the
// graph edge, so ordering follows data flow.
//
// Kinds:
//
//   - resource: managed remote object, applied on up and deleted on destroy
//   - read: reads external state such as another deployment's outputs
//   - effect: unmanaged side effect, run on up and never deleted
//   - component: groups children for display and ordering
//
// Usage:
//
//	g := engine.NewGraph()
//	url := engine.NewOutput[string](blobURN)
//	g.Resource(blobURN, blob, engine.DependsOn(container.Name), engine.Owns(url))
//	g.Export("artifact", url)
//
//	res, err := engine.New(engine.Config{Parallelism: 4}).Up(ctx, g)
//
// Up validates the graph first: duplicate URNs, unknown dependencies and
// cycles are reported together as INVALID_CONFIG before anything runs. Nodes
// then start as soon as their dependencies succeed. The first failure cancels
// the run; dependents are skipped and their outputs are rejected with ABORTED.
//
// Destroy runs the reads that do not depend on managed state, then deletes
// resources so that no resource is removed before the resources depending on it.
//
// Metrics are registered on the default Prometheus registry under the
// appstack_ prefix; WriteMetrics dumps them in textfile-collector format.
package engine
