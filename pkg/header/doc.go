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

// Package header provides the apiVersion/kind header shared by appstack
// documents: settings files (DeploymentPlan) and published outputs
// (StackOutputs).
//
//	doc.Header = header.New(header.KindStackOutputs,
//	    header.WithMetadata("version", version.Version))
//
// Readers call Expect to reject documents of the wrong kind while still
// accepting hand-written files that omit the header.
package header
