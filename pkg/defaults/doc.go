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

// Package defaults provides centralized configuration constants for appstack.
//
// This package defines timeout values and polling intervals used across the
// codebase. Centralizing these values ensures consistency and makes tuning easier.
//
// # Timeout Categories
//
// Timeouts are organized by component:
//
//   - Plan timeouts: Whole evaluation of an up or destroy
//   - Storage timeouts: Account provisioning, artifact upload, signed URLs
//   - Feature flag timeouts: Configuration store calls
//   - Kubernetes timeouts: Object apply, load balancer address, cleanup
//   - HTTP client timeouts: For outbound HTTP requests
//
// # Usage
//
// Import and use constants directly:
//
//	import "github.com/NVIDIA/appstack/pkg/defaults"
//
//	ctx, cancel := context.WithTimeout(ctx, defaults.K8sApplyTimeout)
//	defer cancel()
//
// # Timeout Guidelines
//
// When choosing timeout values:
//
//   - Cloud load balancers commonly take minutes to assign an address
//   - Storage account creation is a long-running operation on Azure
//   - The plan timeout must exceed the slowest single step
package defaults
