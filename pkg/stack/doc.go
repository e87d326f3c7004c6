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

// Package stack resolves a plan's configuration.
//
// Settings come from a YAML or JSON document; every constant of the
// deployment (resource group, SKU, container name, images, mount path, ports,
// labels, flag name) is a field with a default, see ApplyDefaults. Validate
// must pass before any resource is declared.
//
// A Reference is a read-only view of another deployment's published outputs
// (the "platform" stack). ResolvePlatform reads the kubeconfig and namespace
// from it and resolves the RuntimeConfig, whose connection string comes either
// from the platform's configStoreConnectionString output or from the literal
// configConnectionString setting, as selected by config.source.
//
// Deployments publish a Document through Publish, so one plan's outputs can
// be another plan's platformStack:
//
//	stack: app
//	updateId: 6f1c...
//	timestamp: 2025-01-01T00:00:00Z
//	outputs:
//	  service: http://20.1.2.3/welcome
package stack
