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

// Package cli implements the appstack command line.
//
// # Commands
//
// up - Create or update the deployment:
//
//	appstack up --settings plan.yaml [--outputs cm://apps/outputs] [--timeout 10m]
//
// Reads the platform stack outputs, uploads the artifact, registers the
// feature flag, applies the workload and publishes the "service" output.
// Re-running with unchanged inputs changes nothing.
//
// preview - Render the desired manifests:
//
//	appstack preview --settings plan.yaml [--format yaml|json] [--output file]
//
// graph - Render the resource graph:
//
//	appstack graph --settings plan.yaml [--format dot|mermaid]
//
// destroy - Delete managed resources in reverse dependency order:
//
//	appstack destroy --settings plan.yaml
//
// # Global Flags
//
//	--log-level    Log level: debug, info, warn, error (default: info)
//	--debug        Shorthand for --log-level debug
//	--log-json     Structured JSON logs on stderr
//	--help, -h     Show command help
//	--version, -v  Show version information
//
// # Settings Overrides
//
// Every command reading settings accepts --stack, --platform-stack,
// --structure and --backend, applied before defaults and validation.
//
// # Environment Variables
//
//	APPSTACK_SETTINGS        Default for --settings
//	APPSTACK_OUTPUTS         Default for --outputs
//	APPSTACK_LOG_LEVEL       Default for --log-level (LOG_LEVEL is also honored)
//	APPSTACK_METRICS_FILE    Default for --metrics-file
//	AZURE_SUBSCRIPTION_ID    Subscription of the azure storage backend
//	KUBECONFIG               Cluster used for cm:// settings and outputs
package cli
