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

package defaults

import "time"

const (
	// PlanTimeout is the default upper bound for one plan evaluation.
	PlanTimeout = 20 * time.Minute

	// DestroyTimeout is the default upper bound for tearing a plan down.
	DestroyTimeout = 10 * time.Minute
)

const (
	// StackReferenceTimeout is the timeout for reading a referenced deployment's outputs.
	StackReferenceTimeout = 30 * time.Second

	// StorageAccountTimeout bounds storage account provisioning, which is a
	// long-running operation on some providers.
	StorageAccountTimeout = 5 * time.Minute

	// StorageUploadTimeout bounds a single artifact upload.
	StorageUploadTimeout = 5 * time.Minute

	// SignedURLTTL is the lifetime of signed artifact URLs handed to the workload
	// when the container is not publicly readable.
	SignedURLTTL = 7 * 24 * time.Hour
)

const (
	// FeatureFlagTimeout is the timeout for configuration store calls.
	FeatureFlagTimeout = 30 * time.Second
)

const (
	// K8sApplyTimeout is the timeout for creating or updating one Kubernetes object.
	K8sApplyTimeout = 30 * time.Second

	// LoadBalancerAddressTimeout is how long to wait for the cloud load balancer
	// to assign an external address to the Service.
	LoadBalancerAddressTimeout = 10 * time.Minute

	// LoadBalancerPollInterval is the polling interval while waiting for the address.
	LoadBalancerPollInterval = 2 * time.Second

	// K8sCleanupTimeout is the timeout for cleanup operations.
	K8sCleanupTimeout = 30 * time.Second

	// K8sDeletePollInterval is the polling interval while waiting for deletion.
	K8sDeletePollInterval = 500 * time.Millisecond
)

// MinKubernetesVersion is the oldest API server the preflight check accepts.
const MinKubernetesVersion = "1.24"

const (
	// HTTPClientTimeout is the default total timeout for HTTP requests.
	HTTPClientTimeout = 30 * time.Second

	// HTTPConnectTimeout is the timeout for establishing connections.
	HTTPConnectTimeout = 5 * time.Second

	// HTTPTLSHandshakeTimeout is the timeout for TLS handshake.
	HTTPTLSHandshakeTimeout = 5 * time.Second

	// HTTPResponseHeaderTimeout is the timeout for reading response headers.
	HTTPResponseHeaderTimeout = 10 * time.Second

	// HTTPIdleConnTimeout is the timeout for idle connections in the pool.
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPKeepAlive is the keep-alive duration for connections.
	HTTPKeepAlive = 30 * time.Second

	// HTTPExpectContinueTimeout is the timeout for Expect: 100-continue.
	HTTPExpectContinueTimeout = 1 * time.Second
)

const (
	// ConfigMapWriteTimeout is the timeout for writing to ConfigMaps.
	ConfigMapWriteTimeout = 30 * time.Second
)
