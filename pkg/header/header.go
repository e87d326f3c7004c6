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

package header

import (
	"fmt"
	"time"
)

// APIVersion is the schema version of every appstack document.
const APIVersion = "appstack.nvidia.com/v1alpha1"

// Kind is the type of an appstack document.
type Kind string

const (
	// KindDeploymentPlan marks a settings file.
	KindDeploymentPlan Kind = "DeploymentPlan"
	// KindStackOutputs marks a published outputs document.
	KindStackOutputs Kind = "StackOutputs"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the Kind is one of the recognized kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindDeploymentPlan, KindStackOutputs:
		return true
	default:
		return false
	}
}

// Option is a functional option for configuring Header instances.
type Option func(*Header)

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(h *Header) {
		if h.Metadata == nil {
			h.Metadata = make(map[string]string)
		}
		h.Metadata[key] = value
	}
}

// Header carries Kubernetes-style type information. Documents written by
// hand may leave it empty.
type Header struct {
	Kind       Kind              `json:"kind,omitempty" yaml:"kind,omitempty"`
	APIVersion string            `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// New creates a header of the given kind stamped with the current time.
func New(kind Kind, opts ...Option) Header {
	h := Header{
		Kind:       kind,
		APIVersion: APIVersion,
		Metadata:   map[string]string{"timestamp": time.Now().UTC().Format(time.RFC3339)},
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// Expect returns an error when the header names a different kind or an
// unknown API version. An empty header is accepted.
func (h Header) Expect(kind Kind) error {
	if h.Kind != "" && h.Kind != kind {
		return fmt.Errorf("document kind is %q, expected %q", h.Kind, kind)
	}
	if h.APIVersion != "" && h.APIVersion != APIVersion {
		return fmt.Errorf("document apiVersion %q is not supported (expected %s)", h.APIVersion, APIVersion)
	}
	return nil
}
