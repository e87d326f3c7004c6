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

package stack

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/NVIDIA/appstack/pkg/defaults"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/header"
	"github.com/NVIDIA/appstack/pkg/serializer"
)

// Outputs consumed from the platform deployment and published by this one.
const (
	OutputKubeconfig                  = "kubeconfig"
	OutputNamespace                   = "namespace"
	OutputConfigStore                 = "configStore"
	OutputConfigStoreConnectionString = "configStoreConnectionString"
	OutputService                     = "service"
)

// Document is the outputs document a deployment publishes and others reference.
type Document struct {
	header.Header `json:",inline" yaml:",inline"`

	Stack     string            `json:"stack" yaml:"stack"`
	UpdateID  string            `json:"updateId,omitempty" yaml:"updateId,omitempty"`
	Timestamp time.Time         `json:"timestamp" yaml:"timestamp"`
	Outputs   map[string]string `json:"outputs" yaml:"outputs"`
}

// Loader fetches an outputs document from a location.
type Loader func(ctx context.Context, location string) (*Document, error)

// DefaultLoader reads the document through the serializer, so any file path,
// http(s) URL or cm://namespace/name works.
func DefaultLoader(ctx context.Context, location string) (*Document, error) {
	return serializer.FromFile[Document](ctx, location)
}

// Reference is a read-only view of another deployment's outputs.
type Reference struct {
	location string
	name     string
	outputs  map[string]string
}

// ReadReference loads the outputs document at location. A nil loader uses DefaultLoader.
func ReadReference(ctx context.Context, location string, load Loader) (*Reference, error) {
	if strings.TrimSpace(location) == "" {
		return nil, cnserrors.New(cnserrors.ErrCodeInvalidConfig, "stack reference location is empty")
	}
	if load == nil {
		load = DefaultLoader
	}

	ctx, cancel := context.WithTimeout(ctx, defaults.StackReferenceTimeout)
	defer cancel()

	doc, err := load(ctx, location)
	if err != nil {
		return nil, cnserrors.WrapWithContext(cnserrors.ErrCodeNotFound,
			"failed to read referenced stack outputs", err,
			map[string]any{"stack": location})
	}
	if doc != nil {
		if err := doc.Expect(header.KindStackOutputs); err != nil {
			return nil, cnserrors.WrapWithContext(cnserrors.ErrCodeInvalidConfig,
				"referenced document is not a stack outputs document", err,
				map[string]any{"stack": location})
		}
	}
	return NewReference(location, doc), nil
}

// NewReference wraps an already loaded document.
func NewReference(location string, doc *Document) *Reference {
	r := &Reference{location: location, name: location}
	if doc != nil {
		if doc.Stack != "" {
			r.name = doc.Stack
		}
		r.outputs = maps.Clone(doc.Outputs)
	}
	return r
}

// Name returns the referenced stack name, or its location when the document carries none.
func (r *Reference) Name() string {
	return r.name
}

// Location returns where the document was read from.
func (r *Reference) Location() string {
	return r.location
}

// Output returns an output and whether it is present.
func (r *Reference) Output(name string) (string, bool) {
	v, ok := r.outputs[name]
	return v, ok
}

// OutputNames returns the available output names, sorted.
func (r *Reference) OutputNames() []string {
	return slices.Sorted(maps.Keys(r.outputs))
}

// RequireOutput returns an output or a MISSING_OUTPUT error when it is absent or blank.
func (r *Reference) RequireOutput(name string) (string, error) {
	v, ok := r.outputs[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "", cnserrors.NewWithContext(cnserrors.ErrCodeMissingOutput,
			fmt.Sprintf("required output %q is not set on stack %s", name, r.name),
			map[string]any{"stack": r.name, "output": name})
	}
	return v, nil
}
