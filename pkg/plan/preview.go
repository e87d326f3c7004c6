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

package plan

import (
	"bytes"
	"encoding/json"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/NVIDIA/appstack/pkg/k8s/workload"
	"github.com/NVIDIA/appstack/pkg/serializer"
	"github.com/NVIDIA/appstack/pkg/stack"
)

// Placeholders stand in for values that only exist once the plan runs.
const (
	NamespacePlaceholder        = "<namespace>"
	ArtifactURLPlaceholder      = "<artifact-url>"
	ConnectionStringPlaceholder = "<config-connection-string>"
)

// Manifests are the desired workload objects.
type Manifests struct {
	Deployment *appsv1.Deployment
	Service    *corev1.Service
}

// Preview builds the workload objects from settings alone, with placeholders
// for the namespace, artifact URL and connection string.
func Preview(s *stack.Settings) (*Manifests, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	args := workload.ArgsFromSettings(s.Workload, map[string]string{
		s.Workload.ConfigEnvVar: ConnectionStringPlaceholder,
	})
	args.Namespace = NamespacePlaceholder
	args.ArtifactURL = ArtifactURLPlaceholder

	d, err := workload.BuildDeployment(args)
	if err != nil {
		return nil, err
	}
	svc, err := workload.BuildService(args)
	if err != nil {
		return nil, err
	}
	return &Manifests{Deployment: d, Service: svc}, nil
}

// Encode renders the manifests as a multi-document YAML stream or a JSON list.
func (m *Manifests) Encode(format serializer.Format) ([]byte, error) {
	docs := make([]any, 0, 2)
	for _, obj := range []any{m.Deployment, m.Service} {
		doc, err := document(obj)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if format != serializer.FormatYAML {
		return serializer.Encode(format, docs)
	}

	var buf bytes.Buffer
	for i, doc := range docs {
		if i > 0 {
			buf.WriteString("---\n")
		}
		b, err := serializer.Encode(serializer.FormatYAML, doc)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// document converts an API object into a generic map so its json field names
// and omitempty rules carry over to YAML.
func document(obj any) (map[string]any, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to convert manifest: %w", err)
	}
	// status is never part of a desired manifest
	delete(out, "status")
	return out, nil
}
