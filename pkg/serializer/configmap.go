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

package serializer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	accorev1 "k8s.io/client-go/applyconfigurations/core/v1"

	"github.com/NVIDIA/appstack/pkg/defaults"
	"github.com/NVIDIA/appstack/pkg/k8s/client"
)

const (
	dataKeyFormat    = "format"
	dataKeyKind      = "kind"
	dataKeyTimestamp = "timestamp"

	// DefaultDocumentKind is used when a ConfigMapWriter is not given a kind.
	DefaultDocumentKind = "outputs"

	fieldManager = "appstack"
)

// ConfigMapWriter stores a document in a ConfigMap with Server-Side Apply,
// creating or replacing it atomically.
//
// Data layout:
//   - <kind>.<ext>: the encoded document
//   - kind, format: how to find and decode it again
//   - timestamp: RFC 3339 time of the write
type ConfigMapWriter struct {
	namespace string
	name      string
	format    Format
	kind      string
	version   string
	client    client.Interface
}

// ConfigMapOption configures a ConfigMapWriter.
type ConfigMapOption func(*ConfigMapWriter)

// WithKind sets the document kind used for the data key and component label.
func WithKind(kind string) ConfigMapOption {
	return func(w *ConfigMapWriter) {
		w.kind = kind
	}
}

// WithVersion sets the app.kubernetes.io/version label.
func WithVersion(version string) ConfigMapOption {
	return func(w *ConfigMapWriter) {
		w.version = version
	}
}

// WithKubeClient uses c instead of the default kubeconfig discovery.
func WithKubeClient(c client.Interface) ConfigMapOption {
	return func(w *ConfigMapWriter) {
		w.client = c
	}
}

// NewConfigMapWriter creates a writer for namespace/name.
func NewConfigMapWriter(namespace, name string, format Format, opts ...ConfigMapOption) *ConfigMapWriter {
	w := &ConfigMapWriter{
		namespace: namespace,
		name:      name,
		format:    normalize(format),
		kind:      DefaultDocumentKind,
		version:   "unknown",
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Serialize encodes v and applies the ConfigMap.
func (w *ConfigMapWriter) Serialize(ctx context.Context, v any) error {
	ctx, cancel := context.WithTimeout(ctx, defaults.ConfigMapWriteTimeout)
	defer cancel()

	k8s := w.client
	if k8s == nil {
		c, _, err := client.GetKubeClient()
		if err != nil {
			return fmt.Errorf("failed to get kubernetes client: %w", err)
		}
		k8s = c
	}

	content, err := Encode(w.format, v)
	if err != nil {
		return fmt.Errorf("failed to encode %s document: %w", w.kind, err)
	}

	cm := accorev1.ConfigMap(w.name, w.namespace).
		WithLabels(map[string]string{
			"app.kubernetes.io/name":       "appstack",
			"app.kubernetes.io/component":  w.kind,
			"app.kubernetes.io/version":    w.version,
			"app.kubernetes.io/managed-by": fieldManager,
		}).
		WithData(map[string]string{
			w.kind + "." + w.format.Extension(): string(content),
			dataKeyKind:                         w.kind,
			dataKeyFormat:                       string(w.format),
			dataKeyTimestamp:                    time.Now().UTC().Format(time.RFC3339),
		})

	slog.Info("applying ConfigMap", "namespace", w.namespace, "name", w.name,
		"kind", w.kind, "format", w.format)

	// Force takes ownership from earlier field managers.
	_, err = k8s.CoreV1().ConfigMaps(w.namespace).Apply(ctx, cm, metav1.ApplyOptions{
		FieldManager: fieldManager,
		Force:        true,
	})
	if err != nil {
		return fmt.Errorf("failed to apply ConfigMap %s/%s: %w", w.namespace, w.name, err)
	}
	return nil
}

// Close is a no-op.
func (w *ConfigMapWriter) Close() error {
	return nil
}

// ParseConfigMapURI splits cm://namespace/name.
func ParseConfigMapURI(uri string) (namespace, name string, err error) {
	if !strings.HasPrefix(uri, ConfigMapURIScheme) {
		return "", "", fmt.Errorf("invalid ConfigMap URI: must start with %s", ConfigMapURIScheme)
	}

	ns, n, ok := strings.Cut(strings.TrimPrefix(uri, ConfigMapURIScheme), "/")
	if !ok {
		return "", "", fmt.Errorf("invalid ConfigMap URI format: expected %snamespace/name, got %s", ConfigMapURIScheme, uri)
	}
	namespace, name = strings.TrimSpace(ns), strings.TrimSpace(n)
	if namespace == "" {
		return "", "", fmt.Errorf("invalid ConfigMap URI: namespace cannot be empty")
	}
	if name == "" {
		return "", "", fmt.Errorf("invalid ConfigMap URI: name cannot be empty")
	}
	return namespace, name, nil
}
