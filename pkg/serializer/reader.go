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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/NVIDIA/appstack/pkg/k8s/client"
)

// FormatFromPath picks a format from the file extension, case-insensitively.
// .yaml and .yml are YAML, .json is JSON, .txt and .table are table. Anything
// else is treated as JSON.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json"):
		return FormatJSON
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return FormatYAML
	case strings.HasSuffix(lower, ".table"), strings.HasSuffix(lower, ".txt"):
		return FormatTable
	default:
		slog.Warn("unknown file extension, defaulting to JSON", "path", path)
		return FormatJSON
	}
}

// Reader decodes documents from a stream. Close releases the underlying
// source when it is closeable.
type Reader struct {
	format Format
	input  io.Reader
	closer io.Closer
}

// NewReader creates a Reader over input. Table format cannot be read back.
func NewReader(format Format, input io.Reader) (*Reader, error) {
	if err := readable(format); err != nil {
		return nil, err
	}
	r := &Reader{format: format, input: input}
	if c, ok := input.(io.Closer); ok {
		r.closer = c
	}
	return r, nil
}

// NewFileReader opens a local file or fetches an http(s) URL.
func NewFileReader(ctx context.Context, format Format, path string) (*Reader, error) {
	if err := readable(format); err != nil {
		return nil, err
	}

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		data, err := NewHttpReader().ReadWithContext(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to download remote file: %w", err)
		}
		return &Reader{format: format, input: bytes.NewReader(data)}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return &Reader{format: format, input: file, closer: file}, nil
}

func readable(format Format) error {
	if format.IsUnknown() {
		return fmt.Errorf("unknown format: %s", format)
	}
	if format == FormatTable {
		return fmt.Errorf("table format does not support deserialization")
	}
	return nil
}

// Deserialize decodes the next document into v, which must be a pointer.
func (r *Reader) Deserialize(v any) error {
	if r == nil {
		return fmt.Errorf("reader is nil")
	}
	if r.input == nil {
		return fmt.Errorf("input source is nil")
	}

	var err error
	switch r.format {
	case FormatJSON:
		err = json.NewDecoder(r.input).Decode(v)
	case FormatYAML:
		err = yaml.NewDecoder(r.input).Decode(v)
	case FormatTable:
		return fmt.Errorf("table format is not supported for deserialization")
	default:
		return fmt.Errorf("unsupported format for deserialization: %s", r.format)
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s: document is empty", r.format)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", r.format, err)
	}
	return nil
}

// Close releases the source. Safe to call more than once and on nil.
func (r *Reader) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Decode decodes data into a new T.
func Decode[T any](format Format, data []byte) (*T, error) {
	r, err := NewReader(format, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var out T
	if err := r.Deserialize(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FromFile loads a document from a local path, an http(s) URL, or a
// ConfigMap URI (cm://namespace/name) using the default kubeconfig.
func FromFile[T any](ctx context.Context, path string) (*T, error) {
	return FromFileWithKubeconfig[T](ctx, path, "")
}

// FromFileWithKubeconfig is FromFile with an explicit kubeconfig path for
// ConfigMap URIs. An empty kubeconfig uses default discovery.
func FromFileWithKubeconfig[T any](ctx context.Context, path, kubeconfig string) (*T, error) {
	if strings.HasPrefix(path, ConfigMapURIScheme) {
		namespace, name, err := ParseConfigMapURI(path)
		if err != nil {
			return nil, err
		}
		var k8s client.Interface
		if kubeconfig != "" {
			k8s, _, err = client.GetKubeClientWithConfig(kubeconfig)
		} else {
			k8s, _, err = client.GetKubeClient()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get kubernetes client: %w", err)
		}
		return FromConfigMap[T](ctx, k8s, namespace, name)
	}

	format := FormatFromPath(path)
	slog.Debug("loading document", "path", path, "format", format)

	r, err := NewFileReader(ctx, format, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			slog.Warn("failed to close reader", "error", cerr)
		}
	}()

	var out T
	if err := r.Deserialize(&out); err != nil {
		return nil, fmt.Errorf("failed to deserialize %q: %w", path, err)
	}
	return &out, nil
}

// FromConfigMap loads the document stored by ConfigMapWriter. The data key is
// "<kind>.<ext>" as recorded in the map's kind and format entries; when those
// are missing the first .yaml or .json entry is used.
func FromConfigMap[T any](ctx context.Context, k8s client.Interface, namespace, name string) (*T, error) {
	cm, err := k8s.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get ConfigMap %s/%s: %w", namespace, name, err)
	}

	format := Format(cm.Data[dataKeyFormat])
	if format.IsUnknown() || format == FormatTable {
		format = FormatYAML
	}

	content, ok := cm.Data[cm.Data[dataKeyKind]+"."+format.Extension()]
	if !ok {
		content, format, ok = firstDocument(cm.Data)
	}
	if !ok {
		return nil, fmt.Errorf("ConfigMap %s/%s has no document data", namespace, name)
	}

	slog.Debug("reading from ConfigMap", "namespace", namespace, "name", name,
		"format", format, "size", len(content))

	out, err := Decode[T](format, []byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize ConfigMap %s/%s: %w", namespace, name, err)
	}
	return out, nil
}

func firstDocument(data map[string]string) (string, Format, bool) {
	var best string
	for k := range data {
		if (strings.HasSuffix(k, ".yaml") || strings.HasSuffix(k, ".json")) && (best == "" || k < best) {
			best = k
		}
	}
	if best == "" {
		return "", "", false
	}
	return data[best], FormatFromPath(best), true
}
