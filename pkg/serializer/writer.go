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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

const (
	// FormatJSON is indented JSON.
	FormatJSON Format = "json"
	// FormatYAML is YAML with two-space indentation.
	FormatYAML Format = "yaml"
	// FormatTable flattens the document into FIELD/VALUE rows. Write-only.
	FormatTable Format = "table"
)

// IsUnknown reports whether f is not one of the supported formats.
func (f Format) IsUnknown() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatTable:
		return false
	default:
		return true
	}
}

// Extension returns the file extension used for f.
func (f Format) Extension() string {
	if f == FormatTable {
		return "txt"
	}
	return string(f)
}

// SupportedFormats returns the names accepted by --format flags.
func SupportedFormats() []string {
	return []string{string(FormatJSON), string(FormatYAML), string(FormatTable)}
}

// Encode renders v in the given format.
func Encode(format Format, v any) ([]byte, error) {
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to serialize to JSON: %w", err)
		}
		return append(b, '\n'), nil
	case FormatYAML:
		var sb strings.Builder
		enc := yaml.NewEncoder(&sb)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("failed to serialize to YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to serialize to YAML: %w", err)
		}
		return []byte(sb.String()), nil
	case FormatTable:
		return encodeTable(v)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Writer writes documents to a stream.
type Writer struct {
	format Format
	output io.Writer
	closer io.Closer
}

// NewWriter creates a Writer. A nil output means stdout; an unknown format means JSON.
func NewWriter(format Format, output io.Writer) *Writer {
	if output == nil {
		output = os.Stdout
	}
	return &Writer{format: normalize(format), output: output}
}

// NewStdoutWriter creates a Writer on stdout.
func NewStdoutWriter(format Format) *Writer {
	return NewWriter(format, os.Stdout)
}

// NewFileWriterOrStdout picks a destination from path: stdout when empty, a
// ConfigMap for cm://namespace/name, a file otherwise. Problems fall back to
// stdout so a result is never lost.
func NewFileWriterOrStdout(format Format, path string) Serializer {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return NewStdoutWriter(format)
	}

	if strings.HasPrefix(trimmed, ConfigMapURIScheme) {
		namespace, name, err := ParseConfigMapURI(trimmed)
		if err != nil {
			slog.Error("invalid ConfigMap URI, falling back to stdout", "error", err, "uri", trimmed)
			return NewStdoutWriter(format)
		}
		return NewConfigMapWriter(namespace, name, format)
	}

	file, err := os.Create(trimmed)
	if err != nil {
		slog.Error("failed to create output file", "error", err, "path", trimmed)
		return NewStdoutWriter(format)
	}
	return &Writer{format: normalize(format), output: file, closer: file}
}

// Serialize writes v in the writer's format.
func (w *Writer) Serialize(_ context.Context, v any) error {
	b, err := Encode(w.format, v)
	if err != nil {
		return err
	}
	if _, err := w.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Close releases the file handle, if any. Safe to call more than once.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

func normalize(format Format) Format {
	if format.IsUnknown() {
		slog.Warn("unknown format, defaulting to JSON", "format", format)
		return FormatJSON
	}
	return format
}

func encodeTable(v any) ([]byte, error) {
	flat := make(map[string]any)
	flatten(flat, reflect.ValueOf(v), "")
	if len(flat) == 0 {
		return []byte("<empty>\n"), nil
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tVALUE")
	fmt.Fprintln(tw, "-----\t-----")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%v\n", k, flat[k])
	}
	if err := tw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush table: %w", err)
	}
	return []byte(sb.String()), nil
}

func flatten(out map[string]any, val reflect.Value, prefix string) {
	if !val.IsValid() {
		return
	}
	for val.Kind() == reflect.Pointer || val.Kind() == reflect.Interface {
		if val.IsNil() {
			if prefix != "" {
				out[prefix] = nil
			}
			return
		}
		val = val.Elem()
	}

	//nolint:exhaustive // scalars fall through to default
	switch val.Kind() {
	case reflect.Struct:
		typ := val.Type()
		for i := range val.NumField() {
			f := typ.Field(i)
			if !f.IsExported() {
				continue
			}
			flatten(out, val.Field(i), joinKey(prefix, fieldName(f)))
		}
	case reflect.Map:
		for _, k := range val.MapKeys() {
			flatten(out, val.MapIndex(k), joinKey(prefix, fmt.Sprint(k.Interface())))
		}
	case reflect.Slice, reflect.Array:
		if val.Kind() == reflect.Slice && val.Type().Elem().Kind() == reflect.Uint8 {
			out[keyOrValue(prefix)] = string(val.Bytes())
			return
		}
		for i := range val.Len() {
			flatten(out, val.Index(i), joinKey(prefix, fmt.Sprintf("[%d]", i)))
		}
	default:
		out[keyOrValue(prefix)] = val.Interface()
	}
}

// fieldName prefers the yaml tag so table keys match the YAML document.
func fieldName(f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); tag != "" && tag != "-" {
		return tag
	}
	return f.Name
}

func keyOrValue(prefix string) string {
	if prefix == "" {
		return "value"
	}
	return prefix
}

func joinKey(prefix, suffix string) string {
	switch {
	case prefix == "":
		return suffix
	case suffix == "":
		return prefix
	default:
		return prefix + "." + suffix
	}
}
