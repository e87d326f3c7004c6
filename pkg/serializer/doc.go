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

// Package serializer reads and writes the documents appstack exchanges:
// plan settings and the outputs a deployment publishes for others to reference.
//
// # Formats
//
//   - json: indented JSON
//   - yaml: YAML, two-space indent (gopkg.in/yaml.v3)
//   - table: flattened FIELD/VALUE rows for terminals, write-only
//
// # Locations
//
// Every read and write accepts the same location forms:
//
//   - "" (writers only): stdout
//   - /path/to/file.yaml: a local file, format from the extension
//   - https://host/outputs.json: fetched with HttpReader (reads only)
//   - cm://namespace/name: a Kubernetes ConfigMap
//
// # Usage
//
//	out := serializer.NewFileWriterOrStdout(serializer.FormatYAML, "cm://demo/app-outputs")
//	if c, ok := out.(serializer.Closer); ok {
//	    defer c.Close()
//	}
//	if err := out.Serialize(ctx, outputs); err != nil {
//	    return err
//	}
//
//	settings, err := serializer.FromFile[stack.Settings](ctx, "plan.yaml")
//
// ConfigMaps are written with Server-Side Apply under the "appstack" field
// manager. The document lives under "<kind>.<ext>" next to "kind", "format"
// and "timestamp" entries, which FromConfigMap uses to read it back.
package serializer
