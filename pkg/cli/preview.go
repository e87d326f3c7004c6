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

package cli

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/appstack/pkg/engine"
	"github.com/NVIDIA/appstack/pkg/plan"
	"github.com/NVIDIA/appstack/pkg/serializer"
	"github.com/NVIDIA/appstack/pkg/storage"
)

func previewCmd() *cli.Command {
	return &cli.Command{
		Name:                  "preview",
		EnableShellCompletion: true,
		Usage:                 "Render the desired Kubernetes manifests without touching any remote API",
		Description: `Render the Deployment and Service the plan would apply. Values only
known at run time are shown as placeholders:

  <namespace>                 namespace published by the platform stack
  <artifact-url>              URL of the uploaded artifact
  <config-connection-string>  configuration store connection string

# Examples

  appstack preview --settings plan.yaml
  appstack preview -s plan.yaml --format json -o manifests.json`,
		Flags: slices.Concat(settingsFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"t"},
				Usage:   "Manifest format: yaml, json",
				Value:   string(serializer.FormatYAML),
			},
			outputFlag("Manifest file path (default: stdout)"),
		}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format, err := parseFormat(cmd.String("format"), serializer.FormatYAML, serializer.FormatJSON)
			if err != nil {
				return err
			}
			s, err := loadSettings(ctx, cmd)
			if err != nil {
				return err
			}
			m, err := plan.Preview(s)
			if err != nil {
				return err
			}
			out, err := m.Encode(format)
			if err != nil {
				return err
			}
			return writeOutput(cmd.String("output"), out)
		},
	}
}

func graphCmd() *cli.Command {
	return &cli.Command{
		Name:                  "graph",
		EnableShellCompletion: true,
		Usage:                 "Render the resource graph of the plan",
		Description: `Render every node of the plan and the dependencies between them.
Resources are boxes, reads ellipses, effects hexagons; the workload component
is drawn as a cluster around its children.

# Examples

  appstack graph --settings plan.yaml | dot -Tsvg > plan.svg
  appstack graph -s plan.yaml --format mermaid`,
		Flags: slices.Concat(settingsFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"t"},
				Usage:   fmt.Sprintf("Graph format (supported values: %s)", strings.Join(engine.SupportedRenderFormats(), ", ")),
				Value:   string(engine.RenderDOT),
			},
			outputFlag("Graph file path (default: stdout)"),
		}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := loadSettings(ctx, cmd)
			if err != nil {
				return err
			}
			// the graph shape does not depend on the backend, so nothing remote is built
			p, err := plan.Build(ctx, s, plan.Options{Backend: storage.NewMemory()})
			if err != nil {
				return err
			}
			if _, err := p.Graph.Validate(); err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := p.Graph.Render(&buf, engine.RenderFormat(cmd.String("format"))); err != nil {
				return err
			}
			return writeOutput(cmd.String("output"), buf.Bytes())
		},
	}
}
