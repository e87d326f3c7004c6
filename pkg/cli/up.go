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
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/appstack/pkg/defaults"
	"github.com/NVIDIA/appstack/pkg/engine"
	"github.com/NVIDIA/appstack/pkg/plan"
	"github.com/NVIDIA/appstack/pkg/serializer"
	"github.com/NVIDIA/appstack/pkg/stack"
)

func upCmd() *cli.Command {
	return &cli.Command{
		Name:                  "up",
		EnableShellCompletion: true,
		Usage:                 "Create or update the deployment and publish its outputs",
		Description: `Evaluate the plan against the live environment:
  - read the platform stack outputs (kubeconfig, namespace, configuration store)
  - upload the artifact to the storage container
  - register the feature flag (never overwritten once present)
  - apply the Deployment and LoadBalancer Service and wait for the address

Running up again with unchanged inputs changes nothing. The published outputs
document holds the single output "service".

# Examples

  appstack up --settings plan.yaml
  appstack up -s plan.yaml --outputs cm://apps/appstack-outputs --format json`,
		Flags: slices.Concat(settingsFlags(), engineFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:    "outputs",
				Usage:   "Where to publish the outputs document (default: outputs.location from settings, else stdout)",
				Sources: envVars("OUTPUTS"),
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"t"},
				Usage:   "Outputs document format: yaml, json, table (default: outputs.format from settings)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Upper bound for the whole update",
				Value: defaults.PlanTimeout,
			},
			&cli.BoolFlag{
				Name:  "preflight",
				Usage: "Check cluster version and RBAC permissions before applying",
			},
		}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := loadSettings(ctx, cmd)
			if err != nil {
				return err
			}

			format := s.Outputs.Format
			if v := cmd.String("format"); v != "" {
				if format, err = parseFormat(v, serializer.FormatYAML, serializer.FormatJSON, serializer.FormatTable); err != nil {
					return err
				}
			}
			location := s.Outputs.Location
			if v := cmd.String("outputs"); v != "" {
				location = v
			}

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()

			p, err := plan.Build(ctx, s, planOptions(cmd))
			if err != nil {
				return err
			}

			res, err := engine.New(engineConfig(cmd)).Up(ctx, p.Graph)
			writeMetrics(cmd)
			if err != nil {
				return fmt.Errorf("update failed: %w", err)
			}
			slog.Info("update complete", "stack", s.Stack, "updateId", res.UpdateID, "changes", res.Summary())

			doc := stack.NewDocument(s.Stack, res.UpdateID, res.Outputs)
			return stack.Publish(ctx, location, format, doc)
		},
	}
}

func destroyCmd() *cli.Command {
	return &cli.Command{
		Name:                  "destroy",
		EnableShellCompletion: true,
		Usage:                 "Delete the resources the deployment manages",
		Description: `Delete the Service, the Deployment, the artifact blob, the container and
the storage account, each only after everything that depends on it is gone.

The feature flag is left in place: it is created once and then owned by
operators.

# Examples

  appstack destroy --settings plan.yaml`,
		Flags: slices.Concat(settingsFlags(), engineFlags(), []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Upper bound for the whole destroy",
				Value: defaults.DestroyTimeout,
			},
		}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := loadSettings(ctx, cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()

			p, err := plan.Build(ctx, s, planOptions(cmd))
			if err != nil {
				return err
			}

			res, err := engine.New(engineConfig(cmd)).Destroy(ctx, p.Graph)
			writeMetrics(cmd)
			if err != nil {
				return fmt.Errorf("destroy failed: %w", err)
			}
			slog.Info("destroy complete", "stack", s.Stack, "updateId", res.UpdateID, "changes", res.Summary())
			return nil
		},
	}
}
