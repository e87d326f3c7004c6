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
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/NVIDIA/appstack/pkg/engine"
	"github.com/NVIDIA/appstack/pkg/plan"
	"github.com/NVIDIA/appstack/pkg/serializer"
	"github.com/NVIDIA/appstack/pkg/stack"
)

// planOptions supplies the plan collaborators. Tests replace it to run
// against fakes.
var planOptions = func(cmd *cli.Command) plan.Options {
	return plan.Options{Preflight: cmd.Bool("preflight")}
}

func settingsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "settings",
			Aliases: []string{"s"},
			Usage: `Path/URI of the plan settings.
	Supports: file paths, HTTP/HTTPS URLs, or ConfigMap URIs (cm://namespace/name).`,
			Value:   "appstack.yaml",
			Sources: envVars("SETTINGS"),
		},
		&cli.StringFlag{
			Name:    "stack",
			Usage:   "Override the stack name from settings",
			Sources: envVars("STACK"),
		},
		&cli.StringFlag{
			Name:    "platform-stack",
			Usage:   "Override the referenced platform stack outputs location",
			Sources: envVars("PLATFORM_STACK"),
		},
		&cli.StringFlag{
			Name:  "structure",
			Usage: fmt.Sprintf("Override how workload objects are grouped (supported values: %s, %s)", stack.StructureComponent, stack.StructureInline),
		},
		&cli.StringFlag{
			Name:    "backend",
			Usage:   fmt.Sprintf("Override the storage backend (supported values: %s)", strings.Join(stack.SupportedBackends(), ", ")),
			Sources: envVars("BACKEND"),
		},
	}
}

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "parallelism",
			Usage: "Maximum number of nodes applied concurrently (0 = unbounded)",
		},
		&cli.Float64Flag{
			Name:  "rate",
			Usage: "Maximum node starts per second (0 = unthrottled)",
		},
		&cli.IntFlag{
			Name:  "burst",
			Usage: "Node start burst when --rate is set",
			Value: 1,
		},
		&cli.StringFlag{
			Name:    "metrics-file",
			Usage:   "Write Prometheus metrics in textfile collector format when done",
			Sources: envVars("METRICS_FILE"),
		},
	}
}

func outputFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   usage,
	}
}

// loadSettings reads settings and applies command line overrides before
// defaults and validation.
func loadSettings(ctx context.Context, cmd *cli.Command) (*stack.Settings, error) {
	var overrides []stack.Override
	if v := cmd.String("stack"); v != "" {
		overrides = append(overrides, func(s *stack.Settings) { s.Stack = v })
	}
	if v := cmd.String("platform-stack"); v != "" {
		overrides = append(overrides, func(s *stack.Settings) { s.PlatformStack = v })
	}
	if v := cmd.String("structure"); v != "" {
		overrides = append(overrides, func(s *stack.Settings) { s.Structure = stack.Structure(v) })
	}
	if v := cmd.String("backend"); v != "" {
		overrides = append(overrides, func(s *stack.Settings) { s.Storage.Backend = v })
	}
	return stack.LoadSettings(ctx, cmd.String("settings"), overrides...)
}

func engineConfig(cmd *cli.Command) engine.Config {
	return engine.Config{
		Parallelism: int(cmd.Int("parallelism")),
		StartRate:   rate.Limit(cmd.Float64("rate")),
		StartBurst:  int(cmd.Int("burst")),
	}
}

// writeMetrics is best effort: a failed metrics write never fails the command.
func writeMetrics(cmd *cli.Command) {
	path := cmd.String("metrics-file")
	if path == "" {
		return
	}
	if err := engine.WriteMetrics(path); err != nil {
		slog.Warn("failed to write metrics", "error", err)
	}
}

// writeOutput writes data to path, or stdout when path is empty.
func writeOutput(path string, data []byte) error {
	if strings.TrimSpace(path) == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func parseFormat(value string, allowed ...serializer.Format) (serializer.Format, error) {
	f := serializer.Format(value)
	for _, a := range allowed {
		if f == a {
			return f, nil
		}
	}
	names := make([]string, 0, len(allowed))
	for _, a := range allowed {
		names = append(names, string(a))
	}
	return "", fmt.Errorf("unknown output format: %q (supported: %s)", value, strings.Join(names, ", "))
}
