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
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/appstack/pkg/logging"
	"github.com/NVIDIA/appstack/pkg/version"
)

const (
	name      = "appstack"
	envPrefix = "APPSTACK_"
)

func envVars(key string, extra ...string) cli.ValueSourceChain {
	return cli.EnvVars(append([]string{envPrefix + key}, extra...)...)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Usage:                 "Deploy a packaged application onto a platform stack",
		Version:               version.Info(),
		EnableShellCompletion: true,
		Description: `appstack evaluates a deployment plan: it uploads the application
artifact to object storage, registers its feature flag in the configuration
store and runs it on the platform's Kubernetes cluster behind a load balancer.

The platform (cluster credentials, namespace, configuration store) is read
from the outputs another deployment published, named by platformStack in the
settings file.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Value:   "info",
				Sources: envVars("LOG_LEVEL", "LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "shorthand for --log-level debug",
				Sources: envVars("DEBUG"),
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "emit structured JSON logs instead of text",
				Sources: envVars("LOG_JSON"),
			},
		},
		Before: initLogger,
		Commands: []*cli.Command{
			upCmd(),
			previewCmd(),
			graphCmd(),
			destroyCmd(),
		},
	}
}

// initLogger configures slog after flags are parsed so --log-level takes
// effect before any command runs.
func initLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level := cmd.String("log-level")
	if cmd.Bool("debug") {
		level = "debug"
	}
	if cmd.Bool("log-json") {
		logging.SetDefaultStructuredLoggerWithLevel(name, version.Version, level)
	} else {
		logging.SetDefaultCLILogger(name, version.Version, level)
	}
	slog.Debug("starting", "name", name, "version", version.Version,
		"commit", version.Commit, "date", version.Date, "logLevel", level)
	return ctx, nil
}

// Execute runs the CLI with os.Args and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
