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

// Package logging configures log/slog for appstack.
//
// Two handlers are available. The structured logger writes JSON to stderr
// and is meant for CI and log shippers; the CLI logger writes text and is the
// default for interactive runs. Both attach "module" and "version" to every
// record and add source locations at debug level.
//
//	logging.SetDefaultStructuredLoggerWithLevel("appstack", version.Version, "debug")
//	slog.Info("plan applied", "stack", "dev", "changes", 3)
//
// Level names are case-insensitive: debug, info, warn (or warning), error.
// Anything else means info. SetDefaultStructuredLogger takes the level from
// LOG_LEVEL:
//
//	LOG_LEVEL=debug appstack up --settings appstack.yaml
//
// NewLogLogger adapts slog for libraries that still take a *log.Logger.
package logging
