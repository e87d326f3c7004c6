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

package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

const envLogLevel = "LOG_LEVEL"

// ParseLogLevel converts a level name to slog.Level.
// Unknown or empty values map to INFO.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// levelFromEnv returns the level from LOG_LEVEL, or INFO when unset.
func levelFromEnv() slog.Level {
	return ParseLogLevel(os.Getenv(envLogLevel))
}

// NewStructuredLogger creates a JSON logger writing to stderr with module and
// version attributes attached to every record.
func NewStructuredLogger(module, version, level string) *slog.Logger {
	return newLogger(os.Stderr, true, module, version, ParseLogLevel(level))
}

// NewTextLogger creates a human readable logger writing to stderr.
func NewTextLogger(module, version, level string) *slog.Logger {
	return newLogger(os.Stderr, false, module, version, ParseLogLevel(level))
}

func newLogger(w io.Writer, json bool, module, version string, lvl slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	}

	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(h).With(
		slog.String("module", module),
		slog.String("version", version),
	)
}

// SetDefaultStructuredLogger sets the default slog logger using LOG_LEVEL.
func SetDefaultStructuredLogger(module, version string) {
	slog.SetDefault(newLogger(os.Stderr, true, module, version, levelFromEnv()))
}

// SetDefaultStructuredLoggerWithLevel sets the default slog logger with an explicit level.
// An empty level falls back to LOG_LEVEL.
func SetDefaultStructuredLoggerWithLevel(module, version, level string) {
	lvl := levelFromEnv()
	if level != "" {
		lvl = ParseLogLevel(level)
	}
	slog.SetDefault(newLogger(os.Stderr, true, module, version, lvl))
}

// SetDefaultCLILogger sets a text logger as default, used by interactive commands.
func SetDefaultCLILogger(module, version, level string) {
	lvl := levelFromEnv()
	if level != "" {
		lvl = ParseLogLevel(level)
	}
	slog.SetDefault(newLogger(os.Stderr, false, module, version, lvl))
}

// NewLogLogger returns a standard library logger backed by the default slog handler.
func NewLogLogger(level slog.Level, addSource bool) *log.Logger {
	l := slog.NewLogLogger(slog.Default().Handler(), level)
	if addSource {
		l.SetFlags(log.Lshortfile)
	}
	return l
}
