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
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.in))
		})
	}
}

func TestNewLogger_JSONAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, true, "appstack", "v0.1.0", slog.LevelInfo)

	logger.Info("plan applied", "changes", 3)
	logger.Debug("dropped")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "plan applied", rec["msg"])
	assert.Equal(t, "appstack", rec["module"])
	assert.Equal(t, "v0.1.0", rec["version"])
	assert.EqualValues(t, 3, rec["changes"])
	assert.NotContains(t, rec, "source")
}

func TestNewLogger_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, true, "appstack", "dev", slog.LevelDebug)

	logger.Debug("resolving output")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Contains(t, rec, "source")
}

func TestSetDefaultStructuredLoggerWithLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	SetDefaultStructuredLoggerWithLevel("appstack", "dev", "error")
	assert.False(t, slog.Default().Enabled(t.Context(), slog.LevelWarn))
	assert.True(t, slog.Default().Enabled(t.Context(), slog.LevelError))
}

func TestSetDefaultStructuredLogger_FromEnv(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv(envLogLevel, "debug")
	SetDefaultStructuredLogger("appstack", "dev")
	assert.True(t, slog.Default().Enabled(t.Context(), slog.LevelDebug))
}
