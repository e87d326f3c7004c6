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

package stack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/appstack/pkg/defaults"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/header"
	"github.com/NVIDIA/appstack/pkg/serializer"
)

func validSettings() *Settings {
	s := &Settings{PlatformStack: "cm://platform/outputs"}
	s.Storage.ArtifactPath = "target/app.jar"
	s.ApplyDefaults()
	return s
}

func TestApplyDefaults(t *testing.T) {
	t.Setenv("AZURE_SUBSCRIPTION_ID", "sub-123")
	s := Default()

	assert.Equal(t, SourceReference, s.Config.Source)
	assert.Equal(t, StructureComponent, s.Structure)

	assert.Equal(t, BackendAzure, s.Storage.Backend)
	assert.Equal(t, "myblob", s.Storage.AccountName)
	assert.Equal(t, "mspulumi", s.Storage.ResourceGroup)
	assert.Equal(t, "Standard_LRS", s.Storage.SKU)
	assert.Equal(t, "StorageV2", s.Storage.Kind)
	assert.Equal(t, "java", s.Storage.ContainerName)
	assert.Equal(t, "app.jar", s.Storage.BlobName)
	assert.Equal(t, "sub-123", s.Storage.SubscriptionID)
	assert.False(t, s.Storage.PublicRead, "public read is opt-in")
	assert.Equal(t, defaults.SignedURLTTL, s.Storage.SignedURLTTL)

	w := s.Workload
	assert.Equal(t, int32(1), w.Replicas)
	assert.Equal(t, "bash", w.InitImage)
	assert.Equal(t, "openjdk", w.RuntimeImage)
	assert.Equal(t, []string{"java", "-jar"}, w.RuntimeCommand)
	assert.Equal(t, "/var/run/secrets/java", w.MountPath)
	assert.Equal(t, "app.jar", w.ArtifactFile)
	assert.Equal(t, "APP_CONFIGURATION_CONNECTION_STRING", w.ConfigEnvVar)
	assert.Equal(t, "http", w.PortName)
	assert.Equal(t, int32(8080), w.ContainerPort)
	assert.Equal(t, int32(80), w.ServicePort)
	assert.Equal(t, DefaultLabels(), w.Labels)

	assert.Equal(t, "Beta", s.FeatureFlag.Name)
	assert.False(t, s.FeatureFlag.Enabled)
	assert.Equal(t, "http://%s/welcome", s.Outputs.ServiceFormat)
	assert.Equal(t, serializer.FormatYAML, s.Outputs.Format)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	s := &Settings{Structure: StructureInline}
	s.Workload.ContainerPort = 9090
	s.Workload.Labels = map[string]string{"app": "x"}
	s.ApplyDefaults()

	assert.Equal(t, StructureInline, s.Structure)
	assert.Equal(t, int32(9090), s.Workload.ContainerPort)
	assert.Equal(t, map[string]string{"app": "x"}, s.Workload.Labels)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validSettings().Validate())

	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantMsg string
	}{
		{"missing platformStack", func(s *Settings) { s.PlatformStack = " " }, "platformStack is required"},
		{"literal without value", func(s *Settings) { s.Config.Source = SourceLiteral }, "configConnectionString is required"},
		{"unknown source", func(s *Settings) { s.Config.Source = "env" }, "config.source must be"},
		{"unknown structure", func(s *Settings) { s.Structure = "nested" }, "structure must be"},
		{"unknown backend", func(s *Settings) { s.Storage.Backend = "gcs" }, "storage.backend must be one of"},
		{"missing artifact", func(s *Settings) { s.Storage.ArtifactPath = "" }, "storage.artifactPath is required"},
		{"oci without repository", func(s *Settings) { s.Storage.Backend = BackendOCI }, "storage.repository is required"},
		{"minio without endpoint", func(s *Settings) { s.Storage.Backend = BackendMinio }, "storage.endpoint is required"},
		{"bad image", func(s *Settings) { s.Workload.RuntimeImage = "UPPER/Case" }, "workload.runtimeImage"},
		{"port out of range", func(s *Settings) { s.Workload.ServicePort = 70000 }, "workload.servicePort 70000 is out of range"},
		{"long port name", func(s *Settings) { s.Workload.PortName = "a-very-long-port-name" }, "longer than 15"},
		{"relative mount", func(s *Settings) { s.Workload.MountPath = "var/run" }, "must be absolute"},
		{"artifact file with dir", func(s *Settings) { s.Workload.ArtifactFile = "lib/app.jar" }, "must be a file name"},
		{"env clash", func(s *Settings) {
			s.Workload.Env = map[string]string{"APP_CONFIGURATION_CONNECTION_STRING": "x"}
		}, "workload.env must not set"},
		{"service format", func(s *Settings) { s.Outputs.ServiceFormat = "http://%s:%d" }, "exactly one %s"},
		{"output format", func(s *Settings) { s.Outputs.Format = "xml" }, "outputs.format must be one of"},
		{"wrong kind", func(s *Settings) { s.Kind = header.KindStackOutputs }, "expected \"DeploymentPlan\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidConfig))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	s := &Settings{}
	s.ApplyDefaults()
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platformStack is required")
	assert.Contains(t, err.Error(), "storage.artifactPath is required")
}

func TestLabelSet_IsACopy(t *testing.T) {
	s := validSettings()
	labels := s.Workload.LabelSet()
	labels["extra"] = "x"
	assert.NotContains(t, s.Workload.Labels, "extra")
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	content := `
platformStack: cm://platform/outputs
structure: inline
storage:
  backend: memory
  artifactPath: target/app.jar
  signedUrlTtl: 1h
workload:
  env:
    JAVA_OPTS: -Xmx256m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := LoadSettings(t.Context(), path, func(s *Settings) { s.Stack = "ci" })
	require.NoError(t, err)
	assert.Equal(t, "ci", s.Stack)
	assert.Equal(t, StructureInline, s.Structure)
	assert.Equal(t, BackendMemory, s.Storage.Backend)
	assert.Equal(t, "1h0m0s", s.Storage.SignedURLTTL.String())
	assert.Equal(t, "-Xmx256m", s.Workload.Env["JAVA_OPTS"])
	assert.Equal(t, "java", s.Storage.ContainerName)
}

func TestLoadSettings_MissingPlatformStack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  artifactPath: app.jar\n"), 0o600))

	_, err := LoadSettings(t.Context(), path)
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidConfig))
	assert.Contains(t, err.Error(), "platformStack is required")
}

func TestLoadSettings_Unreadable(t *testing.T) {
	_, err := LoadSettings(t.Context(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidConfig))
}
