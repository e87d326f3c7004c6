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
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/distribution/reference"

	"github.com/NVIDIA/appstack/pkg/defaults"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/header"
	"github.com/NVIDIA/appstack/pkg/serializer"
)

// ConfigSource selects where the runtime connection string comes from.
type ConfigSource string

const (
	// SourceReference reads configStoreConnectionString from the referenced deployment.
	SourceReference ConfigSource = "reference"
	// SourceLiteral uses the configConnectionString setting.
	SourceLiteral ConfigSource = "literal"
)

// Structure selects how the Kubernetes objects are registered.
type Structure string

const (
	// StructureComponent registers Deployment and Service under one App component.
	StructureComponent Structure = "component"
	// StructureInline registers them at the root of the graph.
	StructureInline Structure = "inline"
)

// Storage backends.
const (
	BackendAzure  = "azure"
	BackendS3     = "s3"
	BackendMinio  = "minio"
	BackendOCI    = "oci"
	BackendMemory = "memory"
)

// SupportedBackends lists the accepted storage.backend values.
func SupportedBackends() []string {
	return []string{BackendAzure, BackendS3, BackendMinio, BackendOCI, BackendMemory}
}

// Settings is the plan configuration.
type Settings struct {
	header.Header `json:",inline" yaml:",inline"`

	// Stack names this deployment in the outputs it publishes.
	Stack string `json:"stack" yaml:"stack"`
	// PlatformStack locates the referenced deployment's outputs document:
	// a file path, an http(s) URL or cm://namespace/name.
	PlatformStack string `json:"platformStack" yaml:"platformStack"`
	// ConfigConnectionString is the literal runtime connection string.
	ConfigConnectionString string `json:"configConnectionString,omitempty" yaml:"configConnectionString,omitempty"`

	Config      ConfigSettings      `json:"config" yaml:"config"`
	Structure   Structure           `json:"structure" yaml:"structure"`
	Storage     StorageSettings     `json:"storage" yaml:"storage"`
	Workload    WorkloadSettings    `json:"workload" yaml:"workload"`
	FeatureFlag FeatureFlagSettings `json:"featureFlag" yaml:"featureFlag"`
	Outputs     OutputSettings      `json:"outputs" yaml:"outputs"`
}

// ConfigSettings selects the runtime config source.
type ConfigSettings struct {
	Source ConfigSource `json:"source" yaml:"source"`
}

// StorageSettings describes the artifact's object storage.
type StorageSettings struct {
	Backend string `json:"backend" yaml:"backend"`

	// AccountName is the storage account (azure) or bucket prefix (s3, minio).
	AccountName    string `json:"accountName" yaml:"accountName"`
	ResourceGroup  string `json:"resourceGroup" yaml:"resourceGroup"`
	SubscriptionID string `json:"subscriptionId,omitempty" yaml:"subscriptionId,omitempty"`
	Location       string `json:"location" yaml:"location"`
	SKU            string `json:"sku" yaml:"sku"`
	Kind           string `json:"kind" yaml:"kind"`

	ContainerName string `json:"containerName" yaml:"containerName"`
	// PublicRead grants anonymous read on the container's blobs. Off by
	// default; the artifact URL is then a signed URL valid for SignedURLTTL.
	PublicRead   bool          `json:"publicRead" yaml:"publicRead"`
	SignedURLTTL time.Duration `json:"signedUrlTtl" yaml:"signedUrlTtl"`

	BlobName string `json:"blobName" yaml:"blobName"`
	// ArtifactPath is the local file or http(s) URL uploaded as the blob.
	ArtifactPath string `json:"artifactPath" yaml:"artifactPath"`

	// Endpoint and Region address s3-compatible and minio backends.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	// Repository is the OCI repository (registry/path) for the oci backend.
	Repository string `json:"repository,omitempty" yaml:"repository,omitempty"`
	// Insecure uses plain HTTP for minio and oci.
	Insecure bool `json:"insecure,omitempty" yaml:"insecure,omitempty"`
}

// WorkloadSettings describes the Kubernetes workload.
type WorkloadSettings struct {
	ComponentName  string `json:"componentName" yaml:"componentName"`
	DeploymentName string `json:"deploymentName" yaml:"deploymentName"`
	ServiceName    string `json:"serviceName" yaml:"serviceName"`
	Replicas       int32  `json:"replicas" yaml:"replicas"`

	InitImage         string   `json:"initImage" yaml:"initImage"`
	InitContainerName string   `json:"initContainerName" yaml:"initContainerName"`
	RuntimeImage      string   `json:"runtimeImage" yaml:"runtimeImage"`
	ContainerName     string   `json:"containerName" yaml:"containerName"`
	RuntimeCommand    []string `json:"runtimeCommand" yaml:"runtimeCommand"`

	VolumeName   string `json:"volumeName" yaml:"volumeName"`
	MountPath    string `json:"mountPath" yaml:"mountPath"`
	ArtifactFile string `json:"artifactFile" yaml:"artifactFile"`

	// ConfigEnvVar receives the runtime connection string.
	ConfigEnvVar string            `json:"configEnvVar" yaml:"configEnvVar"`
	Env          map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	PortName      string `json:"portName" yaml:"portName"`
	ContainerPort int32  `json:"containerPort" yaml:"containerPort"`
	ServicePort   int32  `json:"servicePort" yaml:"servicePort"`

	Labels map[string]string `json:"labels" yaml:"labels"`

	AddressTimeout time.Duration `json:"addressTimeout" yaml:"addressTimeout"`
}

// FeatureFlagSettings describes the flag ensured in the configuration store.
type FeatureFlagSettings struct {
	Name    string `json:"name" yaml:"name"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	// Label scopes the flag key in the store. Empty means no label.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	// Disabled skips registration altogether.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// OutputSettings controls the published outputs.
type OutputSettings struct {
	// ServiceFormat renders the service output from the external address; one %s.
	ServiceFormat string `json:"serviceFormat" yaml:"serviceFormat"`
	// Location is where outputs are written; empty means stdout.
	Location string            `json:"location,omitempty" yaml:"location,omitempty"`
	Format   serializer.Format `json:"format" yaml:"format"`
}

// DefaultLabels returns the label set applied to every Kubernetes object.
func DefaultLabels() map[string]string {
	return map[string]string{
		"costcenter": "1234567890",
		"contact":    "ops",
		"appname":    "devopsjavashops",
	}
}

// Default returns settings with every field at its default. PlatformStack and
// Storage.ArtifactPath have no default.
func Default() *Settings {
	s := &Settings{}
	s.ApplyDefaults()
	return s
}

// ApplyDefaults fills zero-valued fields.
func (s *Settings) ApplyDefaults() {
	setDefault(&s.Stack, "dev")
	if s.Config.Source == "" {
		s.Config.Source = SourceReference
	}
	if s.Structure == "" {
		s.Structure = StructureComponent
	}

	st := &s.Storage
	setDefault(&st.Backend, BackendAzure)
	setDefault(&st.AccountName, "myblob")
	setDefault(&st.ResourceGroup, "mspulumi")
	setDefault(&st.Location, "westeurope")
	setDefault(&st.SKU, "Standard_LRS")
	setDefault(&st.Kind, "StorageV2")
	setDefault(&st.ContainerName, "java")
	setDefault(&st.BlobName, "app.jar")
	setDefault(&st.Region, "us-east-1")
	if st.SubscriptionID == "" {
		st.SubscriptionID = os.Getenv("AZURE_SUBSCRIPTION_ID")
	}
	if st.SignedURLTTL == 0 {
		st.SignedURLTTL = defaults.SignedURLTTL
	}

	w := &s.Workload
	setDefault(&w.ComponentName, "deployment")
	setDefault(&w.DeploymentName, "deployment")
	setDefault(&w.ServiceName, "app-svc")
	if w.Replicas == 0 {
		w.Replicas = 1
	}
	setDefault(&w.InitImage, "bash")
	setDefault(&w.InitContainerName, "init")
	setDefault(&w.RuntimeImage, "openjdk")
	setDefault(&w.ContainerName, "app")
	if len(w.RuntimeCommand) == 0 {
		w.RuntimeCommand = []string{"java", "-jar"}
	}
	setDefault(&w.VolumeName, "jar-volume")
	setDefault(&w.MountPath, "/var/run/secrets/java")
	setDefault(&w.ArtifactFile, "app.jar")
	setDefault(&w.ConfigEnvVar, "APP_CONFIGURATION_CONNECTION_STRING")
	setDefault(&w.PortName, "http")
	if w.ContainerPort == 0 {
		w.ContainerPort = 8080
	}
	if w.ServicePort == 0 {
		w.ServicePort = 80
	}
	if len(w.Labels) == 0 {
		w.Labels = DefaultLabels()
	}
	if w.AddressTimeout == 0 {
		w.AddressTimeout = defaults.LoadBalancerAddressTimeout
	}

	setDefault(&s.FeatureFlag.Name, "Beta")

	setDefault(&s.Outputs.ServiceFormat, "http://%s/welcome")
	if s.Outputs.Format == "" {
		s.Outputs.Format = serializer.FormatYAML
	}
}

func setDefault(field *string, v string) {
	if strings.TrimSpace(*field) == "" {
		*field = v
	}
}

// Validate reports every problem at once as an INVALID_CONFIG error.
func (s *Settings) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if err := s.Expect(header.KindDeploymentPlan); err != nil {
		add("%v", err)
	}
	if strings.TrimSpace(s.PlatformStack) == "" {
		add("platformStack is required")
	}

	switch s.Config.Source {
	case SourceReference:
	case SourceLiteral:
		if strings.TrimSpace(s.ConfigConnectionString) == "" {
			add("configConnectionString is required when config.source is %q", SourceLiteral)
		}
	default:
		add("config.source must be %q or %q, got %q", SourceReference, SourceLiteral, s.Config.Source)
	}

	switch s.Structure {
	case StructureComponent, StructureInline:
	default:
		add("structure must be %q or %q, got %q", StructureComponent, StructureInline, s.Structure)
	}

	if !slices.Contains(SupportedBackends(), s.Storage.Backend) {
		add("storage.backend must be one of %s, got %q", strings.Join(SupportedBackends(), ", "), s.Storage.Backend)
	}
	if strings.TrimSpace(s.Storage.ArtifactPath) == "" {
		add("storage.artifactPath is required")
	}
	if s.Storage.Backend == BackendOCI && s.Storage.Repository == "" {
		add("storage.repository is required for the %s backend", BackendOCI)
	}
	if s.Storage.Backend == BackendMinio && s.Storage.Endpoint == "" {
		add("storage.endpoint is required for the %s backend", BackendMinio)
	}
	if s.Storage.SignedURLTTL < 0 {
		add("storage.signedUrlTtl must not be negative")
	}

	w := s.Workload
	for field, image := range map[string]string{"workload.initImage": w.InitImage, "workload.runtimeImage": w.RuntimeImage} {
		if _, err := reference.ParseNormalizedNamed(image); err != nil {
			add("%s %q is not a valid image reference: %v", field, image, err)
		}
	}
	if w.Replicas < 0 {
		add("workload.replicas must not be negative")
	}
	for field, port := range map[string]int32{"workload.containerPort": w.ContainerPort, "workload.servicePort": w.ServicePort} {
		if port < 1 || port > 65535 {
			add("%s %d is out of range", field, port)
		}
	}
	if len(w.PortName) > 15 {
		add("workload.portName %q is longer than 15 characters", w.PortName)
	}
	if !strings.HasPrefix(w.MountPath, "/") {
		add("workload.mountPath %q must be absolute", w.MountPath)
	}
	if strings.Contains(w.ArtifactFile, "/") {
		add("workload.artifactFile %q must be a file name", w.ArtifactFile)
	}
	if _, clash := w.Env[w.ConfigEnvVar]; clash {
		add("workload.env must not set %s", w.ConfigEnvVar)
	}
	if len(w.Labels) == 0 {
		add("workload.labels must not be empty")
	}

	if strings.Count(s.Outputs.ServiceFormat, "%s") != 1 || strings.Count(s.Outputs.ServiceFormat, "%") != 1 {
		add("outputs.serviceFormat must contain exactly one %%s verb")
	}
	if s.Outputs.Format.IsUnknown() {
		add("outputs.format must be one of %s", strings.Join(serializer.SupportedFormats(), ", "))
	}

	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	return cnserrors.NewWithContext(cnserrors.ErrCodeInvalidConfig,
		"invalid settings: "+strings.Join(problems, "; "),
		map[string]any{"problems": len(problems)})
}

// LabelSet returns a private copy of the configured labels.
func (w WorkloadSettings) LabelSet() map[string]string {
	return maps.Clone(w.Labels)
}

// Override adjusts loaded settings before defaults and validation run.
type Override func(*Settings)

// LoadSettings reads settings from a file, http(s) URL or cm://namespace/name,
// applies overrides and defaults, and validates.
func LoadSettings(ctx context.Context, location string, overrides ...Override) (*Settings, error) {
	s, err := serializer.FromFile[Settings](ctx, location)
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidConfig,
			fmt.Sprintf("failed to load settings from %s", location), err)
	}
	for _, o := range overrides {
		o(s)
	}
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
