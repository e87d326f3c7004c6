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

package workload

import (
	"maps"
	"path"
	"slices"

	"github.com/NVIDIA/appstack/pkg/k8s/client"
	"github.com/NVIDIA/appstack/pkg/stack"
)

// SpecHashAnnotation records the hash of the desired spec on every managed
// object; Ensure skips the update when it already matches.
const SpecHashAnnotation = "appstack.nvidia.com/spec-hash"

// Port is a named container port.
type Port struct {
	Name          string `json:"name" yaml:"name"`
	ContainerPort int32  `json:"containerPort" yaml:"containerPort"`
}

// Args describes the workload: a Deployment whose init container downloads
// the artifact into a shared volume and a LoadBalancer Service in front of it.
type Args struct {
	Name        string            `json:"name" yaml:"name"`
	ServiceName string            `json:"serviceName" yaml:"serviceName"`
	Namespace   string            `json:"namespace" yaml:"namespace"`
	ArtifactURL string            `json:"artifactUrl" yaml:"artifactUrl"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Ports       []Port            `json:"ports" yaml:"ports"`
	// Labels is shared by Deployment, pod template, selector and Service. Never mutated.
	Labels   map[string]string `json:"labels" yaml:"labels"`
	Replicas int32             `json:"replicas" yaml:"replicas"`

	InitImage         string   `json:"initImage" yaml:"initImage"`
	InitContainerName string   `json:"initContainerName" yaml:"initContainerName"`
	RuntimeImage      string   `json:"runtimeImage" yaml:"runtimeImage"`
	ContainerName     string   `json:"containerName" yaml:"containerName"`
	Command           []string `json:"command" yaml:"command"`

	VolumeName   string `json:"volumeName" yaml:"volumeName"`
	MountPath    string `json:"mountPath" yaml:"mountPath"`
	ArtifactFile string `json:"artifactFile" yaml:"artifactFile"`

	ServicePort int32 `json:"servicePort" yaml:"servicePort"`
	// TargetPort names the container port the Service forwards to.
	TargetPort string `json:"targetPort" yaml:"targetPort"`
}

// ArgsFromSettings fills everything but Namespace and ArtifactURL, which only
// exist once the plan runs. extraEnv is merged over the configured env.
func ArgsFromSettings(w stack.WorkloadSettings, extraEnv map[string]string) Args {
	env := maps.Clone(w.Env)
	if env == nil {
		env = make(map[string]string, len(extraEnv))
	}
	maps.Copy(env, extraEnv)

	return Args{
		Name:              w.DeploymentName,
		ServiceName:       w.ServiceName,
		Env:               env,
		Ports:             []Port{{Name: w.PortName, ContainerPort: w.ContainerPort}},
		Labels:            w.LabelSet(),
		Replicas:          w.Replicas,
		InitImage:         w.InitImage,
		InitContainerName: w.InitContainerName,
		RuntimeImage:      w.RuntimeImage,
		ContainerName:     w.ContainerName,
		Command:           slices.Clone(w.RuntimeCommand),
		VolumeName:        w.VolumeName,
		MountPath:         w.MountPath,
		ArtifactFile:      w.ArtifactFile,
		ServicePort:       w.ServicePort,
		TargetPort:        w.PortName,
	}
}

// ArtifactPath is where the init container writes the artifact.
func (a Args) ArtifactPath() string {
	return path.Join(a.MountPath, a.ArtifactFile)
}

// EnvNames returns the env var names in emission order.
func (a Args) EnvNames() []string {
	return slices.Sorted(maps.Keys(a.Env))
}

// App manages the workload objects of one Args in one cluster.
type App struct {
	clientset client.Interface
	args      Args
}

// New creates an App.
func New(clientset client.Interface, args Args) *App {
	return &App{clientset: clientset, args: args}
}

// Args returns the arguments the App was built with.
func (a *App) Args() Args {
	return a.args
}
