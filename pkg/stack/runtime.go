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
	"fmt"
	"strings"

	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
)

// RuntimeConfig is the resolved runtime configuration handed to the workload
// and the feature flag registrar.
type RuntimeConfig struct {
	// ConnectionString addresses the remote configuration store.
	ConnectionString string
	// Store names the configuration store as published by the platform.
	Store string
	// Source records which setting produced ConnectionString.
	Source ConfigSource
}

// PlatformOutputs are the values read from the referenced deployment.
type PlatformOutputs struct {
	Kubeconfig string
	Namespace  string
	Runtime    RuntimeConfig
}

// ResolvePlatform reads every required output of ref and resolves the
// runtime config. It is a pure function of its inputs.
func ResolvePlatform(s *Settings, ref *Reference) (PlatformOutputs, error) {
	var out PlatformOutputs
	var err error

	if out.Kubeconfig, err = ref.RequireOutput(OutputKubeconfig); err != nil {
		return PlatformOutputs{}, err
	}
	if out.Namespace, err = ref.RequireOutput(OutputNamespace); err != nil {
		return PlatformOutputs{}, err
	}
	if out.Runtime, err = ResolveRuntimeConfig(s, ref); err != nil {
		return PlatformOutputs{}, err
	}
	return out, nil
}

// ResolveRuntimeConfig produces the runtime connection string from the
// source chosen in settings. There is no fallback between sources.
func ResolveRuntimeConfig(s *Settings, ref *Reference) (RuntimeConfig, error) {
	store, err := ref.RequireOutput(OutputConfigStore)
	if err != nil {
		return RuntimeConfig{}, err
	}

	switch s.Config.Source {
	case SourceReference:
		cs, err := ref.RequireOutput(OutputConfigStoreConnectionString)
		if err != nil {
			return RuntimeConfig{}, err
		}
		return RuntimeConfig{ConnectionString: cs, Store: store, Source: SourceReference}, nil
	case SourceLiteral:
		if strings.TrimSpace(s.ConfigConnectionString) == "" {
			return RuntimeConfig{}, cnserrors.New(cnserrors.ErrCodeInvalidConfig,
				"configConnectionString is not set")
		}
		return RuntimeConfig{ConnectionString: s.ConfigConnectionString, Store: store, Source: SourceLiteral}, nil
	default:
		return RuntimeConfig{}, cnserrors.New(cnserrors.ErrCodeInvalidConfig,
			fmt.Sprintf("unknown config source %q", s.Config.Source))
	}
}
