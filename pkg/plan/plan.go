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

package plan

import (
	"context"
	"log/slog"
	"time"

	"github.com/NVIDIA/appstack/pkg/engine"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/featureflag"
	"github.com/NVIDIA/appstack/pkg/k8s/client"
	"github.com/NVIDIA/appstack/pkg/k8s/workload"
	"github.com/NVIDIA/appstack/pkg/stack"
	"github.com/NVIDIA/appstack/pkg/storage"
)

// URN types of the nodes declared here.
const (
	ReferenceType   = "appstack:stack:Reference"
	FeatureFlagType = "appstack:appconfig:FeatureFlag"
)

// Options are the collaborators of a plan. Zero values select the real
// implementations.
type Options struct {
	// Loader reads the referenced deployment's outputs.
	Loader stack.Loader
	// Clients builds the target cluster client from the referenced kubeconfig.
	Clients client.Factory
	// Backend overrides the storage backend chosen by settings.
	Backend storage.Backend
	// FlagStores opens the configuration store for the feature flag.
	FlagStores featureflag.StoreFactory
	// Content overrides the artifact read from settings.
	Content *storage.Content
	// Now is the clock for signed URL windows.
	Now func() time.Time
	// Preflight checks RBAC on the target namespace before applying.
	Preflight bool
}

// Plan is the declared deployment.
type Plan struct {
	Settings *stack.Settings
	Graph    *engine.Graph

	Platform *engine.Output[stack.PlatformOutputs]
	Runtime  *engine.Output[stack.RuntimeConfig]
	Artifact *storage.Location
	Workload *workload.Deployed
	// Service is the published service URL.
	Service *engine.Output[string]
}

// Build validates settings and declares the whole graph. Nothing remote is
// touched until the graph is run by an engine.
func Build(ctx context.Context, s *stack.Settings, opts Options) (*Plan, error) {
	if s == nil {
		return nil, cnserrors.New(cnserrors.ErrCodeInvalidConfig, "settings are required")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	backend := opts.Backend
	if backend == nil {
		var err error
		if backend, err = storage.New(ctx, s.Storage); err != nil {
			return nil, err
		}
	}
	clients := opts.Clients
	if clients == nil {
		clients = client.DefaultFactory
	}

	g := engine.NewGraph()
	p := &Plan{Settings: s, Graph: g}

	refURN := engine.NewURN(ReferenceType, s.PlatformStack)
	p.Platform = engine.NewOutput[stack.PlatformOutputs](refURN)
	g.Read(refURN, func(ctx context.Context) (engine.Change, error) {
		ref, err := stack.ReadReference(ctx, s.PlatformStack, opts.Loader)
		if err != nil {
			return engine.ChangeNone, err
		}
		out, err := stack.ResolvePlatform(s, ref)
		if err != nil {
			return engine.ChangeNone, err
		}
		slog.Debug("platform outputs resolved", "stack", ref.Name(),
			"namespace", out.Namespace, "configSource", out.Runtime.Source)
		p.Platform.Resolve(out)
		return engine.ChangeRead, nil
	}, engine.Owns(p.Platform))

	p.Runtime = engine.Apply(p.Platform, func(po stack.PlatformOutputs) (stack.RuntimeConfig, error) {
		return po.Runtime, nil
	})
	namespace := engine.Apply(p.Platform, func(po stack.PlatformOutputs) (string, error) {
		return po.Namespace, nil
	})
	kube := engine.Apply(p.Platform, func(po stack.PlatformOutputs) (client.Interface, error) {
		cs, err := clients(po.Kubeconfig)
		if err != nil {
			return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidConfig,
				"failed to build kubernetes client from referenced kubeconfig", err)
		}
		return cs, nil
	})
	env := engine.Apply(p.Runtime, func(rc stack.RuntimeConfig) (map[string]string, error) {
		return map[string]string{s.Workload.ConfigEnvVar: rc.ConnectionString}, nil
	})

	p.Artifact = storage.Declare(g, storage.Declaration{
		Backend:  backend,
		Settings: s.Storage,
		Content:  opts.Content,
		Now:      opts.Now,
	})

	if !s.FeatureFlag.Disabled {
		declareFeatureFlag(g, s.FeatureFlag, p.Runtime, featureflag.NewRegistrar(opts.FlagStores))
	}

	p.Workload = workload.Declare(g, workload.Declaration{
		Settings:    s.Workload,
		Structure:   s.Structure,
		Client:      kube,
		Namespace:   namespace,
		ArtifactURL: p.Artifact.URL,
		Env:         env,
		Preflight:   opts.Preflight,
	})

	p.Service = engine.Format(s.Outputs.ServiceFormat, p.Workload.Address)
	g.Export(stack.OutputService, p.Service)

	return p, nil
}

// declareFeatureFlag adds the flag as an unmanaged effect: it is created once
// and never updated or deleted by this tool.
func declareFeatureFlag(g *engine.Graph, f stack.FeatureFlagSettings, rc *engine.Output[stack.RuntimeConfig], r *featureflag.Registrar) {
	flag := featureflag.Flag{Name: f.Name, Enabled: f.Enabled, Label: f.Label}
	g.Effect(engine.NewURN(FeatureFlagType, f.Name), func(ctx context.Context) (engine.Change, error) {
		cfg, err := rc.Await(ctx)
		if err != nil {
			return engine.ChangeNone, err
		}
		created, err := r.Ensure(ctx, cfg.ConnectionString, flag)
		if err != nil {
			return engine.ChangeNone, err
		}
		if created {
			return engine.ChangeCreate, nil
		}
		return engine.ChangeSame, nil
	}, engine.DependsOn(rc))
}
