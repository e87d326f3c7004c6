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
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/NVIDIA/appstack/pkg/engine"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/k8s/client"
	"github.com/NVIDIA/appstack/pkg/stack"
)

// URN types of the workload nodes.
const (
	AppType         = "appstack:k8s:App"
	DeploymentType  = "appstack:k8s:Deployment"
	ServiceType     = "appstack:k8s:Service"
	PermissionsType = "appstack:k8s:Permissions"
)

// Declaration configures Declare. The deferred inputs come from the platform
// read and the storage nodes.
type Declaration struct {
	Settings  stack.WorkloadSettings
	Structure stack.Structure

	Client      *engine.Output[client.Interface]
	Namespace   *engine.Output[string]
	ArtifactURL *engine.Output[string]
	// Env is merged over Settings.Env. Optional.
	Env *engine.Output[map[string]string]

	// Preflight adds a read node that checks the server version and RBAC
	// before anything is applied.
	Preflight bool
}

// Deployed is the declared workload.
type Deployed struct {
	// Component is the App grouping node, empty for the inline structure.
	Component  engine.URN
	Deployment *engine.Output[string]
	Service    *engine.Output[string]
	// Address is the external load balancer IP or hostname.
	Address *engine.Output[string]
}

// Declare registers the Deployment and Service on g. With the component
// structure both are children of one App node; inline registers them at the
// root. The objects built are identical either way.
func Declare(g *engine.Graph, d Declaration, opts ...engine.Option) *Deployed {
	w := d.Settings
	depURN := engine.NewURN(DeploymentType, w.DeploymentName)
	svcURN := engine.NewURN(ServiceType, w.ServiceName)

	out := &Deployed{
		Deployment: engine.NewOutput[string](depURN),
		Service:    engine.NewOutput[string](svcURN),
		Address:    engine.NewOutput[string](svcURN),
	}

	base := slices.Clone(opts)
	if d.Structure != stack.StructureInline {
		out.Component = engine.NewURN(AppType, w.ComponentName)
		g.Component(out.Component, base...)
		base = []engine.Option{engine.Parent(out.Component)}
	}

	r := &resolver{decl: d}
	depDeps := []engine.Input{d.Client, d.Namespace, d.ArtifactURL}
	if d.Env != nil {
		depDeps = append(depDeps, d.Env)
	}

	if d.Preflight {
		checked := engine.NewOutput[bool](engine.NewURN(PermissionsType, w.DeploymentName))
		g.Read(engine.NewURN(PermissionsType, w.DeploymentName), func(ctx context.Context) (engine.Change, error) {
			app, err := r.app(ctx, false)
			if err != nil {
				return engine.ChangeNone, err
			}
			if _, err := app.CheckServerVersion(""); err != nil {
				return engine.ChangeNone, err
			}
			if _, err := app.CheckPermissions(ctx); err != nil {
				return engine.ChangeNone, err
			}
			checked.Resolve(true)
			return engine.ChangeRead, nil
		}, with(base, engine.DependsOn(d.Client, d.Namespace), engine.Owns(checked))...)
		depDeps = append(depDeps, checked)
	}

	g.Resource(depURN, &deploymentResource{r: r, out: out.Deployment},
		with(base, engine.DependsOn(depDeps...), engine.Owns(out.Deployment))...)

	g.Resource(svcURN, &serviceResource{r: r, addressTimeout: w.AddressTimeout, name: out.Service, addr: out.Address},
		with(base, engine.DependsOn(d.Client, d.Namespace, out.Deployment),
			engine.Owns(out.Service, out.Address))...)

	return out
}

func with(opts []engine.Option, extra ...engine.Option) []engine.Option {
	return append(slices.Clone(opts), extra...)
}

// resolver turns the deferred inputs into an App once they are available.
type resolver struct {
	decl Declaration
}

// app awaits the inputs. Without the artifact only client and namespace are
// awaited, which is all deletion needs.
func (r *resolver) app(ctx context.Context, withArtifact bool) (*App, error) {
	cs, err := r.decl.Client.Await(ctx)
	if err != nil {
		return nil, err
	}
	if cs == nil {
		return nil, cnserrors.New(cnserrors.ErrCodeInternal, "kubernetes client resolved to nil")
	}
	ns, err := r.decl.Namespace.Await(ctx)
	if err != nil {
		return nil, err
	}

	var env map[string]string
	var url string
	if withArtifact {
		if r.decl.Env != nil {
			if env, err = r.decl.Env.Await(ctx); err != nil {
				return nil, err
			}
		}
		if url, err = r.decl.ArtifactURL.Await(ctx); err != nil {
			return nil, err
		}
	}

	args := ArgsFromSettings(r.decl.Settings, env)
	args.Namespace = ns
	args.ArtifactURL = url
	return New(cs, args), nil
}

type deploymentResource struct {
	r   *resolver
	out *engine.Output[string]
}

func (d *deploymentResource) Apply(ctx context.Context) (engine.Change, error) {
	app, err := d.r.app(ctx, true)
	if err != nil {
		return engine.ChangeNone, err
	}
	change, err := app.EnsureDeployment(ctx)
	if err != nil {
		return change, err
	}
	d.out.Resolve(fmt.Sprintf("%s/%s", app.args.Namespace, app.args.Name))
	return change, nil
}

func (d *deploymentResource) Delete(ctx context.Context) error {
	app, err := d.r.app(ctx, false)
	if err != nil {
		return err
	}
	return app.DeleteDeployment(ctx)
}

type serviceResource struct {
	r              *resolver
	addressTimeout time.Duration
	name           *engine.Output[string]
	addr           *engine.Output[string]
}

func (s *serviceResource) Apply(ctx context.Context) (engine.Change, error) {
	app, err := s.r.app(ctx, false)
	if err != nil {
		return engine.ChangeNone, err
	}
	change, err := app.EnsureService(ctx)
	if err != nil {
		return change, err
	}
	addr, err := app.WaitForAddress(ctx, s.addressTimeout)
	if err != nil {
		return change, err
	}
	s.name.Resolve(fmt.Sprintf("%s/%s", app.args.Namespace, app.args.ServiceName))
	s.addr.Resolve(addr)
	return change, nil
}

func (s *serviceResource) Delete(ctx context.Context) error {
	app, err := s.r.app(ctx, false)
	if err != nil {
		return err
	}
	return app.DeleteService(ctx)
}
