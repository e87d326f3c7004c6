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

package storage

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/NVIDIA/appstack/pkg/engine"
	"github.com/NVIDIA/appstack/pkg/stack"
)

// URN types of the storage nodes.
const (
	AccountType   = "appstack:storage:Account"
	ContainerType = "appstack:storage:Container"
	BlobType      = "appstack:storage:Blob"
)

// Location is the declared artifact: account, container and blob names once
// provisioned, and the URL the workload fetches the artifact from.
type Location struct {
	Account   *engine.Output[string]
	Container *engine.Output[string]
	Blob      *engine.Output[string]
	URL       *engine.Output[string]
}

// Declaration configures Declare.
type Declaration struct {
	Backend  Backend
	Settings stack.StorageSettings
	// Content, when set, is uploaded instead of reading Settings.ArtifactPath.
	Content *Content
	// Now is the clock for signed URL windows. Defaults to time.Now.
	Now func() time.Time
}

// Declare registers account, container and blob on g, chained by their
// outputs, and returns the artifact location. opts apply to every node.
func Declare(g *engine.Graph, d Declaration, opts ...engine.Option) *Location {
	s := d.Settings
	now := d.Now
	if now == nil {
		now = time.Now
	}

	acctURN := engine.NewURN(AccountType, s.AccountName)
	ctrURN := engine.NewURN(ContainerType, s.ContainerName)
	blobURN := engine.NewURN(BlobType, s.BlobName)

	loc := &Location{
		Account:   engine.NewOutput[string](acctURN),
		Container: engine.NewOutput[string](ctrURN),
		Blob:      engine.NewOutput[string](blobURN),
		URL:       engine.NewOutput[string](blobURN),
	}

	g.Resource(acctURN, &accountResource{backend: d.Backend, name: s.AccountName, out: loc.Account},
		with(opts, engine.Owns(loc.Account))...)

	g.Resource(ctrURN, &containerResource{
		backend:    d.Backend,
		name:       s.ContainerName,
		publicRead: s.PublicRead,
		out:        loc.Container,
	}, with(opts, engine.DependsOn(loc.Account), engine.Owns(loc.Container))...)

	g.Resource(blobURN, &blobResource{
		backend:   d.Backend,
		container: s.ContainerName,
		name:      s.BlobName,
		path:      s.ArtifactPath,
		content:   d.Content,
		access: func() Access {
			return SigningWindow(now(), s.PublicRead, s.SignedURLTTL)
		},
		blob: loc.Blob,
		url:  loc.URL,
	}, with(opts, engine.DependsOn(loc.Container), engine.Owns(loc.Blob, loc.URL))...)

	return loc
}

func with(opts []engine.Option, extra ...engine.Option) []engine.Option {
	return append(slices.Clone(opts), extra...)
}

type accountResource struct {
	backend Backend
	name    string
	out     *engine.Output[string]
}

func (r *accountResource) Apply(ctx context.Context) (engine.Change, error) {
	change, err := r.backend.EnsureAccount(ctx)
	if err != nil {
		return change, err
	}
	r.out.Resolve(r.name)
	return change, nil
}

func (r *accountResource) Delete(ctx context.Context) error {
	return r.backend.DeleteAccount(ctx)
}

type containerResource struct {
	backend    Backend
	name       string
	publicRead bool
	out        *engine.Output[string]
}

func (r *containerResource) Apply(ctx context.Context) (engine.Change, error) {
	change, err := r.backend.EnsureContainer(ctx, r.name, r.publicRead)
	if err != nil {
		return change, err
	}
	r.out.Resolve(r.name)
	return change, nil
}

func (r *containerResource) Delete(ctx context.Context) error {
	return r.backend.DeleteContainer(ctx, r.name)
}

type blobResource struct {
	backend   Backend
	container string
	name      string
	path      string
	content   *Content
	access    func() Access

	blob *engine.Output[string]
	url  *engine.Output[string]
}

func (r *blobResource) Apply(ctx context.Context) (engine.Change, error) {
	content := r.content
	if content == nil {
		var err error
		if content, err = LoadContent(ctx, r.path); err != nil {
			return engine.ChangeNone, err
		}
	}

	change, err := r.backend.PutBlob(ctx, r.container, r.name, content)
	if err != nil {
		return change, err
	}
	slog.Debug("artifact stored", "backend", r.backend.Name(), "container", r.container,
		"blob", r.name, "sha256", content.SHA256, "change", change)

	u, err := r.backend.BlobURL(ctx, r.container, r.name, r.access())
	if err != nil {
		return engine.ChangeNone, err
	}
	r.blob.Resolve(r.name)
	r.url.Resolve(u)
	return change, nil
}

func (r *blobResource) Delete(ctx context.Context) error {
	return r.backend.DeleteBlob(ctx, r.container, r.name)
}
