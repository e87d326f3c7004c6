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
	"strings"

	"github.com/NVIDIA/appstack/pkg/engine"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/oci"
	"github.com/NVIDIA/appstack/pkg/stack"
)

// OCI stores the artifact as a one-layer artifact in a registry repository,
// tagged after container and blob name. Registries create repositories on
// first push, so accounts and containers need no provisioning.
type OCI struct {
	client *oci.Client
}

// NewOCI connects to s.Repository.
func NewOCI(s stack.StorageSettings) (*OCI, error) {
	ref, err := oci.ParseReference(s.Repository)
	if err != nil {
		return nil, err
	}
	client, err := oci.NewClient(ref, s.Insecure, false)
	if err != nil {
		return nil, err
	}
	return &OCI{client: client}, nil
}

// NewOCIWithClient wraps an existing client.
func NewOCIWithClient(client *oci.Client) *OCI {
	return &OCI{client: client}
}

// Name implements Backend.
func (o *OCI) Name() string { return stack.BackendOCI }

// EnsureAccount implements Backend.
func (o *OCI) EnsureAccount(context.Context) (engine.Change, error) {
	return engine.ChangeSame, nil
}

// EnsureContainer implements Backend.
func (o *OCI) EnsureContainer(context.Context, string, bool) (engine.Change, error) {
	return engine.ChangeSame, nil
}

// PutBlob pushes the content unless the tag already points at the same layer digest.
func (o *OCI) PutBlob(ctx context.Context, container, name string, content *Content) (engine.Change, error) {
	tag := oci.TagFor(container, name)

	existed := true
	layer, err := o.client.Layer(ctx, tag)
	switch {
	case err == nil:
		if strings.EqualFold(layer.Digest.Encoded(), content.SHA256) {
			return engine.ChangeSame, nil
		}
	case cnserrors.IsCode(err, cnserrors.ErrCodeNotFound):
		existed = false
	default:
		return engine.ChangeNone, err
	}

	if _, err := o.client.Push(ctx, tag, oci.Blob{
		Name:      name,
		MediaType: content.ContentType,
		Data:      content.Data,
	}); err != nil {
		return engine.ChangeNone, err
	}
	return changeFor(existed, false), nil
}

// BlobURL returns the registry blob URL. Registries cannot sign URLs, so a
// private repository yields a URL the workload can only use with credentials.
func (o *OCI) BlobURL(ctx context.Context, container, name string, access Access) (string, error) {
	layer, err := o.client.Layer(ctx, oci.TagFor(container, name))
	if err != nil {
		return "", err
	}
	if !access.PublicRead {
		slog.Warn("oci blob URLs are not signed; the repository must allow anonymous pulls",
			"repository", o.client.Reference().Name())
	}
	return o.client.BlobURL(layer), nil
}

// DeleteBlob implements Backend.
func (o *OCI) DeleteBlob(ctx context.Context, container, name string) error {
	return o.client.Delete(ctx, oci.TagFor(container, name))
}

// DeleteContainer implements Backend.
func (o *OCI) DeleteContainer(context.Context, string) error {
	return nil
}

// DeleteAccount implements Backend.
func (o *OCI) DeleteAccount(context.Context) error {
	return nil
}
