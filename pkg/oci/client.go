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

package oci

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"

	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
)

// ArtifactType is the manifest artifact type of pushed blobs.
const ArtifactType = "application/vnd.nvidia.appstack.artifact"

// Blob is a single file pushed as a one-layer artifact.
type Blob struct {
	// Name is recorded as the layer title.
	Name      string
	MediaType string
	Data      []byte
	// Created, when set, pins the manifest creation annotation so repeated
	// pushes of the same content produce the same manifest.
	Created string
}

// PushResult describes a pushed artifact.
type PushResult struct {
	// Digest is the manifest digest.
	Digest string
	// Layer is the descriptor of the blob itself.
	Layer ociv1.Descriptor
	// Reference is registry/repository:tag.
	Reference string
}

// Client pushes, inspects and deletes tagged single-blob artifacts in one repository.
type Client struct {
	ref       *Reference
	target    oras.Target
	plainHTTP bool
}

// NewClient connects to the repository using Docker credentials when available.
func NewClient(ref *Reference, plainHTTP, insecureTLS bool) (*Client, error) {
	repo, err := remote.NewRepository(ref.Name())
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidConfig, "failed to initialize remote repository", err)
	}
	repo.PlainHTTP = plainHTTP
	repo.Client = createAuthClient(plainHTTP, insecureTLS)
	return &Client{ref: ref, target: repo, plainHTTP: plainHTTP}, nil
}

// NewClientWithTarget uses an existing target, such as an in-memory store.
func NewClientWithTarget(ref *Reference, target oras.Target) *Client {
	return &Client{ref: ref, target: target}
}

// Reference returns the repository this client writes to.
func (c *Client) Reference() *Reference {
	return c.ref
}

// Push packs b into an OCI 1.1 manifest and copies it to the repository under tag.
func (c *Client) Push(ctx context.Context, tag string, b Blob) (*PushResult, error) {
	if tag == "" {
		return nil, cnserrors.New(cnserrors.ErrCodeInvalidConfig, "tag is required to push OCI artifact")
	}
	mediaType := b.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	store := memory.New()
	layer, err := oras.PushBytes(ctx, store, mediaType, b.Data)
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to stage blob", err)
	}
	if b.Name != "" {
		layer.Annotations = map[string]string{ociv1.AnnotationTitle: b.Name}
	}

	packOpts := oras.PackManifestOptions{Layers: []ociv1.Descriptor{layer}}
	if b.Created != "" {
		packOpts.ManifestAnnotations = map[string]string{ociv1.AnnotationCreated: b.Created}
	}
	manifestDesc, err := oras.PackManifest(ctx, store, oras.PackManifestVersion1_1, ArtifactType, packOpts)
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to pack manifest", err)
	}
	if err := store.Tag(ctx, manifestDesc, tag); err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to tag manifest in local store", err)
	}

	desc, err := oras.Copy(ctx, store, tag, c.target, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, cnserrors.WrapWithContext(cnserrors.ErrCodeUnavailable, "failed to push artifact to registry", err,
			map[string]any{"repository": c.ref.Name(), "tag": tag})
	}
	slog.Debug("artifact pushed", "reference", c.ref.WithTag(tag).ImageReference(), "digest", desc.Digest.String())

	return &PushResult{
		Digest:    desc.Digest.String(),
		Layer:     layer,
		Reference: c.ref.WithTag(tag).ImageReference(),
	}, nil
}

// Layer returns the first layer of the manifest tagged tag. A missing tag is
// reported as NOT_FOUND.
func (c *Client) Layer(ctx context.Context, tag string) (ociv1.Descriptor, error) {
	desc, err := c.target.Resolve(ctx, tag)
	if err != nil {
		return ociv1.Descriptor{}, classify(err, "resolve", tag)
	}
	raw, err := content.FetchAll(ctx, c.target, desc)
	if err != nil {
		return ociv1.Descriptor{}, classify(err, "fetch manifest", tag)
	}
	var manifest ociv1.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return ociv1.Descriptor{}, cnserrors.Wrap(cnserrors.ErrCodeInternal,
			fmt.Sprintf("manifest %s is not an OCI image manifest", tag), err)
	}
	if len(manifest.Layers) == 0 {
		return ociv1.Descriptor{}, cnserrors.New(cnserrors.ErrCodeNotFound,
			fmt.Sprintf("manifest %s has no layers", tag))
	}
	return manifest.Layers[0], nil
}

// BlobURL is the registry API URL of a blob. It is fetchable without
// credentials only when the repository allows anonymous pulls.
func (c *Client) BlobURL(layer ociv1.Descriptor) string {
	scheme := "https"
	if c.plainHTTP {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/v2/%s/blobs/%s", scheme, c.ref.Registry, c.ref.Repository, layer.Digest)
}

// Delete removes the manifest tagged tag. Targets that cannot delete and
// missing tags are not errors.
func (c *Client) Delete(ctx context.Context, tag string) error {
	deleter, ok := c.target.(content.Deleter)
	if !ok {
		slog.Debug("target does not support deletion", "repository", c.ref.Name())
		return nil
	}
	desc, err := c.target.Resolve(ctx, tag)
	if err != nil {
		if errors.Is(err, errdef.ErrNotFound) {
			return nil
		}
		return classify(err, "resolve", tag)
	}
	if err := deleter.Delete(ctx, desc); err != nil && !errors.Is(err, errdef.ErrNotFound) {
		return classify(err, "delete", tag)
	}
	return nil
}

func classify(err error, op, tag string) error {
	code := cnserrors.ErrCodeUnavailable
	switch {
	case errors.Is(err, errdef.ErrNotFound):
		code = cnserrors.ErrCodeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		code = cnserrors.ErrCodeTimeout
	}
	return cnserrors.Wrap(code, fmt.Sprintf("failed to %s %s", op, tag), err)
}

// createAuthClient creates an HTTP client with optional TLS configuration
// and Docker credential support.
func createAuthClient(plainHTTP, insecureTLS bool) *auth.Client {
	credStore, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		slog.Debug("docker credential store unavailable, using anonymous access", "error", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !plainHTTP && insecureTLS {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec
		}
	}

	client := &auth.Client{
		Client: &http.Client{Transport: transport},
		Cache:  auth.NewCache(),
	}
	if credStore != nil {
		client.Credential = credentials.Credential(credStore)
	}
	return client
}
