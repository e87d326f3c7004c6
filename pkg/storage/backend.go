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
	"fmt"
	"strings"
	"time"

	"github.com/NVIDIA/appstack/pkg/engine"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/stack"
)

// Backend provisions the account, container and blob holding the artifact.
// Ensure and Put methods are idempotent and report what they changed.
// Delete methods treat an absent object as deleted.
type Backend interface {
	// Name identifies the backend in logs and node URNs.
	Name() string

	EnsureAccount(ctx context.Context) (engine.Change, error)
	EnsureContainer(ctx context.Context, container string, publicRead bool) (engine.Change, error)
	PutBlob(ctx context.Context, container, name string, content *Content) (engine.Change, error)

	// BlobURL returns the URL the workload downloads the blob from.
	BlobURL(ctx context.Context, container, name string, access Access) (string, error)

	DeleteBlob(ctx context.Context, container, name string) error
	DeleteContainer(ctx context.Context, container string) error
	DeleteAccount(ctx context.Context) error
}

// Access describes how the workload reads the blob. Without PublicRead the
// URL is signed for the window [Start, Expiry).
type Access struct {
	PublicRead bool
	Start      time.Time
	Expiry     time.Time
}

// maxSigningGranularity bounds how long one signing window is reused.
const maxSigningGranularity = 24 * time.Hour

// SigningWindow aligns a signed URL's validity to a fixed grid so every
// evaluation inside one grid cell signs the same URL. The URL stays valid for
// at least half of ttl after now.
func SigningWindow(now time.Time, publicRead bool, ttl time.Duration) Access {
	if publicRead {
		return Access{PublicRead: true}
	}
	granularity := min(ttl/2, maxSigningGranularity)
	if granularity <= 0 {
		granularity = time.Second
	}
	start := now.UTC().Truncate(granularity)
	return Access{Start: start, Expiry: start.Add(ttl)}
}

// TTL returns the signed lifetime of the window.
func (a Access) TTL() time.Duration {
	return a.Expiry.Sub(a.Start)
}

// New builds the backend selected by s.Backend.
func New(ctx context.Context, s stack.StorageSettings) (Backend, error) {
	switch s.Backend {
	case stack.BackendAzure:
		return NewAzure(ctx, s)
	case stack.BackendS3:
		return NewS3(ctx, s)
	case stack.BackendMinio:
		return NewMinio(s)
	case stack.BackendOCI:
		return NewOCI(s)
	case stack.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, cnserrors.NewWithContext(cnserrors.ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported storage backend %q", s.Backend),
			map[string]any{"supported": stack.SupportedBackends()})
	}
}

// BucketName derives the flat bucket name used by backends without an
// account level: lower-case, account and container joined by a dash.
func BucketName(account, container string) string {
	return strings.ToLower(account + "-" + container)
}

// changeFor maps the presence of a prior object and a content match to a change.
func changeFor(existed, same bool) engine.Change {
	switch {
	case !existed:
		return engine.ChangeCreate
	case same:
		return engine.ChangeSame
	default:
		return engine.ChangeUpdate
	}
}

func wrap(code cnserrors.ErrorCode, backend, op, target string, err error) error {
	return cnserrors.WrapWithContext(code,
		fmt.Sprintf("%s: failed to %s %s", backend, op, target), err,
		map[string]any{"backend": backend, "target": target})
}
