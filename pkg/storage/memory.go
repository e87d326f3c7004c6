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
	"net/url"
	"strconv"
	"sync"

	"github.com/NVIDIA/appstack/pkg/engine"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
)

// MemoryBaseURL prefixes URLs handed out by the memory backend.
const MemoryBaseURL = "memory://appstack"

type memoryBlob struct {
	data     []byte
	metadata map[string]string
	md5      []byte
}

type memoryContainer struct {
	public bool
	blobs  map[string]*memoryBlob
}

// Memory is an in-process backend for tests and previews.
type Memory struct {
	mu         sync.Mutex
	account    bool
	containers map[string]*memoryContainer
	puts       int
}

// NewMemory returns an empty memory backend.
func NewMemory() *Memory {
	return &Memory{containers: make(map[string]*memoryContainer)}
}

// Name implements Backend.
func (m *Memory) Name() string { return "memory" }

// EnsureAccount implements Backend.
func (m *Memory) EnsureAccount(ctx context.Context) (engine.Change, error) {
	if err := ctx.Err(); err != nil {
		return engine.ChangeNone, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existed := m.account
	m.account = true
	return changeFor(existed, true), nil
}

// EnsureContainer implements Backend.
func (m *Memory) EnsureContainer(ctx context.Context, container string, publicRead bool) (engine.Change, error) {
	if err := ctx.Err(); err != nil {
		return engine.ChangeNone, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.account {
		return engine.ChangeNone, cnserrors.New(cnserrors.ErrCodeNotFound, "memory: account does not exist")
	}
	c, ok := m.containers[container]
	if !ok {
		m.containers[container] = &memoryContainer{public: publicRead, blobs: make(map[string]*memoryBlob)}
		return engine.ChangeCreate, nil
	}
	same := c.public == publicRead
	c.public = publicRead
	return changeFor(true, same), nil
}

// PutBlob implements Backend.
func (m *Memory) PutBlob(ctx context.Context, container, name string, content *Content) (engine.Change, error) {
	if err := ctx.Err(); err != nil {
		return engine.ChangeNone, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[container]
	if !ok {
		return engine.ChangeNone, cnserrors.New(cnserrors.ErrCodeNotFound,
			fmt.Sprintf("memory: container %s does not exist", container))
	}

	prev, existed := c.blobs[name]
	if existed && content.Matches(prev.metadata, prev.md5) {
		return engine.ChangeSame, nil
	}
	c.blobs[name] = &memoryBlob{
		data:     append([]byte(nil), content.Data...),
		metadata: map[string]string{DigestMetadataKey: content.SHA256},
		md5:      content.MD5,
	}
	m.puts++
	return changeFor(existed, false), nil
}

// BlobURL implements Backend. Signed URLs carry the expiry as a query parameter.
func (m *Memory) BlobURL(ctx context.Context, container, name string, access Access) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[container]
	if !ok || c.blobs[name] == nil {
		return "", cnserrors.New(cnserrors.ErrCodeNotFound,
			fmt.Sprintf("memory: blob %s/%s does not exist", container, name))
	}

	u := fmt.Sprintf("%s/%s/%s", MemoryBaseURL, url.PathEscape(container), url.PathEscape(name))
	if access.PublicRead {
		return u, nil
	}
	return u + "?se=" + strconv.FormatInt(access.Expiry.Unix(), 10), nil
}

// DeleteBlob implements Backend.
func (m *Memory) DeleteBlob(_ context.Context, container, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.containers[container]; ok {
		delete(c.blobs, name)
	}
	return nil
}

// DeleteContainer implements Backend.
func (m *Memory) DeleteContainer(_ context.Context, container string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.containers, container)
	return nil
}

// DeleteAccount implements Backend.
func (m *Memory) DeleteAccount(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = false
	m.containers = make(map[string]*memoryContainer)
	return nil
}

// Blob returns a copy of a stored blob's content.
func (m *Memory) Blob(container, name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[container]
	if !ok {
		return nil, false
	}
	b, ok := c.blobs[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b.data...), true
}

// HasAccount reports whether the account exists.
func (m *Memory) HasAccount() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.account
}

// Puts counts uploads that changed stored content.
func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
