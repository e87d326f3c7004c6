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

package featureflag

import (
	"context"
	"fmt"
	"sync"

	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
)

// MemoryStore is an in-process Store. Stores are shared per connection
// string through Factory, so separate registrations see each other's writes.
type MemoryStore struct {
	mu       sync.Mutex
	settings map[string]memorySetting
	adds     int
}

type memorySetting struct {
	contentType string
	value       string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: make(map[string]memorySetting)}
}

func memoryKey(key, label string) string {
	return key + "\x00" + label
}

// Add implements Store.
func (m *MemoryStore) Add(ctx context.Context, key, label, contentType, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adds++
	k := memoryKey(key, label)
	if _, ok := m.settings[k]; ok {
		return cnserrors.New(cnserrors.ErrCodeAlreadyExists, fmt.Sprintf("setting %s already exists", key))
	}
	m.settings[k] = memorySetting{contentType: contentType, value: value}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, key, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[memoryKey(key, label)]
	if !ok {
		return "", cnserrors.New(cnserrors.ErrCodeNotFound, fmt.Sprintf("setting %s not found", key))
	}
	return s.value, nil
}

// Set overwrites a setting, as an operator would from outside the plan.
func (m *MemoryStore) Set(key, label, contentType, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[memoryKey(key, label)] = memorySetting{contentType: contentType, value: value}
}

// Adds returns how many Add calls the store received.
func (m *MemoryStore) Adds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adds
}

// MemoryFactory hands out one MemoryStore per connection string.
type MemoryFactory struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemoryFactory creates a MemoryFactory.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{stores: make(map[string]*MemoryStore)}
}

// Open implements StoreFactory.
func (f *MemoryFactory) Open(connectionString string) (Store, error) {
	return f.Store(connectionString), nil
}

// Store returns the store for connectionString, creating it on first use.
func (f *MemoryFactory) Store(connectionString string) *MemoryStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stores[connectionString]
	if !ok {
		s = NewMemoryStore()
		f.stores[connectionString] = s
	}
	return s
}
