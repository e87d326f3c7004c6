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
	"log/slog"

	"github.com/NVIDIA/appstack/pkg/defaults"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
)

// Store is the part of a configuration store the registrar writes to.
type Store interface {
	// Add creates a setting. It fails with ErrCodeAlreadyExists when the key
	// and label are already present, leaving the stored value unchanged.
	Add(ctx context.Context, key, label, contentType, value string) error
	// Get returns a setting's value, or ErrCodeNotFound.
	Get(ctx context.Context, key, label string) (string, error)
}

// StoreFactory opens a store from a connection string.
type StoreFactory func(connectionString string) (Store, error)

// Registrar ensures feature flags exist. It never overwrites a flag, so a
// value changed by operators survives re-runs.
type Registrar struct {
	open StoreFactory
}

// NewRegistrar creates a Registrar. A nil factory uses NewAppConfigStore.
func NewRegistrar(open StoreFactory) *Registrar {
	if open == nil {
		open = NewAppConfigStore
	}
	return &Registrar{open: open}
}

// Ensure adds flag unless it already exists. created reports whether this
// call wrote it. Any failure other than "already exists" is returned.
func (r *Registrar) Ensure(ctx context.Context, connectionString string, flag Flag) (created bool, err error) {
	if err := flag.Validate(); err != nil {
		return false, cnserrors.Wrap(cnserrors.ErrCodeInvalidConfig, "invalid feature flag", err)
	}

	store, err := r.open(connectionString)
	if err != nil {
		return false, fmt.Errorf("failed to open configuration store: %w", err)
	}

	value, err := flag.Value()
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaults.FeatureFlagTimeout)
	defer cancel()

	err = store.Add(ctx, flag.Key(), flag.Label, ContentType, value)
	switch {
	case err == nil:
		slog.Info("feature flag created", "flag", flag.Name, "enabled", flag.Enabled)
		return true, nil
	case cnserrors.IsCode(err, cnserrors.ErrCodeAlreadyExists):
		slog.Debug("feature flag already exists", "flag", flag.Name)
		return false, nil
	default:
		return false, fmt.Errorf("failed to add feature flag %s: %w", flag.Name, err)
	}
}

// Lookup reads a flag back from the store.
func (r *Registrar) Lookup(ctx context.Context, connectionString, name, label string) (Flag, error) {
	store, err := r.open(connectionString)
	if err != nil {
		return Flag{}, fmt.Errorf("failed to open configuration store: %w", err)
	}
	value, err := store.Get(ctx, Flag{Name: name}.Key(), label)
	if err != nil {
		return Flag{}, err
	}
	f, err := Parse(value)
	if err != nil {
		return Flag{}, err
	}
	f.Label = label
	return f, nil
}
