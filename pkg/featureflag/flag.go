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
	"encoding/json"
	"fmt"
	"regexp"
)

const (
	// KeyPrefix is the reserved key prefix for feature flags in a configuration store.
	KeyPrefix = ".appconfig.featureflag/"
	// ContentType marks a setting as a feature flag.
	ContentType = "application/vnd.microsoft.appconfig.ff+json;charset=utf-8"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Flag is a boolean feature flag.
type Flag struct {
	Name        string
	Enabled     bool
	Label       string
	Description string
}

// Key returns the store key of the flag.
func (f Flag) Key() string {
	return KeyPrefix + f.Name
}

// Validate checks the flag name.
func (f Flag) Validate() error {
	if !namePattern.MatchString(f.Name) {
		return fmt.Errorf("invalid feature flag name %q", f.Name)
	}
	return nil
}

type flagValue struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Enabled     bool       `json:"enabled"`
	Conditions  conditions `json:"conditions"`
}

type conditions struct {
	ClientFilters []json.RawMessage `json:"client_filters"`
}

// Value returns the JSON document stored under Key.
func (f Flag) Value() (string, error) {
	b, err := json.Marshal(flagValue{
		ID:          f.Name,
		Description: f.Description,
		Enabled:     f.Enabled,
		Conditions:  conditions{ClientFilters: []json.RawMessage{}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode feature flag %s: %w", f.Name, err)
	}
	return string(b), nil
}

// Parse decodes a stored flag value.
func Parse(value string) (Flag, error) {
	var v flagValue
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		return Flag{}, fmt.Errorf("failed to decode feature flag: %w", err)
	}
	return Flag{Name: v.ID, Enabled: v.Enabled, Description: v.Description}, nil
}
