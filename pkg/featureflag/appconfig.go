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
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azappconfig"

	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
)

// AppConfigStore is a Store backed by Azure App Configuration.
type AppConfigStore struct {
	client *azappconfig.Client
}

// NewAppConfigStore opens an App Configuration store from its connection string.
func NewAppConfigStore(connectionString string) (Store, error) {
	c, err := azappconfig.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidConfig, "invalid configuration store connection string", err)
	}
	return &AppConfigStore{client: c}, nil
}

// Add creates the setting with If-None-Match semantics.
func (s *AppConfigStore) Add(ctx context.Context, key, label, contentType, value string) error {
	opts := &azappconfig.AddSettingOptions{ContentType: to.Ptr(contentType)}
	if label != "" {
		opts.Label = to.Ptr(label)
	}
	_, err := s.client.AddSetting(ctx, key, to.Ptr(value), opts)
	return classify(err, key)
}

// Get returns the setting value.
func (s *AppConfigStore) Get(ctx context.Context, key, label string) (string, error) {
	var opts *azappconfig.GetSettingOptions
	if label != "" {
		opts = &azappconfig.GetSettingOptions{Label: to.Ptr(label)}
	}
	resp, err := s.client.GetSetting(ctx, key, opts)
	if err != nil {
		return "", classify(err, key)
	}
	if resp.Value == nil {
		return "", nil
	}
	return *resp.Value, nil
}

// classify maps service status codes onto error codes.
func classify(err error, key string) error {
	if err == nil {
		return nil
	}
	var re *azcore.ResponseError
	if !errors.As(err, &re) {
		return cnserrors.Wrap(cnserrors.ErrCodeUnavailable, fmt.Sprintf("configuration store request for %s failed", key), err)
	}
	switch re.StatusCode {
	case http.StatusPreconditionFailed, http.StatusConflict:
		return cnserrors.Wrap(cnserrors.ErrCodeAlreadyExists, fmt.Sprintf("setting %s already exists", key), err)
	case http.StatusNotFound:
		return cnserrors.Wrap(cnserrors.ErrCodeNotFound, fmt.Sprintf("setting %s not found", key), err)
	default:
		return cnserrors.Wrap(cnserrors.ErrCodeInternal, fmt.Sprintf("configuration store rejected %s", key), err)
	}
}
