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
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/NVIDIA/appstack/pkg/defaults"
	"github.com/NVIDIA/appstack/pkg/engine"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/stack"
)

// Minio stores the artifact on a MinIO server. Credentials come from
// MINIO_ACCESS_KEY/MINIO_SECRET_KEY or the AWS_* variables.
type Minio struct {
	settings stack.StorageSettings
	client   *minio.Client
}

// NewMinio connects to s.Endpoint; s.Insecure selects plain HTTP.
func NewMinio(s stack.StorageSettings) (*Minio, error) {
	endpoint := stripScheme(s.Endpoint)
	if endpoint == "" {
		return nil, cnserrors.New(cnserrors.ErrCodeInvalidConfig, "storage.endpoint is required for the minio backend")
	}
	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvMinio{},
		&credentials.EnvAWS{},
	})
	client, err := minio.New(endpoint, &minio.Options{
		Creds:     creds,
		Secure:    !s.Insecure,
		Region:    s.Region,
		Transport: newMinioTransport(),
	})
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidConfig, "failed to create minio client", err)
	}
	return &Minio{settings: s, client: client}, nil
}

func newMinioTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   defaults.HTTPConnectTimeout,
		KeepAlive: defaults.HTTPKeepAlive,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       defaults.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   defaults.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: defaults.HTTPExpectContinueTimeout,
	}
}

func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return strings.TrimSuffix(endpoint, "/")
}

// Name implements Backend.
func (m *Minio) Name() string { return stack.BackendMinio }

func (m *Minio) bucket(container string) string {
	return BucketName(m.settings.AccountName, container)
}

// EnsureAccount implements Backend. MinIO has no account level.
func (m *Minio) EnsureAccount(context.Context) (engine.Change, error) {
	return engine.ChangeSame, nil
}

// EnsureContainer implements Backend.
func (m *Minio) EnsureContainer(ctx context.Context, container string, publicRead bool) (engine.Change, error) {
	bucket := m.bucket(container)
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return engine.ChangeNone, wrap(minioCode(err), m.Name(), "check bucket", bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.settings.Region}); err != nil {
			return engine.ChangeNone, wrap(minioCode(err), m.Name(), "create bucket", bucket, err)
		}
	}

	current, err := m.client.GetBucketPolicy(ctx, bucket)
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchBucketPolicy" {
		return engine.ChangeNone, wrap(minioCode(err), m.Name(), "read policy of", bucket, err)
	}
	if grantsPublicRead(current, bucket) == publicRead {
		return changeFor(exists, true), nil
	}
	desired := ""
	if publicRead {
		if desired, err = publicReadPolicy(bucket); err != nil {
			return engine.ChangeNone, err
		}
	}
	if err := m.client.SetBucketPolicy(ctx, bucket, desired); err != nil {
		return engine.ChangeNone, wrap(minioCode(err), m.Name(), "set policy of", bucket, err)
	}
	return changeFor(exists, false), nil
}

// PutBlob implements Backend.
func (m *Minio) PutBlob(ctx context.Context, container, name string, content *Content) (engine.Change, error) {
	ctx, cancel := context.WithTimeout(ctx, defaults.StorageUploadTimeout)
	defer cancel()
	bucket := m.bucket(container)

	existed := true
	info, err := m.client.StatObject(ctx, bucket, name, minio.StatObjectOptions{})
	switch {
	case err == nil:
		if content.Matches(info.UserMetadata, nil) {
			return engine.ChangeSame, nil
		}
	case minio.ToErrorResponse(err).Code == "NoSuchKey":
		existed = false
	default:
		return engine.ChangeNone, wrap(minioCode(err), m.Name(), "stat object", name, err)
	}

	_, err = m.client.PutObject(ctx, bucket, name, bytes.NewReader(content.Data), content.Size(), minio.PutObjectOptions{
		ContentType:    content.ContentType,
		UserMetadata:   map[string]string{DigestMetadataKey: content.SHA256},
		SendContentMd5: true,
	})
	if err != nil {
		return engine.ChangeNone, wrap(minioCode(err), m.Name(), "upload object", name, err)
	}
	return changeFor(existed, false), nil
}

// BlobURL implements Backend. The minio presigner signs with the current
// time, so private URLs differ on every call.
func (m *Minio) BlobURL(ctx context.Context, container, name string, access Access) (string, error) {
	bucket := m.bucket(container)
	if access.PublicRead {
		u := *m.client.EndpointURL()
		u.Path = fmt.Sprintf("/%s/%s", bucket, name)
		return u.String(), nil
	}
	ttl := min(time.Until(access.Expiry), maxPresignTTL)
	if ttl <= 0 {
		return "", cnserrors.New(cnserrors.ErrCodeInvalidConfig, "minio: signed URL window already expired")
	}
	u, err := m.client.PresignedGetObject(ctx, bucket, name, ttl, nil)
	if err != nil {
		return "", wrap(cnserrors.ErrCodeInternal, m.Name(), "presign", name, err)
	}
	return u.String(), nil
}

// DeleteBlob implements Backend.
func (m *Minio) DeleteBlob(ctx context.Context, container, name string) error {
	bucket := m.bucket(container)
	err := m.client.RemoveObject(ctx, bucket, name, minio.RemoveObjectOptions{})
	if err == nil || isMinioNotFound(err) {
		return nil
	}
	return wrap(minioCode(err), m.Name(), "delete object", name, err)
}

// DeleteContainer implements Backend.
func (m *Minio) DeleteContainer(ctx context.Context, container string) error {
	bucket := m.bucket(container)
	err := m.client.RemoveBucket(ctx, bucket)
	if err == nil || isMinioNotFound(err) {
		return nil
	}
	return wrap(minioCode(err), m.Name(), "delete bucket", bucket, err)
}

// DeleteAccount implements Backend.
func (m *Minio) DeleteAccount(context.Context) error {
	return nil
}

func isMinioNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchBucket", "NoSuchKey":
		return true
	}
	return false
}

func minioCode(err error) cnserrors.ErrorCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return cnserrors.ErrCodeTimeout
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case isMinioNotFound(err):
		return cnserrors.ErrCodeNotFound
	case resp.Code == "BucketAlreadyExists":
		return cnserrors.ErrCodeAlreadyExists
	case resp.StatusCode == 0 || resp.StatusCode == http.StatusServiceUnavailable || resp.Code == "SlowDown":
		return cnserrors.ErrCodeUnavailable
	default:
		return cnserrors.ErrCodeInternal
	}
}
