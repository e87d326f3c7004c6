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
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
)

func TestGrantsPublicRead(t *testing.T) {
	own, err := publicReadPolicy("myblob-java")
	require.NoError(t, err)
	assert.True(t, grantsPublicRead(own, "myblob-java"))
	assert.False(t, grantsPublicRead(own, "other"), "resource must match the bucket")

	normalized := `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},` +
		`"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::myblob-java/*"]}]}`
	assert.True(t, grantsPublicRead(normalized, "myblob-java"), "servers rewrite the principal")

	deny := `{"Statement":[{"Effect":"Deny","Principal":"*","Action":"s3:GetObject","Resource":"arn:aws:s3:::myblob-java/*"}]}`
	assert.False(t, grantsPublicRead(deny, "myblob-java"))
	assert.False(t, grantsPublicRead("", "myblob-java"))
	assert.False(t, grantsPublicRead("{", "myblob-java"))
}

func TestS3ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
		code     cnserrors.ErrorCode
	}{
		{"typed no such key", &types.NoSuchKey{}, true, cnserrors.ErrCodeNotFound},
		{"typed not found", fmt.Errorf("head: %w", &types.NotFound{}), true, cnserrors.ErrCodeNotFound},
		{"api code", &smithy.GenericAPIError{Code: "NoSuchBucket"}, true, cnserrors.ErrCodeNotFound},
		{"taken bucket", &smithy.GenericAPIError{Code: "BucketAlreadyExists"}, false, cnserrors.ErrCodeAlreadyExists},
		{"throttled", &smithy.GenericAPIError{Code: "SlowDown"}, false, cnserrors.ErrCodeUnavailable},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false, cnserrors.ErrCodeInternal},
		{"deadline", context.DeadlineExceeded, false, cnserrors.ErrCodeTimeout},
		{"network", errors.New("connection refused"), false, cnserrors.ErrCodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, isS3NotFound(tt.err))
			assert.Equal(t, tt.code, s3Code(tt.err))
		})
	}

	assert.True(t, isBucketAlreadyOwnedByYou(&types.BucketAlreadyOwnedByYou{}))
	assert.True(t, isBucketAlreadyOwnedByYou(&smithy.GenericAPIError{Code: "BucketAlreadyOwnedByYou"}))
	assert.False(t, isBucketAlreadyOwnedByYou(&smithy.GenericAPIError{Code: "BucketAlreadyExists"}),
		"a bucket owned by someone else is an error")
}

func TestMinioErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code cnserrors.ErrorCode
	}{
		{"missing key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, cnserrors.ErrCodeNotFound},
		{"missing bucket", minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, cnserrors.ErrCodeNotFound},
		{"taken", minio.ErrorResponse{Code: "BucketAlreadyExists", StatusCode: http.StatusConflict}, cnserrors.ErrCodeAlreadyExists},
		{"unavailable", minio.ErrorResponse{Code: "XMinioServerNotInitialized", StatusCode: http.StatusServiceUnavailable}, cnserrors.ErrCodeUnavailable},
		{"denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, cnserrors.ErrCodeInternal},
		{"deadline", context.DeadlineExceeded, cnserrors.ErrCodeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, minioCode(tt.err))
		})
	}
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "minio.local:9000", stripScheme("https://minio.local:9000/"))
	assert.Equal(t, "minio.local:9000", stripScheme("http://minio.local:9000"))
}

func TestS3PublicURL(t *testing.T) {
	b := &S3{}
	b.settings.Region = "eu-west-1"
	assert.Equal(t, "https://myblob-java.s3.eu-west-1.amazonaws.com/app%20v1.jar", b.publicURL("myblob-java", "app v1.jar"))

	b.settings.Endpoint = "http://localhost:9000/"
	assert.Equal(t, "http://localhost:9000/myblob-java/app.jar", b.publicURL("myblob-java", "app.jar"))
}
