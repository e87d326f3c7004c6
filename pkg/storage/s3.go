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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/NVIDIA/appstack/pkg/defaults"
	"github.com/NVIDIA/appstack/pkg/engine"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/stack"
)

// maxPresignTTL is the longest lifetime SigV4 accepts for a presigned URL.
const maxPresignTTL = 7 * 24 * time.Hour

// S3 stores the artifact in an S3 bucket named after account and container.
// S3 has no account level; EnsureAccount and DeleteAccount are no-ops.
type S3 struct {
	settings stack.StorageSettings
	client   *s3.Client
	presign  *s3.PresignClient
}

// Static keys for s3-compatible endpoints that are outside the AWS credential chain.
const (
	envS3AccessKeyID     = "APPSTACK_S3_ACCESS_KEY_ID"
	envS3SecretAccessKey = "APPSTACK_S3_SECRET_ACCESS_KEY"
)

// NewS3 loads credentials from the default AWS chain, or from
// APPSTACK_S3_ACCESS_KEY_ID and APPSTACK_S3_SECRET_ACCESS_KEY when both are
// set. A non-empty endpoint selects an s3-compatible service with path-style
// addressing.
func NewS3(ctx context.Context, s stack.StorageSettings) (*S3, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(s.Region)}
	if id, secret := os.Getenv(envS3AccessKeyID), os.Getenv(envS3SecretAccessKey); id != "" && secret != "" {
		slog.Debug("using static s3 credentials", "endpoint", s.Endpoint)
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(id, secret, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeUnavailable, "failed to load AWS config", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{settings: s, client: client, presign: s3.NewPresignClient(client)}, nil
}

// Name implements Backend.
func (b *S3) Name() string { return stack.BackendS3 }

func (b *S3) bucket(container string) string {
	return BucketName(b.settings.AccountName, container)
}

// EnsureAccount implements Backend.
func (b *S3) EnsureAccount(context.Context) (engine.Change, error) {
	return engine.ChangeSame, nil
}

// EnsureContainer creates the bucket and sets or removes the public-read policy.
func (b *S3) EnsureContainer(ctx context.Context, container string, publicRead bool) (engine.Change, error) {
	bucket := b.bucket(container)

	existed := true
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		if !isS3NotFound(err) {
			return engine.ChangeNone, wrap(s3Code(err), b.Name(), "check bucket", bucket, err)
		}
		existed = false
	}

	if !existed {
		in := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
		if b.settings.Region != "" && b.settings.Region != "us-east-1" {
			in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(b.settings.Region),
			}
		}
		if _, err := b.client.CreateBucket(ctx, in); err != nil && !isBucketAlreadyOwnedByYou(err) {
			return engine.ChangeNone, wrap(s3Code(err), b.Name(), "create bucket", bucket, err)
		}
	}

	policyChanged, err := b.ensurePolicy(ctx, bucket, publicRead)
	if err != nil {
		return engine.ChangeNone, err
	}
	return changeFor(existed, !policyChanged), nil
}

func (b *S3) ensurePolicy(ctx context.Context, bucket string, publicRead bool) (bool, error) {
	current := ""
	out, err := b.client.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{Bucket: aws.String(bucket)})
	switch {
	case err == nil:
		current = aws.ToString(out.Policy)
	case isS3Code(err, "NoSuchBucketPolicy"):
	default:
		return false, wrap(s3Code(err), b.Name(), "read policy of", bucket, err)
	}

	if grantsPublicRead(current, bucket) == publicRead {
		return false, nil
	}
	if !publicRead {
		if _, err := b.client.DeleteBucketPolicy(ctx, &s3.DeleteBucketPolicyInput{Bucket: aws.String(bucket)}); err != nil {
			return false, wrap(s3Code(err), b.Name(), "remove policy of", bucket, err)
		}
		return true, nil
	}

	desired, err := publicReadPolicy(bucket)
	if err != nil {
		return false, err
	}
	if _, err := b.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(bucket),
		Policy: aws.String(desired),
	}); err != nil {
		return false, wrap(s3Code(err), b.Name(), "set policy of", bucket, err)
	}
	return true, nil
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string   `json:"Sid"`
	Effect    string   `json:"Effect"`
	Principal string   `json:"Principal"`
	Action    []string `json:"Action"`
	Resource  []string `json:"Resource"`
}

// publicReadPolicy grants anonymous GetObject on every object of the bucket.
func publicReadPolicy(bucket string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Sid:       "PublicRead",
			Effect:    "Allow",
			Principal: "*",
			Action:    []string{"s3:GetObject"},
			Resource:  []string{fmt.Sprintf("arn:aws:s3:::%s/*", bucket)},
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to encode bucket policy", err)
	}
	return string(b), nil
}

// grantsPublicRead reports whether a bucket policy allows anonymous
// GetObject on the whole bucket. Servers normalize policies on read, so the
// check is semantic rather than textual.
func grantsPublicRead(policy, bucket string) bool {
	if strings.TrimSpace(policy) == "" {
		return false
	}
	var doc struct {
		Statement []struct {
			Effect    string `json:"Effect"`
			Principal any    `json:"Principal"`
			Action    any    `json:"Action"`
			Resource  any    `json:"Resource"`
		} `json:"Statement"`
	}
	if err := json.Unmarshal([]byte(policy), &doc); err != nil {
		return false
	}
	resource := fmt.Sprintf("arn:aws:s3:::%s/*", bucket)
	for _, st := range doc.Statement {
		if st.Effect == "Allow" &&
			anyPrincipal(st.Principal) &&
			containsString(st.Action, "s3:GetObject") &&
			containsString(st.Resource, resource) {
			return true
		}
	}
	return false
}

func anyPrincipal(p any) bool {
	if m, ok := p.(map[string]any); ok {
		return containsString(m["AWS"], "*")
	}
	return containsString(p, "*")
}

// containsString matches a JSON value that is either a string or a list of strings.
func containsString(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return t == want
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// PutBlob implements Backend. S3 returns user metadata keys in lower case.
func (b *S3) PutBlob(ctx context.Context, container, name string, content *Content) (engine.Change, error) {
	ctx, cancel := context.WithTimeout(ctx, defaults.StorageUploadTimeout)
	defer cancel()
	bucket := b.bucket(container)

	existed := true
	head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(name)})
	switch {
	case err == nil:
		if content.Matches(head.Metadata, nil) {
			return engine.ChangeSame, nil
		}
	case isS3NotFound(err):
		existed = false
	default:
		return engine.ChangeNone, wrap(s3Code(err), b.Name(), "read object", name, err)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(content.Data),
		ContentLength: aws.Int64(content.Size()),
		ContentType:   aws.String(content.ContentType),
		ContentMD5:    aws.String(base64.StdEncoding.EncodeToString(content.MD5)),
		Metadata:      map[string]string{DigestMetadataKey: content.SHA256},
	})
	if err != nil {
		return engine.ChangeNone, wrap(s3Code(err), b.Name(), "upload object", name, err)
	}
	return changeFor(existed, false), nil
}

// BlobURL implements Backend. Presigned URLs are signed at the window start,
// so every call inside one window returns the same URL. SigV4 caps the
// lifetime at seven days.
func (b *S3) BlobURL(ctx context.Context, container, name string, access Access) (string, error) {
	bucket := b.bucket(container)
	if access.PublicRead {
		return b.publicURL(bucket, name), nil
	}
	ttl := access.TTL()
	if ttl > maxPresignTTL {
		slog.Warn("signed URL lifetime capped", "requested", ttl, "max", maxPresignTTL)
		ttl = maxPresignTTL
	}
	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(name),
	}, s3.WithPresignExpires(ttl), func(o *s3.PresignOptions) {
		o.Presigner = fixedTimePresigner{signer: v4.NewSigner(), at: access.Start}
	})
	if err != nil {
		return "", wrap(cnserrors.ErrCodeInternal, b.Name(), "presign", name, err)
	}
	return req.URL, nil
}

// fixedTimePresigner signs every request as of one instant.
type fixedTimePresigner struct {
	signer *v4.Signer
	at     time.Time
}

func (p fixedTimePresigner) PresignHTTP(ctx context.Context, creds aws.Credentials, r *http.Request,
	payloadHash, service, region string, _ time.Time, optFns ...func(*v4.SignerOptions),
) (string, http.Header, error) {
	return p.signer.PresignHTTP(ctx, creds, r, payloadHash, service, region, p.at, optFns...)
}

func (b *S3) publicURL(bucket, key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if b.settings.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(b.settings.Endpoint, "/"), bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, b.settings.Region, escaped)
}

// DeleteBlob implements Backend.
func (b *S3) DeleteBlob(ctx context.Context, container, name string) error {
	bucket := b.bucket(container)
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(name)})
	if err == nil || isS3NotFound(err) {
		return nil
	}
	return wrap(s3Code(err), b.Name(), "delete object", name, err)
}

// DeleteContainer implements Backend. The bucket must be empty.
func (b *S3) DeleteContainer(ctx context.Context, container string) error {
	bucket := b.bucket(container)
	_, err := b.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	if err == nil || isS3NotFound(err) {
		return nil
	}
	return wrap(s3Code(err), b.Name(), "delete bucket", bucket, err)
}

// DeleteAccount implements Backend.
func (b *S3) DeleteAccount(context.Context) error {
	return nil
}

// isBucketAlreadyOwnedByYou checks typed errors first and falls back to API
// codes for s3-compatible services that do not return the SDK types.
func isBucketAlreadyOwnedByYou(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return true
	}
	return isS3Code(err, "BucketAlreadyOwnedByYou")
}

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	return isS3Code(err, "NotFound", "NoSuchBucket", "NoSuchKey", "404")
}

func isS3Code(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.ErrorCode() == c {
			return true
		}
	}
	return false
}

func s3Code(err error) cnserrors.ErrorCode {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return cnserrors.ErrCodeTimeout
	case isS3NotFound(err):
		return cnserrors.ErrCodeNotFound
	case isS3Code(err, "BucketAlreadyExists"):
		return cnserrors.ErrCodeAlreadyExists
	case isS3Code(err, "SlowDown", "ServiceUnavailable", "InternalError", "RequestTimeout"):
		return cnserrors.ErrCodeUnavailable
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return cnserrors.ErrCodeInternal
	}
	return cnserrors.ErrCodeUnavailable
}
