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
	"crypto/md5" //nolint:gosec // Content-MD5 is an integrity header, not a security control
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/NVIDIA/appstack/pkg/defaults"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/serializer"
)

// DigestMetadataKey is the blob metadata key holding the hex SHA-256 of the
// uploaded content. Providers may change its case on read.
const DigestMetadataKey = "sha256"

// DefaultContentType is used when the artifact extension is unknown.
const DefaultContentType = "application/octet-stream"

// Content is an artifact ready to upload.
type Content struct {
	Data        []byte
	SHA256      string
	MD5         []byte
	ContentType string
}

// NewContent computes digests for data.
func NewContent(data []byte, contentType string) *Content {
	sum := sha256.Sum256(data)
	m := md5.Sum(data) //nolint:gosec
	if contentType == "" {
		contentType = DefaultContentType
	}
	return &Content{
		Data:        data,
		SHA256:      hex.EncodeToString(sum[:]),
		MD5:         m[:],
		ContentType: contentType,
	}
}

// Size returns the content length in bytes.
func (c *Content) Size() int64 {
	return int64(len(c.Data))
}

// Matches reports whether stored metadata describes the same content. The
// digest key is matched case-insensitively; a stored MD5 is the fallback for
// blobs uploaded by other tools.
func (c *Content) Matches(metadata map[string]string, storedMD5 []byte) bool {
	for k, v := range metadata {
		if strings.EqualFold(k, DigestMetadataKey) {
			return strings.EqualFold(v, c.SHA256)
		}
	}
	if len(storedMD5) > 0 {
		return hex.EncodeToString(storedMD5) == hex.EncodeToString(c.MD5)
	}
	return false
}

// LoadContent reads the artifact from a local path or an http(s) URL.
func LoadContent(ctx context.Context, path string) (*Content, error) {
	if strings.TrimSpace(path) == "" {
		return nil, cnserrors.New(cnserrors.ErrCodeInvalidConfig, "artifact path is empty")
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		reader := serializer.NewHttpReader(serializer.WithTotalTimeout(defaults.StorageUploadTimeout))
		data, err = reader.ReadWithContext(ctx, path)
		if err != nil {
			return nil, cnserrors.Wrap(cnserrors.ErrCodeUnavailable,
				fmt.Sprintf("failed to download artifact %s", path), err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, cnserrors.Wrap(cnserrors.ErrCodeNotFound,
				fmt.Sprintf("failed to read artifact %s", path), err)
		}
	}

	return NewContent(data, contentTypeFor(path)), nil
}

func contentTypeFor(path string) string {
	path, _, _ = strings.Cut(path, "?")
	ext := filepath.Ext(path)
	switch ext {
	case ".jar":
		return "application/java-archive"
	case "":
		return DefaultContentType
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return DefaultContentType
}
