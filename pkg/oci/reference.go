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

package oci

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/distribution/reference"

	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
)

// URIScheme optionally prefixes repository references (oci://ghcr.io/org/repo).
const URIScheme = "oci://"

// maxTagLength is the longest tag the distribution spec accepts.
const maxTagLength = 128

var invalidTagChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Reference is a parsed registry repository, optionally tagged.
type Reference struct {
	// Registry is the registry host, e.g. "ghcr.io" or "localhost:5000".
	Registry string
	// Repository is the repository path, e.g. "nvidia/artifacts".
	Repository string
	// Tag is empty when the reference was not tagged.
	Tag string
}

// ParseReference parses registry/repository[:tag], with or without the
// oci:// scheme and an http(s):// prefix on the registry.
func ParseReference(s string) (*Reference, error) {
	trimmed := stripProtocol(strings.TrimPrefix(strings.TrimSpace(s), URIScheme))
	if trimmed == "" {
		return nil, cnserrors.New(cnserrors.ErrCodeInvalidConfig, "OCI reference is empty")
	}

	ref, err := reference.ParseNormalizedNamed(trimmed)
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidConfig,
			fmt.Sprintf("invalid OCI reference %q", s), err)
	}
	if _, digested := ref.(reference.Digested); digested {
		return nil, cnserrors.New(cnserrors.ErrCodeInvalidConfig,
			fmt.Sprintf("OCI reference %q must not carry a digest", s))
	}

	r := &Reference{
		Registry:   reference.Domain(ref),
		Repository: reference.Path(ref),
	}
	if tagged, ok := ref.(reference.Tagged); ok {
		r.Tag = tagged.Tag()
	}
	return r, nil
}

// String returns the oci:// form of the reference.
func (r *Reference) String() string {
	return URIScheme + r.ImageReference()
}

// Name returns registry/repository without a tag.
func (r *Reference) Name() string {
	return fmt.Sprintf("%s/%s", r.Registry, r.Repository)
}

// ImageReference returns the docker-style reference, with the tag when set.
func (r *Reference) ImageReference() string {
	if r.Tag == "" {
		return r.Name()
	}
	return fmt.Sprintf("%s:%s", r.Name(), r.Tag)
}

// WithTag returns a copy carrying tag.
func (r *Reference) WithTag(tag string) *Reference {
	c := *r
	c.Tag = tag
	return &c
}

// TagFor turns arbitrary parts into a valid tag: disallowed characters become
// dashes and the result is cut to the maximum tag length.
func TagFor(parts ...string) string {
	joined := strings.Join(parts, "-")
	tag := strings.Trim(invalidTagChars.ReplaceAllString(joined, "-"), "-.")
	if tag == "" {
		tag = "latest"
	}
	if len(tag) > maxTagLength {
		tag = tag[:maxTagLength]
	}
	return tag
}

// stripProtocol removes http:// or https:// prefix from a registry URL.
func stripProtocol(registry string) string {
	registry = strings.TrimPrefix(registry, "https://")
	registry = strings.TrimPrefix(registry, "http://")
	return registry
}
