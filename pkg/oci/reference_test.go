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
	"strings"
	"testing"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantReg  string
		wantRepo string
		wantTag  string
		wantErr  bool
	}{
		{
			name:     "plain with tag",
			input:    "ghcr.io/nvidia/artifacts:v1.0.0",
			wantReg:  "ghcr.io",
			wantRepo: "nvidia/artifacts",
			wantTag:  "v1.0.0",
		},
		{
			name:     "scheme without tag",
			input:    "oci://ghcr.io/nvidia/artifacts",
			wantReg:  "ghcr.io",
			wantRepo: "nvidia/artifacts",
		},
		{
			name:     "local registry with port",
			input:    "localhost:5000/test/app",
			wantReg:  "localhost:5000",
			wantRepo: "test/app",
		},
		{
			name:     "http prefix on registry",
			input:    "http://localhost:5000/test/app:dev",
			wantReg:  "localhost:5000",
			wantRepo: "test/app",
			wantTag:  "dev",
		},
		{
			name:    "empty",
			input:   "  ",
			wantErr: true,
		},
		{
			name:    "uppercase repository",
			input:   "ghcr.io/NVIDIA/Artifacts",
			wantErr: true,
		},
		{
			name:    "digest",
			input:   "ghcr.io/nvidia/artifacts@sha256:" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseReference(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Registry != tt.wantReg || got.Repository != tt.wantRepo || got.Tag != tt.wantTag {
				t.Errorf("ParseReference(%q) = %+v, want %s/%s:%s", tt.input, got, tt.wantReg, tt.wantRepo, tt.wantTag)
			}
		})
	}
}

func TestReference_Forms(t *testing.T) {
	ref := &Reference{Registry: "ghcr.io", Repository: "nvidia/artifacts"}

	if got := ref.ImageReference(); got != "ghcr.io/nvidia/artifacts" {
		t.Errorf("ImageReference() = %q", got)
	}
	tagged := ref.WithTag("v1")
	if got := tagged.String(); got != "oci://ghcr.io/nvidia/artifacts:v1" {
		t.Errorf("String() = %q", got)
	}
	if ref.Tag != "" {
		t.Errorf("WithTag modified the receiver: %q", ref.Tag)
	}
}

func TestTagFor(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"java", "app.jar"}, "java-app.jar"},
		{[]string{"java", "lib/app.jar"}, "java-lib-app.jar"},
		{[]string{".hidden"}, "hidden"},
		{[]string{"///"}, "latest"},
	}
	for _, tt := range tests {
		if got := TagFor(tt.parts...); got != tt.want {
			t.Errorf("TagFor(%q) = %q, want %q", tt.parts, got, tt.want)
		}
	}

	long := TagFor(strings.Repeat("a", 200))
	if len(long) != maxTagLength {
		t.Errorf("TagFor(long) length = %d, want %d", len(long), maxTagLength)
	}
}

func TestStripProtocol(t *testing.T) {
	tests := map[string]string{
		"https://ghcr.io":       "ghcr.io",
		"http://localhost:5000": "localhost:5000",
		"registry.example.com":  "registry.example.com",
	}
	for in, want := range tests {
		if got := stripProtocol(in); got != want {
			t.Errorf("stripProtocol(%q) = %q, want %q", in, got, want)
		}
	}
}
