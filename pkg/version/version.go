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

// Package version carries build metadata and parses the Kubernetes server
// versions checked before a workload is applied.
//
// Server versions arrive in many shapes ("v1.30.2", "v1.29.4-eks-036c24b",
// "1.28.9-gke.1000000"). Parse keeps the numeric part and preserves the rest
// as Extras:
//
//	v, err := version.Parse(info.GitVersion)
//	if err == nil && !v.AtLeast(version.MustParse("1.24")) {
//	    ...
//	}
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Build metadata, overridden with -ldflags "-X".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Parse errors.
var (
	ErrEmptyVersion      = errors.New("version string is empty")
	ErrTooManyComponents = errors.New("version has more than 3 components")
	ErrNonNumeric        = errors.New("version component is not numeric")
)

// Semver is a version with one to three significant components.
type Semver struct {
	Major int `json:"major" yaml:"major"`
	Minor int `json:"minor,omitempty" yaml:"minor,omitempty"`
	Patch int `json:"patch,omitempty" yaml:"patch,omitempty"`

	// Precision is the number of components given (1, 2 or 3).
	Precision int `json:"precision" yaml:"precision"`

	// Extras is the suffix after '-' or '+', e.g. "-eks-036c24b".
	Extras string `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// Parse accepts "1", "1.2", "1.2.3" with an optional "v" prefix and an
// optional "-suffix" or "+metadata".
func Parse(s string) (Semver, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s == "" {
		return Semver{}, ErrEmptyVersion
	}

	var v Semver
	main := s
	if i := strings.IndexAny(s, "-+"); i > 0 {
		main, v.Extras = s[:i], s[i:]
	}

	parts := strings.Split(main, ".")
	if len(parts) > 3 {
		return Semver{}, ErrTooManyComponents
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || strings.HasPrefix(p, "+") {
			return Semver{}, fmt.Errorf("%w: %q", ErrNonNumeric, p)
		}
		nums[i] = n
	}

	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	v.Precision = len(parts)
	return v, nil
}

// MustParse is Parse for literals; it panics on error.
func MustParse(s string) Semver {
	v, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("version.MustParse(%q): %v", s, err))
	}
	return v
}

// String renders the significant components without Extras.
func (v Semver) String() string {
	switch v.Precision {
	case 1:
		return strconv.Itoa(v.Major)
	case 2:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	default:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
}

// Compare returns -1, 0 or 1. Only the components significant in both
// versions take part, so "1.30" equals "1.30.4".
func (v Semver) Compare(other Semver) int {
	precision := min(max(v.Precision, 1), max(other.Precision, 1))
	a := [3]int{v.Major, v.Minor, v.Patch}
	b := [3]int{other.Major, other.Minor, other.Patch}
	for i := range precision {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// AtLeast reports whether v is equal to or newer than minimum.
func (v Semver) AtLeast(minimum Semver) bool {
	return v.Compare(minimum) >= 0
}

// Info renders the build metadata for --version output.
func Info() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
