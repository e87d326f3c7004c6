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

package workload

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/NVIDIA/appstack/pkg/defaults"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/version"
	authv1 "k8s.io/api/authorization/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// PermissionCheck represents a single permission check result.
type PermissionCheck struct {
	Group     string
	Resource  string
	Verb      string
	Namespace string
	Allowed   bool
	Reason    string
}

type requiredPermission struct {
	group    string
	resource string
	verb     string
}

var requiredPermissions = []requiredPermission{
	{"apps", "deployments", "get"},
	{"apps", "deployments", "create"},
	{"apps", "deployments", "update"},
	{"apps", "deployments", "delete"},
	{"", "services", "get"},
	{"", "services", "create"},
	{"", "services", "update"},
	{"", "services", "delete"},
}

// CheckPermissions verifies that the current identity may manage the workload
// objects in the target namespace. Every check is returned; the error lists
// the denied ones.
func (a *App) CheckPermissions(ctx context.Context) ([]PermissionCheck, error) {
	checks := make([]PermissionCheck, 0, len(requiredPermissions))
	var missing []string

	for _, p := range requiredPermissions {
		allowed, reason, err := a.checkPermission(ctx, p.group, p.resource, p.verb)
		if err != nil {
			return checks, fmt.Errorf("failed to check permission for %s %s: %w", p.verb, p.resource, err)
		}
		checks = append(checks, PermissionCheck{
			Group:     p.group,
			Resource:  p.resource,
			Verb:      p.verb,
			Namespace: a.args.Namespace,
			Allowed:   allowed,
			Reason:    reason,
		})
		if !allowed {
			missing = append(missing, fmt.Sprintf("%s %s", p.verb, p.resource))
		}
	}

	if len(missing) > 0 {
		return checks, cnserrors.NewWithContext(cnserrors.ErrCodeInvalidConfig,
			fmt.Sprintf("missing required permissions in namespace %q:\n  - %s",
				a.args.Namespace, strings.Join(missing, "\n  - ")),
			map[string]any{"namespace": a.args.Namespace, "missing": len(missing)})
	}
	return checks, nil
}

func (a *App) checkPermission(ctx context.Context, group, resource, verb string) (bool, string, error) {
	review := &authv1.SelfSubjectAccessReview{
		Spec: authv1.SelfSubjectAccessReviewSpec{
			ResourceAttributes: &authv1.ResourceAttributes{
				Group:     group,
				Verb:      verb,
				Resource:  resource,
				Namespace: a.args.Namespace,
			},
		},
	}

	result, err := a.clientset.AuthorizationV1().SelfSubjectAccessReviews().Create(ctx, review, metav1.CreateOptions{})
	if err != nil {
		return false, "", err
	}
	return result.Status.Allowed, result.Status.Reason, nil
}

// CheckServerVersion fails when the API server is older than minimum. An
// empty minimum uses defaults.MinKubernetesVersion. Versions that cannot be
// parsed are logged and accepted.
func (a *App) CheckServerVersion(minimum string) (version.Semver, error) {
	if minimum == "" {
		minimum = defaults.MinKubernetesVersion
	}
	want, err := version.Parse(minimum)
	if err != nil {
		return version.Semver{}, cnserrors.Wrap(cnserrors.ErrCodeInvalidConfig,
			fmt.Sprintf("invalid minimum kubernetes version %q", minimum), err)
	}

	info, err := a.clientset.Discovery().ServerVersion()
	if err != nil {
		return version.Semver{}, cnserrors.Wrap(cnserrors.ErrCodeUnavailable, "failed to read server version", err)
	}
	got, err := version.Parse(info.GitVersion)
	if err != nil {
		slog.Warn("unrecognized server version, skipping check", "gitVersion", info.GitVersion, "error", err)
		return version.Semver{}, nil
	}
	if !got.AtLeast(want) {
		return got, cnserrors.NewWithContext(cnserrors.ErrCodeInvalidConfig,
			fmt.Sprintf("kubernetes %s is older than the supported minimum %s", got, want),
			map[string]any{"server": info.GitVersion, "minimum": minimum})
	}
	return got, nil
}
