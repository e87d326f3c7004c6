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

	"github.com/NVIDIA/appstack/pkg/defaults"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/engine"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Ensure applies the Deployment and then the Service. The returned change is
// the most significant of the two.
func (a *App) Ensure(ctx context.Context) (engine.Change, error) {
	dc, err := a.EnsureDeployment(ctx)
	if err != nil {
		return dc, fmt.Errorf("failed to ensure Deployment: %w", err)
	}
	sc, err := a.EnsureService(ctx)
	if err != nil {
		return sc, fmt.Errorf("failed to ensure Service: %w", err)
	}
	return merge(dc, sc), nil
}

// EnsureDeployment creates the Deployment, or updates it when its spec hash
// annotation differs from the desired one.
func (a *App) EnsureDeployment(ctx context.Context) (engine.Change, error) {
	desired, err := BuildDeployment(a.args)
	if err != nil {
		return engine.ChangeNone, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaults.K8sApplyTimeout)
	defer cancel()

	api := a.clientset.AppsV1().Deployments(a.args.Namespace)
	current, err := api.Get(ctx, desired.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := api.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
			return engine.ChangeNone, classify(err, "create", "Deployment", desired.Name)
		}
		slog.Info("deployment created", "namespace", a.args.Namespace, "name", desired.Name)
		return engine.ChangeCreate, nil
	}
	if err != nil {
		return engine.ChangeNone, classify(err, "get", "Deployment", desired.Name)
	}

	if current.Annotations[SpecHashAnnotation] == desired.Annotations[SpecHashAnnotation] {
		return engine.ChangeSame, nil
	}

	desired.ResourceVersion = current.ResourceVersion
	if _, err := api.Update(ctx, desired, metav1.UpdateOptions{}); err != nil {
		return engine.ChangeNone, classify(err, "update", "Deployment", desired.Name)
	}
	slog.Info("deployment updated", "namespace", a.args.Namespace, "name", desired.Name)
	return engine.ChangeUpdate, nil
}

// EnsureService creates the Service, or updates it when its spec hash
// annotation differs. Fields allocated by the cluster are carried over.
func (a *App) EnsureService(ctx context.Context) (engine.Change, error) {
	desired, err := BuildService(a.args)
	if err != nil {
		return engine.ChangeNone, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaults.K8sApplyTimeout)
	defer cancel()

	api := a.clientset.CoreV1().Services(a.args.Namespace)
	current, err := api.Get(ctx, desired.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := api.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
			return engine.ChangeNone, classify(err, "create", "Service", desired.Name)
		}
		slog.Info("service created", "namespace", a.args.Namespace, "name", desired.Name)
		return engine.ChangeCreate, nil
	}
	if err != nil {
		return engine.ChangeNone, classify(err, "get", "Service", desired.Name)
	}

	if current.Annotations[SpecHashAnnotation] == desired.Annotations[SpecHashAnnotation] {
		return engine.ChangeSame, nil
	}

	preserveAllocated(desired, current)
	if _, err := api.Update(ctx, desired, metav1.UpdateOptions{}); err != nil {
		return engine.ChangeNone, classify(err, "update", "Service", desired.Name)
	}
	slog.Info("service updated", "namespace", a.args.Namespace, "name", desired.Name)
	return engine.ChangeUpdate, nil
}

func preserveAllocated(desired, current *corev1.Service) {
	desired.ResourceVersion = current.ResourceVersion
	desired.Spec.ClusterIP = current.Spec.ClusterIP
	desired.Spec.ClusterIPs = current.Spec.ClusterIPs
	for i := range desired.Spec.Ports {
		for _, p := range current.Spec.Ports {
			if p.Name == desired.Spec.Ports[i].Name {
				desired.Spec.Ports[i].NodePort = p.NodePort
			}
		}
	}
}

// DeleteDeployment removes the Deployment and waits until it is gone.
func (a *App) DeleteDeployment(ctx context.Context) error {
	api := a.clientset.AppsV1().Deployments(a.args.Namespace)
	return a.deleteAndWait(ctx, "Deployment", a.args.Name,
		func(ctx context.Context) error {
			return api.Delete(ctx, a.args.Name, foreground())
		},
		func(ctx context.Context) error {
			_, err := api.Get(ctx, a.args.Name, metav1.GetOptions{})
			return err
		})
}

// DeleteService removes the Service and waits until it is gone.
func (a *App) DeleteService(ctx context.Context) error {
	api := a.clientset.CoreV1().Services(a.args.Namespace)
	return a.deleteAndWait(ctx, "Service", a.args.ServiceName,
		func(ctx context.Context) error {
			return api.Delete(ctx, a.args.ServiceName, foreground())
		},
		func(ctx context.Context) error {
			_, err := api.Get(ctx, a.args.ServiceName, metav1.GetOptions{})
			return err
		})
}

func (a *App) deleteAndWait(ctx context.Context, kind, name string, del, get func(context.Context) error) error {
	if err := ignoreNotFound(del(ctx)); err != nil {
		return classify(err, "delete", kind, name)
	}

	err := wait.PollUntilContextTimeout(ctx, defaults.K8sDeletePollInterval, defaults.K8sCleanupTimeout, true,
		func(ctx context.Context) (bool, error) {
			err := get(ctx)
			if apierrors.IsNotFound(err) {
				return true, nil
			}
			return false, err
		})
	if err != nil {
		return cnserrors.WrapWithContext(cnserrors.ErrCodeTimeout,
			fmt.Sprintf("%s %s was not removed", kind, name), err,
			map[string]any{"namespace": a.args.Namespace, "timeout": defaults.K8sCleanupTimeout.String()})
	}
	slog.Info("workload object deleted", "kind", kind, "namespace", a.args.Namespace, "name", name)
	return nil
}

func foreground() metav1.DeleteOptions {
	policy := metav1.DeletePropagationForeground
	return metav1.DeleteOptions{PropagationPolicy: &policy}
}

// ignoreNotFound returns nil if the error is "not found", otherwise returns the error.
func ignoreNotFound(err error) error {
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}

func classify(err error, op, kind, name string) error {
	code := cnserrors.ErrCodeInternal
	switch {
	case apierrors.IsAlreadyExists(err), apierrors.IsConflict(err):
		code = cnserrors.ErrCodeAlreadyExists
	case apierrors.IsNotFound(err):
		code = cnserrors.ErrCodeNotFound
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err), apierrors.IsForbidden(err):
		code = cnserrors.ErrCodeInvalidConfig
	case apierrors.IsTimeout(err), apierrors.IsServerTimeout(err):
		code = cnserrors.ErrCodeTimeout
	case apierrors.IsServiceUnavailable(err), apierrors.IsTooManyRequests(err):
		code = cnserrors.ErrCodeUnavailable
	}
	return cnserrors.Wrap(code, fmt.Sprintf("failed to %s %s %s", op, kind, name), err)
}

var changeRank = map[engine.Change]int{
	engine.ChangeNone:   0,
	engine.ChangeSame:   1,
	engine.ChangeUpdate: 2,
	engine.ChangeCreate: 3,
}

func merge(a, b engine.Change) engine.Change {
	if changeRank[b] > changeRank[a] {
		return b
	}
	return a
}

