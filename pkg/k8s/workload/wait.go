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
	"time"

	"github.com/NVIDIA/appstack/pkg/defaults"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
)

// WaitForAddress polls the Service until the cloud load balancer reports an
// ingress IP or hostname. A zero timeout uses defaults.LoadBalancerAddressTimeout.
func (a *App) WaitForAddress(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = defaults.LoadBalancerAddressTimeout
	}

	var addr string
	api := a.clientset.CoreV1().Services(a.args.Namespace)
	err := wait.PollUntilContextTimeout(ctx, defaults.LoadBalancerPollInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			svc, err := api.Get(ctx, a.args.ServiceName, metav1.GetOptions{})
			if apierrors.IsNotFound(err) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			addr = IngressAddress(svc)
			return addr != "", nil
		})
	if err != nil {
		if ctx.Err() == nil && wait.Interrupted(err) {
			return "", cnserrors.NewWithContext(cnserrors.ErrCodeTimeout,
				fmt.Sprintf("service %s/%s has no load balancer address after %v",
					a.args.Namespace, a.args.ServiceName, timeout),
				map[string]any{"namespace": a.args.Namespace, "service": a.args.ServiceName})
		}
		return "", classify(err, "watch", "Service", a.args.ServiceName)
	}

	slog.Info("service address assigned", "namespace", a.args.Namespace,
		"service", a.args.ServiceName, "address", addr)
	return addr, nil
}

// IngressAddress returns the first ingress IP, else its hostname, else "".
func IngressAddress(svc *corev1.Service) string {
	if svc == nil || len(svc.Status.LoadBalancer.Ingress) == 0 {
		return ""
	}
	in := svc.Status.LoadBalancer.Ingress[0]
	if in.IP != "" {
		return in.IP
	}
	return in.Hostname
}
