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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/NVIDIA/appstack/pkg/engine"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
)

// withLoadBalancer makes the fake cluster assign an ingress to every stored Service.
func withLoadBalancer(cs *fake.Clientset, ingress corev1.LoadBalancerIngress) {
	assign := func(action k8stesting.Action) (bool, runtime.Object, error) {
		var obj runtime.Object
		switch a := action.(type) {
		case k8stesting.CreateAction:
			obj = a.GetObject()
		case k8stesting.UpdateAction:
			obj = a.GetObject()
		}
		if svc, ok := obj.(*corev1.Service); ok {
			svc.Status.LoadBalancer.Ingress = []corev1.LoadBalancerIngress{ingress}
		}
		return false, nil, nil
	}
	cs.PrependReactor("create", "services", assign)
	cs.PrependReactor("update", "services", assign)
}

func TestApp_EnsureIsIdempotent(t *testing.T) {
	cs := fake.NewClientset()
	app := New(cs, testArgs())

	change, err := app.Ensure(t.Context())
	require.NoError(t, err)
	assert.Equal(t, engine.ChangeCreate, change)

	change, err = app.Ensure(t.Context())
	require.NoError(t, err)
	assert.Equal(t, engine.ChangeSame, change)

	_, err = cs.AppsV1().Deployments("demo").Get(t.Context(), "deployment", metav1.GetOptions{})
	require.NoError(t, err)
	_, err = cs.CoreV1().Services("demo").Get(t.Context(), "app-svc", metav1.GetOptions{})
	require.NoError(t, err)
}

func TestApp_EnsureUpdatesOnChange(t *testing.T) {
	cs := fake.NewClientset()
	_, err := New(cs, testArgs()).Ensure(t.Context())
	require.NoError(t, err)

	args := testArgs()
	args.ArtifactURL = testURL + "?v=2"
	app := New(cs, args)

	change, err := app.EnsureDeployment(t.Context())
	require.NoError(t, err)
	assert.Equal(t, engine.ChangeUpdate, change)

	change, err = app.EnsureService(t.Context())
	require.NoError(t, err)
	assert.Equal(t, engine.ChangeSame, change)

	d, err := cs.AppsV1().Deployments("demo").Get(t.Context(), "deployment", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Contains(t, d.Spec.Template.Spec.InitContainers[0].Command, testURL+"?v=2")
}

func TestApp_EnsureServicePreservesAllocatedFields(t *testing.T) {
	cs := fake.NewClientset()
	_, err := New(cs, testArgs()).EnsureService(t.Context())
	require.NoError(t, err)

	svc, err := cs.CoreV1().Services("demo").Get(t.Context(), "app-svc", metav1.GetOptions{})
	require.NoError(t, err)
	svc.Spec.ClusterIP = "10.0.0.7"
	svc.Spec.Ports[0].NodePort = 31080
	svc.Annotations[SpecHashAnnotation] = "stale"
	_, err = cs.CoreV1().Services("demo").Update(t.Context(), svc, metav1.UpdateOptions{})
	require.NoError(t, err)

	change, err := New(cs, testArgs()).EnsureService(t.Context())
	require.NoError(t, err)
	assert.Equal(t, engine.ChangeUpdate, change)

	svc, err = cs.CoreV1().Services("demo").Get(t.Context(), "app-svc", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", svc.Spec.ClusterIP)
	assert.Equal(t, int32(31080), svc.Spec.Ports[0].NodePort)
	assert.NotEqual(t, "stale", svc.Annotations[SpecHashAnnotation])
}

func TestApp_Delete(t *testing.T) {
	cs := fake.NewClientset()
	app := New(cs, testArgs())
	_, err := app.Ensure(t.Context())
	require.NoError(t, err)

	require.NoError(t, app.DeleteService(t.Context()))
	require.NoError(t, app.DeleteDeployment(t.Context()))

	// absent objects are fine
	require.NoError(t, app.DeleteService(t.Context()))
	require.NoError(t, app.DeleteDeployment(t.Context()))

	list, err := cs.AppsV1().Deployments("demo").List(t.Context(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}

func TestApp_WaitForAddress(t *testing.T) {
	tests := []struct {
		name    string
		ingress *corev1.LoadBalancerIngress
		want    string
	}{
		{name: "ip", ingress: &corev1.LoadBalancerIngress{IP: "20.1.2.3"}, want: "20.1.2.3"},
		{name: "hostname", ingress: &corev1.LoadBalancerIngress{Hostname: "lb.example.com"}, want: "lb.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := fake.NewClientset()
			withLoadBalancer(cs, *tt.ingress)
			app := New(cs, testArgs())
			_, err := app.EnsureService(t.Context())
			require.NoError(t, err)

			addr, err := app.WaitForAddress(t.Context(), time.Second)
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr)
		})
	}
}

func TestApp_WaitForAddressTimeout(t *testing.T) {
	cs := fake.NewClientset()
	app := New(cs, testArgs())
	_, err := app.EnsureService(t.Context())
	require.NoError(t, err)

	_, err = app.WaitForAddress(t.Context(), 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeTimeout), "got %v", err)
}

func TestIngressAddress(t *testing.T) {
	assert.Empty(t, IngressAddress(nil))
	assert.Empty(t, IngressAddress(&corev1.Service{}))

	svc := &corev1.Service{}
	svc.Status.LoadBalancer.Ingress = []corev1.LoadBalancerIngress{{IP: "1.2.3.4", Hostname: "h"}}
	assert.Equal(t, "1.2.3.4", IngressAddress(svc))
}
