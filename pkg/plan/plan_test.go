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

package plan

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/NVIDIA/appstack/pkg/engine"
	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/featureflag"
	"github.com/NVIDIA/appstack/pkg/k8s/client"
	"github.com/NVIDIA/appstack/pkg/serializer"
	"github.com/NVIDIA/appstack/pkg/stack"
	"github.com/NVIDIA/appstack/pkg/storage"
)

const (
	testKubeconfig       = "apiVersion: v1\nkind: Config\n"
	testConnectionString = "Endpoint=https://cfgstore1.azconfig.io;Id=abc;Secret=c2VjcmV0"
	testIngressIP        = "20.50.60.70"
)

type fixture struct {
	settings *stack.Settings
	outputs  map[string]string
	backend  *storage.Memory
	cluster  *fake.Clientset
	flags    *featureflag.MemoryFactory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := &stack.Settings{PlatformStack: "organization/platform/dev"}
	s.Storage.Backend = stack.BackendMemory
	s.Storage.ArtifactPath = "target/app.jar"
	s.ApplyDefaults()

	cluster := fake.NewClientset()
	cluster.PrependReactor("create", "services", func(action k8stesting.Action) (bool, runtime.Object, error) {
		svc := action.(k8stesting.CreateAction).GetObject().(*corev1.Service)
		svc.Status.LoadBalancer.Ingress = []corev1.LoadBalancerIngress{{IP: testIngressIP}}
		return false, nil, nil
	})

	return &fixture{
		settings: s,
		outputs: map[string]string{
			stack.OutputKubeconfig:                  testKubeconfig,
			stack.OutputNamespace:                   "demo",
			stack.OutputConfigStore:                 "cfgstore1",
			stack.OutputConfigStoreConnectionString: testConnectionString,
		},
		backend: storage.NewMemory(),
		cluster: cluster,
		flags:   featureflag.NewMemoryFactory(),
	}
}

func (f *fixture) options(t *testing.T) Options {
	return Options{
		Loader: func(_ context.Context, location string) (*stack.Document, error) {
			assert.Equal(t, f.settings.PlatformStack, location)
			return &stack.Document{Stack: "platform", Outputs: f.outputs}, nil
		},
		Clients: func(kubeconfig string) (client.Interface, error) {
			assert.Equal(t, testKubeconfig, kubeconfig)
			return f.cluster, nil
		},
		Backend:    f.backend,
		FlagStores: f.flags.Open,
		Content:    storage.NewContent([]byte("PK\x03\x04 jar"), "application/java-archive"),
		Now:        func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func (f *fixture) up(t *testing.T) *engine.Result {
	t.Helper()
	p, err := Build(t.Context(), f.settings, f.options(t))
	require.NoError(t, err)
	res, err := engine.New(engine.Config{}).Up(t.Context(), p.Graph)
	require.NoError(t, err)
	return res
}

func TestBuild_EndToEnd(t *testing.T) {
	f := newFixture(t)
	res := f.up(t)

	require.Len(t, res.Outputs, 1)
	assert.Equal(t, "http://"+testIngressIP+"/welcome", res.Outputs[stack.OutputService])

	d, err := f.cluster.AppsV1().Deployments("demo").Get(t.Context(), "deployment", metav1.GetOptions{})
	require.NoError(t, err)
	app := d.Spec.Template.Spec.Containers[0]
	assert.Equal(t, []corev1.EnvVar{{Name: "APP_CONFIGURATION_CONNECTION_STRING", Value: testConnectionString}}, app.Env)
	assert.Equal(t, int32(8080), app.Ports[0].ContainerPort)

	wget := d.Spec.Template.Spec.InitContainers[0].Command
	require.Len(t, wget, 4)
	assert.True(t, strings.HasPrefix(wget[1], storage.MemoryBaseURL), "artifact URL %q", wget[1])

	svc, err := f.cluster.CoreV1().Services("demo").Get(t.Context(), "app-svc", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, corev1.ServiceTypeLoadBalancer, svc.Spec.Type)
	assert.Equal(t, int32(80), svc.Spec.Ports[0].Port)
	assert.Equal(t, intstr.FromString("http"), svc.Spec.Ports[0].TargetPort)
	assert.Equal(t, d.Spec.Selector.MatchLabels, svc.Spec.Selector)

	blob, ok := f.backend.Blob("java", "app.jar")
	require.True(t, ok)
	assert.Equal(t, []byte("PK\x03\x04 jar"), blob)

	flag, err := featureflag.NewRegistrar(f.flags.Open).Lookup(t.Context(), testConnectionString, "Beta", "")
	require.NoError(t, err)
	assert.False(t, flag.Enabled)
}

func TestBuild_SecondUpChangesNothing(t *testing.T) {
	f := newFixture(t)
	first := f.up(t)
	assert.Positive(t, first.Changed())

	second := f.up(t)
	assert.Equal(t, 0, second.Changed(), second.Summary())
	assert.Equal(t, first.Outputs, second.Outputs)
	assert.Equal(t, 1, f.backend.Puts())
	assert.Equal(t, 1, f.flags.Store(testConnectionString).Adds())
}

func TestBuild_FeatureFlagKeepsOperatorValue(t *testing.T) {
	f := newFixture(t)
	value, err := featureflag.Flag{Name: "Beta", Enabled: true}.Value()
	require.NoError(t, err)
	f.flags.Store(testConnectionString).Set(featureflag.Flag{Name: "Beta"}.Key(), "", featureflag.ContentType, value)

	f.up(t)

	flag, err := featureflag.NewRegistrar(f.flags.Open).Lookup(t.Context(), testConnectionString, "Beta", "")
	require.NoError(t, err)
	assert.True(t, flag.Enabled)
}

func TestBuild_LiteralConnectionString(t *testing.T) {
	f := newFixture(t)
	f.settings.Config.Source = stack.SourceLiteral
	f.settings.ConfigConnectionString = "Endpoint=https://literal.azconfig.io;Id=l;Secret=bA=="
	delete(f.outputs, stack.OutputConfigStoreConnectionString)

	f.up(t)

	d, err := f.cluster.AppsV1().Deployments("demo").Get(t.Context(), "deployment", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, f.settings.ConfigConnectionString, d.Spec.Template.Spec.Containers[0].Env[0].Value)
	assert.Equal(t, 1, f.flags.Store(f.settings.ConfigConnectionString).Adds())
}

func TestBuild_InvalidSettingsDeclareNothing(t *testing.T) {
	f := newFixture(t)
	f.settings.PlatformStack = ""

	p, err := Build(t.Context(), f.settings, f.options(t))
	require.Error(t, err)
	assert.Nil(t, p)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidConfig))
	assert.Contains(t, err.Error(), "platformStack is required")
	assert.Equal(t, 0, f.backend.Puts())

	_, err = Build(t.Context(), nil, Options{})
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidConfig))
}

func TestBuild_MissingOutputFailsEvaluation(t *testing.T) {
	f := newFixture(t)
	delete(f.outputs, stack.OutputNamespace)

	p, err := Build(t.Context(), f.settings, f.options(t))
	require.NoError(t, err)
	_, err = engine.New(engine.Config{}).Up(t.Context(), p.Graph)
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeMissingOutput), "got %v", err)

	_, err = p.Service.Await(t.Context())
	require.Error(t, err)

	list, err := f.cluster.AppsV1().Deployments("").List(t.Context(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}

func TestBuild_FeatureFlagDisabled(t *testing.T) {
	f := newFixture(t)
	f.settings.FeatureFlag.Disabled = true

	p, err := Build(t.Context(), f.settings, f.options(t))
	require.NoError(t, err)
	_, ok := p.Graph.Node(engine.NewURN(FeatureFlagType, "Beta"))
	assert.False(t, ok)
}

func TestBuild_Destroy(t *testing.T) {
	f := newFixture(t)
	f.up(t)

	p, err := Build(t.Context(), f.settings, f.options(t))
	require.NoError(t, err)
	res, err := engine.New(engine.Config{}).Destroy(t.Context(), p.Graph)
	require.NoError(t, err)

	// account, container, blob, deployment, service
	assert.Equal(t, 5, res.Counts()[engine.ChangeDelete])
	step, ok := res.Step(engine.NewURN(FeatureFlagType, "Beta"))
	require.True(t, ok)
	assert.Equal(t, engine.StatusSkipped, step.Status)

	_, ok = f.backend.Blob("java", "app.jar")
	assert.False(t, ok)
	assert.False(t, f.backend.HasAccount())
	svcs, err := f.cluster.CoreV1().Services("demo").List(t.Context(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, svcs.Items)

	// the flag is unmanaged and stays
	assert.Equal(t, 1, f.flags.Store(testConnectionString).Adds())
}

func TestBuild_Structures(t *testing.T) {
	for _, structure := range []stack.Structure{stack.StructureComponent, stack.StructureInline} {
		t.Run(string(structure), func(t *testing.T) {
			f := newFixture(t)
			f.settings.Structure = structure
			res := f.up(t)
			assert.Equal(t, "http://"+testIngressIP+"/welcome", res.Outputs[stack.OutputService])

			_, hasApp := res.Step(engine.NewURN("appstack:k8s:App", "deployment"))
			assert.Equal(t, structure == stack.StructureComponent, hasApp)
		})
	}
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	m, err := Preview(f.settings)
	require.NoError(t, err)

	assert.Equal(t, NamespacePlaceholder, m.Deployment.Namespace)
	assert.Equal(t, NamespacePlaceholder, m.Service.Namespace)

	out, err := m.Encode(serializer.FormatYAML)
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "kind: Deployment")
	assert.Contains(t, text, "kind: Service")
	assert.Contains(t, text, "---\n")
	assert.Contains(t, text, ArtifactURLPlaceholder)
	assert.Contains(t, text, ConnectionStringPlaceholder)
	assert.NotContains(t, text, "status:")

	out, err = m.Encode(serializer.FormatJSON)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "["))

	f.settings.PlatformStack = ""
	_, err = Preview(f.settings)
	assert.Error(t, err)
}
