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

package stack

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
	"github.com/NVIDIA/appstack/pkg/header"
	"github.com/NVIDIA/appstack/pkg/serializer"
)

const testConnectionString = "Endpoint=https://cfgstore1.azconfig.io;Id=abc;Secret=c2VjcmV0"

func platformDoc() *Document {
	return &Document{
		Stack: "platform-dev",
		Outputs: map[string]string{
			OutputKubeconfig:                  "apiVersion: v1\nkind: Config\n",
			OutputNamespace:                   "demo",
			OutputConfigStore:                 "cfgstore1",
			OutputConfigStoreConnectionString: testConnectionString,
		},
	}
}

func staticLoader(doc *Document) Loader {
	return func(context.Context, string) (*Document, error) { return doc, nil }
}

func TestReadReference(t *testing.T) {
	ref, err := ReadReference(t.Context(), "cm://platform/outputs", staticLoader(platformDoc()))
	require.NoError(t, err)
	assert.Equal(t, "platform-dev", ref.Name())
	assert.Equal(t, "cm://platform/outputs", ref.Location())
	assert.Equal(t, []string{
		OutputConfigStore, OutputConfigStoreConnectionString, OutputKubeconfig, OutputNamespace,
	}, ref.OutputNames())

	v, ok := ref.Output(OutputNamespace)
	assert.True(t, ok)
	assert.Equal(t, "demo", v)
}

func TestReadReference_Errors(t *testing.T) {
	_, err := ReadReference(t.Context(), "", nil)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidConfig))

	boom := errors.New("configmap not found")
	_, err = ReadReference(t.Context(), "cm://platform/outputs",
		func(context.Context, string) (*Document, error) { return nil, boom })
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeNotFound))
	assert.ErrorIs(t, err, boom)

	settingsDoc := platformDoc()
	settingsDoc.Header = header.Header{Kind: header.KindDeploymentPlan}
	_, err = ReadReference(t.Context(), "plan.yaml", staticLoader(settingsDoc))
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidConfig))
}

func TestReadReference_DefaultLoaderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platform.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stack: platform\noutputs:\n  namespace: demo\n"), 0o600))

	ref, err := ReadReference(t.Context(), path, nil)
	require.NoError(t, err)
	v, err := ref.RequireOutput(OutputNamespace)
	require.NoError(t, err)
	assert.Equal(t, "demo", v)
}

func TestRequireOutput(t *testing.T) {
	doc := platformDoc()
	doc.Outputs[OutputConfigStore] = "  "
	ref := NewReference("loc", doc)

	_, err := ref.RequireOutput(OutputConfigStore)
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeMissingOutput))

	_, err = ref.RequireOutput("absent")
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeMissingOutput))

	nameless := NewReference("cm://x/y", nil)
	assert.Equal(t, "cm://x/y", nameless.Name())
}

func TestNewReference_CopiesOutputs(t *testing.T) {
	doc := platformDoc()
	ref := NewReference("loc", doc)
	doc.Outputs[OutputNamespace] = "changed"

	v, _ := ref.Output(OutputNamespace)
	assert.Equal(t, "demo", v)
}

func TestResolveRuntimeConfig(t *testing.T) {
	ref := NewReference("loc", platformDoc())

	t.Run("reference", func(t *testing.T) {
		s := validSettings()
		rc, err := ResolveRuntimeConfig(s, ref)
		require.NoError(t, err)
		assert.Equal(t, testConnectionString, rc.ConnectionString)
		assert.Equal(t, "cfgstore1", rc.Store)
		assert.Equal(t, SourceReference, rc.Source)

		again, err := ResolveRuntimeConfig(s, ref)
		require.NoError(t, err)
		assert.Equal(t, rc, again, "resolution is deterministic")
	})

	t.Run("literal", func(t *testing.T) {
		s := validSettings()
		s.Config.Source = SourceLiteral
		s.ConfigConnectionString = "Endpoint=https://literal"
		rc, err := ResolveRuntimeConfig(s, ref)
		require.NoError(t, err)
		assert.Equal(t, "Endpoint=https://literal", rc.ConnectionString)
		assert.Equal(t, SourceLiteral, rc.Source)
	})

	t.Run("literal without value", func(t *testing.T) {
		s := validSettings()
		s.Config.Source = SourceLiteral
		_, err := ResolveRuntimeConfig(s, ref)
		assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidConfig))
	})

	t.Run("reference without output", func(t *testing.T) {
		doc := platformDoc()
		delete(doc.Outputs, OutputConfigStoreConnectionString)
		_, err := ResolveRuntimeConfig(validSettings(), NewReference("loc", doc))
		assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeMissingOutput))
	})

	t.Run("unknown source", func(t *testing.T) {
		s := validSettings()
		s.Config.Source = "env"
		_, err := ResolveRuntimeConfig(s, ref)
		assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidConfig))
	})
}

func TestResolvePlatform(t *testing.T) {
	p, err := ResolvePlatform(validSettings(), NewReference("loc", platformDoc()))
	require.NoError(t, err)
	assert.Equal(t, "demo", p.Namespace)
	assert.NotEmpty(t, p.Kubeconfig)
	assert.Equal(t, testConnectionString, p.Runtime.ConnectionString)

	for _, missing := range []string{OutputKubeconfig, OutputNamespace, OutputConfigStore} {
		doc := platformDoc()
		delete(doc.Outputs, missing)
		_, err := ResolvePlatform(validSettings(), NewReference("loc", doc))
		require.Error(t, err, missing)
		assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeMissingOutput), missing)
		assert.Contains(t, err.Error(), missing)
	}
}

func TestPublish(t *testing.T) {
	doc := NewDocument("app", "update-1", map[string]string{OutputService: "http://1.2.3.4/welcome"})
	assert.False(t, doc.Timestamp.IsZero())
	assert.Equal(t, header.KindStackOutputs, doc.Kind)
	assert.Equal(t, header.APIVersion, doc.APIVersion)

	path := filepath.Join(t.TempDir(), "outputs.json")
	require.NoError(t, Publish(t.Context(), path, serializer.FormatJSON, doc))

	ref, err := ReadReference(t.Context(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "app", ref.Name())
	v, err := ref.RequireOutput(OutputService)
	require.NoError(t, err)
	assert.Equal(t, "http://1.2.3.4/welcome", v)
}

func TestPublish_ConfigMapRoundTrip(t *testing.T) {
	clientset := fake.NewClientset()
	doc := NewDocument("app", "update-2", map[string]string{OutputService: "http://5.6.7.8/welcome"})

	w := serializer.NewConfigMapWriter("demo", "app-outputs", serializer.FormatYAML,
		serializer.WithKubeClient(clientset))
	require.NoError(t, w.Serialize(t.Context(), doc))

	got, err := serializer.FromConfigMap[Document](t.Context(), clientset, "demo", "app-outputs")
	require.NoError(t, err)
	assert.Equal(t, "update-2", got.UpdateID)
	assert.Equal(t, "http://5.6.7.8/welcome", got.Outputs[OutputService])

	cm, err := clientset.CoreV1().ConfigMaps("demo").Get(t.Context(), "app-outputs", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "outputs", cm.Labels["app.kubernetes.io/component"])
}
