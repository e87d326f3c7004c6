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

package serializer

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"plan.yaml":       FormatYAML,
		"PLAN.YML":        FormatYAML,
		"outputs.json":    FormatJSON,
		"report.txt":      FormatTable,
		"report.table":    FormatTable,
		"no-extension":    FormatJSON,
		"archive.tar.gz":  FormatJSON,
		"/a/b/c.settings": FormatJSON,
	}
	for path, want := range tests {
		assert.Equal(t, want, FormatFromPath(path), path)
	}
}

func TestNewReader(t *testing.T) {
	_, err := NewReader("xml", strings.NewReader(""))
	assert.Error(t, err)

	_, err = NewReader(FormatTable, strings.NewReader(""))
	assert.ErrorContains(t, err, "table format")

	r, err := NewReader(FormatJSON, strings.NewReader(`{"stack":"dev"}`))
	require.NoError(t, err)
	var s sample
	require.NoError(t, r.Deserialize(&s))
	assert.Equal(t, "dev", s.Stack)
	assert.NoError(t, r.Close())
}

func TestReader_Deserialize(t *testing.T) {
	t.Run("empty document", func(t *testing.T) {
		r, err := NewReader(FormatYAML, strings.NewReader(""))
		require.NoError(t, err)
		var s sample
		assert.ErrorContains(t, r.Deserialize(&s), "document is empty")
	})

	t.Run("malformed json", func(t *testing.T) {
		r, err := NewReader(FormatJSON, strings.NewReader("{"))
		require.NoError(t, err)
		var s sample
		assert.ErrorContains(t, r.Deserialize(&s), "failed to decode json")
	})

	t.Run("nil reader", func(t *testing.T) {
		var r *Reader
		assert.Error(t, r.Deserialize(&sample{}))
		assert.NoError(t, r.Close())
	})
}

func TestDecode(t *testing.T) {
	s, err := Decode[sample](FormatYAML, []byte("stack: prod\noutputs:\n  kubeconfig: abc\n"))
	require.NoError(t, err)
	assert.Equal(t, "prod", s.Stack)
	assert.Equal(t, "abc", s.Outputs["kubeconfig"])
}

func TestFromFile_Local(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outputs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stack: dev\nports: [8080]\n"), 0o600))

	s, err := FromFile[sample](t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, "dev", s.Stack)
	assert.Equal(t, []int{8080}, s.Ports)

	_, err = FromFile[sample](t.Context(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to open file")
}

func TestFromFile_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/outputs.json" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, HttpReaderUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"stack":"remote","outputs":{"namespace":"demo"}}`))
	}))
	defer srv.Close()

	s, err := FromFile[sample](t.Context(), srv.URL+"/outputs.json")
	require.NoError(t, err)
	assert.Equal(t, "remote", s.Stack)
	assert.Equal(t, "demo", s.Outputs["namespace"])

	_, err = FromFile[sample](t.Context(), srv.URL+"/missing.json")
	assert.ErrorContains(t, err, "404")
}

func TestHttpReader_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("artifact-bytes"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "app.jar")
	r := NewHttpReader(WithUserAgent("test"), WithTotalTimeout(0))
	require.NoError(t, r.DownloadWithContext(t.Context(), srv.URL, path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "artifact-bytes", string(b))

	_, err = r.ReadWithContext(t.Context(), "")
	assert.ErrorContains(t, err, "url is empty")
	_, err = NewHttpReader(WithClient(nil)).ReadWithContext(t.Context(), srv.URL)
	assert.ErrorContains(t, err, "http client is nil")
}
