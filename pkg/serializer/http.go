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
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/NVIDIA/appstack/pkg/defaults"
)

// HttpReaderUserAgent is sent with every request.
const HttpReaderUserAgent = "appstack/1.0"

// HttpReaderOption configures an HttpReader.
type HttpReaderOption func(*HttpReader)

// HttpReader fetches documents over HTTP.
type HttpReader struct {
	UserAgent string
	Client    *http.Client
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) HttpReaderOption {
	return func(r *HttpReader) {
		r.UserAgent = userAgent
	}
}

// WithTotalTimeout sets the client-wide request timeout.
func WithTotalTimeout(timeout time.Duration) HttpReaderOption {
	return func(r *HttpReader) {
		r.Client.Timeout = timeout
	}
}

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) HttpReaderOption {
	return func(r *HttpReader) {
		r.Client = c
	}
}

// NewHttpReader creates an HttpReader with pooled connections and TLS 1.2+.
func NewHttpReader(options ...HttpReaderOption) *HttpReader {
	r := &HttpReader{
		UserAgent: HttpReaderUserAgent,
		Client: &http.Client{
			Timeout:   defaults.HTTPClientTimeout,
			Transport: newTransport(),
		},
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func newTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		DialContext: (&net.Dialer{
			Timeout:   defaults.HTTPConnectTimeout,
			KeepAlive: defaults.HTTPKeepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   defaults.HTTPTLSHandshakeTimeout,
		ResponseHeaderTimeout: defaults.HTTPResponseHeaderTimeout,
		ExpectContinueTimeout: defaults.HTTPExpectContinueTimeout,
		IdleConnTimeout:       defaults.HTTPIdleConnTimeout,
		ForceAttemptHTTP2:     true,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
}

// ReadWithContext GETs url and returns the body. Any status other than 200 is an error.
func (r *HttpReader) ReadWithContext(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("url is empty")
	}
	if r.Client == nil {
		return nil, fmt.Errorf("http client is nil")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for url %s: %w", url, err)
	}
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed for url %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %s", url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

// DownloadWithContext writes the body of url to filePath with mode 0600.
func (r *HttpReader) DownloadWithContext(ctx context.Context, url, filePath string) error {
	data, err := r.ReadWithContext(ctx, url)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", filePath, err)
	}
	return nil
}
