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

package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// Interface is an alias for kubernetes.Interface to allow easier mocking in tests.
// This enables using fake.NewClientset() which returns kubernetes.Interface.
type Interface = kubernetes.Interface

// Factory builds a client from kubeconfig content. Plans receive the kubeconfig
// of the target cluster as an output of the referenced deployment, so the
// client can only be built once that value resolves.
type Factory func(kubeconfig string) (Interface, error)

var (
	clientOnce   sync.Once
	cachedClient *kubernetes.Clientset
	cachedConfig *rest.Config
	clientErr    error
)

// GetKubeClient returns a singleton Kubernetes client, creating it on first call.
// Used for ambient cluster access (cm:// settings and outputs), never for the
// plan's target cluster.
func GetKubeClient() (Interface, *rest.Config, error) {
	clientOnce.Do(func() {
		cachedClient, cachedConfig, clientErr = BuildKubeClient("")
	})
	return cachedClient, cachedConfig, clientErr
}

// BuildKubeClient creates a Kubernetes client from a kubeconfig path.
// An empty path falls back to KUBECONFIG, then ~/.kube/config, then in-cluster config.
func BuildKubeClient(kubeconfig string) (*kubernetes.Clientset, *rest.Config, error) {
	var config *rest.Config
	var err error

	if kubeconfig == "" {
		kubeconfig = os.Getenv("KUBECONFIG")

		if kubeconfig == "" {
			kubeconfig = filepath.Join(homedir.HomeDir(), ".kube", "config")
			if _, err = os.Stat(kubeconfig); os.IsNotExist(err) {
				kubeconfig = ""
			}
		}
	}

	// Use InClusterConfig directly when no kubeconfig is available
	// This avoids the warning: "Neither --kubeconfig nor --master was specified"
	if kubeconfig == "" {
		config, err = rest.InClusterConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get in-cluster config: %w", err)
		}
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build kube config from %s: %w", kubeconfig, err)
		}
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return client, config, nil
}

// GetKubeClientWithConfig creates a non-cached client for an explicit kubeconfig path.
func GetKubeClientWithConfig(kubeconfig string) (Interface, *rest.Config, error) {
	return BuildKubeClient(kubeconfig)
}

// BuildKubeClientFromContent creates a client from raw kubeconfig YAML.
func BuildKubeClientFromContent(kubeconfig []byte) (*kubernetes.Clientset, *rest.Config, error) {
	if len(strings.TrimSpace(string(kubeconfig))) == 0 {
		return nil, nil, fmt.Errorf("kubeconfig content is empty")
	}

	config, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse kubeconfig content: %w", err)
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return client, config, nil
}

// DefaultFactory builds real clientsets from kubeconfig content.
func DefaultFactory(kubeconfig string) (Interface, error) {
	c, _, err := BuildKubeClientFromContent([]byte(kubeconfig))
	if err != nil {
		return nil, err
	}
	return c, nil
}
