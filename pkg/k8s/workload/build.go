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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"
)

// BuildDeployment constructs the desired Deployment. The init container
// downloads the artifact into an emptyDir volume that the runtime container
// mounts at the same path.
func BuildDeployment(a Args) (*appsv1.Deployment, error) {
	mounts := []corev1.VolumeMount{{Name: a.VolumeName, MountPath: a.MountPath}}

	ports := make([]corev1.ContainerPort, 0, len(a.Ports))
	for _, p := range a.Ports {
		ports = append(ports, corev1.ContainerPort{
			Name:          p.Name,
			ContainerPort: p.ContainerPort,
			Protocol:      corev1.ProtocolTCP,
		})
	}

	env := make([]corev1.EnvVar, 0, len(a.Env))
	for _, name := range a.EnvNames() {
		env = append(env, corev1.EnvVar{Name: name, Value: a.Env[name]})
	}

	command := append(slices.Clone(a.Command), a.ArtifactPath())

	d := &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      a.Name,
			Namespace: a.Namespace,
			Labels:    a.Labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(a.Replicas),
			Selector: &metav1.LabelSelector{MatchLabels: a.Labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: a.Labels},
				Spec: corev1.PodSpec{
					InitContainers: []corev1.Container{
						{
							Name:         a.InitContainerName,
							Image:        a.InitImage,
							Command:      []string{"wget", a.ArtifactURL, "-O", a.ArtifactPath()},
							VolumeMounts: mounts,
						},
					},
					Containers: []corev1.Container{
						{
							Name:         a.ContainerName,
							Image:        a.RuntimeImage,
							Command:      command,
							Env:          env,
							Ports:        ports,
							VolumeMounts: mounts,
						},
					},
					Volumes: []corev1.Volume{
						{
							Name:         a.VolumeName,
							VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
						},
					},
				},
			},
		},
	}

	hash, err := specHash(d.Labels, d.Spec)
	if err != nil {
		return nil, err
	}
	d.Annotations = map[string]string{SpecHashAnnotation: hash}
	return d, nil
}

// BuildService constructs the desired LoadBalancer Service.
func BuildService(a Args) (*corev1.Service, error) {
	s := &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      a.ServiceName,
			Namespace: a.Namespace,
			Labels:    a.Labels,
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeLoadBalancer,
			Selector: a.Labels,
			Ports: []corev1.ServicePort{
				{
					Name:       a.TargetPort,
					Port:       a.ServicePort,
					TargetPort: intstr.FromString(a.TargetPort),
					Protocol:   corev1.ProtocolTCP,
				},
			},
		},
	}

	hash, err := specHash(s.Labels, s.Spec)
	if err != nil {
		return nil, err
	}
	s.Annotations = map[string]string{SpecHashAnnotation: hash}
	return s, nil
}

// specHash hashes the JSON form of the given values. Map keys are sorted by
// encoding/json, so equal specs hash equally.
func specHash(parts ...any) (string, error) {
	h := sha256.New()
	for _, p := range parts {
		b, err := json.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("failed to hash spec: %w", err)
		}
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}
