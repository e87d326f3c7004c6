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

// Package oci stores single files as OCI artifacts using ORAS.
//
// Each file becomes a one-layer OCI 1.1 manifest with artifact type
// "application/vnd.nvidia.appstack.artifact", tagged in a repository:
//
//	ref, err := oci.ParseReference("ghcr.io/nvidia/artifacts")
//	client, err := oci.NewClient(ref, false, false)
//	res, err := client.Push(ctx, oci.TagFor("java", "app.jar"), oci.Blob{
//	    Name:      "app.jar",
//	    MediaType: "application/java-archive",
//	    Data:      data,
//	})
//	url := client.BlobURL(res.Layer)
//
// Registry credentials come from the Docker configuration (~/.docker/config.json)
// through the ORAS credentials package; without one, access is anonymous.
// NewClientWithTarget accepts any oras.Target, which tests use with an
// in-memory store.
package oci
