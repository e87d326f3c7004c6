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

// Package storage provisions the object storage that holds the application
// artifact and hands the workload a URL to fetch it from.
//
// Declare registers three managed resources on an engine graph, chained by
// their outputs: account, then container, then blob. The blob node uploads the
// artifact and resolves Location.URL.
//
// Backends:
//
//   - azure: ARM storage account and blob container, upload with the account key
//   - s3: AWS S3 or an s3-compatible endpoint, bucket "<account>-<container>"
//   - minio: MinIO server, same bucket naming as s3
//   - oci: one-layer OCI artifact in a registry repository
//   - memory: in-process, for tests and previews
//
// Uploads are idempotent: the SHA-256 of the content is stored as blob
// metadata and an unchanged artifact is not uploaded again. Anonymous read is
// opt-in. Otherwise the URL is signed for a window aligned by SigningWindow,
// so repeated evaluations produce the same URL until the window moves.
package storage
