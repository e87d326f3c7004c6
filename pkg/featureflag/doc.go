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

// Package featureflag ensures boolean feature flags exist in a remote
// configuration store.
//
// Registration is add-only: a flag that already exists is left untouched,
// whatever its current value, and the call succeeds. Every other store error
// is returned. The plan runs this as an unmanaged effect: nothing records the
// flag, and destroy never removes it.
//
// Flags are stored the way Azure App Configuration expects them, under
// ".appconfig.featureflag/<name>" with the feature-flag content type:
//
//	{"id":"Beta","description":"","enabled":false,"conditions":{"client_filters":[]}}
//
// AppConfigStore talks to App Configuration through azappconfig; MemoryStore
// keeps settings in process for tests and previews.
package featureflag
