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

// Package errors provides structured error types for plan evaluation.
//
// Codes classify failures the way the plan reacts to them:
//
//   - INVALID_CONFIG, MISSING_OUTPUT: fatal, raised before any resource is applied
//   - ALREADY_EXISTS: recovered locally by create-or-ignore steps
//   - ABORTED: a deferred value was never produced because an upstream step failed
//   - TIMEOUT, SERVICE_UNAVAILABLE, INTERNAL: surfaced unchanged
//
// Example usage:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodeMissingOutput,
//	    "required output is not set",
//	    nil,
//	    map[string]any{
//	        "stack":  ref.Name(),
//	        "output": "kubeconfig",
//	    },
//	)
package errors
