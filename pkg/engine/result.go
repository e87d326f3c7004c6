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

package engine

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Change describes what a node did to its remote object.
type Change string

const (
	ChangeSame   Change = "same"
	ChangeCreate Change = "create"
	ChangeUpdate Change = "update"
	ChangeDelete Change = "delete"
	ChangeRead   Change = "read"
	// ChangeNone marks a step that never produced a change (skipped or failed).
	ChangeNone Change = "none"
)

// Mutating reports whether the change altered remote state.
func (c Change) Mutating() bool {
	return c == ChangeCreate || c == ChangeUpdate || c == ChangeDelete
}

// Status is the terminal state of a step.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Operation names a run.
type Operation string

const (
	OperationUp      Operation = "up"
	OperationDestroy Operation = "destroy"
)

// StepResult records the outcome of one node.
type StepResult struct {
	URN      URN           `json:"urn" yaml:"urn"`
	Kind     Kind          `json:"kind" yaml:"kind"`
	Change   Change        `json:"change" yaml:"change"`
	Status   Status        `json:"status" yaml:"status"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result is the outcome of an up or destroy run.
type Result struct {
	UpdateID   string            `json:"updateId" yaml:"updateId"`
	Operation  Operation         `json:"operation" yaml:"operation"`
	StartedAt  time.Time         `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt" yaml:"finishedAt"`
	Steps      []StepResult      `json:"steps" yaml:"steps"`
	Outputs    map[string]string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// Step returns the recorded result for urn.
func (r *Result) Step(urn URN) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.URN == urn {
			return s, true
		}
	}
	return StepResult{}, false
}

// Changed returns the number of steps that altered remote state.
func (r *Result) Changed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StatusSucceeded && s.Change.Mutating() {
			n++
		}
	}
	return n
}

// Counts tallies succeeded steps by change.
func (r *Result) Counts() map[Change]int {
	out := make(map[Change]int)
	for _, s := range r.Steps {
		if s.Status == StatusSucceeded {
			out[s.Change]++
		}
	}
	return out
}

var summaryOrder = []Change{ChangeCreate, ChangeUpdate, ChangeDelete, ChangeSame, ChangeRead}

// Summary renders a one-line human summary, e.g. "Create: 2, Same: 5".
func (r *Result) Summary() string {
	counts := r.Counts()
	title := cases.Title(language.English)

	parts := make([]string, 0, len(summaryOrder)+2)
	for _, c := range summaryOrder {
		if counts[c] > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", title.String(string(c)), counts[c]))
		}
	}
	var failed, skipped int
	for _, s := range r.Steps {
		switch s.Status {
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		case StatusSucceeded:
		}
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%s: %d", title.String(string(StatusFailed)), failed))
	}
	if skipped > 0 {
		parts = append(parts, fmt.Sprintf("%s: %d", title.String(string(StatusSkipped)), skipped))
	}
	if len(parts) == 0 {
		return "No steps"
	}
	return strings.Join(parts, ", ")
}
