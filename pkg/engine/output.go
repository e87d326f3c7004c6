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
	"context"
	"fmt"
	"slices"
	"sync"

	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
)

// Input is any declaration argument that carries dependencies on graph nodes.
type Input interface {
	Dependencies() []URN
}

// Settable is implemented by outputs a node owns, so the engine can reject
// them when the node never runs.
type Settable interface {
	Input
	Reject(err error)
}

// Output is a deferred value produced by a graph node. It is resolved at most
// once; every Await after that returns the same value or error.
type Output[T any] struct {
	deps []URN

	once sync.Once
	done chan struct{}
	val  T
	err  error

	// derived outputs compute lazily from a source output
	mu       sync.Mutex
	derive   func(ctx context.Context) (T, error)
	computed bool
}

// NewOutput creates an unresolved output produced by the given nodes.
func NewOutput[T any](producers ...URN) *Output[T] {
	return &Output[T]{
		deps: slices.Clone(producers),
		done: make(chan struct{}),
	}
}

// Resolved creates an output that is known at declaration time.
func Resolved[T any](v T) *Output[T] {
	o := NewOutput[T]()
	o.Resolve(v)
	return o
}

// Dependencies returns the URNs of the nodes this output waits on.
func (o *Output[T]) Dependencies() []URN {
	return slices.Clone(o.deps)
}

// Resolve sets the value. Only the first Resolve or Reject takes effect.
func (o *Output[T]) Resolve(v T) {
	if o.derive != nil {
		return
	}
	o.once.Do(func() {
		o.val = v
		close(o.done)
	})
}

// Reject fails the output. Only the first Resolve or Reject takes effect.
func (o *Output[T]) Reject(err error) {
	if o.derive != nil {
		return
	}
	if err == nil {
		err = cnserrors.New(cnserrors.ErrCodeInternal, "output rejected without error")
	}
	o.once.Do(func() {
		o.err = err
		close(o.done)
	})
}

// IsResolved reports whether a value or error is available without blocking.
func (o *Output[T]) IsResolved() bool {
	if o.derive != nil {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.computed
	}
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// Await blocks until the output resolves or ctx is done.
func (o *Output[T]) Await(ctx context.Context) (T, error) {
	if o.derive != nil {
		return o.awaitDerived(ctx)
	}
	select {
	case <-o.done:
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (o *Output[T]) awaitDerived(ctx context.Context) (T, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.computed {
		return o.val, o.err
	}

	v, err := o.derive(ctx)
	if err != nil && ctx.Err() != nil {
		// cancellation of this caller is not the value's fault
		return v, err
	}
	o.val, o.err, o.computed = v, err, true
	return v, err
}

// Apply derives a new output from o. fn runs once, the first time the derived
// output is awaited after o resolves. The derived output inherits o's dependencies.
func Apply[T, U any](o *Output[T], fn func(T) (U, error)) *Output[U] {
	return &Output[U]{
		deps: o.Dependencies(),
		derive: func(ctx context.Context) (U, error) {
			var zero U
			v, err := o.Await(ctx)
			if err != nil {
				return zero, err
			}
			return fn(v)
		},
	}
}

// Format derives a string output with fmt.Sprintf(format, value).
func Format[T any](format string, o *Output[T]) *Output[string] {
	return Apply(o, func(v T) (string, error) {
		return fmt.Sprintf(format, v), nil
	})
}

// DependenciesOf flattens and de-duplicates the dependencies of inputs.
func DependenciesOf(inputs ...Input) []URN {
	seen := make(map[URN]struct{})
	var out []URN
	for _, in := range inputs {
		if in == nil {
			continue
		}
		for _, d := range in.Dependencies() {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out
}
