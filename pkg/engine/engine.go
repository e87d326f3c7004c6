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
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
)

// Config tunes the scheduler.
type Config struct {
	// Parallelism caps the number of concurrently running nodes. Zero means unbounded.
	Parallelism int
	// StartRate throttles node starts per second. Zero disables the throttle.
	StartRate rate.Limit
	// StartBurst is the token bucket size when StartRate is set.
	StartBurst int
}

// Engine executes graphs.
type Engine struct {
	cfg     Config
	limiter *rate.Limiter
}

// New creates an Engine.
func New(cfg Config) *Engine {
	e := &Engine{cfg: cfg}
	if cfg.StartRate > 0 {
		burst := cfg.StartBurst
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(cfg.StartRate, burst)
	}
	return e
}

type stepFunc func(ctx context.Context, n *Node) (Change, error)

// Up applies every node once its dependencies have completed. Independent
// nodes run concurrently. The first failure cancels the remaining nodes, and
// outputs that were never produced are rejected with ErrCodeAborted.
func (e *Engine) Up(ctx context.Context, g *Graph) (*Result, error) {
	sorted, err := g.Validate()
	if err != nil {
		recordRun(OperationUp, err)
		return nil, err
	}

	res := newResult(OperationUp)
	slog.Info("starting update", "updateId", res.UpdateID, "nodes", len(sorted))

	steps, runErr := e.run(ctx, OperationUp, sorted, func(n *Node) []URN { return n.deps }, applyStep)
	res.Steps = steps
	settleAll(g, runErr)

	if runErr != nil {
		return e.finish(res, runErr)
	}

	res.Outputs = make(map[string]string, len(g.exports))
	for _, ex := range g.exports {
		v, err := ex.Value.Await(ctx)
		if err != nil {
			return e.finish(res, cnserrors.WrapWithContext(codeFor(err),
				fmt.Sprintf("failed to resolve output %q", ex.Name), err,
				map[string]any{"output": ex.Name}))
		}
		res.Outputs[ex.Name] = v
	}

	return e.finish(res, nil)
}

// Destroy runs the read nodes needed to reach remote state, then deletes
// managed resources in reverse dependency order. Effects and components are
// left alone.
func (e *Engine) Destroy(ctx context.Context, g *Graph) (*Result, error) {
	sorted, err := g.Validate()
	if err != nil {
		recordRun(OperationDestroy, err)
		return nil, err
	}

	res := newResult(OperationDestroy)
	slog.Info("starting destroy", "updateId", res.UpdateID, "nodes", len(sorted))

	// reads (and the components that group them) that do not depend on managed state
	readable := make(map[URN]bool)
	var reads []*Node
	for _, n := range sorted {
		if n.Kind != KindRead && n.Kind != KindComponent {
			continue
		}
		ok := true
		for _, d := range n.deps {
			if !readable[d] {
				ok = false
				break
			}
		}
		if ok {
			readable[n.URN] = true
			reads = append(reads, n)
		}
	}

	steps, runErr := e.run(ctx, OperationDestroy, reads, func(n *Node) []URN { return n.deps }, applyStep)
	res.Steps = append(res.Steps, steps...)
	if runErr != nil {
		settleAll(g, runErr)
		return e.finish(res, runErr)
	}

	var resources []*Node
	for _, n := range slices.Backward(sorted) {
		if n.Kind == KindResource {
			resources = append(resources, n)
		}
	}
	blockers := resourceDependents(g, sorted)

	steps, runErr = e.run(ctx, OperationDestroy, resources,
		func(n *Node) []URN { return blockers[n.URN] },
		func(ctx context.Context, n *Node) (Change, error) {
			if err := n.destroy(ctx); err != nil {
				return ChangeNone, err
			}
			return ChangeDelete, nil
		})
	res.Steps = append(res.Steps, steps...)

	for _, n := range sorted {
		if readable[n.URN] || n.Kind == KindResource {
			continue
		}
		slog.Debug("leaving node in place", "urn", n.URN, "kind", n.Kind)
		res.Steps = append(res.Steps, StepResult{URN: n.URN, Kind: n.Kind, Change: ChangeNone, Status: StatusSkipped})
	}
	settleAll(g, runErr)

	return e.finish(res, runErr)
}

// run schedules nodes concurrently. deps returns the URNs a node waits on;
// URNs outside nodes are treated as satisfied.
func (e *Engine) run(ctx context.Context, op Operation, nodes []*Node, deps func(*Node) []URN, step stepFunc) ([]StepResult, error) {
	done := make(map[URN]chan struct{}, len(nodes))
	for _, n := range nodes {
		done[n.URN] = make(chan struct{})
	}

	var mu sync.Mutex
	succeeded := make(map[URN]bool, len(nodes))
	isSucceeded := func(u URN) bool {
		mu.Lock()
		defer mu.Unlock()
		return succeeded[u]
	}

	results := make([]StepResult, len(nodes))
	eg, gctx := errgroup.WithContext(ctx)
	if e.cfg.Parallelism > 0 {
		eg.SetLimit(e.cfg.Parallelism)
	}

	for i, n := range nodes {
		eg.Go(func() error {
			defer close(done[n.URN])

			sr := StepResult{URN: n.URN, Kind: n.Kind, Change: ChangeNone, Status: StatusSkipped}
			defer func() {
				results[i] = sr
				recordStep(op, sr)
			}()

			for _, d := range deps(n) {
				ch, ok := done[d]
				if !ok {
					continue
				}
				select {
				case <-ch:
				case <-gctx.Done():
					return nil
				}
				if !isSucceeded(d) {
					slog.Debug("skipping node, dependency did not succeed", "urn", n.URN, "dependency", d)
					return nil
				}
			}
			if gctx.Err() != nil {
				return nil
			}
			if err := e.throttle(gctx); err != nil {
				return nil
			}

			slog.Debug("running node", "op", op, "urn", n.URN, "kind", n.Kind)
			start := time.Now()
			nodesInFlight.Inc()
			change, err := step(gctx, n)
			nodesInFlight.Dec()
			sr.Duration = time.Since(start)

			if err != nil {
				sr.Status = StatusFailed
				sr.Error = err.Error()
				slog.Error("node failed", "op", op, "urn", n.URN, "error", err)
				return cnserrors.WrapWithContext(codeFor(err),
					fmt.Sprintf("%s %s failed", op, n.URN), err,
					map[string]any{"urn": string(n.URN), "kind": string(n.Kind)})
			}

			sr.Status = StatusSucceeded
			sr.Change = change
			mu.Lock()
			succeeded[n.URN] = true
			mu.Unlock()
			slog.Info("node complete", "op", op, "urn", n.URN, "change", change, "duration", sr.Duration)
			return nil
		})
	}

	err := eg.Wait()
	return results, err
}

func (e *Engine) throttle(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	start := time.Now()
	err := e.limiter.Wait(ctx)
	throttleWaitSeconds.Add(time.Since(start).Seconds())
	return err
}

func (e *Engine) finish(res *Result, err error) (*Result, error) {
	res.FinishedAt = time.Now().UTC()
	recordRun(res.Operation, err)
	if err != nil {
		slog.Error("run failed", "op", res.Operation, "updateId", res.UpdateID, "summary", res.Summary(), "error", err)
		return res, err
	}
	slog.Info("run complete", "op", res.Operation, "updateId", res.UpdateID,
		"summary", res.Summary(), "duration", res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

func newResult(op Operation) *Result {
	return &Result{
		UpdateID:  uuid.NewString(),
		Operation: op,
		StartedAt: time.Now().UTC(),
	}
}

// applyStep runs the node body and settles the outputs it owns, so dependents
// never wait on a value the node forgot to resolve.
func applyStep(ctx context.Context, n *Node) (Change, error) {
	change, err := n.apply(ctx)
	for _, o := range n.owns {
		if err != nil {
			o.Reject(err)
			continue
		}
		o.Reject(cnserrors.NewWithContext(cnserrors.ErrCodeInternal,
			"node completed without producing output", map[string]any{"urn": string(n.URN)}))
	}
	return change, err
}

// settleAll rejects every owned output that is still pending.
func settleAll(g *Graph, cause error) {
	for _, n := range g.nodes {
		for _, o := range n.owns {
			o.Reject(aborted(n.URN, cause))
		}
	}
}

func aborted(urn URN, cause error) error {
	msg := fmt.Sprintf("output of %s was not produced", urn)
	if cause == nil {
		return cnserrors.NewWithContext(cnserrors.ErrCodeAborted, msg, map[string]any{"urn": string(urn)})
	}
	return cnserrors.WrapWithContext(cnserrors.ErrCodeAborted, msg, cause, map[string]any{"urn": string(urn)})
}

func codeFor(err error) cnserrors.ErrorCode {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return cnserrors.ErrCodeTimeout
	}
	if code := cnserrors.CodeOf(err); code != "" {
		return code
	}
	return cnserrors.ErrCodeInternal
}

// resourceDependents maps each managed resource to the nearest managed
// resources that depend on it, looking through non-resource nodes. A resource
// is deleted only after those are gone.
func resourceDependents(g *Graph, sorted []*Node) map[URN][]URN {
	dependents := make(map[URN][]URN, len(sorted))
	for _, n := range sorted {
		for _, d := range n.deps {
			dependents[d] = append(dependents[d], n.URN)
		}
	}

	out := make(map[URN][]URN)
	for _, n := range sorted {
		if n.Kind != KindResource {
			continue
		}
		seen := map[URN]bool{n.URN: true}
		stack := slices.Clone(dependents[n.URN])
		var found []URN
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[u] {
				continue
			}
			seen[u] = true
			if g.nodes[u].Kind == KindResource {
				found = append(found, u)
				continue
			}
			stack = append(stack, dependents[u]...)
		}
		slices.Sort(found)
		out[n.URN] = found
	}
	return out
}
