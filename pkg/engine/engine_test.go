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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
)

type fakeResource struct {
	apply   func(ctx context.Context) (Change, error)
	deleted atomic.Bool
	onDel   func()
}

func (f *fakeResource) Apply(ctx context.Context) (Change, error) {
	if f.apply == nil {
		return ChangeCreate, nil
	}
	return f.apply(ctx)
}

func (f *fakeResource) Delete(context.Context) error {
	f.deleted.Store(true)
	if f.onDel != nil {
		f.onDel()
	}
	return nil
}

// recorder captures the order in which nodes ran.
type recorder struct {
	mu    sync.Mutex
	order []URN
}

func (r *recorder) add(u URN) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, u)
}

func (r *recorder) index(u URN) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.order {
		if v == u {
			return i
		}
	}
	return -1
}

func TestEngine_UpResolvesChain(t *testing.T) {
	g := NewGraph()
	rec := &recorder{}

	acctURN := NewURN("memory:storage:Account", "appstorage")
	ctrURN := NewURN("memory:storage:Container", "app")
	blobURN := NewURN("memory:storage:Blob", "app.jar")

	acct := NewOutput[string](acctURN)
	ctr := NewOutput[string](ctrURN)
	url := NewOutput[string](blobURN)

	g.Resource(acctURN, &fakeResource{apply: func(context.Context) (Change, error) {
		rec.add(acctURN)
		acct.Resolve("appstorage")
		return ChangeCreate, nil
	}}, Owns(acct))
	g.Resource(ctrURN, &fakeResource{apply: func(ctx context.Context) (Change, error) {
		rec.add(ctrURN)
		a, err := acct.Await(ctx)
		if err != nil {
			return ChangeNone, err
		}
		ctr.Resolve(a + "/app")
		return ChangeCreate, nil
	}}, DependsOn(acct), Owns(ctr))
	g.Resource(blobURN, &fakeResource{apply: func(ctx context.Context) (Change, error) {
		rec.add(blobURN)
		c, err := ctr.Await(ctx)
		if err != nil {
			return ChangeNone, err
		}
		url.Resolve("memory://" + c + "/app.jar")
		return ChangeCreate, nil
	}}, DependsOn(ctr), Owns(url))
	g.Export("artifact", url)

	res, err := New(Config{}).Up(t.Context(), g)
	require.NoError(t, err)

	assert.Equal(t, []URN{acctURN, ctrURN, blobURN}, rec.order)
	assert.Equal(t, "memory://appstorage/app/app.jar", res.Outputs["artifact"])
	assert.Equal(t, 3, res.Changed())
	assert.Equal(t, OperationUp, res.Operation)
	assert.NotEmpty(t, res.UpdateID)
	assert.Equal(t, "Create: 3", res.Summary())
}

func TestEngine_UpRunsIndependentNodesConcurrently(t *testing.T) {
	g := NewGraph()
	var running, peak atomic.Int32
	release := make(chan struct{})

	body := func(context.Context) (Change, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return ChangeSame, nil
	}
	g.Read("r::a", body)
	g.Read("r::b", body)
	g.Read("r::c", body)

	go func() {
		assert.Eventually(t, func() bool { return running.Load() == 3 }, time.Second, 5*time.Millisecond)
		close(release)
	}()

	_, err := New(Config{}).Up(t.Context(), g)
	require.NoError(t, err)
	assert.Equal(t, int32(3), peak.Load())
}

func TestEngine_UpParallelismLimit(t *testing.T) {
	g := NewGraph()
	var running, peak atomic.Int32
	body := func(context.Context) (Change, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return ChangeSame, nil
	}
	for _, u := range []URN{"r::a", "r::b", "r::c", "r::d"} {
		g.Read(u, body)
	}

	_, err := New(Config{Parallelism: 1}).Up(t.Context(), g)
	require.NoError(t, err)
	assert.Equal(t, int32(1), peak.Load())
}

func TestEngine_UpFailureAbortsDependents(t *testing.T) {
	g := NewGraph()
	boom := cnserrors.New(cnserrors.ErrCodeMissingOutput, "kubeconfig is not set")

	refURN := URN("r::platform")
	kube := NewOutput[string](refURN)
	svc := NewOutput[string]("k::svc")
	dependentRan := atomic.Bool{}

	g.Read(refURN, func(context.Context) (Change, error) { return ChangeNone, boom }, Owns(kube))
	g.Resource("k::svc", &fakeResource{apply: func(context.Context) (Change, error) {
		dependentRan.Store(true)
		svc.Resolve("1.2.3.4")
		return ChangeCreate, nil
	}}, DependsOn(kube), Owns(svc))
	g.Export("service", Format("http://%s/welcome", svc))

	res, err := New(Config{}).Up(t.Context(), g)
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeMissingOutput))
	assert.False(t, dependentRan.Load())
	require.NotNil(t, res)
	assert.Empty(t, res.Outputs)

	step, ok := res.Step(refURN)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, step.Status)
	step, ok = res.Step("k::svc")
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, step.Status)

	_, err = kube.Await(t.Context())
	assert.ErrorIs(t, err, boom)
	_, err = svc.Await(t.Context())
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeAborted))
	assert.Contains(t, res.Summary(), "Failed: 1")
}

func TestEngine_UpUnresolvedOwnedOutputIsInternal(t *testing.T) {
	g := NewGraph()
	out := NewOutput[string]("r::lazy")
	g.Read("r::lazy", noop, Owns(out))
	g.Export("value", out)

	_, err := New(Config{}).Up(t.Context(), g)
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInternal))
}

func TestEngine_UpInvalidGraph(t *testing.T) {
	g := NewGraph()
	g.Read("r::a", noop, DependsOn(NewOutput[string]("r::ghost")))

	res, err := New(Config{}).Up(t.Context(), g)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidConfig))
}

func TestEngine_UpTimeout(t *testing.T) {
	g := NewGraph()
	g.Read("r::slow", func(ctx context.Context) (Change, error) {
		<-ctx.Done()
		return ChangeNone, ctx.Err()
	})

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err := New(Config{}).Up(ctx, g)
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeTimeout))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_UpThrottle(t *testing.T) {
	g := NewGraph()
	g.Read("r::a", noop)
	g.Read("r::b", noop)

	res, err := New(Config{StartRate: 1000, StartBurst: 1}).Up(t.Context(), g)
	require.NoError(t, err)
	assert.Equal(t, map[Change]int{ChangeSame: 2}, res.Counts())
	assert.Equal(t, 0, res.Changed())
}

func TestEngine_Destroy(t *testing.T) {
	g := NewGraph()
	rec := &recorder{}

	refURN := URN("r::platform")
	kube := NewOutput[string](refURN)
	readRan := atomic.Bool{}
	effectRan := atomic.Bool{}

	g.Read(refURN, func(context.Context) (Change, error) {
		readRan.Store(true)
		kube.Resolve("kubeconfig")
		return ChangeRead, nil
	}, Owns(kube))
	g.Effect("f::beta", func(context.Context) (Change, error) {
		effectRan.Store(true)
		return ChangeCreate, nil
	}, DependsOn(kube))

	acct := &fakeResource{onDel: func() { rec.add("s::account") }}
	ctr := &fakeResource{onDel: func() { rec.add("s::container") }}
	blob := &fakeResource{onDel: func() { rec.add("s::blob") }}
	g.Resource("s::account", acct)
	g.Resource("s::container", ctr, DependsOn(NewOutput[string]("s::account")))
	g.Resource("s::blob", blob, DependsOn(NewOutput[string]("s::container")))

	g.Component("c::app")
	dep := &fakeResource{onDel: func() { rec.add("k::deployment") }}
	g.Resource("k::deployment", dep, Parent("c::app"), DependsOn(kube, NewOutput[string]("s::blob")))

	res, err := New(Config{}).Destroy(t.Context(), g)
	require.NoError(t, err)
	assert.Equal(t, OperationDestroy, res.Operation)

	assert.True(t, readRan.Load())
	assert.False(t, effectRan.Load(), "effects are unmanaged and never run on destroy")
	for _, r := range []*fakeResource{acct, ctr, blob, dep} {
		assert.True(t, r.deleted.Load())
	}

	assert.Less(t, rec.index("k::deployment"), rec.index("s::blob"))
	assert.Less(t, rec.index("s::blob"), rec.index("s::container"))
	assert.Less(t, rec.index("s::container"), rec.index("s::account"))

	step, ok := res.Step("f::beta")
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, step.Status)
	assert.Equal(t, 4, res.Counts()[ChangeDelete])
}

func TestEngine_DestroyReadFailure(t *testing.T) {
	g := NewGraph()
	boom := errors.New("stack not found")
	g.Read("r::platform", func(context.Context) (Change, error) { return ChangeNone, boom })
	res := &fakeResource{}
	g.Resource("s::account", res, DependsOn(NewOutput[string]("r::platform")))

	_, err := New(Config{}).Destroy(t.Context(), g)
	require.ErrorIs(t, err, boom)
	assert.False(t, res.deleted.Load())
}

func TestResult_Summary(t *testing.T) {
	r := &Result{Steps: []StepResult{
		{URN: "a::1", Change: ChangeCreate, Status: StatusSucceeded},
		{URN: "a::2", Change: ChangeSame, Status: StatusSucceeded},
		{URN: "a::3", Change: ChangeUpdate, Status: StatusSucceeded},
		{URN: "a::4", Change: ChangeNone, Status: StatusSkipped},
	}}
	assert.Equal(t, "Create: 1, Update: 1, Same: 1, Skipped: 1", r.Summary())
	assert.Equal(t, 2, r.Changed())
	assert.Equal(t, "No steps", (&Result{}).Summary())
}

func TestWriteMetrics(t *testing.T) {
	g := NewGraph()
	g.Read("r::a", noop)
	_, err := New(Config{}).Up(t.Context(), g)
	require.NoError(t, err)

	path := t.TempDir() + "/appstack.prom"
	require.NoError(t, WriteMetrics(path))
	assert.FileExists(t, path)
}
