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
	"sort"
	"strings"

	cnserrors "github.com/NVIDIA/appstack/pkg/errors"
)

// URN identifies a node in the graph as "<type>::<name>".
type URN string

// NewURN builds a URN from a resource type token and a logical name.
func NewURN(typ, name string) URN {
	return URN(typ + "::" + name)
}

// Type returns the type token of the URN.
func (u URN) Type() string {
	t, _, _ := strings.Cut(string(u), "::")
	return t
}

// Name returns the logical name of the URN.
func (u URN) Name() string {
	_, n, ok := strings.Cut(string(u), "::")
	if !ok {
		return string(u)
	}
	return n
}

// Kind classifies how a node participates in up and destroy.
type Kind string

const (
	// KindResource is a managed remote object: created or updated on up, deleted on destroy.
	KindResource Kind = "resource"
	// KindRead reads external state; it runs on both up and destroy.
	KindRead Kind = "read"
	// KindEffect is an unmanaged side effect; it runs on up only and is never deleted.
	KindEffect Kind = "effect"
	// KindComponent groups child nodes and has no remote state of its own.
	KindComponent Kind = "component"
)

// Resource is a managed remote object.
type Resource interface {
	// Apply creates or updates the object and reports what changed.
	Apply(ctx context.Context) (Change, error)
	// Delete removes the object. Deleting an absent object is not an error.
	Delete(ctx context.Context) error
}

// Func adapts a plain function into a node body.
type Func func(ctx context.Context) (Change, error)

// Node is a single vertex of the graph.
type Node struct {
	URN    URN
	Kind   Kind
	Parent URN

	deps    []URN
	owns    []Settable
	apply   Func
	destroy func(ctx context.Context) error
}

// Dependencies returns the URNs this node waits on, sorted.
func (n *Node) Dependencies() []URN {
	return slices.Clone(n.deps)
}

// Option configures a node at registration.
type Option func(*Node)

// DependsOn adds the producers of inputs as dependencies.
func DependsOn(inputs ...Input) Option {
	return func(n *Node) {
		n.deps = append(n.deps, DependenciesOf(inputs...)...)
	}
}

// Parent registers the node as a child of a component. The child depends on its parent.
func Parent(urn URN) Option {
	return func(n *Node) {
		n.Parent = urn
		if urn != "" {
			n.deps = append(n.deps, urn)
		}
	}
}

// Owns lists outputs the node is responsible for resolving.
func Owns(outs ...Settable) Option {
	return func(n *Node) {
		n.owns = append(n.owns, outs...)
	}
}

// Export is a named output of the whole graph.
type Export struct {
	Name  string
	Value *Output[string]
}

// Graph is the set of declared nodes and exports. Declaration methods record
// problems instead of failing; Validate reports them all together.
type Graph struct {
	nodes   map[URN]*Node
	order   []URN
	exports []Export
	errs    []error
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[URN]*Node)}
}

// Resource registers a managed resource.
func (g *Graph) Resource(urn URN, r Resource, opts ...Option) *Node {
	n := &Node{URN: urn, Kind: KindResource, apply: r.Apply, destroy: r.Delete}
	return g.add(n, opts)
}

// Read registers a node that reads external state.
func (g *Graph) Read(urn URN, fn Func, opts ...Option) *Node {
	return g.add(&Node{URN: urn, Kind: KindRead, apply: fn}, opts)
}

// Effect registers an unmanaged side effect.
func (g *Graph) Effect(urn URN, fn Func, opts ...Option) *Node {
	return g.add(&Node{URN: urn, Kind: KindEffect, apply: fn}, opts)
}

// Component registers a grouping node.
func (g *Graph) Component(urn URN, opts ...Option) *Node {
	fn := func(context.Context) (Change, error) { return ChangeSame, nil }
	return g.add(&Node{URN: urn, Kind: KindComponent, apply: fn}, opts)
}

// Export publishes a named output of the graph.
func (g *Graph) Export(name string, v *Output[string]) {
	for _, e := range g.exports {
		if e.Name == name {
			g.errs = append(g.errs, fmt.Errorf("duplicate export %q", name))
			return
		}
	}
	g.exports = append(g.exports, Export{Name: name, Value: v})
}

func (g *Graph) add(n *Node, opts []Option) *Node {
	for _, o := range opts {
		o(n)
	}
	n.deps = DependenciesOf(urnList(n.deps))

	if _, exists := g.nodes[n.URN]; exists {
		g.errs = append(g.errs, fmt.Errorf("duplicate node %s", n.URN))
		return g.nodes[n.URN]
	}
	if n.apply == nil {
		g.errs = append(g.errs, fmt.Errorf("node %s has no body", n.URN))
	}
	g.nodes[n.URN] = n
	g.order = append(g.order, n.URN)
	return n
}

type urnList []URN

func (l urnList) Dependencies() []URN { return l }

// Node returns a registered node.
func (g *Graph) Node(urn URN) (*Node, bool) {
	n, ok := g.nodes[urn]
	return n, ok
}

// Nodes returns the nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, u := range g.order {
		out = append(out, g.nodes[u])
	}
	return out
}

// Exports returns the declared exports in declaration order.
func (g *Graph) Exports() []Export {
	return slices.Clone(g.exports)
}

// Validate checks for duplicate declarations, unknown dependencies and cycles.
// On success it returns the nodes in a deterministic topological order.
func (g *Graph) Validate() ([]*Node, error) {
	problems := slices.Clone(g.errs)

	for _, u := range g.order {
		n := g.nodes[u]
		for _, d := range n.deps {
			if _, ok := g.nodes[d]; !ok {
				problems = append(problems, fmt.Errorf("node %s depends on unknown node %s", u, d))
			}
		}
		if n.Parent != "" {
			if p, ok := g.nodes[n.Parent]; ok && p.Kind != KindComponent {
				problems = append(problems, fmt.Errorf("node %s has non-component parent %s", u, n.Parent))
			}
		}
	}
	for _, e := range g.exports {
		if e.Value == nil {
			problems = append(problems, fmt.Errorf("export %q has no value", e.Name))
			continue
		}
		for _, d := range e.Value.Dependencies() {
			if _, ok := g.nodes[d]; !ok {
				problems = append(problems, fmt.Errorf("export %q depends on unknown node %s", e.Name, d))
			}
		}
	}
	if len(problems) > 0 {
		return nil, invalidGraph(problems)
	}

	sorted, cycle := g.topoSort()
	if len(cycle) > 0 {
		return nil, cnserrors.NewWithContext(cnserrors.ErrCodeInvalidConfig,
			"dependency cycle detected", map[string]any{"nodes": cycle})
	}
	return sorted, nil
}

func invalidGraph(problems []error) error {
	msgs := make([]string, 0, len(problems))
	for _, p := range problems {
		msgs = append(msgs, p.Error())
	}
	return cnserrors.NewWithContext(cnserrors.ErrCodeInvalidConfig,
		"invalid graph: "+strings.Join(msgs, "; "), map[string]any{"problems": len(problems)})
}

// topoSort runs Kahn's algorithm. Ties are broken by declaration order so the
// result is stable. Nodes left over belong to a cycle.
func (g *Graph) topoSort() ([]*Node, []URN) {
	indegree := make(map[URN]int, len(g.nodes))
	dependents := make(map[URN][]URN, len(g.nodes))
	pos := make(map[URN]int, len(g.order))
	for i, u := range g.order {
		pos[u] = i
		indegree[u] = len(g.nodes[u].deps)
		for _, d := range g.nodes[u].deps {
			dependents[d] = append(dependents[d], u)
		}
	}

	var ready []URN
	for _, u := range g.order {
		if indegree[u] == 0 {
			ready = append(ready, u)
		}
	}

	sorted := make([]*Node, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return pos[ready[i]] < pos[ready[j]] })
		u := ready[0]
		ready = ready[1:]
		sorted = append(sorted, g.nodes[u])
		for _, c := range dependents[u] {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if len(sorted) == len(g.nodes) {
		return sorted, nil
	}
	var cycle []URN
	for _, u := range g.order {
		if indegree[u] > 0 {
			cycle = append(cycle, u)
		}
	}
	return nil, cycle
}
