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
	"io"
	"strings"

	"github.com/emicklei/dot"
)

// RenderFormat selects the graph output syntax.
type RenderFormat string

const (
	// RenderDOT outputs Graphviz DOT.
	RenderDOT RenderFormat = "dot"
	// RenderMermaid outputs a Mermaid flowchart.
	RenderMermaid RenderFormat = "mermaid"
)

// SupportedRenderFormats returns the accepted format names.
func SupportedRenderFormats() []string {
	return []string{string(RenderDOT), string(RenderMermaid)}
}

var kindShapes = map[Kind]string{
	KindResource:  "box",
	KindRead:      "ellipse",
	KindEffect:    "hexagon",
	KindComponent: "folder",
}

// Render writes the graph to w. Children of a component are drawn inside a
// cluster named after it; edges point from a dependency to its dependent.
func (g *Graph) Render(w io.Writer, format RenderFormat) error {
	dg := g.build()

	var out string
	switch format {
	case RenderMermaid:
		out = dot.MermaidGraph(dg, dot.MermaidTopToBottom)
	case RenderDOT, "":
		out = dg.String()
	default:
		return fmt.Errorf("unsupported graph format %q (supported: %s)",
			format, strings.Join(SupportedRenderFormats(), ", "))
	}

	_, err := io.WriteString(w, out)
	return err
}

func (g *Graph) build() *dot.Graph {
	dg := dot.NewGraph(dot.Directed)
	dg.Attr("rankdir", "TB")
	dg.NodeInitializer(func(n dot.Node) {
		n.Attr("fontname", "Arial")
	})

	clusters := make(map[URN]*dot.Graph)
	for _, n := range g.Nodes() {
		if n.Kind != KindComponent {
			continue
		}
		c := dg.Subgraph("cluster_"+n.URN.Name(), dot.ClusterOption{})
		c.Attr("label", n.URN.Name()+"\\n["+n.URN.Type()+"]")
		c.Attr("style", "rounded")
		clusters[n.URN] = c
	}

	nodes := make(map[URN]dot.Node, len(g.order))
	for _, n := range g.Nodes() {
		if n.Kind == KindComponent {
			continue
		}
		parent := dg
		if c, ok := clusters[n.Parent]; ok {
			parent = c
		}
		dn := parent.Node(string(n.URN))
		dn.Label(n.URN.Name() + "\\n[" + n.URN.Type() + "]")
		dn.Attr("shape", kindShapes[n.Kind])
		if n.Kind == KindEffect {
			dn.Attr("style", "dashed")
		}
		nodes[n.URN] = dn
	}

	for _, n := range g.Nodes() {
		to, ok := nodes[n.URN]
		if !ok {
			continue
		}
		for _, d := range n.deps {
			if from, ok := nodes[d]; ok {
				dg.Edge(from, to)
			}
		}
	}

	for _, ex := range g.exports {
		en := dg.Node("output:" + ex.Name)
		en.Label(ex.Name)
		en.Attr("shape", "note")
		if ex.Value == nil {
			continue
		}
		for _, d := range ex.Value.Dependencies() {
			if from, ok := nodes[d]; ok {
				dg.Edge(from, en).Attr("style", "dotted")
			}
		}
	}

	return dg
}
