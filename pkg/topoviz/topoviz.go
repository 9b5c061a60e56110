// Package topoviz renders the adapter's endpoint topology: the five
// local UDP listeners, the configured peer destinations and the packet
// paths between them.
package topoviz

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"
)

// Topology is the view rendered into DOT: bound listen addresses keyed
// by endpoint name and destination addresses keyed by peer name. A
// destination mapped to the empty string is disabled.
type Topology struct {
	Listen map[string]string
	Dests  map[string]string
}

func header() string {
	return strings.Join([]string{
		"digraph mia {",
		"  rankdir=LR;",
		"  node [shape=box, fontname=\"monospace\"];",
		"  mia [label=\"MIA router\", shape=ellipse];",
	}, "\n")
}

func listenNodes(listen map[string]string) string {
	names := make([]string, 0, len(listen))
	for name := range listen {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "  listen_%s [label=\"%s\\n%s\"];\n", name, name, listen[name])
		fmt.Fprintf(&b, "  listen_%s -> mia;\n", name)
	}
	return strings.TrimRight(b.String(), "\n")
}

func destNodes(dests map[string]string) string {
	names := make([]string, 0, len(dests))
	for name := range dests {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		addr := dests[name]
		if addr == "" {
			fmt.Fprintf(&b, "  dest_%s [label=\"%s\\ndisabled\", style=dashed];\n", name, name)
			fmt.Fprintf(&b, "  mia -> dest_%s [style=dashed];\n", name)
			continue
		}
		fmt.Fprintf(&b, "  dest_%s [label=\"%s\\n%s\"];\n", name, name, addr)
		fmt.Fprintf(&b, "  mia -> dest_%s;\n", name)
	}
	return strings.TrimRight(b.String(), "\n")
}

// GenerateDOT produces the graph as DOT text.
func (t Topology) GenerateDOT() string {
	result := header()
	result = fmt.Sprintf("%s\n%s", result, listenNodes(t.Listen))
	result = fmt.Sprintf("%s\n%s", result, destNodes(t.Dests))
	result = fmt.Sprintf("%s\n}\n", result)
	return result
}

// GenerateImage renders the graph to SVG.
func (t Topology) GenerateImage() ([]byte, error) {
	return RenderDOT([]byte(t.GenerateDOT()))
}

// RenderDOT renders arbitrary DOT text to SVG.
func RenderDOT(data []byte) ([]byte, error) {
	graph, err := graphviz.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	g, err := graphviz.New(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := g.Render(ctx, graph, graphviz.SVG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
