package topoviz

import (
	"strings"
	"testing"
)

func TestGenerateDOT(t *testing.T) {
	topo := Topology{
		Listen: map[string]string{
			"tpn":  "127.0.0.1:6001",
			"sokf": "127.0.0.1:6005",
		},
		Dests: map[string]string{
			"md":  "10.0.0.2:7000",
			"kba": "",
		},
	}
	dot := topo.GenerateDOT()

	for _, want := range []string{
		"digraph mia {",
		"listen_tpn [label=\"tpn\\n127.0.0.1:6001\"]",
		"listen_sokf -> mia;",
		"dest_md [label=\"md\\n10.0.0.2:7000\"]",
		"mia -> dest_md;",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}

	// A disabled destination is drawn dashed with no address.
	if !strings.Contains(dot, "dest_kba [label=\"kba\\ndisabled\", style=dashed]") {
		t.Errorf("Disabled dest not dashed:\n%s", dot)
	}
	if !strings.Contains(dot, "mia -> dest_kba [style=dashed];") {
		t.Errorf("Disabled dest edge not dashed:\n%s", dot)
	}

	if !strings.HasSuffix(dot, "}\n") {
		t.Error("DOT output not closed")
	}
}

func TestGenerateDOTDeterministic(t *testing.T) {
	topo := Topology{
		Listen: map[string]string{"a": "1", "b": "2", "c": "3"},
		Dests:  map[string]string{"x": "4", "y": ""},
	}
	first := topo.GenerateDOT()
	for i := 0; i < 5; i++ {
		if got := topo.GenerateDOT(); got != first {
			t.Fatal("GenerateDOT output varies between calls")
		}
	}
	if strings.Index(first, "listen_a") > strings.Index(first, "listen_b") {
		t.Error("Listen nodes not sorted by name")
	}
}
