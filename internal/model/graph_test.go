package model

import (
	"reflect"
	"strings"
	"testing"
)

func def(name string, refs []string, sources ...SourceRef) *Definition {
	return &Definition{
		Name:         name,
		Layer:        LayerMarts,
		Materialized: MaterializedTable,
		SQL:          "select 1",
		Refs:         refs,
		Sources:      sources,
	}
}

var rawSources = map[string]map[string]string{
	"raw": {"orders": "orders", "customers": "customers"},
}

// TestBuildGraphOrder checks execution order respects refs and is
// deterministic: the ready set is consumed alphabetically, so fct_b (only
// waiting on stg_a) runs before stg_b.
func TestBuildGraphOrder(t *testing.T) {
	t.Parallel()

	defs := []*Definition{
		def("fct_b", []string{"stg_a"}),
		def("fct_a", []string{"stg_a", "stg_b"}),
		def("stg_b", nil, SourceRef{Source: "raw", Table: "orders"}),
		def("stg_a", nil, SourceRef{Source: "raw", Table: "customers"}),
	}
	g, err := BuildGraph(defs, rawSources)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	want := []string{"stg_a", "fct_b", "stg_b", "fct_a"}
	if got := g.Order(); !reflect.DeepEqual(got, want) {
		t.Errorf("Order = %v, want %v", got, want)
	}
}

// TestBuildGraphDiamond handles shared upstreams.
func TestBuildGraphDiamond(t *testing.T) {
	t.Parallel()

	defs := []*Definition{
		def("top", []string{"left", "right"}),
		def("left", []string{"base"}),
		def("right", []string{"base"}),
		def("base", nil),
	}
	g, err := BuildGraph(defs, nil)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	pos := map[string]int{}
	for i, n := range g.Order() {
		pos[n] = i
	}
	if pos["base"] > pos["left"] || pos["base"] > pos["right"] || pos["left"] > pos["top"] || pos["right"] > pos["top"] {
		t.Errorf("order violates dependencies: %v", g.Order())
	}
}

// TestBuildGraphErrors covers every resolution failure.
func TestBuildGraphErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		defs    []*Definition
		wantSub string
	}{
		{
			"unknown_ref",
			[]*Definition{def("a", []string{"missing"})},
			`ref to unknown definition "missing"`,
		},
		{
			"self_ref",
			[]*Definition{def("a", []string{"a"})},
			"refs itself",
		},
		{
			"unknown_source",
			[]*Definition{def("a", nil, SourceRef{Source: "lake", Table: "x"})},
			`unknown source "lake"`,
		},
		{
			"undeclared_table",
			[]*Definition{def("a", nil, SourceRef{Source: "raw", Table: "sellers"})},
			`declares no table "sellers"`,
		},
		{
			"cycle",
			[]*Definition{def("a", []string{"b"}), def("b", []string{"c"}), def("c", []string{"a"})},
			"dependency cycle involving: a, b, c",
		},
		{
			"duplicate",
			[]*Definition{def("a", nil), def("a", nil)},
			`duplicate definition "a"`,
		},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			_, err := BuildGraph(c.defs, rawSources)
			if err == nil {
				t.Fatal("want error")
			}
			if !strings.Contains(err.Error(), c.wantSub) {
				t.Errorf("error %q missing %q", err, c.wantSub)
			}
		})
	}
}

// TestDependents checks direct and transitive dependent queries.
func TestDependents(t *testing.T) {
	t.Parallel()

	defs := []*Definition{
		def("base", nil),
		def("mid", []string{"base"}),
		def("top", []string{"mid"}),
		def("side", []string{"base"}),
	}
	g, err := BuildGraph(defs, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := g.Dependents("base"); !reflect.DeepEqual(got, []string{"mid", "side"}) {
		t.Errorf("Dependents(base) = %v", got)
	}
	if got := g.TransitiveDependents("base"); !reflect.DeepEqual(got, []string{"mid", "side", "top"}) {
		t.Errorf("TransitiveDependents(base) = %v", got)
	}
	if got := g.TransitiveDependents("top"); len(got) != 0 {
		t.Errorf("TransitiveDependents(top) = %v, want empty", got)
	}
}

// TestBuildGraphSelfRefCaught double-checks the self-ref case is reported as
// such and not as a cycle, since the message names the definition.
func TestBuildGraphSelfRefCaught(t *testing.T) {
	t.Parallel()

	_, err := BuildGraph([]*Definition{def("loop", []string{"loop"})}, nil)
	if err == nil || !strings.Contains(err.Error(), "loop") {
		t.Fatalf("err = %v", err)
	}
}
