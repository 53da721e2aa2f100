package domain

import (
	"errors"
	"strings"
	"testing"
)

func testRegistry() Registry {
	return Registry{
		CentralStorage: "1000 - Central",
		Groups: []WarehouseGroup{
			{Name: "north", Warehouses: []string{"1610010101 - Pixel Storage", "1610010100 - Pixel - Branch 1"}},
			{Name: "south", Warehouses: []string{"1620010100 - Lumen - Branch 2"}},
		},
	}
}

func TestRegistryValidate(t *testing.T) {
	if err := testRegistry().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(r *Registry)
		want   string
	}{
		{"no central", func(r *Registry) { r.CentralStorage = " " }, "central storage"},
		{"no groups", func(r *Registry) { r.Groups = nil }, "at least one"},
		{"unnamed group", func(r *Registry) { r.Groups[1].Name = "" }, "no name"},
		{"duplicate name", func(r *Registry) { r.Groups[1].Name = "north" }, "duplicate"},
		{"too many warehouses", func(r *Registry) {
			r.Groups[1].Warehouses = []string{"a", "b", "c"}
		}, "1 or 2"},
		{"central inside group", func(r *Registry) {
			r.Groups[1].Warehouses = []string{"1000 - Central"}
		}, "central storage"},
		{"shared warehouse", func(r *Registry) {
			r.Groups[1].Warehouses = []string{"1610010100 - Pixel - Branch 1"}
		}, "both"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := testRegistry()
			tc.mutate(&r)
			err := r.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestWarehouseGroupAccessors(t *testing.T) {
	r := testRegistry()
	north, ok := r.Group("north")
	if !ok {
		t.Fatal("north not found")
	}
	if north.Shop() != "1610010100 - Pixel - Branch 1" || north.Storage() != "1610010101 - Pixel Storage" {
		t.Fatalf("shop/storage = %q/%q", north.Shop(), north.Storage())
	}
	if north.BranchName() != "Pixel" {
		t.Fatalf("BranchName = %q", north.BranchName())
	}
	if !north.Contains("1610010101 - Pixel Storage") || north.Contains("1000 - Central") {
		t.Fatal("Contains is wrong")
	}

	south, _ := r.Group("south")
	if south.Storage() != "" {
		t.Fatalf("single-warehouse group has storage %q", south.Storage())
	}
	if _, ok := r.Group("east"); ok {
		t.Fatal("unknown group found")
	}
	if got := len(r.BranchWarehouses()); got != 3 {
		t.Fatalf("BranchWarehouses = %d, want 3", got)
	}

	plain := WarehouseGroup{Name: "x", Warehouses: []string{" Outlet "}}
	if plain.BranchName() != "Outlet" {
		t.Fatalf("BranchName without separator = %q", plain.BranchName())
	}
}

func TestParsePriority(t *testing.T) {
	if p, ok := ParsePriority(" b "); !ok || p != PriorityB {
		t.Fatalf("ParsePriority(b) = %q, %v", p, ok)
	}
	if _, ok := ParsePriority("E"); ok {
		t.Fatal("E accepted")
	}
}

func TestEvaluationFilterMatches(t *testing.T) {
	ev := ProductEvaluation{Code: "C1", Type: "Serum", ABC: ABCA, XYZ: XYZY}
	cases := []struct {
		filter EvaluationFilter
		want   bool
	}{
		{EvaluationFilter{}, true},
		{EvaluationFilter{Type: "serum", ABC: "a", XYZ: "y"}, true},
		{EvaluationFilter{ABC: "B"}, false},
		{EvaluationFilter{Codes: []string{"C0", "C1"}}, true},
		{EvaluationFilter{Codes: []string{"C0"}}, false},
	}
	for i, tc := range cases {
		if got := tc.filter.Matches(ev); got != tc.want {
			t.Fatalf("case %d: Matches = %v, want %v", i, got, tc.want)
		}
	}
}

func TestSchemaErrorIsUpstream(t *testing.T) {
	err := error(&SchemaError{Extract: "sales", Missing: []string{"code", "qty"}})
	if !errors.Is(err, ErrUpstreamExtract) {
		t.Fatal("schema error does not unwrap to ErrUpstreamExtract")
	}
	if !strings.Contains(err.Error(), "code, qty") {
		t.Fatalf("message = %q", err.Error())
	}
}
