package restock

import (
	"math"
	"testing"

	"github.com/andresuchdata/restockplan/internal/domain"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func capacityFixture() ([]domain.BranchRequestLine, []domain.InventoryRecord) {
	lines := []domain.BranchRequestLine{
		{Code: "X1", Priority: domain.PriorityA, StockQuantity: 10, StockCogs: 100, RecommendedQuantity: 50},
		{Code: "X2", Priority: domain.PriorityC, StockQuantity: 30, StockCogs: 100},
	}
	inventory := []domain.InventoryRecord{
		{Code: "X1", Warehouse: shop, Quantity: 100, Cogs: 1000, Year: 2024, Month: 1},
		{Code: "X1", Warehouse: storage, Quantity: 80, Cogs: 1000, Year: 2024, Month: 2},
		{Code: "X2", Warehouse: shop, Quantity: 40, Cogs: 500, Year: 2024, Month: 2},
		{Code: "X3", Warehouse: shop, Quantity: 5, Cogs: 0, Year: 2024, Month: 3},
		{Code: "X1", Warehouse: central, Quantity: 5000, Cogs: 50000, Year: 2024, Month: 3},
	}
	return lines, inventory
}

func TestMaxCapacity(t *testing.T) {
	_, inventory := capacityFixture()

	if got := MaxCapacity(pixel, inventory, domain.CapacityByCogs); got != 1500 {
		t.Fatalf("cogs capacity = %v, want 1500", got)
	}
	if got := MaxCapacity(pixel, inventory, domain.CapacityByQuantity); got != 120 {
		t.Fatalf("quantity capacity = %v, want 120", got)
	}
}

func TestMaxCapacityZeroCogsRows(t *testing.T) {
	inventory := []domain.InventoryRecord{
		{Code: "X1", Warehouse: shop, Quantity: 100, Cogs: 1000, Year: 2024, Month: 1},
		{Code: "X3", Warehouse: shop, Quantity: 999, Cogs: 0, Year: 2024, Month: 3},
	}
	if got := MaxCapacity(pixel, inventory, domain.CapacityByQuantity); got != 999 {
		t.Fatalf("quantity capacity = %v, want 999 from the zero-cogs month", got)
	}
	if got := MaxCapacity(pixel, inventory, domain.CapacityByCogs); got != 1000 {
		t.Fatalf("cogs capacity = %v, want 1000", got)
	}
}

func TestCapacityByCogs(t *testing.T) {
	lines, inventory := capacityFixture()

	rep := Capacity(pixel, lines, inventory, DefaultCapacityOptions())

	if rep.Branch != "Pixel" || rep.Basis != domain.CapacityByCogs {
		t.Fatalf("report header = %+v", rep)
	}
	if rep.MaxCapacity != 1500 || !near(rep.MinTarget, 1050) {
		t.Fatalf("capacity = %v/%v, want 1500/1050", rep.MaxCapacity, rep.MinTarget)
	}
	// unit cost 200/40 = 5, post-restock units 90
	if rep.PostRestockQty != 90 || !near(rep.Projected, 450) {
		t.Fatalf("projection = %v units / %v cogs, want 90 / 450", rep.PostRestockQty, rep.Projected)
	}
	if !near(rep.MinShortfall, 600) || !near(rep.MaxShortfall, 1050) || !rep.WithinCapacity {
		t.Fatalf("shortfalls = %v/%v within=%v", rep.MinShortfall, rep.MaxShortfall, rep.WithinCapacity)
	}
	if rep.RecommendedUnits != 50 || rep.RecommendedLines != 1 {
		t.Fatalf("recommended = %v units on %d lines", rep.RecommendedUnits, rep.RecommendedLines)
	}

	tiers := map[domain.Priority]domain.TierShare{}
	for _, s := range rep.Tiers {
		tiers[s.Priority] = s
	}
	if len(tiers) != 4 {
		t.Fatalf("tiers = %+v, want all four", rep.Tiers)
	}
	if a := tiers[domain.PriorityA]; !near(a.CurrentShare, 50) || !near(a.ProjectedShare, 200.0/3) || a.TargetShare != 20 {
		t.Fatalf("tier A = %+v", a)
	}
	if d := tiers[domain.PriorityD]; d.CurrentShare != 0 || d.ProjectedShare != 0 || d.TargetShare != 10 {
		t.Fatalf("tier D = %+v", d)
	}
}

func TestCapacityByQuantity(t *testing.T) {
	lines, inventory := capacityFixture()
	opts := DefaultCapacityOptions()
	opts.Basis = domain.CapacityByQuantity

	rep := Capacity(pixel, lines, inventory, opts)

	if rep.MaxCapacity != 120 || !near(rep.MinTarget, 84) || rep.Projected != 90 {
		t.Fatalf("report = %+v", rep)
	}
	for _, s := range rep.Tiers {
		if s.Priority == domain.PriorityA && !near(s.CurrentShare, 25) {
			t.Fatalf("tier A current share = %v, want 25", s.CurrentShare)
		}
	}
}

func TestCapacityWithoutStock(t *testing.T) {
	rep := Capacity(pixel, []domain.BranchRequestLine{{Code: "X1", Priority: domain.PriorityB, RecommendedQuantity: 12}}, nil, DefaultCapacityOptions())

	if rep.Projected != 0 || rep.MaxCapacity != 0 {
		t.Fatalf("report = %+v, want zero projection without a unit cost", rep)
	}
	if rep.WithinCapacity != true {
		t.Fatalf("zero projection fits a zero ceiling")
	}
}
