package restock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andresuchdata/restockplan/internal/domain"
)

const (
	central = "1610011000 - Central"
	storage = "1610000100 - Pixel Storage"
	shop    = "1610010100 - Pixel - Branch 1"
)

var pixel = domain.WarehouseGroup{Name: "pixel", Warehouses: []string{storage, shop}}

func month(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestQuantizeAvailable(t *testing.T) {
	cases := []struct {
		available, box, want float64
	}{
		{37, 12, 36},
		{11, 12, 0},
		{24, 12, 24},
		{5, 0, 0},
		{0, 1, 0},
	}
	for _, tc := range cases {
		if got := QuantizeAvailable(tc.available, tc.box); got != tc.want {
			t.Fatalf("QuantizeAvailable(%v, %v) = %v, want %v", tc.available, tc.box, got, tc.want)
		}
	}
}

func TestRecommend(t *testing.T) {
	cases := []struct {
		name                       string
		available, box, avg, stock float64
		want                       float64
	}{
		{"target meets supply", 36, 12, 50, 10, 36},
		{"demand below supply", 36, 12, 20, 10, 12},
		{"nothing available", 0, 12, 50, 10, 0},
		{"overstocked", 36, 12, 0, 50, 0},
		{"capped by supply", 24, 12, 100, 0, 24},
		{"half box rounds to even", 120, 12, 30, 0, 24},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Recommend(tc.available, tc.box, tc.avg, tc.stock); got != tc.want {
				t.Fatalf("Recommend = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRecommendIsWholeBoxesWithinSupply(t *testing.T) {
	for _, box := range []float64{1, 6, 12} {
		for raw := 0.0; raw <= 60; raw++ {
			available := QuantizeAvailable(raw, box)
			for avg := 0.0; avg <= 80; avg += 7 {
				got := Recommend(available, box, avg, 3)
				if got > available {
					t.Fatalf("box %v avail %v avg %v: %v exceeds supply", box, available, avg, got)
				}
				if rem := got / box; rem != float64(int(rem)) {
					t.Fatalf("box %v avail %v avg %v: %v is not whole boxes", box, available, avg, got)
				}
			}
		}
	}
}

func TestMonthlyDemandAveragesMonthlyTotals(t *testing.T) {
	sales := []domain.SalesRecord{
		{Code: "X1", Warehouse: shop, Date: month(2024, 1, 3), Quantity: 30, Cogs: -150},
		{Code: "X1", Warehouse: shop, Date: month(2024, 1, 20), Quantity: 20, Cogs: 50},
		{Code: "X1", Warehouse: storage, Date: month(2024, 2, 5), Quantity: 50, Cogs: 0},
		{Code: "X1", Warehouse: central, Date: month(2024, 2, 5), Quantity: 500, Cogs: 5000},
	}

	got := MonthlyDemand(sales, pixel)["X1"]
	if got.Quantity != 50 {
		t.Fatalf("avg quantity = %v, want 50", got.Quantity)
	}
	if got.Cogs != 0 {
		t.Fatalf("avg cogs = %v, want negative average clamped to 0", got.Cogs)
	}
}

func calculatorFixture() *Inputs {
	stock := []domain.StockRecord{
		{Warehouse: central, Code: "X1", SKU: "central-sku", ProductName: "Bear", Category: "Toys", Type: "toys", Quantity: 74, Cogs: 740},
		{Warehouse: storage, Code: "X1", SKU: "111", ProductName: "Bear", Category: "Toys", Type: "toys", Quantity: 4, Cogs: 40},
		{Warehouse: shop, Code: "X1", SKU: "111", ProductName: "Bear", Category: "Toys", Type: "toys", Quantity: 6, Cogs: 60},
		{Warehouse: shop, Code: "X2", SKU: "222", ProductName: "Car", Category: "Toys", Type: "toys", Quantity: 3, Cogs: 30},
		{Warehouse: central, Code: "X3", SKU: "333", ProductName: "Kite", Category: "Toys", Type: "toys", Quantity: 10, Cogs: 100},
		{Warehouse: "elsewhere", Code: "X1", Quantity: 1000, Cogs: 1000},
		{Warehouse: shop, Code: "X4", Category: "Food", Quantity: 99, Cogs: 99},
	}
	sales := []domain.SalesRecord{
		{Code: "X1", Warehouse: shop, Date: month(2024, 1, 3), Quantity: 50, Cogs: 500},
		{Code: "X1", Warehouse: shop, Date: month(2024, 2, 3), Quantity: 50, Cogs: 500},
	}
	evals := []domain.ProductEvaluation{
		{Code: "X1", ABC: domain.ABCA, DOH: 100, DSI: 30, Margin: 60},
		{Code: "X2", ABC: domain.ABCC, DOH: 200, DSI: 100, Margin: 10},
	}
	products := []domain.ProductMeta{{Code: "X1", BoxQuantity: 12}, {Code: "X2", BoxQuantity: 0}}
	return NewInputs(stock, sales, nil, evals, products, []string{"X2"}, map[string]float64{"pixel": 0.5})
}

func TestCalculatorLines(t *testing.T) {
	calc := NewCalculator(Options{CentralStorage: central, Categories: []string{"Toys"}})

	lines, err := calc.Lines(pixel, calculatorFixture(), 0.5)
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if len(lines) != 2 || lines[0].Code != "X1" || lines[1].Code != "X3" {
		t.Fatalf("lines = %+v, want X1 and X3 (X2 excluded, X4 filtered)", lines)
	}

	x1 := lines[0]
	if x1.Branch != "Pixel" || x1.SKU != "111" {
		t.Fatalf("X1 branch/sku = %q/%q", x1.Branch, x1.SKU)
	}
	if x1.StockQuantity != 10 || x1.StockCogs != 100 {
		t.Fatalf("X1 stock = %v/%v, want storage+shop 10/100", x1.StockQuantity, x1.StockCogs)
	}
	if x1.AvgMonthlySales != 50 || x1.AvailableQuantity != 36 || x1.RecommendedQuantity != 36 {
		t.Fatalf("X1 = %+v, want avg 50, available 36, recommended 36", x1)
	}
	if x1.Priority != domain.PriorityA || !x1.Evaluated {
		t.Fatalf("X1 priority = %s, want A", x1.Priority)
	}

	x3 := lines[1]
	if x3.StockQuantity != 0 || x3.AvailableQuantity != 5 || x3.BoxQuantity != 1 {
		t.Fatalf("X3 = %+v, want central-only stock 0, available 5 in boxes of 1", x3)
	}
	if x3.RecommendedQuantity != 0 || x3.Priority != domain.PriorityC || x3.Evaluated {
		t.Fatalf("X3 = %+v, want no demand and tier C without evaluation", x3)
	}
}

func TestCalculatorSingleWarehouseGroup(t *testing.T) {
	calc := NewCalculator(Options{CentralStorage: central})
	group := domain.WarehouseGroup{Name: "shop-only", Warehouses: []string{shop}}

	lines, err := calc.Lines(group, calculatorFixture(), 0.5)
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	for _, l := range lines {
		if l.Code == "X1" && l.StockQuantity != 6 {
			t.Fatalf("X1 stock = %v, want the shop column only", l.StockQuantity)
		}
	}
}

func TestBranchFailures(t *testing.T) {
	calc := NewCalculator(Options{CentralStorage: central})
	in := calculatorFixture()

	ghost := domain.WarehouseGroup{Name: "pixel", Warehouses: []string{"nowhere"}}
	if _, err := calc.Branch(context.Background(), ghost, in); !errors.Is(err, domain.ErrUpstreamExtract) {
		t.Fatalf("err = %v, want ErrUpstreamExtract", err)
	}

	unknown := domain.WarehouseGroup{Name: "unknown", Warehouses: []string{shop}}
	if _, err := calc.Branch(context.Background(), unknown, in); !errors.Is(err, domain.ErrMissingJoinKey) {
		t.Fatalf("err = %v, want ErrMissingJoinKey", err)
	}
}

func TestBranchReportsCapacity(t *testing.T) {
	calc := NewCalculator(Options{CentralStorage: central, Capacity: DefaultCapacityOptions()})
	in := calculatorFixture()
	in.Inventory = []domain.InventoryRecord{
		{Code: "X1", Warehouse: shop, Quantity: 10, Cogs: 500, Year: 2024, Month: 1},
	}

	res, err := calc.Branch(context.Background(), pixel, in)
	if err != nil {
		t.Fatalf("Branch: %v", err)
	}
	if res.Capacity.Group != "pixel" || res.Capacity.MaxCapacity != 500 {
		t.Fatalf("capacity = %+v", res.Capacity)
	}
	if res.Capacity.RecommendedUnits != 36 {
		t.Fatalf("recommended units = %v, want 36", res.Capacity.RecommendedUnits)
	}
}
