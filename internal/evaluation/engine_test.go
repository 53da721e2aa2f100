package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/andresuchdata/restockplan/internal/domain"
)

func engineInputs() Inputs {
	return Inputs{
		Inventory: []domain.InventoryRecord{
			{Code: "X1", Warehouse: "Central", Type: "toys", Quantity: 99, Cogs: 0, Year: 2023, Month: 12},
			{Code: "X1", Warehouse: "Central", Type: "toys", Quantity: 10, Cogs: 100, Year: 2024, Month: 1},
			{Code: "X1", Warehouse: "Central", Type: "toys", Quantity: 8, Cogs: 80, Year: 2024, Month: 3},
		},
		Sales: []domain.SalesRecord{
			{Code: "X1", Warehouse: "Shop", Date: day(2024, 1, 10), Quantity: 2, Revenue: 100, Profit: 40},
			{Code: "X1", Warehouse: "Shop", Date: day(2024, 1, 31), Quantity: 2, Revenue: 100, Profit: 60},
		},
		Margins: []domain.MarginRecord{{Code: "X1", Margin: 45}, {Code: "X2", Margin: 30}},
		Stock: []domain.StockRecord{
			{Warehouse: "Central", Code: "X1", ProductName: "Bear", Category: "Toys", Type: "toys", Quantity: 8, Cogs: 80},
			{Warehouse: "Central", Code: "X9", ProductName: "Soap", Category: "Other", Type: "misc", Quantity: 1, Cogs: 1},
		},
	}
}

func TestEngineEvaluate(t *testing.T) {
	eng := NewEngine(Options{Categories: []string{"Toys"}})

	res, err := eng.Evaluate(context.Background(), engineInputs())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(res.Evaluations) != 1 {
		t.Fatalf("evaluations = %+v, want only X1", res.Evaluations)
	}

	got := res.Evaluations[0]
	want := domain.ProductEvaluation{
		Code: "X1", ProductName: "Bear", Category: "Toys", Type: "toys",
		ClosingInventory: 8, TotalSales: 4,
		DSI: 60, ABC: domain.ABCC, XYZ: domain.XYZZ, Margin: 50, DOH: 60,
	}
	if got != want {
		t.Fatalf("X1 = %+v\nwant %+v", got, want)
	}

	if res.Report.Candidates != 2 || len(res.Report.Dropped) != 1 || res.Report.Dropped[0].Code != "X2" {
		t.Fatalf("report = %+v, want X2 dropped", res.Report)
	}
	if !errors.Is(res.Report.Dropped[0].Reason, domain.ErrMissingJoinKey) {
		t.Fatalf("X2 reason = %v", res.Report.Dropped[0].Reason)
	}
}

func TestEngineDSIToLastSnapshot(t *testing.T) {
	eng := NewEngine(Options{DSIEndDate: EndAtLastSnapshot})

	res, err := eng.Evaluate(context.Background(), engineInputs())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := find(t, res.Evaluations, "X1"); got.DSI != 120 {
		t.Fatalf("X1 DSI = %v, want 120", got.DSI)
	}
}

func TestEngineRequiresStockedCodes(t *testing.T) {
	in := engineInputs()
	in.Margins = nil

	_, err := NewEngine(Options{}).Evaluate(context.Background(), in)
	if !errors.Is(err, domain.ErrUpstreamExtract) {
		t.Fatalf("err = %v, want ErrUpstreamExtract", err)
	}
}

func TestEngineHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewEngine(Options{}).Evaluate(ctx, engineInputs()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
