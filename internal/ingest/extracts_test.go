package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestSchemaBindReportsEveryMissingField(t *testing.T) {
	_, err := SalesSchema.Bind([]string{"Code", "Warehouse", "Quantity"})
	if err == nil {
		t.Fatal("expected schema error")
	}

	var se *domain.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected *domain.SchemaError, got %T", err)
	}
	want := []string{"date", "cogs", "revenue", "profit"}
	if len(se.Missing) != len(want) {
		t.Fatalf("missing = %v, want %v", se.Missing, want)
	}
	for i := range want {
		if se.Missing[i] != want[i] {
			t.Fatalf("missing = %v, want %v", se.Missing, want)
		}
	}
	if !errors.Is(err, domain.ErrUpstreamExtract) {
		t.Fatal("schema error should unwrap to ErrUpstreamExtract")
	}
}

func TestSchemaBindMatchesByNameNotPosition(t *testing.T) {
	m, err := MarginSchema.Bind([]string{"Margin %", "Product Code"})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	rec := []string{"41.5", "X1"}
	if got := m.String(rec, "code"); got != "X1" {
		t.Fatalf("code = %q, want X1", got)
	}
	if got, _ := m.Float(rec, "margin"); got != 41.5 {
		t.Fatalf("margin = %v, want 41.5", got)
	}
}

func TestReadSales(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sales.csv",
		"date,warehouse,code,quantity,cogs,revenue,profit\n"+
			"2024-01-05,Shop A,X1,2,\"1,000\",1500,500\n"+
			"\n"+
			"2024-01-06 10:00:00,Shop A,X2,1,10,12,2\n")

	rows, err := ReadSales(path, 0)
	if err != nil {
		t.Fatalf("ReadSales: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Cogs != 1000 {
		t.Fatalf("cogs = %v, want 1000 (thousands separator stripped)", rows[0].Cogs)
	}
	if rows[1].Date.Day() != 6 {
		t.Fatalf("date = %v", rows[1].Date)
	}
}

func TestReadSalesRejectsBadNumber(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sales.csv",
		"date,warehouse,code,quantity,cogs,revenue,profit\n"+
			"2024-01-05,Shop A,X1,two,1,1,0\n")

	_, err := ReadSales(path, 0)
	if !errors.Is(err, domain.ErrUpstreamExtract) {
		t.Fatalf("err = %v, want ErrUpstreamExtract", err)
	}
}

func TestReadMarginsDropsErrorCells(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "margins.csv", "code,margin\nX1,0.4\nX2,Error\nX3,\n")

	rows, err := ReadMargins(path, 0, true)
	if err != nil {
		t.Fatalf("ReadMargins: %v", err)
	}
	if len(rows) != 1 || rows[0].Code != "X1" || rows[0].Margin != 40 {
		t.Fatalf("rows = %+v, want X1 at 40%%", rows)
	}
}

func TestReadStockCarriesWarehouseForward(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "stock.csv",
		"warehouse,code,sku,product_name,category,type,quantity,cogs\n"+
			"Central,X1,111,Bear,Toys,toys,5,50\n"+
			",X2,222,Car,Toys,toys,3,30\n")

	rows, err := ReadStock(path, 0)
	if err != nil {
		t.Fatalf("ReadStock: %v", err)
	}
	if rows[1].Warehouse != "Central" {
		t.Fatalf("warehouse = %q, want Central", rows[1].Warehouse)
	}
}

func TestReadInventoryFromXLSXWithBanner(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Inventory report"},
		{"code", "warehouse", "type", "category", "quantity", "cogs", "year", "month"},
		{"X1", "Shop A", "toys", "Toys", 4, 40, 2024, 3},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := ReadInventory(path, 1)
	if err != nil {
		t.Fatalf("ReadInventory: %v", err)
	}
	if len(got) != 1 || got[0].Year != 2024 || got[0].Month != 3 || got[0].Quantity != 4 {
		t.Fatalf("got %+v", got)
	}
}

func TestLoadTreatsProductsAndExclusionsAsOptional(t *testing.T) {
	dir := t.TempDir()
	p := Paths{
		Inventory:  writeFile(t, dir, "inventory.csv", "code,warehouse,type,category,quantity,cogs,year,month\nX1,A,t,c,1,1,2024,1\n"),
		Sales:      writeFile(t, dir, "sales.csv", "code,warehouse,date,quantity,cogs,revenue,profit\nX1,A,2024-01-01,1,1,2,1\n"),
		Margins:    writeFile(t, dir, "margins.csv", "code,margin\nX1,50\n"),
		Stock:      writeFile(t, dir, "stock.csv", "warehouse,code,product_name,category,type,quantity,cogs\nA,X1,n,c,t,1,1\n"),
		Products:   filepath.Join(dir, "missing.csv"),
		Exclusions: "",
	}

	in, err := Load(p, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(in.Products) != 0 || len(in.Exclusions) != 0 {
		t.Fatalf("expected empty optional extracts, got %+v", in)
	}
	if in.Stock[0].SKU != "" {
		t.Fatalf("sku should be empty when the column is absent")
	}
}
