package ingest

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/andresuchdata/restockplan/pkg/logger"
)

var (
	InventorySchema = Schema{Extract: "inventory", Fields: []Field{
		{Name: "code", Aliases: []string{"product_code"}},
		{Name: "warehouse"},
		{Name: "type", Aliases: []string{"product_type"}},
		{Name: "category"},
		{Name: "quantity", Aliases: []string{"qty"}},
		{Name: "cogs"},
		{Name: "year"},
		{Name: "month"},
	}}

	SalesSchema = Schema{Extract: "sales", Fields: []Field{
		{Name: "code", Aliases: []string{"product_code"}},
		{Name: "warehouse"},
		{Name: "date"},
		{Name: "quantity", Aliases: []string{"qty"}},
		{Name: "cogs"},
		{Name: "revenue"},
		{Name: "profit"},
	}}

	MarginSchema = Schema{Extract: "margin", Fields: []Field{
		{Name: "code", Aliases: []string{"product_code"}},
		{Name: "margin", Aliases: []string{"margin_pct"}},
	}}

	StockSchema = Schema{Extract: "stock", Fields: []Field{
		{Name: "warehouse"},
		{Name: "code", Aliases: []string{"product_code"}},
		{Name: "sku", Aliases: []string{"barcode"}, Optional: true},
		{Name: "product_name", Aliases: []string{"name"}},
		{Name: "category"},
		{Name: "type", Aliases: []string{"product_type"}},
		{Name: "quantity", Aliases: []string{"qty"}},
		{Name: "cogs"},
	}}

	ProductSchema = Schema{Extract: "products", Fields: []Field{
		{Name: "code", Aliases: []string{"product_code"}},
		{Name: "box_quantity", Aliases: []string{"box_qty", "carton"}},
	}}

	ExclusionSchema = Schema{Extract: "exclusions", Fields: []Field{
		{Name: "code", Aliases: []string{"product_code"}},
	}}
)

// Inputs is every extract the engine consumes.
type Inputs struct {
	Inventory  []domain.InventoryRecord
	Sales      []domain.SalesRecord
	Margins    []domain.MarginRecord
	Stock      []domain.StockRecord
	Products   []domain.ProductMeta
	Exclusions []string
}

// Paths locates the extracts on disk. Products and Exclusions may be empty
// or point to missing files.
type Paths struct {
	Inventory  string
	Sales      string
	Margins    string
	Stock      string
	Products   string
	Exclusions string
}

// Options tweak source-specific parsing.
type Options struct {
	SheetSkipRows    int
	MarginFractional bool
}

// Load reads every extract. Any schema or parse failure is returned wrapped
// so callers can match domain.ErrUpstreamExtract.
func Load(p Paths, opts Options) (*Inputs, error) {
	var (
		in  Inputs
		err error
	)

	if in.Inventory, err = ReadInventory(p.Inventory, opts.SheetSkipRows); err != nil {
		return nil, err
	}
	if in.Sales, err = ReadSales(p.Sales, opts.SheetSkipRows); err != nil {
		return nil, err
	}
	if in.Margins, err = ReadMargins(p.Margins, opts.SheetSkipRows, opts.MarginFractional); err != nil {
		return nil, err
	}
	if in.Stock, err = ReadStock(p.Stock, opts.SheetSkipRows); err != nil {
		return nil, err
	}
	if optionalPresent(p.Products) {
		if in.Products, err = ReadProducts(p.Products, opts.SheetSkipRows); err != nil {
			return nil, err
		}
	} else {
		logger.Log.Warn().Str("path", p.Products).Msg("product metadata not found, default box quantity applies")
	}
	if optionalPresent(p.Exclusions) {
		if in.Exclusions, err = ReadExclusions(p.Exclusions, opts.SheetSkipRows); err != nil {
			return nil, err
		}
	}

	logger.Log.Info().
		Int("inventory", len(in.Inventory)).
		Int("sales", len(in.Sales)).
		Int("margins", len(in.Margins)).
		Int("stock", len(in.Stock)).
		Int("products", len(in.Products)).
		Int("exclusions", len(in.Exclusions)).
		Msg("extracts loaded")

	return &in, nil
}

func optionalPresent(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func open(path string, skip int, schema Schema) (*Table, *Mapping, error) {
	t, err := ReadTable(path, skip)
	if err != nil {
		return nil, nil, fmt.Errorf("%s extract: %w: %v", schema.Extract, domain.ErrUpstreamExtract, err)
	}
	m, err := schema.Bind(t.Header)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, m, nil
}

func rowErr(t *Table, row int, err error) error {
	// row+2: one for the header, one for 1-based numbering
	return fmt.Errorf("%s row %d: %w: %v", t.Source, row+2, domain.ErrUpstreamExtract, err)
}

// ReadInventory reads the monthly inventory extract.
func ReadInventory(path string, skip int) ([]domain.InventoryRecord, error) {
	t, m, err := open(path, skip, InventorySchema)
	if err != nil {
		return nil, err
	}

	out := make([]domain.InventoryRecord, 0, len(t.Records))
	for i, rec := range t.Records {
		r := domain.InventoryRecord{
			Code:      m.String(rec, "code"),
			Warehouse: m.String(rec, "warehouse"),
			Type:      m.String(rec, "type"),
			Category:  m.String(rec, "category"),
		}
		if r.Code == "" {
			continue
		}
		if r.Quantity, err = m.Float(rec, "quantity"); err != nil {
			return nil, rowErr(t, i, err)
		}
		if r.Cogs, err = m.Float(rec, "cogs"); err != nil {
			return nil, rowErr(t, i, err)
		}
		if r.Year, err = m.Int(rec, "year"); err != nil {
			return nil, rowErr(t, i, err)
		}
		if r.Month, err = m.Int(rec, "month"); err != nil {
			return nil, rowErr(t, i, err)
		}
		if r.Month < 1 || r.Month > 12 {
			return nil, rowErr(t, i, fmt.Errorf("month %d out of range", r.Month))
		}
		out = append(out, r)
	}
	return out, nil
}

// ReadSales reads the sales extract.
func ReadSales(path string, skip int) ([]domain.SalesRecord, error) {
	t, m, err := open(path, skip, SalesSchema)
	if err != nil {
		return nil, err
	}

	out := make([]domain.SalesRecord, 0, len(t.Records))
	for i, rec := range t.Records {
		r := domain.SalesRecord{
			Code:      m.String(rec, "code"),
			Warehouse: m.String(rec, "warehouse"),
		}
		if r.Code == "" {
			continue
		}
		if r.Date, err = m.Date(rec, "date"); err != nil {
			return nil, rowErr(t, i, err)
		}
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"quantity", &r.Quantity},
			{"cogs", &r.Cogs},
			{"revenue", &r.Revenue},
			{"profit", &r.Profit},
		} {
			if *f.dst, err = m.Float(rec, f.name); err != nil {
				return nil, rowErr(t, i, err)
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// ReadMargins reads the closing-inventory margin extract. Cells that are not
// numbers (spreadsheet "Error" values) drop the row. With fractional set the
// source holds ratios and they are scaled to percent.
func ReadMargins(path string, skip int, fractional bool) ([]domain.MarginRecord, error) {
	t, m, err := open(path, skip, MarginSchema)
	if err != nil {
		return nil, err
	}

	out := make([]domain.MarginRecord, 0, len(t.Records))
	dropped := 0
	for _, rec := range t.Records {
		code := m.String(rec, "code")
		raw := m.String(rec, "margin")
		if code == "" || raw == "" {
			dropped++
			continue
		}
		v, err := parseFloat(raw)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			dropped++
			continue
		}
		if fractional {
			v *= 100
		}
		out = append(out, domain.MarginRecord{Code: code, Margin: v})
	}
	if dropped > 0 {
		logger.Log.Info().Int("rows", dropped).Str("path", path).Msg("margin rows without a numeric margin dropped")
	}
	return out, nil
}

// ReadStock reads the live stock snapshot. Spreadsheet exports leave the
// warehouse cell blank under its first row, so it is carried forward.
func ReadStock(path string, skip int) ([]domain.StockRecord, error) {
	t, m, err := open(path, skip, StockSchema)
	if err != nil {
		return nil, err
	}

	out := make([]domain.StockRecord, 0, len(t.Records))
	lastWarehouse := ""
	for i, rec := range t.Records {
		r := domain.StockRecord{
			Warehouse:   m.String(rec, "warehouse"),
			Code:        m.String(rec, "code"),
			SKU:         m.String(rec, "sku"),
			ProductName: m.String(rec, "product_name"),
			Category:    m.String(rec, "category"),
			Type:        m.String(rec, "type"),
		}
		if r.Warehouse == "" {
			r.Warehouse = lastWarehouse
		}
		lastWarehouse = r.Warehouse
		if r.Code == "" {
			continue
		}
		if r.Warehouse == "" {
			return nil, rowErr(t, i, fmt.Errorf("no warehouse for code %s", r.Code))
		}
		if r.Quantity, err = m.Float(rec, "quantity"); err != nil {
			return nil, rowErr(t, i, err)
		}
		if r.Cogs, err = m.Float(rec, "cogs"); err != nil {
			return nil, rowErr(t, i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ReadProducts reads box quantities per code.
func ReadProducts(path string, skip int) ([]domain.ProductMeta, error) {
	t, m, err := open(path, skip, ProductSchema)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ProductMeta, 0, len(t.Records))
	for i, rec := range t.Records {
		p := domain.ProductMeta{Code: m.String(rec, "code")}
		if p.Code == "" {
			continue
		}
		if p.BoxQuantity, err = m.Float(rec, "box_quantity"); err != nil {
			return nil, rowErr(t, i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ReadExclusions reads the turnover/return list of codes.
func ReadExclusions(path string, skip int) ([]string, error) {
	t, m, err := open(path, skip, ExclusionSchema)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(t.Records))
	for _, rec := range t.Records {
		if code := strings.TrimSpace(m.String(rec, "code")); code != "" {
			out = append(out, code)
		}
	}
	return out, nil
}
