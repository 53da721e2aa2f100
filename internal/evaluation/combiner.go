package evaluation

import (
	"math"

	"github.com/andresuchdata/restockplan/internal/domain"
)

// candidate is an evaluation row before imputation. Nil pointers and empty
// classes are the nulls left by left joins.
type candidate struct {
	Code             string
	ProductName      string
	Category         string
	Type             string
	ClosingInventory float64
	TotalSales       float64
	DSI              *float64
	ABC              domain.ABCClass
	XYZ              domain.XYZClass
	Margin           *float64
	DOH              *float64

	// inDSITable is false for stocked codes that had no DSI row at all.
	inDSITable bool
}

// Metrics are the per-code aggregator outputs the combiner joins.
type Metrics struct {
	DSI     []DSIMetric
	ABC     map[string]ABCMetric
	XYZ     map[string]XYZMetric
	Margins map[string]float64
	DOH     map[string]float64
}

// combine left-joins the side tables onto the DSI table, then restricts the
// result to the currently stocked codes in their order. A stocked code with
// no DSI row is kept with null fields so the removal gate can report it.
func combine(m Metrics, stocked []string) []*candidate {
	byCode := make(map[string]*candidate, len(m.DSI))
	for _, d := range m.DSI {
		c := &candidate{
			Code:             d.Code,
			ProductName:      d.ProductName,
			Category:         d.Category,
			Type:             d.Type,
			ClosingInventory: d.Quantity,
			inDSITable:       true,
		}
		// Codes without any sales have not moved: total sales is 0, not missing.
		if d.HasSales {
			c.TotalSales = d.TotalSales
		}
		if !math.IsNaN(d.DSI) {
			v := d.DSI
			c.DSI = &v
		}
		if a, ok := m.ABC[d.Code]; ok {
			c.ABC = a.Class
		}
		if x, ok := m.XYZ[d.Code]; ok {
			c.XYZ = x.Class
		}
		if v, ok := m.Margins[d.Code]; ok {
			c.Margin = &v
		}
		if v, ok := m.DOH[d.Code]; ok {
			c.DOH = &v
		}
		byCode[d.Code] = c
	}

	out := make([]*candidate, 0, len(stocked))
	seen := make(map[string]bool, len(stocked))
	for _, code := range stocked {
		if seen[code] {
			continue
		}
		seen[code] = true
		if c, ok := byCode[code]; ok {
			out = append(out, c)
			continue
		}
		out = append(out, &candidate{Code: code})
	}
	return out
}

// StockedCodes is the code set of the closing-inventory margin extract, in
// first-seen order.
func StockedCodes(margins []domain.MarginRecord) []string {
	seen := make(map[string]bool, len(margins))
	out := make([]string, 0, len(margins))
	for _, r := range margins {
		if seen[r.Code] {
			continue
		}
		seen[r.Code] = true
		out = append(out, r.Code)
	}
	return out
}
