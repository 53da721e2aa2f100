package evaluation

import (
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/restockplan/internal/domain"
)

// Sentinels used when a statistic has no finite value.
const (
	NonMovingDSI   = 999.0
	UndefinedStd   = 999.0
	DefaultDOHDays = 30.0
)

// SalesTotals is the per-code sum of every sales row.
type SalesTotals struct {
	Quantity float64
	Cogs     float64
	Revenue  float64
	Profit   float64
	LastDate time.Time
}

// SummarizeSales sums sales per code.
func SummarizeSales(sales []domain.SalesRecord) map[string]SalesTotals {
	out := make(map[string]SalesTotals)
	for _, s := range sales {
		t := out[s.Code]
		t.Quantity += s.Quantity
		t.Cogs += s.Cogs
		t.Revenue += s.Revenue
		t.Profit += s.Profit
		if s.Date.After(t.LastDate) {
			t.LastDate = s.Date
		}
		out[s.Code] = t
	}
	return out
}

// Margins returns margin% = 100 x profit / revenue per code over rows with
// non-zero revenue. Codes whose remaining revenue nets to zero have no margin.
func Margins(sales []domain.SalesRecord) map[string]float64 {
	type acc struct{ profit, revenue float64 }
	sums := make(map[string]acc)
	for _, s := range sales {
		if s.Revenue == 0 {
			continue
		}
		a := sums[s.Code]
		a.profit += s.Profit
		a.revenue += s.Revenue
		sums[s.Code] = a
	}

	out := make(map[string]float64, len(sums))
	for code, a := range sums {
		if a.revenue == 0 {
			continue
		}
		out[code] = 100 * a.profit / a.revenue
	}
	return out
}

// MarginSource averages the closing-inventory margin extract per code.
func MarginSource(rows []domain.MarginRecord) map[string]float64 {
	sum := make(map[string]float64)
	n := make(map[string]int)
	for _, r := range rows {
		sum[r.Code] += r.Margin
		n[r.Code]++
	}
	out := make(map[string]float64, len(sum))
	for code, s := range sum {
		out[code] = s / float64(n[code])
	}
	return out
}

// DateSpan is the first and last month a code appears in the inventory history.
type DateSpan struct {
	First time.Time
	Last  time.Time
}

// ActiveInventory drops rows without cost of goods; they are placeholders
// in the source and never count as stock history.
func ActiveInventory(inv []domain.InventoryRecord) []domain.InventoryRecord {
	out := make([]domain.InventoryRecord, 0, len(inv))
	for _, r := range inv {
		if r.Cogs != 0 {
			out = append(out, r)
		}
	}
	return out
}

// InventorySpans returns each code's first and last inventory period.
func InventorySpans(inv []domain.InventoryRecord) map[string]DateSpan {
	out := make(map[string]DateSpan)
	for _, r := range inv {
		p := r.Period()
		s, ok := out[r.Code]
		if !ok {
			out[r.Code] = DateSpan{First: p, Last: p}
			continue
		}
		if p.Before(s.First) {
			s.First = p
		}
		if p.After(s.Last) {
			s.Last = p
		}
		out[r.Code] = s
	}
	return out
}

// OpeningStock is the quantity a code had at its earliest recorded period.
type OpeningStock struct {
	Date     time.Time
	Quantity float64
}

// OpeningStocks sums each code's quantity across warehouses at its first period.
func OpeningStocks(inv []domain.InventoryRecord) map[string]OpeningStock {
	spans := InventorySpans(inv)
	out := make(map[string]OpeningStock, len(spans))
	for code, s := range spans {
		out[code] = OpeningStock{Date: s.First}
	}
	for _, r := range inv {
		o := out[r.Code]
		if r.Period().Equal(o.Date) {
			o.Quantity += r.Quantity
			out[r.Code] = o
		}
	}
	return out
}

// DaysOnHand gives, for codes present in the most recent snapshot, the days
// between that snapshot and the code's opening stock date.
func DaysOnHand(inv []domain.InventoryRecord, opening map[string]OpeningStock) map[string]float64 {
	var latest time.Time
	for _, r := range inv {
		if p := r.Period(); p.After(latest) {
			latest = p
		}
	}

	out := make(map[string]float64)
	for _, r := range inv {
		if !r.Period().Equal(latest) {
			continue
		}
		o, ok := opening[r.Code]
		if !ok {
			continue
		}
		out[r.Code] = daysBetween(o.Date, latest)
	}
	return out
}

// ClosingStock is the evaluated code's current stock across the warehouses of interest.
type ClosingStock struct {
	Code        string
	ProductName string
	Category    string
	Type        string
	Quantity    float64
}

// ClosingStocks filters the stock snapshot to the allow-listed categories and
// warehouses and sums quantity per code, in first-seen order. Product
// attributes come from the code's first row.
func ClosingStocks(stock []domain.StockRecord, categories, warehouses []string) []ClosingStock {
	allowCat := toSet(categories)
	allowWh := toSet(warehouses)

	index := make(map[string]int)
	var out []ClosingStock
	for _, r := range stock {
		if len(allowCat) > 0 && !allowCat[r.Category] {
			continue
		}
		if len(allowWh) > 0 && !allowWh[r.Warehouse] {
			continue
		}
		i, ok := index[r.Code]
		if !ok {
			index[r.Code] = len(out)
			out = append(out, ClosingStock{
				Code:        r.Code,
				ProductName: r.ProductName,
				Category:    r.Category,
				Type:        r.Type,
			})
			i = len(out) - 1
		}
		out[i].Quantity += r.Quantity
	}
	return out
}

// DSIEndDate picks the end of the selling window used by DSI.
type DSIEndDate string

const (
	EndAtLastSale     DSIEndDate = "last_sale"
	EndAtLastSnapshot DSIEndDate = "last_snapshot"
)

// DSIMetric is one row of the DSI table. DSI may be NaN or infinite here.
type DSIMetric struct {
	ClosingStock
	TotalSales float64
	HasSales   bool
	DSI        float64
}

// DSITable computes days of sale inventory for every closing-stock code:
// days_being_sold x closing_quantity / total_sold_quantity.
func DSITable(closing []ClosingStock, spans map[string]DateSpan, totals map[string]SalesTotals, end DSIEndDate) []DSIMetric {
	out := make([]DSIMetric, 0, len(closing))
	for _, c := range closing {
		m := DSIMetric{ClosingStock: c, DSI: math.NaN()}
		t, hasSales := totals[c.Code]
		span, hasSpan := spans[c.Code]
		if hasSales {
			m.HasSales = true
			m.TotalSales = t.Quantity
		}
		if hasSales && hasSpan {
			last := t.LastDate
			if end == EndAtLastSnapshot {
				last = span.Last
			}
			days := daysBetween(span.First, last)
			m.DSI = days / t.Quantity * c.Quantity
		}
		out = append(out, m)
	}
	return out
}

// XYZMetric is the demand-variability result for one code.
type XYZMetric struct {
	Mean  float64
	Std   float64
	CV    float64
	Class domain.XYZClass
}

// XYZ computes the coefficient of variation of non-zero sales quantities.
// A single observation has no sample deviation and a zero deviation is not
// trusted; both become 999. A mean of 0 or -1 is replaced with 1.
func XYZ(sales []domain.SalesRecord) map[string]XYZMetric {
	qty := make(map[string][]float64)
	for _, s := range sales {
		if s.Quantity != 0 {
			qty[s.Code] = append(qty[s.Code], s.Quantity)
		}
	}

	out := make(map[string]XYZMetric, len(qty))
	for code, values := range qty {
		mean, std := meanStd(values)
		if math.IsNaN(std) {
			std = UndefinedStd
		}
		if mean == 0 || mean == -1 {
			mean = 1
		}
		if std == 0 {
			std = UndefinedStd
		}
		cv := std / mean
		out[code] = XYZMetric{Mean: mean, Std: std, CV: cv, Class: ClassifyXYZ(cv)}
	}
	return out
}

// ClassifyXYZ maps a coefficient of variation to X, Y or Z.
func ClassifyXYZ(cv float64) domain.XYZClass {
	switch {
	case cv < 0.5:
		return domain.XYZX
	case cv > 1:
		return domain.XYZZ
	default:
		return domain.XYZY
	}
}

// ABCMetric is the profit-concentration result for one code.
type ABCMetric struct {
	Profit          float64
	CumulativeShare float64
	Class           domain.ABCClass
}

// ABC ranks codes by total profit and classifies them by cumulative share of
// the grand total. Equal profits rank by code for reproducible output. When
// the grand total is zero every code is B.
func ABC(totals map[string]SalesTotals) map[string]ABCMetric {
	codes := make([]string, 0, len(totals))
	grand := 0.0
	for code, t := range totals {
		codes = append(codes, code)
		grand += t.Profit
	}
	sort.Slice(codes, func(i, j int) bool {
		pi, pj := totals[codes[i]].Profit, totals[codes[j]].Profit
		if pi != pj {
			return pi > pj
		}
		return codes[i] < codes[j]
	})

	out := make(map[string]ABCMetric, len(codes))
	running := 0.0
	for _, code := range codes {
		p := totals[code].Profit
		running += p
		// A zero grand total, including mixed-sign profits that cancel out,
		// leaves every share undefined.
		share := math.NaN()
		if grand != 0 {
			share = running / grand * 100
		}
		out[code] = ABCMetric{Profit: p, CumulativeShare: share, Class: ClassifyABC(share)}
	}
	return out
}

// ClassifyABC maps a cumulative profit share in percent to A, B or C. An
// undefined share (zero grand total) satisfies neither cut and is B.
func ClassifyABC(share float64) domain.ABCClass {
	switch {
	case share <= 80:
		return domain.ABCA
	case share >= 95:
		return domain.ABCC
	default:
		return domain.ABCB
	}
}

func meanStd(values []float64) (float64, float64) {
	n := float64(len(values))
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / n
	if n < 2 {
		return mean, math.NaN()
	}
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}

func daysBetween(from, to time.Time) float64 {
	return math.Floor(to.Sub(from).Hours() / 24)
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}
