package domain

import (
	"strings"
	"time"
)

// InventoryRecord is one monthly inventory snapshot row for a code in a warehouse.
type InventoryRecord struct {
	Code      string
	Warehouse string
	Type      string
	Category  string
	Quantity  float64
	Cogs      float64
	Year      int
	Month     int
}

// Period is the first day of the record's snapshot month.
func (r InventoryRecord) Period() time.Time {
	return time.Date(r.Year, time.Month(r.Month), 1, 0, 0, 0, 0, time.UTC)
}

// SalesRecord is one transaction-aggregation unit (a day or a batch).
type SalesRecord struct {
	Code      string
	Warehouse string
	Date      time.Time
	Quantity  float64
	Cogs      float64
	Revenue   float64
	Profit    float64
}

// StockRecord is a row of the live stock (closing inventory) snapshot.
type StockRecord struct {
	Warehouse   string
	Code        string
	SKU         string
	ProductName string
	Category    string
	Type        string
	Quantity    float64
	Cogs        float64
}

// MarginRecord is a row of the closing-inventory margin extract, margin in percent.
type MarginRecord struct {
	Code   string
	Margin float64
}

// ProductMeta carries per-code ordering metadata.
type ProductMeta struct {
	Code        string
	BoxQuantity float64
}

// ProductEvaluation is the durable per-code classification row. Every field
// is defined once the evaluation engine has produced it.
type ProductEvaluation struct {
	Code             string   `json:"code" db:"code"`
	ProductName      string   `json:"product_name" db:"product_name"`
	Category         string   `json:"category" db:"category"`
	Type             string   `json:"type" db:"type"`
	ClosingInventory float64  `json:"closing_inventory" db:"closing_inventory"`
	TotalSales       float64  `json:"total_sales" db:"total_sales"`
	DSI              float64  `json:"dsi" db:"dsi"`
	ABC              ABCClass `json:"abc" db:"abc"`
	XYZ              XYZClass `json:"xyz" db:"xyz"`
	Margin           float64  `json:"margin" db:"margin"`
	DOH              float64  `json:"doh" db:"doh"`
}

// EvaluationFilter narrows evaluation queries. Empty fields match everything.
type EvaluationFilter struct {
	Type  string
	ABC   string
	XYZ   string
	Codes []string
}

// Matches reports whether ev passes the filter.
func (f EvaluationFilter) Matches(ev ProductEvaluation) bool {
	if f.Type != "" && !strings.EqualFold(f.Type, ev.Type) {
		return false
	}
	if f.ABC != "" && !strings.EqualFold(f.ABC, string(ev.ABC)) {
		return false
	}
	if f.XYZ != "" && !strings.EqualFold(f.XYZ, string(ev.XYZ)) {
		return false
	}
	if len(f.Codes) > 0 {
		for _, c := range f.Codes {
			if c == ev.Code {
				return true
			}
		}
		return false
	}
	return true
}

// BranchRequestLine is the terminal recommendation row for one code in one
// branch group. The evaluation columns are only meaningful when Evaluated is
// set. AvailableQuantity is already quantized to whole boxes.
type BranchRequestLine struct {
	Group               string   `json:"group" db:"branch_group"`
	Branch              string   `json:"branch" db:"branch"`
	Code                string   `json:"code" db:"code"`
	SKU                 string   `json:"sku" db:"sku"`
	ProductName         string   `json:"product_name" db:"product_name"`
	Category            string   `json:"category" db:"category"`
	Type                string   `json:"type" db:"type"`
	Priority            Priority `json:"priority" db:"priority"`
	Evaluated           bool     `json:"evaluated" db:"evaluated"`
	ABC                 ABCClass `json:"abc,omitempty" db:"abc"`
	DSI                 float64  `json:"dsi" db:"dsi"`
	DOH                 float64  `json:"doh" db:"doh"`
	Margin              float64  `json:"margin" db:"margin"`
	AvgMonthlySales     float64  `json:"avg_monthly_sales" db:"avg_monthly_sales"`
	AvgMonthlyCogs      float64  `json:"avg_monthly_cogs" db:"avg_monthly_cogs"`
	StockCogs           float64  `json:"stock_cogs" db:"stock_cogs"`
	StockQuantity       float64  `json:"stock_quantity" db:"stock_quantity"`
	RecommendedQuantity float64  `json:"recommended_quantity" db:"recommended_quantity"`
	BoxQuantity         float64  `json:"box_quantity" db:"box_quantity"`
	AvailableQuantity   float64  `json:"available_quantity" db:"available_quantity"`
}

// PostRestockQuantity is the line's stock after the recommendation is delivered.
func (l BranchRequestLine) PostRestockQuantity() float64 {
	return l.StockQuantity + l.RecommendedQuantity
}

// CapacityBasis selects whether capacity is measured in cost or in units.
type CapacityBasis string

const (
	CapacityByCogs     CapacityBasis = "cogs"
	CapacityByQuantity CapacityBasis = "quantity"
)

// TierShare compares a priority tier's current and projected share with its target.
type TierShare struct {
	Priority       Priority `json:"priority"`
	CurrentShare   float64  `json:"current_share"`
	ProjectedShare float64  `json:"projected_share"`
	TargetShare    float64  `json:"target_share"`
}

// CapacityReport is the per-branch capacity check of a recommendation set.
type CapacityReport struct {
	Group            string        `json:"group" db:"branch_group"`
	Branch           string        `json:"branch" db:"branch"`
	Basis            CapacityBasis `json:"basis" db:"basis"`
	MaxCapacity      float64       `json:"max_capacity" db:"max_capacity"`
	MinTarget        float64       `json:"min_target" db:"min_target"`
	StockQuantity    float64       `json:"stock_quantity" db:"stock_quantity"`
	StockCogs        float64       `json:"stock_cogs" db:"stock_cogs"`
	PostRestockQty   float64       `json:"post_restock_quantity" db:"post_restock_quantity"`
	Projected        float64       `json:"projected" db:"projected"`
	MinShortfall     float64       `json:"min_shortfall" db:"min_shortfall"`
	MaxShortfall     float64       `json:"max_shortfall" db:"max_shortfall"`
	WithinCapacity   bool          `json:"within_capacity" db:"within_capacity"`
	Tiers            []TierShare   `json:"tiers" db:"-"`
	RecommendedUnits float64       `json:"recommended_units" db:"recommended_units"`
	RecommendedLines int           `json:"recommended_lines" db:"recommended_lines"`
}

// BranchResult bundles what one branch-group job produces.
type BranchResult struct {
	Group    WarehouseGroup
	Lines    []BranchRequestLine
	Capacity CapacityReport
}

// RunSummary describes a recommendation run for API consumers.
type RunSummary struct {
	ID            int64        `json:"id"`
	RunKey        string       `json:"run_key"`
	PipelineName  string       `json:"pipeline_name"`
	Status        string       `json:"status"`
	TotalJobs     int          `json:"total_jobs"`
	CompletedJobs int          `json:"completed_jobs"`
	FailedJobs    int          `json:"failed_jobs"`
	StartedAt     time.Time    `json:"started_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	Jobs          []JobSummary `json:"jobs,omitempty"`
}

// JobSummary is one branch-group job of a run.
type JobSummary struct {
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}
