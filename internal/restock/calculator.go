package restock

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/andresuchdata/restockplan/internal/domain"
)

// Inputs are the read-only tables every branch group computation shares.
type Inputs struct {
	Stock       []domain.StockRecord
	Sales       []domain.SalesRecord
	Inventory   []domain.InventoryRecord
	Evaluations map[string]domain.ProductEvaluation
	// BoxQuantities holds the carton size per code; missing codes use the default.
	BoxQuantities map[string]float64
	Exclusions    map[string]bool
	Shares        map[string]float64
}

// NewInputs indexes the evaluation table, product metadata and exclusion list.
func NewInputs(stock []domain.StockRecord, sales []domain.SalesRecord, inventory []domain.InventoryRecord,
	evals []domain.ProductEvaluation, products []domain.ProductMeta, exclusions []string, shares map[string]float64) *Inputs {
	in := &Inputs{
		Stock:         stock,
		Sales:         sales,
		Inventory:     inventory,
		Evaluations:   make(map[string]domain.ProductEvaluation, len(evals)),
		BoxQuantities: make(map[string]float64, len(products)),
		Exclusions:    make(map[string]bool, len(exclusions)),
		Shares:        shares,
	}
	for _, e := range evals {
		in.Evaluations[e.Code] = e
	}
	for _, p := range products {
		in.BoxQuantities[p.Code] = p.BoxQuantity
	}
	for _, code := range exclusions {
		in.Exclusions[code] = true
	}
	return in
}

// Options configure the calculator.
type Options struct {
	CentralStorage     string
	Categories         []string
	Priority           PriorityStrategy
	DefaultBoxQuantity float64
	Capacity           CapacityOptions
}

// Calculator turns shared inputs into one branch group's request lines and
// capacity report. It holds no mutable state, so groups can run concurrently.
type Calculator struct {
	opts Options
}

func NewCalculator(opts Options) *Calculator {
	if opts.DefaultBoxQuantity <= 0 {
		opts.DefaultBoxQuantity = 1
	}
	if opts.Priority.Tiers == 0 {
		opts.Priority = DefaultPriorityStrategy()
	}
	return &Calculator{opts: opts}
}

// Branch computes the request lines of one group and checks them against
// the group's capacity.
func (c *Calculator) Branch(ctx context.Context, group domain.WarehouseGroup, in *Inputs) (*domain.BranchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	share, ok := in.Shares[group.Name]
	if !ok {
		return nil, fmt.Errorf("group %s has no sales-share ratio: %w", group.Name, domain.ErrMissingJoinKey)
	}

	lines, err := c.Lines(group, in, share)
	if err != nil {
		return nil, err
	}
	report := Capacity(group, lines, in.Inventory, c.opts.Capacity)
	return &domain.BranchResult{Group: group, Lines: lines, Capacity: report}, nil
}

type stockRow struct {
	line        domain.BranchRequestLine
	central     float64
	fromCentral bool
}

// Lines produces the request lines of a branch group, sorted by code, with
// excluded codes removed last.
func (c *Calculator) Lines(group domain.WarehouseGroup, in *Inputs, share float64) ([]domain.BranchRequestLine, error) {
	// 1. Restrict stock to the group and central storage. Central stock is
	// supply, never branch inventory.
	allowCat := make(map[string]bool, len(c.opts.Categories))
	for _, cat := range c.opts.Categories {
		allowCat[cat] = true
	}

	// 2. One row per code, branch warehouses summed.
	rows := make(map[string]*stockRow)
	branchRows := 0
	for _, s := range in.Stock {
		central := s.Warehouse == c.opts.CentralStorage
		if !central && !group.Contains(s.Warehouse) {
			continue
		}
		if len(allowCat) > 0 && !allowCat[s.Category] {
			continue
		}
		r, seen := rows[s.Code]
		if !seen {
			r = &stockRow{}
			rows[s.Code] = r
		}
		// Product attributes come from the branch row when there is one.
		if !seen || (r.fromCentral && !central) {
			r.fromCentral = central
			r.line = domain.BranchRequestLine{
				Group:         group.Name,
				Branch:        group.BranchName(),
				Code:          s.Code,
				SKU:           s.SKU,
				ProductName:   s.ProductName,
				Category:      s.Category,
				Type:          s.Type,
				StockQuantity: r.line.StockQuantity,
				StockCogs:     r.line.StockCogs,
			}
		}
		if central {
			r.central += s.Quantity
			continue
		}
		branchRows++
		r.line.StockQuantity += s.Quantity
		r.line.StockCogs += s.Cogs
	}
	if branchRows == 0 {
		return nil, fmt.Errorf("group %s: no stock rows for %v: %w", group.Name, group.Warehouses, domain.ErrUpstreamExtract)
	}

	demand := MonthlyDemand(in.Sales, group)

	codes := make([]string, 0, len(rows))
	for code := range rows {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]domain.BranchRequestLine, 0, len(codes))
	for _, code := range codes {
		r := rows[code]
		l := &r.line

		// 3. Evaluation columns
		var ev *domain.ProductEvaluation
		if e, ok := in.Evaluations[code]; ok {
			ev = &e
			l.Evaluated = true
			l.ABC, l.DSI, l.DOH, l.Margin = e.ABC, e.DSI, e.DOH, e.Margin
		}

		// 4. Trailing demand
		if d, ok := demand[code]; ok {
			l.AvgMonthlySales, l.AvgMonthlyCogs = d.Quantity, d.Cogs
		}

		// 5-7. Supply, boxes and recommendation
		l.BoxQuantity = c.boxQuantity(in.BoxQuantities, code)
		l.AvailableQuantity = QuantizeAvailable(math.RoundToEven(r.central*share), l.BoxQuantity)
		l.RecommendedQuantity = Recommend(l.AvailableQuantity, l.BoxQuantity, l.AvgMonthlySales, l.StockQuantity)

		// 8. Tier
		l.Priority = c.opts.Priority.Classify(ev)

		// 9. Exclusions apply after everything else.
		if in.Exclusions[code] {
			continue
		}
		out = append(out, *l)
	}
	return out, nil
}

func (c *Calculator) boxQuantity(boxes map[string]float64, code string) float64 {
	if b, ok := boxes[code]; ok && b > 0 {
		return b
	}
	return c.opts.DefaultBoxQuantity
}

// Demand is a code's average monthly sales in a branch.
type Demand struct {
	Quantity float64
	Cogs     float64
}

// MonthlyDemand sums the group's sales per calendar month and code, then
// averages those monthly totals over the months the code sold in. Negative
// average cogs are data artifacts and clamp to 0.
func MonthlyDemand(sales []domain.SalesRecord, group domain.WarehouseGroup) map[string]Demand {
	type monthKey struct {
		code        string
		year, month int
	}
	monthly := make(map[monthKey]Demand)
	for _, s := range sales {
		if !group.Contains(s.Warehouse) {
			continue
		}
		k := monthKey{code: s.Code, year: s.Date.Year(), month: int(s.Date.Month())}
		d := monthly[k]
		d.Quantity += s.Quantity
		d.Cogs += s.Cogs
		monthly[k] = d
	}

	sums := make(map[string]Demand)
	months := make(map[string]int)
	for k, d := range monthly {
		s := sums[k.code]
		s.Quantity += d.Quantity
		s.Cogs += d.Cogs
		sums[k.code] = s
		months[k.code]++
	}

	out := make(map[string]Demand, len(sums))
	for code, s := range sums {
		n := float64(months[code])
		avg := Demand{Quantity: s.Quantity / n, Cogs: s.Cogs / n}
		if avg.Cogs < 0 {
			avg.Cogs = 0
		}
		out[code] = avg
	}
	return out
}

// QuantizeAvailable rounds supply down to whole boxes; less than one box is nothing.
func QuantizeAvailable(available, box float64) float64 {
	if box <= 0 || available < box {
		return 0
	}
	return math.Floor(available/box) * box
}

// Recommend orders the boxes needed for one month of cover, capped by the
// quantized supply. A negative target orders nothing.
func Recommend(available, box, avgMonthlySales, stockQuantity float64) float64 {
	if available == 0 || box <= 0 {
		return 0
	}
	target := math.RoundToEven((avgMonthlySales-stockQuantity)/box) * box
	if target < 0 {
		target = 0
	}
	if target >= available {
		return available
	}
	return target
}
