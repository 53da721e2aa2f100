package evaluation

import (
	"context"
	"fmt"

	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/andresuchdata/restockplan/pkg/logger"
)

// Options are the injected filters and ordering switches of an evaluation run.
type Options struct {
	// Categories is the allow-list of product categories; empty admits all.
	Categories []string
	// Warehouses restricts the stock snapshot used as closing inventory.
	Warehouses []string

	DSIEndDate           DSIEndDate
	RefreshTypeSummaries bool
}

// Inputs are the extracts an evaluation run reads.
type Inputs struct {
	Inventory []domain.InventoryRecord
	Sales     []domain.SalesRecord
	Margins   []domain.MarginRecord
	Stock     []domain.StockRecord
}

// Result is the evaluation table plus what it took to build it.
type Result struct {
	Evaluations []domain.ProductEvaluation
	Summaries   TypeSummaries
	Report      Report
}

// Engine rebuilds the product evaluation table from scratch on every call.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	if opts.DSIEndDate == "" {
		opts.DSIEndDate = EndAtLastSale
	}
	return &Engine{opts: opts}
}

// Evaluate runs the aggregators, joins them and imputes the gaps.
func (e *Engine) Evaluate(ctx context.Context, in Inputs) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(in.Margins) == 0 {
		return nil, fmt.Errorf("margin extract is empty, no stocked codes to evaluate: %w", domain.ErrUpstreamExtract)
	}

	log := logger.Component("evaluation")

	// 1. Inventory history: placeholders without cogs never count.
	inventory := ActiveInventory(in.Inventory)
	spans := InventorySpans(inventory)
	opening := OpeningStocks(inventory)
	doh := DaysOnHand(inventory, opening)

	// 2. Closing stock and sell-through
	closing := ClosingStocks(in.Stock, e.opts.Categories, e.opts.Warehouses)
	totals := SummarizeSales(in.Sales)
	dsi := DSITable(closing, spans, totals, e.opts.DSIEndDate)

	// 3. Classifications
	abc := ABC(totals)
	xyz := XYZ(in.Sales)
	margins := Margins(in.Sales)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 4. Join and restrict to what is stocked today
	rows := combine(Metrics{DSI: dsi, ABC: abc, XYZ: xyz, Margins: margins, DOH: doh}, StockedCodes(in.Margins))

	// 5. Fallbacks
	evals, summaries, rep := impute(rows, MarginSource(in.Margins), ImputeOptions{
		RefreshTypeSummaries: e.opts.RefreshTypeSummaries,
	})

	for _, d := range rep.Dropped {
		log.Warn().Str("code", d.Code).Str("type", d.Type).Err(d.Reason).Msg("code removed from evaluation")
	}
	log.Info().
		Int("candidates", rep.Candidates).
		Int("evaluated", len(evals)).
		Int("dropped", len(rep.Dropped)).
		Int("dsi_imputed", rep.DSIImputed).
		Int("abc_imputed", rep.ABCImputed).
		Int("xyz_imputed", rep.XYZImputed).
		Int("abc_global_fallback", rep.ABCGlobalFallback).
		Int("xyz_global_fallback", rep.XYZGlobalFallback).
		Int("slow_mover_overrides", rep.SlowMoverOverrides).
		Int("margin_filled", rep.MarginFilled).
		Int("dsi_inf_replaced", rep.DSIInfReplaced).
		Int("doh_defaulted", rep.DOHDefaulted).
		Bool("refresh_type_summaries", e.opts.RefreshTypeSummaries).
		Msg("evaluation imputation report")

	return &Result{Evaluations: evals, Summaries: summaries, Report: rep}, nil
}
