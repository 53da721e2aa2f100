package restock

import (
	"time"

	"github.com/andresuchdata/restockplan/internal/domain"
)

// CapacityOptions configure the capacity check.
type CapacityOptions struct {
	Basis domain.CapacityBasis
	// FloorRatio sets the minimum target as a fraction of max capacity.
	FloorRatio float64
	// TargetProfile is the desired share of stock per tier, in percent.
	TargetProfile map[domain.Priority]float64
}

// DefaultCapacityOptions is cogs-based with a 70% floor and an A20/B50/C20/D10 profile.
func DefaultCapacityOptions() CapacityOptions {
	return CapacityOptions{
		Basis:      domain.CapacityByCogs,
		FloorRatio: 0.7,
		TargetProfile: map[domain.Priority]float64{
			domain.PriorityA: 20,
			domain.PriorityB: 50,
			domain.PriorityC: 20,
			domain.PriorityD: 10,
		},
	}
}

// Capacity measures a branch's recommendation set against the most the
// branch ever held. The projection prices post-restock units at the
// branch's average unit cost instead of summing per-line costs.
func Capacity(group domain.WarehouseGroup, lines []domain.BranchRequestLine, inventory []domain.InventoryRecord, opts CapacityOptions) domain.CapacityReport {
	if opts.Basis == "" {
		opts.Basis = domain.CapacityByCogs
	}
	if opts.FloorRatio <= 0 {
		opts.FloorRatio = 0.7
	}

	rep := domain.CapacityReport{
		Group:       group.Name,
		Branch:      group.BranchName(),
		Basis:       opts.Basis,
		MaxCapacity: MaxCapacity(group, inventory, opts.Basis),
	}
	rep.MinTarget = opts.FloorRatio * rep.MaxCapacity

	type tierSum struct{ qty, cogs, post float64 }
	tiers := make(map[domain.Priority]*tierSum, len(domain.Priorities))
	for _, p := range domain.Priorities {
		tiers[p] = &tierSum{}
	}

	for _, l := range lines {
		rep.StockQuantity += l.StockQuantity
		rep.StockCogs += l.StockCogs
		rep.PostRestockQty += l.PostRestockQuantity()
		rep.RecommendedUnits += l.RecommendedQuantity
		if l.RecommendedQuantity > 0 {
			rep.RecommendedLines++
		}
		if t, ok := tiers[l.Priority]; ok {
			t.qty += l.StockQuantity
			t.cogs += l.StockCogs
			t.post += l.PostRestockQuantity()
		}
	}

	unitCost := 0.0
	if rep.StockQuantity != 0 {
		unitCost = rep.StockCogs / rep.StockQuantity
	}
	if opts.Basis == domain.CapacityByQuantity {
		rep.Projected = rep.PostRestockQty
	} else {
		rep.Projected = unitCost * rep.PostRestockQty
	}
	rep.MinShortfall = rep.MinTarget - rep.Projected
	rep.MaxShortfall = rep.MaxCapacity - rep.Projected
	rep.WithinCapacity = rep.Projected <= rep.MaxCapacity

	// Projected shares price every tier at the same unit cost, so in both
	// bases they reduce to shares of post-restock units.
	for _, p := range domain.Priorities {
		t := tiers[p]
		share := domain.TierShare{Priority: p, TargetShare: opts.TargetProfile[p]}
		if opts.Basis == domain.CapacityByQuantity {
			share.CurrentShare = percent(t.qty, rep.StockQuantity)
		} else {
			share.CurrentShare = percent(t.cogs, rep.StockCogs)
		}
		share.ProjectedShare = percent(t.post, rep.PostRestockQty)
		rep.Tiers = append(rep.Tiers, share)
	}
	return rep
}

// MaxCapacity is the largest monthly total of the group's warehouses in the
// inventory history, by cogs or quantity. The quantity basis reads the raw
// history; the cogs basis skips rows without cogs, and with them any month
// that only has such rows.
func MaxCapacity(group domain.WarehouseGroup, inventory []domain.InventoryRecord, basis domain.CapacityBasis) float64 {
	totals := make(map[time.Time]float64)
	for _, r := range inventory {
		if !group.Contains(r.Warehouse) {
			continue
		}
		if basis == domain.CapacityByQuantity {
			totals[r.Period()] += r.Quantity
			continue
		}
		if r.Cogs != 0 {
			totals[r.Period()] += r.Cogs
		}
	}

	peak := 0.0
	first := true
	for _, v := range totals {
		if first || v > peak {
			peak, first = v, false
		}
	}
	return peak
}

func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * part / whole
}
