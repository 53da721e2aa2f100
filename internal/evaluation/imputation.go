package evaluation

import (
	"fmt"
	"math"

	"github.com/andresuchdata/restockplan/internal/domain"
)

// Slow-mover rule: long-held, well-stocked, practically unsold.
const (
	slowMoverDOH        = 182
	slowMoverClosingQty = 20
	slowMoverMaxSales   = 5
)

// TypeSummaries are the per-type fallbacks used to back-fill missing classifications.
type TypeSummaries struct {
	DSI map[string]float64
	ABC map[string]domain.ABCClass
	XYZ map[string]domain.XYZClass

	// Whole-table expected letters, used when a type has no samples.
	GlobalABC domain.ABCClass
	GlobalXYZ domain.XYZClass
}

// DroppedCode records a code removed from the evaluation set and why.
type DroppedCode struct {
	Code   string
	Type   string
	Reason error
}

// Report counts every substitution the imputation applied.
type Report struct {
	Candidates         int
	DSIImputed         int
	ABCImputed         int
	XYZImputed         int
	ABCGlobalFallback  int
	XYZGlobalFallback  int
	SlowMoverOverrides int
	MarginFilled       int
	DSIInfReplaced     int
	DOHDefaulted       int
	Dropped            []DroppedCode
}

// buildTypeSummaries computes the mean finite DSI per type and the arg-max
// ABC and XYZ letter per type. Rows without a type never contribute.
func buildTypeSummaries(rows []*candidate) TypeSummaries {
	dsiSum := make(map[string]float64)
	dsiN := make(map[string]int)
	abcCount := make(map[string]map[domain.ABCClass]int)
	xyzCount := make(map[string]map[domain.XYZClass]int)
	globalABC := make(map[domain.ABCClass]int)
	globalXYZ := make(map[domain.XYZClass]int)

	for _, r := range rows {
		if r.ABC != "" {
			globalABC[r.ABC]++
		}
		if r.XYZ != "" {
			globalXYZ[r.XYZ]++
		}
		if r.Type == "" {
			continue
		}
		if r.DSI != nil && !math.IsInf(*r.DSI, 0) {
			dsiSum[r.Type] += *r.DSI
			dsiN[r.Type]++
		}
		if r.ABC != "" {
			if abcCount[r.Type] == nil {
				abcCount[r.Type] = make(map[domain.ABCClass]int)
			}
			abcCount[r.Type][r.ABC]++
		}
		if r.XYZ != "" {
			if xyzCount[r.Type] == nil {
				xyzCount[r.Type] = make(map[domain.XYZClass]int)
			}
			xyzCount[r.Type][r.XYZ]++
		}
	}

	s := TypeSummaries{
		DSI: make(map[string]float64, len(dsiSum)),
		ABC: make(map[string]domain.ABCClass, len(abcCount)),
		XYZ: make(map[string]domain.XYZClass, len(xyzCount)),
	}
	for t, sum := range dsiSum {
		s.DSI[t] = sum / float64(dsiN[t])
	}
	for t, counts := range abcCount {
		s.ABC[t] = argMax(domain.ABCClasses, counts)
	}
	for t, counts := range xyzCount {
		s.XYZ[t] = argMax(domain.XYZClasses, counts)
	}
	s.GlobalABC = argMax(domain.ABCClasses, globalABC)
	s.GlobalXYZ = argMax(domain.XYZClasses, globalXYZ)
	return s
}

// argMax returns the letter with the largest within-type share. Shares are
// proportional to counts, so counts decide; ties go to the earliest letter.
// No samples at all yields "".
func argMax[T comparable](order []T, counts map[T]int) T {
	var (
		best  T
		bestN int
	)
	for _, letter := range order {
		if n := counts[letter]; n > bestN {
			best, bestN = letter, n
		}
	}
	return best
}

// ImputeOptions controls ordering choices of the imputation.
type ImputeOptions struct {
	// RefreshTypeSummaries recomputes the ABC/XYZ fallbacks after the DSI
	// removal gate instead of reusing the pre-removal tables.
	RefreshTypeSummaries bool
}

// impute back-fills and clamps candidate rows, in this order:
// DSI from type mean (rows left without DSI are dropped), ABC and XYZ from
// type expectations, slow-mover override, margin from the margin source,
// +-Inf DSI to 999, and missing doh to 30. Rows still incomplete after that
// are dropped as defects.
func impute(rows []*candidate, marginSource map[string]float64, opts ImputeOptions) ([]domain.ProductEvaluation, TypeSummaries, Report) {
	rep := Report{Candidates: len(rows)}
	summaries := buildTypeSummaries(rows)

	// 1. DSI, the single removal gate.
	kept := make([]*candidate, 0, len(rows))
	for _, r := range rows {
		if r.DSI == nil {
			if mean, ok := summaries.DSI[r.Type]; ok && r.Type != "" {
				v := mean
				r.DSI = &v
				rep.DSIImputed++
			}
		}
		if r.DSI == nil {
			rep.Dropped = append(rep.Dropped, DroppedCode{Code: r.Code, Type: r.Type, Reason: dropReason(r)})
			continue
		}
		kept = append(kept, r)
	}

	if opts.RefreshTypeSummaries {
		refreshed := buildTypeSummaries(kept)
		summaries.ABC, summaries.XYZ = refreshed.ABC, refreshed.XYZ
		summaries.GlobalABC, summaries.GlobalXYZ = refreshed.GlobalABC, refreshed.GlobalXYZ
	}

	for _, r := range kept {
		// 2. ABC
		if r.ABC == "" {
			if v := summaries.ABC[r.Type]; v != "" {
				r.ABC = v
				rep.ABCImputed++
			} else {
				r.ABC = orDefault(summaries.GlobalABC, domain.ABCC)
				rep.ABCGlobalFallback++
			}
		}

		// 3. XYZ
		if r.XYZ == "" {
			if v := summaries.XYZ[r.Type]; v != "" {
				r.XYZ = v
				rep.XYZImputed++
			} else {
				r.XYZ = orDefault(summaries.GlobalXYZ, domain.XYZZ)
				rep.XYZGlobalFallback++
			}
		}

		// 4. Slow-mover override, regardless of what was there.
		if IsSlowMover(r.DOH, r.ClosingInventory, r.TotalSales) {
			r.ABC, r.XYZ = domain.ABCC, domain.XYZZ
			rep.SlowMoverOverrides++
		}

		// 5. Margin
		if r.Margin == nil {
			if v, ok := marginSource[r.Code]; ok {
				r.Margin = &v
				rep.MarginFilled++
			}
		}

		// 6. DSI sentinel
		if math.IsInf(*r.DSI, 0) {
			v := NonMovingDSI
			r.DSI = &v
			rep.DSIInfReplaced++
		}

		// 7. DOH default
		if r.DOH == nil {
			v := DefaultDOHDays
			r.DOH = &v
			rep.DOHDefaulted++
		}
	}

	out := make([]domain.ProductEvaluation, 0, len(kept))
	for _, r := range kept {
		if r.Margin == nil || math.IsNaN(*r.Margin) || math.IsInf(*r.Margin, 0) {
			rep.Dropped = append(rep.Dropped, DroppedCode{
				Code:   r.Code,
				Type:   r.Type,
				Reason: fmt.Errorf("no margin after fallback: %w", domain.ErrMissingJoinKey),
			})
			continue
		}
		out = append(out, domain.ProductEvaluation{
			Code:             r.Code,
			ProductName:      r.ProductName,
			Category:         r.Category,
			Type:             r.Type,
			ClosingInventory: r.ClosingInventory,
			TotalSales:       r.TotalSales,
			DSI:              *r.DSI,
			ABC:              r.ABC,
			XYZ:              r.XYZ,
			Margin:           *r.Margin,
			DOH:              *r.DOH,
		})
	}

	return out, summaries, rep
}

// IsSlowMover applies the slow-mover rule. An unknown doh never qualifies.
func IsSlowMover(doh *float64, closingInventory, totalSales float64) bool {
	return doh != nil && *doh > slowMoverDOH &&
		closingInventory > slowMoverClosingQty &&
		totalSales <= slowMoverMaxSales
}

func dropReason(r *candidate) error {
	if !r.inDSITable {
		return fmt.Errorf("stocked code absent from closing stock: %w", domain.ErrMissingJoinKey)
	}
	return fmt.Errorf("type %q has no defined DSI: %w", r.Type, domain.ErrUnrecoverableCategory)
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
