package restock

import "github.com/andresuchdata/restockplan/internal/domain"

// PriorityStrategy assigns the combined restock tier. The thresholds and the
// tier count are the only differences between recommendation generations.
type PriorityStrategy struct {
	MarginThreshold float64
	DOHLimit        float64
	DSILimit        float64
	// Tiers is 4 (A-D) or 3, where D folds into C.
	Tiers int
}

// DefaultPriorityStrategy uses the company-average margin of 54.47%.
func DefaultPriorityStrategy() PriorityStrategy {
	return PriorityStrategy{MarginThreshold: 54.47, DOHLimit: 180, DSILimit: 90, Tiers: 4}
}

// Classify returns exactly one tier, first match wins: A, B, D, then C.
// Without an evaluation every comparison is false and the line is C.
func (s PriorityStrategy) Classify(ev *domain.ProductEvaluation) domain.Priority {
	if ev == nil {
		return domain.PriorityC
	}

	highValue := ev.ABC == domain.ABCA || ev.ABC == domain.ABCB
	fastDSI := ev.DSI <= s.DSILimit
	freshDOH := ev.DOH <= s.DOHLimit
	goodMargin := ev.Margin >= s.MarginThreshold

	switch {
	case highValue && freshDOH && fastDSI && goodMargin:
		return domain.PriorityA
	case highValue && fastDSI:
		return domain.PriorityB
	case ev.ABC == domain.ABCC && !freshDOH && !fastDSI && !goodMargin:
		if s.Tiers == 3 {
			return domain.PriorityC
		}
		return domain.PriorityD
	default:
		return domain.PriorityC
	}
}
