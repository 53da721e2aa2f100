package restock

import (
	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	shareStep = decimal.New(1, -2)
	shareCap  = decimal.NewFromInt(1)
)

// ShareRatios apportions central storage supply between branch groups by
// their share of non-central cost of goods sold. Shares are rounded half to
// even at 2 decimals; when rounding pushes the sum above 1 the shares that
// were rounded up the most give back 0.01 each, ties to the earlier group,
// until the sum fits.
func ShareRatios(sales []domain.SalesRecord, reg domain.Registry) map[string]float64 {
	total := decimal.Zero
	byWarehouse := make(map[string]decimal.Decimal)
	for _, s := range sales {
		if s.Warehouse == reg.CentralStorage {
			continue
		}
		c := decimal.NewFromFloat(s.Cogs)
		byWarehouse[s.Warehouse] = byWarehouse[s.Warehouse].Add(c)
		total = total.Add(c)
	}

	raw := make([]decimal.Decimal, len(reg.Groups))
	rounded := make([]decimal.Decimal, len(reg.Groups))
	sum := decimal.Zero
	for i, g := range reg.Groups {
		if total.IsZero() {
			continue
		}
		groupCogs := decimal.Zero
		for _, w := range g.Warehouses {
			groupCogs = groupCogs.Add(byWarehouse[w])
		}
		raw[i] = groupCogs.Div(total)
		rounded[i] = raw[i].RoundBank(2)
		sum = sum.Add(rounded[i])
	}

	for sum.GreaterThan(shareCap) {
		pick := -1
		var worst decimal.Decimal
		for i := range rounded {
			if !rounded[i].IsPositive() {
				continue
			}
			excess := rounded[i].Sub(raw[i])
			if pick < 0 || excess.GreaterThan(worst) {
				pick, worst = i, excess
			}
		}
		if pick < 0 {
			break
		}
		rounded[pick] = rounded[pick].Sub(shareStep)
		sum = sum.Sub(shareStep)
	}

	out := make(map[string]float64, len(reg.Groups))
	for i, g := range reg.Groups {
		out[g.Name] = rounded[i].InexactFloat64()
	}
	return out
}
