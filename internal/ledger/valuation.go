package ledger

import "github.com/alanyoungcy/optionsdesk/internal/domain"

// AverageCost is cost basis per share, or 0 for an empty position.
func AverageCost(costBasis, shares float64) float64 {
	if shares == 0 {
		return 0
	}
	return costBasis / shares
}

// MarketValue is shares times price; nil when no price is known.
func MarketValue(shares float64, price *float64) *float64 {
	if price == nil {
		return nil
	}
	v := shares * *price
	return &v
}

// UnrealizedPL is market value less cost basis; nil when either is unknown.
func UnrealizedPL(marketValue, costBasis *float64) *float64 {
	if marketValue == nil || costBasis == nil {
		return nil
	}
	v := *marketValue - *costBasis
	return &v
}

// UnrealizedPLPercent is the P/L as a percentage of cost basis; nil when
// either is unknown or the cost basis is zero.
func UnrealizedPLPercent(pl, costBasis *float64) *float64 {
	if pl == nil || costBasis == nil || *costBasis == 0 {
		return nil
	}
	v := *pl / *costBasis * 100
	return &v
}

// Valuate returns p with every derived field recomputed from its inputs.
func Valuate(p domain.Position) domain.Position {
	costBasis := p.CostBasis
	p.AverageCost = AverageCost(p.CostBasis, p.Shares)
	p.MarketValue = MarketValue(p.Shares, p.CurrentPrice)
	p.UnrealizedPL = UnrealizedPL(p.MarketValue, &costBasis)
	p.UnrealizedPLPercent = UnrealizedPLPercent(p.UnrealizedPL, &costBasis)
	return p
}

// Revalue is Valuate plus a range check on every derived figure.
func Revalue(p domain.Position) (domain.Position, error) {
	p = Valuate(p)
	v := &domain.ValidationError{}
	if !inRange(p.AverageCost) {
		v.Add("averageCost", "Average cost is out of range")
	}
	for _, f := range []struct {
		field, label string
		val          *float64
	}{
		{"marketValue", "Market value", p.MarketValue},
		{"unrealizedPL", "Unrealized P/L", p.UnrealizedPL},
		{"unrealizedPLPercent", "Unrealized P/L percent", p.UnrealizedPLPercent},
	} {
		if f.val != nil && !inRange(*f.val) {
			v.Add(f.field, f.label+" is out of range")
		}
	}
	if err := v.Err(); err != nil {
		return domain.Position{}, err
	}
	return p, nil
}
