// Package ledger holds the pure financial rules for option trades and equity
// positions: leg costs, action pairing, realized P/L, the open/close/edit
// lifecycle, position valuation and portfolio rollups. Nothing here touches
// storage; callers load, apply and persist.
package ledger

import (
	"math"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

// maxAmount bounds every derived figure the ledger stores.
const maxAmount = 1e15

func inRange(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= maxAmount
}

// The conversion forces rounding before the commission is applied so no
// platform fuses the multiply and add.
func premiumCost(quantity int, premium float64) float64 {
	return float64(premium * float64(quantity) * domain.ContractMultiplier)
}

// OpenTotalCost is the signed cash amount of an opening leg. Commission is
// added when buying and deducted from the credit when selling.
func OpenTotalCost(action domain.OpeningAction, quantity int, premium, commission float64) float64 {
	cost := premiumCost(quantity, premium)
	if action == domain.BuyToOpen {
		return cost + commission
	}
	return cost - commission
}

// CloseTotalCost is the signed cash amount of a closing leg.
func CloseTotalCost(action domain.ClosingAction, quantity int, premium, commission float64) float64 {
	cost := premiumCost(quantity, premium)
	if action == domain.SellToClose {
		return cost - commission
	}
	return cost + commission
}

// IsValidClosingAction reports whether close legally ends a trade opened
// with open.
func IsValidClosingAction(open domain.OpeningAction, close domain.ClosingAction) bool {
	switch open {
	case domain.BuyToOpen:
		return close == domain.SellToClose
	case domain.SellToOpen:
		return close == domain.BuyToClose
	}
	return false
}

// ExpectedClosingAction returns the only closing action that pairs with open.
func ExpectedClosingAction(open domain.OpeningAction) domain.ClosingAction {
	if open == domain.SellToOpen {
		return domain.BuyToClose
	}
	return domain.SellToClose
}

// ProfitLoss is the realized result of a round trip. Long trades gain when
// the closing proceeds exceed the opening cost; short trades gain when the
// buy-back costs less than the opening credit.
func ProfitLoss(open domain.OpeningAction, openTotalCost, closeTotalCost float64) float64 {
	if open == domain.BuyToOpen {
		return closeTotalCost - openTotalCost
	}
	return openTotalCost - closeTotalCost
}
