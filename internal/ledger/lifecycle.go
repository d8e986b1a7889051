package ledger

import (
	"time"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

// OpenTrade describes a trade being opened.
type OpenTrade struct {
	PortfolioID    *string
	Symbol         string
	OptionType     domain.OptionType
	StrikePrice    float64
	ExpirationDate domain.Date
	Action         domain.OpeningAction
	Quantity       int
	Premium        float64
	Commission     *float64
	TradeDate      domain.Date
	Notes          string
}

// CloseTrade is the caller-supplied closing leg. Quantity is not part of it;
// a trade always closes its full opening quantity.
type CloseTrade struct {
	Action     domain.ClosingAction
	Premium    float64
	Commission *float64
	TradeDate  domain.Date
}

// TradeEdit is a partial update. Nil fields stay unchanged. A PortfolioID
// pointing at the empty string detaches the trade from its portfolio.
type TradeEdit struct {
	PortfolioID    *string
	Symbol         *string
	OptionType     *domain.OptionType
	StrikePrice    *float64
	ExpirationDate *domain.Date
	OpenAction     *domain.OpeningAction
	OpenQuantity   *int
	OpenPremium    *float64
	OpenCommission *float64
	OpenTradeDate  *domain.Date
	Notes          *string

	CloseAction     *domain.ClosingAction
	ClosePremium    *float64
	CloseCommission *float64
	CloseTradeDate  *domain.Date
}

func (e TradeEdit) openCostChanged() bool {
	return e.OpenAction != nil || e.OpenQuantity != nil || e.OpenPremium != nil || e.OpenCommission != nil
}

func (e TradeEdit) closeCostChanged() bool {
	return e.CloseAction != nil || e.ClosePremium != nil || e.CloseCommission != nil
}

func (e TradeEdit) touchesClose() bool {
	return e.closeCostChanged() || e.CloseTradeDate != nil
}

// Open builds a new open trade from ot.
func Open(ot OpenTrade, id, userID string, now time.Time) (domain.Trade, error) {
	if err := ot.Validate(); err != nil {
		return domain.Trade{}, err
	}
	t := domain.Trade{
		ID:             id,
		UserID:         userID,
		PortfolioID:    nonEmpty(ot.PortfolioID),
		Symbol:         ot.Symbol,
		OptionType:     ot.OptionType,
		StrikePrice:    ot.StrikePrice,
		ExpirationDate: ot.ExpirationDate,
		Open: domain.OpeningLeg{
			Action:     ot.Action,
			Quantity:   ot.Quantity,
			Premium:    ot.Premium,
			Commission: *ot.Commission,
			TradeDate:  ot.TradeDate,
		},
		Status:    domain.TradeOpen,
		Notes:     ot.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.Open.TotalCost = OpenTotalCost(t.Open.Action, t.Open.Quantity, t.Open.Premium, t.Open.Commission)
	if err := checkTotals(t); err != nil {
		return domain.Trade{}, err
	}
	return t, nil
}

// Close ends an open trade. The input trade is never modified; on error the
// caller still holds the original value.
func Close(t domain.Trade, c CloseTrade, now time.Time) (domain.Trade, error) {
	if err := c.Validate(); err != nil {
		return domain.Trade{}, err
	}
	if t.IsClosed() {
		return domain.Trade{}, domain.RejectCode(domain.ErrInvalidState, "TRADE_ALREADY_CLOSED", "Trade is already closed")
	}
	if !IsValidClosingAction(t.Open.Action, c.Action) {
		return domain.Trade{}, &domain.TransitionError{
			Open:     t.Open.Action,
			Close:    c.Action,
			Expected: ExpectedClosingAction(t.Open.Action),
		}
	}

	leg := domain.ClosingLeg{
		Action:     c.Action,
		Quantity:   t.Open.Quantity,
		Premium:    c.Premium,
		Commission: *c.Commission,
		TradeDate:  c.TradeDate,
	}
	leg.TotalCost = CloseTotalCost(leg.Action, leg.Quantity, leg.Premium, leg.Commission)
	pl := ProfitLoss(t.Open.Action, t.Open.TotalCost, leg.TotalCost)

	t.Close = &leg
	t.ProfitLoss = &pl
	t.Status = domain.TradeClosed
	if err := checkTotals(t); err != nil {
		return domain.Trade{}, err
	}
	t.UpdatedAt = now
	return t, nil
}

// Apply produces the edited trade: the changes are laid onto a draft copy
// and the affected derived fields are recomputed before it is returned.
func (e TradeEdit) Apply(t domain.Trade, now time.Time) (domain.Trade, error) {
	if err := e.Validate(); err != nil {
		return domain.Trade{}, err
	}
	if !t.IsClosed() && e.touchesClose() {
		return domain.Trade{}, domain.Reject(domain.ErrInvalidState, "Closing fields can only be edited on a closed trade")
	}

	draft := cloneTrade(t)
	if e.PortfolioID != nil {
		draft.PortfolioID = nonEmpty(e.PortfolioID)
	}
	if e.Symbol != nil {
		draft.Symbol = *e.Symbol
	}
	if e.OptionType != nil {
		draft.OptionType = *e.OptionType
	}
	if e.StrikePrice != nil {
		draft.StrikePrice = *e.StrikePrice
	}
	if e.ExpirationDate != nil {
		draft.ExpirationDate = *e.ExpirationDate
	}
	if e.OpenAction != nil {
		draft.Open.Action = *e.OpenAction
	}
	if e.OpenQuantity != nil {
		draft.Open.Quantity = *e.OpenQuantity
	}
	if e.OpenPremium != nil {
		draft.Open.Premium = *e.OpenPremium
	}
	if e.OpenCommission != nil {
		draft.Open.Commission = *e.OpenCommission
	}
	if e.OpenTradeDate != nil {
		draft.Open.TradeDate = *e.OpenTradeDate
	}
	if e.Notes != nil {
		draft.Notes = *e.Notes
	}
	if c := draft.Close; c != nil {
		if e.CloseAction != nil {
			c.Action = *e.CloseAction
		}
		if e.ClosePremium != nil {
			c.Premium = *e.ClosePremium
		}
		if e.CloseCommission != nil {
			c.Commission = *e.CloseCommission
		}
		if e.CloseTradeDate != nil {
			c.TradeDate = *e.CloseTradeDate
		}
		c.Quantity = draft.Open.Quantity
		if !IsValidClosingAction(draft.Open.Action, c.Action) {
			return domain.Trade{}, &domain.TransitionError{
				Open:     draft.Open.Action,
				Close:    c.Action,
				Expected: ExpectedClosingAction(draft.Open.Action),
			}
		}
	}

	openChanged := e.openCostChanged()
	if openChanged {
		recomputeOpen(&draft)
	}
	if draft.IsClosed() && (openChanged || e.closeCostChanged()) {
		recomputeClose(&draft)
	}
	if err := checkTotals(draft); err != nil {
		return domain.Trade{}, err
	}
	draft.UpdatedAt = now
	return draft, nil
}

// Recompute rederives every computed field of t from its stored inputs.
// Applying it twice gives the same result as applying it once.
func Recompute(t domain.Trade) domain.Trade {
	t = cloneTrade(t)
	recomputeOpen(&t)
	if t.IsClosed() {
		recomputeClose(&t)
	}
	return t
}

func recomputeOpen(t *domain.Trade) {
	t.Open.TotalCost = OpenTotalCost(t.Open.Action, t.Open.Quantity, t.Open.Premium, t.Open.Commission)
}

func recomputeClose(t *domain.Trade) {
	c := t.Close
	if c == nil {
		return
	}
	c.Quantity = t.Open.Quantity
	c.TotalCost = CloseTotalCost(c.Action, c.Quantity, c.Premium, c.Commission)
	pl := ProfitLoss(t.Open.Action, t.Open.TotalCost, c.TotalCost)
	t.ProfitLoss = &pl
}

// checkTotals rejects derived amounts outside the representable range.
func checkTotals(t domain.Trade) error {
	v := &domain.ValidationError{}
	if !inRange(t.Open.TotalCost) {
		v.Add("openTotalCost", "Open total cost is out of range")
	}
	if t.Close != nil && !inRange(t.Close.TotalCost) {
		v.Add("closeTotalCost", "Close total cost is out of range")
	}
	if t.ProfitLoss != nil && !inRange(*t.ProfitLoss) {
		v.Add("profitLoss", "Profit/loss is out of range")
	}
	return v.Err()
}

func cloneTrade(t domain.Trade) domain.Trade {
	if t.Close != nil {
		c := *t.Close
		t.Close = &c
	}
	if t.ProfitLoss != nil {
		pl := *t.ProfitLoss
		t.ProfitLoss = &pl
	}
	if t.PortfolioID != nil {
		id := *t.PortfolioID
		t.PortfolioID = &id
	}
	return t
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
