package domain

import (
	"encoding/json"
	"time"
)

// ContractMultiplier is the number of underlying shares one option contract
// controls. Premiums are quoted per share.
const ContractMultiplier = 100

// OptionType is call or put.
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// Valid reports whether t is a known option type.
func (t OptionType) Valid() bool {
	return t == OptionCall || t == OptionPut
}

// OpeningAction is the action that establishes a trade.
type OpeningAction string

const (
	BuyToOpen  OpeningAction = "buy_to_open"
	SellToOpen OpeningAction = "sell_to_open"
)

// Valid reports whether a is a known opening action.
func (a OpeningAction) Valid() bool {
	return a == BuyToOpen || a == SellToOpen
}

// ClosingAction is the action that ends a trade.
type ClosingAction string

const (
	SellToClose ClosingAction = "sell_to_close"
	BuyToClose  ClosingAction = "buy_to_close"
)

// Valid reports whether a is a known closing action.
func (a ClosingAction) Valid() bool {
	return a == SellToClose || a == BuyToClose
}

// TradeStatus is open or closed.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TradeStatus) Valid() bool {
	return s == TradeOpen || s == TradeClosed
}

// Date is a calendar date in YYYY-MM-DD form.
type Date string

const dateLayout = "2006-01-02"

// Valid reports whether d parses as YYYY-MM-DD.
func (d Date) Valid() bool {
	if len(d) != len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, string(d))
	return err == nil
}

// OpeningLeg is the transaction that established a trade.
type OpeningLeg struct {
	Action     OpeningAction
	Quantity   int
	Premium    float64
	Commission float64
	TradeDate  Date
	TotalCost  float64
}

// ClosingLeg is the transaction that ended a trade. Quantity always equals
// the opening quantity.
type ClosingLeg struct {
	Action     ClosingAction
	Quantity   int
	Premium    float64
	Commission float64
	TradeDate  Date
	TotalCost  float64
}

// Trade is a single options position from open to close. Close and
// ProfitLoss are nil exactly when Status is TradeOpen.
type Trade struct {
	ID             string
	UserID         string
	PortfolioID    *string
	Symbol         string
	OptionType     OptionType
	StrikePrice    float64
	ExpirationDate Date
	Open           OpeningLeg
	Close          *ClosingLeg
	Status         TradeStatus
	ProfitLoss     *float64
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsClosed reports whether the trade carries a closing leg.
func (t Trade) IsClosed() bool {
	return t.Status == TradeClosed
}

type tradeJSON struct {
	ID              string        `json:"id"`
	UserID          string        `json:"userId"`
	PortfolioID     *string       `json:"portfolioId,omitempty"`
	Symbol          string        `json:"symbol"`
	OptionType      OptionType    `json:"optionType"`
	StrikePrice     float64       `json:"strikePrice"`
	ExpirationDate  Date          `json:"expirationDate"`
	OpenAction      OpeningAction `json:"openAction"`
	OpenQuantity    int           `json:"openQuantity"`
	OpenPremium     float64       `json:"openPremium"`
	OpenCommission  float64       `json:"openCommission"`
	OpenTradeDate   Date          `json:"openTradeDate"`
	OpenTotalCost   float64       `json:"openTotalCost"`
	CloseAction     ClosingAction `json:"closeAction,omitempty"`
	CloseQuantity   *int          `json:"closeQuantity,omitempty"`
	ClosePremium    *float64      `json:"closePremium,omitempty"`
	CloseCommission *float64      `json:"closeCommission,omitempty"`
	CloseTradeDate  Date          `json:"closeTradeDate,omitempty"`
	CloseTotalCost  *float64      `json:"closeTotalCost,omitempty"`
	Status          TradeStatus   `json:"status"`
	ProfitLoss      *float64      `json:"profitLoss,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// MarshalJSON renders the trade in the flat API shape. Closing fields are
// omitted while the trade is open.
func (t Trade) MarshalJSON() ([]byte, error) {
	out := tradeJSON{
		ID:             t.ID,
		UserID:         t.UserID,
		PortfolioID:    t.PortfolioID,
		Symbol:         t.Symbol,
		OptionType:     t.OptionType,
		StrikePrice:    t.StrikePrice,
		ExpirationDate: t.ExpirationDate,
		OpenAction:     t.Open.Action,
		OpenQuantity:   t.Open.Quantity,
		OpenPremium:    t.Open.Premium,
		OpenCommission: t.Open.Commission,
		OpenTradeDate:  t.Open.TradeDate,
		OpenTotalCost:  t.Open.TotalCost,
		Status:         t.Status,
		ProfitLoss:     t.ProfitLoss,
		Notes:          t.Notes,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if c := t.Close; c != nil {
		qty, premium, commission, total := c.Quantity, c.Premium, c.Commission, c.TotalCost
		out.CloseAction = c.Action
		out.CloseQuantity = &qty
		out.ClosePremium = &premium
		out.CloseCommission = &commission
		out.CloseTradeDate = c.TradeDate
		out.CloseTotalCost = &total
	}
	return json.Marshal(out)
}
