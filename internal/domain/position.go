package domain

import "time"

// Position is an equity holding inside a portfolio. AverageCost,
// MarketValue, UnrealizedPL and UnrealizedPLPercent are derived from
// Shares, CostBasis and CurrentPrice and are never set directly.
type Position struct {
	ID                  string    `json:"id"`
	PortfolioID         string    `json:"portfolioId"`
	Ticker              string    `json:"ticker"`
	Shares              float64   `json:"shares"`
	CostBasis           float64   `json:"costBasis"`
	AverageCost         float64   `json:"averageCost"`
	CurrentPrice        *float64  `json:"currentPrice,omitempty"`
	MarketValue         *float64  `json:"marketValue,omitempty"`
	UnrealizedPL        *float64  `json:"unrealizedPL,omitempty"`
	UnrealizedPLPercent *float64  `json:"unrealizedPLPercent,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// PriceQuote is one ticker's new price in a bulk update.
type PriceQuote struct {
	Ticker       string  `json:"ticker"`
	CurrentPrice float64 `json:"currentPrice"`
}

// PriceUpdate summarizes one position touched by a bulk price update.
type PriceUpdate struct {
	ID           string   `json:"id"`
	Ticker       string   `json:"ticker"`
	CurrentPrice *float64 `json:"currentPrice,omitempty"`
	MarketValue  *float64 `json:"marketValue,omitempty"`
	UnrealizedPL *float64 `json:"unrealizedPL,omitempty"`
}
