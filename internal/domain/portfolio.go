package domain

import "time"

// Portfolio groups positions and trades for one user.
type Portfolio struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	IsDefault   bool      `json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Mover identifies the position with the best or worst percentage return.
type Mover struct {
	Ticker              string  `json:"ticker"`
	UnrealizedPLPercent float64 `json:"unrealizedPLPercent"`
}

// PortfolioMetrics is the rollup of a portfolio's positions.
type PortfolioMetrics struct {
	TotalPositions           int     `json:"totalPositions"`
	TotalMarketValue         float64 `json:"totalMarketValue"`
	TotalCostBasis           float64 `json:"totalCostBasis"`
	TotalUnrealizedPL        float64 `json:"totalUnrealizedPL"`
	TotalUnrealizedPLPercent float64 `json:"totalUnrealizedPLPercent"`
	TopGainer                *Mover  `json:"topGainer,omitempty"`
	TopLoser                 *Mover  `json:"topLoser,omitempty"`
}

// AssociatedTrades summarizes the trades linked to a portfolio.
type AssociatedTrades struct {
	OpenCount       int     `json:"openCount"`
	ClosedCount     int     `json:"closedCount"`
	TotalProfitLoss float64 `json:"totalProfitLoss"`
}

// PortfolioDetail is a portfolio with its optional expansions.
type PortfolioDetail struct {
	Portfolio
	Positions        []Position        `json:"positions,omitempty"`
	Metrics          *PortfolioMetrics `json:"metrics,omitempty"`
	AssociatedTrades *AssociatedTrades `json:"associatedTrades,omitempty"`
}
