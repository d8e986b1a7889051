package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeSort selects the ordering of a trade listing.
type TradeSort int

const (
	// SortCreatedDesc orders newest-created first.
	SortCreatedDesc TradeSort = iota
	// SortOpenDateDesc orders by opening trade date, most recent first.
	SortOpenDateDesc
)

// TradeFilter narrows a trade listing. Zero fields do not filter.
type TradeFilter struct {
	UserID      string
	PortfolioID string
	Symbol      string
	Status      TradeStatus
	OpenAction  OpeningAction
	Sort        TradeSort
	Limit       int
	Offset      int
}

// TradeStore persists option trades.
type TradeStore interface {
	Create(ctx context.Context, t Trade) error
	Update(ctx context.Context, t Trade) error
	GetByID(ctx context.Context, id string) (Trade, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f TradeFilter) ([]Trade, error)
	// ClearPortfolio unsets PortfolioID on every trade linked to portfolioID.
	ClearPortfolio(ctx context.Context, portfolioID string) (int64, error)
}

// PortfolioFilter narrows a portfolio listing.
type PortfolioFilter struct {
	IsActive *bool
}

// PortfolioStore persists portfolios.
type PortfolioStore interface {
	Create(ctx context.Context, p Portfolio) error
	Update(ctx context.Context, p Portfolio) error
	GetByID(ctx context.Context, id string) (Portfolio, error)
	GetByName(ctx context.Context, userID, name string) (Portfolio, error)
	GetDefault(ctx context.Context, userID string) (Portfolio, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string, f PortfolioFilter) ([]Portfolio, error)
	// ClearDefault unsets IsDefault on the user's portfolios other than exceptID.
	ClearDefault(ctx context.Context, userID, exceptID string) (int64, error)
}

// PositionStore persists equity positions.
type PositionStore interface {
	Create(ctx context.Context, p Position) error
	Update(ctx context.Context, p Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	GetByTicker(ctx context.Context, portfolioID, ticker string) (Position, error)
	Delete(ctx context.Context, id string) error
	ListByPortfolio(ctx context.Context, portfolioID string) ([]Position, error)
	DeleteByPortfolio(ctx context.Context, portfolioID string) (int64, error)
	ListAll(ctx context.Context) ([]Position, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
