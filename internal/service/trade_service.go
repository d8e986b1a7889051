package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/alanyoungcy/optionsdesk/internal/ledger"
)

var (
	errTradeNotFound  = domain.Reject(domain.ErrNotFound, "Trade not found")
	errTradeForbidden = domain.Reject(domain.ErrForbidden, "Forbidden - You do not have access to this trade")
)

// TradeQuery filters the caller's trade listing. Empty fields do not filter.
type TradeQuery struct {
	Status      string
	Symbol      string
	PortfolioID string
	Limit       int
	Offset      int
}

// OpenTradeQuery filters the caller's open trades.
type OpenTradeQuery struct {
	OpenAction string
	Symbol     string
	Limit      int
	Offset     int
}

// TradeService runs the open, edit, close and delete lifecycle of option
// trades on behalf of a principal.
type TradeService struct {
	trades     domain.TradeStore
	portfolios domain.PortfolioStore
	rec        recorder
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// NewTradeService creates a TradeService. bus may be nil.
func NewTradeService(
	trades domain.TradeStore,
	portfolios domain.PortfolioStore,
	bus domain.EventBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		trades:     trades,
		portfolios: portfolios,
		rec:        recorder{bus: bus, audit: audit, logger: logger, component: "trade_service"},
		logger:     logger,
		now:        utcNow,
		newID:      newID,
	}
}

// Create opens a new trade owned by the principal.
func (s *TradeService) Create(ctx context.Context, p domain.Principal, ot ledger.OpenTrade) (domain.Trade, error) {
	if err := ot.Validate(); err != nil {
		return domain.Trade{}, err
	}
	if err := s.checkPortfolio(ctx, p.UserID, ot.PortfolioID); err != nil {
		return domain.Trade{}, err
	}

	t, err := ledger.Open(ot, s.newID(), p.UserID, s.now())
	if err != nil {
		return domain.Trade{}, err
	}
	if err := s.trades.Create(ctx, t); err != nil {
		return domain.Trade{}, fmt.Errorf("trade_service: create trade: %w", err)
	}

	s.rec.record(ctx, t.UserID, domain.EventTradeOpened, t, map[string]any{
		"trade_id":        t.ID,
		"symbol":          t.Symbol,
		"open_action":     string(t.Open.Action),
		"open_total_cost": t.Open.TotalCost,
	})
	s.logger.InfoContext(ctx, "trade_service: trade opened",
		slog.String("trade_id", t.ID),
		slog.String("user_id", t.UserID),
		slog.String("symbol", t.Symbol),
	)
	return t, nil
}

// Get returns a trade the principal owns, or any trade for an admin.
func (s *TradeService) Get(ctx context.Context, p domain.Principal, id string) (domain.Trade, error) {
	t, err := s.trades.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Trade{}, errTradeNotFound
	}
	if err != nil {
		return domain.Trade{}, fmt.Errorf("trade_service: get trade %s: %w", id, err)
	}
	if ledger.Authorize(p, t.UserID) != nil {
		return domain.Trade{}, errTradeForbidden
	}
	return t, nil
}

// List returns the principal's own trades, newest first. Admins also see
// only their own trades here.
func (s *TradeService) List(ctx context.Context, p domain.Principal, q TradeQuery) ([]domain.Trade, error) {
	status := domain.TradeStatus(q.Status)
	if status != "" && !status.Valid() {
		v := &domain.ValidationError{}
		v.Add("status", `Invalid status filter. Must be "open" or "closed"`)
		return nil, v
	}
	trades, err := s.trades.List(ctx, domain.TradeFilter{
		UserID:      p.UserID,
		PortfolioID: q.PortfolioID,
		Symbol:      strings.ToUpper(q.Symbol),
		Status:      status,
		Sort:        domain.SortCreatedDesc,
		Limit:       q.Limit,
		Offset:      q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("trade_service: list trades: %w", err)
	}
	return trades, nil
}

// ListOpen returns the principal's open trades, most recently opened first.
func (s *TradeService) ListOpen(ctx context.Context, p domain.Principal, q OpenTradeQuery) ([]domain.Trade, error) {
	action := domain.OpeningAction(q.OpenAction)
	if action != "" && !action.Valid() {
		v := &domain.ValidationError{}
		v.Add("openAction", `Invalid openAction filter. Must be "buy_to_open" or "sell_to_open"`)
		return nil, v
	}
	trades, err := s.trades.List(ctx, domain.TradeFilter{
		UserID:     p.UserID,
		Symbol:     strings.ToUpper(q.Symbol),
		Status:     domain.TradeOpen,
		OpenAction: action,
		Sort:       domain.SortOpenDateDesc,
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("trade_service: list open trades: %w", err)
	}
	return trades, nil
}

// Update applies a partial edit and persists the recomputed trade.
func (s *TradeService) Update(ctx context.Context, p domain.Principal, id string, edit ledger.TradeEdit) (domain.Trade, error) {
	if err := edit.Validate(); err != nil {
		return domain.Trade{}, err
	}
	current, err := s.Get(ctx, p, id)
	if err != nil {
		return domain.Trade{}, err
	}
	if err := s.checkPortfolio(ctx, current.UserID, edit.PortfolioID); err != nil {
		return domain.Trade{}, err
	}

	updated, err := edit.Apply(current, s.now())
	if err != nil {
		return domain.Trade{}, err
	}
	if err := s.trades.Update(ctx, updated); err != nil {
		return domain.Trade{}, fmt.Errorf("trade_service: update trade %s: %w", id, err)
	}

	detail := map[string]any{"trade_id": updated.ID, "status": string(updated.Status)}
	if updated.ProfitLoss != nil {
		detail["profit_loss"] = *updated.ProfitLoss
	}
	s.rec.record(ctx, updated.UserID, domain.EventTradeUpdated, updated, detail)
	return updated, nil
}

// Close records the closing leg of an open trade and its realized P/L. A
// rejected close leaves the stored trade untouched.
func (s *TradeService) Close(ctx context.Context, p domain.Principal, id string, c ledger.CloseTrade) (domain.Trade, error) {
	if err := c.Validate(); err != nil {
		return domain.Trade{}, err
	}
	current, err := s.Get(ctx, p, id)
	if err != nil {
		return domain.Trade{}, err
	}

	closed, err := ledger.Close(current, c, s.now())
	if err != nil {
		return domain.Trade{}, err
	}
	if err := s.trades.Update(ctx, closed); err != nil {
		return domain.Trade{}, fmt.Errorf("trade_service: close trade %s: %w", id, err)
	}

	s.rec.record(ctx, closed.UserID, domain.EventTradeClosed, closed, map[string]any{
		"trade_id":         closed.ID,
		"close_action":     string(closed.Close.Action),
		"close_total_cost": closed.Close.TotalCost,
		"profit_loss":      *closed.ProfitLoss,
	})
	s.logger.InfoContext(ctx, "trade_service: trade closed",
		slog.String("trade_id", closed.ID),
		slog.String("user_id", closed.UserID),
		slog.Float64("profit_loss", *closed.ProfitLoss),
	)
	return closed, nil
}

// Delete removes a trade.
func (s *TradeService) Delete(ctx context.Context, p domain.Principal, id string) error {
	t, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.trades.Delete(ctx, id); err != nil {
		return fmt.Errorf("trade_service: delete trade %s: %w", id, err)
	}
	s.rec.record(ctx, t.UserID, domain.EventTradeDeleted, map[string]string{"id": t.ID}, map[string]any{
		"trade_id": t.ID,
		"symbol":   t.Symbol,
	})
	return nil
}

// checkPortfolio rejects a portfolio reference that does not exist or
// belongs to another user. Nil and empty references pass.
func (s *TradeService) checkPortfolio(ctx context.Context, ownerID string, portfolioID *string) error {
	if portfolioID == nil || *portfolioID == "" {
		return nil
	}
	pf, err := s.portfolios.GetByID(ctx, *portfolioID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("trade_service: get portfolio %s: %w", *portfolioID, err)
	}
	if err != nil || pf.UserID != ownerID {
		v := &domain.ValidationError{}
		v.Add("portfolioId", "Portfolio not found")
		return v
	}
	return nil
}
