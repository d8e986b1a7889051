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
	errPositionNotFound  = domain.Reject(domain.ErrNotFound, "Position not found")
	errPositionForbidden = domain.Reject(domain.ErrForbidden, "Forbidden - Position belongs to portfolio owned by different user")
	errPositionTicker    = domain.Reject(domain.ErrConflict, "Position with this ticker already exists in portfolio")
)

// PriceUpdateResult is the outcome of a bulk price update.
type PriceUpdateResult struct {
	Updated   int                  `json:"updated"`
	Positions []domain.PriceUpdate `json:"positions"`
}

// PositionService manages equity positions inside the principal's
// portfolios. Every write recomputes the derived valuation fields.
type PositionService struct {
	positions  domain.PositionStore
	portfolios domain.PortfolioStore
	rec        recorder
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// NewPositionService creates a PositionService. bus may be nil.
func NewPositionService(
	positions domain.PositionStore,
	portfolios domain.PortfolioStore,
	bus domain.EventBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		positions:  positions,
		portfolios: portfolios,
		rec:        recorder{bus: bus, audit: audit, logger: logger, component: "position_service"},
		logger:     logger,
		now:        utcNow,
		newID:      newID,
	}
}

func normalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Create adds a position to one of the principal's portfolios.
func (s *PositionService) Create(ctx context.Context, p domain.Principal, portfolioID string, in ledger.PositionInput) (domain.Position, error) {
	if _, err := ownedPortfolio(ctx, s.portfolios, p, portfolioID); err != nil {
		return domain.Position{}, err
	}
	if err := in.ValidateCreate(); err != nil {
		return domain.Position{}, err
	}

	ticker := normalizeTicker(*in.Ticker)
	if err := s.tickerFree(ctx, portfolioID, ticker); err != nil {
		return domain.Position{}, err
	}

	now := s.now()
	pos := domain.Position{
		ID:           s.newID(),
		PortfolioID:  portfolioID,
		Ticker:       ticker,
		Shares:       *in.Shares,
		CostBasis:    *in.CostBasis,
		CurrentPrice: in.CurrentPrice,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Notes != nil {
		pos.Notes = *in.Notes
	}
	pos, err := ledger.Revalue(pos)
	if err != nil {
		return domain.Position{}, err
	}

	if err := s.positions.Create(ctx, pos); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Position{}, errPositionTicker
		}
		return domain.Position{}, fmt.Errorf("position_service: create position: %w", err)
	}

	s.rec.record(ctx, p.UserID, domain.EventPositionCreated, pos, map[string]any{
		"position_id":  pos.ID,
		"portfolio_id": portfolioID,
		"ticker":       pos.Ticker,
	})
	return pos, nil
}

// List returns a portfolio's positions, newest first.
func (s *PositionService) List(ctx context.Context, p domain.Principal, portfolioID string) ([]domain.Position, error) {
	if _, err := ownedPortfolio(ctx, s.portfolios, p, portfolioID); err != nil {
		return nil, err
	}
	list, err := s.positions.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("position_service: list positions %s: %w", portfolioID, err)
	}
	return list, nil
}

// Get returns a position whose portfolio the principal owns.
func (s *PositionService) Get(ctx context.Context, p domain.Principal, id string) (domain.Position, error) {
	pos, err := s.positions.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Position{}, errPositionNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: get position %s: %w", id, err)
	}
	pf, err := s.portfolios.GetByID(ctx, pos.PortfolioID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Position{}, errPositionNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: get portfolio %s: %w", pos.PortfolioID, err)
	}
	if ledger.AuthorizeOwner(p, pf.UserID) != nil {
		return domain.Position{}, errPositionForbidden
	}
	return pos, nil
}

// Update applies a partial change and revalues the position.
func (s *PositionService) Update(ctx context.Context, p domain.Principal, id string, in ledger.PositionInput) (domain.Position, error) {
	if err := in.ValidateUpdate(); err != nil {
		return domain.Position{}, err
	}
	pos, err := s.Get(ctx, p, id)
	if err != nil {
		return domain.Position{}, err
	}

	if in.Ticker != nil {
		ticker := normalizeTicker(*in.Ticker)
		if ticker != pos.Ticker {
			if err := s.tickerFree(ctx, pos.PortfolioID, ticker); err != nil {
				return domain.Position{}, err
			}
		}
		pos.Ticker = ticker
	}
	if in.Shares != nil {
		pos.Shares = *in.Shares
	}
	if in.CostBasis != nil {
		pos.CostBasis = *in.CostBasis
	}
	if in.CurrentPrice != nil {
		price := *in.CurrentPrice
		pos.CurrentPrice = &price
	}
	if in.Notes != nil {
		pos.Notes = *in.Notes
	}
	pos.UpdatedAt = s.now()
	pos, err = ledger.Revalue(pos)
	if err != nil {
		return domain.Position{}, err
	}

	if err := s.positions.Update(ctx, pos); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Position{}, errPositionTicker
		}
		return domain.Position{}, fmt.Errorf("position_service: update position %s: %w", id, err)
	}

	s.rec.record(ctx, p.UserID, domain.EventPositionUpdated, pos, map[string]any{
		"position_id":  pos.ID,
		"portfolio_id": pos.PortfolioID,
		"ticker":       pos.Ticker,
	})
	return pos, nil
}

// Delete removes a position.
func (s *PositionService) Delete(ctx context.Context, p domain.Principal, id string) error {
	pos, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.positions.Delete(ctx, id); err != nil {
		return fmt.Errorf("position_service: delete position %s: %w", id, err)
	}
	s.rec.record(ctx, p.UserID, domain.EventPositionDeleted, map[string]string{"id": id}, map[string]any{
		"position_id":  id,
		"portfolio_id": pos.PortfolioID,
		"ticker":       pos.Ticker,
	})
	return nil
}

// UpdatePrices sets new prices on the portfolio's positions whose tickers
// appear in prices. Tickers match case-insensitively; unmatched quotes are
// ignored. Positions written before a storage failure stay written.
func (s *PositionService) UpdatePrices(ctx context.Context, p domain.Principal, portfolioID string, prices []domain.PriceQuote) (PriceUpdateResult, error) {
	if _, err := ownedPortfolio(ctx, s.portfolios, p, portfolioID); err != nil {
		return PriceUpdateResult{}, err
	}
	if err := ledger.ValidatePrices(prices); err != nil {
		return PriceUpdateResult{}, err
	}

	byTicker := make(map[string]float64, len(prices))
	for _, q := range prices {
		byTicker[normalizeTicker(q.Ticker)] = q.CurrentPrice
	}

	positions, err := s.positions.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return PriceUpdateResult{}, fmt.Errorf("position_service: list positions %s: %w", portfolioID, err)
	}

	// Value every match before writing any so a rejected price leaves the
	// portfolio untouched.
	now := s.now()
	repriced := make([]domain.Position, 0, len(positions))
	for _, pos := range positions {
		price, ok := byTicker[pos.Ticker]
		if !ok {
			continue
		}
		pos.CurrentPrice = &price
		pos.UpdatedAt = now
		valued, err := ledger.Revalue(pos)
		if err != nil {
			return PriceUpdateResult{}, err
		}
		repriced = append(repriced, valued)
	}

	res := PriceUpdateResult{Positions: []domain.PriceUpdate{}}
	for _, pos := range repriced {
		if err := s.positions.Update(ctx, pos); err != nil {
			return res, fmt.Errorf("position_service: update price %s: %w", pos.Ticker, err)
		}
		res.Positions = append(res.Positions, domain.PriceUpdate{
			ID:           pos.ID,
			Ticker:       pos.Ticker,
			CurrentPrice: pos.CurrentPrice,
			MarketValue:  pos.MarketValue,
			UnrealizedPL: pos.UnrealizedPL,
		})
	}
	res.Updated = len(res.Positions)

	s.rec.record(ctx, p.UserID, domain.EventPricesUpdated, res, map[string]any{
		"portfolio_id": portfolioID,
		"updated":      res.Updated,
	})
	s.logger.InfoContext(ctx, "position_service: prices updated",
		slog.String("portfolio_id", portfolioID),
		slog.Int("updated", res.Updated),
	)
	return res, nil
}

func (s *PositionService) tickerFree(ctx context.Context, portfolioID, ticker string) error {
	_, err := s.positions.GetByTicker(ctx, portfolioID, ticker)
	switch {
	case err == nil:
		return errPositionTicker
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("position_service: lookup ticker: %w", err)
	}
}
