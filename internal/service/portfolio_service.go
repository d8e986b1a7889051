package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/alanyoungcy/optionsdesk/internal/ledger"
)

const defaultLockTTL = 5 * time.Second

var (
	errPortfolioNotFound  = domain.Reject(domain.ErrNotFound, "Portfolio not found")
	errPortfolioForbidden = domain.Reject(domain.ErrForbidden, "Forbidden - Portfolio belongs to different user")
	errPortfolioName      = domain.Reject(domain.ErrConflict, "Portfolio with this name already exists")
	errNoDefault          = domain.Reject(domain.ErrNotFound, "No default portfolio found")
)

// DetailOpts selects the optional expansions of a portfolio read.
type DetailOpts struct {
	Positions bool
	Metrics   bool
	Trades    bool
}

// PortfolioService manages a user's portfolios. Portfolios are private to
// their owner.
type PortfolioService struct {
	portfolios domain.PortfolioStore
	positions  domain.PositionStore
	trades     domain.TradeStore
	locks      domain.LockManager
	rec        recorder
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// NewPortfolioService creates a PortfolioService. locks and bus may be nil.
func NewPortfolioService(
	portfolios domain.PortfolioStore,
	positions domain.PositionStore,
	trades domain.TradeStore,
	locks domain.LockManager,
	bus domain.EventBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *PortfolioService {
	return &PortfolioService{
		portfolios: portfolios,
		positions:  positions,
		trades:     trades,
		locks:      locks,
		rec:        recorder{bus: bus, audit: audit, logger: logger, component: "portfolio_service"},
		logger:     logger,
		now:        utcNow,
		newID:      newID,
	}
}

// Create adds a portfolio. Names are unique per user. A new default
// portfolio clears the flag on the user's others first.
func (s *PortfolioService) Create(ctx context.Context, p domain.Principal, in ledger.PortfolioInput) (domain.Portfolio, error) {
	if err := in.ValidateCreate(); err != nil {
		return domain.Portfolio{}, err
	}
	if err := s.nameFree(ctx, p.UserID, *in.Name); err != nil {
		return domain.Portfolio{}, err
	}

	now := s.now()
	pf := domain.Portfolio{
		ID:        s.newID(),
		UserID:    p.UserID,
		Name:      *in.Name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Description != nil {
		pf.Description = *in.Description
	}
	if in.IsActive != nil {
		pf.IsActive = *in.IsActive
	}
	if in.IsDefault != nil {
		pf.IsDefault = *in.IsDefault
	}

	err := s.withDefaultLock(ctx, p.UserID, pf.IsDefault, func() error {
		if err := s.portfolios.Create(ctx, pf); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return errPortfolioName
			}
			return fmt.Errorf("portfolio_service: create portfolio: %w", err)
		}
		if pf.IsDefault {
			if _, err := s.portfolios.ClearDefault(ctx, p.UserID, pf.ID); err != nil {
				return fmt.Errorf("portfolio_service: clear default: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Portfolio{}, err
	}

	s.rec.record(ctx, p.UserID, domain.EventPortfolioChanged, pf, map[string]any{
		"portfolio_id": pf.ID,
		"action":       "created",
		"is_default":   pf.IsDefault,
	})
	s.logger.InfoContext(ctx, "portfolio_service: portfolio created",
		slog.String("portfolio_id", pf.ID),
		slog.String("user_id", p.UserID),
	)
	return pf, nil
}

// List returns the principal's portfolios, newest first.
func (s *PortfolioService) List(ctx context.Context, p domain.Principal, isActive *bool) ([]domain.Portfolio, error) {
	list, err := s.portfolios.ListByUser(ctx, p.UserID, domain.PortfolioFilter{IsActive: isActive})
	if err != nil {
		return nil, fmt.Errorf("portfolio_service: list portfolios: %w", err)
	}
	return list, nil
}

// GetDefault returns the principal's default portfolio.
func (s *PortfolioService) GetDefault(ctx context.Context, p domain.Principal) (domain.Portfolio, error) {
	pf, err := s.portfolios.GetDefault(ctx, p.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Portfolio{}, errNoDefault
	}
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("portfolio_service: get default: %w", err)
	}
	return pf, nil
}

// Get returns one portfolio with the requested expansions.
func (s *PortfolioService) Get(ctx context.Context, p domain.Principal, id string, opts DetailOpts) (domain.PortfolioDetail, error) {
	pf, err := s.owned(ctx, p, id)
	if err != nil {
		return domain.PortfolioDetail{}, err
	}
	detail := domain.PortfolioDetail{Portfolio: pf}

	if opts.Positions || opts.Metrics {
		positions, err := s.positions.ListByPortfolio(ctx, id)
		if err != nil {
			return domain.PortfolioDetail{}, fmt.Errorf("portfolio_service: list positions %s: %w", id, err)
		}
		if opts.Positions {
			detail.Positions = positions
			if detail.Positions == nil {
				detail.Positions = []domain.Position{}
			}
		}
		if opts.Metrics {
			m := ledger.Aggregate(positions)
			detail.Metrics = &m
		}
	}

	if opts.Trades {
		trades, err := s.trades.List(ctx, domain.TradeFilter{PortfolioID: id})
		if err != nil {
			return domain.PortfolioDetail{}, fmt.Errorf("portfolio_service: list trades %s: %w", id, err)
		}
		summary := ledger.SummarizeTrades(trades)
		detail.AssociatedTrades = &summary
	}
	return detail, nil
}

// Update applies a partial change. Renaming onto an existing name conflicts;
// promoting a portfolio to default clears the flag on the others.
func (s *PortfolioService) Update(ctx context.Context, p domain.Principal, id string, in ledger.PortfolioInput) (domain.Portfolio, error) {
	if err := in.ValidateUpdate(); err != nil {
		return domain.Portfolio{}, err
	}
	pf, err := s.owned(ctx, p, id)
	if err != nil {
		return domain.Portfolio{}, err
	}
	if in.Name != nil && *in.Name != pf.Name {
		if err := s.nameFree(ctx, p.UserID, *in.Name); err != nil {
			return domain.Portfolio{}, err
		}
	}

	promote := in.IsDefault != nil && *in.IsDefault && !pf.IsDefault
	if in.Name != nil {
		pf.Name = *in.Name
	}
	if in.Description != nil {
		pf.Description = *in.Description
	}
	if in.IsActive != nil {
		pf.IsActive = *in.IsActive
	}
	if in.IsDefault != nil {
		pf.IsDefault = *in.IsDefault
	}
	pf.UpdatedAt = s.now()

	err = s.withDefaultLock(ctx, p.UserID, promote, func() error {
		if err := s.portfolios.Update(ctx, pf); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return errPortfolioName
			}
			return fmt.Errorf("portfolio_service: update portfolio %s: %w", id, err)
		}
		if promote {
			if _, err := s.portfolios.ClearDefault(ctx, p.UserID, pf.ID); err != nil {
				return fmt.Errorf("portfolio_service: clear default: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Portfolio{}, err
	}

	s.rec.record(ctx, p.UserID, domain.EventPortfolioChanged, pf, map[string]any{
		"portfolio_id": pf.ID,
		"action":       "updated",
		"is_default":   pf.IsDefault,
	})
	return pf, nil
}

// Delete removes a portfolio with its positions and detaches its trades.
func (s *PortfolioService) Delete(ctx context.Context, p domain.Principal, id string) error {
	if _, err := s.owned(ctx, p, id); err != nil {
		return err
	}

	removed, err := s.positions.DeleteByPortfolio(ctx, id)
	if err != nil {
		return fmt.Errorf("portfolio_service: delete positions %s: %w", id, err)
	}
	detached, err := s.trades.ClearPortfolio(ctx, id)
	if err != nil {
		return fmt.Errorf("portfolio_service: detach trades %s: %w", id, err)
	}
	if err := s.portfolios.Delete(ctx, id); err != nil {
		return fmt.Errorf("portfolio_service: delete portfolio %s: %w", id, err)
	}

	s.rec.record(ctx, p.UserID, domain.EventPortfolioChanged, map[string]string{"id": id, "action": "deleted"}, map[string]any{
		"portfolio_id":      id,
		"action":            "deleted",
		"positions_removed": removed,
		"trades_detached":   detached,
	})
	s.logger.InfoContext(ctx, "portfolio_service: portfolio deleted",
		slog.String("portfolio_id", id),
		slog.Int64("positions_removed", removed),
		slog.Int64("trades_detached", detached),
	)
	return nil
}

// owned loads a portfolio and checks the principal owns it.
func (s *PortfolioService) owned(ctx context.Context, p domain.Principal, id string) (domain.Portfolio, error) {
	return ownedPortfolio(ctx, s.portfolios, p, id)
}

func ownedPortfolio(ctx context.Context, store domain.PortfolioStore, p domain.Principal, id string) (domain.Portfolio, error) {
	pf, err := store.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Portfolio{}, errPortfolioNotFound
	}
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("service: get portfolio %s: %w", id, err)
	}
	if ledger.AuthorizeOwner(p, pf.UserID) != nil {
		return domain.Portfolio{}, errPortfolioForbidden
	}
	return pf, nil
}

func (s *PortfolioService) nameFree(ctx context.Context, userID, name string) error {
	_, err := s.portfolios.GetByName(ctx, userID, name)
	switch {
	case err == nil:
		return errPortfolioName
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("portfolio_service: lookup name: %w", err)
	}
}

// withDefaultLock runs fn holding the user's default-switch lock when a
// default change is involved and a lock manager is configured.
func (s *PortfolioService) withDefaultLock(ctx context.Context, userID string, needed bool, fn func() error) error {
	if !needed || s.locks == nil {
		return fn()
	}
	unlock, err := s.locks.Acquire(ctx, "portfolio-default:"+userID, defaultLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.Reject(domain.ErrLockHeld, "Another default portfolio change is in progress")
		}
		return fmt.Errorf("portfolio_service: acquire default lock: %w", err)
	}
	defer unlock()
	return fn()
}
