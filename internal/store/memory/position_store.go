package memory

import (
	"context"
	"sort"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

type positionRow struct {
	seq int64
	p   domain.Position
}

// PositionStore implements domain.PositionStore in memory.
type PositionStore struct{ s *Store }

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyPosition(p domain.Position) domain.Position {
	p.CurrentPrice = clonePtr(p.CurrentPrice)
	p.MarketValue = clonePtr(p.MarketValue)
	p.UnrealizedPL = clonePtr(p.UnrealizedPL)
	p.UnrealizedPLPercent = clonePtr(p.UnrealizedPLPercent)
	return p
}

func (r *PositionStore) tickerTaken(portfolioID, ticker, exceptID string) bool {
	for id, row := range r.s.positions {
		if id != exceptID && row.p.PortfolioID == portfolioID && row.p.Ticker == ticker {
			return true
		}
	}
	return false
}

// Create inserts a new position.
func (r *PositionStore) Create(_ context.Context, p domain.Position) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.positions[p.ID]; ok || r.tickerTaken(p.PortfolioID, p.Ticker, "") {
		return domain.ErrConflict
	}
	r.s.positions[p.ID] = positionRow{seq: r.s.next(), p: copyPosition(p)}
	return nil
}

// Update replaces a stored position.
func (r *PositionStore) Update(_ context.Context, p domain.Position) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.positions[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if r.tickerTaken(p.PortfolioID, p.Ticker, p.ID) {
		return domain.ErrConflict
	}
	row.p = copyPosition(p)
	r.s.positions[p.ID] = row
	return nil
}

// GetByID retrieves a position.
func (r *PositionStore) GetByID(_ context.Context, id string) (domain.Position, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return copyPosition(row.p), nil
}

// GetByTicker retrieves the position holding ticker in a portfolio.
func (r *PositionStore) GetByTicker(_ context.Context, portfolioID, ticker string) (domain.Position, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.positions {
		if row.p.PortfolioID == portfolioID && row.p.Ticker == ticker {
			return copyPosition(row.p), nil
		}
	}
	return domain.Position{}, domain.ErrNotFound
}

// Delete removes a position.
func (r *PositionStore) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.positions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.positions, id)
	return nil
}

func (r *PositionStore) collect(keep func(domain.Position) bool) []domain.Position {
	r.s.mu.RLock()
	rows := make([]positionRow, 0)
	for _, row := range r.s.positions {
		if keep(row.p) {
			rows = append(rows, positionRow{seq: row.seq, p: copyPosition(row.p)})
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.p.CreatedAt.Equal(b.p.CreatedAt) {
			return a.p.CreatedAt.After(b.p.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]domain.Position, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.p)
	}
	return out
}

// ListByPortfolio returns a portfolio's positions, newest first.
func (r *PositionStore) ListByPortfolio(_ context.Context, portfolioID string) ([]domain.Position, error) {
	return r.collect(func(p domain.Position) bool { return p.PortfolioID == portfolioID }), nil
}

// DeleteByPortfolio removes every position in a portfolio.
func (r *PositionStore) DeleteByPortfolio(_ context.Context, portfolioID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, row := range r.s.positions {
		if row.p.PortfolioID == portfolioID {
			delete(r.s.positions, id)
			n++
		}
	}
	return n, nil
}

// ListAll returns every position.
func (r *PositionStore) ListAll(_ context.Context) ([]domain.Position, error) {
	return r.collect(func(domain.Position) bool { return true }), nil
}
