package memory

import (
	"context"
	"sort"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

type portfolioRow struct {
	seq int64
	p   domain.Portfolio
}

// PortfolioStore implements domain.PortfolioStore in memory.
type PortfolioStore struct{ s *Store }

// nameTaken reports whether userID already has a portfolio called name
// other than exceptID. Callers hold the lock.
func (r *PortfolioStore) nameTaken(userID, name, exceptID string) bool {
	for id, row := range r.s.portfolios {
		if id != exceptID && row.p.UserID == userID && row.p.Name == name {
			return true
		}
	}
	return false
}

// Create inserts a new portfolio.
func (r *PortfolioStore) Create(_ context.Context, p domain.Portfolio) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.portfolios[p.ID]; ok || r.nameTaken(p.UserID, p.Name, "") {
		return domain.ErrConflict
	}
	r.s.portfolios[p.ID] = portfolioRow{seq: r.s.next(), p: p}
	return nil
}

// Update replaces a stored portfolio.
func (r *PortfolioStore) Update(_ context.Context, p domain.Portfolio) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.portfolios[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if r.nameTaken(p.UserID, p.Name, p.ID) {
		return domain.ErrConflict
	}
	row.p = p
	r.s.portfolios[p.ID] = row
	return nil
}

// GetByID retrieves a portfolio.
func (r *PortfolioStore) GetByID(_ context.Context, id string) (domain.Portfolio, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.portfolios[id]
	if !ok {
		return domain.Portfolio{}, domain.ErrNotFound
	}
	return row.p, nil
}

// GetByName retrieves a user's portfolio by exact name.
func (r *PortfolioStore) GetByName(_ context.Context, userID, name string) (domain.Portfolio, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.portfolios {
		if row.p.UserID == userID && row.p.Name == name {
			return row.p, nil
		}
	}
	return domain.Portfolio{}, domain.ErrNotFound
}

// GetDefault retrieves the user's default portfolio.
func (r *PortfolioStore) GetDefault(_ context.Context, userID string) (domain.Portfolio, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var (
		found bool
		best  domain.Portfolio
	)
	for _, row := range r.s.portfolios {
		if row.p.UserID != userID || !row.p.IsDefault {
			continue
		}
		if !found || row.p.UpdatedAt.After(best.UpdatedAt) {
			best, found = row.p, true
		}
	}
	if !found {
		return domain.Portfolio{}, domain.ErrNotFound
	}
	return best, nil
}

// Delete removes a portfolio along with its positions and detaches its
// trades, matching the foreign keys of the SQL schema.
func (r *PortfolioStore) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.portfolios[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.portfolios, id)
	for pid, row := range r.s.positions {
		if row.p.PortfolioID == id {
			delete(r.s.positions, pid)
		}
	}
	for tid, row := range r.s.trades {
		if row.t.PortfolioID != nil && *row.t.PortfolioID == id {
			row.t.PortfolioID = nil
			r.s.trades[tid] = row
		}
	}
	return nil
}

// ListByUser returns the user's portfolios, newest first.
func (r *PortfolioStore) ListByUser(_ context.Context, userID string, f domain.PortfolioFilter) ([]domain.Portfolio, error) {
	r.s.mu.RLock()
	rows := make([]portfolioRow, 0)
	for _, row := range r.s.portfolios {
		if row.p.UserID != userID {
			continue
		}
		if f.IsActive != nil && row.p.IsActive != *f.IsActive {
			continue
		}
		rows = append(rows, row)
	}
	r.s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.p.CreatedAt.Equal(b.p.CreatedAt) {
			return a.p.CreatedAt.After(b.p.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]domain.Portfolio, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.p)
	}
	return out, nil
}

// ClearDefault unsets the default flag on the user's other portfolios.
func (r *PortfolioStore) ClearDefault(_ context.Context, userID, exceptID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	now := r.s.now()
	for id, row := range r.s.portfolios {
		if id == exceptID || row.p.UserID != userID || !row.p.IsDefault {
			continue
		}
		row.p.IsDefault = false
		row.p.UpdatedAt = now
		r.s.portfolios[id] = row
		n++
	}
	return n, nil
}
