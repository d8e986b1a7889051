package memory

import (
	"context"
	"sort"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

type tradeRow struct {
	seq int64
	t   domain.Trade
}

// TradeStore implements domain.TradeStore in memory.
type TradeStore struct{ s *Store }

func copyTrade(t domain.Trade) domain.Trade {
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

// Create inserts a new trade.
func (r *TradeStore) Create(_ context.Context, t domain.Trade) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.trades[t.ID]; ok {
		return domain.ErrConflict
	}
	r.s.trades[t.ID] = tradeRow{seq: r.s.next(), t: copyTrade(t)}
	return nil
}

// Update replaces a stored trade.
func (r *TradeStore) Update(_ context.Context, t domain.Trade) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.trades[t.ID]
	if !ok {
		return domain.ErrNotFound
	}
	row.t = copyTrade(t)
	r.s.trades[t.ID] = row
	return nil
}

// GetByID retrieves a trade.
func (r *TradeStore) GetByID(_ context.Context, id string) (domain.Trade, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.trades[id]
	if !ok {
		return domain.Trade{}, domain.ErrNotFound
	}
	return copyTrade(row.t), nil
}

// Delete removes a trade.
func (r *TradeStore) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.trades[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.trades, id)
	return nil
}

func matchTrade(f domain.TradeFilter, t domain.Trade) bool {
	switch {
	case f.UserID != "" && t.UserID != f.UserID:
		return false
	case f.PortfolioID != "" && (t.PortfolioID == nil || *t.PortfolioID != f.PortfolioID):
		return false
	case f.Symbol != "" && t.Symbol != f.Symbol:
		return false
	case f.Status != "" && t.Status != f.Status:
		return false
	case f.OpenAction != "" && t.Open.Action != f.OpenAction:
		return false
	}
	return true
}

// List returns trades matching f in the requested order.
func (r *TradeStore) List(_ context.Context, f domain.TradeFilter) ([]domain.Trade, error) {
	r.s.mu.RLock()
	rows := make([]tradeRow, 0, len(r.s.trades))
	for _, row := range r.s.trades {
		if matchTrade(f, row.t) {
			rows = append(rows, tradeRow{seq: row.seq, t: copyTrade(row.t)})
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if f.Sort == domain.SortOpenDateDesc && a.t.Open.TradeDate != b.t.Open.TradeDate {
			return a.t.Open.TradeDate > b.t.Open.TradeDate
		}
		if !a.t.CreatedAt.Equal(b.t.CreatedAt) {
			return a.t.CreatedAt.After(b.t.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]domain.Trade, 0, len(rows))
	for _, row := range page(rows, f.Limit, f.Offset) {
		out = append(out, row.t)
	}
	return out, nil
}

// ClearPortfolio detaches every trade from portfolioID.
func (r *TradeStore) ClearPortfolio(_ context.Context, portfolioID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	now := r.s.now()
	for id, row := range r.s.trades {
		if row.t.PortfolioID != nil && *row.t.PortfolioID == portfolioID {
			row.t.PortfolioID = nil
			row.t.UpdatedAt = now
			r.s.trades[id] = row
			n++
		}
	}
	return n, nil
}

func page[T any](rows []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
