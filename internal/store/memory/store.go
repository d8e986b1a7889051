// Package memory implements the domain store interfaces in process memory.
// It backs the "memory" storage driver and the service and handler tests.
package memory

import (
	"sync"
	"time"
)

// Store is the shared state behind the memory repositories. Every repository
// built from the same Store sees the same data.
type Store struct {
	mu         sync.RWMutex
	trades     map[string]tradeRow
	portfolios map[string]portfolioRow
	positions  map[string]positionRow
	audit      []auditRow
	seq        int64
	now        func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		trades:     make(map[string]tradeRow),
		portfolios: make(map[string]portfolioRow),
		positions:  make(map[string]positionRow),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Rows keep an insertion sequence so listings have a stable tiebreak.
func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// Trades returns the trade repository.
func (s *Store) Trades() *TradeStore { return &TradeStore{s: s} }

// Portfolios returns the portfolio repository.
func (s *Store) Portfolios() *PortfolioStore { return &PortfolioStore{s: s} }

// Positions returns the position repository.
func (s *Store) Positions() *PositionStore { return &PositionStore{s: s} }

// Audit returns the audit log.
func (s *Store) Audit() *AuditStore { return &AuditStore{s: s} }
