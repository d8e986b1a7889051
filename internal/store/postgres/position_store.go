package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, portfolio_id, ticker, shares, cost_basis, average_cost,
	current_price, market_value, unrealized_pl, unrealized_pct,
	notes, created_at, updated_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	err := row.Scan(
		&p.ID, &p.PortfolioID, &p.Ticker, &p.Shares, &p.CostBasis, &p.AverageCost,
		&p.CurrentPrice, &p.MarketValue, &p.UnrealizedPL, &p.UnrealizedPLPercent,
		&p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Create inserts a new position. A duplicate ticker within the portfolio
// returns domain.ErrConflict.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, portfolio_id, ticker, shares, cost_basis, average_cost,
			current_price, market_value, unrealized_pl, unrealized_pct,
			notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13
		)`
	_, err := s.pool.Exec(ctx, query,
		p.ID, p.PortfolioID, p.Ticker, p.Shares, p.CostBasis, p.AverageCost,
		p.CurrentPrice, p.MarketValue, p.UnrealizedPL, p.UnrealizedPLPercent,
		p.Notes, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create position %s: %w", p.ID, mapErr(err))
	}
	return nil
}

// Update replaces all mutable fields of a position.
func (s *PositionStore) Update(ctx context.Context, p domain.Position) error {
	const query = `
		UPDATE positions SET
			ticker         = $2,
			shares         = $3,
			cost_basis     = $4,
			average_cost   = $5,
			current_price  = $6,
			market_value   = $7,
			unrealized_pl  = $8,
			unrealized_pct = $9,
			notes          = $10,
			updated_at     = $11
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		p.ID, p.Ticker, p.Shares, p.CostBasis, p.AverageCost,
		p.CurrentPrice, p.MarketValue, p.UnrealizedPL, p.UnrealizedPLPercent,
		p.Notes, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update position %s: %w", p.ID, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a single position by its ID.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// GetByTicker retrieves the position holding ticker in a portfolio.
func (s *PositionStore) GetByTicker(ctx context.Context, portfolioID, ticker string) (domain.Position, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE portfolio_id = $1 AND ticker = $2`,
		portfolioID, ticker))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s/%s: %w", portfolioID, ticker, err)
	}
	return p, nil
}

// Delete removes a position.
func (s *PositionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByPortfolio returns a portfolio's positions, newest first.
func (s *PositionStore) ListByPortfolio(ctx context.Context, portfolioID string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE portfolio_id = $1 ORDER BY created_at DESC`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

// DeleteByPortfolio removes every position in a portfolio.
func (s *PositionStore) DeleteByPortfolio(ctx context.Context, portfolioID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE portfolio_id = $1`, portfolioID)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete positions of %s: %w", portfolioID, err)
	}
	return tag.RowsAffected(), nil
}

// ListAll returns every position, used by backups.
func (s *PositionStore) ListAll(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions ORDER BY portfolio_id, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list all positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan all positions: %w", err)
	}
	return positions, nil
}
