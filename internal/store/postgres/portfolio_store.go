package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

// PortfolioStore implements domain.PortfolioStore using PostgreSQL.
type PortfolioStore struct {
	pool *pgxpool.Pool
}

// NewPortfolioStore creates a new PortfolioStore backed by the given connection pool.
func NewPortfolioStore(pool *pgxpool.Pool) *PortfolioStore {
	return &PortfolioStore{pool: pool}
}

const portfolioSelectCols = `id, user_id, name, description, is_active, is_default, created_at, updated_at`

func scanPortfolio(row pgx.Row) (domain.Portfolio, error) {
	var p domain.Portfolio
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.IsActive, &p.IsDefault, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *PortfolioStore) getOne(ctx context.Context, what, query string, args ...any) (domain.Portfolio, error) {
	p, err := scanPortfolio(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Portfolio{}, domain.ErrNotFound
		}
		return domain.Portfolio{}, fmt.Errorf("postgres: get portfolio %s: %w", what, err)
	}
	return p, nil
}

// Create inserts a new portfolio. A duplicate name for the same user
// returns domain.ErrConflict.
func (s *PortfolioStore) Create(ctx context.Context, p domain.Portfolio) error {
	const query = `
		INSERT INTO portfolios (id, user_id, name, description, is_active, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, query,
		p.ID, p.UserID, p.Name, p.Description, p.IsActive, p.IsDefault, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create portfolio %s: %w", p.ID, mapErr(err))
	}
	return nil
}

// Update replaces the mutable fields of a portfolio.
func (s *PortfolioStore) Update(ctx context.Context, p domain.Portfolio) error {
	const query = `
		UPDATE portfolios SET
			name        = $2,
			description = $3,
			is_active   = $4,
			is_default  = $5,
			updated_at  = $6
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, p.ID, p.Name, p.Description, p.IsActive, p.IsDefault, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: update portfolio %s: %w", p.ID, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a portfolio.
func (s *PortfolioStore) GetByID(ctx context.Context, id string) (domain.Portfolio, error) {
	return s.getOne(ctx, id, `SELECT `+portfolioSelectCols+` FROM portfolios WHERE id = $1`, id)
}

// GetByName retrieves a user's portfolio by exact name.
func (s *PortfolioStore) GetByName(ctx context.Context, userID, name string) (domain.Portfolio, error) {
	return s.getOne(ctx, name,
		`SELECT `+portfolioSelectCols+` FROM portfolios WHERE user_id = $1 AND name = $2`, userID, name)
}

// GetDefault retrieves the user's default portfolio.
func (s *PortfolioStore) GetDefault(ctx context.Context, userID string) (domain.Portfolio, error) {
	return s.getOne(ctx, "default",
		`SELECT `+portfolioSelectCols+` FROM portfolios
		 WHERE user_id = $1 AND is_default
		 ORDER BY updated_at DESC LIMIT 1`, userID)
}

// Delete removes a portfolio. Positions cascade and trades are detached by
// the foreign keys.
func (s *PortfolioStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM portfolios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete portfolio %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByUser returns the user's portfolios, newest first.
func (s *PortfolioStore) ListByUser(ctx context.Context, userID string, f domain.PortfolioFilter) ([]domain.Portfolio, error) {
	query := `SELECT ` + portfolioSelectCols + ` FROM portfolios WHERE user_id = $1`
	args := []any{userID}
	if f.IsActive != nil {
		query += " AND is_active = $2"
		args = append(args, *f.IsActive)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list portfolios: %w", err)
	}
	defer rows.Close()

	var out []domain.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan portfolio: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list portfolios rows: %w", err)
	}
	return out, nil
}

// ClearDefault unsets the default flag on the user's other portfolios.
func (s *PortfolioStore) ClearDefault(ctx context.Context, userID, exceptID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE portfolios SET is_default = FALSE, updated_at = NOW()
		 WHERE user_id = $1 AND id <> $2 AND is_default`, userID, exceptID)
	if err != nil {
		return 0, fmt.Errorf("postgres: clear default portfolio for %s: %w", userID, err)
	}
	return tag.RowsAffected(), nil
}
