package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, user_id, portfolio_id, symbol, option_type,
	strike_price, expiration_date,
	open_action, open_quantity, open_premium, open_commission, open_trade_date, open_total_cost,
	close_action, close_quantity, close_premium, close_commission, close_trade_date, close_total_cost,
	status, profit_loss, notes, created_at, updated_at`

func scanTrade(row pgx.Row) (domain.Trade, error) {
	var (
		t                                        domain.Trade
		optionType, expiration                   string
		openAction, openDate, status             string
		closeAction, closeDate                   *string
		closeQty                                 *int
		closePremium, closeCommission, closeCost *float64
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.PortfolioID, &t.Symbol, &optionType,
		&t.StrikePrice, &expiration,
		&openAction, &t.Open.Quantity, &t.Open.Premium, &t.Open.Commission, &openDate, &t.Open.TotalCost,
		&closeAction, &closeQty, &closePremium, &closeCommission, &closeDate, &closeCost,
		&status, &t.ProfitLoss, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.Trade{}, err
	}
	t.OptionType = domain.OptionType(optionType)
	t.ExpirationDate = domain.Date(expiration)
	t.Open.Action = domain.OpeningAction(openAction)
	t.Open.TradeDate = domain.Date(openDate)
	t.Status = domain.TradeStatus(status)

	if closeAction != nil {
		c := &domain.ClosingLeg{Action: domain.ClosingAction(*closeAction)}
		if closeQty != nil {
			c.Quantity = *closeQty
		}
		if closePremium != nil {
			c.Premium = *closePremium
		}
		if closeCommission != nil {
			c.Commission = *closeCommission
		}
		if closeDate != nil {
			c.TradeDate = domain.Date(*closeDate)
		}
		if closeCost != nil {
			c.TotalCost = *closeCost
		}
		t.Close = c
	}
	return t, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// closeArgs flattens the optional closing leg into nullable column values.
func closeArgs(t domain.Trade) []any {
	c := t.Close
	if c == nil {
		return []any{nil, nil, nil, nil, nil, nil}
	}
	return []any{string(c.Action), c.Quantity, c.Premium, c.Commission, string(c.TradeDate), c.TotalCost}
}

// Create inserts a new trade.
func (s *TradeStore) Create(ctx context.Context, t domain.Trade) error {
	const query = `
		INSERT INTO trades (
			id, user_id, portfolio_id, symbol, option_type,
			strike_price, expiration_date,
			open_action, open_quantity, open_premium, open_commission, open_trade_date, open_total_cost,
			close_action, close_quantity, close_premium, close_commission, close_trade_date, close_total_cost,
			status, profit_loss, notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24
		)`

	args := []any{
		t.ID, t.UserID, t.PortfolioID, t.Symbol, string(t.OptionType),
		t.StrikePrice, string(t.ExpirationDate),
		string(t.Open.Action), t.Open.Quantity, t.Open.Premium, t.Open.Commission, string(t.Open.TradeDate), t.Open.TotalCost,
	}
	args = append(args, closeArgs(t)...)
	args = append(args, string(t.Status), t.ProfitLoss, t.Notes, t.CreatedAt, t.UpdatedAt)

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: create trade %s: %w", t.ID, mapErr(err))
	}
	return nil
}

// Update replaces every mutable column of a trade.
func (s *TradeStore) Update(ctx context.Context, t domain.Trade) error {
	const query = `
		UPDATE trades SET
			portfolio_id     = $2,
			symbol           = $3,
			option_type      = $4,
			strike_price     = $5,
			expiration_date  = $6,
			open_action      = $7,
			open_quantity    = $8,
			open_premium     = $9,
			open_commission  = $10,
			open_trade_date  = $11,
			open_total_cost  = $12,
			close_action     = $13,
			close_quantity   = $14,
			close_premium    = $15,
			close_commission = $16,
			close_trade_date = $17,
			close_total_cost = $18,
			status           = $19,
			profit_loss      = $20,
			notes            = $21,
			updated_at       = $22
		WHERE id = $1`

	args := []any{
		t.ID, t.PortfolioID, t.Symbol, string(t.OptionType),
		t.StrikePrice, string(t.ExpirationDate),
		string(t.Open.Action), t.Open.Quantity, t.Open.Premium, t.Open.Commission, string(t.Open.TradeDate), t.Open.TotalCost,
	}
	args = append(args, closeArgs(t)...)
	args = append(args, string(t.Status), t.ProfitLoss, t.Notes, t.UpdatedAt)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: update trade %s: %w", t.ID, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a single trade.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.Trade, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tradeSelectCols+` FROM trades WHERE id = $1`, id)
	t, err := scanTrade(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Trade{}, domain.ErrNotFound
		}
		return domain.Trade{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return t, nil
}

// Delete removes a trade.
func (s *TradeStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete trade %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns trades matching f in the requested order.
func (s *TradeStore) List(ctx context.Context, f domain.TradeFilter) ([]domain.Trade, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.PortfolioID != "" {
		add("portfolio_id = $%d", f.PortfolioID)
	}
	if f.Symbol != "" {
		add("symbol = $%d", f.Symbol)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.OpenAction != "" {
		add("open_action = $%d", string(f.OpenAction))
	}

	query := `SELECT ` + tradeSelectCols + ` FROM trades`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	switch f.Sort {
	case domain.SortOpenDateDesc:
		query += " ORDER BY open_trade_date DESC, created_at DESC"
	default:
		query += " ORDER BY created_at DESC"
	}
	query, args = appendPage(query, args, len(args)+1, f.Limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ClearPortfolio detaches every trade from portfolioID.
func (s *TradeStore) ClearPortfolio(ctx context.Context, portfolioID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trades SET portfolio_id = NULL, updated_at = NOW() WHERE portfolio_id = $1`, portfolioID)
	if err != nil {
		return 0, fmt.Errorf("postgres: clear trade portfolio %s: %w", portfolioID, err)
	}
	return tag.RowsAffected(), nil
}
