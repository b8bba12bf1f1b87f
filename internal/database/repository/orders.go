package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// OrderFilters defines list filters.
type OrderFilters struct {
	AgentID string
	Symbol  string
	Status  string
	Side    string
	Search  string
	Since   time.Time // zero time = no lower bound
}

// OrderRepo handles orders and their fills.
type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) Insert(ctx context.Context, o Order) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO orders(id, agent_id, symbol, side, type, qty, limit_price_cents, status, reason, dry_run, placed_at, filled_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, o.ID, o.AgentID, o.Symbol, o.Side, o.Type, o.Qty, o.LimitPriceCents, o.Status, o.Reason, o.DryRun, o.PlacedAt, o.FilledAt)
	return err
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id, status string, reason *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET status = ?, reason = ? WHERE id = ?`, status, reason, id)
	return err
}

func (r *OrderRepo) MarkFilled(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET status = ?, filled_at = ? WHERE id = ?`, OrderFilled, at, id)
	return err
}

func (r *OrderRepo) UpdateLimitPrice(ctx context.Context, id string, priceCents int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET limit_price_cents = ? WHERE id = ? AND status = ?`, priceCents, id, OrderOpen)
	return err
}

func (r *OrderRepo) List(ctx context.Context, f OrderFilters) ([]Order, error) {
	var where []string
	var args []interface{}

	if f.AgentID != "" {
		where = append(where, "agent_id = ?")
		args = append(args, f.AgentID)
	}
	if f.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, f.Symbol)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Side != "" {
		where = append(where, "side = ?")
		args = append(args, f.Side)
	}
	if f.Search != "" {
		where = append(where, "symbol LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}
	if !f.Since.IsZero() {
		where = append(where, "placed_at >= ?")
		args = append(args, f.Since)
	}

	query := "SELECT id, agent_id, symbol, side, type, qty, limit_price_cents, status, reason, dry_run, placed_at, filled_at FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY placed_at DESC, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrderRepo) Get(ctx context.Context, id string) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, agent_id, symbol, side, type, qty, limit_price_cents, status, reason, dry_run, placed_at, filled_at FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// OpenNotionalCents sums qty*price over an agent's open orders, for the
// max-notional risk check. Market orders without a limit price count at
// the given mark.
func (r *OrderRepo) OpenNotionalCents(ctx context.Context, agentID string, markCents int64) (int64, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT COALESCE(SUM(qty * COALESCE(limit_price_cents, ?)), 0)
	FROM orders WHERE agent_id = ? AND status = ?;
	`, markCents, agentID, OrderOpen)
	var scaled int64
	if err := row.Scan(&scaled); err != nil {
		return 0, err
	}
	return scaled / 1e8, nil
}

// LastFillPriceCents returns the most recent execution price for a symbol,
// or 0 when the symbol has never traded.
func (r *OrderRepo) LastFillPriceCents(ctx context.Context, symbol string) (int64, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT f.price_cents FROM fills f
	JOIN orders o ON o.id = f.order_id
	WHERE o.symbol = ? ORDER BY f.executed_at DESC, f.id DESC LIMIT 1;
	`, symbol)
	var price int64
	if err := row.Scan(&price); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return price, nil
}

func (r *OrderRepo) InsertFill(ctx context.Context, f Fill) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO fills(id, order_id, qty, price_cents, fee_cents, executed_at)
	VALUES(?, ?, ?, ?, ?, ?);
	`, f.ID, f.OrderID, f.Qty, f.PriceCents, f.FeeCents, f.ExecutedAt)
	return err
}

func (r *OrderRepo) ListFills(ctx context.Context, orderID string) ([]Fill, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, order_id, qty, price_cents, fee_cents, executed_at FROM fills WHERE order_id = ? ORDER BY executed_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Fill
	for rows.Next() {
		var f Fill
		if err := rows.Scan(&f.ID, &f.OrderID, &f.Qty, &f.PriceCents, &f.FeeCents, &f.ExecutedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanOrder(row scanner) (Order, error) {
	var o Order
	var limit sql.NullInt64
	var reason sql.NullString
	var filled sql.NullTime
	if err := row.Scan(&o.ID, &o.AgentID, &o.Symbol, &o.Side, &o.Type, &o.Qty, &limit,
		&o.Status, &reason, &o.DryRun, &o.PlacedAt, &filled); err != nil {
		return Order{}, err
	}
	if limit.Valid {
		o.LimitPriceCents = &limit.Int64
	}
	if reason.Valid {
		o.Reason = &reason.String
	}
	if filled.Valid {
		o.FilledAt = &filled.Time
	}
	return o, nil
}
