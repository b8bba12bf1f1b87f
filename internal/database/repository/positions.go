package repository

import (
	"context"
	"database/sql"
	"strings"
)

// PositionFilters defines list filters.
type PositionFilters struct {
	AgentID string
	Symbol  string
	Search  string
}

// PositionRepo handles positions.
type PositionRepo struct {
	db *sql.DB
}

func NewPositionRepo(db *sql.DB) *PositionRepo { return &PositionRepo{db: db} }

func (r *PositionRepo) Upsert(ctx context.Context, p Position) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO positions(id, agent_id, symbol, qty, avg_entry_cents, mark_cents, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(agent_id, symbol) DO UPDATE SET
	 qty=excluded.qty, avg_entry_cents=excluded.avg_entry_cents,
	 mark_cents=excluded.mark_cents, updated_at=CURRENT_TIMESTAMP;
	`, p.ID, p.AgentID, p.Symbol, p.Qty, p.AvgEntryCents, p.MarkCents)
	return err
}

func (r *PositionRepo) UpdateMark(ctx context.Context, symbol string, markCents int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE positions SET mark_cents = ?, updated_at=CURRENT_TIMESTAMP WHERE symbol = ?`, markCents, symbol)
	return err
}

func (r *PositionRepo) List(ctx context.Context, f PositionFilters) ([]Position, error) {
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
	if f.Search != "" {
		where = append(where, "symbol LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}

	query := "SELECT id, agent_id, symbol, qty, avg_entry_cents, mark_cents, updated_at FROM positions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY symbol, agent_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.AgentID, &p.Symbol, &p.Qty, &p.AvgEntryCents, &p.MarkCents, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PositionRepo) GetByAgentSymbol(ctx context.Context, agentID, symbol string) (*Position, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, agent_id, symbol, qty, avg_entry_cents, mark_cents, updated_at FROM positions WHERE agent_id = ? AND symbol = ?`, agentID, symbol)
	var p Position
	if err := row.Scan(&p.ID, &p.AgentID, &p.Symbol, &p.Qty, &p.AvgEntryCents, &p.MarkCents, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
