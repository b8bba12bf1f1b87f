package repository

import (
	"context"
	"database/sql"
	"strings"
)

// AgentFilters defines list filters.
type AgentFilters struct {
	Status   string
	Exchange string
	Mode     string
	Search   string
}

// AgentRepo handles agents.
type AgentRepo struct {
	db *sql.DB
}

func NewAgentRepo(db *sql.DB) *AgentRepo { return &AgentRepo{db: db} }

func (r *AgentRepo) Upsert(ctx context.Context, a Agent) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO agents(id, name, strategy, exchange, symbol, status, mode, max_notional_cents, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name, strategy=excluded.strategy, exchange=excluded.exchange,
	 symbol=excluded.symbol, status=excluded.status, mode=excluded.mode,
	 max_notional_cents=excluded.max_notional_cents, updated_at=CURRENT_TIMESTAMP;
	`, a.ID, a.Name, a.Strategy, a.Exchange, a.Symbol, a.Status, a.Mode, a.MaxNotionalCents)
	return err
}

func (r *AgentRepo) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE agents SET status = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}

func (r *AgentRepo) List(ctx context.Context, f AgentFilters) ([]Agent, error) {
	var where []string
	var args []interface{}

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Exchange != "" {
		where = append(where, "exchange = ?")
		args = append(args, f.Exchange)
	}
	if f.Mode != "" {
		where = append(where, "mode = ?")
		args = append(args, f.Mode)
	}
	if f.Search != "" {
		where = append(where, "(name LIKE ? OR symbol LIKE ?)")
		args = append(args, "%"+f.Search+"%", "%"+f.Search+"%")
	}

	query := "SELECT id, name, strategy, exchange, symbol, status, mode, max_notional_cents, created_at, updated_at FROM agents"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AgentRepo) Get(ctx context.Context, id string) (*Agent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, strategy, exchange, symbol, status, mode, max_notional_cents, created_at, updated_at FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func scanAgent(row scanner) (Agent, error) {
	var a Agent
	if err := row.Scan(&a.ID, &a.Name, &a.Strategy, &a.Exchange, &a.Symbol, &a.Status, &a.Mode,
		&a.MaxNotionalCents, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Agent{}, err
	}
	return a, nil
}
