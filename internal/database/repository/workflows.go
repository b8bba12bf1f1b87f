package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowRepo handles workflows.
type WorkflowRepo struct {
	db *sql.DB
}

func NewWorkflowRepo(db *sql.DB) *WorkflowRepo { return &WorkflowRepo{db: db} }

func (r *WorkflowRepo) Upsert(ctx context.Context, w Workflow) error {
	steps, err := json.Marshal(w.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO workflows(id, name, agent_id, steps, status, last_run_at)
	VALUES(?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name, agent_id=excluded.agent_id, steps=excluded.steps,
	 status=excluded.status, last_run_at=excluded.last_run_at;
	`, w.ID, w.Name, w.AgentID, string(steps), w.Status, w.LastRunAt)
	return err
}

func (r *WorkflowRepo) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE workflows SET status = ? WHERE id = ?`, status, id)
	return err
}

func (r *WorkflowRepo) MarkRun(ctx context.Context, id, status string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE workflows SET status = ?, last_run_at = ? WHERE id = ?`, status, at, id)
	return err
}

func (r *WorkflowRepo) List(ctx context.Context) ([]Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, agent_id, steps, status, last_run_at FROM workflows ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *WorkflowRepo) Get(ctx context.Context, id string) (*Workflow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, agent_id, steps, status, last_run_at FROM workflows WHERE id = ?`, id)
	w, err := scanWorkflow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func scanWorkflow(row scanner) (Workflow, error) {
	var w Workflow
	var steps string
	var lastRun sql.NullTime
	if err := row.Scan(&w.ID, &w.Name, &w.AgentID, &steps, &w.Status, &lastRun); err != nil {
		return Workflow{}, err
	}
	if err := json.Unmarshal([]byte(steps), &w.Steps); err != nil {
		return Workflow{}, fmt.Errorf("decode steps: %w", err)
	}
	if lastRun.Valid {
		w.LastRunAt = &lastRun.Time
	}
	return w, nil
}
