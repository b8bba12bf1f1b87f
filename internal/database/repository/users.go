package repository

import (
	"context"
	"database/sql"
)

// UserRepo handles operator accounts.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Upsert(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO users(id, name, role, created_at)
	VALUES(?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET name=excluded.name, role=excluded.role;
	`, u.ID, u.Name, u.Role)
	return err
}

func (r *UserRepo) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, role, created_at FROM users ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepo) ByName(ctx context.Context, name string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, role, created_at FROM users WHERE name = ?`, name)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Role, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
