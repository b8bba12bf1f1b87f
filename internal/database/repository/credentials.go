package repository

import (
	"context"
	"database/sql"
)

// CredentialRepo handles exchange credentials.
type CredentialRepo struct {
	db *sql.DB
}

func NewCredentialRepo(db *sql.DB) *CredentialRepo { return &CredentialRepo{db: db} }

func (r *CredentialRepo) Insert(ctx context.Context, c Credential) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO credentials(id, exchange, label, api_key_id, secret_ref, status, created_at)
	VALUES(?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP);
	`, c.ID, c.Exchange, c.Label, c.APIKeyID, c.SecretRef, c.Status)
	return err
}

func (r *CredentialRepo) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE credentials SET status = ? WHERE id = ?`, status, id)
	return err
}

func (r *CredentialRepo) List(ctx context.Context) ([]Credential, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, exchange, label, api_key_id, secret_ref, status, created_at FROM credentials ORDER BY exchange, label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Credential
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.ID, &c.Exchange, &c.Label, &c.APIKeyID, &c.SecretRef, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ActiveForExchange returns the first active credential for an exchange,
// or nil when none exists.
func (r *CredentialRepo) ActiveForExchange(ctx context.Context, exchange string) (*Credential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, exchange, label, api_key_id, secret_ref, status, created_at FROM credentials WHERE exchange = ? AND status = ? ORDER BY created_at LIMIT 1`, exchange, CredentialActive)
	var c Credential
	if err := row.Scan(&c.ID, &c.Exchange, &c.Label, &c.APIKeyID, &c.SecretRef, &c.Status, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
