package repository

import (
	"context"
	"database/sql"
	"strings"
)

// WalletFilters defines list filters.
type WalletFilters struct {
	Exchange string
	Asset    string
	Search   string
}

// WalletRepo handles wallet balances.
type WalletRepo struct {
	db *sql.DB
}

func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{db: db} }

func (r *WalletRepo) Upsert(ctx context.Context, w Wallet) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO wallets(id, exchange, asset, free_units, locked_units, updated_at)
	VALUES(?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(exchange, asset) DO UPDATE SET
	 free_units=excluded.free_units, locked_units=excluded.locked_units, updated_at=CURRENT_TIMESTAMP;
	`, w.ID, w.Exchange, w.Asset, w.FreeUnits, w.LockedUnits)
	return err
}

func (r *WalletRepo) List(ctx context.Context, f WalletFilters) ([]Wallet, error) {
	var where []string
	var args []interface{}

	if f.Exchange != "" {
		where = append(where, "exchange = ?")
		args = append(args, f.Exchange)
	}
	if f.Asset != "" {
		where = append(where, "asset = ?")
		args = append(args, f.Asset)
	}
	if f.Search != "" {
		where = append(where, "(exchange LIKE ? OR asset LIKE ?)")
		args = append(args, "%"+f.Search+"%", "%"+f.Search+"%")
	}

	query := "SELECT id, exchange, asset, free_units, locked_units, updated_at FROM wallets"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY exchange, asset"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Wallet
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(&w.ID, &w.Exchange, &w.Asset, &w.FreeUnits, &w.LockedUnits, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
