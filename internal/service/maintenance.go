package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kvist/tradefarm/internal/database"
)

// MaintenanceService owns destructive database operations.
type MaintenanceService struct {
	DB *sql.DB
}

// Reset clears all farm data. Order respects foreign keys.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	tables := []string{"fills", "orders", "positions", "workflows", "wallets", "credentials", "agents", "users"}
	return database.WithTx(s.DB, func(tx *sql.Tx) error {
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("clear %s: %w", t, err)
			}
		}
		return nil
	})
}
