package database

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/kvist/tradefarm/internal/database/repository"
)

// SeedDefaults ensures a baseline operator and demo agents exist for new
// databases. It is idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	userRepo := repository.NewUserRepo(db)
	users, err := userRepo.List(ctx)
	if err == nil && len(users) > 0 {
		return nil
	}

	admin := repository.User{
		ID:   stableID("user:admin"),
		Name: "admin",
		Role: repository.RoleAdmin,
	}
	if err := userRepo.Upsert(ctx, admin); err != nil {
		return err
	}

	agentRepo := repository.NewAgentRepo(db)
	defaults := []repository.Agent{
		{Name: "grid-btc", Strategy: "grid", Exchange: "binance", Symbol: "BTC-USDT", MaxNotionalCents: 500_000_00},
		{Name: "momo-eth", Strategy: "momentum", Exchange: "binance", Symbol: "ETH-USDT", MaxNotionalCents: 250_000_00},
		{Name: "mm-sol", Strategy: "market-making", Exchange: "kraken", Symbol: "SOL-USD", MaxNotionalCents: 100_000_00},
	}
	for _, a := range defaults {
		a.ID = stableID("agent:" + a.Name)
		a.Status = repository.AgentStopped
		a.Mode = repository.ModeDryRun
		if err := agentRepo.Upsert(ctx, a); err != nil {
			return err
		}
	}

	walletRepo := repository.NewWalletRepo(db)
	wallets := []repository.Wallet{
		{Exchange: "binance", Asset: "USDT", FreeUnits: 100_000_0000_0000},
		{Exchange: "kraken", Asset: "USD", FreeUnits: 25_000_0000_0000},
	}
	for _, w := range wallets {
		w.ID = stableID("wallet:" + w.Exchange + ":" + w.Asset)
		if err := walletRepo.Upsert(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

// stableID derives the same uuid for the same seed name across runs.
func stableID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
