package testdata

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/kvist/tradefarm/internal/database/repository"
)

// Repos bundles repos used by Seed.
type Repos struct {
	Agents    *repository.AgentRepo
	Orders    *repository.OrderRepo
	Positions *repository.PositionRepo
	Wallets   *repository.WalletRepo
	Workflows *repository.WorkflowRepo
}

// Seed creates a sample farm: a few agents with order history, positions
// and wallet balances, plus one workflow per agent.
func Seed(ctx context.Context, repos Repos) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	type spec struct {
		name, strategy, exchange, symbol string
		markCents                        int64
	}
	specs := []spec{
		{"grid-btc", "grid", "binance", "BTC-USDT", 67_000_00},
		{"momo-eth", "momentum", "binance", "ETH-USDT", 3_400_00},
		{"mm-sol", "market-making", "kraken", "SOL-USD", 160_00},
	}

	now := time.Now().UTC()
	for _, sp := range specs {
		agent := repository.Agent{
			ID:               uuid.NewString(),
			Name:             sp.name,
			Strategy:         sp.strategy,
			Exchange:         sp.exchange,
			Symbol:           sp.symbol,
			Status:           repository.AgentRunning,
			Mode:             repository.ModeDryRun,
			MaxNotionalCents: 500_000_00,
		}
		if err := repos.Agents.Upsert(ctx, agent); err != nil {
			return err
		}

		var qtySum, costSum int64
		for i := 0; i < 8; i++ {
			qty := int64(rng.Intn(40)+10) * 1e6 // 0.01 .. 0.5 units
			price := sp.markCents + int64(rng.Intn(200)-100)
			side := repository.SideBuy
			if rng.Intn(4) == 0 {
				side = repository.SideSell
			}
			placed := now.Add(-time.Duration(rng.Intn(72)) * time.Hour)
			order := repository.Order{
				ID:       uuid.NewString(),
				AgentID:  agent.ID,
				Symbol:   sp.symbol,
				Side:     side,
				Type:     repository.TypeLimit,
				Qty:      qty,
				Status:   repository.OrderFilled,
				DryRun:   true,
				PlacedAt: placed,
			}
			order.LimitPriceCents = &price
			filled := placed.Add(time.Minute)
			order.FilledAt = &filled
			if err := repos.Orders.Insert(ctx, order); err != nil {
				return err
			}
			fill := repository.Fill{
				ID:         uuid.NewString(),
				OrderID:    order.ID,
				Qty:        qty,
				PriceCents: price,
				FeeCents:   qty * price / 1e8 * 10 / 10_000,
				ExecutedAt: filled,
			}
			if err := repos.Orders.InsertFill(ctx, fill); err != nil {
				return err
			}
			if side == repository.SideBuy {
				qtySum += qty
				costSum += qty * price / 1e8
			} else {
				qtySum -= qty
				costSum -= qty * price / 1e8
			}
		}

		avg := sp.markCents
		if qtySum != 0 {
			avg = costSum * 1e8 / qtySum
		}
		pos := repository.Position{
			ID:            uuid.NewString(),
			AgentID:       agent.ID,
			Symbol:        sp.symbol,
			Qty:           qtySum,
			AvgEntryCents: avg,
			MarkCents:     sp.markCents,
		}
		if err := repos.Positions.Upsert(ctx, pos); err != nil {
			return err
		}

		wf := repository.Workflow{
			ID:      uuid.NewString(),
			Name:    sp.name + "-housekeeping",
			AgentID: agent.ID,
			Steps:   []string{"refresh-marks", "reprice-open-limits"},
			Status:  repository.WorkflowIdle,
		}
		if err := repos.Workflows.Upsert(ctx, wf); err != nil {
			return err
		}
	}

	wallets := []repository.Wallet{
		{ID: uuid.NewString(), Exchange: "binance", Asset: "USDT", FreeUnits: 100_000_0000_0000, LockedUnits: 12_000_0000_0000},
		{ID: uuid.NewString(), Exchange: "binance", Asset: "BTC", FreeUnits: 1_5000_0000},
		{ID: uuid.NewString(), Exchange: "kraken", Asset: "USD", FreeUnits: 25_000_0000_0000},
	}
	for _, w := range wallets {
		if err := repos.Wallets.Upsert(ctx, w); err != nil {
			return err
		}
	}
	return nil
}
