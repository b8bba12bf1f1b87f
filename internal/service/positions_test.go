package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kvist/tradefarm/internal/database"
	"github.com/kvist/tradefarm/internal/database/repository"
)

func setupPositionTest(t *testing.T) (*PositionService, context.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.RunMigrations(dbPath))

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// positions reference agents
	agents := repository.NewAgentRepo(db)
	require.NoError(t, agents.Upsert(ctx, repository.Agent{
		ID: "agent-1", Name: "grid-btc", Strategy: "grid", Exchange: "binance",
		Symbol: "BTC-USDT", Status: repository.AgentRunning, Mode: repository.ModeDryRun,
	}))

	return &PositionService{Positions: repository.NewPositionRepo(db)}, ctx
}

func getPos(t *testing.T, ctx context.Context, svc *PositionService) repository.Position {
	t.Helper()
	p, err := svc.Positions.GetByAgentSymbol(ctx, "agent-1", "BTC-USDT")
	require.NoError(t, err)
	require.NotNil(t, p)
	return *p
}

func TestApplyFillWeightedAverage(t *testing.T) {
	t.Parallel()
	svc, ctx := setupPositionTest(t)

	require.NoError(t, svc.ApplyFill(ctx, "agent-1", "BTC-USDT", repository.SideBuy, 1e8, 100_00))
	require.NoError(t, svc.ApplyFill(ctx, "agent-1", "BTC-USDT", repository.SideBuy, 1e8, 200_00))

	p := getPos(t, ctx, svc)
	require.Equal(t, int64(2e8), p.Qty)
	require.Equal(t, int64(150_00), p.AvgEntryCents) // (100+200)/2
	require.Equal(t, int64(200_00), p.MarkCents)     // last fill marks
}

func TestApplyFillReduceKeepsEntry(t *testing.T) {
	t.Parallel()
	svc, ctx := setupPositionTest(t)

	require.NoError(t, svc.ApplyFill(ctx, "agent-1", "BTC-USDT", repository.SideBuy, 2e8, 100_00))
	require.NoError(t, svc.ApplyFill(ctx, "agent-1", "BTC-USDT", repository.SideSell, 1e8, 150_00))

	p := getPos(t, ctx, svc)
	require.Equal(t, int64(1e8), p.Qty)
	require.Equal(t, int64(100_00), p.AvgEntryCents)
}

func TestApplyFillFlipRestartsAtFillPrice(t *testing.T) {
	t.Parallel()
	svc, ctx := setupPositionTest(t)

	require.NoError(t, svc.ApplyFill(ctx, "agent-1", "BTC-USDT", repository.SideBuy, 1e8, 100_00))
	require.NoError(t, svc.ApplyFill(ctx, "agent-1", "BTC-USDT", repository.SideSell, 3e8, 120_00))

	p := getPos(t, ctx, svc)
	require.Equal(t, int64(-2e8), p.Qty) // short 2 units
	require.Equal(t, int64(120_00), p.AvgEntryCents)
}

func TestUnrealizedCents(t *testing.T) {
	t.Parallel()

	long := repository.Position{Qty: 2e8, AvgEntryCents: 100_00, MarkCents: 110_00}
	require.Equal(t, int64(20_00), UnrealizedCents(long)) // +$10 x 2

	short := repository.Position{Qty: -1e8, AvgEntryCents: 100_00, MarkCents: 110_00}
	require.Equal(t, int64(-10_00), UnrealizedCents(short))

	flat := repository.Position{Qty: 0, AvgEntryCents: 100_00, MarkCents: 90_00}
	require.Zero(t, UnrealizedCents(flat))
}

func TestMarkToMarket(t *testing.T) {
	t.Parallel()
	svc, ctx := setupPositionTest(t)

	require.NoError(t, svc.ApplyFill(ctx, "agent-1", "BTC-USDT", repository.SideBuy, 1e8, 100_00))
	require.NoError(t, svc.MarkToMarket(ctx, map[string]int64{"BTC-USDT": 130_00, "ETH-USDT": 50_00}))

	p := getPos(t, ctx, svc)
	require.Equal(t, int64(130_00), p.MarkCents)
	require.Equal(t, int64(30_00), UnrealizedCents(p))
}
