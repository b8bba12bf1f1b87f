package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kvist/tradefarm/internal/database"
	"github.com/kvist/tradefarm/internal/database/repository"
)

func setupOrderTest(t *testing.T) (*OrderService, *repository.AgentRepo, *repository.CredentialRepo, context.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.RunMigrations(dbPath))

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	orderRepo := repository.NewOrderRepo(db)
	agentRepo := repository.NewAgentRepo(db)
	credRepo := repository.NewCredentialRepo(db)
	posRepo := repository.NewPositionRepo(db)
	svc := &OrderService{
		Orders:      orderRepo,
		Agents:      agentRepo,
		Credentials: credRepo,
		Positions:   &PositionService{Positions: posRepo},
		SlippageBps: 5,
		FeeBps:      10,
	}
	return svc, agentRepo, credRepo, ctx
}

func runningAgent(t *testing.T, ctx context.Context, repo *repository.AgentRepo, mode string) repository.Agent {
	t.Helper()
	a := repository.Agent{
		ID:               uuid.NewString(),
		Name:             "grid-btc",
		Strategy:         "grid",
		Exchange:         "binance",
		Symbol:           "BTC-USDT",
		Status:           repository.AgentRunning,
		Mode:             mode,
		MaxNotionalCents: 100_000_00,
	}
	require.NoError(t, repo.Upsert(ctx, a))
	return a
}

func TestPlaceDryRunFillsImmediately(t *testing.T) {
	t.Parallel()
	svc, agents, _, ctx := setupOrderTest(t)
	a := runningAgent(t, ctx, agents, repository.ModeDryRun)

	limit := int64(67_000_00)
	res, err := svc.Place(ctx, PlaceRequest{
		AgentID:         a.ID,
		Side:            repository.SideBuy,
		Type:            repository.TypeLimit,
		Qty:             1e6, // 0.01 units
		LimitPriceCents: &limit,
		MarkCents:       67_000_00,
	})
	require.NoError(t, err)
	require.Equal(t, repository.OrderFilled, res.Order.Status)
	require.NotNil(t, res.Fill)
	require.Equal(t, limit, res.Fill.PriceCents) // limit orders fill at limit
	require.Equal(t, a.Symbol, res.Order.Symbol) // symbol defaulted from agent

	// position opened at the fill price
	pos, err := svc.Positions.Positions.GetByAgentSymbol(ctx, a.ID, a.Symbol)
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.Equal(t, int64(1e6), pos.Qty)
	require.Equal(t, limit, pos.AvgEntryCents)

	fills, err := svc.Orders.ListFills(ctx, res.Order.ID)
	require.NoError(t, err)
	require.Len(t, fills, 1)
}

func TestPlaceMarketAppliesSlippage(t *testing.T) {
	t.Parallel()
	svc, agents, _, ctx := setupOrderTest(t)
	a := runningAgent(t, ctx, agents, repository.ModeDryRun)

	res, err := svc.Place(ctx, PlaceRequest{
		AgentID:   a.ID,
		Side:      repository.SideBuy,
		Type:      repository.TypeMarket,
		Qty:       1e6,
		MarkCents: 100_000, // $1000.00
	})
	require.NoError(t, err)
	require.NotNil(t, res.Fill)
	// 5 bps adverse: buys fill above the mark
	require.Equal(t, int64(100_050), res.Fill.PriceCents)

	res, err = svc.Place(ctx, PlaceRequest{
		AgentID:   a.ID,
		Side:      repository.SideSell,
		Type:      repository.TypeMarket,
		Qty:       1e6,
		MarkCents: 100_000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(99_950), res.Fill.PriceCents)
}

func TestPlaceRejections(t *testing.T) {
	t.Parallel()
	svc, agents, _, ctx := setupOrderTest(t)
	a := runningAgent(t, ctx, agents, repository.ModeDryRun)

	cases := []struct {
		name   string
		req    PlaceRequest
		reason string
	}{
		{"zero qty", PlaceRequest{AgentID: a.ID, Side: repository.SideBuy, Type: repository.TypeMarket, Qty: 0, MarkCents: 100}, "qty"},
		{"bad side", PlaceRequest{AgentID: a.ID, Side: "hold", Type: repository.TypeMarket, Qty: 1e6, MarkCents: 100}, "side"},
		{"limit without price", PlaceRequest{AgentID: a.ID, Side: repository.SideBuy, Type: repository.TypeLimit, Qty: 1e6, MarkCents: 100}, "limit price"},
		{"market without mark", PlaceRequest{AgentID: a.ID, Side: repository.SideBuy, Type: repository.TypeMarket, Qty: 1e6}, "mark"},
	}
	for _, tc := range cases {
		res, err := svc.Place(ctx, tc.req)
		require.NoError(t, err, tc.name)
		require.Equal(t, repository.OrderRejected, res.Order.Status, tc.name)
		require.NotNil(t, res.Order.Reason, tc.name)
		require.Contains(t, *res.Order.Reason, tc.reason, tc.name)
		require.Nil(t, res.Fill, tc.name)
	}

	// rejected orders are persisted for the blotter
	rejected, err := svc.Orders.List(ctx, repository.OrderFilters{Status: repository.OrderRejected})
	require.NoError(t, err)
	require.Len(t, rejected, len(cases))
}

func TestPlaceRejectsWhenAgentNotRunning(t *testing.T) {
	t.Parallel()
	svc, agents, _, ctx := setupOrderTest(t)
	a := runningAgent(t, ctx, agents, repository.ModeDryRun)
	require.NoError(t, agents.UpdateStatus(ctx, a.ID, repository.AgentPaused))

	res, err := svc.Place(ctx, PlaceRequest{
		AgentID: a.ID, Side: repository.SideBuy, Type: repository.TypeMarket, Qty: 1e6, MarkCents: 100,
	})
	require.NoError(t, err)
	require.Equal(t, repository.OrderRejected, res.Order.Status)
	require.Contains(t, *res.Order.Reason, "paused")
}

func TestPlaceEnforcesMaxNotional(t *testing.T) {
	t.Parallel()
	svc, agents, _, ctx := setupOrderTest(t)
	a := runningAgent(t, ctx, agents, repository.ModeDryRun) // cap $100,000.00

	limit := int64(60_000_00)
	res, err := svc.Place(ctx, PlaceRequest{
		AgentID: a.ID, Side: repository.SideBuy, Type: repository.TypeLimit,
		Qty: 2e8, LimitPriceCents: &limit, MarkCents: limit, // 2 units @ $60k = $120k
	})
	require.NoError(t, err)
	require.Equal(t, repository.OrderRejected, res.Order.Status)
	require.Contains(t, *res.Order.Reason, "max notional")

	// under the cap passes
	res, err = svc.Place(ctx, PlaceRequest{
		AgentID: a.ID, Side: repository.SideBuy, Type: repository.TypeLimit,
		Qty: 1e8, LimitPriceCents: &limit, MarkCents: limit, // 1 unit = $60k
	})
	require.NoError(t, err)
	require.Equal(t, repository.OrderFilled, res.Order.Status)
}

func TestPlaceLiveNeedsActiveCredential(t *testing.T) {
	t.Parallel()
	svc, agents, creds, ctx := setupOrderTest(t)
	a := runningAgent(t, ctx, agents, repository.ModeLive)

	req := PlaceRequest{
		AgentID: a.ID, Side: repository.SideBuy, Type: repository.TypeMarket, Qty: 1e6, MarkCents: 100_000,
	}
	res, err := svc.Place(ctx, req)
	require.NoError(t, err)
	require.Equal(t, repository.OrderRejected, res.Order.Status)
	require.Contains(t, *res.Order.Reason, "credential")

	require.NoError(t, creds.Insert(ctx, repository.Credential{
		ID: uuid.NewString(), Exchange: "binance", Label: "main",
		APIKeyID: "AK123", SecretRef: "binance-main", Status: repository.CredentialActive,
	}))
	res, err = svc.Place(ctx, req)
	require.NoError(t, err)
	// live orders stay open waiting on the venue, no simulated fill
	require.Equal(t, repository.OrderOpen, res.Order.Status)
	require.Nil(t, res.Fill)
}

func TestCancelIsIdempotent(t *testing.T) {
	t.Parallel()
	svc, agents, creds, ctx := setupOrderTest(t)
	a := runningAgent(t, ctx, agents, repository.ModeLive)
	require.NoError(t, creds.Insert(ctx, repository.Credential{
		ID: uuid.NewString(), Exchange: "binance", Label: "main",
		APIKeyID: "AK123", SecretRef: "binance-main", Status: repository.CredentialActive,
	}))

	res, err := svc.Place(ctx, PlaceRequest{
		AgentID: a.ID, Side: repository.SideSell, Type: repository.TypeMarket, Qty: 1e6, MarkCents: 100_000,
	})
	require.NoError(t, err)
	require.Equal(t, repository.OrderOpen, res.Order.Status)

	require.NoError(t, svc.Cancel(ctx, res.Order.ID))
	got, err := svc.Orders.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	require.Equal(t, repository.OrderCanceled, got.Status)

	// second cancel is a no-op, not an error
	require.NoError(t, svc.Cancel(ctx, res.Order.ID))

	require.Error(t, svc.Cancel(ctx, "missing-id"))
}
