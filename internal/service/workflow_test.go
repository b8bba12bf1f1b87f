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

type workflowFixture struct {
	svc       *WorkflowService
	agents    *repository.AgentRepo
	orders    *repository.OrderRepo
	positions *repository.PositionRepo
	workflows *repository.WorkflowRepo
	agent     repository.Agent
}

func setupWorkflowTest(t *testing.T) (workflowFixture, context.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.RunMigrations(dbPath))

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fx := workflowFixture{
		agents:    repository.NewAgentRepo(db),
		orders:    repository.NewOrderRepo(db),
		positions: repository.NewPositionRepo(db),
		workflows: repository.NewWorkflowRepo(db),
	}
	fx.svc = &WorkflowService{
		Workflows: fx.workflows,
		Orders:    fx.orders,
		Agents:    fx.agents,
		Positions: fx.positions,
	}
	fx.agent = repository.Agent{
		ID: uuid.NewString(), Name: "grid-btc", Strategy: "grid", Exchange: "binance",
		Symbol: "BTC-USDT", Status: repository.AgentRunning, Mode: repository.ModeDryRun,
	}
	require.NoError(t, fx.agents.Upsert(ctx, fx.agent))
	return fx, ctx
}

func (fx workflowFixture) addWorkflow(t *testing.T, ctx context.Context, steps ...string) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, fx.workflows.Upsert(ctx, repository.Workflow{
		ID: id, Name: "housekeeping", AgentID: fx.agent.ID,
		Steps: steps, Status: repository.WorkflowIdle,
	}))
	return id
}

func (fx workflowFixture) addFilledOrder(t *testing.T, ctx context.Context, priceCents int64, at time.Time) {
	t.Helper()
	orderID := uuid.NewString()
	filled := at.Add(time.Minute)
	require.NoError(t, fx.orders.Insert(ctx, repository.Order{
		ID: orderID, AgentID: fx.agent.ID, Symbol: fx.agent.Symbol,
		Side: repository.SideBuy, Type: repository.TypeMarket, Qty: 1e6,
		Status: repository.OrderFilled, DryRun: true, PlacedAt: at, FilledAt: &filled,
	}))
	require.NoError(t, fx.orders.InsertFill(ctx, repository.Fill{
		ID: uuid.NewString(), OrderID: orderID, Qty: 1e6,
		PriceCents: priceCents, ExecutedAt: filled,
	}))
}

func TestRunRefreshMarks(t *testing.T) {
	t.Parallel()
	fx, ctx := setupWorkflowTest(t)

	require.NoError(t, fx.positions.Upsert(ctx, repository.Position{
		ID: uuid.NewString(), AgentID: fx.agent.ID, Symbol: fx.agent.Symbol,
		Qty: 1e8, AvgEntryCents: 60_000_00, MarkCents: 60_000_00,
	}))
	now := time.Now().UTC()
	fx.addFilledOrder(t, ctx, 61_000_00, now.Add(-2*time.Hour))
	fx.addFilledOrder(t, ctx, 62_000_00, now.Add(-time.Hour)) // latest wins

	id := fx.addWorkflow(t, ctx, StepRefreshMarks)
	require.NoError(t, fx.svc.Run(ctx, id))

	pos, err := fx.positions.GetByAgentSymbol(ctx, fx.agent.ID, fx.agent.Symbol)
	require.NoError(t, err)
	require.Equal(t, int64(62_000_00), pos.MarkCents)

	wf, err := fx.workflows.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, repository.WorkflowDone, wf.Status)
	require.NotNil(t, wf.LastRunAt)
}

func TestRunPauseStaleAgents(t *testing.T) {
	t.Parallel()
	fx, ctx := setupWorkflowTest(t)

	// a second agent with an open order stays running
	busy := repository.Agent{
		ID: uuid.NewString(), Name: "momo-eth", Strategy: "momentum", Exchange: "binance",
		Symbol: "ETH-USDT", Status: repository.AgentRunning, Mode: repository.ModeDryRun,
	}
	require.NoError(t, fx.agents.Upsert(ctx, busy))
	require.NoError(t, fx.orders.Insert(ctx, repository.Order{
		ID: uuid.NewString(), AgentID: busy.ID, Symbol: busy.Symbol,
		Side: repository.SideBuy, Type: repository.TypeMarket, Qty: 1e6,
		Status: repository.OrderOpen, PlacedAt: time.Now().UTC(),
	}))

	id := fx.addWorkflow(t, ctx, StepPauseStaleAgents)
	require.NoError(t, fx.svc.Run(ctx, id))

	stale, err := fx.agents.Get(ctx, fx.agent.ID)
	require.NoError(t, err)
	require.Equal(t, repository.AgentPaused, stale.Status)

	kept, err := fx.agents.Get(ctx, busy.ID)
	require.NoError(t, err)
	require.Equal(t, repository.AgentRunning, kept.Status)
}

func TestRunRepriceOpenLimits(t *testing.T) {
	t.Parallel()
	fx, ctx := setupWorkflowTest(t)

	require.NoError(t, fx.positions.Upsert(ctx, repository.Position{
		ID: uuid.NewString(), AgentID: fx.agent.ID, Symbol: fx.agent.Symbol,
		Qty: 1e8, AvgEntryCents: 60_000_00, MarkCents: 65_000_00,
	}))
	stale := int64(60_000_00)
	orderID := uuid.NewString()
	require.NoError(t, fx.orders.Insert(ctx, repository.Order{
		ID: orderID, AgentID: fx.agent.ID, Symbol: fx.agent.Symbol,
		Side: repository.SideBuy, Type: repository.TypeLimit, Qty: 1e6,
		LimitPriceCents: &stale, Status: repository.OrderOpen, PlacedAt: time.Now().UTC(),
	}))

	id := fx.addWorkflow(t, ctx, StepRepriceLimits)
	require.NoError(t, fx.svc.Run(ctx, id))

	got, err := fx.orders.Get(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, int64(65_000_00), *got.LimitPriceCents)
}

func TestRunUnknownStepFailsWorkflow(t *testing.T) {
	t.Parallel()
	fx, ctx := setupWorkflowTest(t)

	id := fx.addWorkflow(t, ctx, StepRefreshMarks, "defragment-disks")
	require.Error(t, fx.svc.Run(ctx, id))

	wf, err := fx.workflows.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, repository.WorkflowFailed, wf.Status)
}

func TestRunMissingWorkflow(t *testing.T) {
	t.Parallel()
	fx, ctx := setupWorkflowTest(t)
	require.Error(t, fx.svc.Run(ctx, "nope"))
}
