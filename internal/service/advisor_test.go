package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvist/tradefarm/internal/database/repository"
)

func TestAdvisorRepliesAreDeterministic(t *testing.T) {
	t.Parallel()
	snap := Snapshot{RunningAgents: 2, TotalAgents: 3, OpenOrders: 4, NetUnrealizedCents: 12_50}

	first := Advisor{}.Ask("how is pnl today?", snap)
	second := Advisor{}.Ask("how is pnl today?", snap)
	require.Equal(t, first, second)
}

func TestAdvisorRoutesByTopic(t *testing.T) {
	t.Parallel()
	worst := &repository.Position{Symbol: "ETH-USDT", Qty: 1e8, AvgEntryCents: 3_500_00, MarkCents: 3_400_00}
	snap := Snapshot{
		RunningAgents:      2,
		TotalAgents:        3,
		OpenOrders:         4,
		RejectedToday:      1,
		NetUnrealizedCents: -100_00,
		WorstPosition:      worst,
		Currency:           "$",
	}

	reply := Advisor{}.Ask("what's our PnL?", snap)
	require.Contains(t, reply, "under water")
	require.Contains(t, reply, "ETH-USDT")

	reply = Advisor{}.Ask("any risk I should know about?", snap)
	require.Contains(t, reply, "Rejections today: 1")

	reply = Advisor{}.Ask("are the agents ok", snap)
	require.Contains(t, reply, "2 of 3 agents")

	reply = Advisor{}.Ask("open orders?", snap)
	require.Contains(t, reply, "4 open orders")

	reply = Advisor{}.Ask("hello", snap)
	require.Contains(t, reply, "Hello")

	// anything else falls back to the status summary
	reply = Advisor{}.Ask("what is the meaning of life", snap)
	require.Contains(t, reply, "2/3 agents running")
}

func TestAdvisorDefaultsCurrency(t *testing.T) {
	t.Parallel()
	reply := Advisor{}.Ask("pnl", Snapshot{NetUnrealizedCents: 100})
	require.Contains(t, reply, "$1.00")
}
