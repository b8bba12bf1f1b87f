package service

import (
	"fmt"
	"strings"

	"github.com/kvist/tradefarm/internal/database/repository"
)

// Advisor backs the chat panel. Replies are canned and composed from the
// current farm snapshot; the original system only ever mocked its AI
// responses, and this keeps that behavior explicit and deterministic.
// Perceived latency is the TUI's job (it delays delivery with a tick).
type Advisor struct{}

// Snapshot is the farm state an answer is composed from.
type Snapshot struct {
	RunningAgents      int
	TotalAgents        int
	OpenOrders         int
	RejectedToday      int
	NetUnrealizedCents int64
	WorstPosition      *repository.Position
	Currency           string
}

// Ask returns a reply for a free-text question.
func (Advisor) Ask(question string, snap Snapshot) string {
	q := strings.ToLower(question)
	cur := snap.Currency
	if cur == "" {
		cur = "$"
	}

	switch {
	case containsAny(q, "pnl", "p&l", "profit", "loss"):
		verdict := "in the green"
		if snap.NetUnrealizedCents < 0 {
			verdict = "under water"
		}
		reply := fmt.Sprintf("Net unrealized P&L is %s%.2f across open positions — the farm is %s.",
			cur, float64(snap.NetUnrealizedCents)/100, verdict)
		if snap.WorstPosition != nil {
			reply += fmt.Sprintf(" Largest drag: %s at %s%.2f.",
				snap.WorstPosition.Symbol, cur, float64(UnrealizedCents(*snap.WorstPosition))/100)
		}
		return reply
	case containsAny(q, "risk", "exposure", "notional"):
		return fmt.Sprintf("%d open orders are consuming notional budget. Rejections today: %d. "+
			"Check per-agent max notional in the agents tab before sizing up.",
			snap.OpenOrders, snap.RejectedToday)
	case containsAny(q, "agent", "bot", "strategy"):
		return fmt.Sprintf("%d of %d agents are running. Paused agents keep their positions; "+
			"stopped agents reject new tickets.", snap.RunningAgents, snap.TotalAgents)
	case containsAny(q, "order", "ticket", "fill"):
		return fmt.Sprintf("There are %d open orders. Dry-run tickets fill immediately at the "+
			"simulated price; live tickets wait for the venue.", snap.OpenOrders)
	case containsAny(q, "hello", "hi", "hey"):
		return "Hello. Ask about P&L, risk, agents or orders."
	default:
		return fmt.Sprintf("Farm status: %d/%d agents running, %d open orders, net unrealized %s%.2f. "+
			"Ask about P&L, risk, agents or orders for detail.",
			snap.RunningAgents, snap.TotalAgents, snap.OpenOrders, cur, float64(snap.NetUnrealizedCents)/100)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
