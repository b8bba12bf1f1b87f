package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/kvist/tradefarm/internal/database/repository"
)

// PositionService maintains per-agent net positions from fills and derives
// unrealized P&L. Realized P&L accounting is out of scope.
type PositionService struct {
	Positions *repository.PositionRepo
}

// ApplyFill folds one execution into the agent's position for the symbol.
// Adding to a position (or opening one) moves the average entry to the
// quantity-weighted price; reducing keeps it; flipping through zero
// restarts the position at the fill price.
func (s *PositionService) ApplyFill(ctx context.Context, agentID, symbol, side string, qty, priceCents int64) error {
	pos, err := s.Positions.GetByAgentSymbol(ctx, agentID, symbol)
	if err != nil {
		return err
	}
	if pos == nil {
		pos = &repository.Position{
			ID:      uuid.NewString(),
			AgentID: agentID,
			Symbol:  symbol,
		}
	}

	delta := qty
	if side == repository.SideSell {
		delta = -qty
	}

	prev := pos.Qty
	next := prev + delta
	switch {
	case prev == 0 || sameSign(prev, delta):
		// opening or adding: weighted average entry
		pos.AvgEntryCents = weightedAvg(prev, pos.AvgEntryCents, delta, priceCents)
	case sameSign(prev, next) || next == 0:
		// reducing toward zero: entry unchanged
	default:
		// flipped through zero: the remainder opens at the fill price
		pos.AvgEntryCents = priceCents
	}
	pos.Qty = next
	pos.MarkCents = priceCents
	return s.Positions.Upsert(ctx, *pos)
}

// MarkToMarket updates marks for the given symbols across all agents.
func (s *PositionService) MarkToMarket(ctx context.Context, marks map[string]int64) error {
	for symbol, mark := range marks {
		if err := s.Positions.UpdateMark(ctx, symbol, mark); err != nil {
			return err
		}
	}
	return nil
}

// UnrealizedCents derives open P&L from mark versus average entry.
func UnrealizedCents(p repository.Position) int64 {
	return (p.MarkCents - p.AvgEntryCents) * p.Qty / 1e8
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func weightedAvg(q0, p0, q1, p1 int64) int64 {
	a0, a1 := abs64(q0), abs64(q1)
	if a0+a1 == 0 {
		return 0
	}
	return (a0*p0 + a1*p1) / (a0 + a1)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
