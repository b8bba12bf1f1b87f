package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kvist/tradefarm/internal/database/repository"
)

// OrderService validates and records orders. Live routing is out of scope;
// dry-run agents get a simulated fill so the rest of the system (fills,
// positions, P&L) behaves exactly as it would against a real venue.
type OrderService struct {
	Orders      *repository.OrderRepo
	Agents      *repository.AgentRepo
	Credentials *repository.CredentialRepo
	Positions   *PositionService

	SlippageBps int64
	FeeBps      int64
}

// PlaceRequest describes an order ticket.
type PlaceRequest struct {
	AgentID         string
	Symbol          string // empty = agent's configured symbol
	Side            string
	Type            string
	Qty             int64 // units x1e8
	LimitPriceCents *int64
	MarkCents       int64 // current mark; prices market orders and the notional check
}

// PlaceResult reports the stored order and, for dry-run agents, the
// simulated fill. A rejected order is a normal outcome, not an error:
// it is persisted with status "rejected" and a reason.
type PlaceResult struct {
	Order repository.Order
	Fill  *repository.Fill
}

// Place runs the risk checks and records the order.
func (s *OrderService) Place(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
	agent, err := s.Agents.Get(ctx, req.AgentID)
	if err != nil {
		return PlaceResult{}, err
	}
	if agent == nil {
		return PlaceResult{}, fmt.Errorf("agent %s not found", req.AgentID)
	}

	symbol := req.Symbol
	if symbol == "" {
		symbol = agent.Symbol
	}
	now := time.Now().UTC()
	order := repository.Order{
		ID:              uuid.NewString(),
		AgentID:         agent.ID,
		Symbol:          symbol,
		Side:            req.Side,
		Type:            req.Type,
		Qty:             req.Qty,
		LimitPriceCents: req.LimitPriceCents,
		Status:          repository.OrderOpen,
		DryRun:          agent.Mode == repository.ModeDryRun,
		PlacedAt:        now,
	}

	if reason := s.riskCheck(ctx, *agent, req); reason != "" {
		order.Status = repository.OrderRejected
		order.Reason = &reason
		if err := s.Orders.Insert(ctx, order); err != nil {
			return PlaceResult{}, err
		}
		return PlaceResult{Order: order}, nil
	}

	if err := s.Orders.Insert(ctx, order); err != nil {
		return PlaceResult{}, err
	}

	if !order.DryRun {
		// Live orders stay open; execution reports arrive from the venue.
		return PlaceResult{Order: order}, nil
	}

	fill, err := s.simulateFill(ctx, order, req.MarkCents)
	if err != nil {
		return PlaceResult{}, err
	}
	order.Status = repository.OrderFilled
	order.FilledAt = &fill.ExecutedAt
	return PlaceResult{Order: order, Fill: &fill}, nil
}

// riskCheck returns a rejection reason, or "" when the ticket passes.
func (s *OrderService) riskCheck(ctx context.Context, agent repository.Agent, req PlaceRequest) string {
	if req.Qty <= 0 {
		return "qty must be positive"
	}
	if req.Side != repository.SideBuy && req.Side != repository.SideSell {
		return fmt.Sprintf("unknown side %q", req.Side)
	}
	switch req.Type {
	case repository.TypeLimit:
		if req.LimitPriceCents == nil || *req.LimitPriceCents <= 0 {
			return "limit order needs a positive limit price"
		}
	case repository.TypeMarket:
		if req.MarkCents <= 0 {
			return "market order needs a mark price"
		}
	default:
		return fmt.Sprintf("unknown order type %q", req.Type)
	}
	if agent.Status != repository.AgentRunning {
		return fmt.Sprintf("agent is %s", agent.Status)
	}

	price := req.MarkCents
	if req.Type == repository.TypeLimit {
		price = *req.LimitPriceCents
	}
	notional := req.Qty * price / 1e8
	open, err := s.Orders.OpenNotionalCents(ctx, agent.ID, req.MarkCents)
	if err != nil {
		return fmt.Sprintf("notional check failed: %v", err)
	}
	if agent.MaxNotionalCents > 0 && open+notional > agent.MaxNotionalCents {
		return fmt.Sprintf("max notional exceeded (%d + %d > %d cents)", open, notional, agent.MaxNotionalCents)
	}

	if agent.Mode == repository.ModeLive {
		cred, err := s.Credentials.ActiveForExchange(ctx, agent.Exchange)
		if err != nil {
			return fmt.Sprintf("credential check failed: %v", err)
		}
		if cred == nil {
			return fmt.Sprintf("no active credential for %s", agent.Exchange)
		}
	}
	return ""
}

// simulateFill executes a dry-run order immediately: limit orders at the
// limit price, market orders at the mark moved adversely by SlippageBps.
// Deterministic on purpose; this is explicit simulation, not a pretend venue.
func (s *OrderService) simulateFill(ctx context.Context, order repository.Order, markCents int64) (repository.Fill, error) {
	price := markCents
	if order.Type == repository.TypeLimit {
		price = *order.LimitPriceCents
	} else {
		slip := price * s.SlippageBps / 10_000
		if order.Side == repository.SideBuy {
			price += slip
		} else {
			price -= slip
		}
	}

	notional := order.Qty * price / 1e8
	fill := repository.Fill{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		Qty:        order.Qty,
		PriceCents: price,
		FeeCents:   notional * s.FeeBps / 10_000,
		ExecutedAt: time.Now().UTC(),
	}
	if err := s.Orders.InsertFill(ctx, fill); err != nil {
		return repository.Fill{}, err
	}
	if err := s.Orders.MarkFilled(ctx, order.ID, fill.ExecutedAt); err != nil {
		return repository.Fill{}, err
	}
	if s.Positions != nil {
		if err := s.Positions.ApplyFill(ctx, order.AgentID, order.Symbol, order.Side, fill.Qty, fill.PriceCents); err != nil {
			return repository.Fill{}, err
		}
	}
	return fill, nil
}

// Cancel moves an open order to canceled. Canceling anything else is a
// silent no-op so repeated keypresses stay idempotent.
func (s *OrderService) Cancel(ctx context.Context, id string) error {
	order, err := s.Orders.Get(ctx, id)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("order %s not found", id)
	}
	if order.Status != repository.OrderOpen {
		return nil
	}
	reason := "canceled by operator"
	return s.Orders.UpdateStatus(ctx, id, repository.OrderCanceled, &reason)
}
