package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kvist/tradefarm/internal/database/repository"
)

// WorkflowService runs named maintenance steps sequentially. A step that
// fails marks the workflow failed and stops the run; nothing is rolled
// back because every step is independently idempotent.
type WorkflowService struct {
	Workflows *repository.WorkflowRepo
	Orders    *repository.OrderRepo
	Agents    *repository.AgentRepo
	Positions *repository.PositionRepo
}

// Step names accepted in a workflow's steps list.
const (
	StepRefreshMarks     = "refresh-marks"
	StepPauseStaleAgents = "pause-stale-agents"
	StepRepriceLimits    = "reprice-open-limits"
)

// Run executes the workflow's steps in order, recording status transitions.
func (s *WorkflowService) Run(ctx context.Context, id string) error {
	wf, err := s.Workflows.Get(ctx, id)
	if err != nil {
		return err
	}
	if wf == nil {
		return fmt.Errorf("workflow %s not found", id)
	}
	if err := s.Workflows.UpdateStatus(ctx, id, repository.WorkflowRunning); err != nil {
		return err
	}
	for _, step := range wf.Steps {
		if err := s.runStep(ctx, *wf, step); err != nil {
			_ = s.Workflows.MarkRun(ctx, id, repository.WorkflowFailed, time.Now().UTC())
			return fmt.Errorf("step %s: %w", step, err)
		}
	}
	return s.Workflows.MarkRun(ctx, id, repository.WorkflowDone, time.Now().UTC())
}

func (s *WorkflowService) runStep(ctx context.Context, wf repository.Workflow, step string) error {
	switch step {
	case StepRefreshMarks:
		return s.refreshMarks(ctx)
	case StepPauseStaleAgents:
		return s.pauseStaleAgents(ctx)
	case StepRepriceLimits:
		return s.repriceOpenLimits(ctx, wf.AgentID)
	default:
		return fmt.Errorf("unknown step")
	}
}

// refreshMarks moves every position's mark to the symbol's latest
// execution price. Symbols that never traded keep their mark.
func (s *WorkflowService) refreshMarks(ctx context.Context) error {
	positions, err := s.Positions.List(ctx, repository.PositionFilters{})
	if err != nil {
		return err
	}
	for _, p := range positions {
		price, err := s.Orders.LastFillPriceCents(ctx, p.Symbol)
		if err != nil {
			return err
		}
		if price == 0 {
			continue
		}
		if err := s.Positions.UpdateMark(ctx, p.Symbol, price); err != nil {
			return err
		}
	}
	return nil
}

// pauseStaleAgents pauses running agents with no open orders.
func (s *WorkflowService) pauseStaleAgents(ctx context.Context) error {
	agents, err := s.Agents.List(ctx, repository.AgentFilters{Status: repository.AgentRunning})
	if err != nil {
		return err
	}
	for _, a := range agents {
		open, err := s.Orders.List(ctx, repository.OrderFilters{AgentID: a.ID, Status: repository.OrderOpen})
		if err != nil {
			return err
		}
		if len(open) == 0 {
			if err := s.Agents.UpdateStatus(ctx, a.ID, repository.AgentPaused); err != nil {
				return err
			}
		}
	}
	return nil
}

// repriceOpenLimits moves the agent's open limit orders to the current
// position mark for their symbol.
func (s *WorkflowService) repriceOpenLimits(ctx context.Context, agentID string) error {
	open, err := s.Orders.List(ctx, repository.OrderFilters{AgentID: agentID, Status: repository.OrderOpen})
	if err != nil {
		return err
	}
	for _, o := range open {
		if o.Type != repository.TypeLimit {
			continue
		}
		pos, err := s.Positions.GetByAgentSymbol(ctx, agentID, o.Symbol)
		if err != nil {
			return err
		}
		if pos == nil || pos.MarkCents <= 0 {
			continue
		}
		if err := s.Orders.UpdateLimitPrice(ctx, o.ID, pos.MarkCents); err != nil {
			return err
		}
	}
	return nil
}
