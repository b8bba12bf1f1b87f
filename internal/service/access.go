package service

import "github.com/kvist/tradefarm/internal/database/repository"

// Action is a gated operation.
type Action string

const (
	ActionView              Action = "view"
	ActionPlaceOrder        Action = "place_order"
	ActionCancelOrder       Action = "cancel_order"
	ActionManageAgents      Action = "manage_agents"
	ActionRunWorkflow       Action = "run_workflow"
	ActionManageCredentials Action = "manage_credentials"
	ActionReset             Action = "reset"
)

// Allowed is the single role gate: viewers read, operators trade and run
// workflows, admins additionally manage credentials and reset the farm.
func Allowed(role string, action Action) bool {
	switch role {
	case repository.RoleAdmin:
		return true
	case repository.RoleOperator:
		switch action {
		case ActionView, ActionPlaceOrder, ActionCancelOrder, ActionManageAgents, ActionRunWorkflow:
			return true
		}
		return false
	case repository.RoleViewer:
		return action == ActionView
	}
	return false
}
