package repository

import "time"

// Agent statuses and modes.
const (
	AgentRunning = "running"
	AgentPaused  = "paused"
	AgentStopped = "stopped"

	ModeLive   = "live"
	ModeDryRun = "dry_run"
)

// Order lifecycle.
const (
	OrderOpen     = "open"
	OrderFilled   = "filled"
	OrderCanceled = "canceled"
	OrderRejected = "rejected"

	SideBuy  = "buy"
	SideSell = "sell"

	TypeMarket = "market"
	TypeLimit  = "limit"
)

// User roles, least to most privileged.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// Credential statuses.
const (
	CredentialActive  = "active"
	CredentialRevoked = "revoked"
)

// Workflow statuses.
const (
	WorkflowIdle    = "idle"
	WorkflowRunning = "running"
	WorkflowDone    = "done"
	WorkflowFailed  = "failed"
)

// Agent represents a trading agent row.
type Agent struct {
	ID               string
	Name             string
	Strategy         string
	Exchange         string
	Symbol           string
	Status           string
	Mode             string
	MaxNotionalCents int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Credential represents an exchange credential row. SecretRef is a key
// into the secrets store; the secret itself never touches the database.
type Credential struct {
	ID        string
	Exchange  string
	Label     string
	APIKeyID  string
	SecretRef string
	Status    string
	CreatedAt time.Time
}

// Order represents an order row. Qty is in units scaled by 1e8.
type Order struct {
	ID              string
	AgentID         string
	Symbol          string
	Side            string
	Type            string
	Qty             int64
	LimitPriceCents *int64
	Status          string
	Reason          *string
	DryRun          bool
	PlacedAt        time.Time
	FilledAt        *time.Time
}

// Fill represents an execution against an order.
type Fill struct {
	ID         string
	OrderID    string
	Qty        int64
	PriceCents int64
	FeeCents   int64
	ExecutedAt time.Time
}

// Position represents the net position of one agent in one symbol.
// Unrealized P&L is derived from mark and entry, never stored.
type Position struct {
	ID            string
	AgentID       string
	Symbol        string
	Qty           int64 // signed; negative is short
	AvgEntryCents int64
	MarkCents     int64
	UpdatedAt     time.Time
}

// Wallet represents an exchange asset balance.
type Wallet struct {
	ID          string
	Exchange    string
	Asset       string
	FreeUnits   int64
	LockedUnits int64
	UpdatedAt   time.Time
}

// User represents an operator account.
type User struct {
	ID        string
	Name      string
	Role      string
	CreatedAt time.Time
}

// Workflow represents a named sequence of maintenance steps bound to an
// agent. Steps are stored as a JSON array of step names.
type Workflow struct {
	ID        string
	Name      string
	AgentID   string
	Steps     []string
	Status    string
	LastRunAt *time.Time
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}
