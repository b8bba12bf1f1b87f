package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/kvist/tradefarm/internal/config"
	"github.com/kvist/tradefarm/internal/database/repository"
	"github.com/kvist/tradefarm/internal/secrets"
	"github.com/kvist/tradefarm/internal/service"
	"github.com/kvist/tradefarm/internal/tableview"
	"github.com/kvist/tradefarm/internal/tui/widgets"
)

// App ties together tabs.
type App struct {
	ctx      context.Context
	repos    Repos
	services Services
	cfg      config.Config
	user     repository.User
	state    appState
	status   string
	modal    modalState
	currency string

	agents    *tableview.View[repository.Agent]
	orders    *tableview.View[repository.Order]
	positions *tableview.View[repository.Position]
	wallets   *tableview.View[repository.Wallet]
	workflows *tableview.View[repository.Workflow]

	agentName   map[string]string // id -> name
	credentials []repository.Credential

	// raw row sets, for dashboard aggregates that ignore table state
	rawAgents    []repository.Agent
	rawOrders    []repository.Order
	rawPositions []repository.Position

	cursor       int // row cursor within the current page
	colCursor    int // column cursor for sort and filter targeting
	pickerCursor int
	credCursor   int
	filterTarget string
	cancelingID  string

	ticket ticketForm
	cred   credForm

	filterInput  textinput.Model
	chatInput    textinput.Model
	chat         []chatLine
	chatThinking bool

	lookupInput   textinput.Model
	lookupMatches []service.Match
	lookupCursor  int
}

type Repos struct {
	Agents      *repository.AgentRepo
	Orders      *repository.OrderRepo
	Positions   *repository.PositionRepo
	Wallets     *repository.WalletRepo
	Credentials *repository.CredentialRepo
	Workflows   *repository.WorkflowRepo
}

type Services struct {
	Orders      *service.OrderService
	Positions   *service.PositionService
	Workflows   *service.WorkflowService
	Lookup      *service.LookupService
	Advisor     service.Advisor
	Maintenance *service.MaintenanceService
}

type appState string

const (
	viewDashboard appState = "dashboard"
	viewAgents    appState = "agents"
	viewOrders    appState = "orders"
	viewPositions appState = "positions"
	viewWallets   appState = "wallets"
	viewWorkflows appState = "workflows"
	viewSettings  appState = "settings"
)

var tabOrder = []appState{
	viewDashboard, viewAgents, viewOrders, viewPositions,
	viewWallets, viewWorkflows, viewSettings,
}

type modalState string

const (
	modalNone          modalState = ""
	modalFilter        modalState = "filter"
	modalColumnPicker  modalState = "columnPicker"
	modalOrderTicket   modalState = "orderTicket"
	modalConfirmCancel modalState = "confirmCancel"
	modalNewCredential modalState = "newCredential"
	modalConfirmReset  modalState = "confirmReset"
	modalAdvisor       modalState = "advisor"
	modalLookup        modalState = "lookup"
)

// ticketForm is the order entry modal state.
type ticketForm struct {
	agent repository.Agent
	side  string
	typ   string
	qty   string // units, decimal text
	limit string // price in display currency, decimal text
	field int    // 0 qty, 1 limit
}

// credForm is the new-credential modal state.
type credForm struct {
	exchange string
	label    string
	keyID    string
	secret   string
	field    int
}

type chatLine struct {
	fromUser bool
	text     string
}

func New(ctx context.Context, cfg config.Config, user repository.User, repos Repos, services Services) (*App, error) {
	a := &App{
		ctx:      ctx,
		repos:    repos,
		services: services,
		cfg:      cfg,
		user:     user,
		state:    viewDashboard,
		currency: cfg.UI.CurrencySymbol,
	}
	a.filterInput = textinput.New()
	a.filterInput.Prompt = "> "
	a.lookupInput = textinput.New()
	a.lookupInput.Prompt = "> "
	a.chatInput = textinput.New()
	a.chatInput.Prompt = "> "

	size := cfg.UI.PageSize
	var err error
	a.agents, err = tableview.New(a.agentColumns(), nil,
		tableview.WithPageSize[repository.Agent](size),
		tableview.WithRowKey(func(r repository.Agent) string { return r.ID }))
	if err != nil {
		return nil, err
	}
	a.orders, err = tableview.New(a.orderColumns(), nil,
		tableview.WithPageSize[repository.Order](size),
		tableview.WithSort[repository.Order]("placed", tableview.DirDesc),
		tableview.WithRowKey(func(r repository.Order) string { return r.ID }))
	if err != nil {
		return nil, err
	}
	a.positions, err = tableview.New(a.positionColumns(), nil,
		tableview.WithPageSize[repository.Position](size),
		tableview.WithRowKey(func(r repository.Position) string { return r.ID }))
	if err != nil {
		return nil, err
	}
	a.wallets, err = tableview.New(a.walletColumns(), nil,
		tableview.WithPageSize[repository.Wallet](size),
		tableview.WithRowKey(func(r repository.Wallet) string { return r.ID }))
	if err != nil {
		return nil, err
	}
	a.workflows, err = tableview.New(a.workflowColumns(), nil,
		tableview.WithPageSize[repository.Workflow](size),
		tableview.WithRowKey(func(r repository.Workflow) string { return r.ID }))
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadAgents(), a.loadOrders(), a.loadPositions(),
		a.loadWallets(), a.loadWorkflows(), a.loadCredentials())
}

// ---------------------------------------------------------------------------
// column sets
// ---------------------------------------------------------------------------

func (a *App) agentColumns() []tableview.Column[repository.Agent] {
	return []tableview.Column[repository.Agent]{
		{Key: "name", Title: "Name", Sortable: true, Accessor: func(r repository.Agent) any { return r.Name }},
		{Key: "strategy", Title: "Strategy", Sortable: true, Accessor: func(r repository.Agent) any { return r.Strategy }},
		{Key: "exchange", Title: "Exchange", Sortable: true, Accessor: func(r repository.Agent) any { return r.Exchange }},
		{Key: "symbol", Title: "Symbol", Sortable: true, Accessor: func(r repository.Agent) any { return r.Symbol }},
		{Key: "status", Title: "Status", Sortable: true, Accessor: func(r repository.Agent) any { return r.Status }},
		{Key: "mode", Title: "Mode", Sortable: true, Accessor: func(r repository.Agent) any { return r.Mode }},
		{Key: "max_notional", Title: "Max Notional", Sortable: true,
			Accessor: func(r repository.Agent) any { return r.MaxNotionalCents },
			Render:   func(r repository.Agent) string { return a.money(r.MaxNotionalCents) }},
	}
}

func (a *App) orderColumns() []tableview.Column[repository.Order] {
	return []tableview.Column[repository.Order]{
		{Key: "placed", Title: "Placed", Sortable: true,
			Accessor: func(r repository.Order) any { return r.PlacedAt },
			Render:   func(r repository.Order) string { return r.PlacedAt.Format("01-02 15:04") }},
		{Key: "agent", Title: "Agent", Sortable: true,
			Accessor: func(r repository.Order) any { return a.agentName[r.AgentID] }},
		{Key: "symbol", Title: "Symbol", Sortable: true, Accessor: func(r repository.Order) any { return r.Symbol }},
		{Key: "side", Title: "Side", Sortable: true, Accessor: func(r repository.Order) any { return r.Side }},
		{Key: "type", Title: "Type", Sortable: true, Accessor: func(r repository.Order) any { return r.Type }},
		{Key: "qty", Title: "Qty", Sortable: true,
			Accessor: func(r repository.Order) any { return r.Qty },
			Render:   func(r repository.Order) string { return fmtUnits(r.Qty) }},
		{Key: "limit", Title: "Limit", Sortable: true,
			Accessor: func(r repository.Order) any {
				if r.LimitPriceCents == nil {
					return nil
				}
				return *r.LimitPriceCents
			},
			Render: func(r repository.Order) string {
				if r.LimitPriceCents == nil {
					return "-"
				}
				return a.money(*r.LimitPriceCents)
			}},
		{Key: "status", Title: "Status", Sortable: true, Accessor: func(r repository.Order) any { return r.Status }},
		{Key: "reason", Title: "Reason", Hidden: true,
			Accessor: func(r repository.Order) any {
				if r.Reason == nil {
					return nil
				}
				return *r.Reason
			}},
	}
}

func (a *App) positionColumns() []tableview.Column[repository.Position] {
	return []tableview.Column[repository.Position]{
		{Key: "agent", Title: "Agent", Sortable: true,
			Accessor: func(r repository.Position) any { return a.agentName[r.AgentID] }},
		{Key: "symbol", Title: "Symbol", Sortable: true, Accessor: func(r repository.Position) any { return r.Symbol }},
		{Key: "qty", Title: "Qty", Sortable: true,
			Accessor: func(r repository.Position) any { return r.Qty },
			Render:   func(r repository.Position) string { return fmtUnits(r.Qty) }},
		{Key: "entry", Title: "Avg Entry", Sortable: true,
			Accessor: func(r repository.Position) any { return r.AvgEntryCents },
			Render:   func(r repository.Position) string { return a.money(r.AvgEntryCents) }},
		{Key: "mark", Title: "Mark", Sortable: true,
			Accessor: func(r repository.Position) any { return r.MarkCents },
			Render:   func(r repository.Position) string { return a.money(r.MarkCents) }},
		{Key: "upnl", Title: "Unrealized", Sortable: true,
			Accessor: func(r repository.Position) any { return service.UnrealizedCents(r) },
			Render:   func(r repository.Position) string { return a.money(service.UnrealizedCents(r)) }},
	}
}

func (a *App) walletColumns() []tableview.Column[repository.Wallet] {
	return []tableview.Column[repository.Wallet]{
		{Key: "exchange", Title: "Exchange", Sortable: true, Accessor: func(r repository.Wallet) any { return r.Exchange }},
		{Key: "asset", Title: "Asset", Sortable: true, Accessor: func(r repository.Wallet) any { return r.Asset }},
		{Key: "free", Title: "Free", Sortable: true,
			Accessor: func(r repository.Wallet) any { return r.FreeUnits },
			Render:   func(r repository.Wallet) string { return fmtUnits(r.FreeUnits) }},
		{Key: "locked", Title: "Locked", Sortable: true,
			Accessor: func(r repository.Wallet) any { return r.LockedUnits },
			Render:   func(r repository.Wallet) string { return fmtUnits(r.LockedUnits) }},
		{Key: "updated", Title: "Updated", Sortable: true, Hidden: true,
			Accessor: func(r repository.Wallet) any { return r.UpdatedAt },
			Render:   func(r repository.Wallet) string { return r.UpdatedAt.Format("01-02 15:04") }},
	}
}

func (a *App) workflowColumns() []tableview.Column[repository.Workflow] {
	return []tableview.Column[repository.Workflow]{
		{Key: "name", Title: "Name", Sortable: true, Accessor: func(r repository.Workflow) any { return r.Name }},
		{Key: "agent", Title: "Agent", Sortable: true,
			Accessor: func(r repository.Workflow) any { return a.agentName[r.AgentID] }},
		{Key: "steps", Title: "Steps",
			Accessor: func(r repository.Workflow) any { return strings.Join(r.Steps, ",") }},
		{Key: "status", Title: "Status", Sortable: true, Accessor: func(r repository.Workflow) any { return r.Status }},
		{Key: "last_run", Title: "Last Run", Sortable: true,
			Accessor: func(r repository.Workflow) any {
				if r.LastRunAt == nil {
					return nil
				}
				return *r.LastRunAt
			},
			Render: func(r repository.Workflow) string {
				if r.LastRunAt == nil {
					return "never"
				}
				return r.LastRunAt.Format("01-02 15:04")
			}},
	}
}

// ---------------------------------------------------------------------------
// load commands
// ---------------------------------------------------------------------------

func (a *App) loadAgents() tea.Cmd {
	return func() tea.Msg {
		list, err := a.repos.Agents.List(a.ctx, repository.AgentFilters{})
		if err != nil {
			return errMsg{err}
		}
		return agentsMsg(list)
	}
}

func (a *App) loadOrders() tea.Cmd {
	return func() tea.Msg {
		list, err := a.repos.Orders.List(a.ctx, repository.OrderFilters{})
		if err != nil {
			return errMsg{err}
		}
		return ordersMsg(list)
	}
}

func (a *App) loadPositions() tea.Cmd {
	return func() tea.Msg {
		list, err := a.repos.Positions.List(a.ctx, repository.PositionFilters{})
		if err != nil {
			return errMsg{err}
		}
		return positionsMsg(list)
	}
}

func (a *App) loadWallets() tea.Cmd {
	return func() tea.Msg {
		list, err := a.repos.Wallets.List(a.ctx, repository.WalletFilters{})
		if err != nil {
			return errMsg{err}
		}
		return walletsMsg(list)
	}
}

func (a *App) loadWorkflows() tea.Cmd {
	return func() tea.Msg {
		list, err := a.repos.Workflows.List(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return workflowsMsg(list)
	}
}

func (a *App) loadCredentials() tea.Cmd {
	return func() tea.Msg {
		list, err := a.repos.Credentials.List(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return credentialsMsg(list)
	}
}

// ---------------------------------------------------------------------------
// update
// ---------------------------------------------------------------------------

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		return a.handleKey(m)
	case agentsMsg:
		a.rawAgents = []repository.Agent(m)
		a.agents.SetRows(a.rawAgents)
		a.agentName = make(map[string]string, len(m))
		for _, ag := range m {
			a.agentName[ag.ID] = ag.Name
		}
		a.clampCursor()
	case ordersMsg:
		a.rawOrders = []repository.Order(m)
		a.orders.SetRows(a.rawOrders)
		a.clampCursor()
	case positionsMsg:
		a.rawPositions = []repository.Position(m)
		a.positions.SetRows(a.rawPositions)
		a.clampCursor()
	case walletsMsg:
		a.wallets.SetRows([]repository.Wallet(m))
		a.clampCursor()
	case workflowsMsg:
		a.workflows.SetRows([]repository.Workflow(m))
		a.clampCursor()
	case credentialsMsg:
		a.credentials = []repository.Credential(m)
		if a.credCursor >= len(a.credentials) {
			a.credCursor = 0
		}
	case statusMsg:
		a.status = string(m)
	case errMsg:
		a.status = "error: " + m.Error()
	case advisorPendingMsg:
		// hold the reply briefly so the chat reads like a remote service
		reply := m.reply
		return a, tea.Tick(600*time.Millisecond, func(time.Time) tea.Msg {
			return advisorMsg{reply: reply}
		})
	case advisorMsg:
		a.chatThinking = false
		a.chat = append(a.chat, chatLine{text: m.reply})
	case lookupMsg:
		a.lookupMatches = []service.Match(m)
		a.lookupCursor = 0
		if len(a.lookupMatches) == 0 {
			a.status = "no matches"
		}
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "tab":
		a.switchTab(1)
		return a, nil
	case "shift+tab":
		a.switchTab(-1)
		return a, nil
	case "1", "2", "3", "4", "5", "6", "7":
		n, _ := strconv.Atoi(m.String())
		a.setTab(tabOrder[n-1])
		return a, nil
	case "?":
		a.modal = modalAdvisor
		a.chatInput.SetValue("")
		a.chatInput.Focus()
		return a, nil
	case "g":
		a.modal = modalLookup
		a.lookupInput.SetValue("")
		a.lookupInput.Focus()
		a.lookupMatches = nil
		a.lookupCursor = 0
		return a, nil
	}

	if a.state == viewSettings {
		return a.handleSettingsKey(m)
	}
	if a.state == viewDashboard {
		return a, nil
	}
	return a.handleTableKey(m)
}

func (a *App) handleTableKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	tv := a.currentTable()
	keys := a.visibleKeys()

	switch m.String() {
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < a.currentRowCount()-1 {
			a.cursor++
		}
	case "left":
		if a.colCursor > 0 {
			a.colCursor--
		}
	case "right":
		if a.colCursor < len(keys)-1 {
			a.colCursor++
		}
	case "s":
		if len(keys) > 0 {
			if a.colCursor >= len(keys) {
				a.colCursor = 0
			}
			tv.ToggleSort(keys[a.colCursor])
			a.cursor = 0
		}
	case "/":
		if len(keys) > 0 {
			if a.colCursor >= len(keys) {
				a.colCursor = 0
			}
			a.filterTarget = keys[a.colCursor]
			_, needle := tv.Filter()
			a.filterInput.SetValue(needle)
			a.filterInput.Focus()
			a.modal = modalFilter
		}
	case "esc":
		tv.SetFilter("", "")
		a.cursor = 0
	case "h":
		a.pickerCursor = 0
		a.modal = modalColumnPicker
	case "[":
		tv.PrevPage()
		a.cursor = 0
	case "]":
		tv.NextPage()
		a.cursor = 0
	case "+":
		tv.SetPageSize(tv.PageSize() + 1)
		a.cursor = 0
	case "-":
		tv.SetPageSize(tv.PageSize() - 1)
		a.cursor = 0
	case " ":
		tv.ToggleSelectAt(a.cursor)
	case "C":
		tv.ClearSelection()
	case "enter":
		switch a.state {
		case viewAgents:
			return a.toggleAgent()
		case viewWorkflows:
			return a.runWorkflow()
		}
	case "t":
		if a.state == viewAgents {
			a.openTicket()
		}
	case "x":
		if a.state == viewOrders {
			a.openCancel()
		}
	}
	return a, nil
}

func (a *App) handleSettingsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "up", "k":
		if a.credCursor > 0 {
			a.credCursor--
		}
	case "down", "j":
		if a.credCursor < len(a.credentials)-1 {
			a.credCursor++
		}
	case "n":
		if !a.allow(service.ActionManageCredentials) {
			return a, nil
		}
		a.cred = credForm{}
		a.modal = modalNewCredential
	case "r":
		if !a.allow(service.ActionManageCredentials) {
			return a, nil
		}
		if len(a.credentials) == 0 {
			return a, nil
		}
		c := a.credentials[a.credCursor]
		return a, a.revokeCredentialCmd(c)
	case "x":
		if !a.allow(service.ActionReset) {
			return a, nil
		}
		a.modal = modalConfirmReset
	case "+":
		return a, a.savePageSizeCmd(a.cfg.UI.PageSize + 1)
	case "-":
		return a, a.savePageSizeCmd(a.cfg.UI.PageSize - 1)
	}
	return a, nil
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.modal {
	case modalFilter:
		switch m.Type {
		case tea.KeyEsc:
			a.modal = modalNone
			a.filterInput.Blur()
		case tea.KeyEnter:
			a.currentTable().SetFilter(a.filterTarget, strings.TrimSpace(a.filterInput.Value()))
			a.modal = modalNone
			a.filterInput.Blur()
			a.cursor = 0
		default:
			var cmd tea.Cmd
			a.filterInput, cmd = a.filterInput.Update(m)
			return a, cmd
		}
	case modalColumnPicker:
		cols := a.allColumns()
		switch m.String() {
		case "esc", "h":
			a.modal = modalNone
		case "up", "k":
			if a.pickerCursor > 0 {
				a.pickerCursor--
			}
		case "down", "j":
			if a.pickerCursor < len(cols)-1 {
				a.pickerCursor++
			}
		case " ", "enter":
			if a.pickerCursor < len(cols) {
				a.currentTable().ToggleColumn(cols[a.pickerCursor].key)
				if a.colCursor >= len(a.visibleKeys()) {
					a.colCursor = 0
				}
			}
		}
	case modalOrderTicket:
		return a.handleTicketKey(m)
	case modalConfirmCancel:
		switch m.String() {
		case "y", "Y":
			id := a.cancelingID
			a.modal = modalNone
			return a, a.cancelOrderCmd(id)
		case "n", "N", "esc":
			a.modal = modalNone
		}
	case modalNewCredential:
		return a.handleCredKey(m)
	case modalConfirmReset:
		switch m.String() {
		case "y", "Y":
			a.modal = modalNone
			return a, a.resetCmd()
		case "n", "N", "esc":
			a.modal = modalNone
		}
	case modalLookup:
		switch m.Type {
		case tea.KeyEsc:
			a.modal = modalNone
			a.lookupInput.Blur()
		case tea.KeyUp:
			if a.lookupCursor > 0 {
				a.lookupCursor--
			}
		case tea.KeyDown:
			if a.lookupCursor < len(a.lookupMatches)-1 {
				a.lookupCursor++
			}
		case tea.KeyEnter:
			if len(a.lookupMatches) == 0 {
				q := strings.TrimSpace(a.lookupInput.Value())
				if q == "" {
					return a, nil
				}
				return a, a.lookupCmd(q)
			}
			a.jumpTo(a.lookupMatches[a.lookupCursor])
		default:
			before := a.lookupInput.Value()
			var cmd tea.Cmd
			a.lookupInput, cmd = a.lookupInput.Update(m)
			if a.lookupInput.Value() != before {
				a.lookupMatches = nil
			}
			return a, cmd
		}
	case modalAdvisor:
		switch m.Type {
		case tea.KeyEsc:
			a.modal = modalNone
			a.chatInput.Blur()
		case tea.KeyEnter:
			q := strings.TrimSpace(a.chatInput.Value())
			if q == "" || a.chatThinking {
				return a, nil
			}
			a.chat = append(a.chat, chatLine{fromUser: true, text: q})
			a.chatInput.SetValue("")
			a.chatThinking = true
			return a, a.askAdvisorCmd(q)
		default:
			var cmd tea.Cmd
			a.chatInput, cmd = a.chatInput.Update(m)
			return a, cmd
		}
	}
	return a, nil
}

func (a *App) handleTicketKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.modal = modalNone
		return a, nil
	case "tab":
		a.ticket.field = (a.ticket.field + 1) % 2
		return a, nil
	case "ctrl+s":
		if a.ticket.side == repository.SideBuy {
			a.ticket.side = repository.SideSell
		} else {
			a.ticket.side = repository.SideBuy
		}
		return a, nil
	case "ctrl+t":
		if a.ticket.typ == repository.TypeMarket {
			a.ticket.typ = repository.TypeLimit
		} else {
			a.ticket.typ = repository.TypeMarket
		}
		return a, nil
	}
	switch m.Type {
	case tea.KeyEnter:
		a.modal = modalNone
		return a, a.placeOrderCmd(a.ticket)
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		if a.ticket.field == 0 {
			a.ticket.qty = trimLast(a.ticket.qty)
		} else {
			a.ticket.limit = trimLast(a.ticket.limit)
		}
	case tea.KeyRunes:
		if a.ticket.field == 0 {
			a.ticket.qty += string(m.Runes)
		} else {
			a.ticket.limit += string(m.Runes)
		}
	}
	return a, nil
}

func (a *App) handleCredKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.modal = modalNone
		return a, nil
	case "tab":
		a.cred.field = (a.cred.field + 1) % 4
		return a, nil
	}
	field := []*string{&a.cred.exchange, &a.cred.label, &a.cred.keyID, &a.cred.secret}[a.cred.field]
	switch m.Type {
	case tea.KeyEnter:
		a.modal = modalNone
		return a, a.saveCredentialCmd(a.cred)
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		*field = trimLast(*field)
	case tea.KeySpace:
		*field += " "
	case tea.KeyRunes:
		*field += string(m.Runes)
	}
	return a, nil
}

// ---------------------------------------------------------------------------
// actions
// ---------------------------------------------------------------------------

func (a *App) allow(action service.Action) bool {
	if service.Allowed(a.user.Role, action) {
		return true
	}
	a.status = fmt.Sprintf("%s is not allowed for role %s", action, a.user.Role)
	return false
}

func (a *App) toggleAgent() (tea.Model, tea.Cmd) {
	if !a.allow(service.ActionManageAgents) {
		return a, nil
	}
	rows := a.agents.Rows()
	if a.cursor >= len(rows) {
		return a, nil
	}
	agent := rows[a.cursor]
	next := repository.AgentRunning
	if agent.Status == repository.AgentRunning {
		next = repository.AgentPaused
	}
	return a, tea.Batch(
		func() tea.Msg {
			if err := a.repos.Agents.UpdateStatus(a.ctx, agent.ID, next); err != nil {
				return errMsg{err}
			}
			return statusMsg(agent.Name + " is now " + next)
		},
		a.loadAgents(),
	)
}

func (a *App) openTicket() {
	if !a.allow(service.ActionPlaceOrder) {
		return
	}
	rows := a.agents.Rows()
	if a.cursor >= len(rows) {
		a.status = "no agent under cursor"
		return
	}
	a.ticket = ticketForm{
		agent: rows[a.cursor],
		side:  repository.SideBuy,
		typ:   repository.TypeLimit,
	}
	a.modal = modalOrderTicket
}

func (a *App) openCancel() {
	if !a.allow(service.ActionCancelOrder) {
		return
	}
	rows := a.orders.Rows()
	if a.cursor >= len(rows) {
		return
	}
	order := rows[a.cursor]
	if order.Status != repository.OrderOpen {
		a.status = "order is " + order.Status + ", nothing to cancel"
		return
	}
	a.cancelingID = order.ID
	a.modal = modalConfirmCancel
}

func (a *App) placeOrderCmd(t ticketForm) tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			qty, err := parseUnits(t.qty)
			if err != nil {
				return errMsg{fmt.Errorf("qty: %w", err)}
			}
			req := service.PlaceRequest{
				AgentID: t.agent.ID,
				Side:    t.side,
				Type:    t.typ,
				Qty:     qty,
			}
			if t.typ == repository.TypeLimit {
				cents, err := parseMoney(t.limit)
				if err != nil {
					return errMsg{fmt.Errorf("limit: %w", err)}
				}
				req.LimitPriceCents = &cents
			}
			mark, err := a.markFor(t.agent)
			if err != nil {
				return errMsg{err}
			}
			req.MarkCents = mark

			res, err := a.services.Orders.Place(a.ctx, req)
			if err != nil {
				return errMsg{err}
			}
			switch res.Order.Status {
			case repository.OrderRejected:
				return statusMsg("rejected: " + *res.Order.Reason)
			case repository.OrderFilled:
				return statusMsg(fmt.Sprintf("filled %s %s at %s", t.side, t.agent.Symbol, a.money(res.Fill.PriceCents)))
			default:
				return statusMsg("order placed, waiting on " + t.agent.Exchange)
			}
		},
		a.loadOrders(), a.loadPositions(),
	)
}

// markFor prices a ticket: the position mark when the agent has one, the
// symbol's last execution otherwise.
func (a *App) markFor(agent repository.Agent) (int64, error) {
	pos, err := a.repos.Positions.GetByAgentSymbol(a.ctx, agent.ID, agent.Symbol)
	if err != nil {
		return 0, err
	}
	if pos != nil && pos.MarkCents > 0 {
		return pos.MarkCents, nil
	}
	return a.repos.Orders.LastFillPriceCents(a.ctx, agent.Symbol)
}

func (a *App) cancelOrderCmd(id string) tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			if err := a.services.Orders.Cancel(a.ctx, id); err != nil {
				return errMsg{err}
			}
			return statusMsg("order canceled")
		},
		a.loadOrders(),
	)
}

func (a *App) runWorkflow() (tea.Model, tea.Cmd) {
	if !a.allow(service.ActionRunWorkflow) {
		return a, nil
	}
	rows := a.workflows.Rows()
	if a.cursor >= len(rows) {
		return a, nil
	}
	wf := rows[a.cursor]
	a.status = "running " + wf.Name + "..."
	return a, tea.Batch(
		func() tea.Msg {
			if err := a.services.Workflows.Run(a.ctx, wf.ID); err != nil {
				return errMsg{err}
			}
			return statusMsg(wf.Name + " done")
		},
		a.loadWorkflows(), a.loadAgents(), a.loadOrders(), a.loadPositions(),
	)
}

func (a *App) saveCredentialCmd(f credForm) tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			exchange := strings.TrimSpace(f.exchange)
			label := strings.TrimSpace(f.label)
			if exchange == "" || label == "" || f.keyID == "" || f.secret == "" {
				return errMsg{fmt.Errorf("all credential fields are required")}
			}
			ref := exchange + "-" + label
			if err := secrets.Store(ref, f.secret); err != nil {
				return errMsg{err}
			}
			c := repository.Credential{
				ID:        uuid.NewString(),
				Exchange:  exchange,
				Label:     label,
				APIKeyID:  strings.TrimSpace(f.keyID),
				SecretRef: ref,
				Status:    repository.CredentialActive,
			}
			if err := a.repos.Credentials.Insert(a.ctx, c); err != nil {
				return errMsg{err}
			}
			return statusMsg("credential stored for " + exchange)
		},
		a.loadCredentials(),
	)
}

func (a *App) revokeCredentialCmd(c repository.Credential) tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			if err := a.repos.Credentials.UpdateStatus(a.ctx, c.ID, repository.CredentialRevoked); err != nil {
				return errMsg{err}
			}
			_ = secrets.Delete(c.SecretRef)
			return statusMsg("revoked " + c.Exchange + "/" + c.Label)
		},
		a.loadCredentials(),
	)
}

func (a *App) resetCmd() tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			if a.services.Maintenance == nil {
				return errMsg{fmt.Errorf("maintenance not configured")}
			}
			if err := a.services.Maintenance.Reset(a.ctx); err != nil {
				return errMsg{err}
			}
			a.cursor, a.credCursor = 0, 0
			return statusMsg("database reset (empty)")
		},
		a.loadAgents(), a.loadOrders(), a.loadPositions(),
		a.loadWallets(), a.loadWorkflows(), a.loadCredentials(),
	)
}

func (a *App) savePageSizeCmd(n int) tea.Cmd {
	if n < 1 {
		n = 1
	}
	a.cfg.UI.PageSize = n
	a.agents.SetPageSize(n)
	a.orders.SetPageSize(n)
	a.positions.SetPageSize(n)
	a.wallets.SetPageSize(n)
	a.workflows.SetPageSize(n)
	a.cursor = 0
	return func() tea.Msg {
		if err := config.Save(a.cfg); err != nil {
			return errMsg{err}
		}
		return statusMsg(fmt.Sprintf("page size %d saved", n))
	}
}

func (a *App) lookupCmd(query string) tea.Cmd {
	return func() tea.Msg {
		matches, err := a.services.Lookup.Search(a.ctx, query, 8)
		if err != nil {
			return errMsg{err}
		}
		return lookupMsg(matches)
	}
}

// jumpTo routes a palette hit: agents land on the agents tab filtered by
// name, symbols on the orders tab filtered by symbol.
func (a *App) jumpTo(m service.Match) {
	a.modal = modalNone
	a.lookupInput.Blur()
	if m.Kind == "agent" {
		a.setTab(viewAgents)
		a.agents.SetFilter("name", m.Label)
		return
	}
	a.setTab(viewOrders)
	a.orders.SetFilter("symbol", m.Label)
}

func (a *App) askAdvisorCmd(question string) tea.Cmd {
	return func() tea.Msg {
		snap, err := a.snapshot()
		if err != nil {
			return errMsg{err}
		}
		return advisorPendingMsg{reply: a.services.Advisor.Ask(question, snap)}
	}
}

func (a *App) snapshot() (service.Snapshot, error) {
	agents, err := a.repos.Agents.List(a.ctx, repository.AgentFilters{})
	if err != nil {
		return service.Snapshot{}, err
	}
	running := 0
	for _, ag := range agents {
		if ag.Status == repository.AgentRunning {
			running++
		}
	}
	open, err := a.repos.Orders.List(a.ctx, repository.OrderFilters{Status: repository.OrderOpen})
	if err != nil {
		return service.Snapshot{}, err
	}
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	rejected, err := a.repos.Orders.List(a.ctx, repository.OrderFilters{Status: repository.OrderRejected, Since: midnight})
	if err != nil {
		return service.Snapshot{}, err
	}
	positions, err := a.repos.Positions.List(a.ctx, repository.PositionFilters{})
	if err != nil {
		return service.Snapshot{}, err
	}
	snap := service.Snapshot{
		RunningAgents: running,
		TotalAgents:   len(agents),
		OpenOrders:    len(open),
		RejectedToday: len(rejected),
		Currency:      a.currency,
	}
	for i := range positions {
		u := service.UnrealizedCents(positions[i])
		snap.NetUnrealizedCents += u
		if snap.WorstPosition == nil || u < service.UnrealizedCents(*snap.WorstPosition) {
			snap.WorstPosition = &positions[i]
		}
	}
	return snap, nil
}

// ---------------------------------------------------------------------------
// tab plumbing
// ---------------------------------------------------------------------------

func (a *App) switchTab(step int) {
	for i, s := range tabOrder {
		if s == a.state {
			a.setTab(tabOrder[(i+step+len(tabOrder))%len(tabOrder)])
			return
		}
	}
}

func (a *App) setTab(s appState) {
	a.state = s
	a.cursor = 0
	a.colCursor = 0
	a.status = ""
}

// tableState is the slice of View's API the key handlers need; it lets one
// handler drive every tab's generic instantiation.
type tableState interface {
	SetFilter(key, needle string)
	Filter() (string, string)
	ToggleSort(key string)
	Sort() (string, tableview.Direction)
	NextPage()
	PrevPage()
	SetPageSize(int)
	PageSize() int
	Page() tableview.PageInfo
	ToggleColumn(string)
	Hidden(string) bool
	ToggleSelectAt(int)
	SelectedCount() int
	ClearSelection()
}

func (a *App) currentTable() tableState {
	switch a.state {
	case viewOrders:
		return a.orders
	case viewPositions:
		return a.positions
	case viewWallets:
		return a.wallets
	case viewWorkflows:
		return a.workflows
	default:
		return a.agents
	}
}

type columnInfo struct {
	key    string
	title  string
	hidden bool
}

func columnInfos[T any](v *tableview.View[T]) []columnInfo {
	cols := v.AllColumns()
	out := make([]columnInfo, 0, len(cols))
	for _, c := range cols {
		out = append(out, columnInfo{key: c.Key, title: c.Title, hidden: v.Hidden(c.Key)})
	}
	return out
}

func (a *App) allColumns() []columnInfo {
	switch a.state {
	case viewOrders:
		return columnInfos(a.orders)
	case viewPositions:
		return columnInfos(a.positions)
	case viewWallets:
		return columnInfos(a.wallets)
	case viewWorkflows:
		return columnInfos(a.workflows)
	default:
		return columnInfos(a.agents)
	}
}

func (a *App) visibleKeys() []string {
	var out []string
	for _, c := range a.allColumns() {
		if !c.hidden {
			out = append(out, c.key)
		}
	}
	return out
}

func (a *App) currentRowCount() int {
	switch a.state {
	case viewOrders:
		return len(a.orders.Rows())
	case viewPositions:
		return len(a.positions.Rows())
	case viewWallets:
		return len(a.wallets.Rows())
	case viewWorkflows:
		return len(a.workflows.Rows())
	default:
		return len(a.agents.Rows())
	}
}

func (a *App) clampCursor() {
	if n := a.currentRowCount(); a.cursor >= n {
		a.cursor = 0
	}
}

// ---------------------------------------------------------------------------
// view
// ---------------------------------------------------------------------------

func (a *App) View() string {
	var body string
	switch a.state {
	case viewAgents:
		body = renderTable(a, a.agents, "Agents") + "\n[enter] Run/Pause  [t] Order ticket"
	case viewOrders:
		body = renderTable(a, a.orders, "Orders") + "\n[x] Cancel order"
	case viewPositions:
		body = renderTable(a, a.positions, "Positions")
	case viewWallets:
		body = renderTable(a, a.wallets, "Wallets")
	case viewWorkflows:
		body = renderTable(a, a.workflows, "Workflows") + "\n[enter] Run workflow"
	case viewSettings:
		body = a.renderSettings()
	default:
		body = a.renderDashboard()
	}

	out := a.renderTabs() + "\n" + body
	if a.state != viewDashboard && a.state != viewSettings {
		out += "\n" + tableHelp
	}
	out += "\n[tab] Next tab  [g] Jump  [?] Advisor  [q] Quit"
	if a.status != "" {
		out += "\n" + statusStyle.Render(a.status)
	}
	if a.modal != modalNone {
		out += "\n\n" + a.renderModal()
	}
	return out
}

const tableHelp = "[/] Filter  [esc] Clear filter  [s] Sort  [←→] Column  [h] Columns  [[ ]] Page  [+/-] Page size  [space] Select  [C] Clear selection"

func (a *App) renderTabs() string {
	var parts []string
	for i, s := range tabOrder {
		label := fmt.Sprintf("%d:%s", i+1, s)
		if s == a.state {
			label = activeTabStyle.Render(label)
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "  ")
}

// renderTable draws one tableview-backed tab: headers with sort and cursor
// markers, the current page, and a pagination footer.
func renderTable[T any](a *App, v *tableview.View[T], title string) string {
	cols := v.Columns()
	sortKey, sortDir := v.Sort()

	headers := make([]string, 0, len(cols))
	for i, c := range cols {
		h := c.Title
		if c.Key == sortKey {
			switch sortDir {
			case tableview.DirAsc:
				h += " ▲"
			case tableview.DirDesc:
				h += " ▼"
			}
		}
		if i == a.colCursor {
			h = "[" + h + "]"
		}
		headers = append(headers, h)
	}

	rows := v.Rows()
	cells := make([][]string, 0, len(rows))
	marks := make([]bool, 0, len(rows))
	for i, r := range rows {
		line := make([]string, 0, len(cols))
		for _, c := range cols {
			line = append(line, tableview.CellText(c, r))
		}
		cells = append(cells, line)
		marks = append(marks, v.SelectedAt(i))
	}

	info := v.Page()
	footer := fmt.Sprintf("page %d/%d · %d rows", info.PageIndex+1, info.PageCount, info.TotalRows)
	if key, needle := v.Filter(); needle != "" {
		footer += fmt.Sprintf(" · %d match %s~%q", info.FilteredRows, key, needle)
	}
	if n := v.SelectedCount(); n > 0 {
		footer += fmt.Sprintf(" · %d selected", n)
	}

	grid := widgets.Table{
		Headers: headers,
		Rows:    cells,
		Cursor:  a.cursor,
		Marks:   marks,
		Footer:  footer,
	}
	return titleStyle.Render(title) + "\n" + grid.Render()
}

func (a *App) renderDashboard() string {
	title := titleStyle.Render("TradeFarm - " + a.user.Name + " (" + a.user.Role + ")")

	running, openOrders := 0, 0
	for _, ag := range a.rawAgents {
		if ag.Status == repository.AgentRunning {
			running++
		}
	}
	for _, o := range a.rawOrders {
		if o.Status == repository.OrderOpen {
			openOrders++
		}
	}

	var points []widgets.ChartPoint
	var net int64
	for _, p := range a.rawPositions {
		u := service.UnrealizedCents(p)
		net += u
		label := a.agentName[p.AgentID]
		if label == "" {
			label = p.Symbol
		}
		points = append(points, widgets.ChartPoint{Label: label, Value: float64(u) / 100})
	}

	body := fmt.Sprintf("Agents: %d running / %d total\nOpen orders: %d\nNet unrealized: %s",
		running, len(a.rawAgents), openOrders, a.money(net))
	chart := widgets.Chart{Title: "Unrealized P&L by agent", Data: points}
	return title + "\n" + body + "\n\n" + chart.Render()
}

func (a *App) renderSettings() string {
	out := titleStyle.Render("Settings") + "\n"
	out += fmt.Sprintf("Operator: %s (%s)\n", a.user.Name, a.user.Role)
	out += fmt.Sprintf("Page size: %d  Slippage: %d bps  Fee: %d bps\n\n",
		a.cfg.UI.PageSize, a.cfg.Trading.SlippageBps, a.cfg.Trading.FeeBps)

	out += "Exchange credentials (secrets live in the encrypted store, not the database)\n"
	if len(a.credentials) == 0 {
		out += "  (none yet)\n"
	}
	for i, c := range a.credentials {
		marker := " "
		if i == a.credCursor {
			marker = "▶"
		}
		out += fmt.Sprintf("%s %-10s %-12s key=%s  %s\n", marker, c.Exchange, c.Label, c.APIKeyID, c.Status)
	}
	out += "\n[n] New credential  [r] Revoke  [+/-] Page size  [x] Reset database"
	return out
}

func (a *App) renderModal() string {
	switch a.modal {
	case modalFilter:
		return titleStyle.Render("Filter "+a.filterTarget) +
			"\n" + a.filterInput.View() + "\n[enter] Apply  [esc] Cancel (empty clears)"
	case modalColumnPicker:
		out := titleStyle.Render("Columns") + "\n"
		for i, c := range a.allColumns() {
			marker := " "
			if i == a.pickerCursor {
				marker = "▶"
			}
			box := "[x]"
			if c.hidden {
				box = "[ ]"
			}
			out += fmt.Sprintf("%s %s %s\n", marker, box, c.title)
		}
		out += "[space] Toggle  [esc] Close"
		return out
	case modalOrderTicket:
		t := a.ticket
		qtyMark, limitMark := " ", " "
		if t.field == 0 {
			qtyMark = "▶"
		} else {
			limitMark = "▶"
		}
		out := titleStyle.Render("Order ticket - "+t.agent.Name+" "+t.agent.Symbol) + "\n"
		out += fmt.Sprintf("Side: %s  Type: %s  (ctrl+s / ctrl+t to flip)\n", t.side, t.typ)
		out += fmt.Sprintf("%s Qty (units): %s\n", qtyMark, t.qty)
		if t.typ == repository.TypeLimit {
			out += fmt.Sprintf("%s Limit (%s): %s\n", limitMark, a.currency, t.limit)
		}
		out += "[tab] Next field  [enter] Place  [esc] Cancel"
		return out
	case modalConfirmCancel:
		return titleStyle.Render("Cancel order?") + "\n[y] Yes  [n] No"
	case modalNewCredential:
		f := a.cred
		labels := []string{"Exchange", "Label", "API key ID", "Secret"}
		values := []string{f.exchange, f.label, f.keyID, strings.Repeat("*", len(f.secret))}
		out := titleStyle.Render("New credential") + "\n"
		for i := range labels {
			marker := " "
			if i == f.field {
				marker = "▶"
			}
			out += fmt.Sprintf("%s %-12s %s\n", marker, labels[i]+":", values[i])
		}
		out += "[tab] Next field  [enter] Save  [esc] Cancel"
		return out
	case modalConfirmReset:
		return titleStyle.Render("Reset database?") + "\nThis deletes every agent, order, position and credential.\n[y] Yes  [n] No"
	case modalLookup:
		out := titleStyle.Render("Jump to") + "\n" + a.lookupInput.View() + "\n"
		for i, m := range a.lookupMatches {
			marker := " "
			if i == a.lookupCursor {
				marker = "▶"
			}
			out += fmt.Sprintf("%s %-7s %s (%.2f)\n", marker, m.Kind, m.Label, m.Score)
		}
		if len(a.lookupMatches) == 0 {
			out += "[enter] Search  [esc] Close"
		} else {
			out += "[enter] Jump  [↑↓] Pick  [esc] Close"
		}
		return out
	case modalAdvisor:
		out := titleStyle.Render("Advisor") + "\n"
		for _, line := range a.chat {
			who := "advisor"
			if line.fromUser {
				who = a.user.Name
			}
			out += fmt.Sprintf("%s: %s\n", who, line.text)
		}
		if a.chatThinking {
			out += "advisor: ...\n"
		}
		out += a.chatInput.View() + "\n[enter] Send  [esc] Close"
		return out
	default:
		return ""
	}
}

// ---------------------------------------------------------------------------
// messages
// ---------------------------------------------------------------------------

type agentsMsg []repository.Agent

type ordersMsg []repository.Order

type positionsMsg []repository.Position

type walletsMsg []repository.Wallet

type workflowsMsg []repository.Workflow

type credentialsMsg []repository.Credential

type statusMsg string

type errMsg struct{ error }

type advisorPendingMsg struct{ reply string }

type advisorMsg struct{ reply string }

type lookupMsg []service.Match

// ---------------------------------------------------------------------------
// formatting helpers
// ---------------------------------------------------------------------------

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
	activeTabStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	statusStyle    = lipgloss.NewStyle().Italic(true)
)

func (a *App) money(cents int64) string {
	return fmt.Sprintf("%s%.2f", a.currency, float64(cents)/100)
}

func fmtUnits(q int64) string {
	return strconv.FormatFloat(float64(q)/1e8, 'f', 4, 64)
}

// parseUnits reads a decimal unit quantity into the x1e8 fixed-point scale.
func parseUnits(s string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return int64(f * 1e8), nil
}

// parseMoney reads a decimal currency amount into cents.
func parseMoney(s string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return int64(f*100 + 0.5), nil
}

func trimLast(s string) string {
	if len(s) == 0 {
		return s
	}
	return s[:len(s)-1]
}
