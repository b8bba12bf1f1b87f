package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kvist/tradefarm/internal/config"
	"github.com/kvist/tradefarm/internal/database"
	"github.com/kvist/tradefarm/internal/database/repository"
	"github.com/kvist/tradefarm/internal/service"
	"github.com/kvist/tradefarm/internal/testdata"
	"github.com/kvist/tradefarm/internal/tui"
)

func main() {
	demo := flag.Bool("demo", false, "seed demo agents, orders and positions")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatalf("mkdir db dir: %v", err)
	}

	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := database.SeedDefaults(ctx, db); err != nil {
		log.Fatalf("seed defaults: %v", err)
	}

	// repositories
	agentRepo := repository.NewAgentRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	positionRepo := repository.NewPositionRepo(db)
	walletRepo := repository.NewWalletRepo(db)
	credRepo := repository.NewCredentialRepo(db)
	workflowRepo := repository.NewWorkflowRepo(db)
	userRepo := repository.NewUserRepo(db)

	if *demo {
		err := testdata.Seed(ctx, testdata.Repos{
			Agents: agentRepo, Orders: orderRepo, Positions: positionRepo,
			Wallets: walletRepo, Workflows: workflowRepo,
		})
		if err != nil {
			log.Fatalf("seed demo data: %v", err)
		}
	}

	user, err := userRepo.ByName(ctx, cfg.Trading.Operator)
	if err != nil {
		log.Fatalf("resolve operator: %v", err)
	}
	if user == nil {
		log.Fatalf("no user named %q; check trading.operator in config", cfg.Trading.Operator)
	}

	// services
	positions := &service.PositionService{Positions: positionRepo}
	orders := &service.OrderService{
		Orders:      orderRepo,
		Agents:      agentRepo,
		Credentials: credRepo,
		Positions:   positions,
		SlippageBps: int64(cfg.Trading.SlippageBps),
		FeeBps:      int64(cfg.Trading.FeeBps),
	}
	workflows := &service.WorkflowService{
		Workflows: workflowRepo, Orders: orderRepo,
		Agents: agentRepo, Positions: positionRepo,
	}

	app, err := tui.New(ctx, cfg, *user,
		tui.Repos{
			Agents: agentRepo, Orders: orderRepo, Positions: positionRepo,
			Wallets: walletRepo, Credentials: credRepo, Workflows: workflowRepo,
		},
		tui.Services{
			Orders:      orders,
			Positions:   positions,
			Workflows:   workflows,
			Lookup:      &service.LookupService{Agents: agentRepo},
			Maintenance: &service.MaintenanceService{DB: db},
		},
	)
	if err != nil {
		log.Fatalf("tui: %v", err)
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}
