package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	apiPkg "github.com/vitrine-io/vitrine/internal/api"
	"github.com/vitrine-io/vitrine/internal/backup"
	"github.com/vitrine-io/vitrine/internal/catalog"
	"github.com/vitrine-io/vitrine/internal/config"
	"github.com/vitrine-io/vitrine/internal/dispatch"
	slackgw "github.com/vitrine-io/vitrine/internal/gateway/slack"
	"github.com/vitrine-io/vitrine/internal/gateway/telegram"
	"github.com/vitrine-io/vitrine/internal/logbuf"
	"github.com/vitrine-io/vitrine/internal/policy"
	"github.com/vitrine-io/vitrine/internal/store"
	"github.com/vitrine-io/vitrine/internal/ticket"
	"github.com/vitrine-io/vitrine/pkg/protocol"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	// Load config (2 modes: file, env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("vitrined starting", "shop_id", cfg.Shop.ID)

	// 1. Open the catalog store
	os.MkdirAll(cfg.Shop.DataDir, 0o755)
	st, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open catalog store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	cat := catalog.New(st, logger.With("component", "catalog"))

	// 2. Build the admin policy. Slack admin IDs from the connector
	// config are folded in with the platform prefix.
	adminIDs := append([]string{}, cfg.Shop.AdminIDs...)
	if cfg.Connectors.Slack != nil {
		for _, id := range cfg.Connectors.Slack.Admins {
			adminIDs = append(adminIDs, "slack:"+id)
		}
	}
	pol := policy.NewAdminList(adminIDs, cfg.Shop.AdminRoles)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Start gateways. Each gets its own workflow and dispatcher;
	// the dispatcher is forward-declared so the handler closure can
	// reference it before the gateway exists.
	var workflows []*ticket.Workflow
	started := 0

	if cfg.Connectors.Telegram != nil {
		var disp *dispatch.Dispatcher
		handler := func(ctx context.Context, ev protocol.Event) error {
			return disp.Handle(ctx, ev)
		}

		tg, err := telegram.New(telegram.Config{
			Token:       cfg.Connectors.Telegram.Token,
			StaffChatID: cfg.Connectors.Telegram.StaffChatID,
			AllowFrom:   cfg.Connectors.Telegram.AllowFrom,
		}, handler, logger.With("gateway", "telegram"))
		if err != nil {
			logger.Error("failed to init telegram gateway", "error", err)
			os.Exit(1)
		}

		wf := ticket.NewWorkflow(cat, tg, pol, logger.With("component", "tickets", "gateway", "telegram"))
		disp = dispatch.New(cat, wf, pol, tg, logger.With("component", "dispatch", "gateway", "telegram"))
		workflows = append(workflows, wf)

		go safeGo(logger, "telegram", func() { tg.Start(ctx) })
		logger.Info("telegram gateway started")
		started++
	}

	if cfg.Connectors.Slack != nil {
		var disp *dispatch.Dispatcher
		handler := func(ctx context.Context, ev protocol.Event) error {
			return disp.Handle(ctx, ev)
		}

		sl, err := slackgw.New(slackgw.Config{
			BotToken: cfg.Connectors.Slack.BotToken,
			AppToken: cfg.Connectors.Slack.AppToken,
			Admins:   cfg.Connectors.Slack.Admins,
		}, handler, logger.With("gateway", "slack"))
		if err != nil {
			logger.Error("failed to init slack gateway", "error", err)
			os.Exit(1)
		}

		wf := ticket.NewWorkflow(cat, sl, pol, logger.With("component", "tickets", "gateway", "slack"))
		disp = dispatch.New(cat, wf, pol, sl, logger.With("component", "dispatch", "gateway", "slack"))
		workflows = append(workflows, wf)

		go safeGo(logger, "slack", func() { sl.Start(ctx) })
		logger.Info("slack gateway started")
		started++
	}

	if started == 0 {
		logger.Warn("no gateways configured, only the API will be reachable")
	}

	// 4. Start backup scheduler
	if cfg.Backup != nil {
		dir := cfg.Backup.Dir
		if dir == "" {
			dir = filepath.Join(cfg.Shop.DataDir, "backups")
		}
		runner := backup.New(st, dir, cfg.Backup.Schedule, logger.With("component", "backup"))
		go safeGo(logger, "backup", func() { runner.Start(ctx) })
	}

	// 5. Start API server
	apiSvc := &shopServiceAdapter{cat: cat, workflows: workflows}
	apiSrv := apiPkg.NewServer(apiSvc, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), logBuf)

	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.API.Port)

	// 6. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	logger.Info("vitrined stopped")
}

// openStore picks the persistence backend from config. Default is
// sqlite under the data dir.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "file":
		path := cfg.Store.Path
		if path == "" {
			path = filepath.Join(cfg.Shop.DataDir, "catalog.json")
		}
		return store.NewFileStore(path), nil
	default: // "sqlite" or empty
		path := cfg.Store.Path
		if path == "" {
			path = filepath.Join(cfg.Shop.DataDir, "catalog.db")
		}
		return store.NewSQLiteStore(path)
	}
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}

// shopServiceAdapter implements api.ShopService over the catalog and
// the per-gateway ticket workflows.
type shopServiceAdapter struct {
	cat       *catalog.Repository
	workflows []*ticket.Workflow
}

func (s *shopServiceAdapter) Scopes() ([]string, error) {
	return s.cat.Scopes()
}

func (s *shopServiceAdapter) Products(scope string) ([]protocol.Product, error) {
	return s.cat.ListProducts(scope)
}

func (s *shopServiceAdapter) OpenTickets() []protocol.Ticket {
	var out []protocol.Ticket
	for _, wf := range s.workflows {
		out = append(out, wf.OpenTickets()...)
	}
	return out
}
