package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hamedydev/digitalme/internal/admin"
	"github.com/hamedydev/digitalme/internal/config"
	"github.com/hamedydev/digitalme/internal/greenapi"
	"github.com/hamedydev/digitalme/internal/providers"
	"github.com/hamedydev/digitalme/internal/relay"
	"github.com/hamedydev/digitalme/internal/sessions"
)

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Missing credentials are reported but not fatal: the relay starts
	// and the unconfigured integrations stay inert.
	for _, name := range cfg.MissingCredentials() {
		slog.Warn("credential not configured", "name", name)
	}

	store := sessions.NewStore(cfg.Sessions.DataFile, cfg.Sessions.HistoryCap)
	provider := providers.NewOpenRouterProvider(cfg.OpenRouter.APIKey, cfg.OpenRouter.APIBase, cfg.OpenRouter.Model)

	sender := greenapi.NewClient(cfg.GreenAPI.InstanceID, cfg.GreenAPI.Token)
	if cfg.GreenAPI.APIBase != "" {
		sender = sender.WithAPIBase(cfg.GreenAPI.APIBase)
	}

	switchboard := relay.NewSwitchboard(cfg.Telegram.OwnerID)

	var bot *admin.Bot
	var notifier relay.Notifier = relay.NopNotifier{}
	if cfg.Telegram.Token != "" {
		bot, err = admin.New(cfg.Telegram.Token, cfg.Telegram.OwnerID, switchboard, store)
		if err != nil {
			slog.Error("failed to create telegram bot", "error", err)
			os.Exit(1)
		}
		notifier = bot
	} else {
		slog.Warn("telegram token not configured, operator bot and notifications disabled")
	}

	pipeline := relay.NewPipeline(relay.Options{
		Switchboard:  switchboard,
		Store:        store,
		Generator:    provider,
		Sender:       sender,
		Notifier:     notifier,
		Model:        cfg.OpenRouter.Model,
		Temperature:  cfg.OpenRouter.Temperature,
		MaxTokens:    cfg.OpenRouter.MaxTokens,
		ContextTurns: cfg.Sessions.ContextTurns,
	})

	webhook := greenapi.NewServer(cfg.Server.Addr(), pipeline)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webhook.Run(gctx)
	})
	if bot != nil {
		g.Go(func() error {
			return bot.Run(gctx)
		})
	}

	slog.Info("digitalme started",
		"addr", cfg.Server.Addr(),
		"model", cfg.OpenRouter.Model,
		"sessions", store.Len(),
	)

	if err := g.Wait(); err != nil {
		slog.Error("relay stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("digitalme stopped")
}
