package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/yaml.v3"

	"shopbot/commerce"
	corecmd "shopbot/core/cmd"
	coreconfig "shopbot/core/config"
	coredatabase "shopbot/core/database"
	"shopbot/core/logger"
	coretelegram "shopbot/core/telegram"
	"shopbot/core/telegram/commands"
	tghelpers "shopbot/core/telegram/helpers"
	"shopbot/core/telegram/router"
	"shopbot/session"
	"shopbot/shop"
)

// appConfig aggregates core bot settings with the storefront's own sections.
type appConfig struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Commerce commerce.Config     `yaml:"commerce"`
	Session  session.Config      `yaml:"session"`
}

// CoreConfig satisfies corecmd.ConfigCarrier.
func (c *appConfig) CoreConfig() *coreconfig.Config {
	return &c.Core
}

func loadConfig(path string) (corecmd.ConfigCarrier, error) {
	var cfg appConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if err := session.Normalize(&cfg.Session); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Commerce.APIURL) == "" {
		return nil, fmt.Errorf("commerce.api_url is required")
	}
	if cfg.Commerce.ClientID == "" || cfg.Commerce.ClientSecret == "" {
		return nil, fmt.Errorf("commerce.client_id and commerce.client_secret are required")
	}
	return &cfg, nil
}

type app struct {
	cfg        *appConfig
	api        *commerce.Client
	store      session.Store
	dispatcher *shop.Dispatcher
	cleanup    []io.Closer
}

func bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*appConfig)
	if !ok {
		return nil, fmt.Errorf("bootstrap: unexpected config type %T", carrier)
	}

	if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	a := &app{cfg: cfg}

	store, err := a.buildStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = store

	a.api = commerce.NewClient(cfg.Commerce, nil)
	a.dispatcher = shop.NewDispatcher(store, shop.NewMachine(a.api, store))
	return a, nil
}

func (a *app) buildStore(cfg *appConfig) (session.Store, error) {
	switch cfg.Session.Backend {
	case session.BackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := session.NewRedisStore(ctx, cfg.Session.Redis)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		a.cleanup = append(a.cleanup, store)
		return store, nil
	case session.BackendPostgres:
		db, err := coredatabase.Connect(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		if err := coredatabase.RunMigrations(cfg.Database); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		a.cleanup = append(a.cleanup, db)
		return session.NewPostgresStore(db), nil
	case session.BackendMemory:
		return session.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("bootstrap: unsupported session backend %q", cfg.Session.Backend)
}

// TelegramRunOptions satisfies corecmd.TelegramApp.
func (a *app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	conversation := shop.Handler(a.dispatcher)

	reg.RegisterCommand("/start", commands.Command{
		Handler:     conversation,
		Description: "Open the shop menu",
		Aliases:     []string{"menu", "shop"},
	})
	reg.RegisterCommand("/health", commands.Command{
		Handler:     a.handleHealth,
		Description: "Report backend connectivity",
		AdminOnly:   true,
		Hidden:      true,
	})

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Core.Telegram.AdminID,
	})
	routes = append(routes, router.ConversationCallbackRoute(conversation))
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{
		Conversation: conversation,
	})...)

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStop: func(context.Context, coretelegram.Runtime) error {
			for _, c := range a.cleanup {
				if err := c.Close(); err != nil {
					log.Printf("cleanup error: %v", err)
				}
			}
			return nil
		},
	}, nil
}

// handleHealth probes the session store and the commerce backend. Admin only.
func (a *app) handleHealth(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)

	storeStatus := "ok"
	if _, _, err := a.store.Get(ctx, "health.probe"); err != nil {
		storeStatus = err.Error()
	}
	apiStatus := "ok"
	if _, err := a.api.ListProducts(ctx, 1); err != nil {
		apiStatus = err.Error()
	}
	return tghelpers.SendText(c, fmt.Sprintf("store: %s\napi: %s", storeStatus, apiStatus))
}

func main() {
	if err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        loadConfig,
		Bootstrap:         bootstrap,
	}); err != nil {
		log.Fatalf("shopbot: %v", err)
	}
}
