package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	billingmodule "github.com/extensionpro/extensionpro/modules/billing"
	"github.com/extensionpro/extensionpro/pkg/billing"
	"github.com/extensionpro/extensionpro/pkg/billing/pgstore"
	"github.com/extensionpro/extensionpro/pkg/config"
	"github.com/extensionpro/extensionpro/pkg/httpserver"
	"github.com/extensionpro/extensionpro/pkg/identity"
	"github.com/extensionpro/extensionpro/pkg/logger"
	"github.com/extensionpro/extensionpro/pkg/pg"
)

type appConfig struct {
	Provider    string `env:"BILLING_PROVIDER" envDefault:"stripe"`
	CatalogPath string `env:"CATALOG_PATH"`
	ProPriceID  string `env:"PRICE_ID_PRO"`
	TeamPriceID string `env:"PRICE_ID_TEAM"`
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		appCfg    appConfig
		logCfg    logger.Config
		pgCfg     pg.Config
		httpCfg   httpserver.Config
		authCfg   identity.Config
		moduleCfg billingmodule.Config
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&logCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&authCfg)
	config.MustLoad(&moduleCfg)

	log := logger.NewFromConfig(logCfg, "extensionpro")

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	catalog, err := loadCatalog(appCfg)
	if err != nil {
		return fmt.Errorf("plan catalog: %w", err)
	}

	provider, err := newProvider(appCfg.Provider)
	if err != nil {
		return err
	}

	verifier, err := identity.NewTokenVerifier(authCfg)
	if err != nil {
		return fmt.Errorf("token verifier: %w", err)
	}

	store := pgstore.New(pool)
	reconciler := billing.NewReconciler(store, catalog, log)
	checkout := billing.NewCheckoutService(store, provider, catalog, log)

	handler := billingmodule.NewHandler(moduleCfg, store, catalog, provider, reconciler, checkout, verifier, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/health", httpserver.HealthCheckHandler(log, pg.Healthcheck(pool)))
	r.Mount("/api", handler.Router())

	return httpserver.New(httpCfg, log).Run(ctx, r)
}

func loadCatalog(cfg appConfig) (*billing.Catalog, error) {
	if cfg.CatalogPath != "" {
		return billing.LoadCatalogFile(cfg.CatalogPath)
	}
	prices := make(map[string]billing.Plan)
	if cfg.ProPriceID != "" {
		prices[cfg.ProPriceID] = billing.PlanPro
	}
	if cfg.TeamPriceID != "" {
		prices[cfg.TeamPriceID] = billing.PlanTeam
	}
	return billing.DefaultCatalog(prices)
}

func newProvider(name string) (billing.Provider, error) {
	switch name {
	case "stripe":
		var cfg billing.StripeConfig
		config.MustLoad(&cfg)
		return billing.NewStripeProvider(cfg)
	case "paddle":
		var cfg billing.PaddleConfig
		config.MustLoad(&cfg)
		return billing.NewPaddleProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown billing provider %q", name)
	}
}
