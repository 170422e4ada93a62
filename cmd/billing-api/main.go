package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/edvin/billing/internal/api"
	"github.com/edvin/billing/internal/api/handler"
	mw "github.com/edvin/billing/internal/api/middleware"
	"github.com/edvin/billing/internal/config"
	"github.com/edvin/billing/internal/core"
	"github.com/edvin/billing/internal/db"
	"github.com/edvin/billing/internal/logging"
	"github.com/edvin/billing/internal/metrics"
	"github.com/edvin/billing/internal/plan"
	"github.com/edvin/billing/internal/provider"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "create-org" {
		createOrg(os.Args[2:])
		return
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations/billing", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("billing-api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to billing database")
	}
	defer pool.Close()

	catalog, err := loadCatalog(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load plan catalog")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterPgxPoolMetrics(reg, pool)
	rec := metrics.NewBilling(reg)

	providers, stripe := buildProviders(cfg, rec, logger)

	services := core.NewServices(pool, providers, catalog, rec, logger, core.ServicesConfig{
		TrialDays:      cfg.TrialDays,
		FrontendOrigin: cfg.FrontendOrigin,
	})

	srv := api.NewServer(logger, cfg, api.Deps{
		DB:        pool,
		Services:  services,
		Stripe:    stripe,
		Authority: mw.NewTokenAuthority(cfg.JWTSecret, cfg.JWTIssuer),
		Registry:  reg,
		Recorder:  rec,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting billing API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}

func loadCatalog(cfg *config.Config) (*plan.Catalog, error) {
	if cfg.PlansFile == "" {
		return plan.DefaultCatalog(), nil
	}
	return plan.LoadFile(cfg.PlansFile)
}

// buildProviders returns the configured providers and, when Connect is
// enabled, its webhook parser.
func buildProviders(cfg *config.Config, rec metrics.BillingRecorder, logger zerolog.Logger) (*provider.Set, handler.StripeWebhookParser) {
	var list []provider.Provider
	var stripe handler.StripeWebhookParser

	if cfg.InfinityPayEnabled() {
		list = append(list, provider.NewInfinityPay(provider.InfinityPayConfig{
			APIURL:     cfg.InfinityPayAPIURL,
			Handle:     cfg.InfinityPayHandle,
			WebhookURL: cfg.InfinityPayWebhookURL,
			Timeout:    cfg.ProviderTimeout,
		}, rec))
		logger.Info().Str("handle", cfg.InfinityPayHandle).Msg("infinitypay provider enabled")
	}

	if cfg.StripeEnabled() {
		sc := provider.NewStripeConnect(provider.StripeConnectConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			AccountID:     cfg.StripeConnectAccountID,
			FeePercent:    cfg.StripeApplicationFeePercent,
			APIURL:        cfg.StripeAPIURL,
			Timeout:       cfg.ProviderTimeout,
		}, rec)
		list = append(list, sc)
		stripe = sc
		logger.Info().Str("account", cfg.StripeConnectAccountID).Msg("stripe connect provider enabled")
	}

	if len(list) == 0 {
		logger.Warn().Msg("no payment provider configured, checkout and verification will be rejected")
	}
	return provider.NewSet(list...), stripe
}

func createOrg(args []string) {
	fs := flag.NewFlagSet("create-org", flag.ExitOnError)
	name := fs.String("name", "", "Organization name (required)")
	email := fs.String("email", "", "Billing email for expiry notices")
	user := fs.String("user", "admin", "Subject of the issued token")
	ttl := fs.Duration("token-ttl", 24*time.Hour, "Lifetime of the issued token")
	fs.Parse(args)

	if *name == "" {
		fmt.Fprintln(os.Stderr, "error: --name is required")
		fmt.Fprintln(os.Stderr, "usage: billing-api create-org --name <name> [--email <email>]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "error: JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	var billingEmail *string
	if *email != "" {
		billingEmail = email
	}

	svc := core.NewOrganizationService(pool, cfg.TrialDays)
	org, err := svc.CreateWithTrial(ctx, *name, billingEmail, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create organization: %v\n", err)
		os.Exit(1)
	}

	token, err := mw.NewTokenAuthority(cfg.JWTSecret, cfg.JWTIssuer).Issue(*user, org.ID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Organization created.\n\n")
	fmt.Printf("  Name:        %s\n", org.Name)
	fmt.Printf("  ID:          %s\n", org.ID)
	fmt.Printf("  Trial ends:  %s\n", org.TrialEndsAt.Format(time.RFC3339))
	fmt.Printf("  Token:       %s\n", token)
}
