package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-hospitality/internal/auth"
	"go-hospitality/internal/cart"
	"go-hospitality/internal/config"
	"go-hospitality/internal/database"
	"go-hospitality/internal/disbursement"
	"go-hospitality/internal/discount"
	"go-hospitality/internal/handlers"
	"go-hospitality/internal/logging"
	"go-hospitality/internal/orders"
	"go-hospitality/internal/payment"
	"go-hospitality/internal/ratelimit"
	"go-hospitality/internal/realpay"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Version = "dev"

func main() {
	serve := serveCmd()
	rootCmd := &cobra.Command{
		Use:           "go-hospitality",
		Short:         "Checkout and daily payouts for hospitality properties",
		Version:       Version,
		RunE:          serve.RunE, // no subcommand means serve
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(disburseCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is what every command needs before it can do work.
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func bootstrap() (*app, error) {
	cfg, foundDotenv, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.IsDevelopment(), cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	if !foundDotenv {
		log.Warn("no .env file found, using process environment")
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &app{cfg: cfg, log: log, db: db}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}

func (a *app) processor() *disbursement.Processor {
	gateway := realpay.New(a.cfg.RealPay)
	if a.cfg.RealPay.MockMode {
		a.log.Warn("realpay mock mode is ON, payouts are not sent")
	}
	return disbursement.NewProcessor(a.db, gateway, a.log)
}

func (a *app) router() (*gin.Engine, error) {
	numbers, err := orders.NewNumberGenerator(a.cfg.SnowflakeNode)
	if err != nil {
		return nil, err
	}
	discounts := discount.NewResolver(a.db)
	payments := payment.NewService(a.db, payment.Fees{
		GatewayPercent:  a.cfg.Fees.GatewayPercent,
		PlatformPercent: a.cfg.Fees.PlatformPercent,
	})

	h := handlers.New(handlers.Deps{
		DB:            a.db,
		Log:           a.log,
		Tokens:        auth.NewTokenManager(a.cfg.JWTSecret, a.cfg.TokenTTL),
		Carts:         cart.NewStore(a.db),
		Discounts:     discounts,
		Payments:      payments,
		Orders:        orders.NewService(a.db, discounts, payments, numbers, a.log),
		Disbursements: a.processor(),
		WebhookSecret: a.cfg.RealPay.WebhookSecret,
	})
	return handlers.NewRouter(h, handlers.RouterOptions{
		AllowedOrigins:    a.cfg.AllowedOrigins,
		AllowRegistration: a.cfg.AllowRegistration,
		Limiter:           ratelimit.New(a.db, a.cfg.RateLimitRequests, a.cfg.RateLimitWindow),
		TrustedProxies:    a.cfg.TrustedProxies,
	}), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if !a.cfg.IsDevelopment() {
				gin.SetMode(gin.ReleaseMode)
			}
			r, err := a.router()
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              ":" + a.cfg.Port,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("server starting", zap.String("base_url", a.cfg.BaseURL), zap.String("env", a.cfg.Env))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed to start: %w", err)
			case <-ctx.Done():
			}

			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			a.log.Info("schema is up to date")
			return nil
		},
	}
}
