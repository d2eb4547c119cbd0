package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kasaflow/kasaflow/internal/ledger/adapter/repo"
	"github.com/kasaflow/kasaflow/internal/ledger/api"
	"github.com/kasaflow/kasaflow/internal/ledger/service"
	"github.com/kasaflow/kasaflow/internal/platform/database"
	"github.com/kasaflow/kasaflow/internal/platform/logger"
	"github.com/kasaflow/kasaflow/internal/platform/notify"
	"github.com/kasaflow/kasaflow/internal/platform/server"
	"github.com/kasaflow/kasaflow/internal/rates"
)

func main() {
	viper.SetConfigFile("configs/config.yaml")
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %s", err)
	}

	appLogger := logger.NewLogger(viper.GetString("server.mode"))
	defer appLogger.Sync()

	db, err := database.NewPostgresDB(
		viper.GetString("database.dsn"),
		viper.GetInt("database.max_idle_conns"),
		viper.GetInt("database.max_open_conns"),
	)
	if err != nil {
		appLogger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		appLogger.Fatal("migration failed", zap.Error(err))
	}

	baseCurrency := viper.GetString("ledger.base_currency")
	if baseCurrency == "" {
		baseCurrency = "TRY"
	}

	// Repositories.
	accountRepo := repo.NewAccountRepo(db)
	txRepo := repo.NewTransactionRepo(db)
	debtRepo := repo.NewDebtRepo(db)
	commissionRepo := repo.NewCommissionRepo(db)
	ownerRepo := repo.NewOwnerRepo(db)
	categoryLookup := repo.NewCategoryLookup(db)
	customerLookup := repo.NewCustomerLookup(db)
	supplierLookup := repo.NewSupplierLookup(db)

	// Collaborators.
	rateProvider := rates.NewTCMBProvider(
		viper.GetString("rates.base_url"),
		viper.GetDuration("rates.timeout"),
		viper.GetDuration("rates.cache_ttl"),
		appLogger,
	)
	sink := notify.NewZapSink(appLogger)

	// Services.
	accountSvc := service.NewAccountService(accountRepo, appLogger)
	commissionSvc := service.NewCommissionService(commissionRepo, ownerRepo, appLogger)
	subscriptionSvc := service.NewSubscriptionService(db, txRepo, appLogger)
	debtSvc := service.NewDebtService(debtRepo, txRepo, customerLookup, supplierLookup, appLogger)
	sweepSvc := service.NewSweepService(db, txRepo, debtRepo, appLogger)
	ledgerSvc := service.NewLedgerService(service.LedgerServiceDeps{
		DB:           db,
		Accounts:     accountRepo,
		AccountSvc:   accountSvc,
		Transactions: txRepo,
		Lookups: service.Lookups{
			Categories: categoryLookup,
			Customers:  customerLookup,
			Suppliers:  supplierLookup,
		},
		Rates:         rateProvider,
		Commissions:   commissionSvc,
		Subscriptions: subscriptionSvc,
		Debts:         debtSvc,
		Notifier:      sink,
		Logger:        appLogger,
		BaseCurrency:  baseCurrency,
	})
	transferSvc := service.NewTransferService(db, accountRepo, txRepo, rateProvider, sink, appLogger, baseCurrency)

	ledgerHandler := api.NewLedgerHandler(ledgerSvc, transferSvc, subscriptionSvc, sweepSvc, accountSvc, debtSvc)

	srv := server.NewServer(
		appLogger,
		viper.GetString("server.port"),
		viper.GetString("server.mode"),
		ledgerHandler,
	)

	// Background overdue sweep.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runSweepLoop(sweepCtx, sweepSvc, viper.GetDuration("sweep.interval"), appLogger)

	go func() {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down")
	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("shutdown failed", zap.Error(err))
	}
}

func runSweepLoop(ctx context.Context, sweep *service.SweepService, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			asOf := time.Now()
			if _, err := sweep.Run(ctx, asOf); err != nil {
				logger.Error("overdue sweep failed", zap.Error(err))
			}
			if _, err := sweep.AdvanceInstallments(ctx, asOf); err != nil {
				logger.Error("installment advance failed", zap.Error(err))
			}
		}
	}
}
