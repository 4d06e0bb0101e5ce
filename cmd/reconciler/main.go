package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/database"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/handlers"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/kotapay"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/ledger"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/logging"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/notify"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/repositories"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/services"
)

func main() {
	migrateCmd := flag.String("migrate", "", "Migration command (up/down/version)")
	steps := flag.Int("steps", 0, "Number of migration steps (0 means all)")
	dryRun := flag.Bool("dry-run", false, "Log intended transitions without writing")
	paymentID := flag.Int64("payment-id", 0, "Resolve a single payment by id")
	windowDays := flag.Int("window-days", 0, "Post-settlement return window in days (0 uses config)")
	serve := flag.Bool("serve", false, "Run the ops HTTP server instead of a one-shot pass")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logging.NewLogger(cfg.LogLevel)

	if *migrateCmd != "" {
		handleMigration(cfg, log, *migrateCmd, *steps)
		return
	}

	db, err := database.NewConnection(cfg, log)
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	defer db.Close()

	ledgerDB, err := database.NewLedgerConnection(cfg, log)
	if err != nil {
		log.Fatalf("Error connecting to ledger database: %v", err)
	}
	defer ledgerDB.Close()

	paymentRepo := repositories.NewPaymentRepository(db)
	planRepo := repositories.NewPlanRepository(db)
	runRepo := repositories.NewRunRepository(db)

	reports := kotapay.NewClient(cfg.KotaPay, log)
	writer := ledger.NewMySQLWriter(ledgerDB, log)
	notifier := notify.NewLogNotifier(log)

	effects := services.NewSideEffectCoordinator(paymentRepo, planRepo, writer, notifier, log)
	resolver := services.NewSettlementResolver(paymentRepo, reports, effects, cfg.Reconciliation, log)
	monitor := services.NewReturnMonitor(paymentRepo, reports, effects, log)
	corrections := services.NewCorrectionLogger(reports, log)

	reconciliationService := services.NewReconciliationService(
		resolver,
		monitor,
		corrections,
		runRepo,
		cfg.Reconciliation.ReturnWindowDays,
		cfg.Reconciliation.CorrectionWindowDays,
		log,
	)

	if *serve {
		runServer(cfg, reconciliationService, log)
		return
	}

	report, err := reconciliationService.Run(services.RunOptions{
		DryRun:     *dryRun,
		PaymentID:  *paymentID,
		WindowDays: *windowDays,
	})
	if err != nil {
		log.Fatalf("Reconciliation run failed: %v", err)
	}

	fmt.Println(report.String())
	if report.Errors > 0 {
		os.Exit(1)
	}
}

func runServer(cfg *config.Config, reconciliationService *services.ReconciliationService, log *logrus.Logger) {
	reconciliationHandler := handlers.NewReconciliationHandler(reconciliationService)
	router := handlers.SetupRouter(reconciliationHandler, log)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // a triggered run fetches vendor reports inline
	}

	go func() {
		log.WithField("address", cfg.ServerAddress).Info("ops server running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Info("shutting down ops server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server Shutdown Failed:%+v", err)
	}
	log.Info("ops server exited gracefully")
}

func handleMigration(cfg *config.Config, log *logrus.Logger, command string, steps int) {
	db, err := database.NewConnection(cfg, log)
	if err != nil {
		log.Fatalf("Failed to ensure database exists: %v", err)
	}
	db.Close()

	m, err := migrate.New(
		fmt.Sprintf("file://%s", cfg.Migration.Dir),
		cfg.GetMigrationDBURL(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "no change") {
			log.Info("No migration changes to apply")
			return
		}
		log.Fatalf("Failed to initialize migrate: %v", err)
	}
	defer m.Close()

	switch command {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verErr := m.Version()
		if verErr != nil {
			if verErr == migrate.ErrNilVersion {
				log.Info("No migrations have been applied yet")
				return
			}
			log.Fatalf("Failed to get version: %v", verErr)
		}
		fmt.Printf("Current migration version: %d (dirty: %v)\n", version, dirty)
		return
	default:
		log.Fatalf("Invalid migration command: %s", command)
	}

	if err != nil {
		if err == migrate.ErrNoChange {
			log.Info("No migration changes to apply")
			return
		}
		log.Fatalf("Migration failed: %v", err)
	}

	log.Info("Migration completed successfully")
}
