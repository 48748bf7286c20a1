package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reseller_ledger/internal/app"
	"reseller_ledger/internal/domain/ledger"
	"reseller_ledger/internal/infra/config"
	idb "reseller_ledger/internal/infra/database"
	"reseller_ledger/internal/infra/logger"
	"reseller_ledger/internal/infra/scheduler"
	"reseller_ledger/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Reseller Ledger starting...")

	mainLogger := log.New(os.Stdout, "MAIN: ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	mainLogger.Printf("INFO: Configuration loaded. LogLevel: %s, Environment: %s, RemoteBackend: %t", cfg.LogLevel, cfg.Environment, cfg.UseRemoteBackend())

	// Select the persistence backend: remote Postgres when DATABASE_URL is
	// configured, local key-value store otherwise.
	var repo ledger.Repository
	if cfg.UseRemoteBackend() {
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
		}
		defer db.Close()
		repo = idb.NewPostgresLedgerRepository(db)
		mainLogger.Println("INFO: Remote ledger repository initialized.")
	} else {
		local, err := idb.NewLocalLedgerRepository(cfg.LocalDBPath)
		if err != nil {
			mainLogger.Fatalf("FATAL: Could not open local store: %v", err)
		}
		defer local.Close()
		repo = local
		mainLogger.Printf("INFO: Local ledger repository initialized at %s.", cfg.LocalDBPath)
	}

	statsLogger := log.New(os.Stdout, "STATS: ", log.LstdFlags|log.Lshortfile)
	statsService := app.NewStatsService(repo, statsLogger)

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	stats, err := statsService.Stats(startupCtx, cfg.Empresa)
	cancel()
	if err != nil {
		mainLogger.Printf("WARN: Could not compute startup stats: %v", err)
	} else {
		mainLogger.Printf("INFO: %d cycles on record, accumulated profit %s.", stats.Totals.Ciclos, stats.Totals.Ganancia.StringFixed(2))
	}

	// Reminder delivery is optional: without a bot token the process only
	// serves the persistence and aggregation layers.
	var reminderScheduler *scheduler.ReminderScheduler
	if cfg.RemindersEnabled() {
		pref := telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				log.Printf("ERROR (telebot): %v", err)
			},
		}
		bot, err := telebot.NewBot(pref)
		if err != nil {
			mainLogger.Fatalf("FATAL: Could not create Telegram bot: %v", err)
		}

		reminderLogger := log.New(os.Stdout, "REMINDER: ", log.LstdFlags|log.Lshortfile)
		reminderService := app.NewReminderService(telegram.NewTelebotAdapter(bot), repo, cfg.ReminderChatID, reminderLogger)

		schedulerLogger := log.New(os.Stdout, "SCHEDULER: ", log.LstdFlags|log.Lshortfile)
		reminderScheduler = scheduler.NewReminderScheduler(reminderService, schedulerLogger, cfg.CronSpecReminders, cfg.Empresa)
		reminderScheduler.Start()

		go bot.Start()
		mainLogger.Println("INFO: Reminder scheduler and bot started.")
	} else {
		mainLogger.Println("INFO: Reminders not configured; running without the digest scheduler.")
	}

	mainLogger.Println("INFO: Application setup complete.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Println("INFO: Shutting down application...")
	if reminderScheduler != nil {
		reminderScheduler.Stop()
	}
	mainLogger.Println("INFO: Application shut down gracefully.")
}
