package scheduler

import (
	"context"
	"log"
	"time"

	"reseller_ledger/internal/app"

	"github.com/robfig/cron/v3"
)

// ReminderScheduler drives the periodic pending-payment digest. One cron job
// runs on the configured spec and asks the ReminderService to message every
// client that still owes a balance.
type ReminderScheduler struct {
	cronEngine     *cron.Cron
	reminders      *app.ReminderService
	logger         *log.Logger
	cronSpecDigest string
	empresa        string
}

func NewReminderScheduler(
	reminders *app.ReminderService,
	logger *log.Logger,
	cronSpecDigest string, // e.g. "0 10 * * *" (10:00 AM daily)
	empresa string, // optional partition; empty means every cycle
) *ReminderScheduler {
	return &ReminderScheduler{
		cronEngine:     cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		reminders:      reminders,
		logger:         logger,
		cronSpecDigest: cronSpecDigest,
		empresa:        empresa,
	}
}

func (s *ReminderScheduler) Start() {
	s.logger.Println("INFO: Starting reminder scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecDigest, func() {
		s.logger.Println("INFO: Cron job triggered for pending-payment digest.")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.reminders.SendPendingDigest(ctx, s.empresa); err != nil {
			s.logger.Printf("ERROR: Error during pending-payment digest: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("FATAL: Could not add pending-payment digest cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Println("INFO: Reminder scheduler started.")
}

func (s *ReminderScheduler) Stop() {
	s.logger.Println("INFO: Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop() // Waits for running jobs.
	<-ctx.Done()
	s.logger.Println("INFO: Reminder scheduler gracefully stopped.")
}
