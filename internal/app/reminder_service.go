// internal/app/reminder_service.go
package app

import (
	"context"
	"fmt"
	"log"

	"reseller_ledger/internal/domain/ledger"
	domainTelegram "reseller_ledger/internal/domain/telegram"

	"github.com/Rhymond/go-money"
)

// ReminderService turns unpaid client balances into courteous payment
// reminder messages and delivers a digest of them to the configured chat.
type ReminderService struct {
	client domainTelegram.Client
	repo   ledger.Repository
	chatID int64
	logger *log.Logger
}

func NewReminderService(client domainTelegram.Client, repo ledger.Repository, chatID int64, logger *log.Logger) *ReminderService {
	return &ReminderService{
		client: client,
		repo:   repo,
		chatID: chatID,
		logger: logger,
	}
}

// BuildReminder renders the reminder text for one client order. It returns
// false when there is nothing to remind about: the client has no pending
// balance (everything paid, or no priced items yet).
func BuildReminder(o *ledger.Order) (string, bool) {
	pending := ledger.OrderPending(o)
	if !pending.IsPositive() {
		return "", false
	}
	amount := money.New(pending.Shift(2).Round(0).IntPart(), money.USD).Display()
	name := o.ClienteNombre
	if name == "" {
		name = "cliente"
	}
	msg := fmt.Sprintf(
		"¡Hola %s! Te escribo de GlowManager ✨ Te comento que tienes un saldo pendiente de %s de tu pedido de cosméticos. ¿Podrás realizar el pago hoy? 🌸",
		name, amount)
	return msg, true
}

// SendPendingDigest walks every cycle (optionally one empresa partition) and
// sends one reminder per client that still owes a balance. Send failures on
// individual messages are logged and skipped so one bad chat does not stall
// the digest.
func (s *ReminderService) SendPendingDigest(ctx context.Context, empresa string) error {
	cycles, err := s.repo.ListCycles(ctx)
	if err != nil {
		return fmt.Errorf("pending digest: %w", err)
	}

	sent := 0
	for _, c := range cycles {
		if empresa != "" && c.Empresa != empresa {
			continue
		}
		orders, err := s.repo.ListOrders(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("pending digest: orders for cycle %s: %w", c.ID, err)
		}
		for _, o := range orders {
			msg, ok := BuildReminder(o)
			if !ok {
				continue
			}
			if err := s.client.SendMessage(s.chatID, msg, nil); err != nil {
				s.logger.Printf("ERROR: Failed to send reminder for order %s: %v", o.ID, err)
				continue
			}
			sent++
		}
	}
	s.logger.Printf("INFO: Pending-payment digest done, %d reminders sent.", sent)
	return nil
}
