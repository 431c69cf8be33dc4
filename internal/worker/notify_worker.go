// Package worker turns queued settlement requests into outgoing mail.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"tripledger/internal/amqp"
	"tripledger/internal/mail"
)

// NotifyWorker consumes settlement request messages and delivers payment
// reminders to debtors.
type NotifyWorker struct {
	sender mail.Sender
}

func NewNotifyWorker(sender mail.Sender) *NotifyWorker {
	return &NotifyWorker{sender: sender}
}

// HandleSettlementRequest renders and sends one payment reminder.
func (w *NotifyWorker) HandleSettlementRequest(ctx context.Context, msg *amqp.SettlementRequestMessage) error {
	slog.InfoContext(ctx, "Processing settlement request",
		"expense_id", msg.ExpenseID,
		"debtor_id", msg.DebtorID)

	if msg.DebtorEmail == "" {
		slog.WarnContext(ctx, "Debtor has no email address, skipping reminder",
			"expense_id", msg.ExpenseID,
			"debtor_id", msg.DebtorID)
		return nil
	}

	rendered, err := mail.RenderSettlementRequest(msg.DebtorEmail, mail.SettlementRequestData{
		DebtorName:         msg.DebtorName,
		PayerName:          msg.PayerName,
		Amount:             msg.Amount,
		Currency:           msg.Currency,
		ExpenseDescription: msg.Description,
		GroupName:          msg.GroupName,
		ExpenseID:          msg.ExpenseID.String(),
	})
	if err != nil {
		return fmt.Errorf("render settlement mail: %w", err)
	}

	if err := w.sender.Send(ctx, rendered); err != nil {
		return fmt.Errorf("send settlement mail: %w", err)
	}

	slog.InfoContext(ctx, "Sent settlement reminder",
		"expense_id", msg.ExpenseID,
		"debtor_id", msg.DebtorID,
		"to", msg.DebtorEmail)

	return nil
}
