// Package mail defines the outbound mail port and the settlement-request
// template rendered for debtors.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"
)

// Message is one rendered email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender is the outbound port for delivering mail.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SettlementRequestData carries everything the settlement-request template
// needs.
type SettlementRequestData struct {
	DebtorName         string
	PayerName          string
	Amount             string
	Currency           string
	ExpenseDescription string
	GroupName          string
	ExpenseID          string
}

var settlementRequestTmpl = template.Must(template.New("requestSettlement").Parse(
	`Hi {{.DebtorName}},

{{.PayerName}} has requested that you settle your share of "{{.ExpenseDescription}}"
in the group {{.GroupName}}.

You owe: {{.Amount}} {{.Currency}}

Open the expense ({{.ExpenseID}}) in the app to mark your share as paid or to
raise a dispute.

Safe travels,
tripledger
`))

// RenderSettlementRequest renders the settlement-request email for a debtor.
func RenderSettlementRequest(to string, data SettlementRequestData) (Message, error) {
	var buf bytes.Buffer
	if err := settlementRequestTmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render settlement request: %w", err)
	}
	return Message{
		To:      to,
		Subject: "Settlement Request",
		Body:    buf.String(),
	}, nil
}

// LogSender logs messages instead of delivering them. Default backend for
// local development.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "Mail delivery skipped (log backend)",
		"to", msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.Body))
	return nil
}
