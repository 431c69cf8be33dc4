package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SettlementRequestMessage carries everything the notify worker needs to
// compose a payment reminder, so the worker never reads the database.
type SettlementRequestMessage struct {
	ExpenseID   uuid.UUID `json:"expense_id"`
	GroupName   string    `json:"group_name"`
	Description string    `json:"description"`
	Currency    string    `json:"currency"`
	AmountCents int64     `json:"amount_cents"`
	Amount      string    `json:"amount"`
	PayerName   string    `json:"payer_name"`
	DebtorID    uuid.UUID `json:"debtor_id"`
	DebtorName  string    `json:"debtor_name"`
	DebtorEmail string    `json:"debtor_email"`
	Timestamp   time.Time `json:"timestamp"`
}

func (m *SettlementRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SettlementRequestMessageFromJSON(data []byte) (*SettlementRequestMessage, error) {
	var msg SettlementRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
