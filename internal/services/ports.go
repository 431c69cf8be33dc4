package services

import (
	"context"

	"github.com/google/uuid"

	"tripledger/internal/amqp"
	"tripledger/internal/core"
)

// ExpenseStore is the persistence port for ledger entries.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) error
	GetExpense(ctx context.Context, id uuid.UUID) (core.Expense, error)
	ListGroupExpenses(ctx context.Context, groupID uuid.UUID, onlyUnsettled bool) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense, amountDiffCents int64) error
	DeleteExpense(ctx context.Context, id uuid.UUID) error
	SaveSettlement(ctx context.Context, e core.Expense, appendedNotes []string) error
}

// Directory resolves groups and users.
type Directory interface {
	FindGroup(ctx context.Context, id uuid.UUID) (core.Group, error)
	FindUser(ctx context.Context, id uuid.UUID) (core.User, error)
	FindUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]core.User, error)
}

// Notifier publishes settlement request messages for async delivery.
type Notifier interface {
	PublishSettlementRequest(ctx context.Context, msg *amqp.SettlementRequestMessage) error
}
