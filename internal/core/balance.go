package core

import (
	"time"

	"github.com/google/uuid"
)

type (
	// DebtorShare names one debtor and what they owe on a single entry.
	DebtorShare struct {
		User   uuid.UUID
		Amount Money
	}

	// Receivable is one entry the user paid for on which others still owe.
	Receivable struct {
		ExpenseID   uuid.UUID
		Description string
		Category    string
		Amount      Money // entry total
		OwedToYou   Money
		Date        time.Time
		Debtors     []DebtorShare
	}

	// Debt is one entry on which the user owes the payer.
	Debt struct {
		ExpenseID   uuid.UUID
		Description string
		Category    string
		Amount      Money // entry total
		YourShare   Money
		OwedTo      uuid.UUID
		Date        time.Time
	}

	// BalanceSummary is the per-user view over a group's unsettled
	// entries. It is computed on demand and never persisted.
	BalanceSummary struct {
		Debts          []Debt
		Receivables    []Receivable
		TotalOwed      Money
		TotalToReceive Money
		NetBalance     Money
	}
)

// Summarize folds the given entries into the user's balance summary.
// Settled entries contribute nothing and are skipped. Output follows the
// input order, so for a fixed entry set the result is deterministic.
func Summarize(user uuid.UUID, entries []Expense) BalanceSummary {
	var sum BalanceSummary

	for _, e := range entries {
		if e.Status == StatusSettled {
			continue
		}

		if e.PaidBy == user {
			var owed Money
			var debtors []DebtorShare
			for _, s := range e.Splits {
				if s.User == user {
					continue
				}
				owed = owed.Add(s.Amount)
				debtors = append(debtors, DebtorShare{User: s.User, Amount: s.Amount})
			}
			if owed.Cents > 0 {
				sum.TotalToReceive = sum.TotalToReceive.Add(owed)
				sum.Receivables = append(sum.Receivables, Receivable{
					ExpenseID:   e.ID,
					Description: e.Description,
					Category:    e.Category,
					Amount:      e.Amount,
					OwedToYou:   owed,
					Date:        e.CreatedAt,
					Debtors:     debtors,
				})
			}
			continue
		}

		if share := e.FindShare(user); share != nil {
			sum.TotalOwed = sum.TotalOwed.Add(share.Amount)
			sum.Debts = append(sum.Debts, Debt{
				ExpenseID:   e.ID,
				Description: e.Description,
				Category:    e.Category,
				Amount:      e.Amount,
				YourShare:   share.Amount,
				OwedTo:      e.PaidBy,
				Date:        e.CreatedAt,
			})
		}
	}

	sum.NetBalance = sum.TotalToReceive.Sub(sum.TotalOwed)
	return sum
}
