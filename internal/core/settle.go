package core

import (
	"fmt"

	"github.com/google/uuid"
)

// DeriveStatus reduces the share statuses to the entry status. The entry is
// never set independently of its shares:
//   - settled when every share is paid or carries nothing,
//   - else disputed when any share is under dispute,
//   - else pending.
func DeriveStatus(splits []Share) ExpenseStatus {
	allPaid := true
	anyDispute := false
	for _, s := range splits {
		if s.Status != SharePaid && !s.Amount.IsZero() {
			allPaid = false
		}
		if s.Status == ShareDispute {
			anyDispute = true
		}
	}
	switch {
	case allPaid:
		return StatusSettled
	case anyDispute:
		return StatusDisputed
	default:
		return StatusPending
	}
}

// Settle marks the acting member's share as paid, zeroing it, and appends an
// audit note. Settling a share that was under dispute records the dispute as
// resolved. Re-settling an already paid share is a no-op on the numeric
// state but still appends a note. The entry status is recomputed.
func (e *Expense) Settle(user uuid.UUID, actorName, note string) error {
	share := e.FindShare(user)
	if share == nil {
		return ErrNotInSplit
	}

	wasDisputed := share.Status == ShareDispute
	share.Amount = Money{}
	share.Status = SharePaid

	if wasDisputed {
		if note == "" {
			note = "No resolution notes provided"
		}
		e.Notes = append(e.Notes, fmt.Sprintf("%s: Resolved their dispute and marked as paid. Note: %s", actorName, note))
	} else {
		if note == "" {
			note = "No notes provided"
		}
		e.Notes = append(e.Notes, fmt.Sprintf("%s: %s", actorName, note))
	}

	e.Status = DeriveStatus(e.Splits)
	return nil
}

// Dispute flags the acting member's share. The debt stays outstanding until
// resolved through Settle; the entry is forced to disputed regardless of the
// other shares.
func (e *Expense) Dispute(user uuid.UUID, actorName, note string) error {
	share := e.FindShare(user)
	if share == nil {
		return ErrNotInSplit
	}

	share.Status = ShareDispute
	e.Status = StatusDisputed

	if note == "" {
		note = "No notes provided"
	}
	e.Notes = append(e.Notes, fmt.Sprintf("%s: %s", actorName, note))
	return nil
}

// OutstandingDebtors returns the shares that still owe money: a positive
// amount not yet marked paid.
func (e *Expense) OutstandingDebtors() []Share {
	var out []Share
	for _, s := range e.Splits {
		if s.Amount.Cents > 0 && s.Status != SharePaid {
			out = append(out, s)
		}
	}
	return out
}
