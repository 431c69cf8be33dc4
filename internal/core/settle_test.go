package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testExpense(t *testing.T, debtors int) (*Expense, []uuid.UUID) {
	t.Helper()
	payer := uuid.New()
	parts := members(debtors)
	amount := Money{Cents: 9000}
	shares, err := ComputeShares(amount, parts)
	if err != nil {
		t.Fatalf("compute shares: %v", err)
	}
	e := &Expense{
		ID:          uuid.New(),
		GroupID:     uuid.New(),
		Description: "hotel",
		Amount:      amount,
		Category:    "lodging",
		PaidBy:      payer,
		Status:      DeriveStatus(shares),
		Splits:      shares,
		CreatedAt:   time.Now(),
		Version:     1,
	}
	return e, parts
}

func TestDeriveStatus(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	cases := []struct {
		name   string
		splits []Share
		want   ExpenseStatus
	}{
		{"all pending", []Share{
			{User: a, Amount: Money{Cents: 10}, Status: SharePending},
			{User: b, Amount: Money{Cents: 10}, Status: SharePending},
		}, StatusPending},
		{"all paid", []Share{
			{User: a, Status: SharePaid},
			{User: b, Status: SharePaid},
		}, StatusSettled},
		{"zero share counts as paid", []Share{
			{User: a, Status: SharePaid},
			{User: b, Amount: Money{}, Status: SharePending},
		}, StatusSettled},
		{"any dispute wins over pending", []Share{
			{User: a, Amount: Money{Cents: 10}, Status: ShareDispute},
			{User: b, Amount: Money{Cents: 10}, Status: SharePending},
		}, StatusDisputed},
		{"no splits is settled", nil, StatusSettled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStatus(tc.splits); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSettleZeroesShare(t *testing.T) {
	e, parts := testExpense(t, 2)

	if err := e.Settle(parts[0], "Ana", "paid in cash"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	share := e.FindShare(parts[0])
	if share.Amount.Cents != 0 || share.Status != SharePaid {
		t.Fatalf("share not zeroed: %+v", share)
	}
	if e.Status != StatusPending {
		t.Fatalf("entry status = %q, want pending while other share open", e.Status)
	}
	if len(e.Notes) != 1 || !strings.HasPrefix(e.Notes[0], "Ana: ") {
		t.Fatalf("unexpected notes: %v", e.Notes)
	}

	if err := e.Settle(parts[1], "Bo", ""); err != nil {
		t.Fatalf("settle second: %v", err)
	}
	if e.Status != StatusSettled {
		t.Fatalf("entry status = %q, want settled", e.Status)
	}
}

func TestSettleIdempotentOnNumericState(t *testing.T) {
	e, parts := testExpense(t, 2)

	for i := 0; i < 2; i++ {
		if err := e.Settle(parts[0], "Ana", "again"); err != nil {
			t.Fatalf("settle %d: %v", i, err)
		}
	}
	share := e.FindShare(parts[0])
	if share.Amount.Cents != 0 || share.Status != SharePaid {
		t.Fatalf("numeric state unstable: %+v", share)
	}
	// The note list keeps growing; that is the documented side effect.
	if len(e.Notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(e.Notes))
	}
}

func TestSettleNotInSplit(t *testing.T) {
	e, _ := testExpense(t, 2)
	if err := e.Settle(uuid.New(), "Zed", ""); !errors.Is(err, ErrNotInSplit) {
		t.Fatalf("got %v, want ErrNotInSplit", err)
	}
	if err := e.Dispute(uuid.New(), "Zed", ""); !errors.Is(err, ErrNotInSplit) {
		t.Fatalf("dispute: got %v, want ErrNotInSplit", err)
	}
}

func TestDisputeKeepsDebtOutstanding(t *testing.T) {
	e, parts := testExpense(t, 2)
	before := e.FindShare(parts[0]).Amount

	if err := e.Dispute(parts[0], "Ana", "I was not there"); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	share := e.FindShare(parts[0])
	if share.Status != ShareDispute {
		t.Fatalf("share status = %q, want dispute", share.Status)
	}
	if share.Amount != before {
		t.Fatalf("dispute must not change the owed amount")
	}
	if e.Status != StatusDisputed {
		t.Fatalf("entry status = %q, want disputed", e.Status)
	}
}

func TestDisputeThenResolve(t *testing.T) {
	e, parts := testExpense(t, 2)

	if err := e.Dispute(parts[0], "Ana", "wrong amount"); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if err := e.Settle(parts[0], "Ana", "sorted it out"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	share := e.FindShare(parts[0])
	if share.Amount.Cents != 0 || share.Status != SharePaid {
		t.Fatalf("share not resolved: %+v", share)
	}
	if e.Status != StatusPending {
		t.Fatalf("entry status = %q, want pending (second debtor open)", e.Status)
	}
	last := e.Notes[len(e.Notes)-1]
	if !strings.Contains(last, "Resolved their dispute") {
		t.Fatalf("resolution note missing: %q", last)
	}

	// With the second debtor already paid the resolution settles the entry.
	if err := e.Settle(parts[1], "Bo", ""); err != nil {
		t.Fatalf("settle second: %v", err)
	}
	if e.Status != StatusSettled {
		t.Fatalf("entry status = %q, want settled", e.Status)
	}
}

func TestStatusAlwaysMatchesReducer(t *testing.T) {
	e, parts := testExpense(t, 3)

	steps := []func() error{
		func() error { return e.Dispute(parts[1], "Bo", "") },
		func() error { return e.Settle(parts[0], "Ana", "") },
		func() error { return e.Settle(parts[1], "Bo", "resolved") },
		func() error { return e.Settle(parts[2], "Cy", "") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if want := DeriveStatus(e.Splits); e.Status != want {
			t.Fatalf("step %d: stored status %q, reducer says %q", i, e.Status, want)
		}
	}
	if e.Status != StatusSettled {
		t.Fatalf("final status = %q, want settled", e.Status)
	}
}

func TestOutstandingDebtors(t *testing.T) {
	e, parts := testExpense(t, 3)

	if err := e.Settle(parts[0], "Ana", ""); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if err := e.Dispute(parts[1], "Bo", ""); err != nil {
		t.Fatalf("dispute: %v", err)
	}

	out := e.OutstandingDebtors()
	if len(out) != 2 {
		t.Fatalf("got %d outstanding, want 2", len(out))
	}
	for _, s := range out {
		if s.User == parts[0] {
			t.Fatalf("paid share listed as outstanding")
		}
	}
}
