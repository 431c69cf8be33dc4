package core

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func validExpense() Expense {
	return Expense{
		GroupID:     uuid.New(),
		Description: "museum tickets",
		Amount:      Money{Cents: 4500},
		Category:    "activities",
		PaidBy:      uuid.New(),
		Status:      StatusPending,
	}
}

func TestExpenseValidate(t *testing.T) {
	if err := validExpense().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Expense)
	}{
		{"missing group", func(e *Expense) { e.GroupID = uuid.Nil }},
		{"missing payer", func(e *Expense) { e.PaidBy = uuid.Nil }},
		{"empty description", func(e *Expense) { e.Description = "  " }},
		{"long description", func(e *Expense) { e.Description = strings.Repeat("x", 201) }},
		{"zero amount", func(e *Expense) { e.Amount = Money{} }},
		{"empty category", func(e *Expense) { e.Category = "" }},
		{"bad status", func(e *Expense) { e.Status = "closed" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validExpense()
			tc.mutate(&e)
			if err := e.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestGroupMembership(t *testing.T) {
	admin, member, outsider := uuid.New(), uuid.New(), uuid.New()
	g := Group{
		ID: uuid.New(),
		Members: []Member{
			{User: admin, Role: RoleAdmin},
			{User: member, Role: RoleMember},
		},
	}

	if !g.IsMember(admin) || !g.IsMember(member) {
		t.Fatalf("members not recognized")
	}
	if g.IsMember(outsider) {
		t.Fatalf("outsider recognized as member")
	}
	if !g.IsAdmin(admin) {
		t.Fatalf("admin not recognized")
	}
	if g.IsAdmin(member) || g.IsAdmin(outsider) {
		t.Fatalf("non-admin recognized as admin")
	}

	ids := g.MemberIDs()
	if len(ids) != 2 || ids[0] != admin || ids[1] != member {
		t.Fatalf("member ids out of order: %v", ids)
	}
}
