package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SharePending ShareStatus = "pending"
	SharePaid    ShareStatus = "paid"
	ShareDispute ShareStatus = "dispute"
)

const (
	StatusPending  ExpenseStatus = "pending"
	StatusDisputed ExpenseStatus = "disputed"
	StatusSettled  ExpenseStatus = "settled"
)

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type (
	ShareStatus   string
	ExpenseStatus string
	Role          string

	Money struct {
		Cents int64
	}

	// Share is one member's portion of an expense. Amount is what the
	// member still owes; settling zeroes it.
	Share struct {
		User   uuid.UUID
		Amount Money
		Status ShareStatus
	}

	// Receipt references an uploaded receipt asset.
	Receipt struct {
		ID  string
		URL string
	}

	Expense struct {
		ID          uuid.UUID
		GroupID     uuid.UUID
		Description string
		Amount      Money
		Category    string
		PaidBy      uuid.UUID
		Status      ExpenseStatus
		Splits      []Share
		Receipt     *Receipt
		Notes       []string
		CreatedAt   time.Time
		Version     int64
	}

	Member struct {
		User uuid.UUID
		Role Role
	}

	// Group is a travel group. TotalExpenses is a stored running sum,
	// adjusted in the same transaction as every expense create, delete
	// and amount update.
	Group struct {
		ID            uuid.UUID
		Name          string
		Destination   string
		Currency      string
		Members       []Member
		TotalExpenses Money
		CreatedAt     time.Time
	}

	User struct {
		ID    uuid.UUID
		Name  string
		Email string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrMissingGroup     = errors.New("missing group id")
	ErrMissingPayer     = errors.New("missing payer id")

	ErrGroupNotFound   = errors.New("group not found")
	ErrExpenseNotFound = errors.New("expense not found")
	ErrUserNotFound    = errors.New("user not found")

	ErrUnauthorized = errors.New("not authorized")

	ErrEmptySplit           = errors.New("at least one person must be selected to split the expense")
	ErrNotGroupMember       = errors.New("user is not a member of the group")
	ErrNotInSplit           = errors.New("user not part of this expense split")
	ErrNoOutstandingDebtors = errors.New("no users owe money for this expense")
	ErrSplitLocked          = errors.New("split has settled or disputed shares")

	ErrVersionConflict = errors.New("expense was modified concurrently")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (s ShareStatus) Valid() bool {
	switch s {
	case SharePending, SharePaid, ShareDispute:
		return true
	}
	return false
}

func (s ExpenseStatus) Valid() bool {
	switch s {
	case StatusPending, StatusDisputed, StatusSettled:
		return true
	}
	return false
}

func (e Expense) Validate() error {
	if e.GroupID == uuid.Nil {
		return ErrMissingGroup
	}
	if e.PaidBy == uuid.Nil {
		return ErrMissingPayer
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if !e.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// FindShare returns a pointer into Splits for the given user, or nil.
func (e *Expense) FindShare(user uuid.UUID) *Share {
	for i := range e.Splits {
		if e.Splits[i].User == user {
			return &e.Splits[i]
		}
	}
	return nil
}

func (g Group) IsMember(user uuid.UUID) bool {
	for _, m := range g.Members {
		if m.User == user {
			return true
		}
	}
	return false
}

func (g Group) IsAdmin(user uuid.UUID) bool {
	for _, m := range g.Members {
		if m.User == user && m.Role == RoleAdmin {
			return true
		}
	}
	return false
}

// MemberIDs returns the ids of all group members, in membership order.
func (g Group) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.User
	}
	return ids
}
