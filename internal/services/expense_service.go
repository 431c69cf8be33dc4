// Package services orchestrates ledger operations across storage, receipt
// assets, the summary cache and AMQP.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tripledger/internal/amqp"
	"tripledger/internal/assets"
	"tripledger/internal/cache"
	"tripledger/internal/core"
)

// ExpenseService implements the ledger operations with authorization,
// split calculation and settlement notifications.
type ExpenseService struct {
	store    ExpenseStore
	dir      Directory
	receipts assets.Store
	notifier Notifier

	summaries *cache.LRUCache[core.BalanceSummary]

	genMu sync.Mutex
	gens  map[uuid.UUID]uint64
}

func NewExpenseService(store ExpenseStore, dir Directory, receipts assets.Store, notifier Notifier, summaries *cache.LRUCache[core.BalanceSummary]) *ExpenseService {
	return &ExpenseService{
		store:     store,
		dir:       dir,
		receipts:  receipts,
		notifier:  notifier,
		summaries: summaries,
		gens:      make(map[uuid.UUID]uint64),
	}
}

// ReceiptUpload is a raw receipt image attached to a new expense.
type ReceiptUpload struct {
	Blob        []byte
	ContentType string
}

// CreateExpenseInput describes a new ledger entry. Participants are the
// group members the amount is split with; the payer is never listed.
// Leaving Participants empty splits with the whole group.
type CreateExpenseInput struct {
	GroupID      uuid.UUID
	PaidBy       uuid.UUID
	Description  string
	Category     string
	Amount       core.Money
	Participants []uuid.UUID
	Receipt      *ReceiptUpload
}

// Participant pairs a split share with the resolved user record.
type Participant struct {
	User   core.User        `json:"user"`
	Amount core.Money       `json:"amount"`
	Status core.ShareStatus `json:"status"`
}

// ExpenseView is a ledger entry enriched with resolved user records.
type ExpenseView struct {
	core.Expense
	Payer        core.User     `json:"payer"`
	Participants []Participant `json:"participants"`
}

// SettlementRequestResult reports the outcome of a settlement fan-out.
// Requested and Failed partition the outstanding debtors.
type SettlementRequestResult struct {
	Requested []uuid.UUID `json:"requested"`
	Failed    []uuid.UUID `json:"failed"`
}

// CreateExpense validates membership, computes equal splits and stores the
// entry together with the group total increment. A provided receipt is
// uploaded first; upload failure aborts the whole operation.
func (s *ExpenseService) CreateExpense(ctx context.Context, in CreateExpenseInput) (core.Expense, error) {
	group, err := s.dir.FindGroup(ctx, in.GroupID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("find group: %w", err)
	}
	if !group.IsMember(in.PaidBy) {
		return core.Expense{}, core.ErrNotGroupMember
	}

	participants, err := resolveParticipants(group, in.PaidBy, in.Participants)
	if err != nil {
		return core.Expense{}, err
	}

	splits, err := core.ComputeShares(in.Amount, participants)
	if err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		ID:          uuid.New(),
		GroupID:     in.GroupID,
		Description: in.Description,
		Amount:      in.Amount,
		Category:    in.Category,
		PaidBy:      in.PaidBy,
		Status:      core.DeriveStatus(splits),
		Splits:      splits,
		CreatedAt:   time.Now().UTC(),
		Version:     1,
	}

	if in.Receipt != nil {
		if s.receipts == nil {
			return core.Expense{}, errors.New("receipt storage not configured")
		}
		receipt, err := s.receipts.Put(ctx, in.Receipt.Blob, in.Receipt.ContentType)
		if err != nil {
			return core.Expense{}, fmt.Errorf("store receipt: %w", err)
		}
		e.Receipt = &receipt
	}

	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if err := s.store.CreateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.invalidateSummaries(in.GroupID)

	slog.InfoContext(ctx, "Created expense",
		"expense_id", e.ID,
		"group_id", e.GroupID,
		"amount_cents", e.Amount.Cents,
		"splits", len(e.Splits))

	return e, nil
}

// UpdateExpenseInput carries the mutable fields of an entry. Nil means
// leave unchanged. An empty Participants slice splits with the whole
// group, like on create.
type UpdateExpenseInput struct {
	Description  *string
	Category     *string
	Amount       *core.Money
	Participants *[]uuid.UUID
}

// UpdateExpense edits an entry. Only the payer or a group admin may edit.
// Amount or participant changes recompute the splits and adjust the group
// total by the difference; both are rejected once any share has been paid
// or disputed.
func (s *ExpenseService) UpdateExpense(ctx context.Context, actor, id uuid.UUID, in UpdateExpenseInput) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	group, err := s.dir.FindGroup(ctx, e.GroupID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("find group: %w", err)
	}
	if actor != e.PaidBy && !group.IsAdmin(actor) {
		return core.Expense{}, core.ErrUnauthorized
	}

	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Category != nil {
		e.Category = *in.Category
	}

	var amountDiff int64
	resplit := in.Participants != nil
	if in.Amount != nil && in.Amount.Cents != e.Amount.Cents {
		resplit = true
		amountDiff = in.Amount.Cents - e.Amount.Cents
		e.Amount = *in.Amount
	}
	if resplit {
		for _, share := range e.Splits {
			if share.Status != core.SharePending {
				return core.Expense{}, core.ErrSplitLocked
			}
		}

		var participants []uuid.UUID
		if in.Participants != nil {
			participants, err = resolveParticipants(group, e.PaidBy, *in.Participants)
			if err != nil {
				return core.Expense{}, err
			}
		} else {
			participants = make([]uuid.UUID, len(e.Splits))
			for i, share := range e.Splits {
				participants[i] = share.User
			}
		}
		splits, err := core.ComputeShares(e.Amount, participants)
		if err != nil {
			return core.Expense{}, err
		}

		e.Splits = splits
		e.Status = core.DeriveStatus(splits)
	}

	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if err := s.store.UpdateExpense(ctx, e, amountDiff); err != nil {
		return core.Expense{}, err
	}
	e.Version++
	s.invalidateSummaries(e.GroupID)

	return e, nil
}

// DeleteExpense removes an entry and reverses its contribution to the group
// total. Only the payer or a group admin may delete.
func (s *ExpenseService) DeleteExpense(ctx context.Context, actor, id uuid.UUID) error {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	group, err := s.dir.FindGroup(ctx, e.GroupID)
	if err != nil {
		return fmt.Errorf("find group: %w", err)
	}
	if actor != e.PaidBy && !group.IsAdmin(actor) {
		return core.ErrUnauthorized
	}

	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.invalidateSummaries(e.GroupID)

	slog.InfoContext(ctx, "Deleted expense", "expense_id", id, "group_id", e.GroupID)
	return nil
}

// FetchExpenses lists a group's entries for a member, enriched with the
// resolved payer and participant records.
func (s *ExpenseService) FetchExpenses(ctx context.Context, actor, groupID uuid.UUID, onlyUnsettled bool) ([]ExpenseView, error) {
	group, err := s.dir.FindGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("find group: %w", err)
	}
	if !group.IsMember(actor) {
		return nil, core.ErrNotGroupMember
	}

	entries, err := s.store.ListGroupExpenses(ctx, groupID, onlyUnsettled)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	return s.enrich(ctx, entries)
}

// FetchExpense returns a single enriched entry to a group member.
func (s *ExpenseService) FetchExpense(ctx context.Context, actor, id uuid.UUID) (ExpenseView, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return ExpenseView{}, err
	}
	group, err := s.dir.FindGroup(ctx, e.GroupID)
	if err != nil {
		return ExpenseView{}, fmt.Errorf("find group: %w", err)
	}
	if !group.IsMember(actor) {
		return ExpenseView{}, core.ErrNotGroupMember
	}

	views, err := s.enrich(ctx, []core.Expense{e})
	if err != nil {
		return ExpenseView{}, err
	}
	return views[0], nil
}

// Summary aggregates the actor's balances across a group's unsettled and
// disputed entries. Results are cached per group generation.
func (s *ExpenseService) Summary(ctx context.Context, actor, groupID uuid.UUID) (core.BalanceSummary, error) {
	group, err := s.dir.FindGroup(ctx, groupID)
	if err != nil {
		return core.BalanceSummary{}, fmt.Errorf("find group: %w", err)
	}
	if !group.IsMember(actor) {
		return core.BalanceSummary{}, core.ErrNotGroupMember
	}

	key := s.summaryKey(groupID, actor)
	if s.summaries != nil {
		if cached, ok := s.summaries.Get(key); ok {
			return cached, nil
		}
	}

	entries, err := s.store.ListGroupExpenses(ctx, groupID, false)
	if err != nil {
		return core.BalanceSummary{}, fmt.Errorf("list expenses: %w", err)
	}

	summary := core.Summarize(actor, entries)
	if s.summaries != nil {
		s.summaries.Set(key, summary)
	}
	return summary, nil
}

// RequestSettlement publishes one payment reminder per outstanding debtor.
// Only the payer may request. Publishing is fanned out concurrently and
// partial failure is reported rather than aborting the batch.
func (s *ExpenseService) RequestSettlement(ctx context.Context, actor, id uuid.UUID) (SettlementRequestResult, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return SettlementRequestResult{}, err
	}
	if actor != e.PaidBy {
		return SettlementRequestResult{}, core.ErrUnauthorized
	}

	debtors := e.OutstandingDebtors()
	if len(debtors) == 0 {
		return SettlementRequestResult{}, core.ErrNoOutstandingDebtors
	}

	group, err := s.dir.FindGroup(ctx, e.GroupID)
	if err != nil {
		return SettlementRequestResult{}, fmt.Errorf("find group: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(debtors)+1)
	ids = append(ids, e.PaidBy)
	for _, d := range debtors {
		ids = append(ids, d.User)
	}
	users, err := s.dir.FindUsers(ctx, ids)
	if err != nil {
		return SettlementRequestResult{}, fmt.Errorf("resolve users: %w", err)
	}
	payer := users[e.PaidBy]

	var (
		mu     sync.Mutex
		result SettlementRequestResult
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, debtor := range debtors {
		debtor := debtor
		g.Go(func() error {
			msg := &amqp.SettlementRequestMessage{
				ExpenseID:   e.ID,
				GroupName:   group.Name,
				Description: e.Description,
				Currency:    group.Currency,
				AmountCents: debtor.Amount.Cents,
				Amount:      debtor.Amount.String(),
				PayerName:   payer.Name,
				DebtorID:    debtor.User,
				DebtorName:  users[debtor.User].Name,
				DebtorEmail: users[debtor.User].Email,
				Timestamp:   time.Now().UTC(),
			}

			err := s.publish(gctx, msg)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.ErrorContext(gctx, "Failed to publish settlement request",
					"expense_id", e.ID,
					"debtor_id", debtor.User,
					"error", err)
				result.Failed = append(result.Failed, debtor.User)
			} else {
				result.Requested = append(result.Requested, debtor.User)
			}
			return nil
		})
	}
	g.Wait()

	return result, nil
}

// SettleExpense marks the actor's share as paid and appends the resolution
// note. Idempotent on the numeric state: settling an already-paid share
// still records the note.
func (s *ExpenseService) SettleExpense(ctx context.Context, actor, id uuid.UUID, note string) (core.Expense, error) {
	return s.transition(ctx, actor, id, note, (*core.Expense).Settle)
}

// DisputeExpense marks the actor's share as disputed while the debt stays
// outstanding.
func (s *ExpenseService) DisputeExpense(ctx context.Context, actor, id uuid.UUID, note string) (core.Expense, error) {
	return s.transition(ctx, actor, id, note, (*core.Expense).Dispute)
}

func (s *ExpenseService) transition(ctx context.Context, actor, id uuid.UUID, note string, apply func(*core.Expense, uuid.UUID, string, string) error) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	group, err := s.dir.FindGroup(ctx, e.GroupID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("find group: %w", err)
	}
	if !group.IsMember(actor) {
		return core.Expense{}, core.ErrNotGroupMember
	}
	user, err := s.dir.FindUser(ctx, actor)
	if err != nil {
		return core.Expense{}, fmt.Errorf("find user: %w", err)
	}

	before := len(e.Notes)
	if err := apply(&e, actor, user.Name, note); err != nil {
		return core.Expense{}, err
	}

	if err := s.store.SaveSettlement(ctx, e, e.Notes[before:]); err != nil {
		return core.Expense{}, err
	}
	e.Version++
	s.invalidateSummaries(e.GroupID)

	slog.InfoContext(ctx, "Applied settlement transition",
		"expense_id", e.ID,
		"user_id", actor,
		"status", e.Status)

	return e, nil
}

func (s *ExpenseService) publish(ctx context.Context, msg *amqp.SettlementRequestMessage) error {
	if s.notifier == nil {
		slog.WarnContext(ctx, "Notifier not available, skipping settlement request",
			"expense_id", msg.ExpenseID,
			"debtor_id", msg.DebtorID)
		return nil
	}
	return s.notifier.PublishSettlementRequest(ctx, msg)
}

// resolveParticipants deduplicates the requested participants, drops the
// payer (its share is implicit) and rejects non-members. When no
// participants are requested the split covers the whole group.
func resolveParticipants(group core.Group, payer uuid.UUID, requested []uuid.UUID) ([]uuid.UUID, error) {
	if len(requested) == 0 {
		requested = group.MemberIDs()
	}
	seen := make(map[uuid.UUID]bool, len(requested))
	out := make([]uuid.UUID, 0, len(requested))
	for _, id := range requested {
		if id == payer || seen[id] {
			continue
		}
		if !group.IsMember(id) {
			return nil, core.ErrNotGroupMember
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, core.ErrEmptySplit
	}
	return out, nil
}

func (s *ExpenseService) enrich(ctx context.Context, entries []core.Expense) ([]ExpenseView, error) {
	idSet := make(map[uuid.UUID]bool)
	for _, e := range entries {
		idSet[e.PaidBy] = true
		for _, share := range e.Splits {
			idSet[share.User] = true
		}
	}
	ids := make([]uuid.UUID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	var users map[uuid.UUID]core.User
	if len(ids) > 0 {
		var err error
		users, err = s.dir.FindUsers(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("resolve users: %w", err)
		}
	}

	views := make([]ExpenseView, len(entries))
	for i, e := range entries {
		view := ExpenseView{Expense: e, Payer: users[e.PaidBy]}
		view.Participants = make([]Participant, len(e.Splits))
		for j, share := range e.Splits {
			view.Participants[j] = Participant{
				User:   users[share.User],
				Amount: share.Amount,
				Status: share.Status,
			}
		}
		views[i] = view
	}
	return views, nil
}

// Summary cache keys embed a per-group generation so any mutation
// invalidates every member's cached summary at once. Stale generations age
// out through the cache's TTL and LRU eviction.
func (s *ExpenseService) summaryKey(group, user uuid.UUID) string {
	s.genMu.Lock()
	gen := s.gens[group]
	s.genMu.Unlock()
	return fmt.Sprintf("%s:%s:%d", group, user, gen)
}

func (s *ExpenseService) invalidateSummaries(group uuid.UUID) {
	s.genMu.Lock()
	s.gens[group]++
	s.genMu.Unlock()
}
