package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tripledger/internal/core"
)

// CreateExpense inserts the entry with its splits and increments the group's
// running total in the same transaction.
func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var receiptID, receiptURL sql.NullString
	if e.Receipt != nil {
		receiptID = sql.NullString{String: e.Receipt.ID, Valid: true}
		receiptURL = sql.NullString{String: e.Receipt.URL, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, description, amount_cents, category, paid_by, status, receipt_id, receipt_url, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.GroupID.String(), e.Description, e.Amount.Cents, e.Category,
		e.PaidBy.String(), string(e.Status), receiptID, receiptURL, e.Version, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	if err := insertSplits(ctx, tx, e.ID, e.Splits); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE groups SET total_expenses_cents = total_expenses_cents + ? WHERE id = ?`,
		e.Amount.Cents, e.GroupID.String())
	if err != nil {
		return fmt.Errorf("increment group total: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrGroupNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"expense_id", e.ID,
		"group_id", e.GroupID,
		"amount_cents", e.Amount.Cents,
		"splits", len(e.Splits))
	return nil
}

func (r *Repository) GetExpense(ctx context.Context, id uuid.UUID) (core.Expense, error) {
	e := core.Expense{ID: id}
	var (
		groupStr, payerStr, statusStr string
		receiptID, receiptURL         sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT group_id, description, amount_cents, category, paid_by, status, receipt_id, receipt_url, version, created_at
		 FROM expenses WHERE id = ?`, id.String()).
		Scan(&groupStr, &e.Description, &e.Amount.Cents, &e.Category, &payerStr,
			&statusStr, &receiptID, &receiptURL, &e.Version, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("select expense: %w", err)
	}

	if e.GroupID, err = uuid.Parse(groupStr); err != nil {
		return core.Expense{}, fmt.Errorf("parse group id: %w", err)
	}
	if e.PaidBy, err = uuid.Parse(payerStr); err != nil {
		return core.Expense{}, fmt.Errorf("parse payer id: %w", err)
	}
	e.Status = core.ExpenseStatus(statusStr)
	if receiptID.Valid {
		e.Receipt = &core.Receipt{ID: receiptID.String, URL: receiptURL.String}
	}

	if e.Splits, err = r.expenseSplits(ctx, id); err != nil {
		return core.Expense{}, err
	}
	if e.Notes, err = r.expenseNotes(ctx, id); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// ListGroupExpenses returns the group's entries in creation order. With
// onlyUnsettled set, settled entries are filtered out.
func (r *Repository) ListGroupExpenses(ctx context.Context, groupID uuid.UUID, onlyUnsettled bool) ([]core.Expense, error) {
	query := `SELECT id FROM expenses WHERE group_id = ?`
	if onlyUnsettled {
		query += ` AND status != 'settled'`
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, groupID.String())
	if err != nil {
		return nil, fmt.Errorf("select expenses: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, fmt.Errorf("scan expense id: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse expense id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	expenses := make([]core.Expense, 0, len(ids))
	for _, id := range ids {
		e, err := r.GetExpense(ctx, id)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

// UpdateExpense rewrites the entry's mutable fields and splits under an
// optimistic version check, adjusting the group total by amountDiffCents in
// the same transaction.
func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense, amountDiffCents int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE expenses SET description = ?, amount_cents = ?, category = ?, status = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		e.Description, e.Amount.Cents, e.Category, string(e.Status), e.ID.String(), e.Version)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return versionOrMissing(ctx, tx, e.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_splits WHERE expense_id = ?`, e.ID.String()); err != nil {
		return fmt.Errorf("delete splits: %w", err)
	}
	if err := insertSplits(ctx, tx, e.ID, e.Splits); err != nil {
		return err
	}

	if amountDiffCents != 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE groups SET total_expenses_cents = total_expenses_cents + ? WHERE id = ?`,
			amountDiffCents, e.GroupID.String())
		if err != nil {
			return fmt.Errorf("adjust group total: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteExpense removes the entry and decrements the group total in the same
// transaction.
func (r *Repository) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var groupStr string
	var amountCents int64
	err = tx.QueryRowContext(ctx,
		`SELECT group_id, amount_cents FROM expenses WHERE id = ?`, id.String()).
		Scan(&groupStr, &amountCents)
	if err == sql.ErrNoRows {
		return core.ErrExpenseNotFound
	}
	if err != nil {
		return fmt.Errorf("select expense: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE groups SET total_expenses_cents = total_expenses_cents - ? WHERE id = ?`,
		amountCents, groupStr)
	if err != nil {
		return fmt.Errorf("decrement group total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted", "expense_id", id, "amount_cents", amountCents)
	return nil
}

// SaveSettlement persists a settlement or dispute transition: the derived
// entry status, the share states and any appended audit notes, all under an
// optimistic version check so concurrent transitions cannot clobber each
// other.
func (r *Repository) SaveSettlement(ctx context.Context, e core.Expense, appendedNotes []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE expenses SET status = ?, version = version + 1 WHERE id = ? AND version = ?`,
		string(e.Status), e.ID.String(), e.Version)
	if err != nil {
		return fmt.Errorf("update expense status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return versionOrMissing(ctx, tx, e.ID)
	}

	for _, s := range e.Splits {
		_, err = tx.ExecContext(ctx,
			`UPDATE expense_splits SET amount_cents = ?, status = ? WHERE expense_id = ? AND user_id = ?`,
			s.Amount.Cents, string(s.Status), e.ID.String(), s.User.String())
		if err != nil {
			return fmt.Errorf("update split: %w", err)
		}
	}

	now := time.Now().UTC()
	for _, note := range appendedNotes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO expense_notes (expense_id, note, created_at) VALUES (?, ?, ?)`,
			e.ID.String(), note, now)
		if err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repository) expenseSplits(ctx context.Context, id uuid.UUID) ([]core.Share, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, amount_cents, status FROM expense_splits WHERE expense_id = ? ORDER BY position`,
		id.String())
	if err != nil {
		return nil, fmt.Errorf("select splits: %w", err)
	}
	defer rows.Close()

	var splits []core.Share
	for rows.Next() {
		var userStr, statusStr string
		var cents int64
		if err := rows.Scan(&userStr, &cents, &statusStr); err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		userID, err := uuid.Parse(userStr)
		if err != nil {
			return nil, fmt.Errorf("parse split user id: %w", err)
		}
		splits = append(splits, core.Share{
			User:   userID,
			Amount: core.Money{Cents: cents},
			Status: core.ShareStatus(statusStr),
		})
	}
	return splits, rows.Err()
}

func (r *Repository) expenseNotes(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT note FROM expense_notes WHERE expense_id = ? ORDER BY id`, id.String())
	if err != nil {
		return nil, fmt.Errorf("select notes: %w", err)
	}
	defer rows.Close()

	var notes []string
	for rows.Next() {
		var note string
		if err := rows.Scan(&note); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func insertSplits(ctx context.Context, tx *sql.Tx, expenseID uuid.UUID, splits []core.Share) error {
	for i, s := range splits {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_splits (expense_id, user_id, amount_cents, status, position) VALUES (?, ?, ?, ?, ?)`,
			expenseID.String(), s.User.String(), s.Amount.Cents, string(s.Status), i)
		if err != nil {
			return fmt.Errorf("insert split: %w", err)
		}
	}
	return nil
}

// versionOrMissing decides whether a zero-row update means the entry is gone
// or was changed concurrently.
func versionOrMissing(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM expenses WHERE id = ?`, id.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return core.ErrExpenseNotFound
	}
	if err != nil {
		return fmt.Errorf("check expense: %w", err)
	}
	return core.ErrVersionConflict
}
