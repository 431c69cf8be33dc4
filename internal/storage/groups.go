package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tripledger/internal/core"
)

func (r *Repository) CreateGroup(ctx context.Context, name, destination, currency string, createdBy uuid.UUID) (core.Group, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(currency) == "" {
		return core.Group{}, fmt.Errorf("create group: name and currency are required")
	}

	group := core.Group{
		ID:          uuid.New(),
		Name:        name,
		Destination: destination,
		Currency:    currency,
		Members:     []core.Member{{User: createdBy, Role: core.RoleAdmin}},
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Group{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (id, name, destination, currency, total_expenses_cents, created_by, created_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		group.ID.String(), group.Name, group.Destination, group.Currency, createdBy.String(), group.CreatedAt)
	if err != nil {
		return core.Group{}, fmt.Errorf("insert group: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		group.ID.String(), createdBy.String(), string(core.RoleAdmin), group.CreatedAt)
	if err != nil {
		return core.Group{}, fmt.Errorf("insert group admin: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Group{}, fmt.Errorf("commit: %w", err)
	}
	return group, nil
}

func (r *Repository) AddMember(ctx context.Context, groupID, userID uuid.UUID, role core.Role) error {
	if role != core.RoleAdmin && role != core.RoleMember {
		return fmt.Errorf("add member: unknown role %q", role)
	}
	if _, err := r.FindUser(ctx, userID); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_members (group_id, user_id, role, joined_at)
		 SELECT ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM groups WHERE id = ?)`,
		groupID.String(), userID.String(), string(role), time.Now().UTC(), groupID.String())
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either the group does not exist or the user is already a member.
		if _, err := r.FindGroup(ctx, groupID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) FindGroup(ctx context.Context, id uuid.UUID) (core.Group, error) {
	group := core.Group{ID: id}
	var totalCents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT name, destination, currency, total_expenses_cents, created_at FROM groups WHERE id = ?`,
		id.String()).
		Scan(&group.Name, &group.Destination, &group.Currency, &totalCents, &group.CreatedAt)
	if err == sql.ErrNoRows {
		return core.Group{}, core.ErrGroupNotFound
	}
	if err != nil {
		return core.Group{}, fmt.Errorf("select group: %w", err)
	}
	group.TotalExpenses = core.Money{Cents: totalCents}

	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, role FROM group_members WHERE group_id = ? ORDER BY joined_at, user_id`,
		id.String())
	if err != nil {
		return core.Group{}, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userStr, roleStr string
		if err := rows.Scan(&userStr, &roleStr); err != nil {
			return core.Group{}, fmt.Errorf("scan member: %w", err)
		}
		userID, err := uuid.Parse(userStr)
		if err != nil {
			return core.Group{}, fmt.Errorf("parse member id: %w", err)
		}
		group.Members = append(group.Members, core.Member{User: userID, Role: core.Role(roleStr)})
	}
	return group, rows.Err()
}
