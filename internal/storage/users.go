package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tripledger/internal/core"
)

type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (r *Repository) RegisterUser(ctx context.Context, name, email, password string) (core.User, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		return core.User{}, fmt.Errorf("register user: name, email and password are required")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := core.User{
		ID:    uuid.New(),
		Name:  name,
		Email: strings.ToLower(strings.TrimSpace(email)),
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID.String(), user.Name, user.Email, string(hashed), time.Now().UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.User{}, ErrEmailExists
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (r *Repository) Authenticate(ctx context.Context, email, password string) (core.User, error) {
	var (
		idStr string
		user  core.User
		hash  string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&idStr, &user.Name, &user.Email, &hash)
	if err == sql.ErrNoRows {
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("select user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return core.User{}, ErrInvalidCredentials
	}

	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return core.User{}, fmt.Errorf("parse user id: %w", err)
	}
	return user, nil
}

func (r *Repository) FindUser(ctx context.Context, id uuid.UUID) (core.User, error) {
	user := core.User{ID: id}
	err := r.db.QueryRowContext(ctx,
		`SELECT name, email FROM users WHERE id = ?`, id.String()).
		Scan(&user.Name, &user.Email)
	if err == sql.ErrNoRows {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

// FindUsers resolves a batch of user ids. Unknown ids are simply absent from
// the result.
func (r *Repository) FindUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]core.User, error) {
	users := make(map[uuid.UUID]core.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idStr string
		var u core.User
		if err := rows.Scan(&idStr, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse user id: %w", err)
		}
		u.ID = id
		users[id] = u
	}
	return users, rows.Err()
}

func (r *Repository) CreateSession(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*Session, error) {
	token, err := generateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	session := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		session.ID.String(), session.UserID.String(), session.Token, session.ExpiresAt, session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return session, nil
}

// SessionUser returns the user id for a session token, validating expiry.
func (r *Repository) SessionUser(ctx context.Context, token string) (uuid.UUID, error) {
	var (
		userIDStr string
		expiresAt time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&userIDStr, &expiresAt)
	if err == sql.ErrNoRows {
		return uuid.Nil, ErrInvalidSession
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("select session: %w", err)
	}

	if time.Now().After(expiresAt) {
		return uuid.Nil, ErrExpiredSession
	}

	return uuid.Parse(userIDStr)
}

func (r *Repository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

func generateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
