package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/storefront/internal/identity"
)

// User is a stored admin account.
type User struct {
	Email     string `db:"email" json:"email"`
	UID       string `db:"uid" json:"uid"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// CreateUser stores a new account with a bcrypt hash of password.
// A cost of zero selects bcrypt.DefaultCost.
func (s *Store) CreateUser(ctx context.Context, email, password string, cost int) (identity.Principal, error) {
	email = identity.NormalizeEmail(email)
	if email == "" || password == "" {
		return identity.Principal{}, fmt.Errorf("create user: email and password are required")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return identity.Principal{}, fmt.Errorf("hash password: %w", err)
	}

	p := identity.Principal{UID: uuid.NewString(), Email: email}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (email, uid, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, p.Email, p.UID, string(hash), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return identity.Principal{}, fmt.Errorf("create user %s: %w", email, identity.ErrUserExists)
		}
		return identity.Principal{}, fmt.Errorf("create user %s: %w", email, err)
	}
	return p, nil
}

// ListUsers returns every account ordered by email.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	if err := s.db.SelectContext(ctx, &users, `
		SELECT email, uid, created_at FROM users ORDER BY email ASC
	`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Authenticate implements identity.Directory.
func (s *Store) Authenticate(ctx context.Context, email, password string) (identity.Principal, error) {
	var row struct {
		Email string `db:"email"`
		UID   string `db:"uid"`
		Hash  string `db:"password_hash"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT email, uid, password_hash FROM users WHERE email = ?
	`, identity.NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Principal{}, identity.ErrInvalidCredentials
	}
	if err != nil {
		return identity.Principal{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.Hash), []byte(password)); err != nil {
		return identity.Principal{}, identity.ErrInvalidCredentials
	}
	return identity.Principal{UID: row.UID, Email: row.Email}, nil
}
