package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Directory verifies credentials.
//
// Authenticate returns ErrInvalidCredentials for a bad email/password pair.
// Any other error means the directory itself is unavailable.
type Directory interface {
	Authenticate(ctx context.Context, email, password string) (Principal, error)
}

// ErrUserExists is returned when adding an email that is already registered.
var ErrUserExists = errors.New("user already exists")

type memoryUser struct {
	principal Principal
	hash      []byte
}

// MemoryDirectory is an in-process Directory with bcrypt password hashes.
type MemoryDirectory struct {
	mu    sync.RWMutex
	cost  int
	users map[string]memoryUser
}

// NewMemoryDirectory creates an empty directory. A cost of zero selects
// bcrypt.DefaultCost.
func NewMemoryDirectory(cost int) *MemoryDirectory {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &MemoryDirectory{
		cost:  cost,
		users: make(map[string]memoryUser),
	}
}

// Add registers a user and returns its principal.
func (d *MemoryDirectory) Add(email, password string) (Principal, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Principal{}, fmt.Errorf("add user: email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return Principal{}, fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[email]; ok {
		return Principal{}, fmt.Errorf("add user %s: %w", email, ErrUserExists)
	}
	p := Principal{UID: uuid.NewString(), Email: email}
	d.users[email] = memoryUser{principal: p, hash: hash}
	return p, nil
}

func (d *MemoryDirectory) Authenticate(ctx context.Context, email, password string) (Principal, error) {
	d.mu.RLock()
	u, ok := d.users[NormalizeEmail(email)]
	d.mu.RUnlock()

	if !ok {
		return Principal{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	return u.principal, nil
}
