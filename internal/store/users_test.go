package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/storefront/internal/identity"
)

func TestUsers_CreateAndAuthenticate(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	p, err := s.CreateUser(ctx, " Admin@Campus.edu ", "secret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, "admin@campus.edu", p.Email)

	got, err := s.Authenticate(ctx, "admin@campus.edu", "secret")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = s.Authenticate(ctx, "admin@campus.edu", "wrong")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	_, err = s.Authenticate(ctx, "ghost@campus.edu", "secret")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestUsers_Duplicate(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "a@campus.edu", "pw", bcrypt.MinCost)
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "A@campus.edu", "pw2", bcrypt.MinCost)
	assert.ErrorIs(t, err, identity.ErrUserExists)
}

func TestUsers_List(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "b@campus.edu", "pw", bcrypt.MinCost)
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "a@campus.edu", "pw", bcrypt.MinCost)
	require.NoError(t, err)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@campus.edu", users[0].Email)
	assert.NotEmpty(t, users[0].CreatedAt)
}

func TestUsers_SatisfiesDirectory(t *testing.T) {
	var _ identity.Directory = createTestStore(t)
}
