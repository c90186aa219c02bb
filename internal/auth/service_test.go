package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/faisal-mohamed/rfp/internal/rbac"
	"github.com/faisal-mohamed/rfp/internal/shared"
)

type fakeRepo struct {
	users   map[string]*User
	err     error
	touched map[string]time.Time
}

func newFakeRepo(users ...*User) *fakeRepo {
	r := &fakeRepo{users: make(map[string]*User), touched: make(map[string]time.Time)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrUnknownAccount
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*User, error) {
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUnknownAccount
	}
	clone := *u
	return &clone, nil
}

func (r *fakeRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.touched[id] = at
	return nil
}

func testUser(t *testing.T, id, email, password string, role rbac.Role, active bool) *User {
	t.Helper()
	hash, err := NewBcryptHasher(bcrypt.MinCost).Hash(password)
	require.NoError(t, err)
	return &User{ID: id, FirstName: "Test", LastName: id, Email: email, PasswordHash: hash, Role: role, Kind: rbac.KindUser, Active: active}
}

func TestAuthenticate(t *testing.T) {
	repo := newFakeRepo(
		testUser(t, "u1", "jane@example.com", "secret123", rbac.RoleEditor, true),
		testUser(t, "u2", "gone@example.com", "secret123", rbac.RoleEditor, false),
	)
	svc := NewService(repo, NewBcryptHasher(bcrypt.MinCost), nil)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, " Jane@Example.COM ", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	require.NotNil(t, user.LastLoginAt)
	assert.Contains(t, repo.touched, "u1")

	for _, tc := range []struct{ email, password string }{
		{"jane@example.com", "wrong"},
		{"nobody@example.com", "secret123"},
		{"gone@example.com", "secret123"},
	} {
		_, err := svc.Authenticate(ctx, tc.email, tc.password)
		assert.ErrorIs(t, err, shared.ErrInvalidCredentials, tc.email)
	}

	repo.err = errors.New("db down")
	_, err = svc.Authenticate(ctx, "jane@example.com", "secret123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrInvalidCredentials)
}

type countingHasher struct {
	BcryptHasher
	verified []string
}

func (h *countingHasher) Verify(plain, hash string) (bool, error) {
	h.verified = append(h.verified, hash)
	return h.BcryptHasher.Verify(plain, hash)
}

func TestAuthenticateVerifiesEvenWithoutUsableAccount(t *testing.T) {
	repo := newFakeRepo(
		testUser(t, "u1", "jane@example.com", "secret123", rbac.RoleEditor, true),
		testUser(t, "u2", "gone@example.com", "secret123", rbac.RoleEditor, false),
	)
	hasher := &countingHasher{BcryptHasher: NewBcryptHasher(bcrypt.MinCost)}
	svc := NewService(repo, hasher, nil)
	ctx := context.Background()

	for _, email := range []string{"nobody@example.com", "gone@example.com", "jane@example.com"} {
		_, err := svc.Authenticate(ctx, email, "wrong")
		assert.ErrorIs(t, err, shared.ErrInvalidCredentials, email)
	}

	require.Len(t, hasher.verified, 3)
	assert.Equal(t, hasher.verified[0], hasher.verified[1], "unknown and inactive share the decoy hash")
	assert.NotEqual(t, repo.users["u2"].PasswordHash, hasher.verified[1])
	assert.Equal(t, repo.users["u1"].PasswordHash, hasher.verified[2])
}

func TestResolve(t *testing.T) {
	repo := newFakeRepo(
		testUser(t, "u1", "jane@example.com", "x", rbac.RoleApprover, true),
		testUser(t, "u2", "gone@example.com", "x", rbac.RoleApprover, false),
	)
	svc := NewService(repo, NewBcryptHasher(bcrypt.MinCost), nil)

	p, err := svc.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, rbac.Principal{ID: "u1", Role: rbac.RoleApprover, Kind: rbac.KindUser}, p)

	_, err = svc.Resolve(context.Background(), "u2")
	assert.ErrorIs(t, err, ErrUnknownAccount)
	_, err = svc.Resolve(context.Background(), "u3")
	assert.ErrorIs(t, err, ErrUnknownAccount)
}
