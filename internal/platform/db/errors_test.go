package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "accounts_email_lower_key"}

	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", dup), ""))
	assert.True(t, IsUniqueViolation(dup, "accounts_email_lower_key"))
	assert.False(t, IsUniqueViolation(dup, "accounts_pkey"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: pgerrcode.CheckViolation}, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", fmt.Errorf("query: %w", context.Canceled), true},
		{"deadline", context.DeadlineExceeded, true},
		{"serialization", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, true},
		{"deadlock", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, true},
		{"cannot connect", &pgconn.PgError{Code: pgerrcode.CannotConnectNow}, true},
		{"unique", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false},
		{"syntax", &pgconn.PgError{Code: pgerrcode.SyntaxError}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}
