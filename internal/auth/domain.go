package auth

import (
	"time"

	"github.com/faisal-mohamed/rfp/internal/rbac"
)

// User is the credential-bearing view of an account used during authentication.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         rbac.Role
	Kind         rbac.Kind
	Active       bool
	LastLoginAt  *time.Time
}

// Principal returns the identity the user acts as.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{ID: u.ID, Role: u.Role, Kind: u.Kind}
}
