package accounts

import (
	"math"
	"time"

	"github.com/faisal-mohamed/rfp/internal/rbac"
	"github.com/faisal-mohamed/rfp/internal/shared"
)

// Account is the projection of a managed account. It never carries the credential hash.
type Account struct {
	ID          string      `json:"id"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Email       string      `json:"email"`
	Role        rbac.Role   `json:"role"`
	Kind        rbac.Kind   `json:"kind"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"created_at"`
	CreatedBy   *string     `json:"created_by,omitempty"`
	Creator     *CreatorRef `json:"creator,omitempty"`
	LastLoginAt *time.Time  `json:"last_login_at,omitempty"`
}

// Principal returns the identity the account acts as once authenticated.
func (a Account) Principal() rbac.Principal {
	return rbac.Principal{ID: a.ID, Role: a.Role, Kind: a.Kind}
}

// CreatorRef holds display fields of the account that created another one. It is
// resolved by id at read time and is nil once the creator has been deleted.
type CreatorRef struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Draft carries the input of a new account.
type Draft struct {
	FirstName string
	LastName  string
	Email     string
	Role      string
	Kind      string
	Password  string
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Role      *string
	Active    *bool
	Password  *string
}

// Filter narrows a listing. Zero values do not filter.
type Filter struct {
	Search string
	Role   *rbac.Role
	Active *bool
}

// Page selects a window of a listing. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows skipped before the window. A window that
// starts beyond math.MaxInt is clamped there, which lies past every listing.
func (p Page) Offset() int {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// ListResult is one page of accounts plus the total match count.
type ListResult struct {
	Accounts   []Account         `json:"accounts"`
	Total      int               `json:"total"`
	Pagination shared.Pagination `json:"pagination"`
}

// Removal confirms a hard delete with the identity fields of the removed account.
type Removal struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Stats summarises the roster. RoleBreakdown always holds every role.
type Stats struct {
	Total           int               `json:"total"`
	Active          int               `json:"active"`
	Inactive        int               `json:"inactive"`
	RecentlyCreated int               `json:"recently_created"`
	RoleBreakdown   map[rbac.Role]int `json:"role_breakdown"`
}

// NewRecord is what the store persists for a created account.
type NewRecord struct {
	Account
	PasswordHash string
}

// Changes is a validated, normalized Patch ready for the store.
type Changes struct {
	FirstName    *string
	LastName     *string
	Email        *string
	Role         *rbac.Role
	Active       *bool
	PasswordHash *string
}

// Empty reports whether no column would be written.
func (c Changes) Empty() bool {
	return c.FirstName == nil && c.LastName == nil && c.Email == nil &&
		c.Role == nil && c.Active == nil && c.PasswordHash == nil
}

// Fields lists the names of the columns being written, for auditing.
func (c Changes) Fields() []string {
	var fields []string
	if c.FirstName != nil {
		fields = append(fields, "first_name")
	}
	if c.LastName != nil {
		fields = append(fields, "last_name")
	}
	if c.Email != nil {
		fields = append(fields, "email")
	}
	if c.Role != nil {
		fields = append(fields, "role")
	}
	if c.Active != nil {
		fields = append(fields, "active")
	}
	if c.PasswordHash != nil {
		fields = append(fields, "password")
	}
	return fields
}

// Totals are the aggregate counters read for Stats.
type Totals struct {
	Total           int
	Active          int
	RecentlyCreated int
}
