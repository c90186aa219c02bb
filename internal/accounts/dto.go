package accounts

import "github.com/faisal-mohamed/rfp/internal/rbac"

type createAccountRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Kind      string `json:"kind,omitempty"`
	Password  string `json:"password"`
}

func (r createAccountRequest) draft() Draft {
	return Draft{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Role:      r.Role,
		Kind:      r.Kind,
		Password:  r.Password,
	}
}

type updateAccountRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Role      *string `json:"role,omitempty"`
	Active    *bool   `json:"active,omitempty"`
	Password  *string `json:"password,omitempty"`
}

func (r updateAccountRequest) patch() Patch {
	return Patch{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Role:      r.Role,
		Active:    r.Active,
		Password:  r.Password,
	}
}

type deleteAccountResponse struct {
	Message string  `json:"message"`
	Removed Removal `json:"removed"`
}

type statsResponse struct {
	Stats
	Roles []rbac.Role `json:"roles"`
}
