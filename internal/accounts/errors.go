package accounts

import (
	"fmt"

	"github.com/faisal-mohamed/rfp/internal/platform/httpx"
)

// Failure kinds of the account lifecycle. Each wraps the httpx sentinel that
// decides its response status.
var (
	ErrUnauthorized          = fmt.Errorf("%w: manage_users permission required", httpx.ErrForbidden)
	ErrNotFound              = fmt.Errorf("account %w", httpx.ErrNotFound)
	ErrDuplicateEmail        = fmt.Errorf("%w: email already belongs to another account", httpx.ErrValidation)
	ErrSelfDeletionForbidden = fmt.Errorf("%w: an account cannot delete itself", httpx.ErrValidation)
	ErrInvalidInput          = fmt.Errorf("%w: invalid input", httpx.ErrValidation)
	ErrUnavailable           = fmt.Errorf("account store %w", httpx.ErrUnavailable)
)
