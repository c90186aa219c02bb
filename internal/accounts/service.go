package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/faisal-mohamed/rfp/internal/rbac"
	"github.com/faisal-mohamed/rfp/internal/shared"
)

// recentWindow bounds the RecentlyCreated counter of Stats.
const recentWindow = 7 * 24 * time.Hour

// Hasher turns credential material into an opaque hash.
type Hasher interface {
	Hash(plain string) (string, error)
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SessionRevoker schedules the removal of every live session of an account.
type SessionRevoker interface {
	EnqueueRevokeSessions(ctx context.Context, accountID, reason string) error
}

// OperationObserver counts lifecycle operations by outcome.
type OperationObserver interface {
	ObserveAccountOperation(operation, outcome string)
}

// Dependencies groups the collaborators of Service. Audit, Revoker and Metrics are optional.
type Dependencies struct {
	Repo    Repository
	Hasher  Hasher
	Audit   AuditRecorder
	Revoker SessionRevoker
	Metrics OperationObserver
	Logger  *slog.Logger
}

// Service enforces the account lifecycle rules on top of a Repository.
type Service struct {
	repo     Repository
	hasher   Hasher
	audit    AuditRecorder
	revoker  SessionRevoker
	metrics  OperationObserver
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// NewService constructs a Service.
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     deps.Repo,
		hasher:   deps.Hasher,
		audit:    deps.Audit,
		revoker:  deps.Revoker,
		metrics:  deps.Metrics,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

type draftInput struct {
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
	Email     string `validate:"required,email,max=254"`
	Password  string `validate:"required,max=72"`
}

// Create registers a new active account on behalf of p.
func (s *Service) Create(ctx context.Context, p rbac.Principal, draft Draft) (acc Account, err error) {
	defer s.observe("create", &err)
	if err := authorize(p); err != nil {
		return Account{}, err
	}

	in := draftInput{
		FirstName: strings.TrimSpace(draft.FirstName),
		LastName:  strings.TrimSpace(draft.LastName),
		Email:     normalizeEmail(draft.Email),
		Password:  draft.Password,
	}
	if err := s.validate.Struct(in); err != nil {
		return Account{}, invalidInput(err)
	}
	role, err := rbac.ParseRole(draft.Role)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	kind := rbac.KindUser
	if strings.TrimSpace(draft.Kind) != "" {
		if kind, err = rbac.ParseKind(draft.Kind); err != nil {
			return Account{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return Account{}, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return Account{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Account{}, fmt.Errorf("hash credential: %w", err)
	}

	creator := p.ID
	acc = Account{
		ID:        s.newID(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Role:      role,
		Kind:      kind,
		Active:    true,
		CreatedAt: s.now().UTC(),
		CreatedBy: &creator,
	}
	if err := s.repo.Create(ctx, NewRecord{Account: acc, PasswordHash: hash}); err != nil {
		return Account{}, fmt.Errorf("create account: %w", err)
	}

	s.record(ctx, p, "account.create", acc.ID, map[string]any{
		"email": acc.Email,
		"role":  acc.Role,
		"kind":  acc.Kind,
	})
	return acc, nil
}

// Update applies the fields present in patch to the account identified by id.
func (s *Service) Update(ctx context.Context, p rbac.Principal, id string, patch Patch) (acc Account, err error) {
	defer s.observe("update", &err)
	if err := authorize(p); err != nil {
		return Account{}, err
	}

	changes, err := s.prepareChanges(patch)
	if err != nil {
		return Account{}, err
	}

	var before Account
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		before = current
		if changes.Email != nil && *changes.Email != current.Email {
			other, err := repo.FindByEmail(ctx, *changes.Email)
			switch {
			case err == nil && other.ID != current.ID:
				return ErrDuplicateEmail
			case err != nil && !errors.Is(err, ErrNotFound):
				return fmt.Errorf("check email: %w", err)
			}
		}
		if patch.Password != nil {
			hash, err := s.hasher.Hash(*patch.Password)
			if err != nil {
				return fmt.Errorf("hash credential: %w", err)
			}
			changes.PasswordHash = &hash
		}
		if changes.Empty() {
			acc = current
			return nil
		}
		acc, err = repo.Update(ctx, id, changes)
		return err
	})
	if err != nil {
		return Account{}, fmt.Errorf("update account: %w", err)
	}
	if changes.Empty() {
		return acc, nil
	}

	s.record(ctx, p, "account.update", acc.ID, map[string]any{"fields": changes.Fields()})
	switch {
	case before.Active && !acc.Active:
		s.revokeSessions(ctx, acc.ID, "deactivated")
	case changes.PasswordHash != nil:
		s.revokeSessions(ctx, acc.ID, "credential_rotated")
	}
	return acc, nil
}

// Delete permanently removes the account identified by id. An account can never
// delete itself.
func (s *Service) Delete(ctx context.Context, p rbac.Principal, id string) (removed Removal, err error) {
	defer s.observe("delete", &err)
	if err := authorize(p); err != nil {
		return Removal{}, err
	}
	if id == p.ID {
		return Removal{}, ErrSelfDeletionForbidden
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		target, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		removed = Removal{ID: target.ID, FirstName: target.FirstName, LastName: target.LastName, Email: target.Email}
		return nil
	})
	if err != nil {
		return Removal{}, fmt.Errorf("delete account: %w", err)
	}

	s.record(ctx, p, "account.delete", removed.ID, map[string]any{"email": removed.Email})
	s.revokeSessions(ctx, removed.ID, "deleted")
	return removed, nil
}

// Get returns a single account projection.
func (s *Service) Get(ctx context.Context, p rbac.Principal, id string) (acc Account, err error) {
	defer s.observe("get", &err)
	if err := authorize(p); err != nil {
		return Account{}, err
	}
	acc, err = s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

// List returns one page of accounts matching filter, newest first.
func (s *Service) List(ctx context.Context, p rbac.Principal, filter Filter, page Page) (res ListResult, err error) {
	defer s.observe("list", &err)
	if err := authorize(p); err != nil {
		return ListResult{}, err
	}
	if page.Number < 1 || page.Size < 1 {
		return ListResult{}, fmt.Errorf("%w: page number and size must be at least 1", ErrInvalidInput)
	}
	if filter.Role != nil && !filter.Role.Valid() {
		return ListResult{}, fmt.Errorf("%w: %w: %q", ErrInvalidInput, rbac.ErrInvalidRole, string(*filter.Role))
	}
	filter.Search = strings.TrimSpace(filter.Search)

	rows, total, err := s.repo.List(ctx, filter, page.Size, page.Offset())
	if err != nil {
		return ListResult{}, fmt.Errorf("list accounts: %w", err)
	}
	if rows == nil {
		rows = []Account{}
	}
	return ListResult{
		Accounts:   rows,
		Total:      total,
		Pagination: shared.NewPagination(page.Number, page.Size, total),
	}, nil
}

// Stats summarises the roster. Every role appears in the breakdown.
func (s *Service) Stats(ctx context.Context, p rbac.Principal) (stats Stats, err error) {
	defer s.observe("stats", &err)
	if err := authorize(p); err != nil {
		return Stats{}, err
	}

	var (
		totals Totals
		byRole map[rbac.Role]int
	)
	// one snapshot so Total always equals the sum of the breakdown
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		if totals, err = repo.Totals(ctx, s.now().Add(-recentWindow)); err != nil {
			return err
		}
		byRole, err = repo.CountByRole(ctx)
		return err
	})
	if err != nil {
		return Stats{}, fmt.Errorf("account stats: %w", err)
	}

	breakdown := make(map[rbac.Role]int, len(rbac.AllRoles()))
	for _, role := range rbac.AllRoles() {
		breakdown[role] = byRole[role]
	}
	return Stats{
		Total:           totals.Total,
		Active:          totals.Active,
		Inactive:        totals.Total - totals.Active,
		RecentlyCreated: totals.RecentlyCreated,
		RoleBreakdown:   breakdown,
	}, nil
}

// prepareChanges validates patch. The password is hashed later, once the target
// is known to exist.
func (s *Service) prepareChanges(patch Patch) (Changes, error) {
	var changes Changes
	if patch.FirstName != nil {
		v := strings.TrimSpace(*patch.FirstName)
		if err := s.validate.Var(v, "required,max=100"); err != nil {
			return Changes{}, invalidField("first name", err)
		}
		changes.FirstName = &v
	}
	if patch.LastName != nil {
		v := strings.TrimSpace(*patch.LastName)
		if err := s.validate.Var(v, "required,max=100"); err != nil {
			return Changes{}, invalidField("last name", err)
		}
		changes.LastName = &v
	}
	if patch.Email != nil {
		v := normalizeEmail(*patch.Email)
		if err := s.validate.Var(v, "required,email,max=254"); err != nil {
			return Changes{}, invalidField("email", err)
		}
		changes.Email = &v
	}
	if patch.Role != nil {
		role, err := rbac.ParseRole(*patch.Role)
		if err != nil {
			return Changes{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		changes.Role = &role
	}
	if patch.Active != nil {
		v := *patch.Active
		changes.Active = &v
	}
	if patch.Password != nil {
		if err := s.validate.Var(*patch.Password, "required,max=72"); err != nil {
			return Changes{}, invalidField("password", err)
		}
	}
	return changes, nil
}

// record writes an audit entry after a committed change. Failures are logged only.
func (s *Service) record(ctx context.Context, p rbac.Principal, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(context.WithoutCancel(ctx), shared.AuditLog{
		ActorID:  p.ID,
		Action:   action,
		Entity:   "account",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.String("account_id", entityID), slog.Any("error", err))
	}
}

func (s *Service) revokeSessions(ctx context.Context, accountID, reason string) {
	if s.revoker == nil {
		return
	}
	if err := s.revoker.EnqueueRevokeSessions(context.WithoutCancel(ctx), accountID, reason); err != nil {
		s.logger.Warn("enqueue session revocation failed", slog.String("account_id", accountID), slog.String("reason", reason), slog.Any("error", err))
	}
}

func (s *Service) observe(operation string, errp *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveAccountOperation(operation, outcome(*errp))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate"
	case errors.Is(err, ErrSelfDeletionForbidden):
		return "self_delete"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func authorize(p rbac.Principal) error {
	if !p.Has(rbac.PermManageUsers) {
		return ErrUnauthorized
	}
	return nil
}

func normalizeEmail(raw string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(raw))
}

func invalidInput(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fieldLabel(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func invalidField(label string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, describe(label, verrs[0].Tag()))
	}
	return fmt.Errorf("%w: %s: %v", ErrInvalidInput, label, err)
}

func fieldLabel(field string) string {
	switch field {
	case "FirstName":
		return "first name"
	case "LastName":
		return "last name"
	default:
		return strings.ToLower(field)
	}
}

func describe(label, tag string) string {
	switch tag {
	case "required":
		return label + " is required"
	case "email":
		return label + " must be a valid email address"
	case "max":
		return label + " is too long"
	default:
		return label + " is invalid"
	}
}
