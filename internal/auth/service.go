package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/faisal-mohamed/rfp/internal/rbac"
	"github.com/faisal-mohamed/rfp/internal/shared"
)

// Verifier checks credential material against a stored hash.
type Verifier interface {
	Verify(plain, hash string) (bool, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	verifier Verifier
	logger   *slog.Logger
	now      func() time.Time

	decoyOnce sync.Once
	decoy     string
}

// decoyPassword is hashed once so that failed lookups verify against a real hash.
const decoyPassword = "rfp-decoy-credential"

// NewService constructs a new Service.
func NewService(repo Repository, verifier Verifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, verifier: verifier, logger: logger, now: time.Now}
}

// Authenticate validates email/password credentials. Only active accounts may
// log in; every failure is reported as shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = cases.Lower(language.Und).String(strings.TrimSpace(email))
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			s.verifyDecoy(password)
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	if !user.Active {
		s.verifyDecoy(password)
		return nil, shared.ErrInvalidCredentials
	}
	ok, err := s.verifier.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("verify credential", slog.String("account_id", user.ID), slog.Any("error", err))
		return nil, shared.ErrInvalidCredentials
	}
	if !ok {
		return nil, shared.ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("record last login", slog.String("account_id", user.ID), slog.Any("error", err))
	} else {
		user.LastLoginAt = &now
	}
	return user, nil
}

// verifyDecoy spends the same hashing work as a real verification when there is
// no usable account, so failures cannot be told apart by timing.
func (s *Service) verifyDecoy(password string) {
	s.decoyOnce.Do(func() {
		hasher, ok := s.verifier.(interface{ Hash(string) (string, error) })
		if !ok {
			return
		}
		hash, err := hasher.Hash(decoyPassword)
		if err != nil {
			s.logger.Warn("hash decoy credential", slog.Any("error", err))
			return
		}
		s.decoy = hash
	})
	if s.decoy == "" {
		return
	}
	_, _ = s.verifier.Verify(password, s.decoy)
}

// Resolve loads the current identity of an account. Deleted or deactivated
// accounts resolve to ErrUnknownAccount.
func (s *Service) Resolve(ctx context.Context, id string) (rbac.Principal, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return rbac.Principal{}, err
	}
	if !user.Active {
		return rbac.Principal{}, ErrUnknownAccount
	}
	return user.Principal(), nil
}
