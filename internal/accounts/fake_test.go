package accounts

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/faisal-mohamed/rfp/internal/rbac"
	"github.com/faisal-mohamed/rfp/internal/shared"
)

type fakeRepo struct {
	mu     sync.Mutex
	rows   map[string]NewRecord
	calls  int
	err    error
	txUsed int
	inTx   bool
	// aggregate reads issued outside a transaction
	looseAggregates int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]NewRecord)}
}

func (f *fakeRepo) touch() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeRepo) seed(acc Account) {
	f.rows[acc.ID] = NewRecord{Account: acc, PasswordHash: "seeded"}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if err := f.touch(); err != nil {
		return err
	}
	f.txUsed++
	f.inTx = true
	defer func() { f.inTx = false }()
	return fn(ctx, f)
}

func (f *fakeRepo) Get(_ context.Context, id string) (Account, error) {
	if err := f.touch(); err != nil {
		return Account{}, err
	}
	rec, ok := f.rows[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return f.project(rec), nil
}

func (f *fakeRepo) FindByEmail(_ context.Context, email string) (Account, error) {
	if err := f.touch(); err != nil {
		return Account{}, err
	}
	for _, rec := range f.rows {
		if strings.EqualFold(rec.Email, email) {
			return f.project(rec), nil
		}
	}
	return Account{}, ErrNotFound
}

func (f *fakeRepo) Create(_ context.Context, rec NewRecord) error {
	if err := f.touch(); err != nil {
		return err
	}
	for _, existing := range f.rows {
		if strings.EqualFold(existing.Email, rec.Email) {
			return ErrDuplicateEmail
		}
	}
	f.rows[rec.ID] = rec
	return nil
}

func (f *fakeRepo) Update(_ context.Context, id string, c Changes) (Account, error) {
	if err := f.touch(); err != nil {
		return Account{}, err
	}
	rec, ok := f.rows[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	if c.FirstName != nil {
		rec.FirstName = *c.FirstName
	}
	if c.LastName != nil {
		rec.LastName = *c.LastName
	}
	if c.Email != nil {
		rec.Email = *c.Email
	}
	if c.Role != nil {
		rec.Role = *c.Role
	}
	if c.Active != nil {
		rec.Active = *c.Active
	}
	if c.PasswordHash != nil {
		rec.PasswordHash = *c.PasswordHash
	}
	f.rows[id] = rec
	return f.project(rec), nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	if err := f.touch(); err != nil {
		return err
	}
	if _, ok := f.rows[id]; !ok {
		return ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeRepo) List(_ context.Context, filter Filter, limit, offset int) ([]Account, int, error) {
	if err := f.touch(); err != nil {
		return nil, 0, err
	}
	var matched []Account
	for _, rec := range f.rows {
		if matches(rec.Account, filter) {
			matched = append(matched, f.project(rec))
		}
	}
	slices.SortFunc(matched, func(a, b Account) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	total := len(matched)
	if offset >= total {
		return []Account{}, total, nil
	}
	return matched[offset:min(offset+limit, total)], total, nil
}

func (f *fakeRepo) Totals(_ context.Context, since time.Time) (Totals, error) {
	if err := f.touch(); err != nil {
		return Totals{}, err
	}
	if !f.inTx {
		f.looseAggregates++
	}
	var t Totals
	for _, rec := range f.rows {
		t.Total++
		if rec.Active {
			t.Active++
		}
		if !rec.CreatedAt.Before(since) {
			t.RecentlyCreated++
		}
	}
	return t, nil
}

func (f *fakeRepo) CountByRole(context.Context) (map[rbac.Role]int, error) {
	if err := f.touch(); err != nil {
		return nil, err
	}
	if !f.inTx {
		f.looseAggregates++
	}
	counts := make(map[rbac.Role]int)
	for _, rec := range f.rows {
		counts[rec.Role]++
	}
	return counts, nil
}

// project mimics the store's creator join: the reference disappears with the creator.
func (f *fakeRepo) project(rec NewRecord) Account {
	acc := rec.Account
	acc.Creator = nil
	if acc.CreatedBy != nil {
		if creator, ok := f.rows[*acc.CreatedBy]; ok {
			acc.Creator = &CreatorRef{ID: creator.ID, FirstName: creator.FirstName, LastName: creator.LastName, Email: creator.Email}
		}
	}
	return acc
}

func matches(acc Account, filter Filter) bool {
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		hay := strings.ToLower(acc.FirstName + "\x00" + acc.LastName + "\x00" + acc.Email)
		if !strings.Contains(hay, needle) {
			return false
		}
	}
	if filter.Role != nil && acc.Role != *filter.Role {
		return false
	}
	if filter.Active != nil && acc.Active != *filter.Active {
		return false
	}
	return true
}

type fakeHasher struct {
	calls int
}

func (h *fakeHasher) Hash(plain string) (string, error) {
	h.calls++
	return "hashed:" + plain, nil
}

type fakeAudit struct {
	logs []shared.AuditLog
	err  error
}

func (a *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

type revocation struct {
	accountID string
	reason    string
}

type fakeRevoker struct {
	calls []revocation
}

func (r *fakeRevoker) EnqueueRevokeSessions(_ context.Context, accountID, reason string) error {
	r.calls = append(r.calls, revocation{accountID, reason})
	return nil
}

type fakeObserver struct {
	seen map[string]int
}

func (o *fakeObserver) ObserveAccountOperation(operation, outcome string) {
	if o.seen == nil {
		o.seen = make(map[string]int)
	}
	o.seen[fmt.Sprintf("%s/%s", operation, outcome)]++
}
