// Package memory is an in-process repository.Store. It enforces the same
// uniqueness and cascade rules as the SQLite schema.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/repository"
)

type state struct {
	nextID     int64
	users      map[int64]core.User
	accounts   map[int64]core.Account
	categories map[int64]core.Category
	links      map[core.UserCategory]struct{}
	txs        map[int64]txRow
}

type txRow struct {
	tx         core.Transaction
	categoryID int64 // 0 when uncategorized
}

func newState() *state {
	return &state{
		users:      map[int64]core.User{},
		accounts:   map[int64]core.Account{},
		categories: map[int64]core.Category{},
		links:      map[core.UserCategory]struct{}{},
		txs:        map[int64]txRow{},
	}
}

func (st *state) clone() *state {
	c := &state{
		nextID:     st.nextID,
		users:      make(map[int64]core.User, len(st.users)),
		accounts:   make(map[int64]core.Account, len(st.accounts)),
		categories: make(map[int64]core.Category, len(st.categories)),
		links:      make(map[core.UserCategory]struct{}, len(st.links)),
		txs:        make(map[int64]txRow, len(st.txs)),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.categories {
		c.categories[k] = v
	}
	for k := range st.links {
		c.links[k] = struct{}{}
	}
	for k, v := range st.txs {
		c.txs[k] = v
	}
	return c
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

// Store keeps every entity in maps guarded by one mutex.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

func New() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

func (s *Store) Users() repository.UserRepository                 { return userRepo{s} }
func (s *Store) Accounts() repository.AccountRepository           { return accountRepo{s} }
func (s *Store) Categories() repository.CategoryRepository        { return categoryRepo{s} }
func (s *Store) UserCategories() repository.UserCategoryRepository { return linkRepo{s} }
func (s *Store) Transactions() repository.TransactionRepository   { return txRepo{s} }

// WithinTx snapshots the state and restores it if fn fails. Callers are
// expected to be single-threaded while a transaction is open.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(&Store{mu: s.mu, st: s.st, inTx: true}); err != nil {
		s.mu.Lock()
		*s.st = *snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) lock() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

// equalFoldASCII matches SQLite's NOCASE collation, which folds ASCII only.
func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u core.User) (core.User, error) {
	defer r.s.lock()()
	for _, existing := range r.s.st.users {
		if equalFoldASCII(existing.Login, u.Login) {
			return core.User{}, fmt.Errorf("user %q: unique constraint violated", u.Login)
		}
	}
	u.ID = r.s.st.id()
	u.Balance = core.Money{}
	r.s.st.users[u.ID] = u
	return u, nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (core.User, error) {
	defer r.s.lock()()
	u, ok := r.s.st.users[id]
	if !ok {
		return core.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r userRepo) GetByLogin(_ context.Context, login string, caseSensitive bool) (core.User, error) {
	defer r.s.lock()()
	for _, u := range r.s.st.users {
		if u.Login == login || (!caseSensitive && equalFoldASCII(u.Login, login)) {
			return u, nil
		}
	}
	return core.User{}, repository.ErrNotFound
}

func (r userRepo) Update(_ context.Context, u core.User) (int64, error) {
	defer r.s.lock()()
	if _, ok := r.s.st.users[u.ID]; !ok {
		return 0, nil
	}
	for id, existing := range r.s.st.users {
		if id != u.ID && equalFoldASCII(existing.Login, u.Login) {
			return 0, fmt.Errorf("user %q: unique constraint violated", u.Login)
		}
	}
	r.s.st.users[u.ID] = u
	return 1, nil
}

func (r userRepo) Delete(_ context.Context, u core.User) (int64, error) {
	defer r.s.lock()()
	if _, ok := r.s.st.users[u.ID]; !ok {
		return 0, nil
	}
	delete(r.s.st.users, u.ID)
	for id, a := range r.s.st.accounts {
		if a.UserID == u.ID {
			r.s.deleteAccountLocked(id)
		}
	}
	for link := range r.s.st.links {
		if link.UserID == u.ID {
			delete(r.s.st.links, link)
		}
	}
	return 1, nil
}

func (s *Store) deleteAccountLocked(id int64) {
	delete(s.st.accounts, id)
	for txID, row := range s.st.txs {
		if row.tx.AccountID == id {
			delete(s.st.txs, txID)
		}
	}
}

type accountRepo struct{ s *Store }

func (r accountRepo) Create(_ context.Context, a core.Account) (core.Account, error) {
	defer r.s.lock()()
	if _, ok := r.s.st.users[a.UserID]; !ok {
		return core.Account{}, fmt.Errorf("account %q: user %d: foreign key violated", a.Name, a.UserID)
	}
	for _, existing := range r.s.st.accounts {
		if existing.UserID == a.UserID && existing.Name == a.Name {
			return core.Account{}, fmt.Errorf("account %q: unique constraint violated", a.Name)
		}
	}
	a.ID = r.s.st.id()
	r.s.st.accounts[a.ID] = a
	return a, nil
}

func (r accountRepo) GetByID(_ context.Context, id int64) (core.Account, error) {
	defer r.s.lock()()
	a, ok := r.s.st.accounts[id]
	if !ok {
		return core.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func (r accountRepo) ListByUser(_ context.Context, userID int64) ([]core.Account, error) {
	defer r.s.lock()()
	var out []core.Account
	for _, a := range r.s.st.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r accountRepo) Update(_ context.Context, a core.Account) (int64, error) {
	defer r.s.lock()()
	current, ok := r.s.st.accounts[a.ID]
	if !ok {
		return 0, nil
	}
	for id, existing := range r.s.st.accounts {
		if id != a.ID && existing.UserID == current.UserID && existing.Name == a.Name {
			return 0, fmt.Errorf("account %q: unique constraint violated", a.Name)
		}
	}
	current.Name = a.Name
	current.Description = a.Description
	r.s.st.accounts[a.ID] = current
	return 1, nil
}

func (r accountRepo) AdjustBalance(_ context.Context, id int64, delta core.Money) (core.Money, error) {
	defer r.s.lock()()
	a, ok := r.s.st.accounts[id]
	if !ok {
		return core.Money{}, repository.ErrNotFound
	}
	balance, err := a.Balance.CheckedAdd(delta)
	if err != nil {
		return core.Money{}, fmt.Errorf("account %d balance: %w", id, err)
	}
	a.Balance = balance
	r.s.st.accounts[id] = a
	return a.Balance, nil
}

func (r accountRepo) Delete(_ context.Context, a core.Account) (int64, error) {
	defer r.s.lock()()
	if _, ok := r.s.st.accounts[a.ID]; !ok {
		return 0, nil
	}
	r.s.deleteAccountLocked(a.ID)
	return 1, nil
}

type categoryRepo struct{ s *Store }

func (r categoryRepo) Create(_ context.Context, c core.Category) (core.Category, error) {
	defer r.s.lock()()
	for _, existing := range r.s.st.categories {
		if existing.Name == c.Name {
			return core.Category{}, fmt.Errorf("category %q: unique constraint violated", c.Name)
		}
	}
	c.ID = r.s.st.id()
	r.s.st.categories[c.ID] = c
	return c, nil
}

func (r categoryRepo) GetByID(_ context.Context, id int64) (core.Category, error) {
	defer r.s.lock()()
	c, ok := r.s.st.categories[id]
	if !ok {
		return core.Category{}, repository.ErrNotFound
	}
	return c, nil
}

func (r categoryRepo) GetByName(_ context.Context, name string) (core.Category, error) {
	defer r.s.lock()()
	for _, c := range r.s.st.categories {
		if c.Name == name {
			return c, nil
		}
	}
	return core.Category{}, repository.ErrNotFound
}

func (r categoryRepo) Update(_ context.Context, c core.Category) (int64, error) {
	defer r.s.lock()()
	if _, ok := r.s.st.categories[c.ID]; !ok {
		return 0, nil
	}
	for id, existing := range r.s.st.categories {
		if id != c.ID && existing.Name == c.Name {
			return 0, fmt.Errorf("category %q: unique constraint violated", c.Name)
		}
	}
	r.s.st.categories[c.ID] = c
	return 1, nil
}

func (r categoryRepo) Delete(_ context.Context, c core.Category) (int64, error) {
	defer r.s.lock()()
	if _, ok := r.s.st.categories[c.ID]; !ok {
		return 0, nil
	}
	delete(r.s.st.categories, c.ID)
	for link := range r.s.st.links {
		if link.CategoryID == c.ID {
			delete(r.s.st.links, link)
		}
	}
	for id, row := range r.s.st.txs {
		if row.categoryID == c.ID {
			row.categoryID = 0
			r.s.st.txs[id] = row
		}
	}
	return 1, nil
}

type linkRepo struct{ s *Store }

func (r linkRepo) Create(_ context.Context, uc core.UserCategory) error {
	defer r.s.lock()()
	if _, ok := r.s.st.users[uc.UserID]; !ok {
		return fmt.Errorf("user category: user %d: foreign key violated", uc.UserID)
	}
	if _, ok := r.s.st.categories[uc.CategoryID]; !ok {
		return fmt.Errorf("user category: category %d: foreign key violated", uc.CategoryID)
	}
	if _, ok := r.s.st.links[uc]; ok {
		return fmt.Errorf("user category %d/%d: unique constraint violated", uc.UserID, uc.CategoryID)
	}
	r.s.st.links[uc] = struct{}{}
	return nil
}

func (r linkRepo) Exists(_ context.Context, uc core.UserCategory) (bool, error) {
	defer r.s.lock()()
	_, ok := r.s.st.links[uc]
	return ok, nil
}

func (r linkRepo) ListCategories(_ context.Context, userID int64) ([]core.Category, error) {
	defer r.s.lock()()
	var out []core.Category
	for link := range r.s.st.links {
		if link.UserID == userID {
			out = append(out, r.s.st.categories[link.CategoryID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r linkRepo) CountUsers(_ context.Context, categoryID int64) (int64, error) {
	defer r.s.lock()()
	var n int64
	for link := range r.s.st.links {
		if link.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (r linkRepo) Delete(_ context.Context, uc core.UserCategory) (int64, error) {
	defer r.s.lock()()
	if _, ok := r.s.st.links[uc]; !ok {
		return 0, nil
	}
	delete(r.s.st.links, uc)
	return 1, nil
}

type txRepo struct{ s *Store }

func (r txRepo) Create(_ context.Context, t core.Transaction) (core.Transaction, error) {
	defer r.s.lock()()
	if _, ok := r.s.st.accounts[t.AccountID]; !ok {
		return core.Transaction{}, fmt.Errorf("transaction: account %d: foreign key violated", t.AccountID)
	}
	row := txRow{}
	if t.Category != nil {
		c, ok := r.s.st.categories[t.Category.ID]
		if !ok {
			return core.Transaction{}, fmt.Errorf("transaction: category %d: foreign key violated", t.Category.ID)
		}
		row.categoryID = c.ID
	}
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}
	t.ID = r.s.st.id()
	row.tx = t
	r.s.st.txs[t.ID] = row
	return r.s.loadLocked(row), nil
}

func (r txRepo) GetByID(_ context.Context, id int64) (core.Transaction, error) {
	defer r.s.lock()()
	row, ok := r.s.st.txs[id]
	if !ok {
		return core.Transaction{}, repository.ErrNotFound
	}
	return r.s.loadLocked(row), nil
}

func (r txRepo) ListByAccount(_ context.Context, accountID int64) ([]core.Transaction, error) {
	defer r.s.lock()()
	var out []core.Transaction
	for _, row := range r.s.st.txs {
		if row.tx.AccountID == accountID {
			out = append(out, r.s.loadLocked(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r txRepo) Update(_ context.Context, t core.Transaction) (int64, error) {
	defer r.s.lock()()
	row, ok := r.s.st.txs[t.ID]
	if !ok {
		return 0, nil
	}
	row.categoryID = 0
	if t.Category != nil {
		if _, ok := r.s.st.categories[t.Category.ID]; !ok {
			return 0, fmt.Errorf("transaction: category %d: foreign key violated", t.Category.ID)
		}
		row.categoryID = t.Category.ID
	}
	row.tx.Amount = t.Amount
	row.tx.Description = t.Description
	r.s.st.txs[t.ID] = row
	return 1, nil
}

func (r txRepo) Delete(_ context.Context, t core.Transaction) (int64, error) {
	defer r.s.lock()()
	if _, ok := r.s.st.txs[t.ID]; !ok {
		return 0, nil
	}
	delete(r.s.st.txs, t.ID)
	return 1, nil
}

func (s *Store) loadLocked(row txRow) core.Transaction {
	t := row.tx
	t.Category = nil
	if row.categoryID != 0 {
		if c, ok := s.st.categories[row.categoryID]; ok {
			t.Category = &c
		}
	}
	return t
}
