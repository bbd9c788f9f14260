// Package repository defines the persistence ports the services depend on.
// Implementations live in internal/storage (SQLite) and
// internal/repository/memory.
package repository

import (
	"context"
	"errors"

	"ledger/internal/core"
)

// ErrNotFound is returned by single-row getters when nothing matches.
var ErrNotFound = errors.New("record not found")

type (
	UserRepository interface {
		Create(ctx context.Context, u core.User) (core.User, error)
		GetByID(ctx context.Context, id int64) (core.User, error)
		// GetByLogin matches exactly when caseSensitive is set, otherwise
		// ignoring ASCII case.
		GetByLogin(ctx context.Context, login string, caseSensitive bool) (core.User, error)
		Update(ctx context.Context, u core.User) (int64, error)
		Delete(ctx context.Context, u core.User) (int64, error)
	}

	AccountRepository interface {
		Create(ctx context.Context, a core.Account) (core.Account, error)
		GetByID(ctx context.Context, id int64) (core.Account, error)
		ListByUser(ctx context.Context, userID int64) ([]core.Account, error)
		// Update writes name and description. Balance only moves through AdjustBalance.
		Update(ctx context.Context, a core.Account) (int64, error)
		AdjustBalance(ctx context.Context, id int64, delta core.Money) (core.Money, error)
		Delete(ctx context.Context, a core.Account) (int64, error)
	}

	CategoryRepository interface {
		Create(ctx context.Context, c core.Category) (core.Category, error)
		GetByID(ctx context.Context, id int64) (core.Category, error)
		GetByName(ctx context.Context, name string) (core.Category, error)
		Update(ctx context.Context, c core.Category) (int64, error)
		Delete(ctx context.Context, c core.Category) (int64, error)
	}

	UserCategoryRepository interface {
		Create(ctx context.Context, uc core.UserCategory) error
		Exists(ctx context.Context, uc core.UserCategory) (bool, error)
		ListCategories(ctx context.Context, userID int64) ([]core.Category, error)
		CountUsers(ctx context.Context, categoryID int64) (int64, error)
		Delete(ctx context.Context, uc core.UserCategory) (int64, error)
	}

	TransactionRepository interface {
		Create(ctx context.Context, t core.Transaction) (core.Transaction, error)
		GetByID(ctx context.Context, id int64) (core.Transaction, error)
		// ListByAccount returns transactions oldest first with categories loaded.
		ListByAccount(ctx context.Context, accountID int64) ([]core.Transaction, error)
		Update(ctx context.Context, t core.Transaction) (int64, error)
		Delete(ctx context.Context, t core.Transaction) (int64, error)
	}

	// Store groups the repositories over one persistence handle.
	Store interface {
		Users() UserRepository
		Accounts() AccountRepository
		Categories() CategoryRepository
		UserCategories() UserCategoryRepository
		Transactions() TransactionRepository

		// WithinTx runs fn against a store bound to a single transaction.
		// A non-nil error from fn rolls everything back. Calling WithinTx on
		// a store that is already transactional joins the outer transaction.
		WithinTx(ctx context.Context, fn func(Store) error) error

		Close() error
	}
)
