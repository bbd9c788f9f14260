package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"ledger/internal/core"
)

type userRepo struct{ q DBTX }

const userColumns = "id, login, password_hash"

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash)
	return u, err
}

func (r userRepo) Create(ctx context.Context, u core.User) (core.User, error) {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO users (login, password_hash) VALUES (?, ?)",
		u.Login, u.PasswordHash)
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r userRepo) GetByID(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
	return u, notFound(err)
}

func (r userRepo) GetByLogin(ctx context.Context, login string, caseSensitive bool) (core.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE login = ?"
	if !caseSensitive {
		query += " COLLATE NOCASE"
	}
	u, err := scanUser(r.q.QueryRowContext(ctx, query, login))
	return u, notFound(err)
}

func (r userRepo) Update(ctx context.Context, u core.User) (int64, error) {
	return rowsAffected(r.q.ExecContext(ctx,
		"UPDATE users SET login = ?, password_hash = ? WHERE id = ?",
		u.Login, u.PasswordHash, u.ID))
}

func (r userRepo) Delete(ctx context.Context, u core.User) (int64, error) {
	return rowsAffected(r.q.ExecContext(ctx, "DELETE FROM users WHERE id = ?", u.ID))
}

type accountRepo struct{ q DBTX }

const accountColumns = "id, user_id, name, description, balance_cents"

func scanAccount(row interface{ Scan(...any) error }) (core.Account, error) {
	var a core.Account
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Description, &a.Balance.Cents)
	return a, err
}

func (r accountRepo) Create(ctx context.Context, a core.Account) (core.Account, error) {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO accounts (user_id, name, description, balance_cents) VALUES (?, ?, ?, ?)",
		a.UserID, a.Name, a.Description, a.Balance.Cents)
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r accountRepo) GetByID(ctx context.Context, id int64) (core.Account, error) {
	a, err := scanAccount(r.q.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id))
	return a, notFound(err)
}

func (r accountRepo) ListByUser(ctx context.Context, userID int64) ([]core.Account, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r accountRepo) Update(ctx context.Context, a core.Account) (int64, error) {
	return rowsAffected(r.q.ExecContext(ctx,
		"UPDATE accounts SET name = ?, description = ? WHERE id = ?",
		a.Name, a.Description, a.ID))
}

// AdjustBalance refuses a delta that would overflow int64 cents; SQLite
// would otherwise turn the column into a REAL.
func (r accountRepo) AdjustBalance(ctx context.Context, id int64, delta core.Money) (core.Money, error) {
	var balance core.Money
	err := r.q.QueryRowContext(ctx, `
		UPDATE accounts SET balance_cents = balance_cents + ?1
		WHERE id = ?2
		  AND (?1 <= 0 OR balance_cents <= ?3 - ?1)
		  AND (?1 >= 0 OR balance_cents >= ?4 - ?1)
		RETURNING balance_cents`,
		delta.Cents, id, int64(math.MaxInt64), int64(math.MinInt64)).Scan(&balance.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return core.Money{}, fmt.Errorf("account %d balance: %w", id, core.ErrAmountOverflow)
		}
	}
	return balance, notFound(err)
}

func (r accountRepo) Delete(ctx context.Context, a core.Account) (int64, error) {
	return rowsAffected(r.q.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", a.ID))
}

type categoryRepo struct{ q DBTX }

func (r categoryRepo) Create(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.q.ExecContext(ctx, "INSERT INTO categories (name) VALUES (?)", c.Name)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	return core.Category{ID: id, Name: c.Name}, nil
}

func (r categoryRepo) GetByID(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := r.q.QueryRowContext(ctx, "SELECT id, name FROM categories WHERE id = ?", id).
		Scan(&c.ID, &c.Name)
	return c, notFound(err)
}

func (r categoryRepo) GetByName(ctx context.Context, name string) (core.Category, error) {
	var c core.Category
	err := r.q.QueryRowContext(ctx, "SELECT id, name FROM categories WHERE name = ?", name).
		Scan(&c.ID, &c.Name)
	return c, notFound(err)
}

func (r categoryRepo) Update(ctx context.Context, c core.Category) (int64, error) {
	return rowsAffected(r.q.ExecContext(ctx,
		"UPDATE categories SET name = ? WHERE id = ?", c.Name, c.ID))
}

func (r categoryRepo) Delete(ctx context.Context, c core.Category) (int64, error) {
	return rowsAffected(r.q.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", c.ID))
}

type userCategoryRepo struct{ q DBTX }

func (r userCategoryRepo) Create(ctx context.Context, uc core.UserCategory) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO user_categories (user_id, category_id) VALUES (?, ?)",
		uc.UserID, uc.CategoryID)
	if err != nil {
		return fmt.Errorf("insert user category: %w", err)
	}
	return nil
}

func (r userCategoryRepo) Exists(ctx context.Context, uc core.UserCategory) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_categories WHERE user_id = ? AND category_id = ?",
		uc.UserID, uc.CategoryID).Scan(&n)
	return n > 0, err
}

func (r userCategoryRepo) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT c.id, c.name
		FROM user_categories uc
		JOIN categories c ON c.id = uc.category_id
		WHERE uc.user_id = ?
		ORDER BY c.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r userCategoryRepo) CountUsers(ctx context.Context, categoryID int64) (int64, error) {
	var n int64
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_categories WHERE category_id = ?", categoryID).Scan(&n)
	return n, err
}

func (r userCategoryRepo) Delete(ctx context.Context, uc core.UserCategory) (int64, error) {
	return rowsAffected(r.q.ExecContext(ctx,
		"DELETE FROM user_categories WHERE user_id = ? AND category_id = ?",
		uc.UserID, uc.CategoryID))
}

type transactionRepo struct{ q DBTX }

const transactionSelect = `
	SELECT t.id, t.account_id, t.amount_cents, t.description, t.date, c.id, c.name
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t       core.Transaction
		catID   sql.NullInt64
		catName sql.NullString
	)
	if err := row.Scan(&t.ID, &t.AccountID, &t.Amount.Cents, &t.Description, &t.Date, &catID, &catName); err != nil {
		return core.Transaction{}, err
	}
	if catID.Valid {
		t.Category = &core.Category{ID: catID.Int64, Name: catName.String}
	}
	return t, nil
}

func categoryID(c *core.Category) sql.NullInt64 {
	if c == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: c.ID, Valid: true}
}

func (r transactionRepo) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.Date.IsZero() {
		t.Date = time.Now()
	}
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO transactions (account_id, category_id, amount_cents, description, date) VALUES (?, ?, ?, ?, ?)",
		t.AccountID, categoryID(t.Category), t.Amount.Cents, t.Description, t.Date.UTC())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r transactionRepo) GetByID(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(r.q.QueryRowContext(ctx, transactionSelect+" WHERE t.id = ?", id))
	return t, notFound(err)
}

func (r transactionRepo) ListByAccount(ctx context.Context, accountID int64) ([]core.Transaction, error) {
	rows, err := r.q.QueryContext(ctx,
		transactionSelect+" WHERE t.account_id = ? ORDER BY t.date, t.id", accountID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r transactionRepo) Update(ctx context.Context, t core.Transaction) (int64, error) {
	return rowsAffected(r.q.ExecContext(ctx,
		"UPDATE transactions SET amount_cents = ?, description = ?, category_id = ? WHERE id = ?",
		t.Amount.Cents, t.Description, categoryID(t.Category), t.ID))
}

func (r transactionRepo) Delete(ctx context.Context, t core.Transaction) (int64, error) {
	return rowsAffected(r.q.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", t.ID))
}
