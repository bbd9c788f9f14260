// Package repositorytest holds a behavioural test suite every
// repository.Store implementation must pass.
package repositorytest

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/stretchr/testify/suite"

	"ledger/internal/core"
	"ledger/internal/repository"
)

// StoreSuite runs the repository contract against a fresh store per test.
type StoreSuite struct {
	suite.Suite
	NewStore func() repository.Store

	ctx   context.Context
	store repository.Store
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore()
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *StoreSuite) user(login string) core.User {
	u, err := s.store.Users().Create(s.ctx, core.User{Login: login, PasswordHash: "hash"})
	s.Require().NoError(err)
	return u
}

func (s *StoreSuite) account(userID int64, name string, cents int64) core.Account {
	a, err := s.store.Accounts().Create(s.ctx, core.Account{UserID: userID, Name: name, Balance: core.Money{Cents: cents}})
	s.Require().NoError(err)
	return a
}

func (s *StoreSuite) category(name string) core.Category {
	c, err := s.store.Categories().Create(s.ctx, core.Category{Name: name})
	s.Require().NoError(err)
	return c
}

func (s *StoreSuite) TestUserLookup() {
	u := s.user("Alice")
	s.NotZero(u.ID)

	got, err := s.store.Users().GetByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("Alice", got.Login)
	s.Equal("hash", got.PasswordHash)

	_, err = s.store.Users().GetByLogin(s.ctx, "alice", true)
	s.ErrorIs(err, repository.ErrNotFound)

	got, err = s.store.Users().GetByLogin(s.ctx, "alice", false)
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	_, err = s.store.Users().GetByID(s.ctx, u.ID+1000)
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *StoreSuite) TestUserLoginUniqueIgnoringCase() {
	s.user("bob")
	_, err := s.store.Users().Create(s.ctx, core.User{Login: "BOB", PasswordHash: "x"})
	s.Error(err)
}

func (s *StoreSuite) TestUserLoginFoldsASCIIOnly() {
	s.user("Älice")

	_, err := s.store.Users().GetByLogin(s.ctx, "älice", false)
	s.ErrorIs(err, repository.ErrNotFound)
	_, err = s.store.Users().GetByLogin(s.ctx, "äLICE", false)
	s.ErrorIs(err, repository.ErrNotFound)
	got, err := s.store.Users().GetByLogin(s.ctx, "ÄLICE", false)
	s.Require().NoError(err)
	s.Equal("Älice", got.Login)

	s.user("älice")
}

func (s *StoreSuite) TestUserUpdateAndDelete() {
	u := s.user("carol")
	u.Login = "caroline"
	u.PasswordHash = "new"
	n, err := s.store.Users().Update(s.ctx, u)
	s.Require().NoError(err)
	s.EqualValues(1, n)

	got, err := s.store.Users().GetByLogin(s.ctx, "caroline", true)
	s.Require().NoError(err)
	s.Equal("new", got.PasswordHash)

	n, err = s.store.Users().Delete(s.ctx, u)
	s.Require().NoError(err)
	s.EqualValues(1, n)

	n, err = s.store.Users().Delete(s.ctx, u)
	s.Require().NoError(err)
	s.EqualValues(0, n)
}

func (s *StoreSuite) TestAccountsPerUser() {
	u1 := s.user("u1")
	u2 := s.user("u2")
	s.account(u1.ID, "Wallet", 100)
	s.account(u1.ID, "Bank", 0)
	s.account(u2.ID, "Wallet", 0)

	_, err := s.store.Accounts().Create(s.ctx, core.Account{UserID: u1.ID, Name: "Wallet"})
	s.Error(err, "account names are unique per user")

	accounts, err := s.store.Accounts().ListByUser(s.ctx, u1.ID)
	s.Require().NoError(err)
	s.Require().Len(accounts, 2)
	s.Equal("Wallet", accounts[0].Name)
	s.Equal(int64(100), accounts[0].Balance.Cents)
	s.Equal("Bank", accounts[1].Name)
}

func (s *StoreSuite) TestAccountUpdateLeavesBalance() {
	u := s.user("dan")
	a := s.account(u.ID, "Wallet", 500)

	a.Name = "Purse"
	a.Description = "daily"
	a.Balance = core.Money{Cents: 1}
	n, err := s.store.Accounts().Update(s.ctx, a)
	s.Require().NoError(err)
	s.EqualValues(1, n)

	got, err := s.store.Accounts().GetByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("Purse", got.Name)
	s.Equal("daily", got.Description)
	s.Equal(int64(500), got.Balance.Cents)
}

func (s *StoreSuite) TestAdjustBalance() {
	u := s.user("erin")
	a := s.account(u.ID, "Wallet", 10000)

	bal, err := s.store.Accounts().AdjustBalance(s.ctx, a.ID, core.Money{Cents: -3000})
	s.Require().NoError(err)
	s.Equal(int64(7000), bal.Cents)

	got, err := s.store.Accounts().GetByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(int64(7000), got.Balance.Cents)

	_, err = s.store.Accounts().AdjustBalance(s.ctx, a.ID+1000, core.Money{Cents: 1})
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *StoreSuite) TestAdjustBalanceOverflow() {
	u := s.user("olga")
	high := s.account(u.ID, "High", math.MaxInt64-10)
	low := s.account(u.ID, "Low", math.MinInt64+10)

	_, err := s.store.Accounts().AdjustBalance(s.ctx, high.ID, core.Money{Cents: 11})
	s.ErrorIs(err, core.ErrAmountOverflow)
	_, err = s.store.Accounts().AdjustBalance(s.ctx, low.ID, core.Money{Cents: -11})
	s.ErrorIs(err, core.ErrAmountOverflow)

	got, err := s.store.Accounts().GetByID(s.ctx, high.ID)
	s.Require().NoError(err)
	s.Equal(int64(math.MaxInt64-10), got.Balance.Cents)
	got, err = s.store.Accounts().GetByID(s.ctx, low.ID)
	s.Require().NoError(err)
	s.Equal(int64(math.MinInt64+10), got.Balance.Cents)

	bal, err := s.store.Accounts().AdjustBalance(s.ctx, high.ID, core.Money{Cents: 10})
	s.Require().NoError(err)
	s.Equal(int64(math.MaxInt64), bal.Cents)
	bal, err = s.store.Accounts().AdjustBalance(s.ctx, low.ID, core.Money{Cents: -10})
	s.Require().NoError(err)
	s.Equal(int64(math.MinInt64), bal.Cents)
}

func (s *StoreSuite) TestCategoriesAndLinks() {
	u1 := s.user("f1")
	u2 := s.user("f2")
	food := s.category("Food")
	fun := s.category("Fun")

	_, err := s.store.Categories().Create(s.ctx, core.Category{Name: "Food"})
	s.Error(err, "category names are globally unique")

	got, err := s.store.Categories().GetByName(s.ctx, "Food")
	s.Require().NoError(err)
	s.Equal(food.ID, got.ID)

	links := s.store.UserCategories()
	s.Require().NoError(links.Create(s.ctx, core.UserCategory{UserID: u1.ID, CategoryID: food.ID}))
	s.Require().NoError(links.Create(s.ctx, core.UserCategory{UserID: u2.ID, CategoryID: food.ID}))
	s.Require().NoError(links.Create(s.ctx, core.UserCategory{UserID: u1.ID, CategoryID: fun.ID}))

	ok, err := links.Exists(s.ctx, core.UserCategory{UserID: u2.ID, CategoryID: fun.ID})
	s.Require().NoError(err)
	s.False(ok)

	n, err := links.CountUsers(s.ctx, food.ID)
	s.Require().NoError(err)
	s.EqualValues(2, n)

	cats, err := links.ListCategories(s.ctx, u1.ID)
	s.Require().NoError(err)
	s.Equal([]core.Category{food, fun}, cats)

	removed, err := links.Delete(s.ctx, core.UserCategory{UserID: u2.ID, CategoryID: food.ID})
	s.Require().NoError(err)
	s.EqualValues(1, removed)

	n, err = links.CountUsers(s.ctx, food.ID)
	s.Require().NoError(err)
	s.EqualValues(1, n)

	food.Name = "Groceries"
	updated, err := s.store.Categories().Update(s.ctx, food)
	s.Require().NoError(err)
	s.EqualValues(1, updated)
	_, err = s.store.Categories().GetByName(s.ctx, "Food")
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *StoreSuite) TestTransactions() {
	u := s.user("gus")
	a := s.account(u.ID, "Wallet", 0)
	food := s.category("Food")
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	second, err := s.store.Transactions().Create(s.ctx, core.Transaction{
		AccountID: a.ID, Amount: core.Money{Cents: -1250}, Description: "lunch",
		Category: &food, Date: base.Add(time.Hour),
	})
	s.Require().NoError(err)
	s.Require().NotNil(second.Category)
	s.Equal("Food", second.Category.Name)

	first, err := s.store.Transactions().Create(s.ctx, core.Transaction{
		AccountID: a.ID, Amount: core.Money{Cents: 5000}, Description: "salary", Date: base,
	})
	s.Require().NoError(err)
	s.Nil(first.Category)

	txs, err := s.store.Transactions().ListByAccount(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Require().Len(txs, 2)
	s.Equal(first.ID, txs[0].ID)
	s.Equal(second.ID, txs[1].ID)
	s.True(txs[0].Date.Equal(base))

	second.Amount = core.Money{Cents: -1000}
	second.Description = "cheap lunch"
	second.Category = nil
	n, err := s.store.Transactions().Update(s.ctx, second)
	s.Require().NoError(err)
	s.EqualValues(1, n)

	got, err := s.store.Transactions().GetByID(s.ctx, second.ID)
	s.Require().NoError(err)
	s.Equal(int64(-1000), got.Amount.Cents)
	s.Equal("cheap lunch", got.Description)
	s.Nil(got.Category)

	n, err = s.store.Transactions().Delete(s.ctx, first)
	s.Require().NoError(err)
	s.EqualValues(1, n)
	_, err = s.store.Transactions().GetByID(s.ctx, first.ID)
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *StoreSuite) TestCategoryDeleteDetachesTransactions() {
	u := s.user("hal")
	a := s.account(u.ID, "Wallet", 0)
	food := s.category("Food")
	s.Require().NoError(s.store.UserCategories().Create(s.ctx, core.UserCategory{UserID: u.ID, CategoryID: food.ID}))

	t, err := s.store.Transactions().Create(s.ctx, core.Transaction{AccountID: a.ID, Amount: core.Money{Cents: -1}, Category: &food})
	s.Require().NoError(err)

	n, err := s.store.Categories().Delete(s.ctx, food)
	s.Require().NoError(err)
	s.EqualValues(1, n)

	got, err := s.store.Transactions().GetByID(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Nil(got.Category)

	cats, err := s.store.UserCategories().ListCategories(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Empty(cats)
}

func (s *StoreSuite) TestUserDeleteCascades() {
	u := s.user("ivy")
	a := s.account(u.ID, "Wallet", 0)
	food := s.category("Food")
	s.Require().NoError(s.store.UserCategories().Create(s.ctx, core.UserCategory{UserID: u.ID, CategoryID: food.ID}))
	t, err := s.store.Transactions().Create(s.ctx, core.Transaction{AccountID: a.ID, Amount: core.Money{Cents: 1}})
	s.Require().NoError(err)

	_, err = s.store.Users().Delete(s.ctx, u)
	s.Require().NoError(err)

	_, err = s.store.Accounts().GetByID(s.ctx, a.ID)
	s.ErrorIs(err, repository.ErrNotFound)
	_, err = s.store.Transactions().GetByID(s.ctx, t.ID)
	s.ErrorIs(err, repository.ErrNotFound)
	n, err := s.store.UserCategories().CountUsers(s.ctx, food.ID)
	s.Require().NoError(err)
	s.EqualValues(0, n)

	_, err = s.store.Categories().GetByID(s.ctx, food.ID)
	s.NoError(err, "categories outlive their users at the storage level")
}

func (s *StoreSuite) TestWithinTxCommits() {
	u := s.user("jo")
	err := s.store.WithinTx(s.ctx, func(tx repository.Store) error {
		a, err := tx.Accounts().Create(s.ctx, core.Account{UserID: u.ID, Name: "Wallet"})
		if err != nil {
			return err
		}
		_, err = tx.Accounts().AdjustBalance(s.ctx, a.ID, core.Money{Cents: 42})
		return err
	})
	s.Require().NoError(err)

	accounts, err := s.store.Accounts().ListByUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Require().Len(accounts, 1)
	s.Equal(int64(42), accounts[0].Balance.Cents)
}

func (s *StoreSuite) TestWithinTxRollsBack() {
	u := s.user("kim")
	a := s.account(u.ID, "Wallet", 100)
	boom := errors.New("boom")

	err := s.store.WithinTx(s.ctx, func(tx repository.Store) error {
		if _, err := tx.Transactions().Create(s.ctx, core.Transaction{AccountID: a.ID, Amount: core.Money{Cents: 50}}); err != nil {
			return err
		}
		if _, err := tx.Accounts().AdjustBalance(s.ctx, a.ID, core.Money{Cents: 50}); err != nil {
			return err
		}
		return tx.WithinTx(s.ctx, func(inner repository.Store) error {
			if _, err := inner.Categories().Create(s.ctx, core.Category{Name: "Ghost"}); err != nil {
				return err
			}
			return boom
		})
	})
	s.ErrorIs(err, boom)

	got, err := s.store.Accounts().GetByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(int64(100), got.Balance.Cents)

	txs, err := s.store.Transactions().ListByAccount(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Empty(txs)

	_, err = s.store.Categories().GetByName(s.ctx, "Ghost")
	s.ErrorIs(err, repository.ErrNotFound)
}
