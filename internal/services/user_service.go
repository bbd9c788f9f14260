package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/repository"
)

// UserConfig tunes registration.
type UserConfig struct {
	BcryptCost        int
	DefaultCategories []string
}

func DefaultUserConfig() UserConfig {
	return UserConfig{
		BcryptCost:        bcrypt.DefaultCost,
		DefaultCategories: []string{"Food", "Other", "Transport"},
	}
}

// UserService handles registration, authentication and account ownership.
// Registration and login-change checks compare logins ignoring case while
// Login itself requires the exact spelling.
type UserService struct {
	store      repository.Store
	categories *CategoryService
	cfg        UserConfig
}

func NewUserService(store repository.Store, categories *CategoryService, cfg UserConfig) *UserService {
	return &UserService{
		store:      store,
		categories: categories,
		cfg:        cfg,
	}
}

// Register creates a user with the default categories attached.
func (s *UserService) Register(ctx context.Context, login, password, confirm string) (string, error) {
	slog.InfoContext(ctx, "User registration requested",
		log.FieldComponent, log.ComponentUser,
		log.FieldOperation, log.OpRegister,
		log.FieldLogin, login)

	if core.Blank(login) || password == "" || confirm == "" {
		return "", core.Rule(core.ErrEmptyField, "Fill all fields")
	}
	if password != confirm {
		return "", core.Rule(core.ErrMismatch, "Passwords don't match")
	}

	taken, err := s.loginExists(ctx, s.store, login, false)
	if err != nil {
		return "", err
	}
	if taken {
		return "", core.Rule(core.ErrConflict, "Such user has already been created")
	}

	hash, err := core.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().Create(ctx, core.User{Login: login, PasswordHash: hash})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		for _, name := range s.cfg.DefaultCategories {
			if _, err := s.categories.attach(ctx, tx, user, name); err != nil {
				return fmt.Errorf("attach default category %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "User registered",
		log.FieldComponent, log.ComponentUser,
		log.FieldLogin, login)
	return fmt.Sprintf("Successfully registered %s", login), nil
}

// Login authenticates by exact login and password and returns the stored
// user with its balance filled in.
func (s *UserService) Login(ctx context.Context, login, password string) (core.User, error) {
	slog.InfoContext(ctx, "User login requested",
		log.FieldComponent, log.ComponentUser,
		log.FieldOperation, log.OpLogin,
		log.FieldLogin, login)

	if core.Blank(login) || password == "" {
		return core.User{}, core.Rule(core.ErrEmptyField, "Fill all fields")
	}

	user, err := s.store.Users().GetByLogin(ctx, login, true)
	if errors.Is(err, repository.ErrNotFound) {
		return core.User{}, core.Rule(core.ErrNotFound, "User with login %s doesn't exist", login)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !core.CheckPassword(user.PasswordHash, password) {
		slog.WarnContext(ctx, "Login rejected",
			log.FieldComponent, log.ComponentUser,
			log.FieldLogin, login)
		return core.User{}, core.Rule(core.ErrWrongPassword, "Incorrect password")
	}

	return s.withBalance(ctx, user)
}

func (s *UserService) GetByID(ctx context.Context, id int64) (core.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return core.User{}, err
	}
	return s.withBalance(ctx, user)
}

// GetByLogin looks the login up exactly.
func (s *UserService) GetByLogin(ctx context.Context, login string) (core.User, error) {
	user, err := s.store.Users().GetByLogin(ctx, login, true)
	if err != nil {
		return core.User{}, err
	}
	return s.withBalance(ctx, user)
}

// Balance sums the balances of every account owned by user.
func (s *UserService) Balance(ctx context.Context, user core.User) (core.Money, error) {
	accounts, err := s.store.Accounts().ListByUser(ctx, user.ID)
	if err != nil {
		return core.Money{}, fmt.Errorf("list accounts: %w", err)
	}
	var total core.Money
	for _, a := range accounts {
		if total, err = total.CheckedAdd(a.Balance); err != nil {
			return core.Money{}, fmt.Errorf("sum balances: %w", err)
		}
	}
	return total, nil
}

func (s *UserService) withBalance(ctx context.Context, user core.User) (core.User, error) {
	balance, err := s.Balance(ctx, user)
	if err != nil {
		return core.User{}, err
	}
	user.Balance = balance
	return user, nil
}

// Update changes the login, the password, or both. Empty strings leave a
// field alone. The current password must be given. On success user is
// updated in place.
func (s *UserService) Update(ctx context.Context, user *core.User, givenPassword, login, password string) (int64, error) {
	stored, err := s.store.Users().GetByID(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, core.Rule(core.ErrNotFound, "User %s doesn't exist", user.Login)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup user: %w", err)
	}

	slog.InfoContext(ctx, "Updating user",
		log.FieldComponent, log.ComponentUser,
		log.FieldOperation, log.OpUpdate,
		log.FieldUserID, user.ID)

	if !core.CheckPassword(stored.PasswordHash, givenPassword) {
		return 0, core.Rule(core.ErrWrongPassword, "Given password is wrong")
	}

	updated := stored
	if login != "" {
		if login == stored.Login {
			return 0, core.Rule(core.ErrUnchanged, "Credentials must be changed to update")
		}
		other, err := s.store.Users().GetByLogin(ctx, login, false)
		switch {
		case err == nil && other.ID != stored.ID:
			return 0, core.Rule(core.ErrConflict, "Such login is unavailable")
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return 0, fmt.Errorf("lookup user: %w", err)
		}
		updated.Login = login
	}
	if password != "" {
		if core.CheckPassword(stored.PasswordHash, password) {
			return 0, core.Rule(core.ErrUnchanged, "Credentials must be changed to update")
		}
		hash, err := core.HashPassword(password, s.cfg.BcryptCost)
		if err != nil {
			return 0, err
		}
		updated.PasswordHash = hash
	}
	if login == "" && password == "" {
		return 0, core.Rule(core.ErrEmptyField, "Empty credentials")
	}

	rows, err := s.store.Users().Update(ctx, updated)
	if err != nil {
		return 0, fmt.Errorf("update user: %w", err)
	}
	user.Login = updated.Login
	user.PasswordHash = updated.PasswordHash
	return rows, nil
}

// Delete removes the user after releasing every category link. Accounts and
// their transactions go with the user row.
func (s *UserService) Delete(ctx context.Context, user core.User, givenPassword string) (string, error) {
	stored, err := s.store.Users().GetByID(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", core.Rule(core.ErrNotFound, "User %s doesn't exist", user.Login)
	}
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if !core.CheckPassword(stored.PasswordHash, givenPassword) {
		return "", core.Rule(core.ErrWrongPassword, "Given password is wrong")
	}

	slog.InfoContext(ctx, "Deleting user",
		log.FieldComponent, log.ComponentUser,
		log.FieldOperation, log.OpDelete,
		log.FieldLogin, stored.Login)

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		categories, err := tx.UserCategories().ListCategories(ctx, stored.ID)
		if err != nil {
			return fmt.Errorf("list user categories: %w", err)
		}
		for _, c := range categories {
			if err := s.categories.detach(ctx, tx, stored, c); err != nil {
				return err
			}
		}
		if _, err := tx.Users().Delete(ctx, stored); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("User %s successfully deleted", user.Login), nil
}

// Categories lists the categories linked to user.
func (s *UserService) Categories(ctx context.Context, user core.User) ([]core.Category, error) {
	return s.categories.ListForUser(ctx, user)
}

// HasCategory reports whether c is linked to user.
func (s *UserService) HasCategory(ctx context.Context, user core.User, c core.Category) (bool, error) {
	return s.store.UserCategories().Exists(ctx, core.UserCategory{UserID: user.ID, CategoryID: c.ID})
}

func (s *UserService) AddCategory(ctx context.Context, user core.User, name string) (string, error) {
	return s.categories.Attach(ctx, user, name)
}

func (s *UserService) RemoveCategory(ctx context.Context, user core.User, c core.Category) error {
	return s.categories.Detach(ctx, user, c)
}

func (s *UserService) loginExists(ctx context.Context, st repository.Store, login string, caseSensitive bool) (bool, error) {
	_, err := st.Users().GetByLogin(ctx, login, caseSensitive)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("lookup user: %w", err)
	}
}
