package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/repository"
)

// AccountService owns accounts and their transactions. Every operation that
// moves money writes the transaction row and the balance in one store
// transaction and announces the result once committed.
type AccountService struct {
	store    repository.Store
	exporter TransactionExporter
	charts   ChartRenderer
	events   EventPublisher
}

// NewAccountService wires the service. exporter, charts and events may be nil.
func NewAccountService(store repository.Store, exporter TransactionExporter, charts ChartRenderer, events EventPublisher) *AccountService {
	return &AccountService{
		store:    store,
		exporter: exporter,
		charts:   charts,
		events:   events,
	}
}

// Create opens an account for user. An empty balance means zero.
func (s *AccountService) Create(ctx context.Context, name string, user core.User, balance, description string) (core.Account, error) {
	if core.Blank(name) {
		return core.Account{}, core.Rule(core.ErrEmptyField, "Name can't be null")
	}
	opening := core.Money{}
	if balance != "" {
		var err error
		if opening, err = core.ParseMoney(balance); err != nil {
			return core.Account{}, core.Rule(core.ErrInvalidFormat, "Wrong format of balance")
		}
	}

	slog.InfoContext(ctx, "Creating account",
		log.FieldComponent, log.ComponentAccount,
		log.FieldOperation, log.OpCreate,
		log.FieldUserID, user.ID,
		log.FieldAccountName, name)

	var account core.Account
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		exists, err := accountNameTaken(ctx, tx, user.ID, name, 0)
		if err != nil {
			return err
		}
		if exists {
			return core.Rule(core.ErrConflict, "Account %s exists", name)
		}
		account, err = tx.Accounts().Create(ctx, core.Account{
			Name:        name,
			Description: description,
			Balance:     opening,
			UserID:      user.ID,
		})
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		return nil
	})
	return account, err
}

func (s *AccountService) ListByUser(ctx context.Context, user core.User) ([]core.Account, error) {
	return s.store.Accounts().ListByUser(ctx, user.ID)
}

func (s *AccountService) GetByID(ctx context.Context, id int64) (core.Account, error) {
	return s.store.Accounts().GetByID(ctx, id)
}

// Update changes name, description and balance. Empty strings leave a field
// alone. A new balance is reached through a Correction transaction for the
// difference, so the balance keeps matching the transaction history.
func (s *AccountService) Update(ctx context.Context, account *core.Account, name, description, balance string) (core.Account, error) {
	if name == "" && description == "" && balance == "" {
		return core.Account{}, core.Rule(core.ErrEmptyField, "Credentials can't be null")
	}

	target, balanceErr := core.ParseMoney(balance)
	changed := (name != "" && name != account.Name) ||
		(description != "" && description != account.Description) ||
		(balance != "" && (balanceErr != nil || target != account.Balance))
	if !changed {
		return core.Account{}, core.Rule(core.ErrUnchanged, "Credentials must be changed to update")
	}

	var (
		updated    core.Account
		correction core.Transaction
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.Accounts().GetByID(ctx, account.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return core.Rule(core.ErrNotFound, "Account %s doesn't exist", account.Name)
		}
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}

		if name != "" && name != current.Name {
			taken, err := accountNameTaken(ctx, tx, current.UserID, name, current.ID)
			if err != nil {
				return err
			}
			if taken {
				return core.Rule(core.ErrConflict, "Account with name %s exists", name)
			}
			current.Name = name
		}
		if description != "" {
			current.Description = description
		}
		if balance != "" && balanceErr != nil {
			return core.Rule(core.ErrInvalidFormat, "Wrong format of balance")
		}

		if _, err := tx.Accounts().Update(ctx, current); err != nil {
			return fmt.Errorf("update account: %w", err)
		}

		if balance != "" {
			if delta := target.Sub(current.Balance); !delta.IsZero() {
				correction, err = tx.Transactions().Create(ctx, core.Transaction{
					Amount:      delta,
					Description: core.CorrectionDescription,
					AccountID:   current.ID,
				})
				if err != nil {
					return fmt.Errorf("create correction: %w", err)
				}
				if _, err := adjustBalance(ctx, tx, current.ID, delta); err != nil {
					return err
				}
			}
		}

		updated, err = tx.Accounts().GetByID(ctx, current.ID)
		if err != nil {
			return fmt.Errorf("reload account: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}

	*account = updated
	if correction.ID != 0 {
		slog.InfoContext(ctx, "Balance corrected",
			log.NewFields().
				WithComponent(log.ComponentAccount).
				WithAccount(updated.ID, updated.Name, updated.Balance.String()).
				WithTransaction(correction.ID, correction.Amount.String(), correction.CategoryName()).
				ToSlice()...)
		s.publish(ctx, amqp.EventAccountCorrected, updated.ID, correction.ID, correction.Amount, updated.Balance)
	}
	return updated, nil
}

// Delete removes the account together with its transactions.
func (s *AccountService) Delete(ctx context.Context, account core.Account) (string, error) {
	stored, err := s.store.Accounts().GetByID(ctx, account.ID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && stored.UserID != account.UserID) {
		return "", core.Rule(core.ErrNotFound, "Account %s doesn't exist", account.Name)
	}
	if err != nil {
		return "", fmt.Errorf("lookup account: %w", err)
	}
	if _, err := s.store.Accounts().Delete(ctx, stored); err != nil {
		return "", fmt.Errorf("delete account: %w", err)
	}
	slog.InfoContext(ctx, "Account deleted",
		log.FieldComponent, log.ComponentAccount,
		log.FieldAccountID, stored.ID,
		log.FieldAccountName, stored.Name)
	return fmt.Sprintf("Account %s successfully deleted", account.Name), nil
}

// CreateTransaction records amount against account and moves its balance.
// category may be nil; otherwise it must be linked to the account owner.
// On success account carries the new balance.
func (s *AccountService) CreateTransaction(ctx context.Context, account *core.Account, amount, description string, category *core.Category) (core.Transaction, error) {
	if core.Blank(amount) {
		return core.Transaction{}, core.Rule(core.ErrEmptyField, "Amount can't be null")
	}
	value, err := core.ParseMoney(amount)
	if err != nil {
		return core.Transaction{}, core.Rule(core.ErrInvalidFormat, "Amount must be float")
	}

	var (
		created core.Transaction
		balance core.Money
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		owner, err := tx.Accounts().GetByID(ctx, account.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return core.Rule(core.ErrNotFound, "Account %s doesn't exist", account.Name)
		}
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		resolved, err := availableCategory(ctx, tx, owner.UserID, category)
		if err != nil {
			return err
		}

		created, err = tx.Transactions().Create(ctx, core.Transaction{
			Amount:      value,
			Description: description,
			Category:    resolved,
			AccountID:   owner.ID,
		})
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		balance, err = adjustBalance(ctx, tx, owner.ID, value)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	account.Balance = balance
	slog.InfoContext(ctx, "Transaction created",
		log.NewFields().
			WithComponent(log.ComponentAccount).
			WithOperation(log.OpCreate).
			WithAccount(account.ID, account.Name, balance.String()).
			WithTransaction(created.ID, created.Amount.String(), created.CategoryName()).
			ToSlice()...)
	s.publish(ctx, amqp.EventTransactionCreated, account.ID, created.ID, created.Amount, balance)
	return created, nil
}

// DeleteTransaction removes t and takes its amount back out of the balance.
// It returns the account as it stands afterwards.
func (s *AccountService) DeleteTransaction(ctx context.Context, t core.Transaction) (core.Account, error) {
	var (
		stored  core.Transaction
		account core.Account
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		stored, err = tx.Transactions().GetByID(ctx, t.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return core.Rule(core.ErrNotFound, "Transaction %d doesn't exist", t.ID)
		}
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}
		if _, err := tx.Transactions().Delete(ctx, stored); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		if _, err := adjustBalance(ctx, tx, stored.AccountID, stored.Amount.Neg()); err != nil {
			return err
		}
		account, err = tx.Accounts().GetByID(ctx, stored.AccountID)
		if err != nil {
			return fmt.Errorf("reload account: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}

	slog.InfoContext(ctx, "Transaction deleted",
		log.NewFields().
			WithComponent(log.ComponentAccount).
			WithOperation(log.OpDelete).
			WithAccount(account.ID, account.Name, account.Balance.String()).
			WithTransaction(stored.ID, stored.Amount.String(), stored.CategoryName()).
			ToSlice()...)
	s.publish(ctx, amqp.EventTransactionDeleted, account.ID, stored.ID, stored.Amount.Neg(), account.Balance)
	return account, nil
}

// UpdateTransaction changes amount, description or category of t. Empty
// strings and a nil category leave a field alone. An amount change moves the
// balance by the difference. On success t holds the stored values.
func (s *AccountService) UpdateTransaction(ctx context.Context, t *core.Transaction, amount, description string, category *core.Category) (int64, error) {
	if amount == "" && description == "" && category == nil {
		return 0, core.Rule(core.ErrEmptyField, "Credentials can't be null")
	}
	var value core.Money
	if amount != "" {
		var err error
		if value, err = core.ParseMoney(amount); err != nil {
			return 0, core.Rule(core.ErrInvalidFormat, "Amount must be float")
		}
	}

	var (
		rows    int64
		updated core.Transaction
		delta   core.Money
		balance core.Money
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		stored, err := tx.Transactions().GetByID(ctx, t.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return core.Rule(core.ErrNotFound, "Transaction %d doesn't exist", t.ID)
		}
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}
		updated = stored

		if amount != "" {
			delta = value.Sub(stored.Amount)
			updated.Amount = value
		}
		if description != "" {
			updated.Description = description
		}
		if category != nil {
			owner, err := tx.Accounts().GetByID(ctx, stored.AccountID)
			if err != nil {
				return fmt.Errorf("load account: %w", err)
			}
			if updated.Category, err = availableCategory(ctx, tx, owner.UserID, category); err != nil {
				return err
			}
		}

		if rows, err = tx.Transactions().Update(ctx, updated); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if !delta.IsZero() {
			if balance, err = adjustBalance(ctx, tx, stored.AccountID, delta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	*t = updated
	if !delta.IsZero() {
		s.publish(ctx, amqp.EventTransactionUpdated, updated.AccountID, updated.ID, delta, balance)
	}
	return rows, nil
}

// Transactions lists the account's transactions oldest first.
func (s *AccountService) Transactions(ctx context.Context, account core.Account) ([]core.Transaction, error) {
	return s.store.Transactions().ListByAccount(ctx, account.ID)
}

// CategoryAverages returns the mean transaction amount per category, highest first.
func (s *AccountService) CategoryAverages(ctx context.Context, account core.Account) ([]core.CategoryAverage, error) {
	txs, err := s.Transactions(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return core.AverageByCategory(txs), nil
}

// ExportCSV writes the account's transactions through the configured exporter.
func (s *AccountService) ExportCSV(ctx context.Context, account core.Account) (string, error) {
	if s.exporter == nil {
		return "", errors.New("no transaction exporter configured")
	}
	txs, err := s.Transactions(ctx, account)
	if err != nil {
		return "", fmt.Errorf("list transactions: %w", err)
	}
	path, err := s.exporter.WriteTransactions(ctx, account, txs)
	if err != nil {
		return "", fmt.Errorf("export transactions: %w", err)
	}
	slog.InfoContext(ctx, "Transactions exported",
		log.FieldComponent, log.ComponentExport,
		log.FieldAccountID, account.ID,
		log.FieldPath, path)
	return path, nil
}

// ExportAverageChart renders the per-category averages through the configured renderer.
func (s *AccountService) ExportAverageChart(ctx context.Context, account core.Account) (string, error) {
	if s.charts == nil {
		return "", errors.New("no chart renderer configured")
	}
	averages, err := s.CategoryAverages(ctx, account)
	if err != nil {
		return "", err
	}
	path, err := s.charts.RenderAverages(ctx, account, averages)
	if err != nil {
		return "", fmt.Errorf("render averages: %w", err)
	}
	slog.InfoContext(ctx, "Average chart exported",
		log.FieldComponent, log.ComponentExport,
		log.FieldAccountID, account.ID,
		log.FieldPath, path)
	return path, nil
}

func (s *AccountService) publish(ctx context.Context, eventType string, accountID, transactionID int64, amount, balance core.Money) {
	if s.events == nil {
		slog.DebugContext(ctx, "No event publisher, skipping ledger event", log.FieldEventType, eventType)
		return
	}
	event := amqp.NewLedgerEvent(eventType, accountID, transactionID, amount.Cents, balance.Cents)
	if err := s.events.PublishEvent(ctx, event); err != nil {
		// The change is committed; consumers catch up on the next event.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldComponent, log.ComponentAccount,
			log.FieldEventType, eventType,
			log.FieldAccountID, accountID,
			log.FieldError, err)
	}
}

// accountNameTaken reports whether userID owns another account called name.
func accountNameTaken(ctx context.Context, st repository.Store, userID int64, name string, exceptID int64) (bool, error) {
	accounts, err := st.Accounts().ListByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list accounts: %w", err)
	}
	for _, a := range accounts {
		if a.Name == name && a.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

// adjustBalance moves the balance of account id by delta, refusing results
// beyond core.MaxCents.
func adjustBalance(ctx context.Context, st repository.Store, id int64, delta core.Money) (core.Money, error) {
	account, err := st.Accounts().GetByID(ctx, id)
	if err != nil {
		return core.Money{}, fmt.Errorf("load account: %w", err)
	}
	next, err := account.Balance.CheckedAdd(delta)
	if err != nil || !next.InRange() {
		return core.Money{}, core.Rule(core.ErrInvalidFormat, "Balance of %s would be out of range", account.Name)
	}
	balance, err := st.Accounts().AdjustBalance(ctx, id, delta)
	if err != nil {
		return core.Money{}, fmt.Errorf("adjust balance: %w", err)
	}
	return balance, nil
}

// availableCategory resolves c by id or name and checks it is linked to userID.
func availableCategory(ctx context.Context, st repository.Store, userID int64, c *core.Category) (*core.Category, error) {
	if c == nil {
		return nil, nil
	}
	var (
		stored core.Category
		err    error
	)
	if c.ID != 0 {
		stored, err = st.Categories().GetByID(ctx, c.ID)
	} else {
		stored, err = st.Categories().GetByName(ctx, c.Name)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, core.Rule(core.ErrForbidden, "Category %s is not available", c.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup category: %w", err)
	}

	linked, err := st.UserCategories().Exists(ctx, core.UserCategory{UserID: userID, CategoryID: stored.ID})
	if err != nil {
		return nil, fmt.Errorf("check category link: %w", err)
	}
	if !linked {
		return nil, core.Rule(core.ErrForbidden, "Category %s is not available", c.Name)
	}
	return &stored, nil
}
