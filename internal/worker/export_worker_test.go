package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/export"
	"ledger/internal/repository"
	"ledger/internal/repository/memory"
	"ledger/internal/services"
)

type fakeReports struct {
	mu       sync.Mutex
	accounts map[int64]core.Account
	getErr   error
	csvErr   error
	chartErr error
	calls    []string
}

func (f *fakeReports) GetByID(_ context.Context, id int64) (core.Account, error) {
	if f.getErr != nil {
		return core.Account{}, f.getErr
	}
	a, ok := f.accounts[id]
	if !ok {
		return core.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func (f *fakeReports) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeReports) ExportCSV(_ context.Context, a core.Account) (string, error) {
	f.record("csv:" + a.Name)
	return a.Name + ".csv", f.csvErr
}

func (f *fakeReports) ExportAverageChart(_ context.Context, a core.Account) (string, error) {
	f.record("chart:" + a.Name)
	return a.Name + ".xlsx", f.chartErr
}

func TestNewExportWorker_DefaultTimeout(t *testing.T) {
	w := NewExportWorker(nil, 0)
	if w.timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", w.timeout)
	}
}

func TestExportWorker_HandleEvent(t *testing.T) {
	reports := &fakeReports{accounts: map[int64]core.Account{1: {ID: 1, Name: "Main"}}}
	w := NewExportWorker(reports, time.Second)

	err := w.HandleEvent(context.Background(), amqp.NewLedgerEvent(amqp.EventTransactionCreated, 1, 5, 100, 100))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"csv:Main", "chart:Main"}, reports.calls)
}

func TestExportWorker_DeletedAccountIsSkipped(t *testing.T) {
	reports := &fakeReports{accounts: map[int64]core.Account{}}
	w := NewExportWorker(reports, time.Second)

	err := w.HandleEvent(context.Background(), amqp.NewLedgerEvent(amqp.EventTransactionDeleted, 9, 1, -5, 0))
	require.NoError(t, err)
	assert.Empty(t, reports.calls)
}

func TestExportWorker_Errors(t *testing.T) {
	tests := []struct {
		name    string
		reports *fakeReports
		wantErr string
	}{
		{
			name:    "load failure",
			reports: &fakeReports{getErr: errors.New("database is locked")},
			wantErr: "load account 1: database is locked",
		},
		{
			name:    "csv failure",
			reports: &fakeReports{accounts: map[int64]core.Account{1: {ID: 1, Name: "Main"}}, csvErr: errors.New("disk full")},
			wantErr: "csv export: disk full",
		},
		{
			name:    "chart failure",
			reports: &fakeReports{accounts: map[int64]core.Account{1: {ID: 1, Name: "Main"}}, chartErr: errors.New("disk full")},
			wantErr: "chart export: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewExportWorker(tt.reports, time.Second)
			err := w.HandleEvent(context.Background(), amqp.NewLedgerEvent(amqp.EventTransactionUpdated, 1, 1, 1, 1))
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestExportWorker_WithAccountService(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := memory.New()
	categories := services.NewCategoryService(store)
	users := services.NewUserService(store, categories, services.UserConfig{BcryptCost: 4, DefaultCategories: []string{"Food"}})
	accounts := services.NewAccountService(store, export.NewCSVWriter(dir), export.NewChartRenderer(dir), nil)

	_, err := users.Register(ctx, "alice", "pw", "pw")
	require.NoError(t, err)
	alice, err := users.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	account, err := accounts.Create(ctx, "Main", alice, "0", "")
	require.NoError(t, err)
	food, err := categories.GetByName(ctx, "Food")
	require.NoError(t, err)
	created, err := accounts.CreateTransaction(ctx, &account, "-4.20", "coffee", &food)
	require.NoError(t, err)

	w := NewExportWorker(accounts, 5*time.Second)
	event := amqp.NewLedgerEvent(amqp.EventTransactionCreated, account.ID, created.ID, created.Amount.Cents, account.Balance.Cents)
	require.NoError(t, w.HandleEvent(ctx, event))

	for _, name := range []string{"Main_transactions.csv", "Main_averages.xlsx"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}
