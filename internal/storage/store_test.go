package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ledger/internal/core"
	"ledger/internal/repository"
	"ledger/internal/repository/repositorytest"
)

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &repositorytest.StoreSuite{
		NewStore: func() repository.Store {
			store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
			require.NoError(t, err, "failed to open test database")
			return store
		},
	})
}

func TestNewSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = store.Categories().Create(context.Background(), core.Category{Name: "Food"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Second open must find the schema already migrated.
	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Categories().GetByName(context.Background(), "Food")
	require.NoError(t, err)
	assert.Equal(t, "Food", got.Name)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dsn("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dsn("file:a.db?mode=rwc"))
}
