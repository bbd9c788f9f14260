package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "ledger.db"))
	t.Setenv("EXPORT_DIR", filepath.Join(dir, "exports"))
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("AMQP_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	err := run(args, bytes.NewBufferString(stdin), stdout, stderr)
	return stdout.String(), err
}

func register(t *testing.T, login string) {
	t.Helper()
	out, err := runCmd(t, "", "register", "-user", login, "-password", "secret")
	require.NoError(t, err)
	require.Contains(t, out, "Successfully registered "+login)
}

func TestRun_NoCommand(t *testing.T) {
	out, err := runCmd(t, "")
	require.Error(t, err)
	assert.Contains(t, out, "Usage: ledger <command>")
}

func TestRun_Help(t *testing.T) {
	out, err := runCmd(t, "", "help")
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, out, "tx-add")
	assert.Contains(t, out, "export")
}

func TestRun_UnknownCommand(t *testing.T) {
	_, err := runCmd(t, "", "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "frobnicate"`)
}

func TestRun_MissingUserFlag(t *testing.T) {
	setupEnv(t)
	out, err := runCmd(t, "", "login", "-password", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required flags: user")
	assert.Contains(t, out, "Usage: ledger login")
}

func TestRun_RegisterAndLogin(t *testing.T) {
	setupEnv(t)
	register(t, "alice")

	out, err := runCmd(t, "", "login", "-user", "alice", "-password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice, balance 0.00")

	_, err = runCmd(t, "", "login", "-user", "alice", "-password", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Incorrect password", err.Error())

	_, err = runCmd(t, "", "register", "-user", "ALICE", "-password", "secret")
	require.Error(t, err)
	assert.Equal(t, "Such user has already been created", err.Error())
}

func TestRun_RegisterInteractivePassword(t *testing.T) {
	setupEnv(t)

	out, err := runCmd(t, "pw\npw\n", "register", "-user", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "Password: ")
	assert.Contains(t, out, "Confirm password: ")
	assert.Contains(t, out, "Successfully registered bob")

	_, err = runCmd(t, "pw\nother\n", "register", "-user", "carol")
	require.Error(t, err)
	assert.Equal(t, "Passwords don't match", err.Error())

	out, err = runCmd(t, "pw\n", "login", "-user", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as bob")
}

func TestRun_DBFlag(t *testing.T) {
	dir := setupEnv(t)
	dbPath := filepath.Join(dir, "nested", "other.db")

	_, err := runCmd(t, "", "register", "-user", "dave", "-password", "secret", "-db", dbPath)
	require.NoError(t, err)

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
}

func TestRun_AccountsAndTransactions(t *testing.T) {
	setupEnv(t)
	register(t, "erin")
	auth := []string{"-user", "erin", "-password", "secret"}

	out, err := runCmd(t, "", append([]string{"account-create", "-name", "Wallet", "-balance", "100"}, auth...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Account Wallet created with balance 100.00")

	_, err = runCmd(t, "", append([]string{"account-create", "-name", "Wallet"}, auth...)...)
	require.Error(t, err)
	assert.Equal(t, "Account Wallet exists", err.Error())

	out, err = runCmd(t, "", append([]string{"tx-add", "-account", "Wallet", "-amount", "-30.5", "-description", "lunch", "-category", "Food"}, auth...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "balance 69.50")

	out, err = runCmd(t, "", append([]string{"tx-add", "-account", "Wallet", "-amount", "10"}, auth...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "balance 79.50")

	_, err = runCmd(t, "", append([]string{"tx-add", "-account", "Wallet", "-amount", "ten"}, auth...)...)
	require.Error(t, err)
	assert.Equal(t, "Amount must be float", err.Error())

	out, err = runCmd(t, "", append([]string{"tx-list", "-account", "Wallet"}, auth...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Amount: -30.50\nCategory: Food")
	assert.Contains(t, out, "Category: System operation")
	assert.Contains(t, out, "Balance: 79.50")

	out, err = runCmd(t, "", append([]string{"tx-list", "-account", "Wallet", "-long"}, auth...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Description: lunch")
	assert.NotContains(t, out, "System operation")

	out, err = runCmd(t, "", append([]string{"account-update", "-account", "Wallet", "-balance", "50"}, auth...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Account Wallet updated, balance 50.00")

	out, err = runCmd(t, "", append([]string{"account-list"}, auth...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Wallet")
	assert.Contains(t, out, "50.00")
	assert.Contains(t, out, "TOTAL")
}

func TestRun_TxDelete(t *testing.T) {
	setupEnv(t)
	register(t, "frank")
	register(t, "grace")
	frank := []string{"-user", "frank", "-password", "secret"}
	grace := []string{"-user", "grace", "-password", "secret"}

	_, err := runCmd(t, "", append([]string{"account-create", "-name", "Main"}, frank...)...)
	require.NoError(t, err)
	_, err = runCmd(t, "", append([]string{"account-create", "-name", "Main"}, grace...)...)
	require.NoError(t, err)

	out, err := runCmd(t, "", append([]string{"tx-add", "-account", "Main", "-amount", "25"}, frank...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Transaction 1 recorded")

	// Another user's account does not hold the transaction.
	_, err = runCmd(t, "", append([]string{"tx-delete", "-account", "Main", "-id", "1"}, grace...)...)
	require.Error(t, err)
	assert.Equal(t, "Transaction 1 doesn't exist", err.Error())

	out, err = runCmd(t, "", append([]string{"tx-delete", "-account", "Main", "-id", "1"}, frank...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Transaction 1 deleted, balance 0.00")
}

func TestRun_Categories(t *testing.T) {
	setupEnv(t)
	register(t, "heidi")
	auth := []string{"-user", "heidi", "-password", "secret"}

	out, err := runCmd(t, "", append([]string{"category-add", "-name", "Books"}, auth...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully created category")

	_, err = runCmd(t, "", append([]string{"category-add", "-name", "Books"}, auth...)...)
	require.Error(t, err)
	assert.Equal(t, "Category Books exists", err.Error())

	out, err = runCmd(t, "", append([]string{"category-remove", "-name", "Books"}, auth...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Category Books removed")

	_, err = runCmd(t, "", append([]string{"category-remove", "-name", "Books"}, auth...)...)
	require.Error(t, err)
}

func TestRun_Export(t *testing.T) {
	dir := setupEnv(t)
	register(t, "ivan")
	auth := []string{"-user", "ivan", "-password", "secret"}

	_, err := runCmd(t, "", append([]string{"account-create", "-name", "Cash"}, auth...)...)
	require.NoError(t, err)
	_, err = runCmd(t, "", append([]string{"tx-add", "-account", "Cash", "-amount", "-12", "-category", "Transport"}, auth...)...)
	require.NoError(t, err)

	out, err := runCmd(t, "", append([]string{"export", "-account", "Cash"}, auth...)...)
	require.NoError(t, err)

	paths := strings.Fields(out)
	require.Len(t, paths, 2)
	for _, p := range paths {
		assert.True(t, strings.HasPrefix(p, filepath.Join(dir, "exports")), p)
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}

	_, err = runCmd(t, "", append([]string{"export", "-account", "Missing"}, auth...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account Missing not found")
}
