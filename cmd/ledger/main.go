package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type command struct {
	summary string
	run     func(a *app, args []string) error
}

var commands = map[string]command{
	"register":        {"create a user", (*app).register},
	"login":           {"check credentials and show the total balance", (*app).login},
	"account-create":  {"open an account", (*app).accountCreate},
	"account-list":    {"list accounts with balances", (*app).accountList},
	"account-update":  {"rename, describe or correct the balance of an account", (*app).accountUpdate},
	"tx-add":          {"record a transaction", (*app).txAdd},
	"tx-list":         {"list an account's transactions", (*app).txList},
	"tx-delete":       {"delete a transaction", (*app).txDelete},
	"category-add":    {"link a category to the user", (*app).categoryAdd},
	"category-remove": {"unlink a category from the user", (*app).categoryRemove},
	"export":          {"write the CSV and average chart of an account", (*app).export},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ledger <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, commands[name].summary)
	}
	tw.Flush()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'ledger <command> -h' for the flags of a command.")
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return errors.New("missing command")
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		return flag.ErrHelp
	}
	cmd, ok := commands[args[0]]
	if !ok {
		usage(stdout)
		return fmt.Errorf("unknown command %q", args[0])
	}

	a := &app{
		name:   args[0],
		ctx:    context.Background(),
		stdin:  stdin,
		in:     bufio.NewReader(stdin),
		stdout: stdout,
		stderr: stderr,
	}
	defer a.close()
	return cmd.run(a, args[1:])
}

type app struct {
	name   string
	ctx    context.Context
	stdin  io.Reader
	in     *bufio.Reader
	stdout io.Writer
	stderr io.Writer

	dbPath string
	user   string
	pass   string

	be *backend.BackendResult
}

func (a *app) flags() *flag.FlagSet {
	fs := flag.NewFlagSet(a.name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&a.dbPath, "db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	return fs
}

// authFlags adds the -user and -password flags every user-scoped command takes.
func (a *app) authFlags() *flag.FlagSet {
	fs := a.flags()
	fs.StringVar(&a.user, "user", "", "Login")
	fs.StringVar(&a.pass, "password", "", "Password (optional, will prompt if omitted)")
	return fs
}

func (a *app) open() (*backend.BackendResult, error) {
	if a.be != nil {
		return a.be, nil
	}
	if a.dbPath != "" {
		if err := os.Setenv("SQLITE_DB_PATH", a.dbPath); err != nil {
			return nil, err
		}
	}
	logger := cli.SetupLogger(log.ComponentCLI, a.stderr)
	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		return nil, err
	}
	be, err := cli.OpenBackend(a.ctx, logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.be = be
	return be, nil
}

func (a *app) close() {
	if a.be != nil && a.be.Cleanup != nil {
		if err := a.be.Cleanup(); err != nil {
			fmt.Fprintf(a.stderr, "cleanup: %v\n", err)
		}
	}
}

func (a *app) require(fs *flag.FlagSet, values map[string]string) error {
	var missing []string
	for name, v := range values {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	fmt.Fprintf(a.stdout, "Usage: ledger %s [flags]\n", a.name)
	fs.PrintDefaults()
	return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
}

// password returns the -password flag or prompts for it.
func (a *app) password(prompt string) (string, error) {
	if a.pass != "" {
		return a.pass, nil
	}
	fmt.Fprint(a.stdout, prompt)
	p, err := a.readPassword()
	fmt.Fprintln(a.stdout)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return p, nil
}

func (a *app) readPassword() (string, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Pipes and tests.
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// session logs the -user in and opens the backend.
func (a *app) session() (*backend.BackendResult, core.User, error) {
	password, err := a.password("Password: ")
	if err != nil {
		return nil, core.User{}, err
	}
	be, err := a.open()
	if err != nil {
		return nil, core.User{}, err
	}
	user, err := be.Users.Login(a.ctx, a.user, password)
	if err != nil {
		return nil, core.User{}, err
	}
	return be, user, nil
}

func (a *app) findAccount(be *backend.BackendResult, user core.User, name string) (core.Account, error) {
	accounts, err := be.Accounts.ListByUser(a.ctx, user)
	if err != nil {
		return core.Account{}, err
	}
	for _, acc := range accounts {
		if acc.Name == name {
			return acc, nil
		}
	}
	return core.Account{}, fmt.Errorf("account %s not found", name)
}

func (a *app) register(args []string) error {
	fs := a.authFlags()
	confirm := fs.String("confirm", "", "Password confirmation (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.require(fs, map[string]string{"user": a.user}); err != nil {
		return err
	}

	password, err := a.password("Password: ")
	if err != nil {
		return err
	}
	if *confirm == "" {
		if a.pass != "" {
			*confirm = a.pass
		} else {
			fmt.Fprint(a.stdout, "Confirm password: ")
			if *confirm, err = a.readPassword(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			fmt.Fprintln(a.stdout)
		}
	}

	be, err := a.open()
	if err != nil {
		return err
	}
	msg, err := be.Users.Register(a.ctx, a.user, password, *confirm)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, msg)
	return nil
}

func (a *app) login(args []string) error {
	fs := a.authFlags()
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.require(fs, map[string]string{"user": a.user}); err != nil {
		return err
	}
	_, user, err := a.session()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Logged in as %s, balance %s\n", user.Login, user.Balance)
	return nil
}

func (a *app) accountCreate(args []string) error {
	fs := a.authFlags()
	name := fs.String("name", "", "Account name")
	balance := fs.String("balance", "", "Opening balance (default 0)")
	description := fs.String("description", "", "Description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.require(fs, map[string]string{"user": a.user, "name": *name}); err != nil {
		return err
	}
	be, user, err := a.session()
	if err != nil {
		return err
	}
	account, err := be.Accounts.Create(a.ctx, *name, user, *balance, *description)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Account %s created with balance %s\n", account.Name, account.Balance)
	return nil
}

func (a *app) accountList(args []string) error {
	fs := a.authFlags()
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.require(fs, map[string]string{"user": a.user}); err != nil {
		return err
	}
	be, user, err := a.session()
	if err != nil {
		return err
	}
	accounts, err := be.Accounts.ListByUser(a.ctx, user)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBALANCE\tDESCRIPTION")
	for _, acc := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", acc.Name, acc.Balance, acc.Description)
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t\n", user.Balance)
	return tw.Flush()
}

func (a *app) accountUpdate(args []string) error {
	fs := a.authFlags()
	accountName := fs.String("account", "", "Account to update")
	name := fs.String("name", "", "New name")
	description := fs.String("description", "", "New description")
	balance := fs.String("balance", "", "New balance, recorded as a correction")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.require(fs, map[string]string{"user": a.user, "account": *accountName}); err != nil {
		return err
	}
	be, user, err := a.session()
	if err != nil {
		return err
	}
	account, err := a.findAccount(be, user, *accountName)
	if err != nil {
		return err
	}
	updated, err := be.Accounts.Update(a.ctx, &account, *name, *description, *balance)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Account %s updated, balance %s\n", updated.Name, updated.Balance)
	return nil
}

func (a *app) txAdd(args []string) error {
	fs := a.authFlags()
	accountName := fs.String("account", "", "Account name")
	amount := fs.String("amount", "", "Signed amount, negative for spending")
	description := fs.String("description", "", "Description")
	category := fs.String("category", "", "Category name (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.require(fs, map[string]string{"user": a.user, "account": *accountName}); err != nil {
		return err
	}
	be, user, err := a.session()
	if err != nil {
		return err
	}
	account, err := a.findAccount(be, user, *accountName)
	if err != nil {
		return err
	}
	var c *core.Category
	if *category != "" {
		c = &core.Category{Name: *category}
	}
	t, err := be.Accounts.CreateTransaction(a.ctx, &account, *amount, *description, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Transaction %d recorded, balance %s\n", t.ID, account.Balance)
	return nil
}

func (a *app) txList(args []string) error {
	fs := a.authFlags()
	accountName := fs.String("account", "", "Account name")
	long := fs.Bool("long", false, "Show date and description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.require(fs, map[string]string{"user": a.user, "account": *accountName}); err != nil {
		return err
	}
	be, user, err := a.session()
	if err != nil {
		return err
	}
	account, err := a.findAccount(be, user, *accountName)
	if err != nil {
		return err
	}
	txs, err := be.Accounts.Transactions(a.ctx, account)
	if err != nil {
		return err
	}
	var details services.TransactionDetails
	for _, t := range txs {
		fmt.Fprintf(a.stdout, "#%d\n", t.ID)
		if *long {
			fmt.Fprint(a.stdout, details.Long(t))
		} else {
			fmt.Fprintln(a.stdout, details.Short(t))
		}
	}
	fmt.Fprintf(a.stdout, "Balance: %s\n", account.Balance)
	return nil
}

func (a *app) txDelete(args []string) error {
	fs := a.authFlags()
	accountName := fs.String("account", "", "Account name")
	id := fs.Int64("id", 0, "Transaction id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.require(fs, map[string]string{"user": a.user, "account": *accountName}); err != nil {
		return err
	}
	be, user, err := a.session()
	if err != nil {
		return err
	}
	account, err := a.findAccount(be, user, *accountName)
	if err != nil {
		return err
	}
	txs, err := be.Accounts.Transactions(a.ctx, account)
	if err != nil {
		return err
	}
	// Only transactions of the user's own account may be deleted.
	target := core.Transaction{ID: *id}
	for _, t := range txs {
		if t.ID == *id {
			target = t
			break
		}
	}
	if target.AccountID == 0 {
		return core.Rule(core.ErrNotFound, "Transaction %d doesn't exist", *id)
	}
	after, err := be.Accounts.DeleteTransaction(a.ctx, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Transaction %d deleted, balance %s\n", *id, after.Balance)
	return nil
}

func (a *app) categoryAdd(args []string) error {
	fs := a.authFlags()
	name := fs.String("name", "", "Category name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.require(fs, map[string]string{"user": a.user}); err != nil {
		return err
	}
	be, user, err := a.session()
	if err != nil {
		return err
	}
	msg, err := be.Users.AddCategory(a.ctx, user, *name)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, msg)
	return nil
}

func (a *app) categoryRemove(args []string) error {
	fs := a.authFlags()
	name := fs.String("name", "", "Category name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.require(fs, map[string]string{"user": a.user, "name": *name}); err != nil {
		return err
	}
	be, user, err := a.session()
	if err != nil {
		return err
	}
	if err := be.Users.RemoveCategory(a.ctx, user, core.Category{Name: *name}); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Category %s removed\n", *name)
	return nil
}

func (a *app) export(args []string) error {
	fs := a.authFlags()
	accountName := fs.String("account", "", "Account name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.require(fs, map[string]string{"user": a.user, "account": *accountName}); err != nil {
		return err
	}
	be, user, err := a.session()
	if err != nil {
		return err
	}
	account, err := a.findAccount(be, user, *accountName)
	if err != nil {
		return err
	}
	csvPath, err := be.Accounts.ExportCSV(a.ctx, account)
	if err != nil {
		return err
	}
	chartPath, err := be.Accounts.ExportAverageChart(a.ctx, account)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, csvPath)
	fmt.Fprintln(a.stdout, chartPath)
	return nil
}
