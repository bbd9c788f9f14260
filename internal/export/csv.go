// Package export writes account reports to files under an export directory.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ledger/internal/core"
)

const dateLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"id", "category", "amount", "date", "description"}

// CSVWriter writes <dir>/<account>_transactions.csv.
type CSVWriter struct {
	Dir string
}

func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{Dir: dir}
}

// WriteTransactions replaces the account's CSV file. Rows are numbered from 1
// in the order given.
func (w *CSVWriter) WriteTransactions(ctx context.Context, account core.Account, txs []core.Transaction) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(w.Dir, fileName(account.Name, "_transactions.csv"))

	return path, writeAtomically(path, func(f *os.File) error {
		cw := csv.NewWriter(f)
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
		for i, t := range txs {
			row := []string{
				strconv.Itoa(i + 1),
				t.CategoryName(),
				t.Amount.String(),
				t.Date.Format(dateLayout),
				t.Description,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

const exportFileMode = 0o644

// writeAtomically fills a temp file next to path and renames it into place,
// so readers never see a half-written report.
func writeAtomically(path string, fill func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	// CreateTemp opens with 0600.
	if err := tmp.Chmod(exportFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

var unsafeChars = strings.NewReplacer("/", "_", `\`, "_", "\x00", "")

func fileName(accountName, suffix string) string {
	return unsafeChars.Replace(accountName) + suffix
}
