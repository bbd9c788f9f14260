// Package worker reacts to ledger events by regenerating account exports.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/repository"
)

// Reports is the slice of AccountService the worker needs.
type Reports interface {
	GetByID(ctx context.Context, id int64) (core.Account, error)
	ExportCSV(ctx context.Context, account core.Account) (string, error)
	ExportAverageChart(ctx context.Context, account core.Account) (string, error)
}

// ExportWorker keeps each account's CSV and chart in step with its ledger.
type ExportWorker struct {
	reports Reports
	timeout time.Duration
}

func NewExportWorker(reports Reports, timeout time.Duration) *ExportWorker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ExportWorker{
		reports: reports,
		timeout: timeout,
	}
}

// HandleEvent regenerates both exports of the event's account concurrently.
// Events for accounts deleted since are acknowledged without work.
func (w *ExportWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	slog.InfoContext(ctx, "Processing ledger event",
		log.FieldComponent, log.ComponentWorker,
		log.FieldEventID, event.ID,
		log.FieldEventType, event.Type,
		log.FieldAccountID, event.AccountID)

	account, err := w.reports.GetByID(ctx, event.AccountID)
	if errors.Is(err, repository.ErrNotFound) {
		slog.InfoContext(ctx, "Account no longer exists, skipping export",
			log.FieldComponent, log.ComponentWorker,
			log.FieldAccountID, event.AccountID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load account %d: %w", event.AccountID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := w.reports.ExportCSV(gctx, account); err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := w.reports.ExportAverageChart(gctx, account); err != nil {
			return fmt.Errorf("chart export: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Account exports refreshed",
		log.FieldComponent, log.ComponentWorker,
		log.FieldAccountID, account.ID,
		log.FieldAccountName, account.Name)
	return nil
}
